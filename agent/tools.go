package agent

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"log/slog"
	"strings"

	"github.com/berkucuk/archchan/calc"
	"github.com/berkucuk/archchan/extract"
	"github.com/berkucuk/archchan/hostinfo"
)

type calculator struct {
	deps Deps
}

func (a *calculator) Handle(ctx context.Context, req *Request) (Reply, error) {
	raw, err := a.deps.Completer.Complete(ctx, a.deps.Prompts.Render("calculator", PromptData{Language: req.Language}), req.Text)
	if err != nil {
		slog.Warn("no reply for calculator", "error", err)
		return Reply{Content: "Error: AI failed to extract calculation."}, nil
	}

	f, err := extract.Extract(raw, "calculation_request")
	if err != nil {
		return Reply{}, err
	}
	if msg := f.Err(); msg != "" {
		return Reply{Content: "Calculator Error: " + msg}, nil
	}
	expr, err := f.Require("expression")
	if err != nil {
		return Reply{}, err
	}

	v, err := calc.Eval(expr)
	if errors.Is(err, calc.ErrDisallowedCharacter) {
		return Reply{Content: "Error: Invalid characters in expression. Only numbers and basic operators (+-*/%() .) are allowed."}, nil
	}
	if err != nil {
		reason := err
		var cerr *calc.Error
		if errors.As(err, &cerr) {
			reason = cerr.Err
		}
		return Reply{Content: fmt.Sprintf("Error: Invalid mathematical expression '%s': %v", expr, reason)}, nil
	}
	return Reply{Content: fmt.Sprintf("Calculation Result: %s = %s", expr, calc.Format(v))}, nil
}

type systemInfo struct {
	deps Deps
}

func (a *systemInfo) Handle(ctx context.Context, req *Request) (Reply, error) {
	raw, err := a.deps.Completer.Complete(ctx, a.deps.Prompts.Render("system_info", PromptData{Language: req.Language}), req.Text)
	if err != nil {
		slog.Warn("no reply for system_info", "error", err)
		return Reply{Content: "Error: AI failed to extract system info type."}, nil
	}

	f, err := extract.Extract(raw, "system_info_request")
	if err != nil {
		return Reply{}, err
	}
	if msg := f.Err(); msg != "" {
		return Reply{Content: "System Info Error: " + msg}, nil
	}
	infoType, err := f.Require("info_type")
	if err != nil {
		return Reply{}, err
	}

	category, _ := hostinfo.ParseCategory(infoType)
	return Reply{Content: hostinfo.Report(ctx, a.deps.Host, category, a.deps.Now())}, nil
}

type hashChecker struct {
	deps Deps
}

var hashFuncs = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
}

func (a *hashChecker) Handle(ctx context.Context, req *Request) (Reply, error) {
	raw, err := a.deps.Completer.Complete(ctx, a.deps.Prompts.Render("hash_checker", PromptData{Language: req.Language}), req.Text)
	if err != nil {
		slog.Warn("no reply for hash_checker", "error", err)
		return Reply{Content: "Error: AI failed to extract hash request details."}, nil
	}

	f, err := extract.Extract(raw, "hash_request")
	if err != nil {
		return Reply{}, err
	}
	if msg := f.Err(); msg != "" {
		return Reply{Content: "Hash Checker Error: " + msg}, nil
	}
	action, err := f.Require("action")
	if err != nil {
		return Reply{}, err
	}

	switch strings.ToLower(action) {
	case "generate":
		if !f.Has("text") {
			return Reply{}, &extract.MissingFieldError{Root: "hash_request", Field: "text"}
		}
		text := f.Get("text")
		algo := strings.ToLower(f.String("hash_type", "sha256"))
		newHash, ok := hashFuncs[algo]
		if !ok {
			return Reply{Content: fmt.Sprintf("Error: Unsupported hash type '%s' specified by AI.", algo)}, nil
		}
		h := newHash()
		h.Write([]byte(text))
		return Reply{Content: fmt.Sprintf("Generated %s hash for '%s': %s", strings.ToUpper(algo), text, hex.EncodeToString(h.Sum(nil)))}, nil

	case "check":
		value, err := f.Require("hash_value")
		if err != nil {
			return Reply{}, err
		}
		value = strings.ToLower(value)
		declared := strings.ToLower(f.String("hash_type_provided", "unknown"))

		var sb strings.Builder
		fmt.Fprintf(&sb, "Checking hash '%s' (User specified: %s).\n", value, declared)
		if kind := IdentifyHash(value); kind != "" {
			fmt.Fprintf(&sb, "Based on its length and format, it looks like an %s, nya~!\n", kind)
		}
		sb.WriteString("For now, I can identify common types, but a full check against a known hash database isn't implemented yet, sweetie.")
		return Reply{Content: sb.String()}, nil

	default:
		return Reply{Content: fmt.Sprintf("Error: Invalid hash action '%s' specified by AI.", action)}, nil
	}
}

// IdentifyHash guesses a digest algorithm from the length of a lowercase hex
// string. It returns "" when the value does not look like a known digest.
func IdentifyHash(value string) string {
	for _, c := range value {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return ""
		}
	}
	switch len(value) {
	case 32:
		return "MD5 (likely)"
	case 40:
		return "SHA1 (likely)"
	case 64:
		return "SHA256 (likely)"
	}
	return ""
}
