package index

import (
	"bytes"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// safeVars are environment variables that are safe to show in logs and prompts.
var safeVars = map[string]bool{
	"HOME": true, "USER": true, "PWD": true, "OLDPWD": true,
	"SHELL": true, "PATH": true, "LANG": true, "TERM": true,
	"EDITOR": true, "PAGER": true, "HOSTNAME": true, "LOGNAME": true,
	"TMPDIR": true, "XDG_CONFIG_HOME": true, "XDG_DATA_HOME": true,
	"XDG_RUNTIME_DIR": true, "DISPLAY": true, "WAYLAND_DISPLAY": true,
	"HISTFILE": true, "HISTSIZE": true, "SHLVL": true,
	"COLUMNS": true, "LINES": true, "LC_ALL": true, "LC_CTYPE": true,
}

// specialParams are shell special parameters ($?, $1, ...) which are never secrets.
var specialParams = map[string]bool{
	"?": true, "!": true, "#": true, "@": true, "*": true,
	"-": true, "$": true, "_": true,
	"0": true, "1": true, "2": true, "3": true, "4": true,
	"5": true, "6": true, "7": true, "8": true, "9": true,
}

// reSecretFlag matches --password=..., --token=..., --api-key=... style arguments.
var reSecretFlag = regexp.MustCompile(`^(--?[A-Za-z0-9_-]*(?:pass(?:word|wd)?|token|secret|api[-_]?key)[A-Za-z0-9_-]*=)(.+)$`)

// RedactCommand masks secrets in a shell command before it is logged,
// embedded or written to the audit trail: non-safe variable expansions
// become $REDACTED, assignment values and secret-looking flag values become ***.
func RedactCommand(cmd string) string {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash), syntax.KeepComments(true))
	prog, err := parser.Parse(strings.NewReader(cmd), "")
	if err != nil {
		return regexRedact(cmd)
	}

	syntax.Walk(prog, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.ParamExp:
			if n.Param != nil && !keepVar(n.Param.Value) {
				n.Param.Value = "REDACTED"
			}
		case *syntax.Assign:
			if n.Name != nil && !safeVars[n.Name.Value] && n.Value != nil {
				n.Value.Parts = []syntax.WordPart{&syntax.Lit{Value: "***"}}
			}
		case *syntax.CallExpr:
			for _, arg := range n.Args {
				redactFlagWord(arg)
			}
		}
		return true
	})

	var buf bytes.Buffer
	if err := syntax.NewPrinter(syntax.Indent(0)).Print(&buf, prog); err != nil {
		return regexRedact(cmd)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// RedactCommands applies RedactCommand to each element.
func RedactCommands(cmds []string) []string {
	if cmds == nil {
		return nil
	}
	out := make([]string, len(cmds))
	for i, cmd := range cmds {
		out[i] = RedactCommand(cmd)
	}
	return out
}

func keepVar(name string) bool {
	return safeVars[name] || specialParams[name]
}

// redactFlagWord masks the value of a literal --secret=value argument.
func redactFlagWord(w *syntax.Word) {
	if w == nil || len(w.Parts) == 0 {
		return
	}
	lit, ok := w.Parts[0].(*syntax.Lit)
	if !ok {
		return
	}
	m := reSecretFlag.FindStringSubmatch(lit.Value)
	if m == nil && len(w.Parts) > 1 && strings.HasSuffix(lit.Value, "=") {
		// --token="$X" splits into a literal prefix and a quoted part.
		m = reSecretFlag.FindStringSubmatch(lit.Value + "x")
	}
	if m == nil {
		return
	}
	w.Parts = []syntax.WordPart{&syntax.Lit{Value: m[1] + "***"}}
}

var (
	reBraceVar  = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	reSimpleVar = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	reAssign    = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)=(\S+)`)
	reFlagValue = regexp.MustCompile(`(--?[A-Za-z0-9_-]*(?:pass(?:word|wd)?|token|secret|api[-_]?key)[A-Za-z0-9_-]*=)\S+`)
)

// regexRedact is the fallback for commands the parser rejects.
func regexRedact(cmd string) string {
	cmd = reFlagValue.ReplaceAllString(cmd, "${1}***")

	cmd = reBraceVar.ReplaceAllStringFunc(cmd, func(m string) string {
		if keepVar(reBraceVar.FindStringSubmatch(m)[1]) {
			return m
		}
		return "${REDACTED}"
	})

	cmd = reSimpleVar.ReplaceAllStringFunc(cmd, func(m string) string {
		name := reSimpleVar.FindStringSubmatch(m)[1]
		if name == "REDACTED" || keepVar(name) {
			return m
		}
		return "$REDACTED"
	})

	return reAssign.ReplaceAllStringFunc(cmd, func(m string) string {
		parts := reAssign.FindStringSubmatch(m)
		if safeVars[parts[1]] || parts[2] == "***" {
			return m
		}
		return parts[1] + "=***"
	})
}
