package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/berkucuk/archchan/extract"
)

// webSearch asks the model to summarize what a search would find.
// No real search engine is queried.
type webSearch struct {
	deps Deps
}

func (a *webSearch) Handle(ctx context.Context, req *Request) (Reply, error) {
	raw, err := a.deps.Completer.Complete(ctx, a.deps.Prompts.Render("web_search", PromptData{Language: req.Language}), req.Text)
	if err != nil {
		slog.Warn("no reply for web_search", "error", err)
		return Reply{Content: "Error: AI failed to extract search query."}, nil
	}

	f, err := extract.Extract(raw, "search_query")
	if err != nil {
		return Reply{}, err
	}
	if msg := f.Err(); msg != "" {
		return Reply{Content: "Web Search Error: " + msg}, nil
	}
	query, err := f.Require("query")
	if err != nil {
		return Reply{}, err
	}

	system := a.deps.Prompts.Render("web_search_summary", PromptData{Language: req.Language, Query: query})
	summary, err := a.deps.Completer.Complete(ctx, system, query)
	if err != nil {
		slog.Warn("no summary for web_search", "query", query, "error", err)
		return Reply{Content: fmt.Sprintf("Error: Failed to get simulated search results for '%s'.", query)}, nil
	}
	return Reply{Content: fmt.Sprintf("Web Search Result for '%s':\n%s", query, strings.TrimSpace(summary))}, nil
}

type vulnerabilityInfo struct {
	deps Deps
}

func (a *vulnerabilityInfo) Handle(ctx context.Context, req *Request) (Reply, error) {
	raw, err := a.deps.Completer.Complete(ctx, a.deps.Prompts.Render("vulnerability_info", PromptData{Language: req.Language}), req.Text)
	if err != nil {
		slog.Warn("no reply for vulnerability_info", "error", err)
		return Reply{Content: "Error: AI failed to extract vulnerability query."}, nil
	}

	f, err := extract.Extract(raw, "vulnerability_query")
	if err != nil {
		return Reply{}, err
	}
	if msg := f.Err(); msg != "" {
		return Reply{Content: "Vulnerability Info Error: " + msg}, nil
	}
	value, err := f.Require("value")
	if err != nil {
		return Reply{}, err
	}
	kind := strings.ToLower(f.String("type", "software"))
	if kind != "cve_id" {
		kind = "software"
	}

	system := a.deps.Prompts.Render("vulnerability_summary", PromptData{Language: req.Language, Value: value, Kind: kind})
	summary, err := a.deps.Completer.Complete(ctx, system, value)
	if err != nil {
		slog.Warn("no summary for vulnerability_info", "value", value, "error", err)
		return Reply{Content: fmt.Sprintf("Error: Failed to get vulnerability information from AI for '%s'.", value)}, nil
	}
	return Reply{Content: fmt.Sprintf("Vulnerability Info for '%s':\n%s", value, strings.TrimSpace(summary))}, nil
}
