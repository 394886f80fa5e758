package agent

import (
	"context"
	"log/slog"
	"strings"

	archchan "github.com/berkucuk/archchan"
)

// Router classifies a request into an agent with a one-shot completion.
type Router struct {
	completer Completer
	prompts   *Prompts
}

func NewRouter(c Completer, p *Prompts) *Router {
	return &Router{completer: c, prompts: p}
}

// Classify never fails: any problem with the model's answer selects friend_chat.
func (r *Router) Classify(ctx context.Context, text string) archchan.AgentName {
	reply, err := r.completer.Complete(ctx, r.prompts.Render("router", PromptData{}), text)
	if err != nil {
		slog.Warn("router completion failed, using friend_chat", "error", err)
		return archchan.FriendChat
	}
	name, ok := normalizeAgentName(reply)
	if !ok {
		slog.Warn("router returned unknown agent, using friend_chat", "reply", truncate(reply, 80))
		return archchan.FriendChat
	}
	return name
}

const quoteChars = "\"'`"

// normalizeAgentName trims, strips quotes and backticks, lowercases and keeps
// the first line of a model reply before matching it to an agent.
func normalizeAgentName(reply string) (archchan.AgentName, bool) {
	s := strings.Trim(strings.TrimSpace(reply), quoteChars)
	s = strings.ToLower(s)
	if line, _, found := strings.Cut(s, "\n"); found {
		s = line
	}
	s = strings.Trim(strings.TrimSpace(s), quoteChars+".")
	if s == "" {
		return "", false
	}
	return archchan.ParseAgentName(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
