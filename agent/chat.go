package agent

import (
	"context"
	"log/slog"
	"strings"
)

const (
	friendFallback   = "I'm a bit shy right now, master... try again later?"
	securityFallback = "I'm a bit unsure how to advise on that right now. Could you rephrase or ask something else?"
)

// chatAgent is a free-form persona that keeps the session's conversation.
type chatAgent struct {
	deps     Deps
	prompt   string
	fallback string
}

func (a *chatAgent) Handle(ctx context.Context, req *Request) (Reply, error) {
	system := a.deps.Prompts.Render(a.prompt, PromptData{Language: req.Language, Distro: a.deps.Distro})
	text, err := a.deps.Completer.Converse(ctx, req.Conversation, system, req.Text)
	if err != nil {
		slog.Warn("no reply for chat", "prompt", a.prompt, "error", err)
		return Reply{Content: a.fallback}, nil
	}
	return Reply{Content: strings.TrimSpace(text)}, nil
}
