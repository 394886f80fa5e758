package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/berkucuk/archchan/audit"
	"github.com/berkucuk/archchan/extract"
	"github.com/berkucuk/archchan/sandbox"
)

const (
	linuxFallback       = "Sorry, I couldn't generate a command for that request right now, nya~"
	defaultDescription  = "I'm a bit unsure how to describe that, master!"
	sandboxDisabledText = "Command execution is disabled on this server, so I only suggested it."

	actionExecute = "command_execution"
	actionInfo    = "info_only"
)

type linuxCommand struct {
	deps Deps
}

func (a *linuxCommand) Handle(ctx context.Context, req *Request) (Reply, error) {
	data := PromptData{Language: req.Language, Distro: a.deps.Distro}
	if a.deps.History != nil {
		sc := a.deps.History.Gather(ctx, req.Text)
		data.RecentCommands = sc.RecentCommands
		data.RelatedCommands = sc.RelatedCommands
	}

	raw, err := a.deps.Completer.Converse(ctx, req.Conversation, a.deps.Prompts.Render("linux_command", data), req.Text)
	if err != nil {
		slog.Warn("no reply for linux_command", "error", err)
		return Reply{Content: linuxFallback}, nil
	}

	f, err := extract.Extract(raw, "command_response")
	if err != nil {
		return Reply{}, err
	}
	if msg := f.Err(); msg != "" {
		return Reply{Content: "Linux Command Error: " + msg}, nil
	}

	command := f.Get("linux")
	description := f.String("description", defaultDescription)
	action := strings.ToLower(f.String("action_type", actionInfo))
	tier := sandbox.ParseTier(f.Get("estimated_duration_type"))

	reply := Reply{Content: description, Voice: description}
	if command != "" {
		reply.Content = fmt.Sprintf("Command: `%s`\nDescription: %s", command, description)
	}
	if action != actionExecute || command == "" {
		return reply, nil
	}

	if !a.deps.SandboxEnabled || a.deps.Executor == nil {
		reply.Output = sandboxDisabledText
		return reply, nil
	}

	res := a.deps.Executor.Run(ctx, command, tier.Timeout())
	reply.Output = res.Render()
	if a.deps.Audit != nil {
		entry := audit.Entry{
			SessionID: req.SessionID,
			Command:   command,
			Tier:      tier.String(),
			Outcome:   res.Outcome.String(),
			ExitCode:  res.ExitCode,
			Duration:  res.Duration,
			At:        a.deps.Now(),
		}
		if err := a.deps.Audit.Record(ctx, entry); err != nil {
			slog.Warn("failed to record execution", "error", err)
		}
	}
	return reply, nil
}
