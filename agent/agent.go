// Package agent routes user requests to task agents and turns their results
// into protocol responses.
package agent

import (
	"context"
	"time"

	archchan "github.com/berkucuk/archchan"
	"github.com/berkucuk/archchan/audit"
	"github.com/berkucuk/archchan/generate"
	"github.com/berkucuk/archchan/hostinfo"
	"github.com/berkucuk/archchan/sandbox"
	"github.com/berkucuk/archchan/weather"
)

// Completer is the text-completion service. *generate.Generator implements it.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
	Converse(ctx context.Context, conv *generate.Conversation, systemPrompt, userMessage string) (string, error)
}

// Forecaster is the weather service. *weather.Client implements it.
type Forecaster interface {
	Forecast(ctx context.Context, city string, days int) (*weather.Forecast, error)
}

// Executor runs shell commands. *sandbox.Executor implements it.
type Executor interface {
	Run(ctx context.Context, command string, timeout time.Duration) *sandbox.Result
}

// Recorder receives executed commands. *audit.Store implements it.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

// HistorySource supplies shell history for command prompts. *generate.Gatherer implements it.
type HistorySource interface {
	Gather(ctx context.Context, query string) *generate.ShellContext
}

// Request is everything a handler may use. Handlers keep no per-session state.
type Request struct {
	SessionID    string
	Language     string
	Text         string
	Conversation *generate.Conversation
}

// Reply is a handler's result before the dispatcher adds the agent prefix and tag.
type Reply struct {
	Content string
	// Voice defaults to Content when empty.
	Voice  string
	Output string
}

// Agent handles requests routed to one AgentName.
type Agent interface {
	Handle(ctx context.Context, req *Request) (Reply, error)
}

// AgentFunc adapts a function to Agent.
type AgentFunc func(ctx context.Context, req *Request) (Reply, error)

func (f AgentFunc) Handle(ctx context.Context, req *Request) (Reply, error) {
	return f(ctx, req)
}

// Deps are the collaborators handlers are built from. Weather, Executor,
// Audit and History may be nil; Host defaults to the local machine.
type Deps struct {
	Completer      Completer
	Prompts        *Prompts
	Weather        Forecaster
	Host           hostinfo.Source
	Executor       Executor
	Audit          Recorder
	History        HistorySource
	Distro         string
	SandboxEnabled bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Handlers builds one handler per agent.
func Handlers(d Deps) map[archchan.AgentName]Agent {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Host == nil {
		d.Host = hostinfo.Host{}
	}
	if d.Distro == "" {
		d.Distro = "Linux"
	}
	return map[archchan.AgentName]Agent{
		archchan.LinuxCommand:      &linuxCommand{deps: d},
		archchan.Weather:           &weatherAgent{deps: d},
		archchan.FriendChat:        &chatAgent{deps: d, prompt: "friend_chat", fallback: friendFallback},
		archchan.WebSearch:         &webSearch{deps: d},
		archchan.Calculator:        &calculator{deps: d},
		archchan.SystemInfo:        &systemInfo{deps: d},
		archchan.SecurityAdvisor:   &chatAgent{deps: d, prompt: "security_advisor", fallback: securityFallback},
		archchan.VulnerabilityInfo: &vulnerabilityInfo{deps: d},
		archchan.HashChecker:       &hashChecker{deps: d},
	}
}
