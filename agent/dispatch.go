package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	archchan "github.com/berkucuk/archchan"
	"github.com/berkucuk/archchan/extract"
)

const (
	errorVoice      = "An error occurred."
	agentErrorVoice = "Something went wrong with my internal processing, sowwy!"
	extractionVoice = "Sorry, I got a bit tangled reading my own answer. Could you try again?"
	emptyInputText  = "I didn't catch anything there, master. Could you say that again?"
)

// profile is the presentation of one agent's replies.
type profile struct {
	// prefix is prepended to display content, never to spoken text.
	prefix string
	// subject names what the agent's extraction step reads, for error messages.
	subject string
}

var profiles = map[archchan.AgentName]profile{
	archchan.LinuxCommand:      {prefix: "Linux Chan: ", subject: "command structure"},
	archchan.Weather:           {prefix: "Linux Chan Weather: ", subject: "city extraction"},
	archchan.FriendChat:        {prefix: "Linux Chan: "},
	archchan.WebSearch:         {prefix: "Linux Chan Web Search: ", subject: "search query extraction"},
	archchan.Calculator:        {prefix: "Linux Chan Calculator: ", subject: "calculation extraction"},
	archchan.SystemInfo:        {prefix: "Linux Chan System Info:\n", subject: "system info type extraction"},
	archchan.SecurityAdvisor:   {prefix: "Linux Chan Security Advice: "},
	archchan.VulnerabilityInfo: {prefix: "Linux Chan Vulnerability Info: ", subject: "vulnerability query extraction"},
	archchan.HashChecker:       {prefix: "Linux Chan Hash Tool: ", subject: "hash request extraction"},
}

// Dispatcher routes a request and always produces exactly one response.
type Dispatcher struct {
	router   *Router
	handlers map[archchan.AgentName]Agent
}

// NewDispatcher fails when any AgentName lacks a handler.
func NewDispatcher(router *Router, handlers map[archchan.AgentName]Agent) (*Dispatcher, error) {
	var missing []string
	for _, name := range archchan.AgentNames {
		if handlers[name] == nil {
			missing = append(missing, string(name))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("no handler for agents: %s", strings.Join(missing, ", "))
	}
	return &Dispatcher{router: router, handlers: handlers}, nil
}

// Dispatch classifies req and runs the selected handler. Handler errors and
// panics become error-tagged responses.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *archchan.Response {
	if strings.TrimSpace(req.Text) == "" {
		return archchan.ErrorResponse(archchan.TagError, emptyInputText, errorVoice)
	}

	name, reply, err := d.run(ctx, req)
	p := profiles[name]
	if err != nil {
		return errorResponse(name, p, err)
	}

	voice := reply.Voice
	if voice == "" {
		voice = reply.Content
	}
	return &archchan.Response{
		Type:    name.Tag(),
		Content: p.prefix + reply.Content,
		Voice:   voice,
		Output:  reply.Output,
	}
}

// run classifies req and calls its handler. A panic in either step is
// recovered and returned as an error.
func (d *Dispatcher) run(ctx context.Context, req *Request) (name archchan.AgentName, reply Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("agent panicked", "agent", name, "panic", r, "stack", string(debug.Stack()))
			if name == "" {
				err = fmt.Errorf("routing panicked: %v", r)
			} else {
				err = fmt.Errorf("agent %s panicked: %v", name, r)
			}
		}
	}()

	name = d.router.Classify(ctx, req.Text)
	slog.Info("request routed", "session", req.SessionID, "agent", name, "input", truncate(req.Text, 60))
	reply, err = d.handlers[name].Handle(ctx, req)
	return name, reply, err
}

func errorResponse(name archchan.AgentName, p profile, err error) *archchan.Response {
	var perr *extract.ParseError
	if errors.As(err, &perr) {
		slog.Warn("model reply could not be parsed", "agent", name, "snippet", perr.Snippet)
		content := fmt.Sprintf("Error: My AI brain had a hiccup processing the %s (XML Parse Error). Original response snippet: %s",
			p.subject, perr.Snippet)
		return archchan.ErrorResponse(archchan.TagExtractionError, p.prefix+content, extractionVoice)
	}
	var merr *extract.MissingFieldError
	if errors.As(err, &merr) {
		slog.Warn("model reply is missing a field", "agent", name, "field", merr.Field)
		content := fmt.Sprintf("Error: Could not extract a valid <%s> from the AI's %s.", merr.Field, p.subject)
		return archchan.ErrorResponse(archchan.TagExtractionError, p.prefix+content, extractionVoice)
	}

	slog.Error("agent failed", "agent", name, "error", err)
	content := "[Agent Logic Error] I got a bit confused with that, master: " + err.Error()
	return archchan.ErrorResponse(archchan.TagAgentError, content, agentErrorVoice)
}
