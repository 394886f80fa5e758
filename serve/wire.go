package main

import (
	"fmt"
	"log/slog"
	"time"

	archchan "github.com/berkucuk/archchan"
	"github.com/berkucuk/archchan/agent"
	"github.com/berkucuk/archchan/audit"
	"github.com/berkucuk/archchan/generate"
	"github.com/berkucuk/archchan/hostinfo"
	"github.com/berkucuk/archchan/sandbox"
	"github.com/berkucuk/archchan/weather"
)

// services holds the long-lived collaborators built from config.
type services struct {
	dispatcher *agent.Dispatcher
	audit      *audit.Store
	closers    []func()
}

func buildServices(cfg *archchan.Config) (*services, error) {
	svc := &services{}

	prompts, err := agent.LoadPrompts(archchan.PromptDir())
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	gen := generate.NewGenerator(
		archchan.ResolveGenerationBaseURL(cfg),
		archchan.ResolveGenerationAPIKey(cfg),
		archchan.ResolveGenerationModel(cfg),
		cfg.Generation.APIType,
		cfg.Generation.MaxTokens,
		archchan.GenerationTemperature(cfg),
		time.Duration(cfg.Generation.TimeoutSeconds)*time.Second,
	)

	deps := agent.Deps{
		Completer:      gen,
		Prompts:        prompts,
		Host:           hostinfo.Host{},
		Distro:         hostinfo.Distro(hostinfo.OSReleasePath),
		SandboxEnabled: archchan.SandboxEnabled(cfg),
	}

	if key := archchan.ResolveWeatherAPIKey(cfg); key != "" {
		wc := weather.NewClient(
			cfg.Weather.BaseURL,
			key,
			time.Duration(cfg.Weather.TimeoutSeconds)*time.Second,
			time.Duration(cfg.Weather.CacheTTLMinutes)*time.Minute,
		)
		deps.Weather = wc
		svc.closers = append(svc.closers, wc.Close)
	}

	if deps.SandboxEnabled {
		deps.Executor = sandbox.NewExecutor(
			sandbox.WithShell(cfg.Sandbox.Shell),
			sandbox.WithWorkDir(cfg.Sandbox.WorkDir),
			sandbox.WithMaxOutput(cfg.Sandbox.MaxOutputBytes),
		)
	}

	if cfg.Audit.DBPath != "" {
		store, err := audit.Open(cfg.Audit.DBPath)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		deps.Audit = store
		svc.audit = store
		svc.closers = append(svc.closers, func() {
			if err := store.Close(); err != nil {
				slog.Warn("closing audit store", "error", err)
			}
		})
	}

	if gatherer := historySource(cfg); gatherer != nil {
		deps.History = gatherer
		svc.closers = append(svc.closers, gatherer.Close)
	}

	d, err := agent.NewDispatcher(agent.NewRouter(gen, prompts), agent.Handlers(deps))
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.dispatcher = d

	slog.Info("services ready",
		"model", archchan.ResolveGenerationModel(cfg),
		"distro", deps.Distro,
		"weather", deps.Weather != nil,
		"sandbox", deps.SandboxEnabled,
		"audit", svc.audit != nil,
		"history", deps.History != nil,
		"embedding", deps.History != nil && archchan.EmbeddingEnabled(cfg),
	)
	return svc, nil
}

// historySource returns a shell history gatherer, or nil when history is disabled.
func historySource(cfg *archchan.Config) *generate.Gatherer {
	if !archchan.HistoryEnabled(cfg) {
		return nil
	}
	return generate.NewGatherer(cfg)
}

// Close releases resources in reverse order of creation.
func (svc *services) Close() {
	for i := len(svc.closers) - 1; i >= 0; i-- {
		svc.closers[i]()
	}
	svc.closers = nil
}
