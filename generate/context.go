package generate

import (
	"context"
	"log/slog"
	"time"

	archchan "github.com/berkucuk/archchan"
	"github.com/berkucuk/archchan/index"
)

const (
	recentCommandLimit  = 15
	relatedCommandLimit = 5
)

// ShellContext is host shell history handed to command-generating prompts.
type ShellContext struct {
	RecentCommands  []string
	RelatedCommands []string
}

// Gatherer collects shell history context for command requests.
type Gatherer struct {
	historyIndexer   *index.Indexer
	embeddingEnabled bool
}

// NewGatherer creates a gatherer from config and starts background indexing
// when an embedding API is configured.
func NewGatherer(cfg *archchan.Config) *Gatherer {
	var embedder *index.Embedder
	if archchan.EmbeddingEnabled(cfg) {
		embedder = index.NewEmbedder(
			archchan.ResolveEmbeddingBaseURL(cfg),
			archchan.ResolveEmbeddingAPIKey(cfg),
			cfg.Embedding.Model,
		)
	}

	maxHistory := cfg.Embedding.MaxHistoryCommands
	if maxHistory == 0 {
		maxHistory = 3000
	}
	ttlMinutes := cfg.Embedding.TTLMinutes
	if ttlMinutes == 0 {
		ttlMinutes = 60
	}

	g := newGathererWithIndexer(index.NewIndexer(embedder, maxHistory, time.Duration(ttlMinutes)*time.Minute), embedder != nil)
	go g.historyIndexer.StartRefreshLoop()
	return g
}

// newGathererWithIndexer wraps an existing indexer. The caller owns its refresh loop.
func newGathererWithIndexer(idx *index.Indexer, embeddingEnabled bool) *Gatherer {
	return &Gatherer{historyIndexer: idx, embeddingEnabled: embeddingEnabled}
}

// Gather returns recent commands and, once indexing has finished, the
// history commands most similar to query. It never blocks on indexing.
func (g *Gatherer) Gather(ctx context.Context, query string) *ShellContext {
	sc := &ShellContext{
		RecentCommands: index.RedactCommands(g.historyIndexer.RecentCommands(recentCommandLimit)),
	}
	if !g.embeddingEnabled || ctx.Err() != nil {
		return sc
	}

	select {
	case <-g.historyIndexer.InitDone():
		cmds, err := g.historyIndexer.SearchRelevant(ctx, query, relatedCommandLimit)
		if err != nil {
			slog.Warn("related command search failed", "error", err)
		} else {
			sc.RelatedCommands = cmds
		}
	default:
		// Indexing still in progress, skip semantic search
	}
	return sc
}

// Close releases resources held by the gatherer.
func (g *Gatherer) Close() {
	g.historyIndexer.Close()
}
