// Package index keeps an in-memory view of the host's shell history:
// the most recent commands and, when an embedding API is configured,
// an HNSW graph for finding earlier commands similar to a request.
package index

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

const (
	indexBatchSize = 32
	// bytesPerLine is the read-ahead estimate used when tailing history files.
	bytesPerLine = 100
)

// Indexer reads and indexes a shell history file.
type Indexer struct {
	historyPath        string
	embedder           *Embedder
	maxHistoryCommands int
	ttl                time.Duration

	mu       sync.RWMutex
	graph    *hnsw.Graph[string] // keyed by command hash
	commands map[string]string   // hash -> redacted command text

	stopCh    chan struct{}
	initDone  chan struct{}
	initOnce  sync.Once
	closeOnce sync.Once
}

// NewIndexer creates an indexer over the most recently modified history file.
// If embedder is nil, semantic search is disabled (RecentCommands still works).
func NewIndexer(embedder *Embedder, maxHistoryCommands int, ttl time.Duration) *Indexer {
	return NewIndexerForFile(resolveHistoryPath(), embedder, maxHistoryCommands, ttl)
}

// NewIndexerForFile creates an indexer over an explicit history file.
func NewIndexerForFile(historyPath string, embedder *Embedder, maxHistoryCommands int, ttl time.Duration) *Indexer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Indexer{
		historyPath:        historyPath,
		embedder:           embedder,
		maxHistoryCommands: maxHistoryCommands,
		ttl:                ttl,
		graph:              hnsw.NewGraph[string](),
		commands:           make(map[string]string),
		stopCh:             make(chan struct{}),
		initDone:           make(chan struct{}),
	}
}

// resolveHistoryPath picks the most recently modified of $HISTFILE,
// ~/.zsh_history and ~/.bash_history.
func resolveHistoryPath() string {
	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(home, ".zsh_history"),
		filepath.Join(home, ".bash_history"),
	}
	if hf := os.Getenv("HISTFILE"); hf != "" {
		candidates = append([]string{hf}, candidates...)
	}

	var bestPath string
	var bestTime time.Time
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().After(bestTime) {
			bestTime = info.ModTime()
			bestPath = path
		}
	}
	return bestPath
}

// RecentCommands returns up to n of the newest commands, oldest first.
func (idx *Indexer) RecentCommands(n int) []string {
	if idx.historyPath == "" || n <= 0 {
		return nil
	}
	var cmds []string
	for _, line := range readLastLines(idx.historyPath, n) {
		if cmd := parseHistoryLine(line); cmd != "" {
			cmds = append(cmds, cmd)
		}
	}
	if len(cmds) > n {
		cmds = cmds[len(cmds)-n:]
	}
	return cmds
}

type pendingCommand struct {
	hash string
	cmd  string
}

// IndexHistory embeds history commands that are not yet in the graph.
func (idx *Indexer) IndexHistory(ctx context.Context) error {
	if idx.embedder == nil || idx.historyPath == "" {
		return nil
	}

	var pending []pendingCommand
	idx.mu.RLock()
	for _, cmd := range idx.readTailCommands() {
		hash := hashCommand(cmd)
		if _, exists := idx.graph.Lookup(hash); !exists {
			pending = append(pending, pendingCommand{hash: hash, cmd: cmd})
		}
	}
	idx.mu.RUnlock()

	if len(pending) == 0 {
		return nil
	}

	var nodes []hnsw.Node[string]
	texts := make(map[string]string, len(pending))

	for start := 0; start < len(pending); start += indexBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := pending[start:min(start+indexBatchSize, len(pending))]

		redacted := make([]string, len(batch))
		for i, p := range batch {
			redacted[i] = RedactCommand(p.cmd)
		}

		vectors, err := idx.embedder.EmbedBatch(ctx, redacted)
		if err != nil {
			slog.Error("batch embed error", "error", err)
			continue
		}
		for i, p := range batch {
			if i >= len(vectors) {
				break
			}
			nodes = append(nodes, hnsw.MakeNode(p.hash, vectors[i]))
			texts[p.hash] = redacted[i]
		}
	}

	if len(nodes) > 0 {
		idx.mu.Lock()
		idx.graph.Add(nodes...)
		for k, v := range texts {
			idx.commands[k] = v
		}
		idx.mu.Unlock()
	}
	slog.Debug("history indexed", "model", idx.embedder.Model(), "added", len(nodes), "total", idx.Len())
	return nil
}

// readTailCommands returns the last maxHistoryCommands distinct commands.
func (idx *Indexer) readTailCommands() []string {
	lines := readLastLines(idx.historyPath, idx.maxHistoryCommands)
	cmds := make([]string, 0, len(lines))
	seen := make(map[string]bool)
	for _, line := range lines {
		cmd := parseHistoryLine(line)
		if cmd == "" || seen[cmd] {
			continue
		}
		seen[cmd] = true
		cmds = append(cmds, cmd)
	}
	return cmds
}

// StartRefreshLoop indexes immediately, then again every TTL interval,
// until Close is called. Without an embedder it only marks init as done.
func (idx *Indexer) StartRefreshLoop() {
	if idx.embedder == nil {
		idx.initOnce.Do(func() { close(idx.initDone) })
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-idx.stopCh
		cancel()
	}()

	if err := idx.IndexHistory(ctx); err != nil {
		slog.Error("initial indexing error", "error", err)
	}
	idx.initOnce.Do(func() { close(idx.initDone) })

	ticker := time.NewTicker(idx.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-idx.stopCh:
			return
		case <-ticker.C:
			if err := idx.IndexHistory(ctx); err != nil {
				slog.Error("periodic re-indexing error", "error", err)
			}
		}
	}
}

// InitDone is closed after the first IndexHistory pass completes.
func (idx *Indexer) InitDone() <-chan struct{} {
	return idx.initDone
}

// Len returns the number of indexed commands.
func (idx *Indexer) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.graph.Len()
}

// SearchRelevant embeds the query and returns the topK most similar commands.
func (idx *Indexer) SearchRelevant(ctx context.Context, query string, topK int) ([]string, error) {
	if idx.embedder == nil || topK <= 0 {
		return nil, nil
	}

	queryVec, err := idx.embedder.Embed(ctx, RedactCommand(query))
	if err != nil {
		return nil, err
	}
	return idx.searchVector(queryVec, topK), nil
}

func (idx *Indexer) searchVector(vec []float32, topK int) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph.Len() == 0 {
		return nil
	}
	neighbors := idx.graph.Search(vec, topK)
	commands := make([]string, len(neighbors))
	for i, n := range neighbors {
		commands[i] = idx.commands[n.Key]
	}
	return commands
}

// Close stops the refresh loop.
func (idx *Indexer) Close() {
	idx.closeOnce.Do(func() {
		close(idx.stopCh)
	})
}

// parseHistoryLine strips shell-specific prefixes from history lines.
// Zsh extended history looks like ": 1234567890:0;command"; bash lines are bare.
func parseHistoryLine(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	if strings.HasPrefix(line, ": ") {
		if i := strings.Index(line, ";"); i != -1 {
			return strings.TrimSpace(line[i+1:])
		}
	}
	return line
}

func hashCommand(cmd string) string {
	h := sha256.Sum256([]byte(cmd))
	return hex.EncodeToString(h[:])
}

// readLastLines returns up to n trailing lines of path, seeking near the
// end first so large history files are not read in full.
func readLastLines(path string, n int) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil
	}

	if estimate := int64(n) * bytesPerLine; estimate < info.Size() {
		if _, err := f.Seek(-estimate, io.SeekEnd); err == nil {
			reader := bufio.NewReader(f)
			reader.ReadString('\n') // partial first line
			if lines := scanLines(reader); len(lines) >= n {
				return lines[len(lines)-n:]
			}
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil
		}
	}

	lines := scanLines(f)
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

func scanLines(r io.Reader) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}
