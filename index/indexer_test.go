package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeHistory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".bash_history")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseHistoryLine(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{": 1234567890:0;git status", "git status"},
		{": 1234567890:0;", ""},
		{"ls -la /tmp", "ls -la /tmp"},
		{"  git commit -m 'test'  ", "git commit -m 'test'"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := parseHistoryLine(tt.input); got != tt.expected {
			t.Errorf("parseHistoryLine(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestRecentCommandsReadsTail(t *testing.T) {
	path := writeHistory(t, "ls\ncd /tmp\ngit status\npwd\necho hello\n")
	idx := NewIndexerForFile(path, nil, 3000, time.Hour)

	cmds := idx.RecentCommands(3)
	if len(cmds) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(cmds))
	}
	if cmds[0] != "git status" || cmds[2] != "echo hello" {
		t.Errorf("unexpected commands %q", cmds)
	}
}

func TestRecentCommandsLargeFileSeeks(t *testing.T) {
	var content []byte
	for i := 0; i < 5000; i++ {
		content = append(content, []byte(": 1700000000:0;echo line\n")...)
	}
	content = append(content, []byte(": 1700000000:0;uname -a\n")...)
	path := writeHistory(t, string(content))

	cmds := NewIndexerForFile(path, nil, 3000, time.Hour).RecentCommands(2)
	if len(cmds) != 2 || cmds[1] != "uname -a" {
		t.Errorf("unexpected commands %q", cmds)
	}
}

func TestRecentCommandsMissingFile(t *testing.T) {
	idx := NewIndexerForFile("/nonexistent/history", nil, 3000, time.Hour)
	if cmds := idx.RecentCommands(5); len(cmds) != 0 {
		t.Errorf("expected no commands, got %q", cmds)
	}
}

func TestNilEmbedderIsNoop(t *testing.T) {
	idx := NewIndexerForFile(writeHistory(t, "ls\n"), nil, 3000, time.Hour)
	if err := idx.IndexHistory(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cmds, err := idx.SearchRelevant(context.Background(), "ls", 5)
	if err != nil || cmds != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", cmds, err)
	}

	go idx.StartRefreshLoop()
	select {
	case <-idx.InitDone():
	case <-time.After(time.Second):
		t.Fatal("InitDone not closed for nil embedder")
	}
	idx.Close()
}

func TestNewIndexerUsesHISTFILE(t *testing.T) {
	histFile := writeHistory(t, "test\n")
	t.Setenv("HISTFILE", histFile)
	idx := NewIndexer(nil, 3000, time.Hour)
	if idx.historyPath != histFile {
		t.Errorf("expected historyPath %s, got %s", histFile, idx.historyPath)
	}
}

func TestIndexAndSearchRelevant(t *testing.T) {
	srv := fakeEmbeddingServer(t)
	path := writeHistory(t, "git status\ndocker ps\nls -la\ngit status\nexport TOKEN=abc\n")
	idx := NewIndexerForFile(path, NewEmbedder(srv.URL, "k", "m"), 100, time.Hour)

	if err := idx.IndexHistory(context.Background()); err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 4 {
		t.Fatalf("expected 4 distinct commands indexed, got %d", idx.Len())
	}

	cmds, err := idx.SearchRelevant(context.Background(), "show me git changes", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 1 || cmds[0] != "git status" {
		t.Errorf("expected git status, got %q", cmds)
	}

	// A second pass adds nothing new.
	if err := idx.IndexHistory(context.Background()); err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 4 {
		t.Errorf("expected index to stay at 4, got %d", idx.Len())
	}

	for _, c := range idx.commands {
		if c == "export TOKEN=abc" {
			t.Error("stored command was not redacted")
		}
	}
}

func TestHashCommandDeterministic(t *testing.T) {
	if hashCommand("git status") != hashCommand("git status") {
		t.Error("same command should produce same hash")
	}
	if hashCommand("git status") == hashCommand("git log") {
		t.Error("different commands should produce different hashes")
	}
}
