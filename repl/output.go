package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/term"

	archchan "github.com/berkucuk/archchan"
)

// termWriter converts \n to \r\n when f is a terminal, since raw mode
// disables the kernel's newline translation.
func termWriter(f *os.File) io.Writer {
	if term.IsTerminal(int(f.Fd())) {
		return &crlfWriter{w: f}
	}
	return f
}

type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	_, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n")))
	return len(p), err
}

// exchange is one request/response pair in the TOML transcript.
type exchange struct {
	Request  requestEntry  `toml:"request"`
	Response responseEntry `toml:"response"`
}

type requestEntry struct {
	Timestamp time.Time `toml:"timestamp"`
	Language  string    `toml:"language"`
	Text      string    `toml:"text"`
}

type responseEntry struct {
	Type      string  `toml:"type"`
	Content   string  `toml:"content"`
	Voice     string  `toml:"voice,omitempty"`
	Output    string  `toml:"linux_output,omitempty"`
	LatencyMs float64 `toml:"latency_ms"`
}

// writeExchange appends one exchange to the transcript.
func writeExchange(w io.Writer, req *archchan.Request, resp *archchan.Response, sent time.Time, latency time.Duration) error {
	fmt.Fprintf(w, "# %s\n", strings.Repeat("═", 60))
	ex := exchange{
		Request: requestEntry{Timestamp: sent, Language: req.Language, Text: req.Text},
		Response: responseEntry{
			Type:      resp.Type,
			Content:   resp.Content,
			Voice:     resp.Voice,
			Output:    resp.Output,
			LatencyMs: float64(latency.Microseconds()) / 1000,
		},
	}
	if err := toml.NewEncoder(w).Encode(ex); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

// showResponse prints a reply for a person at the terminal.
func showResponse(w io.Writer, resp *archchan.Response) {
	fmt.Fprintf(w, "[%s] %s\n", resp.Type, resp.Content)
	if resp.Voice != "" && resp.Voice != resp.Content && !strings.HasSuffix(resp.Content, resp.Voice) {
		fmt.Fprintf(w, "  (voice) %s\n", resp.Voice)
	}
	if resp.Type == archchan.LinuxCommand.Tag() && resp.Output != "" {
		fmt.Fprintln(w, "  ── output ──")
		for _, line := range strings.Split(strings.TrimRight(resp.Output, "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	fmt.Fprintln(w)
}
