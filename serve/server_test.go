package main

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	archchan "github.com/berkucuk/archchan"
	"github.com/berkucuk/archchan/agent"
)

// echoDispatcher answers with the session's language and the request text.
type echoDispatcher struct {
	mu       sync.Mutex
	requests []agent.Request
}

func (d *echoDispatcher) Dispatch(_ context.Context, req *agent.Request) *archchan.Response {
	d.mu.Lock()
	d.requests = append(d.requests, *req)
	d.mu.Unlock()
	return &archchan.Response{
		Type:    archchan.FriendChat.Tag(),
		Content: req.Language + ":" + req.Text,
		Voice:   req.Text,
	}
}

func (d *echoDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

func newTestServer(t *testing.T, d Dispatcher) *Server {
	t.Helper()
	srv, err := NewServerWithDispatcher("127.0.0.1:0", d, Options{MaxFrameBytes: 4096})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Close() })
	go srv.Serve()
	return srv
}

type testClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, srv *Server) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(t *testing.T, raw string) {
	t.Helper()
	if _, err := c.conn.Write([]byte(raw)); err != nil {
		t.Fatal(err)
	}
}

func (c *testClient) recv(t *testing.T) *archchan.Response {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := c.r.ReadString('\n')
	if err != nil {
		t.Fatalf("no response from server: %v", err)
	}
	resp, err := archchan.DecodeResponse(strings.TrimSuffix(line, "\n"))
	if err != nil {
		t.Fatalf("decode %q: %v", line, err)
	}
	return resp
}

func (c *testClient) ask(t *testing.T, lang, text string) *archchan.Response {
	t.Helper()
	c.send(t, archchan.EncodeRequest(&archchan.Request{Language: lang, Text: text})+"\n")
	return c.recv(t)
}

func TestSessionEchoesLanguageAndText(t *testing.T) {
	srv := newTestServer(t, &echoDispatcher{})
	c := dial(t, srv)

	resp := c.ask(t, "Turkish", "merhaba")
	if resp.Type != "FRIEND_CHAT" {
		t.Errorf("expected FRIEND_CHAT, got %q", resp.Type)
	}
	if resp.Content != "Turkish:merhaba" {
		t.Errorf("unexpected content %q", resp.Content)
	}
}

func TestSessionMissingSeparatorKeepsLanguage(t *testing.T) {
	srv := newTestServer(t, &echoDispatcher{})
	c := dial(t, srv)

	c.ask(t, "German", "hallo")
	c.send(t, "just some text\n")
	resp := c.recv(t)
	if resp.Content != "German:just some text" {
		t.Errorf("expected previous language to be kept, got %q", resp.Content)
	}
}

func TestSessionDefaultLanguage(t *testing.T) {
	srv := newTestServer(t, &echoDispatcher{})
	c := dial(t, srv)

	c.send(t, "no header\n")
	resp := c.recv(t)
	if resp.Content != archchan.DefaultLanguage+":no header" {
		t.Errorf("unexpected content %q", resp.Content)
	}
}

func TestSessionMultilineTextRoundTrip(t *testing.T) {
	srv := newTestServer(t, &echoDispatcher{})
	c := dial(t, srv)

	resp := c.ask(t, "English", "line one\nline two | LANG:x")
	if resp.Content != "English:line one\nline two | LANG:x" {
		t.Errorf("unexpected content %q", resp.Content)
	}
}

func TestSessionCoalescedFrames(t *testing.T) {
	d := &echoDispatcher{}
	srv := newTestServer(t, d)
	c := dial(t, srv)

	c.send(t, "LANG:English|MSG:one\nLANG:English|MSG:two\r\nLANG:English|MSG:three\n")
	for _, want := range []string{"one", "two", "three"} {
		resp := c.recv(t)
		if resp.Content != "English:"+want {
			t.Errorf("expected %q, got %q", "English:"+want, resp.Content)
		}
	}
	if d.count() != 3 {
		t.Errorf("expected 3 dispatches, got %d", d.count())
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	d := &echoDispatcher{}
	srv := newTestServer(t, d)

	langs := []string{"English", "Japanese", "Turkish", "Spanish"}
	var wg sync.WaitGroup
	errs := make(chan string, len(langs)*5)
	for _, lang := range langs {
		c := dial(t, srv)
		c.ask(t, lang, "hello")
		wg.Add(1)
		go func(lang string, c *testClient) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				c.conn.Write([]byte("again\n"))
				c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
				line, err := c.r.ReadString('\n')
				if err != nil {
					errs <- err.Error()
					return
				}
				resp, err := archchan.DecodeResponse(strings.TrimSuffix(line, "\n"))
				if err != nil {
					errs <- err.Error()
					return
				}
				if resp.Content != lang+":again" {
					errs <- "session " + lang + " got " + resp.Content
				}
			}
		}(lang, c)
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}

	ids := make(map[string]bool)
	d.mu.Lock()
	for _, r := range d.requests {
		ids[r.SessionID] = true
		if r.Conversation == nil {
			t.Error("expected every request to carry a conversation")
		}
	}
	d.mu.Unlock()
	if len(ids) != len(langs) {
		t.Errorf("expected %d distinct session ids, got %d", len(langs), len(ids))
	}
}

func TestSessionOversizedFrameClosesConnection(t *testing.T) {
	srv := newTestServer(t, &echoDispatcher{})
	c := dial(t, srv)

	c.send(t, "LANG:English|MSG:"+strings.Repeat("x", 8192)+"\n")
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.r.ReadString('\n'); err == nil {
		t.Error("expected connection to be closed")
	}
}

func TestActiveSessionsAndClose(t *testing.T) {
	srv := newTestServer(t, &echoDispatcher{})
	c1 := dial(t, srv)
	c2 := dial(t, srv)
	c1.ask(t, "English", "a")
	c2.ask(t, "English", "b")

	if n := srv.ActiveSessions(); n != 2 {
		t.Errorf("expected 2 active sessions, got %d", n)
	}

	c1.conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for srv.ActiveSessions() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := srv.ActiveSessions(); n != 1 {
		t.Errorf("expected 1 active session after disconnect, got %d", n)
	}

	done := make(chan struct{})
	go func() {
		srv.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	if n := srv.ActiveSessions(); n != 0 {
		t.Errorf("expected no sessions after Close, got %d", n)
	}
}

// blockingDispatcher waits for its context, which the server cancels on Close.
type blockingDispatcher struct {
	started chan struct{}
}

func (d *blockingDispatcher) Dispatch(ctx context.Context, _ *agent.Request) *archchan.Response {
	close(d.started)
	<-ctx.Done()
	return archchan.ErrorResponse(archchan.TagError, "cancelled", "cancelled")
}

func TestCloseCancelsInFlightDispatch(t *testing.T) {
	d := &blockingDispatcher{started: make(chan struct{})}
	srv := newTestServer(t, d)
	c := dial(t, srv)
	c.send(t, "LANG:English|MSG:wait\n")

	select {
	case <-d.started:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch never started")
	}

	done := make(chan struct{})
	go func() {
		srv.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not cancel the in-flight dispatch")
	}
}
