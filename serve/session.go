package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	archchan "github.com/berkucuk/archchan"
	"github.com/berkucuk/archchan/agent"
	"github.com/berkucuk/archchan/generate"
)

// frameConn is a transport carrying one protocol frame per read or write.
type frameConn interface {
	ReadFrame(ctx context.Context) (string, error)
	WriteFrame(ctx context.Context, frame string) error
	Close() error
}

// Session is the state of one client connection. It is only touched by the
// goroutine running its loop.
type Session struct {
	ID           string
	Remote       string
	Language     string
	Conversation *generate.Conversation
	conn         frameConn
}

func newSession(conn frameConn, remote, language string, maxTurns int) *Session {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &Session{
		ID:           id.String(),
		Remote:       remote,
		Language:     language,
		Conversation: generate.NewConversation(maxTurns),
		conn:         conn,
	}
}

// run reads a frame, dispatches it and writes exactly one response before
// reading the next. It returns when the connection fails or ctx is done.
func (sess *Session) run(ctx context.Context, d Dispatcher) {
	logger := slog.With("session", sess.ID, "remote", sess.Remote)
	logger.Info("session started")
	defer logger.Info("session ended", "turns", sess.Conversation.Turns())

	for {
		frame, err := sess.conn.ReadFrame(ctx)
		if err != nil {
			if !isClosed(err) && ctx.Err() == nil {
				logger.Warn("read failed", "error", err)
			}
			return
		}
		logger.Debug("request", "data", frame)

		req, err := archchan.DecodeRequest(frame, sess.Language)
		if err != nil {
			logger.Warn("malformed request frame", "error", err, "language", sess.Language)
		}
		if req.Language != sess.Language {
			logger.Info("session language changed", "from", sess.Language, "to", req.Language)
			sess.Language = req.Language
		}

		resp := d.Dispatch(ctx, &agent.Request{
			SessionID:    sess.ID,
			Language:     sess.Language,
			Text:         req.Text,
			Conversation: sess.Conversation,
		})

		out := archchan.EncodeResponse(resp)
		logger.Debug("response", "data", out)
		if err := sess.conn.WriteFrame(ctx, out); err != nil {
			logger.Warn("write failed", "error", err)
			return
		}
	}
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) ||
		websocket.CloseStatus(err) != -1
}

// tcpConn frames a byte stream with newline terminators.
type tcpConn struct {
	conn   net.Conn
	reader *archchan.FrameReader
}

func newTCPConn(conn net.Conn, maxFrameBytes int) *tcpConn {
	return &tcpConn{conn: conn, reader: archchan.NewFrameReader(conn, maxFrameBytes)}
}

func (c *tcpConn) ReadFrame(context.Context) (string, error) {
	return c.reader.ReadFrame()
}

func (c *tcpConn) WriteFrame(_ context.Context, frame string) error {
	return archchan.WriteFrame(c.conn, frame)
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

// wsConn carries one frame per WebSocket text message.
type wsConn struct {
	ws *websocket.Conn
}

func newWSConn(ws *websocket.Conn, maxFrameBytes int) *wsConn {
	if maxFrameBytes <= 0 {
		maxFrameBytes = archchan.DefaultMaxFrameBytes
	}
	ws.SetReadLimit(int64(maxFrameBytes))
	return &wsConn{ws: ws}
}

func (c *wsConn) ReadFrame(ctx context.Context) (string, error) {
	_, data, err := c.ws.Read(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (c *wsConn) WriteFrame(ctx context.Context, frame string) error {
	return c.ws.Write(ctx, websocket.MessageText, []byte(frame))
}

func (c *wsConn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "session ended")
}
