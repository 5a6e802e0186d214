package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/heravelli/tollgate/internal/observe"
)

// Frame is one JSON message exchanged with a browser client. Clients send
// {"type":"command","content":…} frames; the gateway replies with one
// {"type":"turn",…} frame per transcript turn the command produced.
type Frame struct {
	Type    string `json:"type"`
	Role    Role   `json:"role,omitempty"`
	Content string `json:"content"`
}

// Frame types.
const (
	FrameCommand = "command"
	FrameTurn    = "turn"
	FrameError   = "error"
)

// SessionFactory builds a fresh session for one WebSocket connection.
type SessionFactory func(ctx context.Context) (*Session, error)

// Gateway upgrades HTTP requests into WebSocket chat sessions. Each
// connection gets its own session, and commands on one connection are
// processed strictly in order.
type Gateway struct {
	newSession SessionFactory
}

// NewGateway returns a gateway that creates per-connection sessions with
// newSession.
func NewGateway(newSession SessionFactory) *Gateway {
	return &Gateway{newSession: newSession}
}

// ServeHTTP implements [http.Handler].
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed",
			slog.String("error", err.Error()))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session ended")

	ctx := r.Context()
	log := observe.Logger(ctx)

	sess, err := g.newSession(ctx)
	if err != nil {
		log.Error("failed to create chat session", slog.String("error", err.Error()))
		_ = writeFrame(ctx, conn, Frame{Type: FrameError, Content: "failed to start session"})
		return
	}
	defer sess.Close()

	log.Info("chat session opened", slog.String("session", sess.ID()))

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			log.Info("chat session closed", slog.String("session", sess.ID()))
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		command := decodeCommand(data)
		if command == "" {
			_ = writeFrame(ctx, conn, Frame{Type: FrameError, Content: "empty command"})
			continue
		}

		for _, turn := range sess.Process(ctx, command) {
			if err := writeFrame(ctx, conn, Frame{Type: FrameTurn, Role: turn.Role, Content: turn.Content}); err != nil {
				return
			}
		}
	}
}

// decodeCommand extracts the command text from an incoming message. Bare
// text that is not a command frame is accepted as the command itself.
func decodeCommand(data []byte) string {
	var f Frame
	if err := json.Unmarshal(data, &f); err == nil && f.Type == FrameCommand {
		return strings.TrimSpace(f.Content)
	}
	return strings.TrimSpace(string(data))
}

// writeFrame marshals f and sends it as one text message.
func writeFrame(ctx context.Context, conn *websocket.Conn, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
