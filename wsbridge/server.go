// Package wsbridge serves the conversational API over WebSocket. Each
// connection carries JSON requests; chat turns stream back token frames
// ending with a done frame, other actions get a single JSON response.
package wsbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"tablechat/agent"
	"tablechat/llm"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Server upgrades HTTP requests and serves the chat protocol.
type Server struct {
	registry *agent.Registry
	logger   hclog.Logger
	upgrader websocket.Upgrader
}

func NewServer(registry *agent.Registry, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Server{
		registry: registry,
		logger:   logger.Named("wsbridge"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &conn{ws: ws, server: s, logger: s.logger.With("remote", r.RemoteAddr)}
	c.run(r.Context())
}

// conn is one client connection. Requests are handled sequentially; the
// write mutex serializes response frames against keepalive pings.
type conn struct {
	ws     *websocket.Conn
	server *Server
	logger hclog.Logger
	wmu    sync.Mutex
}

func (c *conn) run(ctx context.Context) {
	defer c.ws.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.pingLoop(ctx)

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("read failed", "error", err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(message, &req); err != nil {
			c.writeJSON(ErrorResponse{Error: "invalid request: " + err.Error()})
			continue
		}

		c.dispatch(ctx, &req)
	}
}

func (c *conn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.wmu.Lock()
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.wmu.Unlock()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *conn) dispatch(ctx context.Context, req *Request) {
	ag, err := c.server.registry.Get(req.Platform)
	if err != nil {
		c.writeJSON(ErrorResponse{Error: err.Error()})
		return
	}
	if req.SessionID == "" {
		c.writeJSON(ErrorResponse{Error: "session_id is required"})
		return
	}

	switch req.Action {
	case ActionChat:
		c.handleChat(ctx, ag, req)
	case ActionHistory:
		c.handleHistory(ctx, ag, req)
	case ActionClear:
		c.handleClear(ctx, ag, req)
	case ActionQuestions:
		c.handleQuestions(ctx, ag, req)
	default:
		c.writeJSON(ErrorResponse{Error: "unknown action: " + req.Action})
	}
}

// handleChat streams the turn. Every token is one frame; the stream ends
// with exactly one done frame, carrying the error text when the turn failed.
func (c *conn) handleChat(ctx context.Context, ag *agent.Agent, req *Request) {
	events, err := ag.GetStreamResponse(ctx, req.Messages, req.SessionID)
	if err != nil {
		c.writeJSON(Frame{Content: err.Error(), Done: true})
		return
	}

	for ev := range events {
		if ev.Done {
			if ev.Err != nil {
				c.writeJSON(Frame{Content: ev.Err.Error(), Done: true})
			} else {
				c.writeJSON(Frame{Content: "", Done: true})
			}
			return
		}
		if err := c.writeJSON(Frame{Content: ev.Content}); err != nil {
			// Client is gone; keep draining so the turn goroutine can
			// finish and checkpoint.
			c.logger.Warn("dropping stream frame", "session_id", req.SessionID, "error", err)
		}
	}

	// Channel closed without a done event only when the producer panicked;
	// still terminate the stream for the client.
	c.writeJSON(Frame{Content: "", Done: true})
}

func (c *conn) handleHistory(ctx context.Context, ag *agent.Agent, req *Request) {
	msgs, err := ag.GetChatHistory(ctx, req.SessionID)
	if err != nil {
		c.writeJSON(ErrorResponse{Error: err.Error()})
		return
	}
	if msgs == nil {
		msgs = []llm.Message{}
	}
	c.writeJSON(HistoryResponse{Messages: msgs})
}

func (c *conn) handleClear(ctx context.Context, ag *agent.Agent, req *Request) {
	if err := ag.ClearChatHistory(ctx, req.SessionID); err != nil {
		c.writeJSON(ErrorResponse{Error: err.Error()})
		return
	}
	c.writeJSON(AckResponse{OK: true})
}

func (c *conn) handleQuestions(ctx context.Context, ag *agent.Agent, req *Request) {
	questions, err := ag.SuggestQuestions(ctx, req.N)
	if err != nil {
		c.writeJSON(ErrorResponse{Error: err.Error()})
		return
	}
	c.writeJSON(QuestionsResponse{Questions: questions})
}

func (c *conn) writeJSON(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}
