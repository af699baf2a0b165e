// Package httpapi exposes the agent registry over REST and chat
// sessions over a websocket.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wilhg/agentchat/pkg/adapters/llm"
	"github.com/wilhg/agentchat/pkg/agent"
	"github.com/wilhg/agentchat/pkg/capability"
	"github.com/wilhg/agentchat/pkg/errmodel"
	"github.com/wilhg/agentchat/pkg/session"
	"github.com/wilhg/agentchat/pkg/tool"
	"github.com/wilhg/agentchat/pkg/transcript"
)

// Options wires the server's collaborators.
type Options struct {
	Agents       *agent.Store
	Capabilities *capability.Registry
	Catalog      *tool.Catalog
	Streamer     llm.Streamer
	Transcripts  *transcript.Store
	Logger       *slog.Logger
}

// Server serves GET /api/agents, GET /api/agents/{name}, and the chat
// websocket at /ws/chat/{name}.
type Server struct {
	agents       *agent.Store
	capabilities *capability.Registry
	catalog      *tool.Catalog
	streamer     llm.Streamer
	transcripts  *transcript.Store
	log          *slog.Logger
	upgrader     websocket.Upgrader
}

// NewServer builds a Server from its collaborators.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		agents:       opts.Agents,
		capabilities: opts.Capabilities,
		catalog:      opts.Catalog,
		streamer:     opts.Streamer,
		transcripts:  opts.Transcripts,
		log:          logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the routed, trace-instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/agents", s.handleListAgents)
	mux.HandleFunc("GET /api/agents/{name}", s.handleGetAgent)
	mux.HandleFunc("/ws/chat/{name}", s.handleChat)
	return otelhttp.NewHandler(mux, "httpapi")
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	names, err := s.agents.List()
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	out := make([]*agent.Agent, 0, len(names))
	for _, name := range names {
		a, err := s.agents.Load(name)
		if err != nil {
			errmodel.WriteHTTP(w, r, err)
			return
		}
		out = append(out, a)
	}
	writeJSON(w, map[string]any{"agents": out})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := s.agents.Load(r.PathValue("name"))
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, a)
}

// inbound is a client-to-server websocket frame.
type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	a, err := s.agents.Load(r.PathValue("name"))
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	sess, err := session.New(ctx, session.Options{
		Agent:        a,
		Agents:       s.agents,
		Capabilities: s.capabilities,
		Catalog:      s.catalog,
		Streamer:     s.streamer,
		Transcripts:  s.transcripts,
		Logger:       s.log,
	})
	if err != nil {
		_ = conn.WriteJSON(session.ErrorEvent(err))
		return
	}
	defer sess.Close()

	sink := &wsSink{conn: conn}
	if err := sink.Send(ctx, sess.Info()); err != nil {
		return
	}

	for {
		var in inbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("websocket read", "agent", a.Name, "error", err)
			}
			return
		}
		switch in.Type {
		case "user_message":
			if err := sess.HandleUserMessage(ctx, in.Content, sink); err != nil {
				if sendErr := sink.Send(ctx, session.ErrorEvent(err)); sendErr != nil {
					return
				}
			}
		case "clear_history":
			if err := sess.ClearHistory(ctx); err != nil {
				if sendErr := sink.Send(ctx, session.ErrorEvent(err)); sendErr != nil {
					return
				}
				continue
			}
			if err := sink.Send(ctx, session.Info("History cleared", sess.Capabilities(), sess.GrantedTools())); err != nil {
				return
			}
		case "get_capabilities":
			if err := sink.Send(ctx, sess.Info()); err != nil {
				return
			}
		default:
			ev := session.ErrorEvent(errmodel.Validation("unknown_message_type", "unknown message type: "+in.Type, nil))
			if err := sink.Send(ctx, ev); err != nil {
				return
			}
		}
	}
}

// wsSink delivers session events over one websocket connection. Writes
// are serialized; gorilla connections do not allow concurrent writers.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Send(ctx context.Context, ev session.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
