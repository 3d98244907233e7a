// Package web exposes the live event feed over a websocket and the current
// status report as JSON.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"shell-tracker/internal/events"
	"shell-tracker/internal/logger"
	"shell-tracker/internal/report"
)

const (
	feedBuffer = 64
	writeWait  = 10 * time.Second
	pingEvery  = 30 * time.Second
)

// StatusSource supplies the data behind /api/status.
type StatusSource interface {
	ReportInput(ctx context.Context) report.Input
}

type Server struct {
	router   *http.ServeMux
	server   *http.Server
	bus      *events.Bus
	status   StatusSource
	upgrader websocket.Upgrader
}

func NewServer(addr string, bus *events.Bus, status StatusSource) *Server {
	s := &Server{
		router: http.NewServeMux(),
		bus:    bus,
		status: status,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.routes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /api/status", s.handleStatus)
	s.router.HandleFunc("GET /ws", s.handleFeed)
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	logger.Info(context.Background(), "Starting web server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rep, err := report.Build(s.status.ReportInput(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleFeed streams every bus event to the client until either side closes.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	// Subscribed before upgrading: the feed starts at the handshake.
	ch, cancel := s.bus.Subscribe(feedBuffer)
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn(r.Context(), "Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	logger.Debug(r.Context(), "Feed client connected", "remote", r.RemoteAddr)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingEvery)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			b, err := encodeEvent(ev)
			if err != nil {
				logger.Warn(r.Context(), "Dropping unencodable event", "kind", ev.Kind, "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
