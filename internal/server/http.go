package server

import (
	"io"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/husky/internal/logging"
)

const (
	// PreflightPath is where clients ask for admission before opening a socket
	PreflightPath = "/preconnect.php"

	preflightOK   = "Ok"
	preflightBusy = "Busy"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Terminal clients send no Origin header; browsers are not a target.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler returns the relay's HTTP routes: the preflight endpoint and the
// WebSocket upgrade on every other path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(PreflightPath, s.handlePreflight)
	mux.HandleFunc("/", s.handleSocket)
	return mux
}

// handlePreflight answers "Ok" while the relay has room and "Busy" otherwise.
// Any body other than "Ok" makes the client give up before dialing.
func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path)

	body := preflightOK
	if s.full() {
		body = preflightBusy
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)

	logging.LogHTTPResponse(r.RemoteAddr, http.StatusOK, body)
}

func (s *Server) full() bool {
	return s.cfg.MaxClients > 0 && s.hub.Count() >= s.cfg.MaxClients
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path)

	if s.full() {
		logging.Warn("Refusing socket, relay full", zap.String("remote_addr", r.RemoteAddr))
		http.Error(w, preflightBusy, http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	client := NewClient(s.hub, conn, s.cfg.RateLimit, s.cfg.RateBurst)
	s.hub.Register(client)
	logging.LogConnection(client.remote, "connection_accepted")
	logging.Debug("Client registered",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.remote),
	)

	go client.WritePump()
	go client.ReadPump()
}
