package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/husky/internal/discovery"
	"github.com/muurk/husky/internal/logging"
	"github.com/muurk/husky/internal/version"
)

// shutdownTimeout bounds how long Start waits for the HTTP server to drain
const shutdownTimeout = 10 * time.Second

// Server is the Husky relay: preflight endpoint, WebSocket hub and an
// optional mDNS announcement.
type Server struct {
	cfg       Config
	hub       *Hub
	tlsConfig *tls.Config
	http      *http.Server
	listener  net.Listener
	ad        *discovery.Advertisement
}

// New creates a relay from a validated configuration. Logging must already
// be initialized.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Server{
		cfg: cfg,
		hub: NewHub(cfg),
	}

	if cfg.TLSEnabled() {
		tlsConfig, err := NewTLSConfig(cfg.CertPath, cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		s.tlsConfig = tlsConfig
	}

	s.http = &http.Server{
		Handler:           s.Handler(),
		TLSConfig:         s.tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Hub exposes the relay state
func (s *Server) Hub() *Hub {
	return s.hub
}

// Listen binds the configured address. TLS is layered on when configured.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until Shutdown. It returns nil on a clean stop.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	err := s.http.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Start listens, announces the relay and blocks until a shutdown signal or
// a serve error.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	logging.Info("Starting Husky relay",
		zap.String("name", s.cfg.Name),
		zap.String("addr", s.listener.Addr().String()),
		zap.Int("users", len(s.cfg.Users)),
		zap.Int("max_clients", s.cfg.MaxClients),
		zap.String("version", version.Short()),
	)
	logging.Info("TLS Configuration", zap.Any("tls_info", GetTLSInfo(s.tlsConfig)))

	if s.cfg.Advertise {
		s.advertise()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve()
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping relay...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(ctx)
	case err := <-errChan:
		s.withdraw()
		return err
	}
}

func (s *Server) advertise() {
	port := s.cfg.Port
	if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}

	ad, err := discovery.Advertise(discovery.AdvertiseOptions{
		Instance: s.cfg.Name,
		Port:     port,
		TLS:      s.cfg.TLSEnabled(),
		Version:  version.Short(),
	})
	if err != nil {
		// The relay still works by address
		logging.Warn("mDNS advertisement failed", zap.Error(err))
		return
	}
	s.ad = ad
	logging.Info("Advertising relay over mDNS",
		zap.String("service", discovery.ServiceType),
		zap.String("instance", s.cfg.Name),
	)
}

func (s *Server) withdraw() {
	if s.ad != nil {
		s.ad.Shutdown()
		s.ad = nil
	}
}

// Shutdown stops accepting connections and closes every client socket
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down relay...")
	s.withdraw()

	err := s.http.Shutdown(ctx)
	if err != nil {
		logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
	}

	// Hijacked WebSocket connections are not tracked by http.Server
	for _, c := range s.hub.Clients() {
		logging.Debug("Closing client", zap.String("client_id", c.ID))
		c.Close()
	}

	logging.Sync()
	return err
}

// ActiveClients returns the number of connected sockets
func (s *Server) ActiveClients() int {
	return s.hub.Count()
}
