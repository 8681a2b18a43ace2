package config

import (
	"time"

	"github.com/muurk/husky/internal/session"
)

// CurrentVersion is the only config file layout this build understands
const CurrentVersion = 1

// Registry represents the entire client configuration file.
type Registry struct {
	Version     int               `yaml:"version"`
	Server      *Server           `yaml:"server,omitempty"`      // Relay the client logs in to
	Relays      map[string]*Relay `yaml:"relays,omitempty"`      // Relays seen by "husky scan", keyed by instance name
	Preferences *Preferences      `yaml:"preferences,omitempty"` // Timing knobs for the session engine
}

// Server is the relay profile used at login.
type Server struct {
	Name          string `yaml:"name,omitempty"`           // Shown on the login screen
	Host          string `yaml:"host"`                     // Hostname or IP
	Port          int    `yaml:"port"`                     // WebSocket port
	HTTPPort      int    `yaml:"http_port,omitempty"`      // Preflight port, defaults to Port
	Secret        string `yaml:"secret"`                   // Relay access key
	TLS           bool   `yaml:"tls,omitempty"`            // Use wss/https
	PreflightPath string `yaml:"preflight_path,omitempty"` // Defaults to /preconnect.php
}

// Relay is what the client remembers about a discovered relay.
type Relay struct {
	Host     string    `yaml:"host"`
	Port     int       `yaml:"port"`
	HTTPPort int       `yaml:"http_port,omitempty"`
	TLS      bool      `yaml:"tls,omitempty"`
	Version  string    `yaml:"version,omitempty"`
	LastSeen time.Time `yaml:"last_seen,omitempty"`
}

// Preferences holds session timing. Zero values mean the engine default.
type Preferences struct {
	SettleDelayMs   int `yaml:"settle_delay_ms"`   // Pause between untie and tie when re-pairing
	DrainIntervalMs int `yaml:"drain_interval_ms"` // Outbound queue tick
	DialTimeoutS    int `yaml:"dial_timeout_s"`    // Preflight + socket open bound, 0 = none
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     CurrentVersion,
		Server:      DefaultServer(),
		Relays:      make(map[string]*Relay),
		Preferences: DefaultPreferences(),
	}
}

// DefaultServer points at a relay on the local machine.
func DefaultServer() *Server {
	return &Server{
		Name: "Husky",
		Host: "localhost",
		Port: 8080,
	}
}

// DefaultPreferences mirrors the session engine defaults.
func DefaultPreferences() *Preferences {
	return &Preferences{
		SettleDelayMs:   int(session.DefaultSettleDelay / time.Millisecond),
		DrainIntervalMs: int(session.DefaultDrainInterval / time.Millisecond),
	}
}

// EnsureRelay returns the entry for instance, creating it if needed.
func (r *Registry) EnsureRelay(instance string) *Relay {
	if r.Relays == nil {
		r.Relays = make(map[string]*Relay)
	}
	if relay, ok := r.Relays[instance]; ok {
		return relay
	}
	relay := &Relay{}
	r.Relays[instance] = relay
	return relay
}

// RememberRelay records a relay seen on the network.
func (r *Registry) RememberRelay(instance string, seen Relay) {
	relay := r.EnsureRelay(instance)
	*relay = seen
	relay.LastSeen = time.Now()
}

// UseRelay makes a remembered relay the login target. The access key is
// kept since discovery never carries it.
func (r *Registry) UseRelay(instance string) bool {
	relay, ok := r.Relays[instance]
	if !ok {
		return false
	}
	secret := ""
	if r.Server != nil {
		secret = r.Server.Secret
	}
	r.Server = &Server{
		Name:     instance,
		Host:     relay.Host,
		Port:     relay.Port,
		HTTPPort: relay.HTTPPort,
		Secret:   secret,
		TLS:      relay.TLS,
	}
	return true
}

// Endpoint converts the server profile for the session engine.
func (s *Server) Endpoint() session.Endpoint {
	return session.Endpoint{
		Host:          s.Host,
		Port:          s.Port,
		HTTPPort:      s.HTTPPort,
		Secret:        s.Secret,
		TLS:           s.TLS,
		PreflightPath: s.PreflightPath,
	}
}

// DisplayName is the name shown above the login prompt.
func (s *Server) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Host
}

// SessionOptions builds engine options from the server profile and
// preferences.
func (r *Registry) SessionOptions() session.Options {
	srv := r.Server
	if srv == nil {
		srv = DefaultServer()
	}
	opts := session.Options{Endpoint: srv.Endpoint()}

	if p := r.Preferences; p != nil {
		opts.SettleDelay = time.Duration(p.SettleDelayMs) * time.Millisecond
		opts.DrainInterval = time.Duration(p.DrainIntervalMs) * time.Millisecond
		opts.DialTimeout = time.Duration(p.DialTimeoutS) * time.Second
	}
	return opts
}
