package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Relay represents a Husky relay server found on the network
type Relay struct {
	// Instance is the advertised server name (e.g., "Office chat")
	Instance string

	// Hostname is the mDNS hostname (e.g., "chatbox.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	// Port is the WebSocket port
	Port int

	// HTTPPort serves the preflight endpoint; usually equal to Port
	HTTPPort int

	// TLS is true when the relay expects wss/https
	TLS bool

	// Version is the relay's advertised version, if any
	Version string

	// Metadata contains the raw mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the relay was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the relay
func (r *Relay) String() string {
	return fmt.Sprintf("Husky relay %q (%s) at %s", r.Instance, r.Hostname, net.JoinHostPort(r.IP, strconv.Itoa(r.Port)))
}

// SocketURL returns the ws(s) URL of the relay
func (r *Relay) SocketURL() string {
	scheme := "ws"
	if r.TLS {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/", scheme, net.JoinHostPort(r.IP, strconv.Itoa(r.Port)))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (r *Relay) GetMetadata(key string) string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}
