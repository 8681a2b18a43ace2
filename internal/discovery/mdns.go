package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type Husky relays advertise
	ServiceType = "_husky._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for relay discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is used when an entry carries no port
	DefaultPort = 8080
)

// TXT record keys
const (
	txtHTTPPort = "http_port"
	txtTLS      = "tls"
	txtVersion  = "version"
)

// Scanner handles mDNS relay discovery
type Scanner struct {
	// Timeout is the maximum time to wait for relays
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan collects every relay that answers within the timeout.
func (s *Scanner) Scan(ctx context.Context) ([]*Relay, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu     sync.Mutex
		relays []*Relay
		seen   = make(map[string]bool)
	)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			relay := parseServiceEntry(entry)
			if relay == nil {
				continue
			}
			mu.Lock()
			if !seen[relay.Instance] {
				seen[relay.Instance] = true
				relays = append(relays, relay)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Relay(nil), relays...), nil
}

// WaitForRelay returns the first relay advertising instance name.
func (s *Scanner) WaitForRelay(ctx context.Context, instance string) (*Relay, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Relay, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			relay := parseServiceEntry(entry)
			if relay != nil && relay.Instance == instance {
				select {
				case found <- relay:
				default:
				}
				cancel()
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case relay := <-found:
		return relay, nil
	case <-ctx.Done():
		select {
		case relay := <-found:
			return relay, nil
		default:
		}
		return nil, fmt.Errorf("relay %q not found within %s", instance, s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Relay.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Relay {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	// Prefer IPv4
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := parseTXT(entry.Text)

	httpPort := port
	if v, err := strconv.Atoi(metadata[txtHTTPPort]); err == nil && v > 0 {
		httpPort = v
	}

	return &Relay{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		HTTPPort:     httpPort,
		TLS:          metadata[txtTLS] == "1" || metadata[txtTLS] == "true",
		Version:      metadata[txtVersion],
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// parseTXT splits "key=value" records; keys without a value map to "".
func parseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}
	return metadata
}
