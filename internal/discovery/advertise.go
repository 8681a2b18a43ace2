package discovery

import (
	"fmt"
	"strconv"

	"github.com/grandcat/zeroconf"
)

// AdvertiseOptions describes the relay being announced.
type AdvertiseOptions struct {
	Instance string
	Port     int
	HTTPPort int
	TLS      bool
	Version  string
}

// TXT returns the TXT records for o.
func (o AdvertiseOptions) TXT() []string {
	txt := []string{
		txtHTTPPort + "=" + strconv.Itoa(o.httpPort()),
		txtTLS + "=" + boolTXT(o.TLS),
	}
	if o.Version != "" {
		txt = append(txt, txtVersion+"="+o.Version)
	}
	return txt
}

func (o AdvertiseOptions) httpPort() int {
	if o.HTTPPort == 0 {
		return o.Port
	}
	return o.HTTPPort
}

func boolTXT(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Advertisement is a running mDNS announcement
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise registers the relay on all multicast interfaces.
func Advertise(opts AdvertiseOptions) (*Advertisement, error) {
	if opts.Instance == "" {
		return nil, fmt.Errorf("advertise: instance name is required")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("advertise: invalid port %d", opts.Port)
	}

	server, err := zeroconf.Register(opts.Instance, ServiceType, ServiceDomain, opts.Port, opts.TXT(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the announcement
func (a *Advertisement) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}
