// Package discovery announces and finds Husky relay servers over mDNS.
//
// Relays advertise the "_husky._tcp" service type in the "local." domain.
// The instance name is the relay's display name; TXT records carry the
// details a client needs to connect:
//   - http_port: port of the preflight endpoint
//   - tls: "1" when the relay expects wss/https
//   - version: relay version string
//
// # Advertising
//
//	ad, err := discovery.Advertise(discovery.AdvertiseOptions{
//	    Instance: "Office chat",
//	    Port:     8080,
//	})
//	if err != nil {
//	    return err
//	}
//	defer ad.Shutdown()
//
// # Scanning
//
//	relays, err := discovery.NewScanner().Scan(ctx)
//	for _, r := range relays {
//	    fmt.Println(r)
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Relays must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
