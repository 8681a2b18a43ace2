// Package server implements the Husky relay that terminal clients log in to.
//
// A relay serves two routes on one port:
//   - GET /preconnect.php answers "Ok" while there is room, "Busy" at max_clients
//   - every other path upgrades to a WebSocket carrying text frames
//
// Each frame is a one-byte flag followed by a body (see package protocol).
// The relay keeps three pieces of state in the Hub:
//
//	approved  user name -> connected client, filled by A frames
//	waitlist  user name -> subject it asked to tie with (T frames)
//	ties      user name -> peer, stored in both directions
//
// # Frame handling
//
//	A secret/name:pw  O on success, D on a bad key or user, I if already online
//	T subject         M self, R either side tied, N unknown, S to both sides
//	                  when the subject is already waiting for us, W otherwise
//	C                 breaks the tie, peer receives C, sender receives Y
//	B text            echoed to the sender and forwarded to the peer, E if untied
//	X                 closes the socket
//
// T, C and B from a socket that has not logged in close it. Disconnecting
// clears the user's login and waitlist entry and unties its peer.
//
// # Usage Example
//
//	cfg, err := server.LoadConfig(viper.New(), "relay.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := server.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Start blocks until SIGINT/SIGTERM or a serve error
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// Every socket runs a read pump and a write pump in its own goroutines.
// Hub methods lock a single mutex and return the frames to deliver, which
// are queued after the lock is released.
package server
