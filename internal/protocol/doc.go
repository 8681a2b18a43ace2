// Package protocol implements the Husky flag-prefixed text protocol.
//
// Every message exchanged between a client and the relay is a single
// WebSocket text message. The first byte is a flag character that names the
// message; the remainder, possibly empty, is the body. There is no escaping
// and no length prefix: the WebSocket framing supplies message boundaries.
//
// # Flag Table
//
// Client to server:
//   - A: authorize, body "secret/credential"
//   - X: drop session (sentinel, the client stops writing after it)
//   - T: tie init, body is the pairing subject's name
//
// Server to client:
//   - O: auth ok
//   - D: auth fault (bad secret or credential)
//   - I: over-auth (name already logged in)
//   - S: tie ok
//   - W: tie wait (subject has not asked for us yet)
//   - N: no such user
//   - M: self tie
//   - R: over-tie (one side is already tied)
//   - Y: generic ok
//   - E: generic fault
//
// Both directions:
//   - C: untie
//   - B: chat message, body "sender: text"
//
// # Usage Example
//
//	frame := protocol.Encode(protocol.FlagAuthorize, protocol.AuthBody(secret, cred))
//	conn.WriteMessage(websocket.TextMessage, []byte(frame))
//
//	flag, body, err := protocol.Decode(string(data))
//	if err != nil {
//	    // message corrupted
//	}
//	switch flag {
//	case protocol.FlagAuthOK:
//	    ...
//	}
//
// The package is pure: it holds no state and performs no I/O.
package protocol
