package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedFrame is returned when a frame is too short to carry a flag.
var ErrMalformedFrame = errors.New("malformed frame")

// Encode prepends the flag character to body. No escaping is applied; the
// transport supplies message boundaries.
func Encode(flag Flag, body string) string {
	var b strings.Builder
	b.Grow(1 + len(body))
	b.WriteByte(byte(flag))
	b.WriteString(body)
	return b.String()
}

// Decode splits a wire frame into its flag and body.
func Decode(frame string) (Flag, string, error) {
	if len(frame) == 0 {
		return 0, "", fmt.Errorf("decode: %w: empty frame", ErrMalformedFrame)
	}
	return Flag(frame[0]), frame[1:], nil
}

// Common frames
var (
	// DropSession is the exact wire form of the drop-session sentinel.
	DropSession = Encode(FlagDropSession, "")
	// Untie is the exact wire form of an untie request or notification.
	Untie = Encode(FlagUntie, "")
)

// AuthBody joins the shared secret and the user credential the way the
// relay expects them in an authorize frame.
func AuthBody(secret, credential string) string {
	return secret + "/" + credential
}

// SplitAuthBody is the inverse of AuthBody. The secret ends at the first
// slash; everything after it is the credential.
func SplitAuthBody(body string) (secret, credential string, ok bool) {
	i := strings.IndexByte(body, '/')
	if i < 0 {
		return body, "", false
	}
	return body[:i], body[i+1:], true
}

// MessageBody formats a chat line as "sender: text".
func MessageBody(sender, text string) string {
	return sender + ": " + text
}

// UserName returns the part of a credential before the first colon.
// Credentials without a colon are names on their own.
func UserName(credential string) string {
	if i := strings.IndexByte(credential, ':'); i >= 0 {
		return credential[:i]
	}
	return credential
}
