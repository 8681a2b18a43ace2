package protocol

import "fmt"

// Flag is the single-character prefix that identifies a frame's meaning.
type Flag byte

// Direction tells which side of the connection may send a flag.
type Direction int

const (
	// ClientToServer flags are only ever written by the client.
	ClientToServer Direction = iota
	// ServerToClient flags are only ever written by the relay.
	ServerToClient
	// Both marks flags that travel in either direction (untie, chat message).
	Both
)

// Client-to-server flags
const (
	FlagAuthorize   Flag = 'A' // body: secret/credential
	FlagDropSession Flag = 'X' // sentinel, terminates the outbound pump
	FlagTieInit     Flag = 'T' // body: subject name
)

// Server-to-client flags
const (
	FlagAuthOK       Flag = 'O'
	FlagAuthFault    Flag = 'D'
	FlagAuthOverAuth Flag = 'I' // already logged in
	FlagTieOK        Flag = 'S'
	FlagTieWait      Flag = 'W' // subject not online yet
	FlagTieNoUser    Flag = 'N'
	FlagTieSelfTie   Flag = 'M'
	FlagTieOverTie   Flag = 'R' // already tied
	FlagOK           Flag = 'Y'
	FlagFault        Flag = 'E'
)

// Bidirectional flags
const (
	FlagUntie   Flag = 'C'
	FlagMessage Flag = 'B' // body: "sender: text"
)

type flagInfo struct {
	name      string
	direction Direction
}

var flagTable = map[Flag]flagInfo{
	FlagAuthorize:    {"authorize", ClientToServer},
	FlagDropSession:  {"drop_session", ClientToServer},
	FlagTieInit:      {"tie_init", ClientToServer},
	FlagAuthOK:       {"auth_ok", ServerToClient},
	FlagAuthFault:    {"auth_fault", ServerToClient},
	FlagAuthOverAuth: {"auth_over_auth", ServerToClient},
	FlagTieOK:        {"tie_ok", ServerToClient},
	FlagTieWait:      {"tie_wait", ServerToClient},
	FlagTieNoUser:    {"tie_no_user", ServerToClient},
	FlagTieSelfTie:   {"tie_self_tie", ServerToClient},
	FlagTieOverTie:   {"tie_over_tie", ServerToClient},
	FlagOK:           {"ok", ServerToClient},
	FlagFault:        {"fault", ServerToClient},
	FlagUntie:        {"untie", Both},
	FlagMessage:      {"message", Both},
}

// Known reports whether f is part of the protocol.
func (f Flag) Known() bool {
	_, ok := flagTable[f]
	return ok
}

// Name returns a short, log-friendly name for the flag.
func (f Flag) Name() string {
	if info, ok := flagTable[f]; ok {
		return info.name
	}
	return fmt.Sprintf("unknown(%q)", rune(f))
}

// String returns the flag character itself.
func (f Flag) String() string {
	return string(rune(f))
}

// SentBy reports whether a peer on side d is allowed to send f.
func (f Flag) SentBy(d Direction) bool {
	info, ok := flagTable[f]
	if !ok {
		return false
	}
	return info.direction == d || info.direction == Both
}
