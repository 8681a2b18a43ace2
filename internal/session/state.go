package session

import (
	"fmt"
	"time"

	"github.com/muurk/husky/internal/protocol"
)

// Screen identifies which variant of the application state is active.
type Screen int

const (
	// ScreenAuth is the credential entry screen; it has no payload.
	ScreenAuth Screen = iota
	// ScreenJob shows a long-running operation and its log.
	ScreenJob
	// ScreenSession is the chat screen of an authorized user.
	ScreenSession
)

// String returns the screen name
func (s Screen) String() string {
	switch s {
	case ScreenAuth:
		return "auth"
	case ScreenJob:
		return "job"
	case ScreenSession:
		return "session"
	default:
		return fmt.Sprintf("Screen(%d)", s)
	}
}

// Job titles
const (
	TitleAuthorizing    = "Authorizing..."
	TitleConnectionLost = "Connection lost"
)

// TieTitle is the title of a pairing job.
func TieTitle(subject string) string {
	return "Tying with " + subject + "..."
}

// Identity is the authorized user. DisplayName is derived from Credential.
type Identity struct {
	Credential  string
	DisplayName string
}

// NewIdentity builds an identity from a raw credential such as "alice:xyz".
func NewIdentity(credential string) Identity {
	return Identity{
		Credential:  credential,
		DisplayName: protocol.UserName(credential),
	}
}

// Pairing is either unpaired (Paired false) or paired with Peer.
type Pairing struct {
	Paired bool
	Peer   string
}

// Unpaired is the zero pairing state.
var Unpaired = Pairing{}

// PairedWith returns a pairing with peer.
func PairedWith(peer string) Pairing {
	return Pairing{Paired: true, Peer: peer}
}

// String returns "Untied" or "Tied with <peer>".
func (p Pairing) String() string {
	if !p.Paired {
		return "Untied"
	}
	return "Tied with " + p.Peer
}

// Session is the state of an authorized user.
type Session struct {
	Identity Identity
	Pairing  Pairing
	// Messages are most-recent-first.
	Messages []string
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = append([]string(nil), s.Messages...)
	return &c
}

func (s *Session) prepend(msg string) {
	s.Messages = append([]string{msg}, s.Messages...)
}

// Destination is where a job leads once acknowledged. It can only name the
// Auth or Session screens, never another job.
type Destination struct {
	Screen  Screen
	Session *Session
}

// ToAuth returns a destination pointing at the auth screen.
func ToAuth() *Destination {
	return &Destination{Screen: ScreenAuth}
}

// ToSession returns a destination pointing at a copy of s.
func ToSession(s *Session) *Destination {
	return &Destination{Screen: ScreenSession, Session: s.clone()}
}

func (d *Destination) clone() *Destination {
	if d == nil {
		return nil
	}
	return &Destination{Screen: d.Screen, Session: d.Session.clone()}
}

// OutcomeKind is the lifecycle stage of a job.
type OutcomeKind int

const (
	InProgress OutcomeKind = iota
	Succeeded
	Failed
)

// String returns the outcome name
func (k OutcomeKind) String() string {
	switch k {
	case InProgress:
		return "in progress"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", k)
	}
}

// Outcome is a job outcome. For InProgress jobs Next is the optional abort
// target; for finished jobs it is where Continue leads.
type Outcome struct {
	Kind OutcomeKind
	Next *Destination
}

// JobKind tells what operation a job tracks.
type JobKind int

const (
	JobAuth JobKind = iota
	JobTie
	// JobDropped is the job synthesized when the connection goes away.
	JobDropped
)

// LogEntry is one timestamped line of a job log.
type LogEntry struct {
	Time time.Time
	Text string
}

// String formats the entry as "(HH:MM:SS) text".
func (e LogEntry) String() string {
	return fmt.Sprintf("(%s) %s", e.Time.Format("15:04:05"), e.Text)
}

// Job is a tracked long-running operation.
type Job struct {
	ID       uint64
	Kind     JobKind
	Title    string
	Progress int
	Outcome  Outcome
	Log      []LogEntry
	// Data holds operation context, e.g. the pairing subject.
	Data []string
}

// Active reports whether the job is still in progress.
func (j *Job) Active() bool {
	return j.Outcome.Kind == InProgress
}

func (j *Job) clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Outcome.Next = j.Outcome.Next.clone()
	c.Log = append([]LogEntry(nil), j.Log...)
	c.Data = append([]string(nil), j.Data...)
	return &c
}

func (j *Job) logf(now time.Time, format string, args ...any) {
	j.Log = append(j.Log, LogEntry{Time: now, Text: fmt.Sprintf(format, args...)})
}

// setProgress raises progress. It never lowers it and never moves a
// finished job.
func (j *Job) setProgress(p int) {
	if !j.Active() {
		return
	}
	if p > 100 {
		p = 100
	}
	if p > j.Progress {
		j.Progress = p
	}
}

func (j *Job) finish(kind OutcomeKind, next *Destination) {
	if !j.Active() {
		return
	}
	j.Outcome = Outcome{Kind: kind, Next: next}
}

// subject returns the first data entry, if any.
func (j *Job) subject() string {
	if len(j.Data) == 0 {
		return ""
	}
	return j.Data[0]
}

// State is the application state: exactly one of the screens is active,
// and the matching payload (Job or Session) is set.
type State struct {
	Screen  Screen
	Job     *Job
	Session *Session
	// Generation is bumped on every screen swap.
	Generation uint64
}

// Snapshot is a deep copy of the state handed to readers.
type Snapshot struct {
	State
	// Pending holds queued outbound frames not yet transmitted.
	Pending []string
	// Connected reports whether a socket is currently bound.
	Connected bool
}

func (s State) clone() State {
	return State{
		Screen:     s.Screen,
		Job:        s.Job.clone(),
		Session:    s.Session.clone(),
		Generation: s.Generation,
	}
}

// check panics when the active screen lacks its payload. That can only
// happen if something mutated state outside the owner goroutine.
func (s State) check() {
	switch s.Screen {
	case ScreenJob:
		if s.Job == nil {
			panic("session: job screen active without a job")
		}
	case ScreenSession:
		if s.Session == nil {
			panic("session: session screen active without a session")
		}
	}
}
