package session

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/husky/internal/logging"
	"github.com/muurk/husky/internal/protocol"
)

// Scheduling defaults
const (
	DefaultSettleDelay   = 500 * time.Millisecond
	DefaultDrainInterval = 50 * time.Millisecond

	mailboxSize = 64
)

// Options configures a Machine.
type Options struct {
	Endpoint Endpoint

	// HTTPClient runs the preflight. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Dial opens the relay socket. Defaults to DialWebSocket.
	Dial DialFunc

	// SettleDelay separates the untie and tie frames when re-pairing.
	SettleDelay time.Duration
	// DrainInterval is the outbound pump tick.
	DrainInterval time.Duration
	// DialTimeout bounds the preflight and the socket open. Zero means no
	// timeout.
	DialTimeout time.Duration

	// OnTransition runs on the owner goroutine at every screen swap, before
	// any reader can observe the new state.
	OnTransition func(from, to Screen)
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.Dial == nil {
		o.Dial = DialWebSocket
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.DrainInterval <= 0 {
		o.DrainInterval = DefaultDrainInterval
	}
	return o
}

// connection is one socket with its own send queue. A retired connection
// is no longer current but stays alive until its pump has flushed the
// drop-session sentinel.
type connection struct {
	id     uint64
	conn   Conn
	queue  SendQueue
	cancel context.CancelFunc
}

// Machine owns the application state and the send queues. All mutation
// happens on the goroutine running Run; everything else talks to it
// through the mailbox.
type Machine struct {
	opts    Options
	mailbox chan func()
	done    chan struct{}
	snap    atomic.Pointer[Snapshot]

	// Owned by the Run goroutine.
	ctx       context.Context
	state     State
	identity  Identity
	conns     map[uint64]*connection
	current   uint64
	nextConn  uint64
	nextJob   uint64
	jobCancel context.CancelFunc
}

// NewMachine returns a machine on the Auth screen. Call Run to start it.
func NewMachine(opts Options) *Machine {
	m := &Machine{
		opts:    opts.withDefaults(),
		mailbox: make(chan func(), mailboxSize),
		done:    make(chan struct{}),
		conns:   make(map[uint64]*connection),
		state:   State{Screen: ScreenAuth},
	}
	m.publish()
	return m
}

// Run processes the mailbox until ctx is done. Open sockets are closed on
// return.
func (m *Machine) Run(ctx context.Context) error {
	m.ctx = ctx
	defer close(m.done)
	defer m.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-m.mailbox:
			cmd()
			m.publish()
		}
	}
}

// Done is closed once Run has returned.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// Snapshot returns a deep copy of the latest published state.
func (m *Machine) Snapshot() Snapshot {
	s := m.snap.Load()
	out := *s
	out.State = s.State.clone()
	out.Pending = append([]string(nil), s.Pending...)
	return out
}

func (m *Machine) publish() {
	s := &Snapshot{State: m.state.clone()}
	if c := m.conns[m.current]; c != nil {
		s.Connected = true
		s.Pending = c.queue.Pending()
	}
	m.snap.Store(s)
}

func (m *Machine) shutdown() {
	if m.jobCancel != nil {
		m.jobCancel()
	}
	for id, c := range m.conns {
		c.cancel()
		_ = c.conn.Close()
		delete(m.conns, id)
	}
	m.current = 0
}

// post hands fn to the owner goroutine. It returns false when the machine
// has stopped.
func (m *Machine) post(fn func()) bool {
	select {
	case m.mailbox <- fn:
		return true
	case <-m.done:
		return false
	}
}

// call runs fn on the owner goroutine and waits for its result. The state
// fn leaves behind is published before call returns.
func (m *Machine) call(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	cmd := func() {
		err := fn()
		m.publish()
		reply <- err
	}

	select {
	case m.mailbox <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrStopped
	}

	select {
	case err := <-reply:
		return err
	case <-m.done:
		return ErrStopped
	}
}

// swap replaces the active state. It is the only place the screen changes.
func (m *Machine) swap(next State) {
	from := m.state.Screen
	next.Generation = m.state.Generation + 1
	next.check()

	if m.state.Screen == ScreenJob && m.jobCancel != nil && (next.Job == nil || next.Job.ID != m.state.Job.ID) {
		m.jobCancel()
		m.jobCancel = nil
	}

	m.state = next
	if m.opts.OnTransition != nil {
		m.opts.OnTransition(from, next.Screen)
	}
	logging.Debug("State transition",
		zap.Stringer("from", from),
		zap.Stringer("to", next.Screen),
		zap.Uint64("generation", next.Generation),
	)
}

// startJob swaps to a fresh in-progress job. abort is where AbortJob leads.
func (m *Machine) startJob(kind JobKind, title string, abort *Destination, data ...string) *Job {
	m.nextJob++
	job := &Job{
		ID:      m.nextJob,
		Kind:    kind,
		Title:   title,
		Outcome: Outcome{Kind: InProgress, Next: abort},
		Data:    data,
	}
	job.logf(time.Now(), "Starting...")
	m.swap(State{Screen: ScreenJob, Job: job})
	logging.LogJob(job.ID, job.Title, "started")
	return job
}

// activeJob returns the current job if it is id and still in progress.
func (m *Machine) activeJob(id uint64) *Job {
	if m.state.Screen != ScreenJob {
		return nil
	}
	j := m.state.Job
	if j.ID != id || !j.Active() {
		return nil
	}
	return j
}

func (m *Machine) failJob(job *Job, err error, next *Destination) {
	job.logf(time.Now(), "%s", ShortMessage(err))
	job.finish(Failed, next)
	logging.LogJob(job.ID, job.Title, "failed")

	switch {
	case IsPairingError(err):
		logging.Info("Tie refused", zap.Uint64("job_id", job.ID), zap.Error(err))
	case IsPreflightError(err):
		logging.Warn("Preflight failed", zap.Uint64("job_id", job.ID), zap.Error(err))
	default:
		logging.Warn("Job failed", zap.Uint64("job_id", job.ID), zap.Error(err))
	}
}

func (m *Machine) succeedJob(job *Job, next *Destination) {
	job.setProgress(100)
	job.logf(time.Now(), "Done.")
	job.finish(Succeeded, next)
	logging.LogJob(job.ID, job.Title, "succeeded")
}

// goTo swaps to a job destination. Leaving for Auth drops the socket.
func (m *Machine) goTo(d *Destination) {
	if d == nil || d.Screen == ScreenAuth {
		m.dropSession()
		m.identity = Identity{}
		m.swap(State{Screen: ScreenAuth})
		return
	}
	m.swap(State{Screen: ScreenSession, Session: d.Session.clone()})
}

// send enqueues frame on the current connection.
func (m *Machine) send(frame string) error {
	c := m.conns[m.current]
	if c == nil {
		return newError(KindSocketUnavailable, "not connected", nil)
	}
	c.queue.Enqueue(frame)
	return nil
}

// dropSession enqueues the drop-session sentinel and retires the current
// connection. Its outbound pump closes the socket once the sentinel is out.
func (m *Machine) dropSession() {
	c := m.conns[m.current]
	if c == nil {
		return
	}
	c.queue.Enqueue(protocol.DropSession)
	m.current = 0
	logging.LogConnection(c.conn.RemoteAddr(), "session_dropped")
}

func (m *Machine) invalid(action string) error {
	return fmt.Errorf("%s in %s: %w", action, m.state.Screen, ErrInvalidAction)
}

// SubmitCredential starts the authorization job. Only valid on Auth.
func (m *Machine) SubmitCredential(ctx context.Context, credential string) error {
	return m.call(ctx, func() error {
		if m.state.Screen != ScreenAuth {
			return m.invalid("submit credential")
		}
		if credential == "" {
			return fmt.Errorf("submit credential: %w", ErrEmptyInput)
		}

		m.identity = NewIdentity(credential)
		job := m.startJob(JobAuth, TitleAuthorizing, ToAuth())

		jobCtx, cancel := context.WithCancel(m.ctx)
		m.jobCancel = cancel
		go m.bootstrapAuth(jobCtx, job.ID, m.identity)
		return nil
	})
}

// SubmitPairingSubject starts a tie job with subject. Only valid on Session.
func (m *Machine) SubmitPairingSubject(ctx context.Context, subject string) error {
	return m.call(ctx, func() error {
		if m.state.Screen != ScreenSession {
			return m.invalid("submit pairing subject")
		}
		if subject == "" {
			return fmt.Errorf("submit pairing subject: %w", ErrEmptyInput)
		}

		sess := m.state.Session.clone()
		wasPaired := sess.Pairing
		sess.Pairing = Unpaired

		job := m.startJob(JobTie, TieTitle(subject), ToSession(sess), subject)
		jobCtx, cancel := context.WithCancel(m.ctx)
		m.jobCancel = cancel

		if wasPaired.Paired {
			if err := m.send(protocol.Untie); err != nil {
				m.failJob(job, err, ToSession(sess))
				return nil
			}
			job.logf(time.Now(), "Untying from %s", wasPaired.Peer)
			go m.settleThenTie(jobCtx, job.ID, subject)
			return nil
		}

		m.enqueueTie(job, subject)
		return nil
	})
}

// SendMessage queues a chat message signed with the display name. The relay
// echoes it back, so it is not added to the history here.
func (m *Machine) SendMessage(ctx context.Context, text string) error {
	return m.call(ctx, func() error {
		if m.state.Screen != ScreenSession {
			return m.invalid("send message")
		}
		if text == "" {
			return fmt.Errorf("send message: %w", ErrEmptyInput)
		}
		body := protocol.MessageBody(m.state.Session.Identity.DisplayName, text)
		return m.send(protocol.Encode(protocol.FlagMessage, body))
	})
}

// Untie queues an untie frame and unpairs immediately.
func (m *Machine) Untie(ctx context.Context) error {
	return m.call(ctx, func() error {
		if m.state.Screen != ScreenSession || !m.state.Session.Pairing.Paired {
			return m.invalid("untie")
		}
		if err := m.send(protocol.Untie); err != nil {
			return err
		}
		sess := m.state.Session.clone()
		sess.Pairing = Unpaired
		m.swap(State{Screen: ScreenSession, Session: sess})
		return nil
	})
}

// Logout drops the session and returns to Auth.
func (m *Machine) Logout(ctx context.Context) error {
	return m.call(ctx, func() error {
		if m.state.Screen != ScreenSession {
			return m.invalid("logout")
		}
		m.goTo(ToAuth())
		return nil
	})
}

// AbortJob leaves an in-progress job for its abort target. Aborting a tie
// job also cancels the relay's waitlist entry.
func (m *Machine) AbortJob(ctx context.Context) error {
	return m.call(ctx, func() error {
		if m.state.Screen != ScreenJob || !m.state.Job.Active() {
			return m.invalid("abort job")
		}
		job := m.state.Job
		logging.LogJob(job.ID, job.Title, "aborted")
		if job.Kind == JobTie {
			_ = m.send(protocol.Untie)
		}
		m.goTo(job.Outcome.Next)
		return nil
	})
}

// Continue acknowledges a finished job and moves to its target.
func (m *Machine) Continue(ctx context.Context) error {
	return m.call(ctx, func() error {
		if m.state.Screen != ScreenJob || m.state.Job.Active() {
			return m.invalid("continue")
		}
		m.goTo(m.state.Job.Outcome.Next)
		return nil
	})
}
