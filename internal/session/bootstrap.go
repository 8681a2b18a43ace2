package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/husky/internal/logging"
	"github.com/muurk/husky/internal/protocol"
)

// Auth job progress milestones
const (
	progressPreflightAnswered = 25
	progressPreflightOK       = 50
	progressSocketOpen        = 75
	progressAuthSent          = 90
)

// Tie job progress milestones
const (
	progressTieSent    = 25
	progressTieWaiting = 75
)

// bootstrapAuth runs the preflight and opens the socket. It reports back
// to the owner goroutine and never touches state itself. The outcome of
// the job is decided later by the inbound pump.
func (m *Machine) bootstrapAuth(ctx context.Context, jobID uint64, id Identity) {
	m.jobLog(jobID, "Contacting "+m.opts.Endpoint.PreflightURL())

	if err := m.withTimeout(ctx, func(ctx context.Context) error {
		return preflight(ctx, m.opts.HTTPClient, m.opts.Endpoint.PreflightURL())
	}); err != nil {
		if !IsKind(err, KindPreflightUnreachable) {
			m.jobProgress(jobID, progressPreflightAnswered)
		}
		m.jobFail(jobID, err)
		return
	}
	m.jobProgress(jobID, progressPreflightAnswered)
	m.jobProgress(jobID, progressPreflightOK)
	m.jobLog(jobID, "Server approved connection")

	var conn Conn
	err := m.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		conn, err = m.opts.Dial(ctx, m.opts.Endpoint.SocketURL())
		return err
	})
	if err != nil {
		m.jobFail(jobID, newError(KindSocketUnavailable, "failed to open socket", err))
		return
	}

	if !m.post(func() { m.connected(jobID, id, conn) }) {
		_ = conn.Close()
	}
}

func (m *Machine) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if m.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.DialTimeout)
		defer cancel()
	}
	return fn(ctx)
}

// connected binds a fresh socket to the auth job, starts both pumps and
// queues the authorize frame.
func (m *Machine) connected(jobID uint64, id Identity, conn Conn) {
	job := m.activeJob(jobID)
	if job == nil {
		// aborted while dialing
		_ = conn.Close()
		return
	}

	job.setProgress(progressSocketOpen)
	job.logf(time.Now(), "Socket open")
	logging.LogConnection(conn.RemoteAddr(), "websocket_connected")

	c := m.bind(conn)
	c.queue.Enqueue(protocol.Encode(protocol.FlagAuthorize, protocol.AuthBody(m.opts.Endpoint.Secret, id.Credential)))
	job.setProgress(progressAuthSent)
	job.logf(time.Now(), "Authorizing as %s", id.DisplayName)
}

// bind makes conn the current connection and starts its pumps. Any
// previous current connection is dropped first.
func (m *Machine) bind(conn Conn) *connection {
	m.dropSession()

	ctx, cancel := context.WithCancel(m.ctx)
	m.nextConn++
	c := &connection{id: m.nextConn, conn: conn, cancel: cancel}
	m.conns[c.id] = c
	m.current = c.id

	go m.inboundPump(c.id, conn)
	go m.outboundPump(ctx, c.id, conn)
	return c
}

// settleThenTie waits for the relay to process the untie before asking for
// the new tie.
func (m *Machine) settleThenTie(ctx context.Context, jobID uint64, subject string) {
	t := time.NewTimer(m.opts.SettleDelay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}

	m.post(func() {
		if job := m.activeJob(jobID); job != nil {
			m.enqueueTie(job, subject)
		}
	})
}

func (m *Machine) enqueueTie(job *Job, subject string) {
	if err := m.send(protocol.Encode(protocol.FlagTieInit, subject)); err != nil {
		m.failJob(job, err, job.Outcome.Next)
		return
	}
	job.setProgress(progressTieSent)
	job.logf(time.Now(), "Asking %s to tie", subject)
}

// Helpers for bootstrap goroutines. Each posts to the owner and applies
// only if jobID is still the active job.

func (m *Machine) jobLog(jobID uint64, text string) {
	m.post(func() {
		if job := m.activeJob(jobID); job != nil {
			job.logf(time.Now(), "%s", text)
		}
	})
}

func (m *Machine) jobProgress(jobID uint64, p int) {
	m.post(func() {
		if job := m.activeJob(jobID); job != nil {
			job.setProgress(p)
		}
	})
}

func (m *Machine) jobFail(jobID uint64, err error) {
	m.post(func() {
		job := m.activeJob(jobID)
		if job == nil {
			logging.Debug("Dropping bootstrap failure for stale job",
				zap.Uint64("job_id", jobID), zap.Error(err))
			return
		}
		m.failJob(job, err, ToAuth())
	})
}
