package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/muurk/husky/internal/logging"
	"github.com/muurk/husky/internal/protocol"
)

// Session notices prepended to the message history
const (
	noticeDeliveryFault = "! message not delivered"
)

// inboundPump owns the read half of conn. Frames are handed to the owner
// one at a time, in arrival order.
func (m *Machine) inboundPump(connID uint64, conn Conn) {
	remote := conn.RemoteAddr()
	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			logging.LogConnection(remote, "websocket_closed")
			m.post(func() { m.handleDrop(connID, err) })
			return
		}
		logging.LogFrame(remote, logging.DirectionIn, frame)
		if !m.post(func() { m.handleFrame(connID, frame) }) {
			return
		}
	}
}

// handleFrame dispatches one inbound frame against the active state.
func (m *Machine) handleFrame(connID uint64, frame string) {
	if connID != m.current {
		return
	}

	flag, body, err := protocol.Decode(frame)
	if err != nil {
		logging.Warn("message corrupted", zap.Error(err))
		logging.LogRawBytes("corrupted frame", []byte(frame))
		if m.state.Screen == ScreenJob && m.state.Job.Active() {
			m.state.Job.logf(time.Now(), "%s", ShortMessage(newError(KindFrameMalformed, "empty frame", err)))
		}
		return
	}

	if !flag.SentBy(protocol.ServerToClient) {
		logging.Warn("Dropping frame not sent by relays", zap.String("flag", flag.Name()))
		return
	}

	m.state.check()
	handled := false
	switch m.state.Screen {
	case ScreenJob:
		handled = m.dispatchJob(m.state.Job, flag, body)
	case ScreenSession:
		handled = m.dispatchSession(flag, body)
	}

	if !handled {
		logging.Debug("Ignoring frame",
			zap.Stringer("screen", m.state.Screen),
			zap.String("flag", flag.Name()),
		)
	}
}

func (m *Machine) dispatchJob(job *Job, flag protocol.Flag, body string) bool {
	if !job.Active() {
		return false
	}

	if flag == protocol.FlagFault {
		m.failJob(job, newError(KindGenericRemoteFault, "server fault", nil), job.Outcome.Next)
		return true
	}

	switch job.Kind {
	case JobAuth:
		switch flag {
		case protocol.FlagAuthOK:
			m.succeedJob(job, ToSession(&Session{Identity: m.identity, Pairing: Unpaired}))
		case protocol.FlagAuthFault:
			m.failJob(job, newError(KindAuthRejected, "credentials rejected", nil), ToAuth())
		case protocol.FlagAuthOverAuth:
			m.failJob(job, newError(KindAuthAlreadyLoggedIn, m.identity.DisplayName, nil), ToAuth())
		default:
			return false
		}

	case JobTie:
		subject := job.subject()
		back := job.Outcome.Next
		switch flag {
		case protocol.FlagTieOK:
			sess := back.Session.clone()
			sess.Pairing = PairedWith(subject)
			m.succeedJob(job, ToSession(sess))
		case protocol.FlagTieWait:
			job.setProgress(progressTieWaiting)
			job.logf(time.Now(), "Waiting for %s to tie with you", subject)
		case protocol.FlagTieNoUser:
			m.failJob(job, newError(KindPairingNoSuchUser, subject, nil), back)
		case protocol.FlagTieSelfTie:
			m.failJob(job, newError(KindPairingSelfPair, subject, nil), back)
		case protocol.FlagTieOverTie:
			m.failJob(job, newError(KindPairingAlreadyTied, subject, nil), back)
		default:
			return false
		}

	default:
		return false
	}
	return true
}

func (m *Machine) dispatchSession(flag protocol.Flag, body string) bool {
	sess := m.state.Session

	switch flag {
	case protocol.FlagMessage:
		next := sess.clone()
		next.prepend(body)
		m.state.Session = next
	case protocol.FlagUntie:
		if !sess.Pairing.Paired {
			return false
		}
		next := sess.clone()
		next.Pairing = Unpaired
		m.swap(State{Screen: ScreenSession, Session: next})
	case protocol.FlagFault:
		next := sess.clone()
		next.prepend(noticeDeliveryFault)
		m.state.Session = next
	case protocol.FlagOK:
	default:
		return false
	}
	return true
}

// handleDrop runs when the inbound pump loses its socket.
func (m *Machine) handleDrop(connID uint64, err error) {
	c := m.conns[connID]
	if c != nil {
		c.cancel()
		_ = c.conn.Close()
		delete(m.conns, connID)
	}
	if connID != m.current {
		return
	}
	m.current = 0

	dropped := newError(KindTransportDropped, "socket closed", err)
	logging.Warn("Connection dropped", zap.Uint64("conn_id", connID), zap.Error(err))

	switch m.state.Screen {
	case ScreenJob:
		job := m.state.Job
		if job.Active() {
			m.failJob(job, dropped, ToAuth())
			return
		}
		if job.Outcome.Next != nil && job.Outcome.Next.Screen == ScreenSession {
			m.synthesizeDropJob(dropped)
		}
	case ScreenSession:
		m.synthesizeDropJob(dropped)
	}
}

// synthesizeDropJob puts a failed "Connection lost" job on screen. It is the
// only job not started by a user action.
func (m *Machine) synthesizeDropJob(err error) {
	m.nextJob++
	job := &Job{
		ID:    m.nextJob,
		Kind:  JobDropped,
		Title: TitleConnectionLost,
	}
	job.logf(time.Now(), "%s", ShortMessage(err))
	job.Outcome = Outcome{Kind: Failed, Next: ToAuth()}
	m.identity = Identity{}
	m.swap(State{Screen: ScreenJob, Job: job})
	logging.LogJob(job.ID, job.Title, "failed")
}
