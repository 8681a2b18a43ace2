package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/husky/internal/logging"
	"github.com/muurk/husky/internal/protocol"
)

// window is one drained batch plus the queue epoch it was taken at.
type window struct {
	entries []Entry
	epoch   uint64
	ok      bool
}

// outboundPump owns the write half of conn. On every tick it drains the
// unsent entries, writes them in order and advances the queue by the
// number attempted. It exits once the drop-session sentinel is out.
func (m *Machine) outboundPump(ctx context.Context, connID uint64, conn Conn) {
	ticker := time.NewTicker(m.opts.DrainInterval)
	defer ticker.Stop()
	remote := conn.RemoteAddr()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		w := m.drain(ctx, connID)
		if !w.ok {
			return
		}
		if len(w.entries) == 0 {
			continue
		}

		sentSentinel := false
		for _, e := range w.entries {
			if err := conn.WriteFrame(e.Frame); err != nil {
				logging.Error("Failed to write frame", zap.String("remote_addr", remote), zap.Error(err))
				m.post(func() { m.writeFailed(connID, err) })
				continue
			}
			logging.LogFrame(remote, logging.DirectionOut, e.Frame)
			if e.Frame == protocol.DropSession {
				sentSentinel = true
			}
		}

		// n counts attempted writes, so a sentinel whose write failed still ends the pump
		if m.advance(ctx, connID, w.epoch, len(w.entries), sentSentinel) {
			logging.LogConnection(remote, "outbound_pump_terminated")
			_ = conn.Close()
			return
		}
	}
}

// drain asks the owner for the unsent entries of connID.
func (m *Machine) drain(ctx context.Context, connID uint64) window {
	reply := make(chan window, 1)
	if !m.post(func() {
		c := m.conns[connID]
		if c == nil {
			reply <- window{}
			return
		}
		reply <- window{entries: c.queue.DrainWindow(), epoch: c.queue.Epoch(), ok: true}
	}) {
		return window{}
	}

	select {
	case w := <-reply:
		return w
	case <-ctx.Done():
		return window{}
	case <-m.done:
		return window{}
	}
}

// advance marks n entries as sent. A window drained before a collapse is
// stale and only counts for the sentinel.
func (m *Machine) advance(ctx context.Context, connID uint64, epoch uint64, n int, sentSentinel bool) bool {
	reply := make(chan bool, 1)
	if !m.post(func() {
		c := m.conns[connID]
		if c == nil {
			reply <- true
			return
		}

		terminate := false
		if c.queue.Epoch() != epoch {
			if sentSentinel {
				c.queue.Clear()
				terminate = true
			}
		} else {
			terminate = c.queue.Advance(n)
		}

		if terminate {
			c.cancel()
			delete(m.conns, connID)
			if m.current == connID {
				m.current = 0
			}
		}
		reply <- terminate
	}) {
		return true
	}

	select {
	case t := <-reply:
		return t
	case <-ctx.Done():
		return true
	case <-m.done:
		return true
	}
}

// writeFailed fails the active job, if any. The pump keeps going.
func (m *Machine) writeFailed(connID uint64, err error) {
	if connID != m.current || m.state.Screen != ScreenJob {
		return
	}
	if job := m.state.Job; job.Active() {
		m.failJob(job, newError(KindSocketUnavailable, "write failed", err), ToAuth())
	}
}
