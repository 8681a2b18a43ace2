package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboundWriteFailureFailsJobAndContinues(t *testing.T) {
	m, _ := idleMachine(State{Screen: ScreenJob, Job: authJob()})
	conn := &failingConn{fakeConn: newFakeConn(), failOn: "As3cret/alice:xyz"}
	m.conns[1].conn = conn

	q := &m.conns[1].queue
	q.Enqueue("As3cret/alice:xyz")
	q.Enqueue("Tbob")
	q.Enqueue("Balice: hi")

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-m.Done()
	})
	go m.outboundPump(ctx, 1, conn)

	var got []string
	require.Eventually(t, func() bool {
		select {
		case f := <-conn.out:
			got = append(got, f)
		default:
		}
		return len(got) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Tbob", "Balice: hi"}, got)

	var s Snapshot
	require.Eventually(t, func() bool {
		s = m.Snapshot()
		return s.Screen == ScreenJob && s.Job.Outcome.Kind == Failed && len(s.Pending) == 0
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, logContains(s.Job, "Socket unavailable"), "log: %v", s.Job.Log)
	require.NotNil(t, s.Job.Outcome.Next)
	assert.Equal(t, ScreenAuth, s.Job.Outcome.Next.Screen)
	assert.True(t, s.Connected)
	assert.False(t, conn.isClosed())
}

func TestOutboundFailedSentinelStillTerminates(t *testing.T) {
	sess := &Session{Identity: NewIdentity("alice:xyz")}
	m, _ := idleMachine(State{Screen: ScreenSession, Session: sess})
	conn := &failingConn{fakeConn: newFakeConn(), failOn: "X"}
	m.conns[1].conn = conn
	m.conns[1].queue.Enqueue("X")

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-m.Done()
	})

	done := make(chan struct{})
	go func() {
		m.outboundPump(ctx, 1, conn)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("outbound pump kept running after the drop-session sentinel")
	}
	assert.True(t, conn.isClosed())
}
