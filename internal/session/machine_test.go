package session

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/husky/internal/protocol"
)

func TestSubmitCredential_QueuesAuthorizeFrame(t *testing.T) {
	h := newHarness(t, "Ok", nil)

	require.NoError(t, h.m.SubmitCredential(h.ctx(), "alice:xyz"))

	s := h.waitFor("progress 90", func(s Snapshot) bool {
		return s.Screen == ScreenJob && s.Job.Progress == 90
	})
	assert.Equal(t, TitleAuthorizing, s.Job.Title)
	assert.Equal(t, InProgress, s.Job.Outcome.Kind)
	assert.True(t, s.Connected)
	require.Len(t, s.Pending, 1)

	flag, body, err := protocol.Decode(s.Pending[0])
	require.NoError(t, err)
	assert.Equal(t, protocol.FlagAuthorize, flag)
	assert.Equal(t, "s3cret/alice:xyz", body)
}

func TestAuthAccepted(t *testing.T) {
	h := newHarness(t, "Ok", nil)
	require.NoError(t, h.m.SubmitCredential(h.ctx(), "alice:xyz"))
	h.waitFor("auth queued", func(s Snapshot) bool { return s.Screen == ScreenJob && s.Job.Progress == 90 })

	h.conn.in <- "O"
	s := h.waitFor("succeeded", jobOutcome(Succeeded))
	assert.Equal(t, 100, s.Job.Progress)
	require.NotNil(t, s.Job.Outcome.Next)
	assert.Equal(t, ScreenSession, s.Job.Outcome.Next.Screen)

	// no automatic advance
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, ScreenJob, h.m.Snapshot().Screen)

	require.NoError(t, h.m.Continue(h.ctx()))
	s = h.waitFor("session", onScreen(ScreenSession))
	assert.Equal(t, "alice", s.Session.Identity.DisplayName)
	assert.Equal(t, "alice:xyz", s.Session.Identity.Credential)
	assert.Equal(t, Unpaired, s.Session.Pairing)
}

func TestAuthRejected(t *testing.T) {
	tests := []struct {
		name string
		flag string
		log  string
	}{
		{"bad credentials", "D", "Access denied"},
		{"already logged in", "I", "User already logged in"},
		{"server fault", "E", "Server reported a fault"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "Ok", nil)
			require.NoError(t, h.m.SubmitCredential(h.ctx(), "alice:xyz"))
			h.waitFor("auth queued", func(s Snapshot) bool { return s.Screen == ScreenJob && s.Job.Progress == 90 })

			h.conn.in <- tt.flag
			s := h.waitFor("failed", jobOutcome(Failed))
			assert.Equal(t, ScreenAuth, s.Job.Outcome.Next.Screen)
			assert.Equal(t, 90, s.Job.Progress)
			assert.True(t, logContains(s.Job, tt.log), "log: %v", s.Job.Log)

			// acknowledging returns to Auth and drops the socket
			require.NoError(t, h.m.Continue(h.ctx()))
			s = h.waitFor("auth", onScreen(ScreenAuth))
			assert.False(t, s.Connected)
		})
	}
}

func TestPreflightBusy(t *testing.T) {
	h := newHarness(t, "Busy", nil)
	require.NoError(t, h.m.SubmitCredential(h.ctx(), "alice:xyz"))

	s := h.waitFor("failed", jobOutcome(Failed))
	assert.Equal(t, ScreenAuth, s.Job.Outcome.Next.Screen)
	assert.True(t, logContains(s.Job, "disapproved"), "log: %v", s.Job.Log)
	assert.True(t, logContains(s.Job, "Busy"))
	assert.Empty(t, s.Pending)
	assert.False(t, s.Connected)
	assert.Equal(t, int32(0), h.dials.Load())
}

func TestPreflightUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	h := newHarness(t, "Ok", func(o *Options) {
		o.Endpoint.Port = port
		o.DialTimeout = time.Second
	})
	require.NoError(t, h.m.SubmitCredential(h.ctx(), "alice:xyz"))

	s := h.waitFor("failed", jobOutcome(Failed))
	assert.True(t, logContains(s.Job, "Server unreachable"), "log: %v", s.Job.Log)
	assert.Equal(t, 0, s.Job.Progress)
	assert.Equal(t, int32(0), h.dials.Load())
}

func TestSocketUnavailable(t *testing.T) {
	h := newHarness(t, "Ok", func(o *Options) {
		o.Dial = func(ctx context.Context, url string) (Conn, error) {
			return nil, errors.New("connection refused")
		}
	})
	require.NoError(t, h.m.SubmitCredential(h.ctx(), "alice:xyz"))

	s := h.waitFor("failed", jobOutcome(Failed))
	assert.True(t, logContains(s.Job, "Socket unavailable"))
	assert.Equal(t, 50, s.Job.Progress)
	assert.Empty(t, s.Pending)
}

func TestUntieIsSynchronous(t *testing.T) {
	h := newHarness(t, "Ok", nil)
	h.login()
	h.tieWith("bob")

	before := countFrames(h.m.Snapshot().Pending, protocol.Untie)
	require.NoError(t, h.m.Untie(h.ctx()))

	s := h.m.Snapshot()
	assert.Equal(t, ScreenSession, s.Screen)
	assert.Equal(t, Unpaired, s.Session.Pairing)
	assert.Equal(t, before+1, countFrames(s.Pending, protocol.Untie))
}

func TestActionsPublishBeforeReturning(t *testing.T) {
	h := newHarness(t, "Ok", nil)
	h.login()

	stale := 0
	const rounds = 500
	for i := 0; i < rounds; i++ {
		require.NoError(t, h.m.SubmitPairingSubject(h.ctx(), "bob"))
		if s := h.m.Snapshot(); s.Screen != ScreenJob || !s.Job.Active() {
			stale++
		}
		require.NoError(t, h.m.AbortJob(h.ctx()))
		if s := h.m.Snapshot(); s.Screen != ScreenSession {
			stale++
		}
	}
	assert.Zero(t, stale, "stale snapshots after %d actions", 2*rounds)
}

func TestPeerUntie(t *testing.T) {
	h := newHarness(t, "Ok", nil)
	h.login()
	h.tieWith("bob")

	h.conn.in <- "C"
	s := h.waitFor("unpaired", func(s Snapshot) bool {
		return s.Screen == ScreenSession && !s.Session.Pairing.Paired
	})
	assert.Equal(t, ScreenSession, s.Screen)
}

func TestRetieUntiesFirst(t *testing.T) {
	h := newHarness(t, "Ok", nil)
	h.login()
	h.tieWith("bob")

	require.NoError(t, h.m.SubmitPairingSubject(h.ctx(), "carol"))
	s := h.waitFor("tie carol queued", func(s Snapshot) bool {
		return s.Screen == ScreenJob && countFrames(s.Pending, "Tcarol") == 1
	})

	// untie precedes the new tie request
	untie, tie := -1, -1
	for i, f := range s.Pending {
		switch f {
		case protocol.Untie:
			untie = i
		case "Tcarol":
			tie = i
		}
	}
	assert.Greater(t, tie, untie)
	assert.NotEqual(t, -1, untie)
	assert.Equal(t, "carol", s.Job.Data[0])
}

func TestAbortTieJob(t *testing.T) {
	h := newHarness(t, "Ok", nil)
	h.login()

	require.NoError(t, h.m.SubmitPairingSubject(h.ctx(), "bob"))
	h.conn.in <- "W"
	h.waitFor("waiting", func(s Snapshot) bool {
		return s.Screen == ScreenJob && s.Job.Progress == progressTieWaiting
	})

	require.NoError(t, h.m.AbortJob(h.ctx()))
	s := h.m.Snapshot()
	assert.Equal(t, ScreenSession, s.Screen)
	assert.Equal(t, Unpaired, s.Session.Pairing)
	assert.Equal(t, 1, countFrames(s.Pending, protocol.Untie))
}

func TestConnectionDropInSession(t *testing.T) {
	h := newHarness(t, "Ok", nil)
	h.login()

	close(h.conn.in)
	s := h.waitFor("dropped job", jobOutcome(Failed))
	assert.Equal(t, TitleConnectionLost, s.Job.Title)
	assert.Equal(t, JobDropped, s.Job.Kind)
	assert.Equal(t, ScreenAuth, s.Job.Outcome.Next.Screen)
	assert.True(t, logContains(s.Job, "connection dropped"))
	assert.False(t, s.Connected)

	require.NoError(t, h.m.Continue(h.ctx()))
	h.waitFor("auth", onScreen(ScreenAuth))
}

func TestConnectionDropDuringAuth(t *testing.T) {
	h := newHarness(t, "Ok", nil)
	require.NoError(t, h.m.SubmitCredential(h.ctx(), "alice:xyz"))
	h.waitFor("auth queued", func(s Snapshot) bool { return s.Screen == ScreenJob && s.Job.Progress == 90 })

	close(h.conn.in)
	s := h.waitFor("failed", jobOutcome(Failed))
	assert.Equal(t, TitleAuthorizing, s.Job.Title)
	assert.True(t, logContains(s.Job, "connection dropped"))
}

func TestLogoutFlushesSentinel(t *testing.T) {
	h := newHarness(t, "Ok", func(o *Options) { o.DrainInterval = 5 * time.Millisecond })
	h.login()

	require.NoError(t, h.m.SendMessage(h.ctx(), "hi"))
	require.NoError(t, h.m.Logout(h.ctx()))
	assert.Equal(t, ScreenAuth, h.m.Snapshot().Screen)

	var got []string
	require.Eventually(t, func() bool {
		for {
			select {
			case f := <-h.conn.out:
				got = append(got, f)
			default:
				return h.conn.isClosed()
			}
		}
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"As3cret/alice:xyz", "Balice: hi", "X"}, got)
}

func TestMessagesMostRecentFirst(t *testing.T) {
	h := newHarness(t, "Ok", nil)
	h.login()
	h.tieWith("bob")

	h.conn.in <- "Bbob: one"
	h.conn.in <- "Balice: two"
	s := h.waitFor("two messages", func(s Snapshot) bool {
		return s.Screen == ScreenSession && len(s.Session.Messages) == 2
	})
	assert.Equal(t, []string{"alice: two", "bob: one"}, s.Session.Messages)
}

func TestOnTransitionRunsOnEverySwap(t *testing.T) {
	var mu sync.Mutex
	var seen []Screen
	h := newHarness(t, "Ok", func(o *Options) {
		o.OnTransition = func(from, to Screen) {
			mu.Lock()
			seen = append(seen, to)
			mu.Unlock()
		}
	})
	h.login()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Screen{ScreenJob, ScreenSession}, seen)
	assert.Equal(t, uint64(2), h.m.Snapshot().Generation)
}

func TestInvalidActions(t *testing.T) {
	h := newHarness(t, "Ok", nil)
	ctx := h.ctx()

	assert.ErrorIs(t, h.m.Untie(ctx), ErrInvalidAction)
	assert.ErrorIs(t, h.m.Logout(ctx), ErrInvalidAction)
	assert.ErrorIs(t, h.m.SendMessage(ctx, "hi"), ErrInvalidAction)
	assert.ErrorIs(t, h.m.SubmitPairingSubject(ctx, "bob"), ErrInvalidAction)
	assert.ErrorIs(t, h.m.AbortJob(ctx), ErrInvalidAction)
	assert.ErrorIs(t, h.m.Continue(ctx), ErrInvalidAction)
	assert.ErrorIs(t, h.m.SubmitCredential(ctx, ""), ErrEmptyInput)

	h.login()
	assert.ErrorIs(t, h.m.Untie(ctx), ErrInvalidAction, "untie while unpaired")
	assert.ErrorIs(t, h.m.SubmitCredential(ctx, "bob:pw"), ErrInvalidAction)
	assert.ErrorIs(t, h.m.SendMessage(ctx, ""), ErrEmptyInput)
}

func TestActionsAfterStop(t *testing.T) {
	m := NewMachine(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	cancel()
	<-m.Done()

	assert.ErrorIs(t, m.SubmitCredential(context.Background(), "alice"), ErrStopped)
}

func TestEndpointURLs(t *testing.T) {
	e := Endpoint{Host: "chat.example.com", Port: 8080}
	assert.Equal(t, "http://chat.example.com:8080/preconnect.php", e.PreflightURL())
	assert.Equal(t, "ws://chat.example.com:8080/", e.SocketURL())

	e = Endpoint{Host: "::1", Port: 443, HTTPPort: 8443, TLS: true, PreflightPath: "ready"}
	assert.Equal(t, "https://[::1]:8443/ready", e.PreflightURL())
	assert.Equal(t, "wss://[::1]:443/", e.SocketURL())
}

func TestPreflightUnparseable(t *testing.T) {
	srv := newBodyServer(t, "\xff\xfe")
	err := preflight(context.Background(), http.DefaultClient, srv)
	assert.True(t, IsKind(err, KindPreflightUnparseable), "err = %v", err)
	assert.True(t, IsPreflightError(err))
}
