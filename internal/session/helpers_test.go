package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory socket. Tests push server frames into in and
// read client frames from out; closing in simulates a dropped socket.
type fakeConn struct {
	in     chan string
	out    chan string
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan string, 16),
		out:    make(chan string, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrame() (string, error) {
	select {
	case f, ok := <-c.in:
		if !ok {
			return "", io.EOF
		}
		return f, nil
	case <-c.closed:
		return "", net.ErrClosed
	}
}

func (c *fakeConn) WriteFrame(frame string) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	select {
	case c.out <- frame:
		return nil
	case <-c.closed:
		return net.ErrClosed
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) RemoteAddr() string { return "fake:1" }

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type harness struct {
	t     *testing.T
	m     *Machine
	conn  *fakeConn
	dials atomic.Int32
}

// newHarness runs a machine against an httptest preflight answering body
// and a fake socket. The drain interval defaults to an hour so queued
// frames stay visible in snapshots.
func newHarness(t *testing.T, body string, tweak func(*Options)) *harness {
	t.Helper()
	h := &harness{t: t, conn: newFakeConn()}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	opts := Options{
		Endpoint: endpointFor(t, srv.URL, "s3cret"),
		Dial: func(ctx context.Context, url string) (Conn, error) {
			h.dials.Add(1)
			return h.conn, nil
		},
		DrainInterval: time.Hour,
		SettleDelay:   10 * time.Millisecond,
	}
	if tweak != nil {
		tweak(&opts)
	}

	h.m = NewMachine(opts)
	ctx, cancel := context.WithCancel(context.Background())
	go h.m.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.m.Done()
	})
	return h
}

func endpointFor(t *testing.T, rawURL, secret string) Endpoint {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return Endpoint{Host: host, Port: port, Secret: secret}
}

func (h *harness) waitFor(what string, cond func(Snapshot) bool) Snapshot {
	h.t.Helper()
	var last Snapshot
	require.Eventually(h.t, func() bool {
		last = h.m.Snapshot()
		return cond(last)
	}, 2*time.Second, 5*time.Millisecond, what)
	return last
}

func (h *harness) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	h.t.Cleanup(cancel)
	return ctx
}

// login walks Auth -> Job -> Session for alice.
func (h *harness) login() {
	h.t.Helper()
	require.NoError(h.t, h.m.SubmitCredential(h.ctx(), "alice:xyz"))
	h.waitFor("auth frame queued", func(s Snapshot) bool {
		return s.Screen == ScreenJob && s.Job.Progress == progressAuthSent
	})
	h.conn.in <- "O"
	h.waitFor("auth job succeeded", jobOutcome(Succeeded))
	require.NoError(h.t, h.m.Continue(h.ctx()))
	h.waitFor("session screen", onScreen(ScreenSession))
}

// tieWith walks Session -> Job(tie) -> Session(Paired(peer)).
func (h *harness) tieWith(peer string) {
	h.t.Helper()
	require.NoError(h.t, h.m.SubmitPairingSubject(h.ctx(), peer))
	h.waitFor("tie frame queued", func(s Snapshot) bool {
		return s.Screen == ScreenJob && s.Job.Progress == progressTieSent
	})
	h.conn.in <- "S"
	h.waitFor("tie job succeeded", jobOutcome(Succeeded))
	require.NoError(h.t, h.m.Continue(h.ctx()))
	h.waitFor("paired session", func(s Snapshot) bool {
		return s.Screen == ScreenSession && s.Session.Pairing == PairedWith(peer)
	})
}

func onScreen(screen Screen) func(Snapshot) bool {
	return func(s Snapshot) bool { return s.Screen == screen }
}

func jobOutcome(kind OutcomeKind) func(Snapshot) bool {
	return func(s Snapshot) bool {
		return s.Screen == ScreenJob && s.Job.Outcome.Kind == kind
	}
}

func logContains(job *Job, text string) bool {
	for _, e := range job.Log {
		if strings.Contains(e.Text, text) {
			return true
		}
	}
	return false
}

func countFrames(frames []string, want string) int {
	n := 0
	for _, f := range frames {
		if f == want {
			n++
		}
	}
	return n
}

// idleMachine returns a machine that is not running, with one bound fake
// connection, for driving owner-side handlers directly.
func idleMachine(state State) (*Machine, *fakeConn) {
	m := NewMachine(Options{})
	conn := newFakeConn()
	m.conns[1] = &connection{id: 1, conn: conn, cancel: func() {}}
	m.current = 1
	m.state = state
	return m, conn
}

func newBodyServer(t *testing.T, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL + DefaultPreflightPath
}

// failingConn is a fakeConn whose writes of failOn return an error.
type failingConn struct {
	*fakeConn
	failOn string
}

func (c *failingConn) WriteFrame(frame string) error {
	if frame == c.failOn {
		return errors.New("broken pipe")
	}
	return c.fakeConn.WriteFrame(frame)
}
