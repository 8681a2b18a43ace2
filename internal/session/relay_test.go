package session_test

import (
	"context"
	"net"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/muurk/husky/internal/server"
	"github.com/muurk/husky/internal/session"
)

// client drives one Machine against a live relay
type client struct {
	t *testing.T
	m *session.Machine
}

func startRelay(t *testing.T) session.Endpoint {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.AccessKey = "s3cret"
	cfg.Users = []string{"alice:wonder", "bob:builder"}

	srv, err := server.New(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return session.Endpoint{Host: host, Port: port, Secret: cfg.AccessKey}
}

func newClient(t *testing.T, ep session.Endpoint) *client {
	t.Helper()
	m := session.NewMachine(session.Options{
		Endpoint:      ep,
		DrainInterval: 5 * time.Millisecond,
		SettleDelay:   10 * time.Millisecond,
		DialTimeout:   2 * time.Second,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = m.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-m.Done()
	})
	return &client{t: t, m: m}
}

func (c *client) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	c.t.Cleanup(cancel)
	return ctx
}

func (c *client) waitFor(what string, cond func(session.Snapshot) bool) {
	c.t.Helper()
	require.Eventually(c.t, func() bool { return cond(c.m.Snapshot()) }, 3*time.Second, 5*time.Millisecond, what)
}

func (c *client) finishJob(want session.OutcomeKind) {
	c.t.Helper()
	c.waitFor("job finished", func(s session.Snapshot) bool {
		return s.Screen == session.ScreenJob && s.Job.Outcome.Kind == want
	})
	require.NoError(c.t, c.m.Continue(c.ctx()))
}

func (c *client) login(credential string) {
	c.t.Helper()
	require.NoError(c.t, c.m.SubmitCredential(c.ctx(), credential))
	c.finishJob(session.Succeeded)
	c.waitFor("session", func(s session.Snapshot) bool { return s.Screen == session.ScreenSession })
}

func TestRelayRoundTrip(t *testing.T) {
	ep := startRelay(t)
	alice := newClient(t, ep)
	bob := newClient(t, ep)

	alice.login("alice:wonder")
	bob.login("bob:builder")

	// alice waits for bob, bob's request completes both ties
	require.NoError(t, alice.m.SubmitPairingSubject(alice.ctx(), "bob"))
	alice.waitFor("alice waiting", func(s session.Snapshot) bool {
		return s.Screen == session.ScreenJob && s.Job.Progress == 75
	})
	require.NoError(t, bob.m.SubmitPairingSubject(bob.ctx(), "alice"))
	bob.finishJob(session.Succeeded)
	alice.finishJob(session.Succeeded)

	paired := func(peer string) func(session.Snapshot) bool {
		return func(s session.Snapshot) bool {
			return s.Screen == session.ScreenSession && s.Session.Pairing == session.PairedWith(peer)
		}
	}
	alice.waitFor("alice tied", paired("bob"))
	bob.waitFor("bob tied", paired("alice"))

	require.NoError(t, alice.m.SendMessage(alice.ctx(), "hi bob"))
	hasMessage := func(s session.Snapshot) bool {
		return s.Session != nil && len(s.Session.Messages) == 1 && s.Session.Messages[0] == "alice: hi bob"
	}
	alice.waitFor("echo to sender", hasMessage)
	bob.waitFor("delivery to peer", hasMessage)

	require.NoError(t, alice.m.Logout(alice.ctx()))
	bob.waitFor("bob untied after alice left", func(s session.Snapshot) bool {
		return s.Screen == session.ScreenSession && !s.Session.Pairing.Paired
	})
}

func TestRelayRejectsBadPassword(t *testing.T) {
	ep := startRelay(t)
	c := newClient(t, ep)

	require.NoError(t, c.m.SubmitCredential(c.ctx(), "alice:wrong"))
	c.finishJob(session.Failed)
	c.waitFor("back on auth", func(s session.Snapshot) bool { return s.Screen == session.ScreenAuth })
}
