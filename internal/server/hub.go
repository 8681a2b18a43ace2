package server

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/husky/internal/logging"
	"github.com/muurk/husky/internal/protocol"
)

// delivery is one frame to push to one client once the hub lock is released
type delivery struct {
	to    *Client
	frame string
}

// Hub holds the relay's shared state: who is logged in, who is waiting
// for whom and who is tied to whom. Every method is safe for concurrent use.
type Hub struct {
	mu        sync.Mutex
	accessKey string
	userKeys  map[string]bool // full "name:password" keys
	names     map[string]bool // registered user names
	clients   map[*Client]bool
	approved  map[string]*Client // name -> logged in client
	waitlist  map[string]string  // name -> subject it asked to tie with
	ties      map[string]string  // name -> peer, stored both ways
}

// NewHub creates a hub for the configured access key and users
func NewHub(cfg Config) *Hub {
	h := &Hub{
		accessKey: cfg.AccessKey,
		userKeys:  make(map[string]bool, len(cfg.Users)),
		names:     make(map[string]bool, len(cfg.Users)),
		clients:   make(map[*Client]bool),
		approved:  make(map[string]*Client),
		waitlist:  make(map[string]string),
		ties:      make(map[string]string),
	}
	for _, u := range cfg.Users {
		h.userKeys[u] = true
		h.names[protocol.UserName(u)] = true
	}
	return h
}

// Register adds a freshly upgraded client
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

// Count returns the number of connected sockets
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Clients returns a snapshot of the connected clients
func (h *Hub) Clients() []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// Online reports whether name is logged in
func (h *Hub) Online(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.approved[name]
	return ok
}

// PeerOf returns the peer name is tied with
func (h *Hub) PeerOf(name string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	peer, ok := h.ties[name]
	return peer, ok
}

// Unregister removes c and tears down its login, waitlist entry and tie.
// The returned deliveries notify a former peer.
func (h *Hub) Unregister(c *Client) []delivery {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[c] {
		return nil
	}
	delete(h.clients, c)

	name := c.name
	if name == "" {
		return nil
	}
	if h.approved[name] == c {
		delete(h.approved, name)
	}
	delete(h.waitlist, name)
	c.name = ""
	return h.untieLocked(name)
}

// Handle applies one frame from c. closeConn asks the caller to drop c.
func (h *Hub) Handle(c *Client, frame string) (out []delivery, closeConn bool) {
	flag, body, err := protocol.Decode(frame)
	if err != nil {
		logging.Warn("Dropping malformed frame", zap.String("client_id", c.ID), zap.Error(err))
		return nil, false
	}

	reply := func(f protocol.Flag) []delivery {
		return []delivery{{to: c, frame: protocol.Encode(f, "")}}
	}

	if !flag.SentBy(protocol.ClientToServer) {
		msg := "Unknown frame"
		if flag.Known() {
			msg = "Frame not sent by clients"
		}
		logging.Warn(msg, zap.String("client_id", c.ID), zap.String("flag", flag.Name()))
		return reply(protocol.FlagOK), false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch flag {
	case protocol.FlagAuthorize:
		return h.authorizeLocked(c, body), false

	case protocol.FlagDropSession:
		return nil, true
	}

	if c.name == "" {
		logging.Warn("Unauthorized frame, closing",
			zap.String("client_id", c.ID),
			zap.String("flag", flag.Name()),
		)
		return nil, true
	}

	name := c.name
	switch flag {
	case protocol.FlagTieInit:
		return h.tieLocked(c, name, strings.TrimSpace(body)), false

	case protocol.FlagUntie:
		delete(h.waitlist, name)
		out = h.untieLocked(name)
		return append(out, reply(protocol.FlagOK)...), false

	default: // message
		peer, ok := h.ties[name]
		if !ok {
			return reply(protocol.FlagFault), false
		}
		msg := protocol.Encode(protocol.FlagMessage, body)
		out = append(out, delivery{to: c, frame: msg})
		if pc := h.approved[peer]; pc != nil {
			out = append(out, delivery{to: pc, frame: msg})
		}
		return out, false
	}
}

func (h *Hub) authorizeLocked(c *Client, body string) []delivery {
	reply := func(f protocol.Flag) []delivery {
		return []delivery{{to: c, frame: protocol.Encode(f, "")}}
	}

	secret, userKey, ok := protocol.SplitAuthBody(body)
	name := protocol.UserName(userKey)

	if ok && name != "" {
		if _, online := h.approved[name]; online {
			logging.Info("Rejecting double login", zap.String("client_id", c.ID), zap.String("user", name))
			return reply(protocol.FlagAuthOverAuth)
		}
	}

	if !ok || c.name != "" || secret != h.accessKey || !h.userKeys[userKey] {
		logging.Warn("Authorization failed", zap.String("client_id", c.ID), zap.String("user", name))
		return reply(protocol.FlagAuthFault)
	}

	c.name = name
	h.approved[name] = c
	logging.Info("User logged in", zap.String("client_id", c.ID), zap.String("user", name))
	return reply(protocol.FlagAuthOK)
}

func (h *Hub) tieLocked(c *Client, name, subject string) []delivery {
	reply := func(f protocol.Flag) []delivery {
		return []delivery{{to: c, frame: protocol.Encode(f, "")}}
	}

	switch {
	case subject == name:
		return reply(protocol.FlagTieSelfTie)

	case h.tiedLocked(name) || h.tiedLocked(subject):
		return reply(protocol.FlagTieOverTie)

	case !h.names[subject]:
		return reply(protocol.FlagTieNoUser)

	case h.waitlist[subject] == name && h.approved[subject] != nil:
		delete(h.waitlist, subject)
		delete(h.waitlist, name)
		h.ties[name] = subject
		h.ties[subject] = name
		logging.Info("Users tied", zap.String("user", name), zap.String("peer", subject))

		ok := protocol.Encode(protocol.FlagTieOK, "")
		return []delivery{{to: c, frame: ok}, {to: h.approved[subject], frame: ok}}

	default:
		h.waitlist[name] = subject
		return reply(protocol.FlagTieWait)
	}
}

func (h *Hub) tiedLocked(name string) bool {
	_, ok := h.ties[name]
	return ok
}

// untieLocked breaks name's tie and tells the peer.
func (h *Hub) untieLocked(name string) []delivery {
	peer, ok := h.ties[name]
	if !ok {
		return nil
	}
	delete(h.ties, name)
	delete(h.ties, peer)
	logging.Info("Users untied", zap.String("user", name), zap.String("peer", peer))

	if pc := h.approved[peer]; pc != nil {
		return []delivery{{to: pc, frame: protocol.Untie}}
	}
	return nil
}
