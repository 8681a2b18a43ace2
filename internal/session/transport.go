package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Preflight bodies longer than this are not "Ok" anyway.
	maxPreflightBody = 4096

	// DefaultPreflightPath is the relay's preflight endpoint.
	DefaultPreflightPath = "/preconnect.php"

	// PreflightOK is the exact body of an accepted preflight.
	PreflightOK = "Ok"
)

// Endpoint is where the relay lives and how to authorize against it.
type Endpoint struct {
	Host string
	// Port is the WebSocket port.
	Port int
	// HTTPPort serves the preflight; zero means Port.
	HTTPPort      int
	Secret        string
	TLS           bool
	PreflightPath string
}

// PreflightURL returns the http(s) URL of the preflight endpoint.
func (e Endpoint) PreflightURL() string {
	scheme := "http"
	if e.TLS {
		scheme = "https"
	}
	port := e.HTTPPort
	if port == 0 {
		port = e.Port
	}
	path := e.PreflightPath
	if path == "" {
		path = DefaultPreflightPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(e.Host, strconv.Itoa(port)), path)
}

// SocketURL returns the ws(s) URL of the relay socket.
func (e Endpoint) SocketURL() string {
	scheme := "ws"
	if e.TLS {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/", scheme, net.JoinHostPort(e.Host, strconv.Itoa(e.Port)))
}

// Conn is one open relay socket. ReadFrame is only called by the inbound
// pump and WriteFrame only by the outbound pump; Close may be called from
// anywhere.
type Conn interface {
	ReadFrame() (string, error)
	WriteFrame(frame string) error
	Close() error
	RemoteAddr() string
}

// DialFunc opens a socket to url.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// DialWebSocket is the default DialFunc. It uses gorilla's default dialer.
func DialWebSocket(ctx context.Context, url string) (Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) ReadFrame() (string, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *wsConn) WriteFrame(frame string) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(frame))
}

// Close sends a close frame when possible and tears the socket down.
func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	return c.ws.Close()
}

func (c *wsConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// preflight asks the relay whether it accepts a new connection. Each
// failure mode maps to its own error kind.
func preflight(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return newError(KindPreflightUnreachable, "invalid preflight URL", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return newError(KindPreflightUnreachable, "preflight request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPreflightBody))
	if err != nil {
		return newError(KindPreflightUnparseable, "failed to read preflight body", err)
	}
	if !utf8.Valid(data) {
		return newError(KindPreflightUnparseable, "preflight body is not text", nil)
	}

	body := string(data)
	if body != PreflightOK {
		return newError(KindPreflightRejected, body, nil)
	}
	return nil
}
