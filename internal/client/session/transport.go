package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/selight/designo/internal/platform/timeouts"
	"github.com/selight/designo/internal/scene/protocol"
	"golang.org/x/net/websocket"
)

// maxInboundFrameBytes leaves room for the envelope and sender id around a
// relayed payload.
const maxInboundFrameBytes = protocol.MaxPayloadBytes + 4<<10

// Conn is one framed connection to the relay.
type Conn interface {
	Send(frame protocol.Frame) error
	Receive() (protocol.Frame, error)
	Close() error
}

// Dialer opens relay connections.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a function to a Dialer.
type DialerFunc func(ctx context.Context) (Conn, error)

// Dial calls fn.
func (fn DialerFunc) Dial(ctx context.Context) (Conn, error) {
	return fn(ctx)
}

// WebSocketDialer dials the relay's /ws endpoint.
type WebSocketDialer struct {
	// URL is the ws:// or wss:// endpoint.
	URL string
	// Origin defaults to the http(s) form of URL.
	Origin string
}

// Dial opens a WebSocket connection.
func (d WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	origin := d.Origin
	if origin == "" {
		derived, err := originFor(d.URL)
		if err != nil {
			return nil, err
		}
		origin = derived
	}
	cfg, err := websocket.NewConfig(d.URL, origin)
	if err != nil {
		return nil, fmt.Errorf("relay config: %w", err)
	}
	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", d.URL, err)
	}
	ws.MaxPayloadBytes = maxInboundFrameBytes
	return &wsConn{ws: ws}, nil
}

func originFor(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", errors.New("relay url must use ws or wss")
	}
	u.Path = ""
	u.RawQuery = ""
	return u.String(), nil
}

type wsConn struct {
	writeMu sync.Mutex
	ws      *websocket.Conn
}

func (c *wsConn) Send(frame protocol.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(timeouts.WSWrite)); err != nil {
		return err
	}
	return websocket.JSON.Send(c.ws, frame)
}

func (c *wsConn) Receive() (protocol.Frame, error) {
	var frame protocol.Frame
	if err := websocket.JSON.Receive(c.ws, &frame); err != nil {
		return protocol.Frame{}, err
	}
	return frame, nil
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
