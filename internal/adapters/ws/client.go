// Package ws connects the console to an AgentMesh backend over WebSocket and
// serves a simulated backend on the same protocol.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/adapters/wire"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/logging"
)

// Path is the backend's task processing endpoint.
const Path = "/api/v1/task/process"

const (
	defaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 10 * time.Second
)

var errNotConnected = errors.New("backend connection is not established")

// Client is a backend reached over WebSocket.
type Client struct {
	url     string
	dialer  *websocket.Dialer
	header  http.Header
	decoder *wire.Decoder
	logger  *logging.Logger
	now     func() time.Time
	id      string

	mu   sync.RWMutex
	conn *websocket.Conn

	writeMu sync.Mutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHandshakeTimeout bounds the opening handshake.
func WithHandshakeTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.dialer.HandshakeTimeout = d
	}
}

// WithHeader adds headers to the opening handshake.
func WithHeader(h http.Header) ClientOption {
	return func(c *Client) {
		c.header = h
	}
}

// NewClient creates a client for the backend at url
// (e.g. ws://localhost:8000/api/v1/task/process).
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:     url,
		dialer:  &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		decoder: wire.NewDecoder(),
		logger:  logging.NewNop(),
		now:     time.Now,
		id:      uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("ws-client").With("client_id", c.id)
	return c
}

// Connect dials the backend. Calling it on a connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return core.ErrTransport(fmt.Sprintf("connecting to %s", c.url)).WithCause(err)
	}
	c.conn = conn
	c.logger.Info("connected to backend", "url", c.url)
	return nil
}

// Connected reports whether a connection is open.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Submit sends a user_input frame.
func (c *Client) Submit(ctx context.Context, text string) error {
	if core.IsBlank(text) {
		return core.ErrValidation(core.CodeEmptyText, "submission text is empty")
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	msg, err := wire.NewMessage(wire.EventUserInput, "", wire.UserInput{Text: text}, c.now())
	if err != nil {
		return err
	}
	// The ack may arrive before the write returns.
	c.decoder.Expect(text)
	if err := c.write(msg); err != nil {
		c.decoder.Forget(text)
		return core.ErrTransport("sending user_input").WithCause(err)
	}
	return nil
}

// Run reads frames and forwards decoded events to out until ctx is done or
// the connection drops. Frames that fail to decode are forwarded as
// DecodeFailedEvent.
func (c *Client) Run(ctx context.Context, out chan<- events.Event) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	defer c.drop(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("backend closed the connection")
				return nil
			}
			return core.ErrTransport("reading from backend").WithCause(err)
		}
		select {
		case out <- c.decoder.Event(data):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}

func (c *Client) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Client) write(msg wire.Message) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return errNotConnected
	}
	return writeFrame(&c.writeMu, conn, msg)
}

func writeFrame(mu *sync.Mutex, conn *websocket.Conn, msg wire.Message) error {
	data, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}
