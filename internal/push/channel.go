// Package push maintains the websocket that delivers notifications to the
// signed-in user. Delivery is at-most-once: anything sent while the socket
// is down is lost and must be recovered by polling.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/nhle/taskflow/internal/model"
)

var (
	// ErrNoIdentity is returned by Connect when no user id is given.
	ErrNoIdentity = errors.New("push: no user identity")

	// ErrNotConnected is returned when sending without an open socket.
	ErrNotConnected = errors.New("push: not connected")
)

// Handler receives decoded notification payloads.
type Handler func(model.Notification)

type handlerEntry struct {
	id int
	fn Handler
}

// Option customises a Channel.
type Option func(*Channel)

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

// WithBackoff sets the reconnection policy. The factory is called once per
// Connect.
func WithBackoff(newBackoff func() backoff.BackOff) Option {
	return func(c *Channel) { c.newBackoff = newBackoff }
}

// Channel is one websocket connection scoped to a user.
type Channel struct {
	url        string
	token      string
	logger     *log.Logger
	dialer     *websocket.Dialer
	newBackoff func() backoff.BackOff

	// lifecycle serialises Connect and Disconnect.
	lifecycle sync.Mutex

	mu        sync.Mutex
	userID    string
	connected bool
	conn      *websocket.Conn
	cancel    context.CancelFunc
	done      chan struct{}

	handlersMu sync.RWMutex
	handlers   []handlerEntry
	nextID     int
}

// New creates a disconnected channel for the websocket at url.
func New(url, token string, logger *log.Logger, opts ...Option) *Channel {
	c := &Channel{
		url:        url,
		token:      token,
		logger:     logger,
		dialer:     websocket.DefaultDialer,
		newBackoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Connect opens the channel for userID and keeps it open until Disconnect,
// reconnecting with backoff on failure. Connecting again as the same user
// is a no-op; a different user replaces the current connection.
func (c *Channel) Connect(userID string) error {
	if userID == "" {
		return ErrNoIdentity
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	same := c.cancel != nil && c.userID == userID
	c.mu.Unlock()
	if same {
		return nil
	}

	c.disconnect()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.userID = userID
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go c.run(ctx, userID, done)
	return nil
}

// Disconnect closes the socket and waits for the read loop to exit. Once
// it returns no handler will be called. Handlers must not call Disconnect.
func (c *Channel) Disconnect() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.disconnect()
}

func (c *Channel) disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.done = nil
	c.userID = ""
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// OnEvent registers h for incoming notifications and returns a function
// that removes it.
func (c *Channel) OnEvent(h Handler) func() {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	id := c.nextID
	c.nextID++
	c.handlers = append(c.handlers, handlerEntry{id: id, fn: h})

	return func() {
		c.handlersMu.Lock()
		defer c.handlersMu.Unlock()
		for i, e := range c.handlers {
			if e.id == id {
				c.handlers = append(c.handlers[:i:i], c.handlers[i+1:]...)
				return
			}
		}
	}
}

// Connected reports whether the socket is currently open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connection describes the channel for the current session.
func (c *Channel) Connection() model.ChannelConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.ChannelConnection{UserID: c.userID, Connected: c.connected}
}

// Send writes an event on the open socket.
func (c *Channel) Send(event string, data interface{}) error {
	env, err := NewEnvelope(event, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("writing %s: %w", event, err)
	}
	return nil
}

// run dials and reads until ctx is cancelled, sleeping between attempts
// according to the backoff policy.
func (c *Channel) run(ctx context.Context, userID string, done chan struct{}) {
	defer close(done)

	b := backoff.WithContext(c.newBackoff(), ctx)
	for {
		opened, err := c.session(ctx, userID)
		if ctx.Err() != nil {
			return
		}
		if opened {
			b.Reset()
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			c.logger.Printf("[WARN] push channel giving up: %v", err)
			return
		}
		c.logger.Printf("[WARN] push channel lost (%v), retrying in %s", err, wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// session runs one connection: dial, join the user room, then dispatch
// frames until the socket fails. opened reports whether the join succeeded.
func (c *Channel) session(ctx context.Context, userID string) (opened bool, err error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("dialing %s: %w", c.url, err)
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.connected = false
		c.mu.Unlock()
		conn.Close()
	}()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.Send(EventJoinUserRoom, userID); err != nil {
		return false, err
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	c.logger.Printf("[INFO] push channel connected for user %s", userID)

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return true, fmt.Errorf("reading: %w", err)
		}
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		c.handle(env)
	}
}

func (c *Channel) handle(env Envelope) {
	if env.Event != EventNotification {
		c.logger.Printf("[DEBUG] push channel ignoring event %q", env.Event)
		return
	}

	var n model.Notification
	if err := json.Unmarshal(env.Data, &n); err != nil {
		c.logger.Printf("[WARN] push channel dropping malformed notification: %v", err)
		return
	}
	if n.ID == "" {
		c.logger.Printf("[WARN] push channel dropping notification without id")
		return
	}

	c.handlersMu.RLock()
	handlers := make([]handlerEntry, len(c.handlers))
	copy(handlers, c.handlers)
	c.handlersMu.RUnlock()

	for _, h := range handlers {
		h.fn(n)
	}
}
