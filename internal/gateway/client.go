package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/soyeahso/crewbuilder/internal/config"
	"github.com/soyeahso/crewbuilder/internal/crew"
	"github.com/soyeahso/crewbuilder/internal/logging"
)

// ErrClientClosed is returned when writing to a connection that has gone away.
var ErrClientClosed = errors.New("client connection closed")

// writeWait bounds a single frame write to a slow peer.
const writeWait = 10 * time.Second

// Client is one authenticated connection and the builder session it owns.
type Client struct {
	ConnID      string
	Info        ClientInfo
	Socket      *websocket.Conn
	AuthResult  AuthResult
	ConnectedAt time.Time
	Session     *crew.Session

	// ctx ends with the connection, aborting a running crew.
	ctx    context.Context
	cancel context.CancelFunc

	executeLimiter *rate.Limiter
	executing      atomic.Bool

	writeMu sync.Mutex
	closed  bool
	log     *logging.Logger
}

// NewClient wraps a connection that has completed the handshake.
func NewClient(conn *websocket.Conn, info ClientInfo, authResult AuthResult, session *crew.Session, executeRate config.RateConfig, log *logging.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ConnID:         uuid.NewString(),
		Info:           info,
		Socket:         conn,
		AuthResult:     authResult,
		ConnectedAt:    time.Now(),
		Session:        session,
		ctx:            ctx,
		cancel:         cancel,
		executeLimiter: newExecuteLimiter(executeRate),
		log:            log,
	}
}

// newExecuteLimiter turns a per-minute allowance into a token bucket. A
// non-positive rate means unlimited; a missing burst admits one run.
func newExecuteLimiter(cfg config.RateConfig) *rate.Limiter {
	if cfg.PerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	every := time.Minute / time.Duration(cfg.PerMinute)
	return rate.NewLimiter(rate.Every(every), max(cfg.Burst, 1))
}

// Context is cancelled once the connection closes.
func (c *Client) Context() context.Context { return c.ctx }

// Send writes one frame. Safe for concurrent use.
func (c *Client) Send(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	_ = c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Socket.WriteJSON(f)
}

// SendEvent pushes a named event.
func (c *Client) SendEvent(event string, payload any, seq int64) error {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// Respond answers reqID successfully.
func (c *Client) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// RespondError answers reqID with an error.
func (c *Client) RespondError(reqID string, e ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, e))
}

// ReadFrame blocks for the next frame. Only the read loop calls it.
func (c *Client) ReadFrame() (Frame, error) {
	var f Frame
	_, msg, err := c.Socket.ReadMessage()
	if err != nil {
		return f, err
	}
	err = json.Unmarshal(msg, &f)
	return f, err
}

// Close cancels the client's context and closes the socket. Repeated calls
// are no-ops.
func (c *Client) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	if c.Socket == nil {
		return nil
	}
	return c.Socket.Close()
}

// ClientRegistry tracks live connections by ConnID.
type ClientRegistry struct {
	mu   sync.RWMutex
	byID map[string]*Client
	log  *logging.Logger
}

// NewClientRegistry returns an empty registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{byID: make(map[string]*Client), log: log}
}

// Add registers c.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	r.byID[c.ConnID] = c
	r.mu.Unlock()
	r.log.Debug().Str("connId", c.ConnID).Str("client", c.Info.ID).Msg("client registered")
}

// Remove forgets the client with connID, if present.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	_, ok := r.byID[connID]
	delete(r.byID, connID)
	r.mu.Unlock()
	if ok {
		r.log.Info().Str("connId", connID).Msg("client disconnected")
	}
}

// Count is the number of live connections.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *ClientRegistry) snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}

// Broadcast pushes an event to every live client and returns how many
// received it.
func (r *ClientRegistry) Broadcast(event string, payload any, seq int64) int {
	delivered := 0
	for _, c := range r.snapshot() {
		if err := c.SendEvent(event, payload, seq); err != nil {
			r.log.Warn().Err(err).Str("connId", c.ConnID).Str("event", event).Msg("broadcast send failed")
			continue
		}
		delivered++
	}
	return delivered
}

// CloseAll closes every client and empties the registry.
func (r *ClientRegistry) CloseAll() {
	for _, c := range r.snapshot() {
		_ = c.Close()
		r.Remove(c.ConnID)
	}
}
