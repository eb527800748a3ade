// Package realtime keeps one push connection alive and fans its events out to subscribers.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseDelay   = time.Second
	DefaultMaxAttempts = 5
)

var (
	ErrNoToken = errors.New("no session token")
	ErrConnect = errors.New("realtime connection failed")
)

type Option func(*Channel)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Channel) { c.clock = clock }
}

// WithBackoff overrides the first retry delay and the number of retries
func WithBackoff(base time.Duration, maxAttempts int) Option {
	return func(c *Channel) {
		c.baseDelay = base
		c.maxAttempts = maxAttempts
	}
}

type handlerEntry struct {
	id int
	fn func(Event)
}

// Channel is the single logical push connection of the client.
// Rooms are reference counted; the transport only hears about the first
// join and the last leave of each auction.
type Channel struct {
	transport   Transport
	tokenSource func() string
	clock       clockwork.Clock
	baseDelay   time.Duration
	maxAttempts int

	mu        sync.Mutex
	conn      Conn
	gen       uint64
	status    Status
	attempts  int
	rooms     map[int64]int
	retryStop chan struct{}

	handlersMu    sync.RWMutex
	handlers      map[Kind][]handlerEntry
	nextHandlerID int
}

func NewChannel(transport Transport, tokenSource func() string, opts ...Option) *Channel {
	c := &Channel{
		transport:   transport,
		tokenSource: tokenSource,
		clock:       clockwork.NewRealClock(),
		baseDelay:   DefaultBaseDelay,
		maxAttempts: DefaultMaxAttempts,
		status:      StatusIdle,
		rooms:       make(map[int64]int),
		handlers:    make(map[Kind][]handlerEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the transport and blocks until it is ready. Any previous
// connection and pending retry are dropped and the attempt counter is reset.
func (c *Channel) Connect(ctx context.Context) error {
	token := c.tokenSource()
	if token == "" {
		return ErrNoToken
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.attempts = 0
	c.stopRetryLocked()
	old := c.conn
	c.conn = nil
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	c.setStatus(gen, StatusConnecting)

	conn, err := c.transport.Dial(ctx, token)
	if err != nil {
		c.setStatus(gen, StatusDisconnected)
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	if !c.attach(gen, conn) {
		return fmt.Errorf("%w: superseded by a newer connection", ErrConnect)
	}

	log.Info().Msg("realtime channel connected")
	return nil
}

// Disconnect closes the connection for good. No pending retry fires afterwards.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.stopRetryLocked()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing realtime connection")
		}
	}
	c.setStatus(gen, StatusDisconnected)
	log.Info().Msg("realtime channel disconnected")
}

func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Rooms returns the reference count of every joined auction
func (c *Channel) Rooms() map[int64]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	rooms := make(map[int64]int, len(c.rooms))
	for id, n := range c.rooms {
		rooms[id] = n
	}
	return rooms
}

// JoinRoom takes a reference on the auction's room. Only the first reference
// reaches the transport. A failed transport join keeps the reference so the
// room is joined again on the next connection.
func (c *Channel) JoinRoom(auctionID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rooms[auctionID]++
	if c.rooms[auctionID] > 1 || c.conn == nil {
		return nil
	}
	if err := c.conn.Join(auctionID); err != nil {
		log.Warn().Err(err).Int64("auction_id", auctionID).Msg("failed to join room")
		return fmt.Errorf("join room %d: %w", auctionID, err)
	}
	log.Debug().Int64("auction_id", auctionID).Msg("joined room")
	return nil
}

// LeaveRoom drops a reference. Leaving a room that was never joined is a no-op.
func (c *Channel) LeaveRoom(auctionID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.rooms[auctionID]
	if !ok {
		return nil
	}
	if n > 1 {
		c.rooms[auctionID] = n - 1
		return nil
	}
	delete(c.rooms, auctionID)

	if c.conn == nil {
		return nil
	}
	if err := c.conn.Leave(auctionID); err != nil {
		log.Warn().Err(err).Int64("auction_id", auctionID).Msg("failed to leave room")
		return fmt.Errorf("leave room %d: %w", auctionID, err)
	}
	log.Debug().Int64("auction_id", auctionID).Msg("left room")
	return nil
}

// Subscribe registers handler for kind. Handlers of a kind run in
// registration order on the channel's read goroutine.
func (c *Channel) Subscribe(kind Kind, handler func(Event)) (unsubscribe func()) {
	c.handlersMu.Lock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.handlers[kind] = append(c.handlers[kind], handlerEntry{id: id, fn: handler})
	c.handlersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.handlersMu.Lock()
			defer c.handlersMu.Unlock()

			entries := c.handlers[kind]
			for i, e := range entries {
				if e.id == id {
					c.handlers[kind] = append(entries[:i:i], entries[i+1:]...)
					break
				}
			}
		})
	}
}

func (c *Channel) dispatch(ev Event) {
	c.handlersMu.RLock()
	entries := append([]handlerEntry(nil), c.handlers[ev.Kind]...)
	c.handlersMu.RUnlock()

	for _, e := range entries {
		e.fn(ev)
	}
}

// attach installs conn as the live connection if gen is still current
func (c *Channel) attach(gen uint64, conn Conn) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		conn.Close()
		return false
	}

	c.conn = conn
	c.attempts = 0
	for id := range c.rooms {
		if err := conn.Join(id); err != nil {
			log.Warn().Err(err).Int64("auction_id", id).Msg("failed to rejoin room")
		}
	}
	c.mu.Unlock()

	c.setStatus(gen, StatusConnected)
	go c.readLoop(gen, conn)
	return true
}

func (c *Channel) readLoop(gen uint64, conn Conn) {
	for {
		ev, err := conn.Receive()
		if err != nil {
			c.handleDrop(gen, conn, err)
			return
		}
		if !c.accepts(gen, ev) {
			continue
		}
		c.dispatch(ev)
	}
}

// accepts drops events from a superseded connection and events for rooms no longer held
func (c *Channel) accepts(gen uint64, ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return false
	}
	if ev.AuctionID == 0 {
		return true
	}
	return c.rooms[ev.AuctionID] > 0
}

func (c *Channel) handleDrop(gen uint64, conn Conn, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	conn.Close()
	log.Warn().Err(cause).Msg("realtime connection lost")
	c.scheduleRetry(gen)
}

// scheduleRetry arms the next backoff timer, or gives up after maxAttempts
func (c *Channel) scheduleRetry(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.maxAttempts {
		c.mu.Unlock()
		log.Error().Int("attempts", c.maxAttempts).Msg("giving up on realtime connection")
		c.setStatus(gen, StatusDisconnected)
		return
	}

	c.attempts++
	attempt := c.attempts
	delay := c.baseDelay << (attempt - 1)
	timer := c.clock.NewTimer(delay)
	stop := make(chan struct{})
	c.retryStop = stop
	c.mu.Unlock()

	c.setStatus(gen, StatusReconnecting)
	log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("scheduled realtime reconnect")

	go func(t clockwork.Timer) {
		select {
		case <-t.Chan():
			c.retry(gen, stop, attempt)
		case <-stop:
			stopAndDrainTimer(t)
		}
	}(timer)
}

func (c *Channel) retry(gen uint64, stop chan struct{}, attempt int) {
	c.mu.Lock()
	if gen != c.gen || c.retryStop != stop {
		c.mu.Unlock()
		return
	}
	c.retryStop = nil
	c.mu.Unlock()

	token := c.tokenSource()
	if token == "" {
		log.Warn().Msg("session gone, not reconnecting")
		c.setStatus(gen, StatusDisconnected)
		return
	}

	conn, err := c.transport.Dial(context.Background(), token)
	if err != nil {
		log.Warn().Err(err).Int("attempt", attempt).Msg("realtime reconnect failed")
		c.scheduleRetry(gen)
		return
	}
	if c.attach(gen, conn) {
		log.Info().Int("attempt", attempt).Msg("realtime channel reconnected")
	}
}

func (c *Channel) stopRetryLocked() {
	if c.retryStop != nil {
		close(c.retryStop)
		c.retryStop = nil
	}
}

// setStatus records s and tells connection-status subscribers, unless gen is stale
func (c *Channel) setStatus(gen uint64, s Status) {
	c.mu.Lock()
	if gen != c.gen || c.status == s {
		c.mu.Unlock()
		return
	}
	c.status = s
	c.mu.Unlock()

	c.dispatch(statusEvent(s))
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
