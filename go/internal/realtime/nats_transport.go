package realtime

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the broker transport
type NATSConfig struct {
	URL           string
	SubjectPrefix string // e.g., "auction.events"
	Name          string
	Timeout       time.Duration
	BufferSize    int
}

// DefaultNATSConfig returns default broker configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "auction.events",
		Name:          "subasta-client",
		Timeout:       5 * time.Second,
		BufferSize:    256,
	}
}

// NATSTransport reads auction events straight from the broker, one subject per room.
// The library's own reconnect is disabled so the channel's backoff policy applies.
type NATSTransport struct {
	config NATSConfig
}

func NewNATSTransport(config NATSConfig) *NATSTransport {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultNATSConfig().BufferSize
	}
	return &NATSTransport{config: config}
}

func (t *NATSTransport) Subject(auctionID int64) string {
	return fmt.Sprintf("%s.%d", t.config.SubjectPrefix, auctionID)
}

func (t *NATSTransport) Dial(ctx context.Context, token string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := &natsConn{
		transport: t,
		msgs:      make(chan *nats.Msg, t.config.BufferSize),
		subs:      make(map[int64]*nats.Subscription),
		closed:    make(chan struct{}),
	}

	opts := []nats.Option{
		nats.Name(t.config.Name),
		nats.Token(token),
		nats.Timeout(t.config.Timeout),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Error().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			c.markClosed()
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(t.config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	c.nc = nc

	log.Debug().Str("url", nc.ConnectedUrl()).Msg("NATS connection established")
	return c, nil
}

type natsConn struct {
	transport *NATSTransport
	nc        *nats.Conn
	msgs      chan *nats.Msg

	mu   sync.Mutex
	subs map[int64]*nats.Subscription

	closed    chan struct{}
	closeOnce sync.Once
}

func (c *natsConn) Join(auctionID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subs[auctionID]; ok {
		return nil
	}
	sub, err := c.nc.ChanSubscribe(c.transport.Subject(auctionID), c.msgs)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.transport.Subject(auctionID), err)
	}
	c.subs[auctionID] = sub
	return nil
}

func (c *natsConn) Leave(auctionID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subs[auctionID]
	if !ok {
		return nil
	}
	delete(c.subs, auctionID)
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", sub.Subject, err)
	}
	return nil
}

func (c *natsConn) Receive() (Event, error) {
	for {
		select {
		case <-c.closed:
			return Event{}, ErrConnectionClosed
		case msg := <-c.msgs:
			ev, err := DecodeMessage(msg.Data)
			if err != nil {
				log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping undecodable event")
				continue
			}
			if ev.AuctionID == 0 {
				ev.AuctionID = auctionIDFromSubject(msg.Subject)
			}
			return ev, nil
		}
	}
}

func (c *natsConn) Close() error {
	c.nc.Close()
	c.markClosed()
	return nil
}

func (c *natsConn) markClosed() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// auctionIDFromSubject reads the id from the last token of "<prefix>.<auctionId>"
func auctionIDFromSubject(subject string) int64 {
	idx := strings.LastIndexByte(subject, '.')
	if idx < 0 {
		return 0
	}
	id, err := strconv.ParseInt(subject[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return id
}
