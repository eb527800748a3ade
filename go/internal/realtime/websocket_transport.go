package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketConfig holds configuration for the websocket transport
type WebSocketConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
}

// DefaultWebSocketConfig returns default websocket configuration for url
func DefaultWebSocketConfig(url string) WebSocketConfig {
	return WebSocketConfig{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   64 * 1024,
	}
}

// roomCommand is the client frame that joins or leaves an auction room
type roomCommand struct {
	Action    string `json:"action"`
	AuctionID string `json:"auctionId"`
}

const (
	actionJoin  = "join_auction"
	actionLeave = "leave_auction"
)

type WebSocketTransport struct {
	config WebSocketConfig
	dialer *websocket.Dialer
}

func NewWebSocketTransport(config WebSocketConfig) *WebSocketTransport {
	return &WebSocketTransport{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
	}
}

// Dial authenticates with the token both as a query parameter and a bearer header
func (t *WebSocketTransport) Dial(ctx context.Context, token string) (Conn, error) {
	u, err := url.Parse(t.config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := t.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial websocket: %w", err)
	}

	c := &wsConn{
		conn:   conn,
		config: t.config,
		done:   make(chan struct{}),
	}
	c.conn.SetReadLimit(t.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(t.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(t.config.ReadTimeout))
	})
	go c.pingLoop()

	log.Debug().Str("url", t.config.URL).Msg("websocket connection established")
	return c, nil
}

type wsConn struct {
	conn   *websocket.Conn
	config WebSocketConfig

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsConn) Join(auctionID int64) error {
	return c.writeJSON(roomCommand{Action: actionJoin, AuctionID: strconv.FormatInt(auctionID, 10)})
}

func (c *wsConn) Leave(auctionID int64) error {
	return c.writeJSON(roomCommand{Action: actionLeave, AuctionID: strconv.FormatInt(auctionID, 10)})
}

// Receive skips frames it cannot decode and returns ErrConnectionClosed once the socket is gone
func (c *wsConn) Receive() (Event, error) {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("unexpected websocket close")
			}
			return Event{}, fmt.Errorf("%w: %w", ErrConnectionClosed, err)
		}
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		ev, err := DecodeMessage(message)
		if err != nil {
			log.Warn().Err(err).Msg("dropping undecodable websocket frame")
			continue
		}
		return ev, nil
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					log.Debug().Err(err).Msg("failed to send ping")
				}
				return
			}
		}
	}
}
