package realtime

import (
	"context"
	"errors"
)

// ErrConnectionClosed is returned by Conn.Receive once the connection is gone
var ErrConnectionClosed = errors.New("connection closed")

// Transport opens authenticated connections to a push source
type Transport interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// Conn is one live connection. Receive blocks until an event arrives or the
// connection fails; it is only ever called from a single goroutine.
type Conn interface {
	Join(auctionID int64) error
	Leave(auctionID int64) error
	Receive() (Event, error)
	Close() error
}
