package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	joins  []int64
	leaves []int64

	events    chan Event
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		events: make(chan Event, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Join(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joins = append(c.joins, id)
	return nil
}

func (c *fakeConn) Leave(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaves = append(c.leaves, id)
	return nil
}

func (c *fakeConn) Receive() (Event, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.closed:
		return Event{}, ErrConnectionClosed
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// drop simulates the server going away
func (c *fakeConn) drop() {
	c.Close()
}

func (c *fakeConn) joined() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.joins...)
}

func (c *fakeConn) left() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.leaves...)
}

type fakeTransport struct {
	mu      sync.Mutex
	conns   []*fakeConn
	dials   int32
	failing atomic.Bool
}

func (t *fakeTransport) Dial(ctx context.Context, token string) (Conn, error) {
	atomic.AddInt32(&t.dials, 1)
	if t.failing.Load() {
		return nil, errors.New("connection refused")
	}

	conn := newFakeConn()
	t.mu.Lock()
	t.conns = append(t.conns, conn)
	t.mu.Unlock()
	return conn, nil
}

func (t *fakeTransport) dialCount() int32 {
	return atomic.LoadInt32(&t.dials)
}

func (t *fakeTransport) last() *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[len(t.conns)-1]
}

func staticToken(token string) func() string {
	return func() string { return token }
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.events))
	for _, ev := range l.events {
		names = append(names, ev.Name)
	}
	return names
}

func TestChannel_ConnectRequiresToken(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	ch := NewChannel(tr, staticToken(""))

	require.ErrorIs(t, ch.Connect(context.Background()), ErrNoToken)
	require.Zero(t, tr.dialCount())
	require.Equal(t, StatusIdle, ch.Status())
}

func TestChannel_ConnectFailure(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	tr.failing.Store(true)
	ch := NewChannel(tr, staticToken("tok"))

	err := ch.Connect(context.Background())
	require.ErrorIs(t, err, ErrConnect)
	require.Equal(t, StatusDisconnected, ch.Status())
	require.Equal(t, int32(1), tr.dialCount())
}

func TestChannel_JoinRoomIsReferenceCounted(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	ch := NewChannel(tr, staticToken("tok"))
	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Disconnect()

	var got eventLog
	ch.Subscribe(KindNewBid, got.add)

	require.NoError(t, ch.JoinRoom(7))
	require.NoError(t, ch.JoinRoom(7))
	conn := tr.last()
	require.Equal(t, []int64{7}, conn.joined())
	require.Equal(t, map[int64]int{7: 2}, ch.Rooms())

	conn.events <- Event{Kind: KindNewBid, Name: "first", AuctionID: 7}
	conn.events <- Event{Kind: KindNewBid, Name: "other-room", AuctionID: 8}
	conn.events <- Event{Kind: KindNewBid, Name: "second", AuctionID: 7}

	require.Eventually(t, func() bool {
		return len(got.names()) == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"first", "second"}, got.names())

	require.NoError(t, ch.LeaveRoom(7))
	require.Empty(t, conn.left())
	require.NoError(t, ch.LeaveRoom(7))
	require.Equal(t, []int64{7}, conn.left())
	require.NoError(t, ch.LeaveRoom(7))
	require.NoError(t, ch.LeaveRoom(99))
	require.Equal(t, []int64{7}, conn.left())
	require.Empty(t, ch.Rooms())
}

func TestChannel_HandlersRunInRegistrationOrder(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	ch := NewChannel(tr, staticToken("tok"))
	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Disconnect()

	var mu sync.Mutex
	var order []string
	record := func(name string) func(Event) {
		return func(Event) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
		}
	}
	snapshot := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), order...)
	}

	ch.Subscribe(KindAuctionEnded, record("a"))
	unsubscribe := ch.Subscribe(KindAuctionEnded, record("b"))
	ch.Subscribe(KindAuctionEnded, record("c"))
	ch.Subscribe(KindNotification, record("notification"))

	conn := tr.last()
	conn.events <- Event{Kind: KindAuctionEnded}
	require.Eventually(t, func() bool { return len(snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"a", "b", "c"}, snapshot())

	unsubscribe()
	unsubscribe()
	conn.events <- Event{Kind: KindAuctionEnded}
	require.Eventually(t, func() bool { return len(snapshot()) == 5 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"a", "b", "c", "a", "c"}, snapshot())
}

func TestChannel_ReconnectGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	tr := &fakeTransport{}
	ch := NewChannel(tr, staticToken("tok"), WithClock(clock))

	var statuses eventLog
	ch.Subscribe(KindConnectionStatus, statuses.add)

	require.NoError(t, ch.Connect(ctx))
	tr.failing.Store(true)
	tr.last().drop()

	for attempt := 1; attempt <= DefaultMaxAttempts; attempt++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(DefaultBaseDelay << (attempt - 1))

		want := int32(1 + attempt)
		require.Eventually(t, func() bool { return tr.dialCount() == want }, time.Second, 5*time.Millisecond)
	}

	require.Eventually(t, func() bool { return ch.Status() == StatusDisconnected }, time.Second, 5*time.Millisecond)

	// nothing is left to fire
	clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1+DefaultMaxAttempts), tr.dialCount())
	require.Equal(t, StatusDisconnected, ch.Status())

	// an explicit Connect starts over
	tr.failing.Store(false)
	require.NoError(t, ch.Connect(ctx))
	require.Equal(t, StatusConnected, ch.Status())
	ch.Disconnect()
}

func TestChannel_ReconnectResetsAttemptsAndRejoins(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	tr := &fakeTransport{}
	ch := NewChannel(tr, staticToken("tok"), WithClock(clock))
	defer ch.Disconnect()

	require.NoError(t, ch.Connect(ctx))
	require.NoError(t, ch.JoinRoom(7))

	// first retry fails, second succeeds
	tr.failing.Store(true)
	tr.last().drop()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return tr.dialCount() == 2 }, time.Second, 5*time.Millisecond)

	tr.failing.Store(false)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return ch.Status() == StatusConnected }, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(3), tr.dialCount())
	require.Equal(t, []int64{7}, tr.last().joined())

	// the counter was reset, so the next drop waits the base delay again
	tr.last().drop()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return tr.dialCount() == 4 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return ch.Status() == StatusConnected }, time.Second, 5*time.Millisecond)
}

func TestChannel_DisconnectStopsPendingRetry(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	tr := &fakeTransport{}
	ch := NewChannel(tr, staticToken("tok"), WithClock(clock))

	require.NoError(t, ch.Connect(ctx))
	tr.last().drop()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	ch.Disconnect()
	require.NoError(t, clock.BlockUntilContext(ctx, 0))

	clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1), tr.dialCount())
	require.Equal(t, StatusDisconnected, ch.Status())
}

func TestChannel_DisconnectIgnoresLateReadError(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	tr := &fakeTransport{}
	ch := NewChannel(tr, staticToken("tok"), WithClock(clock))

	require.NoError(t, ch.Connect(context.Background()))
	ch.Disconnect()

	// Close made the read loop fail; that must not arm a retry
	time.Sleep(20 * time.Millisecond)
	clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1), tr.dialCount())
	require.Equal(t, StatusDisconnected, ch.Status())
}

func TestChannel_SignedOutStopsReconnecting(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var token atomic.Value
	token.Store("tok")

	clock := clockwork.NewFakeClock()
	tr := &fakeTransport{}
	ch := NewChannel(tr, func() string { return token.Load().(string) }, WithClock(clock))

	require.NoError(t, ch.Connect(ctx))
	token.Store("")
	tr.last().drop()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return ch.Status() == StatusDisconnected }, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(1), tr.dialCount())
}
