// Package watch ties a focused auction view to the store, the realtime room and a countdown.
package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/subasta/go/internal/countdown"
	"github.com/mcdev12/subasta/go/internal/models"
	"github.com/mcdev12/subasta/go/internal/realtime"
	"github.com/rs/zerolog/log"
)

// Rooms is the realtime side of a watch
type Rooms interface {
	JoinRoom(auctionID int64) error
	LeaveRoom(auctionID int64) error
	Subscribe(kind realtime.Kind, handler func(realtime.Event)) (unsubscribe func())
}

// Cache is the store side of a watch
type Cache interface {
	LoadFocused(ctx context.Context, id int64) error
	Focused() (models.Auction, bool)
	Enqueue(ev realtime.Event)
	Release(id int64)
}

// ErrSuperseded is returned by a Focus that lost to a later Focus while loading
var ErrSuperseded = errors.New("focus superseded by another auction")

// TickFunc receives the time left on the watched auction once a second
type TickFunc func(auctionID int64, remaining time.Duration)

var watchedKinds = []realtime.Kind{
	realtime.KindNewBid,
	realtime.KindAuctionExtended,
	realtime.KindAuctionEnded,
}

// Watcher holds at most one focused auction at a time
type Watcher struct {
	rooms  Rooms
	cache  Cache
	clock  clockwork.Clock
	onTick TickFunc

	mu      sync.Mutex
	current *focus
}

type focus struct {
	id      int64
	release func()
}

func NewWatcher(rooms Rooms, cache Cache, clock clockwork.Clock, onTick TickFunc) *Watcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if onTick == nil {
		onTick = func(int64, time.Duration) {}
	}
	return &Watcher{rooms: rooms, cache: cache, clock: clock, onTick: onTick}
}

// Focus starts watching id: push events for it are queued on the store,
// its room is joined, it is loaded and a countdown starts. Focusing the
// auction already watched returns the existing release. Focusing another
// one releases the previous watch first, even while that one is still
// loading; the superseded call then returns ErrSuperseded.
func (w *Watcher) Focus(ctx context.Context, id int64) (release func(), err error) {
	w.mu.Lock()
	if w.current != nil && w.current.id == id {
		release = w.current.release
		w.mu.Unlock()
		return release, nil
	}
	w.mu.Unlock()

	var unsubscribes []func()
	for _, kind := range watchedKinds {
		unsubscribes = append(unsubscribes, w.rooms.Subscribe(kind, func(ev realtime.Event) {
			if ev.AuctionID == id {
				w.cache.Enqueue(ev)
			}
		}))
	}
	if err := w.rooms.JoinRoom(id); err != nil {
		log.Warn().Err(err).Int64("auction_id", id).Msg("watching without live updates for now")
	}
	detach := func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
		if err := w.rooms.LeaveRoom(id); err != nil {
			log.Warn().Err(err).Int64("auction_id", id).Msg("failed to leave room")
		}
	}

	tickCtx, stopTicking := context.WithCancel(ctx)
	var once sync.Once
	f := &focus{id: id}
	f.release = func() {
		once.Do(func() {
			stopTicking()
			detach()
			w.cache.Release(id)

			w.mu.Lock()
			if w.current == f {
				w.current = nil
			}
			w.mu.Unlock()

			log.Debug().Int64("auction_id", id).Msg("stopped watching auction")
		})
	}

	w.mu.Lock()
	prev := w.current
	if prev != nil && prev.id == id {
		// a concurrent Focus for the same auction got there first
		w.mu.Unlock()
		stopTicking()
		detach()
		return prev.release, nil
	}
	w.current = f
	w.mu.Unlock()

	if prev != nil {
		prev.release()
	}

	if err := w.cache.LoadFocused(ctx, id); err != nil {
		f.release()
		return nil, err
	}

	if !w.owns(f) {
		f.release()
		log.Debug().Int64("auction_id", id).Msg("focus superseded while loading")
		return nil, ErrSuperseded
	}

	go countdown.Run(tickCtx, w.clock, w.deadline(id), func(remaining time.Duration) {
		w.onTick(id, remaining)
	})

	log.Info().Int64("auction_id", id).Msg("watching auction")
	return f.release, nil
}

// owns reports whether f is still the current watch and the store agrees on its auction
func (w *Watcher) owns(f *focus) bool {
	w.mu.Lock()
	current := w.current == f
	w.mu.Unlock()
	if !current {
		return false
	}
	a, ok := w.cache.Focused()
	return ok && a.ID == f.id
}

// Current returns the id being watched, or 0
func (w *Watcher) Current() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return 0
	}
	return w.current.id
}

func (w *Watcher) deadline(id int64) func() time.Time {
	return func() time.Time {
		a, ok := w.cache.Focused()
		if !ok || a.ID != id || a.State == models.AuctionStateEnded {
			return time.Time{}
		}
		return a.EndsAt.Time
	}
}
