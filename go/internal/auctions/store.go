// Package auctions is the client-side cache of auctions and bids. It is the
// only writer of that data; everything else reads snapshots and issues intents.
package auctions

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/subasta/go/clients"
	"github.com/mcdev12/subasta/go/internal/models"
	"github.com/mcdev12/subasta/go/internal/realtime"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPageLimit = 10
	DefaultQueueSize = 64
)

// LoadStatus is the local lifecycle of a cached slice, separate from the auction's business state
type LoadStatus string

const (
	StatusUnloaded   LoadStatus = "unloaded"
	StatusLoading    LoadStatus = "loading"
	StatusLoaded     LoadStatus = "loaded"
	StatusRefreshing LoadStatus = "refreshing"
	StatusError      LoadStatus = "error"
)

// Filter selects a page of the auction list
type Filter struct {
	Category   string `json:"category,omitempty"`
	SearchTerm string `json:"searchTerm,omitempty"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
}

type ListState struct {
	Filter   Filter           `json:"filter"`
	Auctions []models.Auction `json:"auctions"`
	Status   LoadStatus       `json:"status"`
	Error    string           `json:"error,omitempty"`
	LoadedAt time.Time        `json:"loadedAt,omitempty"`
}

type FocusedState struct {
	AuctionID   int64             `json:"auctionId,omitempty"`
	Auction     *models.Auction   `json:"auction,omitempty"`
	Status      LoadStatus        `json:"status"`
	Error       string            `json:"error,omitempty"`
	Bids        []models.BidEntry `json:"bids"`
	BidsStatus  LoadStatus        `json:"bidsStatus"`
	BidsError   string            `json:"bidsError,omitempty"`
	Submitting  bool              `json:"submitting"`
	SubmitError string            `json:"submitError,omitempty"`
}

// ActionState tracks auction management calls (create, update, delete, moderation)
type ActionState struct {
	Pending bool   `json:"pending"`
	Error   string `json:"error,omitempty"`
}

// Snapshot is an immutable copy of the store handed to readers
type Snapshot struct {
	List    ListState    `json:"list"`
	Focused FocusedState `json:"focused"`
	Action  ActionState  `json:"action"`
}

type Option func(*Store)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) { s.clock = clock }
}

// WithBidder names the local user on optimistic bid entries
func WithBidder(username func() string) Option {
	return func(s *Store) { s.bidder = username }
}

// WithRoleCheck tells the store whether the signed-in user holds a role.
// Without it moderation is refused locally.
func WithRoleCheck(hasRole func(models.Role) bool) Option {
	return func(s *Store) { s.hasRole = hasRole }
}

func WithQueueSize(n int) Option {
	return func(s *Store) { s.queue = make(chan realtime.Event, n) }
}

type Store struct {
	api     AuctionAPI
	clock   clockwork.Clock
	bidder  func() string
	hasRole func(models.Role) bool

	mu      sync.Mutex
	list    ListState
	listSeq uint64

	// focus fields describe the single auction under detail view.
	// epoch changes whenever the focused identity changes; the seq
	// counters change on every issued load so only the latest applies.
	focusID    int64
	focused    *models.Auction
	status     LoadStatus
	err        string
	epoch      uint64
	focusSeq   uint64
	bidsSeq    uint64
	book       *BidBook
	bidsStatus LoadStatus
	bidsErr    string
	submitErr  string
	inFlight   map[int64]bool
	ended      map[int64]bool

	actions   int
	actionErr string

	pushMu sync.Mutex
	queue  chan realtime.Event

	listenersMu  sync.Mutex
	listeners    map[int]func(Snapshot)
	nextListener int
}

func NewStore(api AuctionAPI, opts ...Option) *Store {
	s := &Store{
		api:        api,
		clock:      clockwork.NewRealClock(),
		bidder:     func() string { return "" },
		hasRole:    func(models.Role) bool { return false },
		list:       ListState{Status: StatusUnloaded, Auctions: []models.Auction{}},
		status:     StatusUnloaded,
		book:       NewBidBook(),
		bidsStatus: StatusUnloaded,
		inFlight:   make(map[int64]bool),
		ended:      make(map[int64]bool),
		queue:      make(chan realtime.Event, DefaultQueueSize),
		listeners:  make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	list := s.list
	list.Auctions = append([]models.Auction{}, s.list.Auctions...)

	focused := FocusedState{
		AuctionID:   s.focusID,
		Status:      s.status,
		Error:       s.err,
		Bids:        s.book.Entries(),
		BidsStatus:  s.bidsStatus,
		BidsError:   s.bidsErr,
		Submitting:  s.inFlight[s.focusID],
		SubmitError: s.submitErr,
	}
	if s.focused != nil {
		a := *s.focused
		focused.Auction = &a
	}
	return Snapshot{
		List:    list,
		Focused: focused,
		Action:  ActionState{Pending: s.actions > 0, Error: s.actionErr},
	}
}

// Subscribe registers fn to receive a snapshot after every change
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

// unlockAndNotify releases s.mu and publishes the state it guarded
func (s *Store) unlockAndNotify() {
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.listenersMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for id := 0; id < s.nextListener; id++ {
		if fn, ok := s.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Focused returns the focused auction, if any
func (s *Store) Focused() (models.Auction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.focused == nil {
		return models.Auction{}, false
	}
	return *s.focused, true
}

// mergeLocked folds a fetched auction into what is already known.
// The business state never moves backwards and the price never drops.
func (s *Store) mergeLocked(prev *models.Auction, next models.Auction) models.Auction {
	next.Normalize()
	if prev != nil {
		next.State = prev.State.Advance(next.State)
		next.CurrentPrice = math.Max(next.CurrentPrice, prev.CurrentPrice)
	}
	if s.ended[next.ID] {
		next.State = models.AuctionStateEnded
	}
	if next.State == models.AuctionStateEnded {
		s.ended[next.ID] = true
	}
	return next
}

// resetFocusLocked switches the focused identity and invalidates everything in flight for the old one
func (s *Store) resetFocusLocked(id int64) {
	s.focusID = id
	s.focused = nil
	s.status = StatusUnloaded
	s.err = ""
	s.book = NewBidBook()
	s.bidsStatus = StatusUnloaded
	s.bidsErr = ""
	s.submitErr = ""
	s.epoch++
	s.focusSeq++
	s.bidsSeq++
}

// Release drops the focused auction when its view goes away. Responses
// and events still on their way for it are ignored when they arrive.
func (s *Store) Release(id int64) {
	s.mu.Lock()
	if s.focusID != id {
		s.mu.Unlock()
		return
	}
	s.resetFocusLocked(0)
	s.unlockAndNotify()

	log.Debug().Int64("auction_id", id).Msg("released focused auction")
}

func errorMessage(err error) string {
	return clients.MessageOf(err, err.Error())
}
