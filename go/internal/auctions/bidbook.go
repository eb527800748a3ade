package auctions

import (
	"slices"

	"github.com/google/uuid"
	"github.com/mcdev12/subasta/go/internal/models"
)

type bookEntry struct {
	entry models.BidEntry
	seen  uint64
}

// BidBook is the ranked bid list of one auction: amount descending, ties
// going to whichever bid was seen first. Confirmed entries are keyed by
// bid id and pending ones by their local id, so neither can be duplicated.
type BidBook struct {
	entries  []bookEntry
	nextSeen uint64
}

func NewBidBook() *BidBook {
	return &BidBook{}
}

// Add records a confirmed bid, or refreshes it if its id is already known
func (b *BidBook) Add(bid models.Bid) {
	if i := b.indexOfBid(bid.ID); i >= 0 {
		b.entries[i].entry.Bid = bid
		b.sort()
		return
	}
	b.entries = append(b.entries, bookEntry{
		entry: models.BidEntry{Status: models.BidStatusConfirmed, Bid: bid},
		seen:  b.seen(),
	})
	b.sort()
}

// AddPending inserts an optimistic entry and returns its local id
func (b *BidBook) AddPending(auctionID int64, amount float64, username string) uuid.UUID {
	localID := uuid.New()
	b.entries = append(b.entries, bookEntry{
		entry: models.BidEntry{
			LocalID: localID,
			Status:  models.BidStatusPending,
			Bid: models.Bid{
				AuctionID: auctionID,
				Username:  username,
				Amount:    amount,
			},
		},
		seen: b.seen(),
	})
	b.sort()
	return localID
}

// Confirm swaps the pending entry for the server's record. If a refetch
// already brought the same bid in, the pending entry is simply dropped.
func (b *BidBook) Confirm(localID uuid.UUID, bid models.Bid) {
	i := b.indexOfLocal(localID)
	if i < 0 {
		b.Add(bid)
		return
	}
	if b.indexOfBid(bid.ID) >= 0 {
		b.removeAt(i)
		return
	}
	b.entries[i].entry = models.BidEntry{LocalID: localID, Status: models.BidStatusConfirmed, Bid: bid}
	b.sort()
}

// Remove rolls back a pending entry
func (b *BidBook) Remove(localID uuid.UUID) bool {
	i := b.indexOfLocal(localID)
	if i < 0 {
		return false
	}
	b.removeAt(i)
	return true
}

// Replace takes a full server list as the truth for confirmed bids.
// Pending entries survive since their submissions are still in flight.
func (b *BidBook) Replace(bids []models.Bid) {
	known := make(map[int64]uint64, len(b.entries))
	kept := b.entries[:0]
	for _, e := range b.entries {
		if e.entry.IsPending() {
			kept = append(kept, e)
			continue
		}
		known[e.entry.Bid.ID] = e.seen
	}
	b.entries = kept

	// the server assigns ids in arrival order
	incoming := slices.Clone(bids)
	slices.SortStableFunc(incoming, func(x, y models.Bid) int {
		switch {
		case x.ID < y.ID:
			return -1
		case x.ID > y.ID:
			return 1
		default:
			return 0
		}
	})

	added := make(map[int64]bool, len(incoming))
	for _, bid := range incoming {
		if added[bid.ID] {
			continue
		}
		added[bid.ID] = true

		seen, ok := known[bid.ID]
		if !ok {
			seen = b.seen()
		}
		b.entries = append(b.entries, bookEntry{
			entry: models.BidEntry{Status: models.BidStatusConfirmed, Bid: bid},
			seen:  seen,
		})
	}
	b.sort()
}

// Entries returns a ranked copy of the book
func (b *BidBook) Entries() []models.BidEntry {
	out := make([]models.BidEntry, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.entry
	}
	return out
}

// Highest returns the top confirmed amount
func (b *BidBook) Highest() (float64, bool) {
	for _, e := range b.entries {
		if !e.entry.IsPending() {
			return e.entry.Bid.Amount, true
		}
	}
	return 0, false
}

func (b *BidBook) Len() int {
	return len(b.entries)
}

func (b *BidBook) seen() uint64 {
	b.nextSeen++
	return b.nextSeen
}

func (b *BidBook) sort() {
	slices.SortStableFunc(b.entries, func(x, y bookEntry) int {
		switch {
		case x.entry.Bid.Amount > y.entry.Bid.Amount:
			return -1
		case x.entry.Bid.Amount < y.entry.Bid.Amount:
			return 1
		case x.seen < y.seen:
			return -1
		case x.seen > y.seen:
			return 1
		default:
			return 0
		}
	})
}

func (b *BidBook) indexOfBid(id int64) int {
	for i, e := range b.entries {
		if !e.entry.IsPending() && e.entry.Bid.ID == id {
			return i
		}
	}
	return -1
}

func (b *BidBook) indexOfLocal(localID uuid.UUID) int {
	for i, e := range b.entries {
		if e.entry.IsPending() && e.entry.LocalID == localID {
			return i
		}
	}
	return -1
}

func (b *BidBook) removeAt(i int) {
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
}
