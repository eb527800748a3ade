package auctions

import (
	"context"

	"github.com/mcdev12/subasta/go/internal/models"
	"github.com/mcdev12/subasta/go/internal/realtime"
	"github.com/rs/zerolog/log"
)

// ApplyPushEvent reconciles one push event. Calls are serialized: a second
// event waits until the refetch triggered by the first has been applied.
// Payloads are hints; only the ended transition is applied directly.
func (s *Store) ApplyPushEvent(ctx context.Context, ev realtime.Event) error {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	if ev.AuctionID == 0 {
		return nil
	}

	s.mu.Lock()
	if ev.Kind == realtime.KindAuctionEnded {
		s.ended[ev.AuctionID] = true
	}
	s.patchListLocked(ev)

	focused := s.focusID == ev.AuctionID && s.focused != nil
	if !focused {
		s.unlockAndNotify()
		return nil
	}

	switch ev.Kind {
	case realtime.KindNewBid:
		if ev.Price > s.focused.CurrentPrice {
			s.focused.CurrentPrice = ev.Price
		}
		s.unlockAndNotify()
		return s.LoadBids(ctx, ev.AuctionID)

	case realtime.KindAuctionExtended:
		if !ev.NewEndTime.IsZero() {
			s.focused.EndsAt = models.NewTimestamp(ev.NewEndTime)
		}
		s.unlockAndNotify()
		_, err := s.refreshAuction(ctx, ev.AuctionID, false)
		return err

	case realtime.KindAuctionEnded:
		s.focused.State = models.AuctionStateEnded
		s.unlockAndNotify()
		log.Info().Int64("auction_id", ev.AuctionID).Str("winner", ev.WinnerUsername).Msg("auction ended")
		return nil

	default:
		s.mu.Unlock()
		return nil
	}
}

// patchListLocked applies the safe parts of an event to the list row
func (s *Store) patchListLocked(ev realtime.Event) {
	for i := range s.list.Auctions {
		row := &s.list.Auctions[i]
		if row.ID != ev.AuctionID {
			continue
		}
		switch ev.Kind {
		case realtime.KindNewBid:
			if ev.Price > row.CurrentPrice {
				row.CurrentPrice = ev.Price
			}
		case realtime.KindAuctionEnded:
			row.State = models.AuctionStateEnded
		case realtime.KindAuctionExtended:
			if !ev.NewEndTime.IsZero() {
				row.EndsAt = models.NewTimestamp(ev.NewEndTime)
			}
		}
		return
	}
}

// Enqueue hands an event to Run without blocking the caller
func (s *Store) Enqueue(ev realtime.Event) {
	select {
	case s.queue <- ev:
	default:
		log.Warn().
			Int64("auction_id", ev.AuctionID).
			Str("kind", string(ev.Kind)).
			Msg("push queue full, dropping event")
	}
}

// Run applies queued events in arrival order until ctx is done
func (s *Store) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.queue:
			if err := s.ApplyPushEvent(ctx, ev); err != nil {
				log.Warn().
					Err(err).
					Int64("auction_id", ev.AuctionID).
					Str("kind", string(ev.Kind)).
					Msg("failed to reconcile push event")
			}
		}
	}
}
