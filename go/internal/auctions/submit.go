package auctions

import (
	"context"
	"fmt"
	"math"

	"github.com/mcdev12/subasta/go/internal/bidding"
	"github.com/mcdev12/subasta/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SubmitBid validates amount against the cached auction, shows it as a
// pending entry and sends it. On success the pending entry becomes the
// confirmed bid; on failure it is removed and the error returned.
// The auction's current price only moves once the server confirms.
func (s *Store) SubmitBid(ctx context.Context, id int64, amount float64) (models.Bid, error) {
	s.mu.Lock()
	if s.focusID != id || s.focused == nil {
		s.mu.Unlock()
		return models.Bid{}, fmt.Errorf("%w: %d", ErrAuctionNotLoaded, id)
	}
	if s.inFlight[id] {
		s.mu.Unlock()
		return models.Bid{}, ErrBidInFlight
	}
	if err := bidding.ValidateFor(*s.focused, amount); err != nil {
		s.mu.Unlock()
		return models.Bid{}, err
	}

	s.inFlight[id] = true
	epoch := s.epoch
	localID := s.book.AddPending(id, amount, s.bidder())
	s.submitErr = ""
	s.unlockAndNotify()

	log.Info().Int64("auction_id", id).Float64("amount", amount).Msg("submitting bid")

	bid, err := s.api.CreateBid(ctx, id, amount)

	s.mu.Lock()
	delete(s.inFlight, id)
	if epoch != s.epoch {
		s.unlockAndNotify()
		log.Debug().Int64("auction_id", id).Msg("bid settled after its auction was released")
		return bid, err
	}

	if err != nil {
		s.book.Remove(localID)
		s.submitErr = errorMessage(err)
		s.unlockAndNotify()
		log.Warn().Err(err).Int64("auction_id", id).Float64("amount", amount).Msg("bid rejected")
		return models.Bid{}, err
	}

	if bid.AuctionID == 0 {
		bid.AuctionID = id
	}
	s.book.Confirm(localID, bid)
	// a refresh may have lost the record (404) while the bid was in flight
	if s.focused != nil {
		s.focused.CurrentPrice = math.Max(s.focused.CurrentPrice, bid.Amount)
		s.syncListLocked(*s.focused)
	}
	s.unlockAndNotify()

	log.Info().Int64("auction_id", id).Int64("bid_id", bid.ID).Float64("amount", bid.Amount).Msg("bid confirmed")
	return bid, nil
}
