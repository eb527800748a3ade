package auctions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/mcdev12/subasta/go/clients"
	"github.com/mcdev12/subasta/go/internal/models"
	"github.com/rs/zerolog/log"
)

// LoadList fetches a page of auctions. A failure keeps the previous list on
// screen. Only the most recently issued request is applied; a superseded
// response is dropped and reported as success.
func (s *Store) LoadList(ctx context.Context, f Filter) error {
	if f.Page < 0 || f.Limit < 0 {
		return ErrInvalidFilter
	}
	if f.Limit == 0 {
		f.Limit = DefaultPageLimit
	}

	s.mu.Lock()
	s.listSeq++
	seq := s.listSeq
	s.list.Filter = f
	if s.list.Status == StatusUnloaded || (s.list.Status == StatusError && len(s.list.Auctions) == 0) {
		s.list.Status = StatusLoading
	} else {
		s.list.Status = StatusRefreshing
	}
	s.unlockAndNotify()

	var (
		auctions []models.Auction
		err      error
	)
	if f.SearchTerm != "" {
		auctions, err = s.api.SearchAuctions(ctx, f.SearchTerm, f.Category, f.Page, f.Limit)
	} else {
		auctions, err = s.api.ListAuctions(ctx, f.Category, f.Page, f.Limit)
	}

	s.mu.Lock()
	if seq != s.listSeq {
		s.mu.Unlock()
		log.Debug().Msg("discarding superseded auction list response")
		return nil
	}
	if err != nil {
		s.list.Status = StatusError
		s.list.Error = errorMessage(err)
		s.unlockAndNotify()
		log.Warn().Err(err).Msg("failed to load auction list")
		return err
	}

	merged := make([]models.Auction, 0, len(auctions))
	for _, a := range auctions {
		merged = append(merged, s.mergeLocked(nil, a))
	}
	s.list.Auctions = merged
	s.list.Status = StatusLoaded
	s.list.Error = ""
	s.list.LoadedAt = s.clock.Now()
	s.unlockAndNotify()

	log.Debug().Int("count", len(merged)).Msg("auction list loaded")
	return nil
}

// LoadFocused makes id the focused auction, fetches it and then its bids.
// Both halves apply only while id is still focused and no newer load was issued.
func (s *Store) LoadFocused(ctx context.Context, id int64) error {
	applied, err := s.refreshAuction(ctx, id, true)
	if err != nil || !applied {
		return err
	}
	return s.LoadBids(ctx, id)
}

// refreshAuction fetches the auction record alone. It reports whether the
// response was applied.
func (s *Store) refreshAuction(ctx context.Context, id int64, focus bool) (bool, error) {
	s.mu.Lock()
	if s.focusID != id {
		if !focus {
			s.mu.Unlock()
			return false, nil
		}
		s.resetFocusLocked(id)
	}
	s.focusSeq++
	seq := s.focusSeq
	if s.focused == nil {
		s.status = StatusLoading
	} else {
		s.status = StatusRefreshing
	}
	s.unlockAndNotify()

	a, err := s.api.GetAuction(ctx, id)

	s.mu.Lock()
	if seq != s.focusSeq || s.focusID != id {
		s.mu.Unlock()
		log.Debug().Int64("auction_id", id).Msg("discarding stale auction response")
		return false, nil
	}
	if err != nil {
		if clients.StatusOf(err) == http.StatusNotFound {
			err = fmt.Errorf("%w: %d", ErrAuctionNotFound, id)
			s.focused = nil
		}
		s.status = StatusError
		s.err = errorMessage(err)
		s.unlockAndNotify()
		log.Warn().Err(err).Int64("auction_id", id).Msg("failed to load auction")
		return false, err
	}

	if a.ID == 0 {
		a.ID = id
	}
	merged := s.mergeLocked(s.focused, a)
	if top, ok := s.book.Highest(); ok {
		merged.CurrentPrice = math.Max(merged.CurrentPrice, top)
	}
	s.focused = &merged
	s.status = StatusLoaded
	s.err = ""
	s.syncListLocked(merged)
	s.unlockAndNotify()

	log.Debug().
		Int64("auction_id", id).
		Str("estado", string(merged.State)).
		Float64("precio_actual", merged.CurrentPrice).
		Msg("auction loaded")
	return true, nil
}

// LoadBids replaces the bid list of the focused auction. It is an error to
// ask for an auction that is not focused; a response that arrives after the
// focus moved on is dropped.
func (s *Store) LoadBids(ctx context.Context, id int64) error {
	s.mu.Lock()
	if s.focusID != id {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrAuctionNotLoaded, id)
	}
	s.bidsSeq++
	seq := s.bidsSeq
	if s.bidsStatus == StatusUnloaded {
		s.bidsStatus = StatusLoading
	} else {
		s.bidsStatus = StatusRefreshing
	}
	s.unlockAndNotify()

	bids, err := s.api.GetBids(ctx, id)

	s.mu.Lock()
	if seq != s.bidsSeq || s.focusID != id {
		s.mu.Unlock()
		log.Debug().Int64("auction_id", id).Msg("discarding stale bid list response")
		return nil
	}
	if err != nil {
		s.bidsStatus = StatusError
		s.bidsErr = errorMessage(err)
		s.unlockAndNotify()
		log.Warn().Err(err).Int64("auction_id", id).Msg("failed to load bids")
		return err
	}

	for i := range bids {
		if bids[i].AuctionID == 0 {
			bids[i].AuctionID = id
		}
	}
	s.book.Replace(bids)
	s.bidsStatus = StatusLoaded
	s.bidsErr = ""
	if top, ok := s.book.Highest(); ok && s.focused != nil && top > s.focused.CurrentPrice {
		s.focused.CurrentPrice = top
		s.syncListLocked(*s.focused)
	}
	s.unlockAndNotify()

	log.Debug().Int64("auction_id", id).Int("count", len(bids)).Msg("bids loaded")
	return nil
}

// syncListLocked copies the focused auction's fresher state into its list row
func (s *Store) syncListLocked(a models.Auction) {
	for i := range s.list.Auctions {
		if s.list.Auctions[i].ID == a.ID {
			row := &s.list.Auctions[i]
			row.State = row.State.Advance(a.State)
			row.CurrentPrice = math.Max(row.CurrentPrice, a.CurrentPrice)
			row.EndsAt = a.EndsAt
			return
		}
	}
}

// IsNotFound reports whether err means the auction does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAuctionNotFound)
}
