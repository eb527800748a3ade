package auctions

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/mcdev12/subasta/go/clients"
	"github.com/mcdev12/subasta/go/internal/bidding"
	"github.com/mcdev12/subasta/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ValidateAuctionRequest applies the local checks on an auction before it is sent
func ValidateAuctionRequest(req models.AuctionRequest) error {
	switch {
	case strings.TrimSpace(req.Description) == "":
		return fmt.Errorf("%w: description is required", ErrInvalidAuction)
	case math.IsNaN(req.StartingPrice) || math.IsInf(req.StartingPrice, 0) || req.StartingPrice <= 0:
		return fmt.Errorf("%w: starting price must be greater than zero", ErrInvalidAuction)
	case req.StartingPrice > bidding.MaxBidAmount:
		return fmt.Errorf("%w: starting price too large", ErrInvalidAuction)
	case req.DaysToEndTime < 1:
		return fmt.Errorf("%w: auction must last at least one day", ErrInvalidAuction)
	case req.MinIncrement < 0:
		return fmt.Errorf("%w: minimum increment must not be negative", ErrInvalidAuction)
	}
	return nil
}

// CreateAuction publishes an auction and puts it at the top of the list
func (s *Store) CreateAuction(ctx context.Context, req models.AuctionRequest) (models.Auction, error) {
	if err := ValidateAuctionRequest(req); err != nil {
		return models.Auction{}, err
	}

	s.beginAction()
	a, err := s.api.CreateAuction(ctx, req)

	s.mu.Lock()
	if err != nil {
		return models.Auction{}, s.failActionLocked(err, 0, "failed to create auction")
	}
	a = s.applyLocked(a)
	if !s.inListLocked(a.ID) {
		s.list.Auctions = append([]models.Auction{a}, s.list.Auctions...)
	}
	s.finishActionLocked()

	log.Info().Int64("auction_id", a.ID).Msg("auction created")
	return a, nil
}

// UpdateAuction edits an auction and refreshes its list row and focused record
func (s *Store) UpdateAuction(ctx context.Context, id int64, req models.AuctionRequest) (models.Auction, error) {
	if err := ValidateAuctionRequest(req); err != nil {
		return models.Auction{}, err
	}

	s.beginAction()
	a, err := s.api.UpdateAuction(ctx, id, req)

	s.mu.Lock()
	if err != nil {
		return models.Auction{}, s.failActionLocked(err, id, "failed to update auction")
	}
	a.ID = id
	a = s.applyLocked(a)
	s.finishActionLocked()

	log.Info().Int64("auction_id", id).Msg("auction updated")
	return a, nil
}

// DeleteAuction removes an auction from the list and drops it if it is focused
func (s *Store) DeleteAuction(ctx context.Context, id int64) error {
	s.beginAction()
	err := s.api.DeleteAuction(ctx, id)

	s.mu.Lock()
	if err != nil {
		return s.failActionLocked(err, id, "failed to delete auction")
	}
	kept := s.list.Auctions[:0:0]
	for _, a := range s.list.Auctions {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	s.list.Auctions = kept
	if s.focusID == id {
		s.resetFocusLocked(0)
	}
	s.finishActionLocked()

	log.Info().Int64("auction_id", id).Msg("auction deleted")
	return nil
}

// StartAuction opens bidding on a scheduled auction
func (s *Store) StartAuction(ctx context.Context, id int64) (models.Auction, error) {
	return s.moderate(ctx, id, "start", func() (models.Auction, error) {
		return s.api.StartAuction(ctx, id)
	})
}

// EndAuction closes an auction now. The ended state is kept from then on.
func (s *Store) EndAuction(ctx context.Context, id int64) (models.Auction, error) {
	a, err := s.moderate(ctx, id, "end", func() (models.Auction, error) {
		return s.api.EndAuction(ctx, id)
	})
	if err != nil {
		return a, err
	}

	s.mu.Lock()
	s.ended[id] = true
	a = s.applyLocked(a)
	s.unlockAndNotify()
	return a, nil
}

// ExtendAuction moves the deadline of an auction back by minutes
func (s *Store) ExtendAuction(ctx context.Context, id int64, minutes int) (models.Auction, error) {
	if minutes < 1 {
		return models.Auction{}, ErrInvalidExtension
	}
	return s.moderate(ctx, id, "extend", func() (models.Auction, error) {
		return s.api.ExtendAuction(ctx, id, minutes)
	})
}

// moderate runs a moderator-only call once the local role check passes
func (s *Store) moderate(ctx context.Context, id int64, action string, call func() (models.Auction, error)) (models.Auction, error) {
	if !s.hasRole(models.RoleModerator) {
		return models.Auction{}, ErrForbidden
	}

	s.beginAction()
	a, err := call()

	s.mu.Lock()
	if err != nil {
		return models.Auction{}, s.failActionLocked(err, id, "failed to "+action+" auction")
	}
	a.ID = id
	a = s.applyLocked(a)
	s.finishActionLocked()

	log.Info().Int64("auction_id", id).Str("action", action).Msg("auction moderated")
	return a, nil
}

func (s *Store) beginAction() {
	s.mu.Lock()
	s.actions++
	s.actionErr = ""
	s.unlockAndNotify()
}

// finishActionLocked closes a successful action and releases s.mu
func (s *Store) finishActionLocked() {
	s.actions--
	s.unlockAndNotify()
}

// failActionLocked records err, releases s.mu and returns err. A 404 is
// reported as ErrAuctionNotFound.
func (s *Store) failActionLocked(err error, id int64, msg string) error {
	if id != 0 && clients.StatusOf(err) == http.StatusNotFound {
		err = fmt.Errorf("%w: %d: %w", ErrAuctionNotFound, id, err)
	}
	s.actions--
	s.actionErr = errorMessage(err)
	s.unlockAndNotify()

	log.Warn().Err(err).Int64("auction_id", id).Msg(msg)
	return err
}

// applyLocked installs an auction returned by a management call into the
// list row and the focused record. The server's fields win except that the
// state never moves backwards and the price stays at or above the top bid.
func (s *Store) applyLocked(a models.Auction) models.Auction {
	a.Normalize()
	for _, row := range s.list.Auctions {
		if row.ID == a.ID {
			a.State = row.State.Advance(a.State)
		}
	}
	focused := s.focusID == a.ID && s.focused != nil
	if focused {
		a.State = s.focused.State.Advance(a.State)
		if top, ok := s.book.Highest(); ok {
			a.CurrentPrice = math.Max(a.CurrentPrice, top)
		}
	}
	if s.ended[a.ID] {
		a.State = models.AuctionStateEnded
	}
	if a.State == models.AuctionStateEnded {
		s.ended[a.ID] = true
	}

	for i := range s.list.Auctions {
		if s.list.Auctions[i].ID == a.ID {
			s.list.Auctions[i] = a
		}
	}
	if focused {
		f := a
		s.focused = &f
	}
	return a
}

func (s *Store) inListLocked(id int64) bool {
	for _, a := range s.list.Auctions {
		if a.ID == id {
			return true
		}
	}
	return false
}
