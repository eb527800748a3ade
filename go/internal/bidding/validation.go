// Package bidding holds the local bid rules applied before anything reaches the network.
package bidding

import (
	"math"

	"github.com/mcdev12/subasta/go/internal/models"
)

// MaxBidAmount is the sanity ceiling that catches typing mistakes
const MaxBidAmount = 999_999.0

// MinimumBid is the lowest amount the next bid may carry
func MinimumBid(currentPrice, minIncrement float64) float64 {
	if minIncrement <= 0 {
		minIncrement = models.DefaultMinIncrement
	}
	return currentPrice + minIncrement
}

// Validate checks a proposed amount against the cached auction. The first failing rule wins.
func Validate(amount, currentPrice, minIncrement float64, state models.AuctionState) error {
	if !state.IsOpen() {
		return ErrAuctionNotOpen
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return ErrInvalidAmount
	}
	if amount <= currentPrice {
		return ErrNotAboveCurrent
	}
	if amount < MinimumBid(currentPrice, minIncrement) {
		return ErrBelowMinIncrement
	}
	if amount > MaxBidAmount {
		return ErrAmountTooLarge
	}
	return nil
}

// ValidateFor runs Validate against an auction snapshot
func ValidateFor(a models.Auction, amount float64) error {
	return Validate(amount, a.CurrentPrice, a.MinIncrement, a.State)
}
