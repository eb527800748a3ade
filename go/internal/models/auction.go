package models

import "strings"

// AuctionState is the business lifecycle of an auction as reported by the API
type AuctionState string

const (
	AuctionStateScheduled AuctionState = "programada"
	AuctionStateActive    AuctionState = "activa"
	AuctionStateEnded     AuctionState = "finalizada"
)

// ParseAuctionState accepts both the wire values and their English names.
// Anything unrecognised is treated as scheduled.
func ParseAuctionState(s string) AuctionState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "activa", "active":
		return AuctionStateActive
	case "finalizada", "ended", "finished":
		return AuctionStateEnded
	default:
		return AuctionStateScheduled
	}
}

// UnmarshalText normalises the state while decoding JSON
func (s *AuctionState) UnmarshalText(text []byte) error {
	*s = ParseAuctionState(string(text))
	return nil
}

func (s AuctionState) rank() int {
	switch s {
	case AuctionStateActive:
		return 1
	case AuctionStateEnded:
		return 2
	default:
		return 0
	}
}

// Advance returns whichever of s and next comes later in the lifecycle.
// States only move scheduled -> active -> ended.
func (s AuctionState) Advance(next AuctionState) AuctionState {
	if next.rank() > s.rank() {
		return next
	}
	return s
}

// IsOpen reports whether bids may be placed
func (s AuctionState) IsOpen() bool {
	return s == AuctionStateActive
}

// DefaultMinIncrement applies when the API does not send incrementoMinimo
const DefaultMinIncrement = 1.0

// Auction mirrors the auction view served by /api/v1/subastas
type Auction struct {
	ID            int64        `json:"auctionId"`
	Description   string       `json:"description"`
	StartingPrice float64      `json:"startingPrice"`
	ItemStatus    string       `json:"itemStatus"`
	Category      string       `json:"itemCategory"`
	DaysToEndTime int          `json:"daysToEndTime"`
	OwnerUsername string       `json:"ownerUsername"`
	State         AuctionState `json:"estado"`
	CurrentPrice  float64      `json:"precioActual"`
	MinIncrement  float64      `json:"incrementoMinimo"`
	StartsAt      Timestamp    `json:"fechaInicio"`
	EndsAt        Timestamp    `json:"fechaFin"`

	// View extras, only present on some endpoints
	HighestBid    *float64 `json:"highestBid,omitempty"`
	BidCount      *int     `json:"bidCount,omitempty"`
	TimeRemaining string   `json:"timeRemaining,omitempty"`
}

// Normalize enforces current price >= starting price and fills the default increment
func (a *Auction) Normalize() {
	if a.State == "" {
		a.State = AuctionStateScheduled
	}
	if a.CurrentPrice < a.StartingPrice {
		a.CurrentPrice = a.StartingPrice
	}
	if a.MinIncrement <= 0 {
		a.MinIncrement = DefaultMinIncrement
	}
}

// AuctionRequest is the body used to create or update an auction
type AuctionRequest struct {
	Description   string  `json:"description"`
	StartingPrice float64 `json:"startingPrice"`
	ItemStatus    string  `json:"itemStatus"`
	ItemCategory  string  `json:"itemCategory"`
	DaysToEndTime int     `json:"daysToEndTime"`
	MinIncrement  float64 `json:"incrementoMinimo,omitempty"`
}
