package models

import "github.com/google/uuid"

// Bid is a confirmed offer as returned by /api/v1/subastas/{id}/pujas
type Bid struct {
	ID        int64   `json:"bidId"`
	AuctionID int64   `json:"auctionId"`
	UserID    int64   `json:"userId"`
	Username  string  `json:"username"`
	Amount    float64 `json:"bidPrice"`
}

// BidRequest is the body of a bid creation call
type BidRequest struct {
	Amount float64 `json:"amount"`
}

// BidStatus tells optimistic entries apart from server-confirmed ones
type BidStatus string

const (
	BidStatusPending   BidStatus = "pending"
	BidStatusConfirmed BidStatus = "confirmed"
)

// BidEntry is one row of a locally cached bid list.
// Pending entries carry a LocalID and a zero Bid.ID until the server confirms them.
type BidEntry struct {
	LocalID uuid.UUID `json:"localId"`
	Status  BidStatus `json:"status"`
	Bid     Bid       `json:"bid"`
}

func (e BidEntry) IsPending() bool {
	return e.Status == BidStatusPending
}

// APIResponse is the envelope some endpoints wrap their payload in
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
