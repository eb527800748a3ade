package auction_api_client

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/subasta/go/internal/models"
)

// ErrBidRejected is returned when the API answers a bid with success=false
var ErrBidRejected = errors.New("bid rejected")

// RejectionError carries the server's reason for refusing a bid
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	if e.Reason == "" {
		return ErrBidRejected.Error()
	}
	return fmt.Sprintf("%s: %s", ErrBidRejected, e.Reason)
}

func (e *RejectionError) Unwrap() error {
	return ErrBidRejected
}

// GetBids fetches every bid placed on an auction
func (c *Client) GetBids(ctx context.Context, auctionID int64) ([]models.Bid, error) {
	var bids []models.Bid
	if err := c.GetJSON(ctx, fmt.Sprintf(AuctionBidsEndpointFmt, auctionID), &bids); err != nil {
		return nil, fmt.Errorf("failed to get bids for auction %d: %w", auctionID, err)
	}
	if bids == nil {
		bids = []models.Bid{}
	}
	return bids, nil
}

// CreateBid places a bid and returns the server-confirmed record
func (c *Client) CreateBid(ctx context.Context, auctionID int64, amount float64) (models.Bid, error) {
	var resp models.APIResponse[models.Bid]
	if err := c.PostJSON(ctx, fmt.Sprintf(AuctionBidsEndpointFmt, auctionID), models.BidRequest{Amount: amount}, &resp); err != nil {
		return models.Bid{}, fmt.Errorf("failed to create bid on auction %d: %w", auctionID, err)
	}

	if !resp.Success || resp.Data == nil {
		reason := resp.Message
		if reason == "" {
			reason = resp.Error
		}
		return models.Bid{}, &RejectionError{Reason: reason}
	}

	bid := *resp.Data
	if bid.AuctionID == 0 {
		bid.AuctionID = auctionID
	}
	if bid.Amount == 0 {
		bid.Amount = amount
	}
	return bid, nil
}
