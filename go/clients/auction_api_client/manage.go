package auction_api_client

import (
	"context"
	"fmt"

	"github.com/mcdev12/subasta/go/internal/models"
)

type extendRequest struct {
	Minutes int `json:"minutes"`
}

// CreateAuction publishes a new auction owned by the signed-in user
func (c *Client) CreateAuction(ctx context.Context, req models.AuctionRequest) (models.Auction, error) {
	var auction models.Auction
	if err := c.PostJSON(ctx, AuctionsEndpoint, req, &auction); err != nil {
		return models.Auction{}, fmt.Errorf("failed to create auction: %w", err)
	}
	auction.Normalize()
	return auction, nil
}

// UpdateAuction replaces the editable fields of an auction
func (c *Client) UpdateAuction(ctx context.Context, auctionID int64, req models.AuctionRequest) (models.Auction, error) {
	var auction models.Auction
	if err := c.PutJSON(ctx, fmt.Sprintf(AuctionEndpointFmt, auctionID), req, &auction); err != nil {
		return models.Auction{}, fmt.Errorf("failed to update auction %d: %w", auctionID, err)
	}
	if auction.ID == 0 {
		auction.ID = auctionID
	}
	auction.Normalize()
	return auction, nil
}

func (c *Client) DeleteAuction(ctx context.Context, auctionID int64) error {
	if _, err := c.Delete(ctx, fmt.Sprintf(AuctionEndpointFmt, auctionID)); err != nil {
		return fmt.Errorf("failed to delete auction %d: %w", auctionID, err)
	}
	return nil
}

// StartAuction opens a scheduled auction for bidding. Moderators only.
func (c *Client) StartAuction(ctx context.Context, auctionID int64) (models.Auction, error) {
	return c.moderate(ctx, AuctionStartEndpointFmt, auctionID, nil, "start")
}

// EndAuction closes an auction ahead of its deadline. Moderators only.
func (c *Client) EndAuction(ctx context.Context, auctionID int64) (models.Auction, error) {
	return c.moderate(ctx, AuctionEndEndpointFmt, auctionID, nil, "end")
}

// ExtendAuction pushes the deadline back by minutes. Moderators only.
func (c *Client) ExtendAuction(ctx context.Context, auctionID int64, minutes int) (models.Auction, error) {
	return c.moderate(ctx, AuctionExtendEndpointFmt, auctionID, extendRequest{Minutes: minutes}, "extend")
}

func (c *Client) moderate(ctx context.Context, endpointFmt string, auctionID int64, in interface{}, action string) (models.Auction, error) {
	var auction models.Auction
	if err := c.PostJSON(ctx, fmt.Sprintf(endpointFmt, auctionID), in, &auction); err != nil {
		return models.Auction{}, fmt.Errorf("failed to %s auction %d: %w", action, auctionID, err)
	}
	if auction.ID == 0 {
		auction.ID = auctionID
	}
	auction.Normalize()
	return auction, nil
}
