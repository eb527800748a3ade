package auction_api_client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mcdev12/subasta/go/internal/models"
)

// ListAuctions fetches one page of auctions, optionally restricted to a category
func (c *Client) ListAuctions(ctx context.Context, categoria string, page, limit int) ([]models.Auction, error) {
	params := pageParams(page, limit)
	if categoria != "" {
		params.Set("categoria", categoria)
	}

	var auctions []models.Auction
	if err := c.GetJSON(ctx, AuctionsEndpoint+"?"+params.Encode(), &auctions); err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	return normalizeAll(auctions), nil
}

// SearchAuctions runs a free-text search with optional category
func (c *Client) SearchAuctions(ctx context.Context, searchTerm, categoria string, page, limit int) ([]models.Auction, error) {
	params := pageParams(page, limit)
	if searchTerm != "" {
		params.Set("searchTerm", searchTerm)
	}
	if categoria != "" {
		params.Set("categoria", categoria)
	}

	var auctions []models.Auction
	if err := c.GetJSON(ctx, AuctionSearchEndpoint+"?"+params.Encode(), &auctions); err != nil {
		return nil, fmt.Errorf("failed to search auctions: %w", err)
	}
	return normalizeAll(auctions), nil
}

// GetAuction fetches a single auction by id
func (c *Client) GetAuction(ctx context.Context, auctionID int64) (models.Auction, error) {
	var auction models.Auction
	if err := c.GetJSON(ctx, fmt.Sprintf(AuctionEndpointFmt, auctionID), &auction); err != nil {
		return models.Auction{}, fmt.Errorf("failed to get auction %d: %w", auctionID, err)
	}
	auction.Normalize()
	return auction, nil
}

func pageParams(page, limit int) url.Values {
	if page < 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))
	return params
}

func normalizeAll(auctions []models.Auction) []models.Auction {
	if auctions == nil {
		return []models.Auction{}
	}
	for i := range auctions {
		auctions[i].Normalize()
	}
	return auctions
}
