package auctions

import (
	"context"

	"github.com/mcdev12/subasta/go/internal/models"
)

//go:generate mockgen -source=api.go -destination=mocks/mock_auction_api.go -package=mocks

// AuctionAPI is the part of the REST client the store reads from and writes to
type AuctionAPI interface {
	ListAuctions(ctx context.Context, categoria string, page, limit int) ([]models.Auction, error)
	SearchAuctions(ctx context.Context, searchTerm, categoria string, page, limit int) ([]models.Auction, error)
	GetAuction(ctx context.Context, auctionID int64) (models.Auction, error)
	GetBids(ctx context.Context, auctionID int64) ([]models.Bid, error)
	CreateBid(ctx context.Context, auctionID int64, amount float64) (models.Bid, error)

	CreateAuction(ctx context.Context, req models.AuctionRequest) (models.Auction, error)
	UpdateAuction(ctx context.Context, auctionID int64, req models.AuctionRequest) (models.Auction, error)
	DeleteAuction(ctx context.Context, auctionID int64) error
	StartAuction(ctx context.Context, auctionID int64) (models.Auction, error)
	EndAuction(ctx context.Context, auctionID int64) (models.Auction, error)
	ExtendAuction(ctx context.Context, auctionID int64, minutes int) (models.Auction, error)
}
