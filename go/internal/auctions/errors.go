package auctions

import "errors"

var (
	ErrBidInFlight      = errors.New("a bid for this auction is already in flight")
	ErrAuctionNotLoaded = errors.New("auction not loaded")
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrInvalidFilter    = errors.New("page and limit must not be negative")
	ErrInvalidAuction   = errors.New("invalid auction")
	ErrInvalidExtension = errors.New("extension must be at least one minute")
	ErrForbidden        = errors.New("moderator role required")
)
