package auction_api_client

const (
	// Base URL
	DefaultBaseURL = "http://localhost:8000"

	// Auction endpoints
	AuctionsEndpoint       = "/api/v1/subastas"
	AuctionSearchEndpoint  = "/api/v1/subastas/search"
	AuctionEndpointFmt     = "/api/v1/subastas/%d"
	AuctionBidsEndpointFmt = "/api/v1/subastas/%d/pujas"

	// Moderation endpoints
	AuctionStartEndpointFmt  = "/api/v1/subastas/%d/start"
	AuctionEndEndpointFmt    = "/api/v1/subastas/%d/end"
	AuctionExtendEndpointFmt = "/api/v1/subastas/%d/extend"

	// Auth endpoints
	LoginEndpoint         = "/api/v1/auth/login"
	RegisterEndpoint      = "/api/v1/auth/register"
	RefreshTokenEndpoint  = "/api/v1/auth/refreshToken"
	ValidateTokenEndpoint = "/api/v1/auth/validateToken"
	LogoutEndpoint        = "/api/v1/auth/logout"

	// Pagination defaults
	DefaultPage  = 0
	DefaultLimit = 10
)
