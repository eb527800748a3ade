package bidding

import "errors"

// Validation outcomes, in the order the rules are checked.
// The messages are stable reasons; callers translate them for display.
var (
	ErrAuctionNotOpen    = errors.New("auction not open for bidding")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNotAboveCurrent   = errors.New("must exceed current price")
	ErrBelowMinIncrement = errors.New("below minimum increment")
	ErrAmountTooLarge    = errors.New("amount too large")
)

// IsValidationError reports whether err comes from Validate
func IsValidationError(err error) bool {
	return errors.Is(err, ErrAuctionNotOpen) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrNotAboveCurrent) ||
		errors.Is(err, ErrBelowMinIncrement) ||
		errors.Is(err, ErrAmountTooLarge)
}
