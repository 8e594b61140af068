package marketplace

import (
	"errors"
	"fmt"
)

// Sentinel errors for lookup and validation failures.
var (
	ErrListingNotFound = errors.New("listing not found")
	ErrSellerNotFound  = errors.New("seller not found")
	ErrInvalidListing  = errors.New("invalid listing")
)

// Rejection reason codes returned to callers on business-rule conflicts.
// Every rejection reflects a state conflict the caller must resolve;
// none are retryable as-is.
const (
	ReasonListingNotFound = "listing_not_found"
	ReasonNotInAuction    = "not_in_auction"
	ReasonAuctionExpired  = "auction_expired"
	ReasonInsufficientBid = "insufficient_bid"
	ReasonNotAvailable    = "not_available"
	ReasonNotOwner        = "not_owner"
	ReasonAlreadyTerminal = "already_terminal"
)

// RejectionError is a recoverable business-rule rejection. CurrentMax is
// populated for bid rejections so the caller can re-bid higher.
type RejectionError struct {
	Reason     string
	Message    string
	CurrentMax float64
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("rejected (%s): %s", e.Reason, e.Message)
}

func reject(reason, format string, args ...interface{}) *RejectionError {
	return &RejectionError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps err into a RejectionError if it is one.
func AsRejection(err error) (*RejectionError, bool) {
	var r *RejectionError
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
