package domain

import "errors"

// Store-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrBidderNotFound  = errors.New("bidder not found")
	ErrLockWaitTimeout = errors.New("timed out waiting for auction lock")
)

// Business-rule errors. None of these are retryable as-is; the caller must
// resubmit with corrected input. ErrLockWaitTimeout above is the only failure
// safe to retry automatically.
var (
	ErrAuctionNotBiddable = errors.New("auction is not open for bidding")
	ErrInvalidPrice       = errors.New("bid price must be a positive amount")
	ErrBidBelowMinimum    = errors.New("bid price below minimum acceptable")
	ErrOffTick            = errors.New("bid price not on a tick boundary")
	ErrDuplicatePrice     = errors.New("a bid at this price already exists")
	ErrRepeatedPrice      = errors.New("bidder repeated their own previous price")
)
