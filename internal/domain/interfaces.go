package domain

import (
	"context"
	"time"
)

// Store is the durable home of auctions and their bid ledger. The auction row
// is the single serialization point per auction: every mutation runs inside
// WithAuctionLock, and ledger queries that feed a mutation must run under the
// same lock to observe a consistent snapshot.
type Store interface {
	GetAuction(ctx context.Context, auctionID int64) (*Auction, error)

	// WithAuctionLock acquires an exclusive lock on the auction row, waiting
	// at most wait, and runs fn atomically against it. Returns
	// ErrLockWaitTimeout when the lock cannot be acquired in time and
	// ErrAuctionNotFound when the auction does not exist. No writes made by
	// fn survive a non-nil return.
	WithAuctionLock(ctx context.Context, auctionID int64, wait time.Duration, fn func(tx AuctionTx) error) error

	// DueForFinalization lists proceeding auctions whose end time has passed.
	DueForFinalization(ctx context.Context, now time.Time) ([]int64, error)

	// DueForPaymentCheck lists completed auctions whose end time plus the
	// grace window has passed.
	DueForPaymentCheck(ctx context.Context, now time.Time, grace time.Duration) ([]int64, error)

	BidsForAuction(ctx context.Context, auctionID int64, limit, offset int) ([]*Bid, error)
	BidsForBidder(ctx context.Context, bidderID int64, limit, offset int) ([]*Bid, error)
}

// AuctionTx is the view of one locked auction. All reads see a snapshot
// consistent with the lock; all writes commit together when the WithAuctionLock
// callback returns nil.
type AuctionTx interface {
	Auction() *Auction

	// HighestBid returns the maximum-price bid, ties broken by earliest
	// placement time then lowest ID. ok is false when the auction has no bids.
	HighestBid() (bid *Bid, ok bool, err error)

	BidExistsAt(price int64) (bool, error)

	// LastBidBy returns the bidder's most recent bid on this auction.
	LastBidBy(bidderID int64) (bid *Bid, ok bool, err error)

	// RecordBid appends the bid to the ledger and, in the same unit of work,
	// raises the auction's current price to the bid price and increments the
	// bid counter. The bid's ID is assigned on return.
	RecordBid(bid *Bid) error

	// CloseWon moves the auction to completed with the given winner.
	CloseWon(winnerID, winningPrice int64) error

	// CloseFailed moves the auction to failed, leaving winner fields null.
	CloseFailed() error

	// Forfeit moves a completed auction to failed and clears winner fields.
	Forfeit() error
}

// BidderDirectory resolves bidder accounts. Identity and authentication are
// external; the engine only checks existence.
type BidderDirectory interface {
	BidderExists(ctx context.Context, bidderID int64) (bool, error)
}

// PaymentChecker is the external payment collaborator consulted by the
// payment sweeper.
type PaymentChecker interface {
	HasCompletedPayment(ctx context.Context, bidderID, auctionID int64) (bool, error)
}

// EventPublisher fans out bid lifecycle events. Publishing is best-effort:
// callers log failures and carry on.
type EventPublisher interface {
	PublishBidEvent(ctx context.Context, event *BidEvent) error
}

// LeaderElection gates the sweepers so only one instance runs them.
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}
