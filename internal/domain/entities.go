package domain

import (
	"time"
)

type Auction struct {
	ID           int64
	ItemID       int64
	StartPrice   int64
	CurrentPrice int64
	StartTime    time.Time
	EndTime      time.Time
	Status       AuctionStatus
	WinnerID     *int64
	WinningPrice *int64
	BidCount     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AuctionStatus int

const (
	StatusScheduled AuctionStatus = iota
	StatusProceeding
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s AuctionStatus) String() string {
	switch s {
	case StatusScheduled:
		return "scheduled"
	case StatusProceeding:
		return "proceeding"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further engine-driven transition can leave s.
// Completed is not terminal: payment forfeiture may still turn it into Failed.
func (s AuctionStatus) Terminal() bool {
	return s == StatusFailed || s == StatusCancelled
}

type Bid struct {
	ID        int64
	AuctionID int64
	BidderID  int64
	Price     int64
	PlacedAt  time.Time
}

type BidEvent struct {
	ID        string       `json:"id"`
	Type      BidEventType `json:"type"`
	AuctionID int64        `json:"auction_id"`
	BidderID  int64        `json:"bidder_id,omitempty"`
	Price     int64        `json:"price,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

type BidEventType string

const (
	EventBidAccepted      BidEventType = "bid_accepted"
	EventOutbid           BidEventType = "outbid"
	EventAuctionWon       BidEventType = "auction_won"
	EventAuctionFailed    BidEventType = "auction_failed"
	EventAuctionForfeited BidEventType = "auction_forfeited"
)
