package services

import (
	"context"
	"fmt"
	"time"

	"marketplace-auction/internal/domain"
	"marketplace-auction/pkg/logger"
)

// BidService validates and records bids against proceeding auctions. All
// validation and writes for one bid run under the auction's exclusive lock,
// so concurrent bidders on the same auction serialize while independent
// auctions never block each other.
type BidService struct {
	store    domain.Store
	bidders  domain.BidderDirectory
	eventPub domain.EventPublisher
	lockWait time.Duration
	pageSize int
	log      logger.Logger
}

func NewBidService(
	store domain.Store,
	bidders domain.BidderDirectory,
	eventPub domain.EventPublisher,
	lockWait time.Duration,
	pageSize int,
	log logger.Logger,
) *BidService {
	return &BidService{
		store:    store,
		bidders:  bidders,
		eventPub: eventPub,
		lockWait: lockWait,
		pageSize: pageSize,
		log:      log,
	}
}

// PlaceBid records a single bid. Validation failures are business errors the
// caller must correct; domain.ErrLockWaitTimeout is the only failure safe to
// retry as-is.
func (s *BidService) PlaceBid(ctx context.Context, auctionID, bidderID, price int64) (*domain.Bid, error) {
	if price <= 0 {
		return nil, domain.ErrInvalidPrice
	}

	exists, err := s.bidders.BidderExists(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("checking bidder %d: %w", bidderID, err)
	}
	if !exists {
		return nil, domain.ErrBidderNotFound
	}

	bid := &domain.Bid{
		AuctionID: auctionID,
		BidderID:  bidderID,
		Price:     price,
	}
	var outbidID *int64

	err = s.store.WithAuctionLock(ctx, auctionID, s.lockWait, func(tx domain.AuctionTx) error {
		auction := tx.Auction()

		if auction.Status != domain.StatusProceeding {
			return fmt.Errorf("%w: auction %d is %s", domain.ErrAuctionNotBiddable, auctionID, auction.Status)
		}

		tick := domain.TickSize(auction.StartPrice)
		minAcceptable := auction.CurrentPrice + tick

		if price < minAcceptable {
			return fmt.Errorf("%w: minimum acceptable bid is %d", domain.ErrBidBelowMinimum, minAcceptable)
		}
		if (price-auction.CurrentPrice)%tick != 0 {
			return fmt.Errorf("%w: price must be a multiple of %d above %d", domain.ErrOffTick, tick, auction.CurrentPrice)
		}

		last, ok, err := tx.LastBidBy(bidderID)
		if err != nil {
			return err
		}
		if ok && last.Price == price {
			return fmt.Errorf("%w: your previous bid was already %d", domain.ErrRepeatedPrice, price)
		}

		taken, err := tx.BidExistsAt(price)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: price %d is already taken", domain.ErrDuplicatePrice, price)
		}

		if prev, ok, err := tx.HighestBid(); err != nil {
			return err
		} else if ok && prev.BidderID != bidderID {
			outbidID = &prev.BidderID
		}

		bid.PlacedAt = time.Now().UTC()
		return tx.RecordBid(bid)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Bid accepted",
		"auction_id", auctionID, "bidder_id", bidderID, "price", price, "bid_id", bid.ID)
	s.publish(ctx, &domain.BidEvent{
		Type:      domain.EventBidAccepted,
		AuctionID: auctionID,
		BidderID:  bidderID,
		Price:     price,
		Timestamp: bid.PlacedAt,
	})
	if outbidID != nil {
		s.publish(ctx, &domain.BidEvent{
			Type:      domain.EventOutbid,
			AuctionID: auctionID,
			BidderID:  *outbidID,
			Price:     price,
			Timestamp: bid.PlacedAt,
		})
	}

	return bid, nil
}

// BidsForAuction returns one page of an auction's bids, newest first. The
// auction must exist.
func (s *BidService) BidsForAuction(ctx context.Context, auctionID int64, page, size int) ([]*domain.Bid, error) {
	if _, err := s.store.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}

	limit, offset := s.pageBounds(page, size)
	return s.store.BidsForAuction(ctx, auctionID, limit, offset)
}

// BidsForBidder returns one page of a bidder's bids across auctions, newest
// first.
func (s *BidService) BidsForBidder(ctx context.Context, bidderID int64, page, size int) ([]*domain.Bid, error) {
	exists, err := s.bidders.BidderExists(ctx, bidderID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrBidderNotFound
	}

	limit, offset := s.pageBounds(page, size)
	return s.store.BidsForBidder(ctx, bidderID, limit, offset)
}

// TickInfo describes the increment currently in force for an auction.
type TickInfo struct {
	AuctionID     int64 `json:"auction_id"`
	StartPrice    int64 `json:"start_price"`
	TickSize      int64 `json:"tick_size"`
	MinAcceptable int64 `json:"min_acceptable"`
}

// TickSizeForAuction recomputes the auction's tick size from its start price.
func (s *BidService) TickSizeForAuction(ctx context.Context, auctionID int64) (*TickInfo, error) {
	auction, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	return &TickInfo{
		AuctionID:     auction.ID,
		StartPrice:    auction.StartPrice,
		TickSize:      domain.TickSize(auction.StartPrice),
		MinAcceptable: domain.MinAcceptableBid(auction.StartPrice, auction.CurrentPrice),
	}, nil
}

// GetAuction exposes an auction snapshot for the read API.
func (s *BidService) GetAuction(ctx context.Context, auctionID int64) (*domain.Auction, error) {
	return s.store.GetAuction(ctx, auctionID)
}

func (s *BidService) pageBounds(page, size int) (limit, offset int) {
	if size <= 0 {
		size = s.pageSize
	}
	if page < 1 {
		page = 1
	}
	return size, (page - 1) * size
}

func (s *BidService) publish(ctx context.Context, event *domain.BidEvent) {
	if s.eventPub == nil {
		return
	}
	if err := s.eventPub.PublishBidEvent(ctx, event); err != nil {
		s.log.Error("Failed to publish bid event",
			"type", event.Type, "auction_id", event.AuctionID, "error", err)
	}
}
