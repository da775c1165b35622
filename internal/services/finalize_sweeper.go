package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"marketplace-auction/internal/domain"
	"marketplace-auction/pkg/logger"
)

// FinalizationSweeper closes expired auctions on a fixed period. Each
// candidate is re-checked and closed under the same per-auction lock as bid
// placement, so a last-moment bid and the close can never interleave. The
// sweep is idempotent: an auction moved out of proceeding is not selected
// again.
type FinalizationSweeper struct {
	cron       *cron.Cron
	store      domain.Store
	eventPub   domain.EventPublisher
	leader     domain.LeaderElection
	instanceID string
	period     time.Duration
	lockWait   time.Duration
	log        logger.Logger
}

func NewFinalizationSweeper(
	store domain.Store,
	eventPub domain.EventPublisher,
	leader domain.LeaderElection,
	instanceID string,
	period time.Duration,
	lockWait time.Duration,
	log logger.Logger,
) *FinalizationSweeper {
	return &FinalizationSweeper{
		cron:       cron.New(cron.WithSeconds()),
		store:      store,
		eventPub:   eventPub,
		leader:     leader,
		instanceID: instanceID,
		period:     period,
		lockWait:   lockWait,
		log:        log,
	}
}

func (s *FinalizationSweeper) Start(ctx context.Context) error {
	s.log.Info("Starting finalization sweeper", "period", s.period)

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.period), func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *FinalizationSweeper) Stop() error {
	s.log.Info("Stopping finalization sweeper")
	s.cron.Stop()
	return nil
}

// Sweep closes every proceeding auction whose end time has passed. A failure
// on one auction is logged and never aborts the rest of the batch.
func (s *FinalizationSweeper) Sweep(ctx context.Context) {
	if s.leader != nil {
		isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
		if err != nil {
			s.log.Error("Leader check failed, skipping sweep", "error", err)
			return
		}
		if !isLeader {
			return
		}
	}

	due, err := s.store.DueForFinalization(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error("Failed to list expired auctions", "error", err)
		return
	}

	for _, auctionID := range due {
		if err := s.finalize(ctx, auctionID); err != nil {
			s.log.Error("Failed to finalize auction", "auction_id", auctionID, "error", err)
		}
	}
}

func (s *FinalizationSweeper) finalize(ctx context.Context, auctionID int64) error {
	var event *domain.BidEvent

	err := s.store.WithAuctionLock(ctx, auctionID, s.lockWait, func(tx domain.AuctionTx) error {
		auction := tx.Auction()

		// Re-check under the lock: a concurrent sweep may already have
		// closed it, or an admin may have cancelled it.
		if auction.Status != domain.StatusProceeding || auction.EndTime.After(time.Now().UTC()) {
			return nil
		}

		highest, ok, err := tx.HighestBid()
		if err != nil {
			return err
		}

		if !ok {
			if err := tx.CloseFailed(); err != nil {
				return err
			}
			event = &domain.BidEvent{
				Type:      domain.EventAuctionFailed,
				AuctionID: auctionID,
				Timestamp: time.Now().UTC(),
			}
			s.log.Info("Auction closed without bids", "auction_id", auctionID)
			return nil
		}

		if err := tx.CloseWon(highest.BidderID, highest.Price); err != nil {
			return err
		}
		event = &domain.BidEvent{
			Type:      domain.EventAuctionWon,
			AuctionID: auctionID,
			BidderID:  highest.BidderID,
			Price:     highest.Price,
			Timestamp: time.Now().UTC(),
		}
		s.log.Info("Auction completed",
			"auction_id", auctionID, "winner_id", highest.BidderID, "winning_price", highest.Price)
		return nil
	})
	if err != nil {
		return err
	}

	if event != nil && s.eventPub != nil {
		if err := s.eventPub.PublishBidEvent(ctx, event); err != nil {
			s.log.Error("Failed to publish finalization event",
				"auction_id", auctionID, "type", event.Type, "error", err)
		}
	}
	return nil
}
