package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"marketplace-auction/internal/domain"
	"marketplace-auction/pkg/logger"
)

// PaymentSweeper forfeits completed auctions whose winner has not paid within
// the grace window. Payment status comes from the external payment
// collaborator; a failure checking one auction is logged and the auction
// retried naturally on the next cycle.
type PaymentSweeper struct {
	cron       *cron.Cron
	store      domain.Store
	payments   domain.PaymentChecker
	eventPub   domain.EventPublisher
	leader     domain.LeaderElection
	instanceID string
	period     time.Duration
	grace      time.Duration
	lockWait   time.Duration
	log        logger.Logger
}

func NewPaymentSweeper(
	store domain.Store,
	payments domain.PaymentChecker,
	eventPub domain.EventPublisher,
	leader domain.LeaderElection,
	instanceID string,
	period time.Duration,
	grace time.Duration,
	lockWait time.Duration,
	log logger.Logger,
) *PaymentSweeper {
	return &PaymentSweeper{
		cron:       cron.New(cron.WithSeconds()),
		store:      store,
		payments:   payments,
		eventPub:   eventPub,
		leader:     leader,
		instanceID: instanceID,
		period:     period,
		grace:      grace,
		lockWait:   lockWait,
		log:        log,
	}
}

func (s *PaymentSweeper) Start(ctx context.Context) error {
	s.log.Info("Starting payment sweeper", "period", s.period, "grace", s.grace)

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.period), func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *PaymentSweeper) Stop() error {
	s.log.Info("Stopping payment sweeper")
	s.cron.Stop()
	return nil
}

// Sweep forfeits every completed auction past the payment deadline whose
// winner has not paid. Per-auction failures never abort the batch.
func (s *PaymentSweeper) Sweep(ctx context.Context) {
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

	due, err := s.store.DueForPaymentCheck(ctx, time.Now().UTC(), s.grace)
	if err != nil {
		s.log.Error("Failed to list overdue auctions", "error", err)
		return
	}

	for _, auctionID := range due {
		if err := s.checkPayment(ctx, auctionID); err != nil {
			s.log.Error("Failed to check payment", "auction_id", auctionID, "error", err)
		}
	}
}

func (s *PaymentSweeper) checkPayment(ctx context.Context, auctionID int64) error {
	var event *domain.BidEvent

	err := s.store.WithAuctionLock(ctx, auctionID, s.lockWait, func(tx domain.AuctionTx) error {
		auction := tx.Auction()

		if auction.Status != domain.StatusCompleted || auction.WinnerID == nil {
			return nil
		}
		if auction.EndTime.Add(s.grace).After(time.Now().UTC()) {
			return nil
		}

		winnerID := *auction.WinnerID
		paid, err := s.payments.HasCompletedPayment(ctx, winnerID, auctionID)
		if err != nil {
			return fmt.Errorf("payment lookup for auction %d: %w", auctionID, err)
		}
		if paid {
			return nil
		}

		if err := tx.Forfeit(); err != nil {
			return err
		}
		event = &domain.BidEvent{
			Type:      domain.EventAuctionForfeited,
			AuctionID: auctionID,
			BidderID:  winnerID,
			Timestamp: time.Now().UTC(),
		}
		s.log.Info("Auction forfeited for missed payment",
			"auction_id", auctionID, "former_winner_id", winnerID)
		return nil
	})
	if err != nil {
		return err
	}

	if event != nil && s.eventPub != nil {
		if err := s.eventPub.PublishBidEvent(ctx, event); err != nil {
			s.log.Error("Failed to publish forfeiture event",
				"auction_id", auctionID, "error", err)
		}
	}
	return nil
}
