// Package memory holds an in-process implementation of the auction store.
// The per-auction lock is a keyed semaphore with a bounded wait; suitable for
// a single-process deployment, where process memory is the serialization
// point. Multi-instance deployments must use the mysql store instead.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketplace-auction/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	auctions map[int64]*domain.Auction
	bids     map[int64][]*domain.Bid
	locks    map[int64]chan struct{}

	nextAuctionID int64
	nextBidID     int64
}

func NewStore() *Store {
	return &Store{
		auctions: make(map[int64]*domain.Auction),
		bids:     make(map[int64][]*domain.Bid),
		locks:    make(map[int64]chan struct{}),
	}
}

// AddAuction registers an auction, assigning an ID when it has none. Auction
// creation itself belongs to the listing subsystem; this is its entry point
// into the engine's store.
func (s *Store) AddAuction(auction *domain.Auction) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if auction.ID == 0 {
		s.nextAuctionID++
		auction.ID = s.nextAuctionID
	} else if auction.ID > s.nextAuctionID {
		s.nextAuctionID = auction.ID
	}

	copied := *auction
	s.auctions[auction.ID] = &copied
	return auction.ID
}

func (s *Store) GetAuction(ctx context.Context, auctionID int64) (*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	copied := *auction
	return &copied, nil
}

func (s *Store) WithAuctionLock(ctx context.Context, auctionID int64, wait time.Duration, fn func(tx domain.AuctionTx) error) error {
	s.mu.Lock()
	if _, ok := s.auctions[auctionID]; !ok {
		s.mu.Unlock()
		return domain.ErrAuctionNotFound
	}
	sem, ok := s.locks[auctionID]
	if !ok {
		sem = make(chan struct{}, 1)
		s.locks[auctionID] = sem
	}
	s.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
	case <-timer.C:
		return domain.ErrLockWaitTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-sem }()

	s.mu.RLock()
	snapshot := *s.auctions[auctionID]
	s.mu.RUnlock()

	tx := &auctionTx{store: s, auction: &snapshot}
	if err := fn(tx); err != nil {
		return err
	}

	// Commit: holders of the auction lock are the only writers for this
	// auction, so the staged state cannot have gone stale.
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bid := range tx.newBids {
		s.bids[auctionID] = append(s.bids[auctionID], bid)
	}
	snapshot.UpdatedAt = time.Now().UTC()
	s.auctions[auctionID] = &snapshot
	return nil
}

func (s *Store) DueForFinalization(ctx context.Context, now time.Time) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []int64
	for id, auction := range s.auctions {
		if auction.Status == domain.StatusProceeding && !auction.EndTime.After(now) {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })
	return due, nil
}

func (s *Store) DueForPaymentCheck(ctx context.Context, now time.Time, grace time.Duration) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []int64
	for id, auction := range s.auctions {
		if auction.Status == domain.StatusCompleted && !auction.EndTime.Add(grace).After(now) {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })
	return due, nil
}

func (s *Store) BidsForAuction(ctx context.Context, auctionID int64, limit, offset int) ([]*domain.Bid, error) {
	s.mu.RLock()
	bids := append([]*domain.Bid(nil), s.bids[auctionID]...)
	s.mu.RUnlock()

	return pageNewestFirst(bids, limit, offset), nil
}

func (s *Store) BidsForBidder(ctx context.Context, bidderID int64, limit, offset int) ([]*domain.Bid, error) {
	s.mu.RLock()
	var bids []*domain.Bid
	for _, auctionBids := range s.bids {
		for _, bid := range auctionBids {
			if bid.BidderID == bidderID {
				bids = append(bids, bid)
			}
		}
	}
	s.mu.RUnlock()

	return pageNewestFirst(bids, limit, offset), nil
}

func pageNewestFirst(bids []*domain.Bid, limit, offset int) []*domain.Bid {
	sort.Slice(bids, func(i, j int) bool {
		if !bids[i].PlacedAt.Equal(bids[j].PlacedAt) {
			return bids[i].PlacedAt.After(bids[j].PlacedAt)
		}
		return bids[i].ID > bids[j].ID
	})

	if offset >= len(bids) {
		return nil
	}
	bids = bids[offset:]
	if limit > 0 && limit < len(bids) {
		bids = bids[:limit]
	}

	out := make([]*domain.Bid, len(bids))
	for i, bid := range bids {
		copied := *bid
		out[i] = &copied
	}
	return out
}

type auctionTx struct {
	store   *Store
	auction *domain.Auction
	newBids []*domain.Bid
}

func (tx *auctionTx) Auction() *domain.Auction {
	return tx.auction
}

func (tx *auctionTx) ledger() []*domain.Bid {
	tx.store.mu.RLock()
	bids := append([]*domain.Bid(nil), tx.store.bids[tx.auction.ID]...)
	tx.store.mu.RUnlock()
	return append(bids, tx.newBids...)
}

func (tx *auctionTx) HighestBid() (*domain.Bid, bool, error) {
	bids := tx.ledger()
	if len(bids) == 0 {
		return nil, false, nil
	}

	highest := bids[0]
	for _, bid := range bids[1:] {
		if bid.Price > highest.Price {
			highest = bid
			continue
		}
		if bid.Price == highest.Price {
			if bid.PlacedAt.Before(highest.PlacedAt) ||
				(bid.PlacedAt.Equal(highest.PlacedAt) && bid.ID < highest.ID) {
				highest = bid
			}
		}
	}
	copied := *highest
	return &copied, true, nil
}

func (tx *auctionTx) BidExistsAt(price int64) (bool, error) {
	for _, bid := range tx.ledger() {
		if bid.Price == price {
			return true, nil
		}
	}
	return false, nil
}

func (tx *auctionTx) LastBidBy(bidderID int64) (*domain.Bid, bool, error) {
	bids := tx.ledger()
	for i := len(bids) - 1; i >= 0; i-- {
		if bids[i].BidderID == bidderID {
			copied := *bids[i]
			return &copied, true, nil
		}
	}
	return nil, false, nil
}

func (tx *auctionTx) RecordBid(bid *domain.Bid) error {
	tx.store.mu.Lock()
	tx.store.nextBidID++
	bid.ID = tx.store.nextBidID
	tx.store.mu.Unlock()

	bid.AuctionID = tx.auction.ID
	copied := *bid
	tx.newBids = append(tx.newBids, &copied)

	tx.auction.CurrentPrice = bid.Price
	tx.auction.BidCount++
	return nil
}

func (tx *auctionTx) CloseWon(winnerID, winningPrice int64) error {
	tx.auction.Status = domain.StatusCompleted
	tx.auction.WinnerID = &winnerID
	tx.auction.WinningPrice = &winningPrice
	return nil
}

func (tx *auctionTx) CloseFailed() error {
	tx.auction.Status = domain.StatusFailed
	tx.auction.WinnerID = nil
	tx.auction.WinningPrice = nil
	return nil
}

func (tx *auctionTx) Forfeit() error {
	tx.auction.Status = domain.StatusFailed
	tx.auction.WinnerID = nil
	tx.auction.WinningPrice = nil
	return nil
}

// BidderDirectory is an in-process bidder existence check for single-process
// runs and tests.
type BidderDirectory struct {
	mu      sync.RWMutex
	bidders map[int64]bool
}

func NewBidderDirectory(bidderIDs ...int64) *BidderDirectory {
	d := &BidderDirectory{bidders: make(map[int64]bool)}
	for _, id := range bidderIDs {
		d.bidders[id] = true
	}
	return d
}

func (d *BidderDirectory) Add(bidderID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bidders[bidderID] = true
}

func (d *BidderDirectory) BidderExists(ctx context.Context, bidderID int64) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bidders[bidderID], nil
}
