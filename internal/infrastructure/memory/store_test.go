package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-auction/internal/domain"
)

func proceedingAuction(endIn time.Duration) *domain.Auction {
	now := time.Now().UTC()
	return &domain.Auction{
		ItemID:       7,
		StartPrice:   10_000,
		CurrentPrice: 10_000,
		StartTime:    now.Add(-time.Hour),
		EndTime:      now.Add(endIn),
		Status:       domain.StatusProceeding,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestStore_GetAuction(t *testing.T) {
	store := NewStore()
	id := store.AddAuction(proceedingAuction(time.Hour))

	got, err := store.GetAuction(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, domain.StatusProceeding, got.Status)

	_, err = store.GetAuction(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestStore_WithAuctionLock_NotFound(t *testing.T) {
	store := NewStore()
	err := store.WithAuctionLock(context.Background(), 42, time.Second, func(tx domain.AuctionTx) error {
		t.Fatal("callback must not run for a missing auction")
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestStore_WithAuctionLock_Timeout(t *testing.T) {
	store := NewStore()
	id := store.AddAuction(proceedingAuction(time.Hour))

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.WithAuctionLock(context.Background(), id, time.Second, func(tx domain.AuctionTx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	err := store.WithAuctionLock(context.Background(), id, 50*time.Millisecond, func(tx domain.AuctionTx) error {
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrLockWaitTimeout)
}

func TestStore_IndependentAuctionsDoNotBlock(t *testing.T) {
	store := NewStore()
	first := store.AddAuction(proceedingAuction(time.Hour))
	second := store.AddAuction(proceedingAuction(time.Hour))

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.WithAuctionLock(context.Background(), first, time.Second, func(tx domain.AuctionTx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	err := store.WithAuctionLock(context.Background(), second, 50*time.Millisecond, func(tx domain.AuctionTx) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestStore_RollbackOnError(t *testing.T) {
	store := NewStore()
	id := store.AddAuction(proceedingAuction(time.Hour))

	wantErr := assert.AnError
	err := store.WithAuctionLock(context.Background(), id, time.Second, func(tx domain.AuctionTx) error {
		require.NoError(t, tx.RecordBid(&domain.Bid{BidderID: 1, Price: 10_500, PlacedAt: time.Now().UTC()}))
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	auction, err := store.GetAuction(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), auction.CurrentPrice)
	assert.Equal(t, 0, auction.BidCount)

	bids, err := store.BidsForAuction(context.Background(), id, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, bids)
}

func TestStore_RecordBidUpdatesDenormalizedFields(t *testing.T) {
	store := NewStore()
	id := store.AddAuction(proceedingAuction(time.Hour))

	err := store.WithAuctionLock(context.Background(), id, time.Second, func(tx domain.AuctionTx) error {
		return tx.RecordBid(&domain.Bid{BidderID: 1, Price: 10_500, PlacedAt: time.Now().UTC()})
	})
	require.NoError(t, err)

	auction, err := store.GetAuction(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(10_500), auction.CurrentPrice)
	assert.Equal(t, 1, auction.BidCount)

	bids, err := store.BidsForAuction(context.Background(), id, 10, 0)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.NotZero(t, bids[0].ID)
	assert.Equal(t, id, bids[0].AuctionID)
}

func TestStore_HighestBidTieBreak(t *testing.T) {
	store := NewStore()
	id := store.AddAuction(proceedingAuction(time.Hour))

	base := time.Now().UTC()
	err := store.WithAuctionLock(context.Background(), id, time.Second, func(tx domain.AuctionTx) error {
		// Two bids at the same maximum price; the earlier one must win.
		require.NoError(t, tx.RecordBid(&domain.Bid{BidderID: 1, Price: 11_000, PlacedAt: base}))
		require.NoError(t, tx.RecordBid(&domain.Bid{BidderID: 2, Price: 11_000, PlacedAt: base.Add(time.Second)}))
		require.NoError(t, tx.RecordBid(&domain.Bid{BidderID: 3, Price: 10_500, PlacedAt: base.Add(2 * time.Second)}))
		return nil
	})
	require.NoError(t, err)

	err = store.WithAuctionLock(context.Background(), id, time.Second, func(tx domain.AuctionTx) error {
		highest, ok, err := tx.HighestBid()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(1), highest.BidderID)
		assert.Equal(t, int64(11_000), highest.Price)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_LedgerQueries(t *testing.T) {
	store := NewStore()
	id := store.AddAuction(proceedingAuction(time.Hour))

	base := time.Now().UTC()
	err := store.WithAuctionLock(context.Background(), id, time.Second, func(tx domain.AuctionTx) error {
		require.NoError(t, tx.RecordBid(&domain.Bid{BidderID: 1, Price: 10_500, PlacedAt: base}))
		require.NoError(t, tx.RecordBid(&domain.Bid{BidderID: 2, Price: 11_000, PlacedAt: base.Add(time.Second)}))

		taken, err := tx.BidExistsAt(10_500)
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = tx.BidExistsAt(12_000)
		require.NoError(t, err)
		assert.False(t, taken)

		last, ok, err := tx.LastBidBy(1)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(10_500), last.Price)

		_, ok, err = tx.LastBidBy(99)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_DueQueries(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	expired := proceedingAuction(-time.Minute)
	running := proceedingAuction(time.Hour)
	expiredID := store.AddAuction(expired)
	store.AddAuction(running)

	winner := int64(5)
	price := int64(12_000)
	overdue := proceedingAuction(-9 * 24 * time.Hour)
	overdue.Status = domain.StatusCompleted
	overdue.WinnerID = &winner
	overdue.WinningPrice = &price
	overdueID := store.AddAuction(overdue)

	recent := proceedingAuction(-time.Hour)
	recent.Status = domain.StatusCompleted
	recent.WinnerID = &winner
	recent.WinningPrice = &price
	store.AddAuction(recent)

	due, err := store.DueForFinalization(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []int64{expiredID}, due)

	duePay, err := store.DueForPaymentCheck(context.Background(), now, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []int64{overdueID}, duePay)
}

func TestStore_PagedBids(t *testing.T) {
	store := NewStore()
	id := store.AddAuction(proceedingAuction(time.Hour))

	base := time.Now().UTC()
	err := store.WithAuctionLock(context.Background(), id, time.Second, func(tx domain.AuctionTx) error {
		for i := 0; i < 5; i++ {
			bid := &domain.Bid{BidderID: 1, Price: 10_500 + int64(i)*500, PlacedAt: base.Add(time.Duration(i) * time.Second)}
			require.NoError(t, tx.RecordBid(bid))
		}
		return nil
	})
	require.NoError(t, err)

	page1, err := store.BidsForAuction(context.Background(), id, 2, 0)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, int64(12_500), page1[0].Price, "newest first")
	assert.Equal(t, int64(12_000), page1[1].Price)

	page2, err := store.BidsForAuction(context.Background(), id, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, int64(11_500), page2[0].Price)

	byBidder, err := store.BidsForBidder(context.Background(), 1, 10, 0)
	require.NoError(t, err)
	assert.Len(t, byBidder, 5)

	none, err := store.BidsForBidder(context.Background(), 2, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBidderDirectory(t *testing.T) {
	dir := NewBidderDirectory(1, 2)
	ok, err := dir.BidderExists(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = dir.BidderExists(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, ok)

	dir.Add(3)
	ok, err = dir.BidderExists(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, ok)
}
