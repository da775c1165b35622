package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"marketplace-auction/internal/domain"
)

const bidColumns = `id, auction_id, bidder_id, price, placed_at`

// auctionTx is the view of one auction row held FOR UPDATE. Ledger reads run
// inside the same transaction, so they observe a snapshot consistent with the
// row lock.
type auctionTx struct {
	ctx     context.Context
	tx      *sql.Tx
	auction *domain.Auction
}

func (t *auctionTx) Auction() *domain.Auction {
	return t.auction
}

func (t *auctionTx) HighestBid() (*domain.Bid, bool, error) {
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE auction_id = ?
        ORDER BY price DESC, placed_at ASC, id ASC
        LIMIT 1
    `
	bid, err := scanBid(t.tx.QueryRowContext(t.ctx, query, t.auction.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return bid, true, nil
}

func (t *auctionTx) BidExistsAt(price int64) (bool, error) {
	query := `SELECT 1 FROM bids WHERE auction_id = ? AND price = ? LIMIT 1`

	var one int
	err := t.tx.QueryRowContext(t.ctx, query, t.auction.ID, price).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (t *auctionTx) LastBidBy(bidderID int64) (*domain.Bid, bool, error) {
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE auction_id = ? AND bidder_id = ?
        ORDER BY placed_at DESC, id DESC
        LIMIT 1
    `
	bid, err := scanBid(t.tx.QueryRowContext(t.ctx, query, t.auction.ID, bidderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return bid, true, nil
}

func (t *auctionTx) RecordBid(bid *domain.Bid) error {
	insert := `
        INSERT INTO bids (auction_id, bidder_id, price, placed_at)
        VALUES (?, ?, ?, ?)
    `
	result, err := t.tx.ExecContext(t.ctx, insert,
		t.auction.ID, bid.BidderID, bid.Price, bid.PlacedAt)
	if err != nil {
		return err
	}
	bid.ID, err = result.LastInsertId()
	if err != nil {
		return err
	}
	bid.AuctionID = t.auction.ID

	update := `
        UPDATE auctions
        SET current_price = ?, bid_count = bid_count + 1, updated_at = ?
        WHERE id = ?
    `
	if _, err := t.tx.ExecContext(t.ctx, update,
		bid.Price, time.Now().UTC(), t.auction.ID); err != nil {
		return err
	}

	t.auction.CurrentPrice = bid.Price
	t.auction.BidCount++
	return nil
}

func (t *auctionTx) CloseWon(winnerID, winningPrice int64) error {
	query := `
        UPDATE auctions
        SET status = ?, winner_id = ?, winning_price = ?, updated_at = ?
        WHERE id = ?
    `
	_, err := t.tx.ExecContext(t.ctx, query,
		int(domain.StatusCompleted), winnerID, winningPrice, time.Now().UTC(), t.auction.ID)
	if err != nil {
		return err
	}
	t.auction.Status = domain.StatusCompleted
	t.auction.WinnerID = &winnerID
	t.auction.WinningPrice = &winningPrice
	return nil
}

func (t *auctionTx) CloseFailed() error {
	return t.failAuction()
}

func (t *auctionTx) Forfeit() error {
	return t.failAuction()
}

func (t *auctionTx) failAuction() error {
	query := `
        UPDATE auctions
        SET status = ?, winner_id = NULL, winning_price = NULL, updated_at = ?
        WHERE id = ?
    `
	_, err := t.tx.ExecContext(t.ctx, query,
		int(domain.StatusFailed), time.Now().UTC(), t.auction.ID)
	if err != nil {
		return err
	}
	t.auction.Status = domain.StatusFailed
	t.auction.WinnerID = nil
	t.auction.WinningPrice = nil
	return nil
}

func (s *MySQLStore) BidsForAuction(ctx context.Context, auctionID int64, limit, offset int) ([]*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE auction_id = ?
        ORDER BY placed_at DESC, id DESC
        LIMIT ? OFFSET ?
    `
	return s.queryBids(ctx, query, auctionID, limit, offset)
}

func (s *MySQLStore) BidsForBidder(ctx context.Context, bidderID int64, limit, offset int) ([]*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE bidder_id = ?
        ORDER BY placed_at DESC, id DESC
        LIMIT ? OFFSET ?
    `
	return s.queryBids(ctx, query, bidderID, limit, offset)
}

func (s *MySQLStore) queryBids(ctx context.Context, query string, args ...interface{}) ([]*domain.Bid, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

func scanBid(row rowScanner) (*domain.Bid, error) {
	var bid domain.Bid
	err := row.Scan(&bid.ID, &bid.AuctionID, &bid.BidderID, &bid.Price, &bid.PlacedAt)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}
