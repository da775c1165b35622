package mysql

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/go-sql-driver/mysql"

	"marketplace-auction/internal/domain"
)

// ER_LOCK_WAIT_TIMEOUT
const errLockWaitTimeout = 1205

// MySQLStore implements domain.Store on top of database/sql. The per-auction
// exclusive lock is the InnoDB row lock taken by SELECT ... FOR UPDATE, with
// the wait bounded by innodb_lock_wait_timeout on the transaction's session.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

const auctionColumns = `id, item_id, start_price, current_price, start_time, end_time,
	       status, winner_id, winning_price, bid_count, created_at, updated_at`

func (s *MySQLStore) GetAuction(ctx context.Context, auctionID int64) (*domain.Auction, error) {
	query := `
        SELECT ` + auctionColumns + `
        FROM auctions WHERE id = ?
    `
	return scanAuction(s.db.QueryRowContext(ctx, query, auctionID))
}

func (s *MySQLStore) WithAuctionLock(ctx context.Context, auctionID int64, wait time.Duration, fn func(tx domain.AuctionTx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	// Bound the row-lock wait for this transaction's session only.
	waitSeconds := int(math.Ceil(wait.Seconds()))
	if waitSeconds < 1 {
		waitSeconds = 1
	}
	if _, err := sqlTx.ExecContext(ctx, "SET innodb_lock_wait_timeout = ?", waitSeconds); err != nil {
		return err
	}

	query := `
        SELECT ` + auctionColumns + `
        FROM auctions WHERE id = ?
        FOR UPDATE
    `
	auction, err := scanAuction(sqlTx.QueryRowContext(ctx, query, auctionID))
	if err != nil {
		return translateLockErr(err)
	}

	if err := fn(&auctionTx{ctx: ctx, tx: sqlTx, auction: auction}); err != nil {
		return translateLockErr(err)
	}

	return sqlTx.Commit()
}

func translateLockErr(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == errLockWaitTimeout {
		return domain.ErrLockWaitTimeout
	}
	return err
}

func (s *MySQLStore) DueForFinalization(ctx context.Context, now time.Time) ([]int64, error) {
	query := `
        SELECT id FROM auctions
        WHERE status = ? AND end_time <= ?
        ORDER BY end_time ASC
    `
	return s.queryIDs(ctx, query, int(domain.StatusProceeding), now)
}

func (s *MySQLStore) DueForPaymentCheck(ctx context.Context, now time.Time, grace time.Duration) ([]int64, error) {
	query := `
        SELECT id FROM auctions
        WHERE status = ? AND end_time <= ?
        ORDER BY end_time ASC
    `
	return s.queryIDs(ctx, query, int(domain.StatusCompleted), now.Add(-grace))
}

func (s *MySQLStore) queryIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var auction domain.Auction
	var status int
	var winnerID, winningPrice sql.NullInt64

	err := row.Scan(
		&auction.ID, &auction.ItemID, &auction.StartPrice, &auction.CurrentPrice,
		&auction.StartTime, &auction.EndTime, &status, &winnerID, &winningPrice,
		&auction.BidCount, &auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}

	auction.Status = domain.AuctionStatus(status)
	if winnerID.Valid {
		auction.WinnerID = &winnerID.Int64
	}
	if winningPrice.Valid {
		auction.WinningPrice = &winningPrice.Int64
	}
	return &auction, nil
}
