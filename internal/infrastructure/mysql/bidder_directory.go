package mysql

import (
	"context"
	"database/sql"
	"errors"
)

// MySQLBidderDirectory checks bidder accounts against the marketplace users
// table. Identity resolution and authentication live elsewhere; the engine
// only needs existence of an active account.
type MySQLBidderDirectory struct {
	db *sql.DB
}

func NewMySQLBidderDirectory(db *sql.DB) *MySQLBidderDirectory {
	return &MySQLBidderDirectory{db: db}
}

func (d *MySQLBidderDirectory) BidderExists(ctx context.Context, bidderID int64) (bool, error) {
	query := `SELECT 1 FROM users WHERE id = ? AND active = 1 LIMIT 1`

	var one int
	err := d.db.QueryRowContext(ctx, query, bidderID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
