package mysql

import (
	"context"
	"database/sql"
	"time"

	"artbid-sync/internal/domain"
)

// MySQLBidHistory persists every bid event the watcher observes, keyed by
// artwork. The table is append-only; history reads are ordered by the
// server-assigned sequence.
type MySQLBidHistory struct {
	db *sql.DB
}

func NewMySQLBidHistory(db *sql.DB) *MySQLBidHistory {
	return &MySQLBidHistory{db: db}
}

func (r *MySQLBidHistory) SaveBidEvent(ctx context.Context, rec *domain.BidEventRecord) error {
	query := `
        INSERT INTO bid_events (artwork_id, bidder, amount, sequence, event_type, observed_at, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		rec.ArtworkID, rec.Bidder, rec.Amount, rec.Sequence,
		string(rec.Kind), rec.ObservedAt, time.Now())
	return err
}

func (r *MySQLBidHistory) GetBidHistory(ctx context.Context, artworkID int64) ([]*domain.BidEventRecord, error) {
	query := `
        SELECT id, artwork_id, bidder, amount, sequence, event_type, observed_at
        FROM bid_events
        WHERE artwork_id = ?
        ORDER BY sequence ASC
    `

	rows, err := r.db.QueryContext(ctx, query, artworkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.BidEventRecord
	for rows.Next() {
		var rec domain.BidEventRecord
		var kind string

		err := rows.Scan(&rec.ID, &rec.ArtworkID, &rec.Bidder, &rec.Amount,
			&rec.Sequence, &kind, &rec.ObservedAt)
		if err != nil {
			return nil, err
		}

		rec.Kind = domain.EventKind(kind)
		records = append(records, &rec)
	}

	return records, rows.Err()
}
