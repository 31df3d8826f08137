package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/yvesHakizimana/Parking-Management-System/internal/models"
)

// StatsSQLite answers aggregate queries from the relational mirror.
type StatsSQLite struct {
	db *sql.DB
}

var _ StatsStore = (*StatsSQLite)(nil)

func NewStatsSQLite(db *sql.DB) *StatsSQLite {
	return &StatsSQLite{db: db}
}

const (
	countEntriesSQL = `SELECT COUNT(*) FROM entries`
	countInsideSQL  = `SELECT COUNT(*) FROM entries WHERE exit_status = 0`
	sumRevenueSQL   = `SELECT COALESCE(SUM(charge_amount), 0) FROM entries WHERE payment_status = 1`
	countUnpaidSQL  = `SELECT COUNT(*) FROM entries WHERE payment_status = 0 AND exit_status = 0`

	selectUnpaidSQL = `
		SELECT id, plate_number, entry_timestamp
		FROM entries
		WHERE payment_status = 0 AND exit_status = 0
		ORDER BY entry_timestamp ASC
	`
)

// Statistics computes the dashboard snapshot.
func (s *StatsSQLite) Statistics(ctx context.Context) (models.Statistics, error) {
	var st models.Statistics
	if err := s.db.QueryRowContext(ctx, countEntriesSQL).Scan(&st.TotalEntries); err != nil {
		return models.Statistics{}, fmt.Errorf("count entries: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, countInsideSQL).Scan(&st.ActiveVehicles); err != nil {
		return models.Statistics{}, fmt.Errorf("count vehicles inside: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, sumRevenueSQL).Scan(&st.TotalRevenue); err != nil {
		return models.Statistics{}, fmt.Errorf("sum revenue: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, countUnpaidSQL).Scan(&st.UnpaidEntries); err != nil {
		return models.Statistics{}, fmt.Errorf("count unpaid: %w", err)
	}
	return st, nil
}

// UnpaidEntries lists open, unpaid visits, oldest first.
func (s *StatsSQLite) UnpaidEntries(ctx context.Context) ([]models.Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectUnpaidSQL)
	if err != nil {
		return nil, fmt.Errorf("select unpaid entries: %w", err)
	}
	defer rows.Close()

	var out []models.Entry
	for rows.Next() {
		e := models.Entry{PaymentStatus: models.PaymentUnpaid, ExitStatus: models.ExitInside}
		if err := rows.Scan(&e.ID, &e.PlateNumber, &e.EntryTime); err != nil {
			return nil, err
		}
		e.EntryTime = e.EntryTime.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
