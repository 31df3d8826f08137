package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yvesHakizimana/Parking-Management-System/internal/models"
)

// EntryMirror is the relational copy of the entry ledger. Redis stays the
// primary; the mirror serves reporting queries and fallback reads when a key
// has been evicted.
type EntryMirror struct {
	db *sql.DB
}

func NewEntryMirror(db *sql.DB) *EntryMirror {
	return &EntryMirror{db: db}
}

const (
	upsertEntrySQL = `
		INSERT INTO entries (id, plate_number, entry_timestamp, payment_status, exit_status,
			charge_amount, payment_timestamp, exit_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			plate_number=excluded.plate_number,
			entry_timestamp=excluded.entry_timestamp,
			payment_status=excluded.payment_status,
			exit_status=excluded.exit_status,
			charge_amount=excluded.charge_amount,
			payment_timestamp=excluded.payment_timestamp,
			exit_timestamp=excluded.exit_timestamp
	`

	selectEntrySQL = `
		SELECT id, plate_number, entry_timestamp, payment_status, exit_status,
			charge_amount, payment_timestamp, exit_timestamp
		FROM entries WHERE id = ?
	`

	selectIDsByPlateSQL = `SELECT id FROM entries WHERE plate_number = ? ORDER BY id`

	markPaidSQL = `
		UPDATE entries SET payment_status = 1, charge_amount = ?, payment_timestamp = ?
		WHERE id = ?
	`

	markExitedSQL = `UPDATE entries SET exit_status = 1, exit_timestamp = ? WHERE id = ?`
)

// statuses persist as integers, matching the historical schema: 0 = open.
func paymentToInt(s models.PaymentStatus) int {
	if s == models.PaymentPaid {
		return 1
	}
	return 0
}

func exitToInt(s models.ExitStatus) int {
	if s == models.ExitExited {
		return 1
	}
	return 0
}

func paymentFromInt(v int) models.PaymentStatus {
	if v == 1 {
		return models.PaymentPaid
	}
	return models.PaymentUnpaid
}

func exitFromInt(v int) models.ExitStatus {
	if v == 1 {
		return models.ExitExited
	}
	return models.ExitInside
}

// Upsert writes the full record.
func (m *EntryMirror) Upsert(ctx context.Context, e models.Entry) error {
	var charge sql.NullInt64
	if e.ChargeAmount != nil {
		charge = sql.NullInt64{Int64: *e.ChargeAmount, Valid: true}
	}
	var paidAt, exitedAt sql.NullTime
	if e.PaymentTime != nil {
		paidAt = sql.NullTime{Time: e.PaymentTime.UTC(), Valid: true}
	}
	if e.ExitTime != nil {
		exitedAt = sql.NullTime{Time: e.ExitTime.UTC(), Valid: true}
	}
	_, err := m.db.ExecContext(ctx, upsertEntrySQL,
		e.ID,
		e.PlateNumber,
		e.EntryTime.UTC(),
		paymentToInt(e.PaymentStatus),
		exitToInt(e.ExitStatus),
		charge,
		paidAt,
		exitedAt,
	)
	if err != nil {
		return fmt.Errorf("mirror entry %d: %w", e.ID, err)
	}
	return nil
}

// Get fetches one record; ok is false when the id is unknown.
func (m *EntryMirror) Get(ctx context.Context, id int64) (models.Entry, bool, error) {
	row := m.db.QueryRowContext(ctx, selectEntrySQL, id)

	var (
		e        models.Entry
		pay      int
		exit     int
		charge   sql.NullInt64
		paidAt   sql.NullTime
		exitedAt sql.NullTime
	)
	err := row.Scan(&e.ID, &e.PlateNumber, &e.EntryTime, &pay, &exit, &charge, &paidAt, &exitedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Entry{}, false, nil
		}
		return models.Entry{}, false, fmt.Errorf("select entry %d: %w", id, err)
	}
	e.EntryTime = e.EntryTime.UTC()
	e.PaymentStatus = paymentFromInt(pay)
	e.ExitStatus = exitFromInt(exit)
	if charge.Valid {
		e.ChargeAmount = &charge.Int64
	}
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		e.PaymentTime = &t
	}
	if exitedAt.Valid {
		t := exitedAt.Time.UTC()
		e.ExitTime = &t
	}
	return e, true, nil
}

// IDsByPlate lists every historical entry id for a plate, oldest first.
func (m *EntryMirror) IDsByPlate(ctx context.Context, plate string) ([]int64, error) {
	rows, err := m.db.QueryContext(ctx, selectIDsByPlateSQL, plate)
	if err != nil {
		return nil, fmt.Errorf("select ids for plate %s: %w", plate, err)
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

// MarkPaid applies the payment field group in one statement.
func (m *EntryMirror) MarkPaid(ctx context.Context, id int64, charge int64, at time.Time) error {
	_, err := m.db.ExecContext(ctx, markPaidSQL, charge, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("mirror payment for entry %d: %w", id, err)
	}
	return nil
}

// MarkExited applies the exit field group in one statement.
func (m *EntryMirror) MarkExited(ctx context.Context, id int64, at time.Time) error {
	_, err := m.db.ExecContext(ctx, markExitedSQL, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("mirror exit for entry %d: %w", id, err)
	}
	return nil
}
