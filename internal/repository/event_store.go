package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yvesHakizimana/Parking-Management-System/internal/logger"
	"github.com/yvesHakizimana/Parking-Management-System/internal/models"
)

// Redis list keys the legacy dashboard tails.
const (
	logsListKey   = "logs"
	alertsListKey = "security_alerts"
)

type listClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// EventStoreDual appends log and alert events to the Redis stream lists and
// to SQLite. SQLite is authoritative for history queries; the Redis lists
// exist for live observers. A failure on either side is logged but the write
// succeeds if at least the relational side landed.
type EventStoreDual struct {
	kv  listClient
	db  *sql.DB
	log *logger.Logger
}

var _ EventStore = (*EventStoreDual)(nil)

func NewEventStoreDual(kv listClient, db *sql.DB, log *logger.Logger) *EventStoreDual {
	return &EventStoreDual{kv: kv, db: db, log: log}
}

const (
	insertLogSQL = `
		INSERT INTO system_logs (id, occurred_at, kind, plate, entry_id, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	selectLogsSQL = `
		SELECT id, occurred_at, kind, plate, entry_id, message
		FROM system_logs ORDER BY occurred_at DESC LIMIT ?
	`
	insertAlertSQL = `
		INSERT INTO security_alerts (id, occurred_at, plate, message, severity)
		VALUES (?, ?, ?, ?, ?)
	`
	selectAlertsSQL = `
		SELECT id, occurred_at, plate, message, severity
		FROM security_alerts ORDER BY occurred_at DESC LIMIT ?
	`
)

// AppendLog persists one log event. Missing id/timestamp are filled in.
func (s *EventStoreDual) AppendLog(ctx context.Context, ev models.LogEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	} else {
		ev.OccurredAt = ev.OccurredAt.UTC()
	}

	if err := s.kv.RPush(ctx, logsListKey, formatLogLine(ev)).Err(); err != nil {
		s.log.Warnw("log stream push failed", "err", err)
	}

	_, err := s.db.ExecContext(ctx, insertLogSQL,
		ev.ID, ev.OccurredAt, string(ev.Kind), ev.Plate, ev.EntryID, ev.Message)
	if err != nil {
		return fmt.Errorf("insert log event: %w", err)
	}
	return nil
}

// AppendAlert persists one security alert; severity defaults to MEDIUM.
func (s *EventStoreDual) AppendAlert(ctx context.Context, a models.SecurityAlert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Now().UTC()
	} else {
		a.OccurredAt = a.OccurredAt.UTC()
	}
	if a.Severity == "" {
		a.Severity = models.SeverityMedium
	}

	if payload, err := json.Marshal(a); err == nil {
		if err := s.kv.RPush(ctx, alertsListKey, payload).Err(); err != nil {
			s.log.Warnw("alert stream push failed", "err", err)
		}
	}

	_, err := s.db.ExecContext(ctx, insertAlertSQL,
		a.ID, a.OccurredAt, a.Plate, a.Message, a.Severity)
	if err != nil {
		return fmt.Errorf("insert security alert: %w", err)
	}
	return nil
}

// RecentLogs returns up to limit events, newest first.
func (s *EventStoreDual) RecentLogs(ctx context.Context, limit int) ([]models.LogEvent, error) {
	rows, err := s.db.QueryContext(ctx, selectLogsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent logs: %w", err)
	}
	defer rows.Close()

	out := make([]models.LogEvent, 0, limit)
	for rows.Next() {
		var ev models.LogEvent
		var kind string
		if err := rows.Scan(&ev.ID, &ev.OccurredAt, &kind, &ev.Plate, &ev.EntryID, &ev.Message); err != nil {
			return nil, err
		}
		ev.Kind = models.EventKind(kind)
		ev.OccurredAt = ev.OccurredAt.UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

// RecentAlerts returns up to limit alerts, newest first.
func (s *EventStoreDual) RecentAlerts(ctx context.Context, limit int) ([]models.SecurityAlert, error) {
	rows, err := s.db.QueryContext(ctx, selectAlertsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent alerts: %w", err)
	}
	defer rows.Close()

	out := make([]models.SecurityAlert, 0, limit)
	for rows.Next() {
		var a models.SecurityAlert
		if err := rows.Scan(&a.ID, &a.OccurredAt, &a.Plate, &a.Message, &a.Severity); err != nil {
			return nil, err
		}
		a.OccurredAt = a.OccurredAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// formatLogLine renders the legacy "timestamp - KIND - plate - message" line
// the Redis list consumers expect.
func formatLogLine(ev models.LogEvent) string {
	parts := []string{ev.OccurredAt.Format(timeLayout), string(ev.Kind)}
	if ev.Plate != "" {
		parts = append(parts, ev.Plate)
	}
	if ev.Message != "" {
		parts = append(parts, ev.Message)
	}
	return strings.Join(parts, " - ")
}
