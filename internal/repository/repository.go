package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yvesHakizimana/Parking-Management-System/internal/logger"
	"github.com/yvesHakizimana/Parking-Management-System/internal/models"
)

// EntryStore is the vehicle-visit ledger storage. Implementations must make
// UpdatePayment and UpdateExit atomic field-group writes: no reader may ever
// observe a payment timestamp without its charge, or vice versa.
type EntryStore interface {
	NextID(ctx context.Context) (int64, error)
	Get(ctx context.Context, id int64) (models.Entry, bool, error)
	Put(ctx context.Context, e models.Entry) error
	IDsByPlate(ctx context.Context, plate string) ([]int64, error)
	UpdatePayment(ctx context.Context, id int64, charge int64, at time.Time) error
	UpdateExit(ctx context.Context, id int64, at time.Time) error
}

// EventStore persists the log/alert streams consumed by observers.
type EventStore interface {
	AppendLog(ctx context.Context, ev models.LogEvent) error
	AppendAlert(ctx context.Context, a models.SecurityAlert) error
	RecentLogs(ctx context.Context, limit int) ([]models.LogEvent, error)
	RecentAlerts(ctx context.Context, limit int) ([]models.SecurityAlert, error)
}

// StatsStore answers dashboard aggregate queries from the relational mirror.
type StatsStore interface {
	Statistics(ctx context.Context) (models.Statistics, error)
	UnpaidEntries(ctx context.Context) ([]models.Entry, error)
}

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

type Repository struct {
	Entries EntryStore
	Events  EventStore
	Stats   StatsStore
	Auth    Authorization
}

// NewRepository wires the two-tier store: Redis is the hot primary, SQLite
// the durable mirror used for reporting and fallback reads.
func NewRepository(db *sql.DB, rdb *redis.Client, log *logger.Logger) *Repository {
	mirror := NewEntryMirror(db)
	return &Repository{
		Entries: NewEntryRedis(rdb, mirror, log),
		Events:  NewEventStoreDual(rdb, db, log),
		Stats:   NewStatsSQLite(db),
		Auth:    NewUserRepository(db),
	}
}
