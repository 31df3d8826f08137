package service

import (
	"context"
	"time"

	"github.com/yvesHakizimana/Parking-Management-System/internal/logger"
	"github.com/yvesHakizimana/Parking-Management-System/internal/models"
	"github.com/yvesHakizimana/Parking-Management-System/internal/peripheral"
	"github.com/yvesHakizimana/Parking-Management-System/internal/recognition"
	"github.com/yvesHakizimana/Parking-Management-System/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// EntryControl runs the entry gate decision loop.
type EntryControl interface {
	Run(ctx context.Context, tick time.Duration)
}

// ExitControl runs the exit gate decision loop.
type ExitControl interface {
	Run(ctx context.Context, tick time.Duration)
}

// PaymentProcessor answers payment terminal requests over the serial link.
type PaymentProcessor interface {
	HandleRequest(ctx context.Context, line string) string
	Run(ctx context.Context, tick time.Duration)
}

// Monitoring exposes read-only state for dashboards: aggregate counters and
// peripheral link health.
type Monitoring interface {
	Statistics(ctx context.Context) (models.Statistics, error)
	UnpaidEntries(ctx context.Context) ([]models.Entry, error)
	VehicleEntries(ctx context.Context, plate string) ([]models.Entry, error)
	Peripherals() map[string]peripheral.RoleStatus
}

// EventLog exposes the append-only log and alert streams.
type EventLog interface {
	RecentLogs(ctx context.Context, limit int) ([]models.LogEvent, error)
	RecentAlerts(ctx context.Context, limit int) ([]models.SecurityAlert, error)
}

// GateController is the slice of the peripheral manager the stations use.
// *peripheral.Manager satisfies it; tests substitute a scripted fake.
type GateController interface {
	ReadDistance(role string) (float64, bool)
	ReadLine(role string) (string, bool)
	WriteLine(role, text string) error
	OpenGate(role string, hold time.Duration) error
	TriggerAlarm(role string) error
	ConfirmTone(role string) error
	Status() map[string]peripheral.RoleStatus
}

// EngineConfig holds the access-control tuning knobs. Amounts are in the
// smallest currency unit.
type EngineConfig struct {
	DistanceThreshold float64
	GateHold          time.Duration
	EntryCooldown     time.Duration
	ExitCooldown      time.Duration
	AlertCooldown     time.Duration
	ChargeRate        int64
	MinimumCharge     int64
	MaxBalance        int64
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DistanceThreshold: 50,
		GateHold:          15 * time.Second,
		EntryCooldown:     5 * time.Minute,
		ExitCooldown:      time.Minute,
		AlertCooldown:     30 * time.Second,
		ChargeRate:        500,
		MinimumCharge:     500,
		MaxBalance:        999_999_999,
	}
}

// AuthConfig carries the JWT signing material.
type AuthConfig struct {
	SigningKey string
	TokenTTL   time.Duration
}

type Service struct {
	Entry    EntryControl
	Exit     ExitControl
	Payments PaymentProcessor
	Monitoring
	EventLog
	Authorization
}

// NewService wires the repository layer, the peripheral manager and the
// plate recognizers into the three station loops plus the read-side services.
func NewService(repos *repository.Repository, gates GateController,
	entryRec, exitRec recognition.Recognizer,
	cfg EngineConfig, auth AuthConfig, log *logger.Logger) *Service {

	ledger := NewVehicleLedger(repos.Entries, repos.Events, log)
	return &Service{
		Entry:         NewEntryStation(ledger, repos.Events, gates, entryRec, cfg, log),
		Exit:          NewExitStation(ledger, repos.Events, gates, exitRec, cfg, log),
		Payments:      NewPaymentService(ledger, repos.Events, gates, cfg, log),
		Monitoring:    NewMonitoringService(repos.Stats, repos.Entries, gates),
		EventLog:      NewEventLogService(repos.Events),
		Authorization: NewAuthService(repos.Auth, auth),
	}
}
