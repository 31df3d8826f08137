package models

import "time"

// EventKind names an access/payment outcome as emitted to observers.
type EventKind string

const (
	EventEntryGranted     EventKind = "ENTRY GRANTED"
	EventEntryDenied      EventKind = "ENTRY DENIED"
	EventExitGranted      EventKind = "EXIT GRANTED"
	EventExitDenied       EventKind = "EXIT DENIED"
	EventUnauthorizedExit EventKind = "UNAUTHORIZED EXIT ATTEMPT"
	EventPaymentSuccess   EventKind = "PAYMENT SUCCESS"
	EventPaymentFailed    EventKind = "PAYMENT FAILED"
	EventSystemError      EventKind = "SYSTEM ERROR"
	EventHealthWarning    EventKind = "HEALTH WARNING"
)

// LogEvent is a single line in the system log stream. EntryID is zero when
// no entry record is involved (e.g. an unknown plate at the exit gate).
type LogEvent struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Kind       EventKind `json:"kind"`
	Plate      string    `json:"plate,omitempty"`
	EntryID    int64     `json:"entry_id,omitempty"`
	Message    string    `json:"message"`
}

// Alert severities.
const (
	SeverityLow    = "LOW"
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

// SecurityAlert records an anti-fraud incident, such as an exit attempt by a
// vehicle with no entry record.
type SecurityAlert struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Plate      string    `json:"plate,omitempty"`
	Message    string    `json:"message"`
	Severity   string    `json:"severity"`
}

// Statistics is the aggregate snapshot served to dashboards.
type Statistics struct {
	TotalEntries   int   `json:"total_entries"`
	ActiveVehicles int   `json:"active_vehicles"`
	TotalRevenue   int64 `json:"total_revenue"`
	UnpaidEntries  int   `json:"unpaid_entries"`
}
