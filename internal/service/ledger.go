package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/yvesHakizimana/Parking-Management-System/internal/logger"
	"github.com/yvesHakizimana/Parking-Management-System/internal/models"
	"github.com/yvesHakizimana/Parking-Management-System/internal/repository"
)

// Domain errors for ledger transitions.
var (
	ErrEntryNotFound  = errors.New("entry not found")
	ErrAlreadyPaid    = errors.New("entry already paid")
	ErrAlreadyExited  = errors.New("vehicle already exited")
	ErrPaymentPending = errors.New("payment required before exit")
)

// VehicleLedger owns the visit lifecycle: one active entry per plate,
// UNPAID->PAID and INSIDE->EXITED each transition exactly once.
type VehicleLedger struct {
	entries repository.EntryStore
	events  repository.EventStore
	log     *logger.Logger
}

func NewVehicleLedger(entries repository.EntryStore, events repository.EventStore, log *logger.Logger) *VehicleLedger {
	return &VehicleLedger{entries: entries, events: events, log: log}
}

// CreateEntry opens a new visit for the plate.
func (l *VehicleLedger) CreateEntry(ctx context.Context, plate string, at time.Time) (models.Entry, error) {
	id, err := l.entries.NextID(ctx)
	if err != nil {
		return models.Entry{}, fmt.Errorf("allocate entry id: %w", err)
	}
	e := models.Entry{
		ID:            id,
		PlateNumber:   plate,
		EntryTime:     at.UTC(),
		PaymentStatus: models.PaymentUnpaid,
		ExitStatus:    models.ExitInside,
	}
	if err := l.entries.Put(ctx, e); err != nil {
		return models.Entry{}, fmt.Errorf("store entry %d: %w", id, err)
	}
	return e, nil
}

// ActiveEntry returns the plate's open visit, if any. If the ledger holds
// more than one active entry for the plate the oldest wins and a health
// warning is emitted; the duplicates stay untouched for operator review.
func (l *VehicleLedger) ActiveEntry(ctx context.Context, plate string) (models.Entry, bool, error) {
	ids, err := l.entries.IDsByPlate(ctx, plate)
	if err != nil {
		return models.Entry{}, false, fmt.Errorf("lookup plate %s: %w", plate, err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var active []models.Entry
	for _, id := range ids {
		e, ok, err := l.entries.Get(ctx, id)
		if err != nil {
			return models.Entry{}, false, fmt.Errorf("load entry %d: %w", id, err)
		}
		if ok && e.Active() {
			active = append(active, e)
		}
	}
	if len(active) == 0 {
		return models.Entry{}, false, nil
	}
	if len(active) > 1 {
		l.log.Warnf("plate %s has %d active entries, using oldest %d", plate, len(active), active[0].ID)
		_ = l.events.AppendLog(ctx, models.LogEvent{
			Kind:    models.EventHealthWarning,
			Plate:   plate,
			EntryID: active[0].ID,
			Message: fmt.Sprintf("%d active entries found for plate, resolving to oldest", len(active)),
		})
	}
	return active[0], true, nil
}

// IsActive reports whether the plate currently has an open visit.
func (l *VehicleLedger) IsActive(ctx context.Context, plate string) (bool, error) {
	_, ok, err := l.ActiveEntry(ctx, plate)
	return ok, err
}

// HasRecord reports whether the plate has ever entered the facility.
func (l *VehicleLedger) HasRecord(ctx context.Context, plate string) (bool, error) {
	ids, err := l.entries.IDsByPlate(ctx, plate)
	if err != nil {
		return false, fmt.Errorf("lookup plate %s: %w", plate, err)
	}
	return len(ids) > 0, nil
}

// MarkPaid records the charge against an unpaid entry. The charge amount and
// payment timestamp are committed together.
func (l *VehicleLedger) MarkPaid(ctx context.Context, id int64, charge int64, at time.Time) error {
	e, ok, err := l.entries.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load entry %d: %w", id, err)
	}
	if !ok {
		return ErrEntryNotFound
	}
	if e.PaymentStatus == models.PaymentPaid {
		return ErrAlreadyPaid
	}
	if err := l.entries.UpdatePayment(ctx, id, charge, at.UTC()); err != nil {
		return fmt.Errorf("mark entry %d paid: %w", id, err)
	}
	return nil
}

// MarkExited closes a paid entry. Unpaid entries are rejected so the exit
// gate can never release an unpaid vehicle through a race.
func (l *VehicleLedger) MarkExited(ctx context.Context, id int64, at time.Time) error {
	e, ok, err := l.entries.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load entry %d: %w", id, err)
	}
	if !ok {
		return ErrEntryNotFound
	}
	if e.PaymentStatus != models.PaymentPaid {
		return ErrPaymentPending
	}
	if e.ExitStatus == models.ExitExited {
		return ErrAlreadyExited
	}
	if err := l.entries.UpdateExit(ctx, id, at.UTC()); err != nil {
		return fmt.Errorf("mark entry %d exited: %w", id, err)
	}
	return nil
}
