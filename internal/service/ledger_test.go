package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yvesHakizimana/Parking-Management-System/internal/models"
)

func newTestLedger() (*VehicleLedger, *memEntryStore, *memEventStore) {
	entries := newMemEntryStore()
	events := &memEventStore{}
	return NewVehicleLedger(entries, events, testLogger()), entries, events
}

func TestLedger_CreateEntry(t *testing.T) {
	ledger, entries, _ := newTestLedger()
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	e, err := ledger.CreateEntry(context.Background(), "RAB123C", at)
	if err != nil {
		t.Fatalf("CreateEntry returned error: %v", err)
	}
	if e.ID != 1 {
		t.Fatalf("expected first id 1, got %d", e.ID)
	}
	if e.PaymentStatus != models.PaymentUnpaid || e.ExitStatus != models.ExitInside {
		t.Fatalf("new entry has wrong initial statuses: %+v", e)
	}

	stored, ok, err := entries.Get(context.Background(), e.ID)
	if err != nil || !ok {
		t.Fatalf("stored entry not found: ok=%v err=%v", ok, err)
	}
	if !stored.EntryTime.Equal(at) {
		t.Fatalf("expected entry time %v, got %v", at, stored.EntryTime)
	}
}

func TestLedger_ActiveEntry_None(t *testing.T) {
	ledger, _, _ := newTestLedger()

	_, found, err := ledger.ActiveEntry(context.Background(), "RAB123C")
	if err != nil {
		t.Fatalf("ActiveEntry returned error: %v", err)
	}
	if found {
		t.Fatalf("expected no active entry for unknown plate")
	}
}

func TestLedger_ActiveEntry_IgnoresClosedVisits(t *testing.T) {
	ledger, entries, _ := newTestLedger()
	paidAt := time.Now().UTC()
	charge := int64(500)
	entries.seed(models.Entry{
		ID: 1, PlateNumber: "RAB123C",
		EntryTime:     paidAt.Add(-2 * time.Hour),
		PaymentStatus: models.PaymentPaid,
		ExitStatus:    models.ExitExited,
		ChargeAmount:  &charge, PaymentTime: &paidAt, ExitTime: &paidAt,
	})
	entries.seed(models.Entry{
		ID: 2, PlateNumber: "RAB123C",
		EntryTime:     paidAt.Add(-time.Hour),
		PaymentStatus: models.PaymentUnpaid,
		ExitStatus:    models.ExitInside,
	})

	e, found, err := ledger.ActiveEntry(context.Background(), "RAB123C")
	if err != nil || !found {
		t.Fatalf("expected active entry: found=%v err=%v", found, err)
	}
	if e.ID != 2 {
		t.Fatalf("expected entry 2, got %d", e.ID)
	}
}

func TestLedger_ActiveEntry_DuplicatesResolveToOldest(t *testing.T) {
	ledger, entries, events := newTestLedger()
	now := time.Now().UTC()
	entries.seed(models.Entry{ID: 5, PlateNumber: "RAB123C", EntryTime: now.Add(-time.Hour),
		PaymentStatus: models.PaymentUnpaid, ExitStatus: models.ExitInside})
	entries.seed(models.Entry{ID: 9, PlateNumber: "RAB123C", EntryTime: now,
		PaymentStatus: models.PaymentUnpaid, ExitStatus: models.ExitInside})

	e, found, err := ledger.ActiveEntry(context.Background(), "RAB123C")
	if err != nil || !found {
		t.Fatalf("expected active entry: found=%v err=%v", found, err)
	}
	if e.ID != 5 {
		t.Fatalf("expected oldest entry 5, got %d", e.ID)
	}

	if len(events.logs) != 1 || events.logs[0].Kind != models.EventHealthWarning {
		t.Fatalf("expected one health warning, got %v", events.kinds())
	}
}

func TestLedger_MarkPaid(t *testing.T) {
	ledger, entries, _ := newTestLedger()
	now := time.Now().UTC()
	entries.seed(models.Entry{ID: 1, PlateNumber: "RAB123C", EntryTime: now.Add(-time.Hour),
		PaymentStatus: models.PaymentUnpaid, ExitStatus: models.ExitInside})

	if err := ledger.MarkPaid(context.Background(), 1, 1000, now); err != nil {
		t.Fatalf("MarkPaid returned error: %v", err)
	}
	e, _, _ := entries.Get(context.Background(), 1)
	if e.PaymentStatus != models.PaymentPaid {
		t.Fatalf("entry not marked paid: %+v", e)
	}
	if e.ChargeAmount == nil || *e.ChargeAmount != 1000 {
		t.Fatalf("charge amount not recorded: %+v", e.ChargeAmount)
	}
	if e.PaymentTime == nil {
		t.Fatalf("payment time not recorded")
	}

	// second payment on the same visit must be rejected
	if err := ledger.MarkPaid(context.Background(), 1, 1000, now); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
}

func TestLedger_MarkPaid_Missing(t *testing.T) {
	ledger, _, _ := newTestLedger()
	if err := ledger.MarkPaid(context.Background(), 77, 500, time.Now()); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestLedger_MarkExited(t *testing.T) {
	ledger, entries, _ := newTestLedger()
	now := time.Now().UTC()
	charge := int64(500)
	entries.seed(models.Entry{ID: 1, PlateNumber: "RAB123C", EntryTime: now.Add(-time.Hour),
		PaymentStatus: models.PaymentPaid, ExitStatus: models.ExitInside,
		ChargeAmount: &charge, PaymentTime: &now})

	if err := ledger.MarkExited(context.Background(), 1, now); err != nil {
		t.Fatalf("MarkExited returned error: %v", err)
	}
	e, _, _ := entries.Get(context.Background(), 1)
	if e.ExitStatus != models.ExitExited || e.ExitTime == nil {
		t.Fatalf("entry not closed: %+v", e)
	}

	if err := ledger.MarkExited(context.Background(), 1, now); !errors.Is(err, ErrAlreadyExited) {
		t.Fatalf("expected ErrAlreadyExited, got %v", err)
	}
}

func TestLedger_MarkExited_UnpaidRejected(t *testing.T) {
	ledger, entries, _ := newTestLedger()
	now := time.Now().UTC()
	entries.seed(models.Entry{ID: 1, PlateNumber: "RAB123C", EntryTime: now.Add(-time.Hour),
		PaymentStatus: models.PaymentUnpaid, ExitStatus: models.ExitInside})

	if err := ledger.MarkExited(context.Background(), 1, now); !errors.Is(err, ErrPaymentPending) {
		t.Fatalf("expected ErrPaymentPending, got %v", err)
	}
	e, _, _ := entries.Get(context.Background(), 1)
	if e.ExitStatus != models.ExitInside {
		t.Fatalf("unpaid entry must stay open: %+v", e)
	}
}

func TestLedger_StoreFailurePropagates(t *testing.T) {
	ledger, entries, _ := newTestLedger()
	entries.down = true

	if _, err := ledger.CreateEntry(context.Background(), "RAB123C", time.Now()); err == nil {
		t.Fatalf("expected error from failing store")
	}
	if _, err := ledger.IsActive(context.Background(), "RAB123C"); err == nil {
		t.Fatalf("expected error from failing store")
	}
}
