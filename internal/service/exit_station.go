package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yvesHakizimana/Parking-Management-System/internal/logger"
	"github.com/yvesHakizimana/Parking-Management-System/internal/models"
	"github.com/yvesHakizimana/Parking-Management-System/internal/peripheral"
	"github.com/yvesHakizimana/Parking-Management-System/internal/recognition"
	"github.com/yvesHakizimana/Parking-Management-System/internal/repository"
)

// ExitStation releases vehicles at the exit gate. Only paid visits open the
// gate; unknown plates raise a security alert and sound the alarm.
type ExitStation struct {
	ledger    *VehicleLedger
	events    repository.EventStore
	gates     GateController
	recognize recognition.Recognizer
	buffer    *recognition.ConsensusBuffer
	cfg       EngineConfig
	log       *logger.Logger

	lastGranted map[string]time.Time
	lastAlerted map[string]time.Time
	now         func() time.Time
}

func NewExitStation(ledger *VehicleLedger, events repository.EventStore, gates GateController,
	rec recognition.Recognizer, cfg EngineConfig, log *logger.Logger) *ExitStation {
	return &ExitStation{
		ledger:      ledger,
		events:      events,
		gates:       gates,
		recognize:   rec,
		buffer:      recognition.NewConsensusBuffer(),
		cfg:         cfg,
		log:         log,
		lastGranted: make(map[string]time.Time),
		lastAlerted: make(map[string]time.Time),
		now:         time.Now,
	}
}

// Run ticks at the given interval until ctx is canceled.
func (s *ExitStation) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Cycle(ctx)
		}
	}
}

// Cycle performs one sense-recognize-decide pass.
func (s *ExitStation) Cycle(ctx context.Context) {
	d, ok := s.gates.ReadDistance(peripheral.RoleEntryExit)
	if !ok {
		return
	}
	if d > s.cfg.DistanceThreshold {
		s.buffer.Reset()
		return
	}

	text, ok := s.recognize(ctx)
	if !ok {
		return
	}
	candidate, ok := recognition.ExtractPlate(text)
	if !ok {
		return
	}
	plate, resolved := s.buffer.Observe(candidate)
	if !resolved {
		return
	}
	s.release(ctx, plate)
}

func (s *ExitStation) release(ctx context.Context, plate string) {
	now := s.now()

	if granted, ok := s.lastGranted[plate]; ok && now.Sub(granted) < s.cfg.ExitCooldown {
		s.log.Debugf("exit: plate %s within cooldown, skipping", plate)
		return
	}

	e, found, err := s.ledger.ActiveEntry(ctx, plate)
	if err != nil {
		// fail closed
		s.log.Errorf("exit: ledger unavailable for %s: %v", plate, err)
		_ = s.events.AppendLog(ctx, models.LogEvent{
			Kind:    models.EventSystemError,
			Plate:   plate,
			Message: fmt.Sprintf("exit check failed: %v", err),
		})
		return
	}

	if !found {
		s.handleNoActiveEntry(ctx, plate, now)
		return
	}

	if e.PaymentStatus != models.PaymentPaid {
		if !s.shouldAlert(plate, now) {
			s.log.Debugf("exit: denial for %s suppressed by alert cooldown", plate)
			return
		}
		s.log.Infof("exit denied for %s: payment required (entry %d)", plate, e.ID)
		_ = s.events.AppendLog(ctx, models.LogEvent{
			Kind:    models.EventExitDenied,
			Plate:   plate,
			EntryID: e.ID,
			Message: "payment required",
		})
		s.alarm()
		return
	}

	if err := s.ledger.MarkExited(ctx, e.ID, now); err != nil {
		if errors.Is(err, ErrAlreadyExited) {
			// lost a race with another resolution of the same plate
			s.log.Debugf("exit: entry %d already closed", e.ID)
			return
		}
		s.log.Errorf("exit: close entry %d: %v", e.ID, err)
		_ = s.events.AppendLog(ctx, models.LogEvent{
			Kind:    models.EventSystemError,
			Plate:   plate,
			EntryID: e.ID,
			Message: fmt.Sprintf("exit update failed: %v", err),
		})
		return
	}

	s.lastGranted[plate] = now
	s.log.Infof("exit granted for %s (entry %d)", plate, e.ID)
	_ = s.events.AppendLog(ctx, models.LogEvent{
		Kind:    models.EventExitGranted,
		Plate:   plate,
		EntryID: e.ID,
		Message: "exit granted",
	})

	go func() {
		_ = s.gates.ConfirmTone(peripheral.RoleEntryExit)
		if err := s.gates.OpenGate(peripheral.RoleEntryExit, s.cfg.GateHold); err != nil {
			s.log.Errorf("exit: gate cycle failed: %v", err)
		}
	}()
}

// handleNoActiveEntry distinguishes a vehicle that already completed its visit
// from one the facility never admitted. The latter is a security incident.
func (s *ExitStation) handleNoActiveEntry(ctx context.Context, plate string, now time.Time) {
	known, err := s.ledger.HasRecord(ctx, plate)
	if err != nil {
		s.log.Errorf("exit: history lookup for %s: %v", plate, err)
		known = false
	}

	if !s.shouldAlert(plate, now) {
		s.log.Debugf("exit: denial for %s suppressed by alert cooldown", plate)
		return
	}

	if known {
		s.log.Infof("exit denied for %s: already exited", plate)
		_ = s.events.AppendLog(ctx, models.LogEvent{
			Kind:    models.EventExitDenied,
			Plate:   plate,
			Message: "vehicle already exited",
		})
		s.alarm()
		return
	}

	s.log.Warnf("unauthorized exit attempt by %s", plate)
	_ = s.events.AppendLog(ctx, models.LogEvent{
		Kind:    models.EventUnauthorizedExit,
		Plate:   plate,
		Message: "no entry record for vehicle",
	})
	_ = s.events.AppendAlert(ctx, models.SecurityAlert{
		Plate:    plate,
		Message:  "exit attempt with no entry record",
		Severity: models.SeverityHigh,
	})
	s.alarm()
}

// shouldAlert rate-limits denial handling per plate so a vehicle sitting on
// the sensor does not retrigger the alarm on every resolution.
func (s *ExitStation) shouldAlert(plate string, now time.Time) bool {
	if last, ok := s.lastAlerted[plate]; ok && now.Sub(last) < s.cfg.AlertCooldown {
		return false
	}
	s.lastAlerted[plate] = now
	return true
}

func (s *ExitStation) alarm() {
	if err := s.gates.TriggerAlarm(peripheral.RoleEntryExit); err != nil {
		s.log.Errorf("exit: alarm failed: %v", err)
	}
}
