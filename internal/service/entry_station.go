package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yvesHakizimana/Parking-Management-System/internal/logger"
	"github.com/yvesHakizimana/Parking-Management-System/internal/models"
	"github.com/yvesHakizimana/Parking-Management-System/internal/peripheral"
	"github.com/yvesHakizimana/Parking-Management-System/internal/recognition"
	"github.com/yvesHakizimana/Parking-Management-System/internal/repository"
)

// EntryStation admits vehicles at the entry gate: it waits for a vehicle in
// range, resolves the plate through the consensus buffer and opens the gate
// for plates without an open visit.
type EntryStation struct {
	ledger    *VehicleLedger
	events    repository.EventStore
	gates     GateController
	recognize recognition.Recognizer
	buffer    *recognition.ConsensusBuffer
	cfg       EngineConfig
	log       *logger.Logger

	lastGranted map[string]time.Time
	now         func() time.Time
}

func NewEntryStation(ledger *VehicleLedger, events repository.EventStore, gates GateController,
	rec recognition.Recognizer, cfg EngineConfig, log *logger.Logger) *EntryStation {
	return &EntryStation{
		ledger:      ledger,
		events:      events,
		gates:       gates,
		recognize:   rec,
		buffer:      recognition.NewConsensusBuffer(),
		cfg:         cfg,
		log:         log,
		lastGranted: make(map[string]time.Time),
		now:         time.Now,
	}
}

// Run ticks at the given interval until ctx is canceled.
func (s *EntryStation) Run(ctx context.Context, tick time.Duration) {
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
func (s *EntryStation) Cycle(ctx context.Context) {
	d, ok := s.gates.ReadDistance(peripheral.RoleEntryExit)
	if !ok {
		return
	}
	if d > s.cfg.DistanceThreshold {
		// vehicle left the detection zone, discard the partial episode
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
	s.admit(ctx, plate)
}

func (s *EntryStation) admit(ctx context.Context, plate string) {
	now := s.now()

	if granted, ok := s.lastGranted[plate]; ok && now.Sub(granted) < s.cfg.EntryCooldown {
		// same vehicle still in front of the gate, nothing to do
		s.log.Debugf("entry: plate %s within cooldown, skipping", plate)
		return
	}

	active, err := s.ledger.IsActive(ctx, plate)
	if err != nil {
		// fail closed: without a trustworthy ledger answer the gate stays down
		s.log.Errorf("entry: ledger unavailable for %s: %v", plate, err)
		_ = s.events.AppendLog(ctx, models.LogEvent{
			Kind:    models.EventSystemError,
			Plate:   plate,
			Message: fmt.Sprintf("entry check failed: %v", err),
		})
		return
	}
	if active {
		s.log.Infof("entry denied for %s: already inside", plate)
		_ = s.events.AppendLog(ctx, models.LogEvent{
			Kind:    models.EventEntryDenied,
			Plate:   plate,
			Message: "vehicle already inside",
		})
		return
	}

	e, err := s.ledger.CreateEntry(ctx, plate, now)
	if err != nil {
		s.log.Errorf("entry: create entry for %s: %v", plate, err)
		_ = s.events.AppendLog(ctx, models.LogEvent{
			Kind:    models.EventSystemError,
			Plate:   plate,
			Message: fmt.Sprintf("create entry failed: %v", err),
		})
		return
	}

	s.lastGranted[plate] = now
	s.log.Infof("entry granted for %s (entry %d)", plate, e.ID)
	_ = s.events.AppendLog(ctx, models.LogEvent{
		Kind:    models.EventEntryGranted,
		Plate:   plate,
		EntryID: e.ID,
		Message: "access granted",
	})

	go func() {
		if err := s.gates.OpenGate(peripheral.RoleEntryExit, s.cfg.GateHold); err != nil {
			s.log.Errorf("entry: gate cycle failed: %v", err)
		}
	}()
}
