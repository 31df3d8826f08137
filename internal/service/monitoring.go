package service

import (
	"context"
	"sort"

	"github.com/yvesHakizimana/Parking-Management-System/internal/models"
	"github.com/yvesHakizimana/Parking-Management-System/internal/peripheral"
	"github.com/yvesHakizimana/Parking-Management-System/internal/repository"
)

type MonitoringService struct {
	stats   repository.StatsStore
	entries repository.EntryStore
	gates   GateController
}

func NewMonitoringService(stats repository.StatsStore, entries repository.EntryStore, gates GateController) *MonitoringService {
	return &MonitoringService{stats: stats, entries: entries, gates: gates}
}

// Statistics returns the aggregate facility counters.
func (s *MonitoringService) Statistics(ctx context.Context) (models.Statistics, error) {
	return s.stats.Statistics(ctx)
}

// UnpaidEntries lists open visits awaiting payment, oldest first.
func (s *MonitoringService) UnpaidEntries(ctx context.Context) ([]models.Entry, error) {
	return s.stats.UnpaidEntries(ctx)
}

// VehicleEntries returns every recorded visit for a plate, oldest first.
func (s *MonitoringService) VehicleEntries(ctx context.Context, plate string) ([]models.Entry, error) {
	ids, err := s.entries.IDsByPlate(ctx, plate)
	if err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]models.Entry, 0, len(ids))
	for _, id := range ids {
		e, ok, err := s.entries.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Peripherals reports assignment and connection state per device role.
func (s *MonitoringService) Peripherals() map[string]peripheral.RoleStatus {
	return s.gates.Status()
}
