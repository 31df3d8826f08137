package service

import (
	"context"

	"github.com/yvesHakizimana/Parking-Management-System/internal/models"
	"github.com/yvesHakizimana/Parking-Management-System/internal/repository"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

type EventLogService struct {
	events repository.EventStore
}

func NewEventLogService(events repository.EventStore) *EventLogService {
	return &EventLogService{events: events}
}

// clampLimit normalizes a caller-provided page size.
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLogLimit
	}
	if limit > maxLogLimit {
		return maxLogLimit
	}
	return limit
}

// RecentLogs returns the newest log events, newest first.
func (s *EventLogService) RecentLogs(ctx context.Context, limit int) ([]models.LogEvent, error) {
	return s.events.RecentLogs(ctx, clampLimit(limit))
}

// RecentAlerts returns the newest security alerts, newest first.
func (s *EventLogService) RecentAlerts(ctx context.Context, limit int) ([]models.SecurityAlert, error) {
	return s.events.RecentAlerts(ctx, clampLimit(limit))
}
