package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yvesHakizimana/Parking-Management-System/internal/logger"
	"github.com/yvesHakizimana/Parking-Management-System/internal/models"
	"github.com/yvesHakizimana/Parking-Management-System/internal/peripheral"
)

var errStoreDown = errors.New("store unavailable")

// memEntryStore is an in-memory repository.EntryStore.
type memEntryStore struct {
	nextID  int64
	entries map[int64]models.Entry
	byPlate map[string][]int64
	down    bool
}

func newMemEntryStore() *memEntryStore {
	return &memEntryStore{
		entries: make(map[int64]models.Entry),
		byPlate: make(map[string][]int64),
	}
}

func (s *memEntryStore) NextID(context.Context) (int64, error) {
	if s.down {
		return 0, errStoreDown
	}
	s.nextID++
	return s.nextID, nil
}

func (s *memEntryStore) Get(_ context.Context, id int64) (models.Entry, bool, error) {
	if s.down {
		return models.Entry{}, false, errStoreDown
	}
	e, ok := s.entries[id]
	return e, ok, nil
}

func (s *memEntryStore) Put(_ context.Context, e models.Entry) error {
	if s.down {
		return errStoreDown
	}
	if _, seen := s.entries[e.ID]; !seen {
		s.byPlate[e.PlateNumber] = append(s.byPlate[e.PlateNumber], e.ID)
	}
	s.entries[e.ID] = e
	return nil
}

func (s *memEntryStore) IDsByPlate(_ context.Context, plate string) ([]int64, error) {
	if s.down {
		return nil, errStoreDown
	}
	return append([]int64(nil), s.byPlate[plate]...), nil
}

func (s *memEntryStore) UpdatePayment(_ context.Context, id int64, charge int64, at time.Time) error {
	if s.down {
		return errStoreDown
	}
	e, ok := s.entries[id]
	if !ok {
		return errors.New("no such entry")
	}
	e.PaymentStatus = models.PaymentPaid
	e.ChargeAmount = &charge
	e.PaymentTime = &at
	s.entries[id] = e
	return nil
}

func (s *memEntryStore) UpdateExit(_ context.Context, id int64, at time.Time) error {
	if s.down {
		return errStoreDown
	}
	e, ok := s.entries[id]
	if !ok {
		return errors.New("no such entry")
	}
	e.ExitStatus = models.ExitExited
	e.ExitTime = &at
	s.entries[id] = e
	return nil
}

// seed inserts an entry directly, bypassing the ledger.
func (s *memEntryStore) seed(e models.Entry) {
	if e.ID > s.nextID {
		s.nextID = e.ID
	}
	s.byPlate[e.PlateNumber] = append(s.byPlate[e.PlateNumber], e.ID)
	s.entries[e.ID] = e
}

// memEventStore collects appended logs and alerts.
type memEventStore struct {
	logs   []models.LogEvent
	alerts []models.SecurityAlert
}

func (s *memEventStore) AppendLog(_ context.Context, ev models.LogEvent) error {
	s.logs = append(s.logs, ev)
	return nil
}

func (s *memEventStore) AppendAlert(_ context.Context, a models.SecurityAlert) error {
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *memEventStore) RecentLogs(_ context.Context, limit int) ([]models.LogEvent, error) {
	if limit > len(s.logs) {
		limit = len(s.logs)
	}
	out := make([]models.LogEvent, 0, limit)
	for i := len(s.logs) - 1; i >= len(s.logs)-limit; i-- {
		out = append(out, s.logs[i])
	}
	return out, nil
}

func (s *memEventStore) RecentAlerts(_ context.Context, limit int) ([]models.SecurityAlert, error) {
	if limit > len(s.alerts) {
		limit = len(s.alerts)
	}
	out := make([]models.SecurityAlert, 0, limit)
	for i := len(s.alerts) - 1; i >= len(s.alerts)-limit; i-- {
		out = append(out, s.alerts[i])
	}
	return out, nil
}

func (s *memEventStore) kinds() []models.EventKind {
	out := make([]models.EventKind, 0, len(s.logs))
	for _, ev := range s.logs {
		out = append(out, ev.Kind)
	}
	return out
}

// fakeGates is a scripted GateController. Gate openings are signalled on a
// channel because the stations cycle the gate from a goroutine.
type fakeGates struct {
	mu        sync.Mutex
	distances []float64
	lines     []string
	written   []string
	alarms    int
	tones     int
	opened    chan time.Duration
}

func newFakeGates() *fakeGates {
	return &fakeGates{opened: make(chan time.Duration, 8)}
}

func (g *fakeGates) ReadDistance(string) (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.distances) == 0 {
		return 0, false
	}
	d := g.distances[0]
	g.distances = g.distances[1:]
	return d, true
}

func (g *fakeGates) ReadLine(string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.lines) == 0 {
		return "", false
	}
	l := g.lines[0]
	g.lines = g.lines[1:]
	return l, true
}

func (g *fakeGates) WriteLine(_, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.written = append(g.written, text)
	return nil
}

func (g *fakeGates) OpenGate(_ string, hold time.Duration) error {
	g.opened <- hold
	return nil
}

func (g *fakeGates) TriggerAlarm(string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.alarms++
	return nil
}

func (g *fakeGates) ConfirmTone(string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tones++
	return nil
}

func (g *fakeGates) Status() map[string]peripheral.RoleStatus {
	return map[string]peripheral.RoleStatus{}
}

func (g *fakeGates) alarmCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.alarms
}

func (g *fakeGates) waitGate(t testingT) time.Duration {
	select {
	case hold := <-g.opened:
		return hold
	case <-time.After(time.Second):
		t.Fatalf("gate was not opened")
		return 0
	}
}

func (g *fakeGates) expectNoGate(t testingT) {
	select {
	case <-g.opened:
		t.Fatalf("gate opened unexpectedly")
	case <-time.After(20 * time.Millisecond):
	}
}

// testingT is the slice of *testing.T the fakes need.
type testingT interface {
	Fatalf(format string, args ...any)
}

// scriptedRecognizer returns its frames in order, then reports no reading.
func scriptedRecognizer(frames ...string) func(context.Context) (string, bool) {
	i := 0
	return func(context.Context) (string, bool) {
		if i >= len(frames) {
			return "", false
		}
		f := frames[i]
		i++
		return f, true
	}
}

func testLogger() *logger.Logger {
	return logger.Get(logger.ErrorLevel)
}
