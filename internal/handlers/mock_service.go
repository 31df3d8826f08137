package handlers

import (
	"context"
	"net/http"

	"github.com/yvesHakizimana/Parking-Management-System/internal/models"
	"github.com/yvesHakizimana/Parking-Management-System/internal/peripheral"
	"github.com/yvesHakizimana/Parking-Management-System/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockMonitoring struct {
	stats      models.Statistics
	statsErr   error
	unpaid     []models.Entry
	unpaidErr  error
	entries    []models.Entry
	entriesErr error
	statuses   map[string]peripheral.RoleStatus

	lastPlate string
}

func (m *mockMonitoring) Statistics(ctx context.Context) (models.Statistics, error) {
	return m.stats, m.statsErr
}
func (m *mockMonitoring) UnpaidEntries(ctx context.Context) ([]models.Entry, error) {
	return m.unpaid, m.unpaidErr
}
func (m *mockMonitoring) VehicleEntries(ctx context.Context, plate string) ([]models.Entry, error) {
	m.lastPlate = plate
	return m.entries, m.entriesErr
}
func (m *mockMonitoring) Peripherals() map[string]peripheral.RoleStatus {
	return m.statuses
}

type mockEventLog struct {
	logs      []models.LogEvent
	logsErr   error
	alerts    []models.SecurityAlert
	alertsErr error

	lastLogLimit   int
	lastAlertLimit int
}

func (m *mockEventLog) RecentLogs(ctx context.Context, limit int) ([]models.LogEvent, error) {
	m.lastLogLimit = limit
	return m.logs, m.logsErr
}
func (m *mockEventLog) RecentAlerts(ctx context.Context, limit int) ([]models.SecurityAlert, error) {
	m.lastAlertLimit = limit
	return m.alerts, m.alertsErr
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
