package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yvesHakizimana/Parking-Management-System/internal/models"
	"github.com/yvesHakizimana/Parking-Management-System/internal/peripheral"
	"github.com/yvesHakizimana/Parking-Management-System/internal/service"
)

func doAuthedGet(r http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	r.ServeHTTP(w, req)
	return w
}

func TestEntriesHandler_ListByPlate(t *testing.T) {
	mon := &mockMonitoring{entries: []models.Entry{
		{ID: 1, PlateNumber: "RAB123C", EntryTime: time.Now().UTC(),
			PaymentStatus: models.PaymentUnpaid, ExitStatus: models.ExitInside},
	}}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Monitoring: mon}
	r := newTestRouter(s)

	// lowercase plate is normalized before the lookup
	w := doAuthedGet(r, "/api/v1/entries?plate=rab123c")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Plate   string         `json:"plate"`
		Count   int            `json:"count"`
		Entries []models.Entry `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Plate != "RAB123C" || out.Count != 1 || len(out.Entries) != 1 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if mon.lastPlate != "RAB123C" {
		t.Fatalf("expected normalized plate RAB123C, got %q", mon.lastPlate)
	}
}

func TestEntriesHandler_RejectsBadPlate(t *testing.T) {
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Monitoring: &mockMonitoring{}}
	r := newTestRouter(s)

	for _, target := range []string{"/api/v1/entries", "/api/v1/entries?plate=12AB", "/api/v1/entries?plate=RAB123"} {
		w := doAuthedGet(r, target)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d (body=%s)", target, w.Code, w.Body.String())
		}
	}
}

func TestEntriesHandler_Unpaid(t *testing.T) {
	mon := &mockMonitoring{unpaid: []models.Entry{
		{ID: 3, PlateNumber: "XYZ999Q", PaymentStatus: models.PaymentUnpaid, ExitStatus: models.ExitInside},
		{ID: 4, PlateNumber: "RAB123C", PaymentStatus: models.PaymentUnpaid, ExitStatus: models.ExitInside},
	}}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Monitoring: mon}
	r := newTestRouter(s)

	w := doAuthedGet(r, "/api/v1/entries/unpaid")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count int `json:"count"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 {
		t.Fatalf("expected 2 unpaid entries, got %d", out.Count)
	}
}

func TestEntriesHandler_StoreErrorIs500(t *testing.T) {
	mon := &mockMonitoring{unpaidErr: errors.New("redis down")}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Monitoring: mon}
	r := newTestRouter(s)

	w := doAuthedGet(r, "/api/v1/entries/unpaid")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestStatsHandler(t *testing.T) {
	mon := &mockMonitoring{stats: models.Statistics{
		TotalEntries:   100,
		ActiveVehicles: 7,
		TotalRevenue:   123500,
		UnpaidEntries:  4,
	}}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Monitoring: mon}
	r := newTestRouter(s)

	w := doAuthedGet(r, "/api/v1/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var got models.Statistics
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != mon.stats {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestPeripheralsHandler(t *testing.T) {
	mon := &mockMonitoring{statuses: map[string]peripheral.RoleStatus{
		"entry_exit": {Address: "/dev/ttyACM0", Connected: true},
		"payment":    {Address: "", Connected: false},
	}}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Monitoring: mon}
	r := newTestRouter(s)

	w := doAuthedGet(r, "/api/v1/peripherals")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Roles map[string]peripheral.RoleStatus `json:"roles"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Roles["entry_exit"].Connected || out.Roles["payment"].Connected {
		t.Fatalf("unexpected role statuses: %+v", out.Roles)
	}
}

func TestHealthHandler(t *testing.T) {
	s := &service.Service{}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
