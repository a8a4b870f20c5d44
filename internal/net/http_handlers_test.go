package net

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"menagerie/server/internal/net/ws"
	"menagerie/server/internal/sim"
	"menagerie/server/internal/telemetry"
	"menagerie/server/internal/world"
	"menagerie/server/logging"
)

type fakeSimulation struct {
	mu       sync.Mutex
	status   sim.Status
	commands []sim.Command
	reject   string
}

func (f *fakeSimulation) Status() sim.Status { return f.status }

func (f *fakeSimulation) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commands)
}

func (f *fakeSimulation) Enqueue(cmd sim.Command) (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject != "" {
		return false, f.reject
	}
	f.commands = append(f.commands, cmd)
	return true, ""
}

type fixedRouter struct{ stats logging.RouterStats }

func (r fixedRouter) Stats() logging.RouterStats { return r.stats }

func newFakeSimulation() *fakeSimulation {
	return &fakeSimulation{status: sim.Status{
		Tick: 12,
		Areas: []world.Summary{
			{ID: 0, Tiles: 80},
			{ID: 3, Tiles: 20, Neighbours: []int{0}},
		},
		PendingPaths: 1,
	}}
}

func TestHTTPHealth(t *testing.T) {
	handler := NewHTTPHandler(newFakeSimulation(), HTTPHandlerConfig{})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", resp.Code, resp.Body.String())
	}
}

func TestHTTPDiagnosticsReportsStatus(t *testing.T) {
	counters := &telemetry.Counters{}
	counters.Add("sim_commands_applied_total", 4)
	handler := NewHTTPHandler(newFakeSimulation(), HTTPHandlerConfig{
		Counters:  counters,
		Router:    fixedRouter{stats: logging.RouterStats{EventsTotal: 9, DroppedTotal: 1}},
		Inspector: ws.NewHandler(&fakeSimulation{}, ws.HandlerConfig{}),
		TickRate:  15,
	})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	if contentType := resp.Header().Get("Content-Type"); contentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", contentType)
	}

	var payload struct {
		TickRate   int               `json:"tickRate"`
		Simulation sim.Status        `json:"simulation"`
		Counters   map[string]uint64 `json:"counters"`
		Logging    struct {
			Events  uint64 `json:"events"`
			Dropped uint64 `json:"dropped"`
		} `json:"logging"`
		Inspectors *struct {
			Sessions []string `json:"sessions"`
		} `json:"inspectors"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode diagnostics payload: %v", err)
	}
	if payload.TickRate != 15 || payload.Simulation.Tick != 12 || payload.Simulation.PendingPaths != 1 {
		t.Fatalf("unexpected diagnostics %s", resp.Body.String())
	}
	if payload.Counters["sim_commands_applied_total"] != 4 {
		t.Fatalf("expected counters in diagnostics, got %v", payload.Counters)
	}
	if payload.Logging.Events != 9 || payload.Logging.Dropped != 1 {
		t.Fatalf("unexpected logging stats %+v", payload.Logging)
	}
	if payload.Inspectors == nil || len(payload.Inspectors.Sessions) != 0 {
		t.Fatalf("expected empty inspector list, got %s", resp.Body.String())
	}
}

func TestHTTPAreasListsSummaries(t *testing.T) {
	handler := NewHTTPHandler(newFakeSimulation(), HTTPHandlerConfig{})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/areas", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	var payload struct {
		Tick  uint64          `json:"tick"`
		Areas []world.Summary `json:"areas"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode areas payload: %v", err)
	}
	if payload.Tick != 12 || len(payload.Areas) != 2 || payload.Areas[1].ID != 3 {
		t.Fatalf("unexpected areas payload %s", resp.Body.String())
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/areas", nil))
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", resp.Code)
	}
}

func TestHTTPCommandsStagesAndRejects(t *testing.T) {
	simulation := newFakeSimulation()
	handler := NewHTTPHandler(simulation, HTTPHandlerConfig{})

	body := []byte(`{"type":"elevate","elevate":{"x":3,"y":3,"radius":1.5,"level":1}}`)
	req := httptest.NewRequest(http.MethodPost, "/commands", bytes.NewReader(body))
	req.Header.Set("X-Actor", "keeper")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(simulation.commands) != 1 {
		t.Fatalf("expected 1 staged command, got %d", len(simulation.commands))
	}
	staged := simulation.commands[0]
	if staged.ActorID != "keeper" || staged.Type != sim.CommandElevate || staged.ID == "" || staged.Elevate == nil {
		t.Fatalf("unexpected staged command %+v", staged)
	}

	simulation.reject = sim.CommandRejectQueueFull
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/commands", bytes.NewReader(body)))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", resp.Code)
	}
	var rejected commandResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &rejected); err != nil {
		t.Fatalf("failed to decode reject: %v", err)
	}
	if rejected.Reason != sim.CommandRejectQueueFull {
		t.Fatalf("expected queue_full reason, got %+v", rejected)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/commands", bytes.NewBufferString("{")))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 Bad Request, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/commands", nil))
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", resp.Code)
	}
}

func TestHTTPInspectorRouteIsOptional(t *testing.T) {
	handler := NewHTTPHandler(newFakeSimulation(), HTTPHandlerConfig{})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without inspector, got %d", resp.Code)
	}

	handler = NewHTTPHandler(newFakeSimulation(), HTTPHandlerConfig{Inspector: ws.NewHandler(&fakeSimulation{}, ws.HandlerConfig{})})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected plain GET to fail the upgrade, got %d", resp.Code)
	}
}
