package web

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codeddarkness/controller-new/internal/hardware"
	"github.com/codeddarkness/controller-new/internal/servo"
	"github.com/codeddarkness/controller-new/internal/storage"
	"github.com/codeddarkness/controller-new/internal/telemetry"
)

type fixedTelemetry struct {
	reading telemetry.Reading
}

func (f fixedTelemetry) Latest() telemetry.Reading { return f.reading }

type fixedSnapshots struct {
	snaps []storage.Snapshot
	err   error
}

func (f fixedSnapshots) RecentSnapshots(limit int) ([]storage.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.snaps) {
		return f.snaps[:limit], nil
	}
	return f.snaps, nil
}

func testServer(t *testing.T) (*Server, *servo.Rig) {
	t.Helper()

	rig := servo.NewRig(hardware.NewSimulatedSink())
	reading := telemetry.Reading{
		Timestamp:   time.Now(),
		Accel:       telemetry.Vector{Z: telemetry.Gravity},
		Temperature: 24.0,
	}
	reading.Classify()

	srv := NewServer(
		rig,
		fixedTelemetry{reading: reading},
		fixedSnapshots{snaps: []storage.Snapshot{{ID: 1}, {ID: 2}}},
		hardware.Status{PCAConnected: true, PCABus: "1"},
		func() (bool, string) { return true, "PS3" },
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return srv, rig
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestStatusReflectsServoSet(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/servo/0", `{"angle": 45}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set servo status = %d, body %s", rec.Code, rec.Body)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var status statusResponse
	decodeBody(t, rec, &status)

	if status.Servos.Positions[0] != 45 {
		t.Errorf("positions[0] = %d, want 45", status.Servos.Positions[0])
	}
	if !status.Hardware.PCAConnected || status.Hardware.PCABus != "1" {
		t.Errorf("hardware status lost: %+v", status.Hardware)
	}
	if !status.Hardware.ControllerConnected || status.Hardware.ControllerType != "PS3" {
		t.Errorf("controller status lost: %+v", status.Hardware)
	}
	if status.MPU.Temperature != 24.0 {
		t.Errorf("mpu temp = %f, want 24", status.MPU.Temperature)
	}
}

func TestSetServoClamps(t *testing.T) {
	srv, rig := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/servo/1", `{"angle": 300}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp struct {
		Angle int `json:"angle"`
	}
	decodeBody(t, rec, &resp)
	if resp.Angle != 180 {
		t.Errorf("returned angle = %d, want clamped 180", resp.Angle)
	}
	if got := rig.Snapshot().Positions[1]; got != 180 {
		t.Errorf("stored angle = %d, want 180", got)
	}
}

func TestSetServoValidation(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad channel", "/api/servo/7", `{"angle": 90}`, http.StatusBadRequest},
		{"non-numeric channel", "/api/servo/abc", `{"angle": 90}`, http.StatusBadRequest},
		{"missing angle", "/api/servo/0", `{}`, http.StatusBadRequest},
		{"malformed body", "/api/servo/0", `{angle`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}

			var resp map[string]string
			decodeBody(t, rec, &resp)
			if resp["error"] == "" {
				t.Error("error response has no error field")
			}
		})
	}
}

func TestHoldToggleAndConflict(t *testing.T) {
	srv, rig := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/servo/hold/2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("hold status = %d", rec.Code)
	}

	var resp struct {
		Hold bool `json:"hold"`
	}
	decodeBody(t, rec, &resp)
	if !resp.Hold {
		t.Error("first toggle should report hold = true")
	}

	// A held channel rejects direct sets.
	rec = doRequest(t, srv, http.MethodPost, "/api/servo/2", `{"angle": 10}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("set on held channel status = %d, want 409", rec.Code)
	}

	// Move-all leaves it alone.
	rec = doRequest(t, srv, http.MethodPost, "/api/servo/all", `{"angle": 0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set all status = %d", rec.Code)
	}
	state := rig.Snapshot()
	if state.Positions[2] != servo.CenterAngle {
		t.Errorf("held channel moved to %d", state.Positions[2])
	}
	if state.Positions[0] != 0 || state.Positions[1] != 0 || state.Positions[3] != 0 {
		t.Errorf("unheld channels = %v, want 0", state.Positions)
	}

	// Second toggle releases.
	rec = doRequest(t, srv, http.MethodPost, "/api/servo/hold/2", "")
	decodeBody(t, rec, &resp)
	if resp.Hold {
		t.Error("second toggle should report hold = false")
	}
}

func TestHoldExplicitBody(t *testing.T) {
	srv, rig := testServer(t)

	doRequest(t, srv, http.MethodPost, "/api/servo/hold/0", `{"hold": true}`)
	if !rig.Snapshot().HoldStates[0] {
		t.Error("explicit hold=true not applied")
	}

	// Setting the same value again is not a toggle.
	doRequest(t, srv, http.MethodPost, "/api/servo/hold/0", `{"hold": true}`)
	if !rig.Snapshot().HoldStates[0] {
		t.Error("explicit hold=true toggled the flag")
	}
}

func TestLockEndpoint(t *testing.T) {
	srv, rig := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/servo/lock", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("lock status = %d", rec.Code)
	}
	if !rig.Snapshot().LockState {
		t.Error("lock not applied")
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/servo/0", `{"angle": 10}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("set while locked status = %d, want 409", rec.Code)
	}

	doRequest(t, srv, http.MethodPost, "/api/servo/lock", `{"lock": false}`)
	if rig.Snapshot().LockState {
		t.Error("explicit unlock not applied")
	}
}

func TestLogsEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/logs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("logs status = %d", rec.Code)
	}

	var snaps []storage.Snapshot
	decodeBody(t, rec, &snaps)
	if len(snaps) != 2 {
		t.Errorf("got %d log records, want 2", len(snaps))
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/logs?limit=1", "")
	decodeBody(t, rec, &snaps)
	if len(snaps) != 1 {
		t.Errorf("got %d log records with limit=1, want 1", len(snaps))
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/logs?limit=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus limit status = %d, want 400", rec.Code)
	}
}

func TestStopEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}

	var resp struct {
		Success bool `json:"success"`
	}
	decodeBody(t, rec, &resp)
	if !resp.Success {
		t.Error("stop did not report success")
	}
}

func TestMethodRouting(t *testing.T) {
	srv, _ := testServer(t)

	// GET on a mutation route is not found by the method-scoped pattern.
	rec := doRequest(t, srv, http.MethodGet, "/api/servo/0", "")
	if rec.Code == http.StatusOK {
		t.Errorf("GET on mutation route succeeded, status = %d", rec.Code)
	}
}

func TestLogsWithoutStore(t *testing.T) {
	rig := servo.NewRig(hardware.NewSimulatedSink())
	srv := NewServer(
		rig,
		fixedTelemetry{},
		nil,
		hardware.Status{},
		func() (bool, string) { return false, "" },
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	rec := doRequest(t, srv, http.MethodGet, "/api/logs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("logs status = %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("logs body = %s, want []", body)
	}
}

func ExampleServer() {
	rig := servo.NewRig(hardware.NewSimulatedSink())
	srv := NewServer(
		rig,
		fixedTelemetry{},
		nil,
		hardware.Status{},
		func() (bool, string) { return false, "" },
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/servo/0", strings.NewReader(`{"angle": 45}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	fmt.Println(rig.Snapshot().Positions[0])
	// Output: 45
}
