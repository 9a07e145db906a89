package api

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	f := newTestAPI(t, false, "")

	rec := f.request(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	var health HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decoding health response: %v", err)
	}
	if !health.OK {
		t.Error("ok = false on a healthy service")
	}
	if !health.Database.Connected {
		t.Error("database reported as disconnected")
	}
	if health.Database.Engine != "sqlite" {
		t.Errorf("database engine = %q, want sqlite", health.Database.Engine)
	}
	if health.Time.IsZero() || health.Uptime == "" {
		t.Error("health response is missing time or uptime")
	}
	if health.Tracker != nil {
		t.Error("tracker section present without a tracker")
	}
}

func TestHealthReportsTracker(t *testing.T) {
	f := newTestAPI(t, true, "")

	rec := f.request(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var health HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decoding health response: %v", err)
	}
	if health.Tracker == nil || !health.Tracker.Enabled {
		t.Errorf("tracker = %+v, want enabled", health.Tracker)
	}
}

func TestHealthDatabaseDown(t *testing.T) {
	f := newTestAPI(t, false, "")
	f.db.Close()

	rec := f.request(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503; body %s", rec.Code, rec.Body.String())
	}

	var health HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decoding health response: %v", err)
	}
	if health.OK {
		t.Error("ok = true with the database closed")
	}
	if health.Database.Connected {
		t.Error("database reported as connected after close")
	}
	if health.Database.Error == "" {
		t.Error("database error detail missing")
	}
}
