package api

import (
	"context"
	"net/http"
	"time"

	"github.com/sabanasdb/internal/version"
)

// HealthStatus is the full health check response.
type HealthStatus struct {
	OK       bool           `json:"ok"`
	Time     time.Time      `json:"time"`
	Uptime   string         `json:"uptime"`
	Version  VersionInfo    `json:"version"`
	Database DatabaseHealth `json:"database"`
	Tracker  *TrackerHealth `json:"tracker,omitempty"`
}

// VersionInfo contains build version details.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
}

// DatabaseHealth reports storage engine connectivity.
type DatabaseHealth struct {
	Connected  bool   `json:"connected"`
	Engine     string `json:"engine,omitempty"`
	ResponseMs int64  `json:"response_ms"`
	Error      string `json:"error,omitempty"`
}

// TrackerHealth reports the badger job journal status.
type TrackerHealth struct {
	Enabled bool    `json:"enabled"`
	Keys    uint64  `json:"keys"`
	HitRate float64 `json:"hit_rate"`
}

// HealthHandler handles GET /health. A reachable database answers 200
// with ok=true; anything else is 503.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status := s.checkHealth(r.Context())
	code := http.StatusOK
	if !status.OK {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, code)
}

func (s *Server) checkHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		OK:     true,
		Time:   time.Now().UTC(),
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Version: VersionInfo{
			Version:   version.Version,
			GitCommit: version.GitCommit,
			BuildTime: version.BuildTime,
		},
	}

	// Concurrent probes share a single ping.
	v, err, _ := s.ping.Do("db", func() (interface{}, error) {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		start := time.Now()
		perr := s.db.Conn().PingContext(pctx)
		return time.Since(start), perr
	})
	if elapsed, ok := v.(time.Duration); ok {
		status.Database.ResponseMs = elapsed.Milliseconds()
	}
	if err != nil {
		status.OK = false
		status.Database.Error = err.Error()
	} else {
		status.Database.Connected = true
		status.Database.Engine = s.db.Dialect().Name
	}

	if s.tracker != nil {
		health := &TrackerHealth{Enabled: true}
		if m := s.tracker.Stats(); m != nil {
			health.Keys = m.Keys
			if total := m.Hits + m.Misses; total > 0 {
				health.HitRate = float64(m.Hits) / float64(total)
			}
		}
		status.Tracker = health
	}
	return status
}
