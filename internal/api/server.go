// Package api exposes the sabanas ingest service over HTTP: job
// acceptance, job status, health and metrics.
package api

import (
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sabanasdb/internal/cache"
	"github.com/sabanasdb/internal/database"
	"github.com/sabanasdb/internal/jobs"
	"github.com/sabanasdb/internal/logging"
	"github.com/sabanasdb/internal/storage"
)

// Server holds the handlers' collaborators.
type Server struct {
	repo    *storage.Repository
	db      *database.DB
	engine  *jobs.Engine
	tracker *cache.Tracker

	authEnabled bool
	apiKeyHash  [32]byte

	started time.Time
	ping    singleflight.Group
}

// New creates an API server. Authentication and the job journal are off
// until SetAPIKey and SetTracker are called.
func New(repo *storage.Repository, db *database.DB, engine *jobs.Engine) *Server {
	return &Server{
		repo:    repo,
		db:      db,
		engine:  engine,
		started: time.Now(),
	}
}

// SetTracker enables the job journal: richer status responses and
// idempotent replay of accepted requests.
func (s *Server) SetTracker(tracker *cache.Tracker) {
	s.tracker = tracker
}

// SetAPIKey enables authentication for the job endpoints. An empty key
// leaves them open, which is only sane behind a trusted proxy.
func (s *Server) SetAPIKey(key string) {
	if key == "" {
		s.authEnabled = false
		logging.Warn("api authentication disabled, no api key configured")
		return
	}
	s.authEnabled = true
	s.apiKeyHash = hashKey(key)
}
