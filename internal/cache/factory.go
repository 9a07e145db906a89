package cache

import (
	"fmt"
	"time"
)

// Config holds configuration for tracker creation
type Config struct {
	// Enabled determines if job tracking is enabled
	Enabled bool

	// Badger store configuration
	BadgerPath           string
	BadgerInMemory       bool
	BadgerMaxMemoryMB    int
	BadgerValueLogMaxMB  int
	BadgerCompactL0      bool
	BadgerNumGoroutines  int
	BadgerGCInterval     time.Duration
	BadgerGCDiscardRatio float64

	// Journal and idempotency entry lifetimes
	JobTTL   time.Duration
	ReplyTTL time.Duration
}

// DefaultConfig returns a default tracker configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:              true,
		BadgerPath:           "./cache/badger",
		BadgerMaxMemoryMB:    64,
		BadgerValueLogMaxMB:  256,
		BadgerCompactL0:      true,
		BadgerNumGoroutines:  4,
		BadgerGCInterval:     10 * time.Minute,
		BadgerGCDiscardRatio: 0.5,
		JobTTL:               defaultJobTTL,
		ReplyTTL:             defaultReplyTTL,
	}
}

// New opens the badger store and wraps it in a job Tracker.
// Returns nil if tracking is disabled.
func New(config *Config) (*Tracker, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return nil, nil
	}

	if config.BadgerPath == "" && !config.BadgerInMemory {
		return nil, fmt.Errorf("badger path is required when the tracker is enabled")
	}

	store, err := NewBadgerCache(&BadgerConfig{
		Path:             config.BadgerPath,
		InMemory:         config.BadgerInMemory,
		MaxMemoryMB:      config.BadgerMaxMemoryMB,
		ValueLogMaxMB:    config.BadgerValueLogMaxMB,
		CompactL0OnClose: config.BadgerCompactL0,
		NumGoroutines:    config.BadgerNumGoroutines,
		GCInterval:       config.BadgerGCInterval,
		GCDiscardRatio:   config.BadgerGCDiscardRatio,
	})
	if err != nil {
		return nil, err
	}

	return NewTracker(store, config.JobTTL, config.ReplyTTL), nil
}
