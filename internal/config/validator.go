package config

import (
	"fmt"
	"strings"
)

// Validator interface for config validation
type Validator interface {
	Validate() error
}

// ValidationErrors collects multiple validation errors
type ValidationErrors struct {
	Errors []error
}

func (ve *ValidationErrors) Add(err error) {
	if err != nil {
		ve.Errors = append(ve.Errors, err)
	}
}

func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return ""
	}

	messages := make([]string, len(ve.Errors))
	for i, err := range ve.Errors {
		messages[i] = fmt.Sprintf("  - %s", err.Error())
	}

	return fmt.Sprintf("configuration validation failed:\n%s",
		strings.Join(messages, "\n"))
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs.Add(c.Server.Validate())
	errs.Add(c.Database.Validate())
	errs.Add(c.FTP.Validate())
	errs.Add(c.Jobs.Validate())

	// Validate tracker config if enabled
	if c.Cache.Enabled {
		errs.Add(c.Cache.Validate())
	}

	errs.Add(c.Logging.Validate())

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	var errs ValidationErrors

	if c.Port < 1 || c.Port > 65535 {
		errs.Add(fmt.Errorf("server.port must be between 1-65535, got %d", c.Port))
	}

	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		errs.Add(fmt.Errorf("server timeouts cannot be negative"))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates database configuration
func (c *DatabaseConfig) Validate() error {
	var errs ValidationErrors

	if c.URL == "" {
		errs.Add(fmt.Errorf("database.url is required"))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates FTP client configuration. The host may legitimately
// be empty when every job is fed from local files.
func (c *FTPConfig) Validate() error {
	var errs ValidationErrors

	if c.Timeout < 0 {
		errs.Add(fmt.Errorf("ftp.timeout cannot be negative"))
	}

	if c.Host != "" && c.User == "" {
		errs.Add(fmt.Errorf("ftp.user is required when ftp.host is set"))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates jobs configuration
func (c *JobsConfig) Validate() error {
	var errs ValidationErrors

	if c.Workers < 1 {
		errs.Add(fmt.Errorf("jobs.workers must be at least 1, got %d", c.Workers))
	}

	if c.StaleAfter < 0 {
		errs.Add(fmt.Errorf("jobs.stale_after cannot be negative"))
	}

	if c.StaleAfter > 0 && c.ReapInterval < 1 {
		errs.Add(fmt.Errorf("jobs.reap_interval must be positive when reaping is enabled"))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates tracker configuration
func (c *CacheConfig) Validate() error {
	var errs ValidationErrors

	if c.Path == "" && !c.InMemory {
		errs.Add(fmt.Errorf("cache.path is required when the tracker is enabled"))
	}

	if c.MaxMemoryMB < 1 {
		errs.Add(fmt.Errorf("cache.max_memory_mb must be positive, got %d", c.MaxMemoryMB))
	}

	if c.ValueLogMaxMB < 1 {
		errs.Add(fmt.Errorf("cache.value_log_max_mb must be positive, got %d", c.ValueLogMaxMB))
	}

	if c.GCDiscardRatio < 0 || c.GCDiscardRatio > 1 {
		errs.Add(fmt.Errorf("cache.gc_discard_ratio must be between 0 and 1, got %.2f", c.GCDiscardRatio))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	var errs ValidationErrors

	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if c.Level == l {
			levelValid = true
			break
		}
	}
	if !levelValid && c.Level != "" {
		errs.Add(fmt.Errorf("logging.level must be one of: %v, got %s", validLevels, c.Level))
	}

	if c.MaxSize < 0 {
		errs.Add(fmt.Errorf("logging.max_size cannot be negative, got %d", c.MaxSize))
	}

	if c.MaxBackups < 0 {
		errs.Add(fmt.Errorf("logging.max_backups cannot be negative, got %d", c.MaxBackups))
	}

	if c.MaxAge < 0 {
		errs.Add(fmt.Errorf("logging.max_age cannot be negative, got %d", c.MaxAge))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}
