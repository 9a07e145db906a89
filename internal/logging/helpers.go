package logging

import (
	"log/slog"
	"time"
)

// Common field helpers for consistent structured logging

// FileID creates the ingest file identifier field
func FileID(id int64) slog.Attr {
	return slog.Int64("file_id", id)
}

// JobID creates the job run identifier field
func JobID(id string) slog.Attr {
	return slog.String("job_id", id)
}

// Correlation creates the correlation identifier field
func Correlation(id string) slog.Attr {
	return slog.String("correlation_id", id)
}

// Carrier creates the carrier name field
func Carrier(name string) slog.Attr {
	return slog.String("carrier", name)
}

// State creates the job state field
func State(state string) slog.Attr {
	return slog.String("state", state)
}

// Duration logs duration in milliseconds
func Duration(name string, d time.Duration) slog.Attr {
	return slog.Int64(name+"_ms", d.Milliseconds())
}

// Err creates error field
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Count creates count field
func Count(name string, count int) slog.Attr {
	return slog.Int(name+"_count", count)
}

// HTTP creates HTTP request fields
func HTTP(method, path string, status int) []any {
	return []any{
		slog.String("http_method", method),
		slog.String("http_path", path),
		slog.Int("http_status", status),
	}
}

// File creates file path field
func File(path string) slog.Attr {
	return slog.String("file", path)
}

// Worker creates worker ID field
func Worker(id int) slog.Attr {
	return slog.Int("worker_id", id)
}
