package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sabanasdb/internal/cache"
	"github.com/sabanasdb/internal/database"
	"github.com/sabanasdb/internal/jobs"
	"github.com/sabanasdb/internal/logging"
	"github.com/sabanasdb/internal/parser"
	"github.com/sabanasdb/internal/storage"
)

type acceptRequest struct {
	FileID int64 `json:"fileId"`
}

type acceptResponse struct {
	JobID         string `json:"jobId"`
	FileID        int64  `json:"fileId"`
	State         string `json:"state"`
	CorrelationID string `json:"correlationId"`
}

// jobStatusResponse is served by GET /jobs/sabanas/{fileID}. It is
// built from the tracker journal while that lives, and from the file
// index afterwards, so the shape never flips under a polling client.
type jobStatusResponse struct {
	FileID        int64         `json:"fileId"`
	JobID         string        `json:"jobId,omitempty"`
	CorrelationID string        `json:"correlationId,omitempty"`
	State         string        `json:"state"`
	Carrier       string        `json:"carrier,omitempty"`
	Path          string        `json:"path,omitempty"`
	StartedAt     *time.Time    `json:"startedAt,omitempty"`
	FinishedAt    *time.Time    `json:"finishedAt,omitempty"`
	Error         string        `json:"error,omitempty"`
	Stats         *parser.Stats `json:"stats,omitempty"`
}

// AcceptJobHandler handles POST /jobs/sabanas: it claims the file for
// ingestion and replies 202 with a job id. Repeats of a request that
// carried an Idempotency-Key get the stored reply instead of a 409.
func (s *Server) AcceptJobHandler(w http.ResponseWriter, r *http.Request) {
	correlationID := strings.TrimSpace(r.Header.Get("X-Correlation-ID"))
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idemKey != "" {
		if body, ok := s.tracker.CachedReply(r.Context(), idemKey); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			w.Write(body)
			return
		}
	}

	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FileID < 1 {
		WriteJSONError(w, "fileId must be a positive integer", http.StatusBadRequest)
		return
	}

	jobID, _, err := s.engine.AcceptJob(r.Context(), req.FileID, correlationID)
	if err != nil {
		var conflict *jobs.StateConflictError
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			WriteJSONError(w, fmt.Sprintf("file %d not found", req.FileID), http.StatusNotFound)
		case errors.As(err, &conflict):
			WriteJSONError(w, conflict.Error(), http.StatusConflict)
		default:
			logging.Error("accept failed",
				logging.FileID(req.FileID), logging.Correlation(correlationID), logging.Err(err))
			WriteJSONError(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	resp := acceptResponse{
		JobID:         jobID,
		FileID:        req.FileID,
		State:         string(database.StateQueued),
		CorrelationID: correlationID,
	}
	if idemKey != "" {
		if body, merr := json.Marshal(resp); merr == nil {
			if err := s.tracker.SaveReply(r.Context(), idemKey, body); err != nil {
				logging.Debug("idempotency reply not cached", logging.Err(err))
			}
		}
	}
	WriteJSON(w, resp, http.StatusAccepted)
}

// JobStatusHandler handles GET /jobs/sabanas/{fileID}.
func (s *Server) JobStatusHandler(w http.ResponseWriter, r *http.Request) {
	fileID, err := strconv.ParseInt(chi.URLParam(r, "fileID"), 10, 64)
	if err != nil || fileID < 1 {
		WriteJSONError(w, "invalid file id", http.StatusBadRequest)
		return
	}

	if j, jerr := s.tracker.Job(r.Context(), fileID); jerr == nil && j != nil {
		WriteJSONSuccess(w, statusFromJournal(j))
		return
	}

	f, err := s.repo.GetFile(r.Context(), fileID)
	if errors.Is(err, storage.ErrFileNotFound) {
		WriteJSONError(w, fmt.Sprintf("file %d not found", fileID), http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("status lookup failed", logging.FileID(fileID), logging.Err(err))
		WriteJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	WriteJSONSuccess(w, statusFromFile(f))
}

func statusFromJournal(j *cache.JobRecord) *jobStatusResponse {
	return &jobStatusResponse{
		FileID:        j.FileID,
		JobID:         j.JobID,
		CorrelationID: j.CorrelationID,
		State:         string(j.State),
		Carrier:       j.Carrier,
		Path:          j.Path,
		StartedAt:     j.StartedAt,
		FinishedAt:    j.FinishedAt,
		Error:         j.Error,
		Stats:         j.Stats,
	}
}

func statusFromFile(f *database.FileRecord) *jobStatusResponse {
	return &jobStatusResponse{
		FileID:     f.ID,
		State:      string(f.State),
		Carrier:    f.CarrierName,
		Path:       f.Path,
		StartedAt:  f.StartedAt,
		FinishedAt: f.FinishedAt,
	}
}
