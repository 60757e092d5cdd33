package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/okian/runclub/internal/adapters/scheduler"
)

// JobsDependencies defines the interface for manual job triggers.
type JobsDependencies interface {
	Trigger(name string) (string, error)
}

// JobsHandler handles manual job triggers.
type JobsHandler struct {
	deps JobsDependencies
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(deps JobsDependencies) *JobsHandler {
	return &JobsHandler{deps: deps}
}

type triggerResponse struct {
	Job    string `json:"job"`
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// HandleTriggerJob handles POST /jobs/{name} requests.
func (h *JobsHandler) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	runID, err := h.deps.Trigger(name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, triggerResponse{Job: name, RunID: runID, Status: "accepted"})
	case errors.Is(err, scheduler.ErrUnknownJob):
		writeError(w, http.StatusNotFound, "unknown_job", err)
	case errors.Is(err, scheduler.ErrJobRunning):
		writeError(w, http.StatusConflict, "job_running", err)
	case errors.Is(err, scheduler.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "stopped", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
