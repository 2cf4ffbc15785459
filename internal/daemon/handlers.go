package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"camtrap/internal/api"
	"camtrap/internal/fileutil"
	"camtrap/internal/logging"
	"camtrap/internal/progress"
	"camtrap/internal/services"
	"camtrap/internal/workflow"
)

const (
	maxRequestBody   = 1 << 20
	defaultRunsLimit = 20
	maxRunsLimit     = 500
	sseKeepAlive     = 15 * time.Second
)

type progressResponse struct {
	State    workflow.State   `json:"state"`
	Progress *progress.Report `json:"progress"`
}

type configRequest struct {
	ConfidenceThreshold *float64 `json:"confidenceThreshold"`
}

type notificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

func (s *apiServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.daemon.Status())
}

func (s *apiServer) handleFormats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.FormatsResponse{Formats: s.daemon.workflow.Registry().Formats()})
}

func (s *apiServer) handleIsDirectory(w http.ResponseWriter, r *http.Request) {
	var req api.IsDirectoryRequest
	if !s.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, api.IsDirectoryResponse{Path: req.Path, IsDirectory: fileutil.IsDirectory(req.Path)})
}

func (s *apiServer) handleDataset(w http.ResponseWriter, r *http.Request) {
	var sel workflow.Selection
	if !s.decode(w, r, &sel) {
		return
	}
	if err := s.daemon.workflow.Select(sel); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.daemon.workflow.Status())
}

func (s *apiServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ConfidenceThreshold == nil {
		s.writeServiceError(w, r, services.Wrap(services.ErrInvalidSelection, "api", "configure", "confidenceThreshold is required", nil))
		return
	}
	if err := s.daemon.workflow.Configure(workflow.Config{ConfidenceThreshold: *req.ConfidenceThreshold}); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.daemon.workflow.Status())
}

func (s *apiServer) handleDetection(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.workflow.StartDetection(r.Context()); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.daemon.workflow.Status())
}

func (s *apiServer) handleProgress(w http.ResponseWriter, _ *http.Request) {
	status := s.daemon.workflow.Status()
	writeJSON(w, http.StatusOK, progressResponse{State: status.State, Progress: status.Progress})
}

// handleProgressStream relays the current run's progress as server-sent
// events named "progress". The stream ends with an "end" event when the run
// stops publishing.
func (s *apiServer) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.daemon.workflow.Subscribe()
	if !ok {
		s.writeServiceError(w, r, services.Wrap(services.ErrJobStartRejected, "api", "progress stream", "no detection run", nil))
		return
	}
	defer sub.Cancel()

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case report, open := <-sub.C():
			if !open {
				_, _ = io.WriteString(w, "event: end\ndata: {}\n\n")
				_ = rc.Flush()
				return
			}
			data, err := json.Marshal(report)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *apiServer) handleSubmitExport(w http.ResponseWriter, r *http.Request) {
	var req workflow.ExportRequest
	if !s.decode(w, r, &req) {
		return
	}
	job, err := s.daemon.workflow.Export(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *apiServer) handleListExports(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.ExportsResponse{Exports: s.daemon.workflow.Exports()})
}

func (s *apiServer) handleReset(w http.ResponseWriter, r *http.Request) {
	s.daemon.workflow.Reset(r.Context())
	writeJSON(w, http.StatusOK, s.daemon.workflow.Status())
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid limit", "invalid_request"))
			return
		}
		limit = min(parsed, maxRunsLimit)
	}
	runs, err := s.daemon.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.RunsResponse{Runs: api.FromRuns(runs)})
}

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := s.daemon.store.GetRun(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if run == nil {
		writeJSON(w, http.StatusNotFound, errorBody("run not found", "not_found"))
		return
	}
	records, err := s.daemon.store.ListExports(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	view := api.FromRun(*run)
	view.Exports = api.FromExportRecords(records)
	writeJSON(w, http.StatusOK, api.RunResponse{Run: view})
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeServiceError(w, r, services.Wrap(services.ErrBackendFailure, "api", "test notification", message, err))
		return
	}
	writeJSON(w, http.StatusOK, notificationResponse{Sent: sent, Message: message})
}

// decode reads a JSON body into dst, answering 400 itself on failure.
func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "invalid request body: " + err.Error()
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		writeJSON(w, http.StatusBadRequest, errorBody(msg, "invalid_request"))
		return false
	}
	return true
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidSelection):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidOutputTarget):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrDuplicateExportInFlight), errors.Is(err, services.ErrJobStartRejected):
		return http.StatusConflict
	case errors.Is(err, services.ErrBackendFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	details := services.Details(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			append(logging.ErrorAttrs(err),
				logging.String("path", r.URL.Path),
				logging.String(logging.FieldErrorHint, "see the error kind and cause in the response"),
			)...)
	}
	writeJSON(w, status, api.ErrorResponse{
		Error:     err.Error(),
		Kind:      details.Kind,
		Operation: details.Operation,
		Cause:     details.Cause,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func errorBody(message, kind string) api.ErrorResponse {
	return api.ErrorResponse{Error: message, Kind: kind}
}
