package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"reelsync/internal/api"
	"reelsync/internal/config"
	"reelsync/internal/jobs"
	"reelsync/internal/logging"
	"reelsync/internal/pipeline"
	"reelsync/internal/services"
)

// maxRequestBody bounds JSON request bodies; they only carry two URLs.
const maxRequestBody = 64 * 1024

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon
	// combineTimeout bounds how long /combine holds the connection open.
	combineTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	return &apiServer{
		bind:           strings.TrimSpace(cfg.Paths.APIBind),
		token:          strings.TrimSpace(cfg.Paths.APIToken),
		logger:         logging.NewComponentLogger(logger, "api-server"),
		daemon:         d,
		combineTimeout: cfg.JobTimeout() + time.Minute,
	}
}

func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/jobs", s.handleSubmit)
	mux.HandleFunc("GET /api/jobs", s.handleList)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGet)
	mux.HandleFunc("GET /api/jobs/{id}/video", s.handleVideo)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.handleCancel)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /combine", s.handleCombine(jobs.ProfileStandard))
	mux.HandleFunc("POST /combine-short", s.handleCombine(jobs.ProfileShort))
	return requestIDMiddleware(corsMiddleware(authMiddleware(s.token, mux)))
}

func (s *apiServer) start() error {
	if s.bind == "" {
		s.logger.Info("api server disabled", logging.String(logging.FieldEventType, "api_disabled"))
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// /combine streams the video after a full render.
		WriteTimeout: s.combineTimeout + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
	)
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSubmit(w, r)
	if !ok {
		return
	}
	job, err := s.daemon.orch.Submit(r.Context(), pipeline.Request{
		AudioURL: req.AudioURL,
		ImageURL: req.ImageURL,
		Profile:  jobs.Profile(req.Profile),
	})
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	w.Header().Set("Location", api.JobPath(job.ID))
	s.writeJSON(w, http.StatusAccepted, api.FromJob(job))
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	var states []jobs.State
	for _, value := range r.URL.Query()["state"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		state, ok := jobs.ParseState(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown state %q", value), "")
			return
		}
		states = append(states, state)
	}
	list, err := s.daemon.store.List(r.Context(), states...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(list)})
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.orch.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job))
}

func (s *apiServer) handleVideo(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.orch.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	if job.State != jobs.StateCompleted {
		s.writeJSON(w, http.StatusConflict, api.ErrorResponse{
			Error: "job has not completed",
			Kind:  string(job.FailureKind),
			JobID: job.ID,
		})
		return
	}
	s.serveVideo(w, r, job, job.ID+".mp4")
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.daemon.orch.Cancel(id); err != nil {
		if errors.Is(err, pipeline.ErrNotRunning) {
			if _, getErr := s.daemon.orch.Get(r.Context(), id); getErr != nil {
				s.writeOrchestratorError(w, getErr)
				return
			}
			s.writeError(w, http.StatusConflict, err.Error(), "")
			return
		}
		s.writeOrchestratorError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "canceling"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	counts := make(map[string]int, len(status.JobCounts))
	for state, n := range status.JobCounts {
		counts[string(state)] = n
	}
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		ActiveJobs:   status.ActiveJobs,
		MaxJobs:      s.daemon.cfg.Workflow.MaxConcurrentJobs,
		JobCounts:    counts,
		Workspaces: api.WorkspaceUsage{
			Count: status.Workspaces.Count,
			Stale: status.Workspaces.Stale,
			Bytes: status.Workspaces.Bytes,
		},
		Dependencies: api.FromDependencies(status.Dependencies),
	}
	if status.LastSweep != nil {
		payload.LastSweep = status.LastSweep.At.UTC().Format(time.RFC3339)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// handleCombine renders synchronously and answers with the mp4 itself. A
// client that disconnects cancels its job.
func (s *apiServer) handleCombine(profile jobs.Profile) http.HandlerFunc {
	filename := "output.mp4"
	if profile == jobs.ProfileShort {
		filename = "output_short.mp4"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := s.decodeSubmit(w, r)
		if !ok {
			return
		}
		orch := s.daemon.orch
		job, err := orch.Submit(r.Context(), pipeline.Request{
			AudioURL: req.AudioURL,
			ImageURL: req.ImageURL,
			Profile:  profile,
		})
		if err != nil {
			s.writeOrchestratorError(w, err)
			return
		}

		waitCtx, cancel := context.WithTimeout(r.Context(), s.combineTimeout)
		defer cancel()
		done, err := orch.Wait(waitCtx, job.ID)
		if err != nil {
			if cancelErr := orch.Cancel(job.ID); cancelErr == nil {
				s.logger.Info("combine client gone; job canceled",
					logging.String(logging.FieldJobID, job.ID),
					logging.String(logging.FieldEventType, "combine_abandoned"),
				)
			}
			s.writeError(w, http.StatusGatewayTimeout, "render did not finish: "+err.Error(), "")
			return
		}
		if done.State != jobs.StateCompleted {
			s.writeJSON(w, statusForFailure(done.FailureKind), api.ErrorResponse{
				Error: done.ErrorMessage,
				Kind:  string(done.FailureKind),
				JobID: done.ID,
			})
			return
		}
		s.serveVideo(w, r, done, filename)
	}
}

func (s *apiServer) serveVideo(w http.ResponseWriter, r *http.Request, job *jobs.Job, filename string) {
	file, err := os.Open(job.OutputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.writeError(w, http.StatusGone, "video has expired", "")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Reelsync-Job-Id", job.ID)
	if job.OutputDigest != "" {
		w.Header().Set("ETag", `"`+job.OutputDigest+`"`)
	}
	http.ServeContent(w, r, filename, info.ModTime(), file)
}

func (s *apiServer) decodeSubmit(w http.ResponseWriter, r *http.Request) (api.SubmitRequest, bool) {
	var req api.SubmitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), string(jobs.FailureValidation))
		return req, false
	}
	return req, true
}

func (s *apiServer) writeOrchestratorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, services.Message(err), string(jobs.FailureValidation))
	case errors.Is(err, pipeline.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, pipeline.ErrShuttingDown):
		s.writeError(w, http.StatusServiceUnavailable, err.Error(), "")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
	}
}

// statusForFailure maps a failed job onto the HTTP status /combine answers with.
func statusForFailure(kind jobs.FailureKind) int {
	switch kind {
	case jobs.FailureValidation:
		return http.StatusBadRequest
	case jobs.FailureFetch:
		return http.StatusBadGateway
	case jobs.FailureTimeout:
		return http.StatusGatewayTimeout
	case jobs.FailureCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message, kind string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Kind: kind})
}
