package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/infra/logging"
	"candidate-screening/internal/usecase"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	maxTranscript   = 4 << 20
)

type jobDTO struct {
	ID            string     `json:"id"`
	JobType       string     `json:"job_type"`
	Status        string     `json:"status"`
	ApplicationID *string    `json:"application_id,omitempty"`
	RequisitionID *string    `json:"requisition_id,omitempty"`
	Priority      int        `json:"priority"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
	LastError     string     `json:"last_error,omitempty"`
	ClaimedBy     string     `json:"claimed_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ScheduledFor  time.Time  `json:"scheduled_for"`
}

func toJobDTO(j *model.Job) jobDTO {
	return jobDTO{
		ID:            j.ID,
		JobType:       string(j.JobType),
		Status:        string(j.Status),
		ApplicationID: j.ApplicationID,
		RequisitionID: j.RequisitionID,
		Priority:      j.Priority,
		Attempts:      j.Attempts,
		MaxAttempts:   j.MaxAttempts,
		LastError:     j.LastError,
		ClaimedBy:     j.ClaimedBy,
		CreatedAt:     j.CreatedAt,
		StartedAt:     j.StartedAt,
		CompletedAt:   j.CompletedAt,
		ScheduledFor:  j.ScheduledFor,
	}
}

type applicationDTO struct {
	ID            string    `json:"id"`
	RequisitionID string    `json:"requisition_id"`
	ExternalID    string    `json:"external_id"`
	CandidateName string    `json:"candidate_name"`
	Status        string    `json:"status"`
	FailedFrom    string    `json:"failed_from,omitempty"`
	ReviewReason  string    `json:"review_reason"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{}
	code := http.StatusOK
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			status[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	writeJSON(w, code, status)
}

type loginRequest struct {
	APIKey string `json:"api_key"`
	Name   string `json:"name"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.auth.CheckAPIKey(req.APIKey) {
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}
	subject := req.Name
	if subject == "" {
		subject = "operator"
	}
	token, exp, err := s.auth.Mint(w, subject)
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("mint session")
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "expires_at": exp})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := paging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status *model.JobStatus
	if v := r.URL.Query().Get("status"); v != "" {
		st, err := model.ParseJobStatus(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = &st
	}
	jobs, err := s.queue.List(r.Context(), status, offset, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]jobDTO, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobDTO(j))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": out, "offset": offset, "limit": limit})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.queue.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make(map[string]int, len(model.AllJobStatuses))
	for _, st := range model.AllJobStatuses {
		out[string(st)] = counts[st]
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.queue.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobDTO(job))
}

type enqueueRequest struct {
	JobType       string     `json:"job_type"`
	ApplicationID string     `json:"application_id"`
	RequisitionID string     `json:"requisition_id"`
	Priority      int        `json:"priority"`
	ScheduledFor  *time.Time `json:"scheduled_for"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	jt, err := model.ParseJobType(req.JobType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in := usecase.EnqueueInput{
		JobType:       jt,
		ApplicationID: req.ApplicationID,
		RequisitionID: req.RequisitionID,
		Priority:      req.Priority,
		Source:        "manual",
	}
	if req.ScheduledFor != nil {
		in.ScheduledFor = *req.ScheduledFor
	}
	job, err := s.queue.Enqueue(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJobDTO(job))
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	job, err := s.queue.Retry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobDTO(job))
}

func (s *Server) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	n, err := s.queue.ClearCompleted(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusBadRequest, "clearing every job requires confirm=true")
		return
	}
	n, err := s.queue.ClearAll(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	logging.With(r.Context(), s.log).Warn().Int64("deleted", n).Msg("job queue cleared")
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleListFlagged(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := paging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	apps, err := s.queue.ListFlagged(r.Context(), offset, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]applicationDTO, 0, len(apps))
	for _, a := range apps {
		out = append(out, applicationDTO{
			ID:            a.ID,
			RequisitionID: a.RequisitionID,
			ExternalID:    a.ExternalID,
			CandidateName: a.CandidateName,
			Status:        string(a.Status),
			FailedFrom:    string(a.FailedFrom),
			ReviewReason:  a.ReviewReason,
			UpdatedAt:     a.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"applications": out})
}

func (s *Server) handleInterviewStarted(w http.ResponseWriter, r *http.Request) {
	if err := s.queue.InterviewStarted(r.Context(), chi.URLParam(r, "applicationID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleInterviewCompleted takes the raw transcript JSON as the request body.
func (s *Server) handleInterviewCompleted(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTranscript+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read transcript")
		return
	}
	if len(body) > maxTranscript {
		writeError(w, http.StatusRequestEntityTooLarge, "transcript too large")
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "transcript must be JSON")
		return
	}
	job, err := s.queue.InterviewCompleted(r.Context(), chi.URLParam(r, "applicationID"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toJobDTO(job))
}

// fail maps domain errors to HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrUnknownJobType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrActiveJobExists),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrJobNotRetryable),
		errors.Is(err, domain.ErrApplicationClosed),
		errors.Is(err, domain.ErrIllegalTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func paging(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	limit = defaultPageSize
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return offset, limit, nil
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
