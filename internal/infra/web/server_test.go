//go:build !integration

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// ---- minimal QueueUseCase mock ----
type mockQueue struct {
	usecase.QueueUseCase
	jobs       map[string]*model.Job
	enqueueErr error
	lastInput  usecase.EnqueueInput
	clearedAll bool
	transcript []byte
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: map[string]*model.Job{}}
}

func (m *mockQueue) Enqueue(ctx context.Context, in usecase.EnqueueInput) (*model.Job, error) {
	m.lastInput = in
	if m.enqueueErr != nil {
		return nil, m.enqueueErr
	}
	j, err := model.NewJob(in.JobType, in.ApplicationID, in.RequisitionID, in.Priority, in.ScheduledFor, 5)
	if err != nil {
		return nil, err
	}
	m.jobs[j.ID] = j
	return j, nil
}

func (m *mockQueue) Get(ctx context.Context, id string) (*model.Job, error) {
	if j, ok := m.jobs[id]; ok {
		return j, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockQueue) List(ctx context.Context, status *model.JobStatus, offset, limit int) ([]*model.Job, error) {
	var out []*model.Job
	for _, j := range m.jobs {
		if status == nil || j.Status == *status {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *mockQueue) Stats(ctx context.Context) (map[model.JobStatus]int, error) {
	out := map[model.JobStatus]int{}
	for _, j := range m.jobs {
		out[j.Status]++
	}
	return out, nil
}

func (m *mockQueue) Retry(ctx context.Context, id string) (*model.Job, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !j.Status.Retryable() {
		return nil, domain.ErrJobNotRetryable
	}
	j.Status = model.JobStatusPending
	return j, nil
}

func (m *mockQueue) ClearAll(ctx context.Context) (int64, error) {
	n := int64(len(m.jobs))
	m.jobs = map[string]*model.Job{}
	m.clearedAll = true
	return n, nil
}

func (m *mockQueue) InterviewCompleted(ctx context.Context, applicationID string, transcript []byte) (*model.Job, error) {
	m.transcript = transcript
	return model.NewJob(model.JobTypeEvaluate, applicationID, "", 0, time.Time{}, 5)
}

const (
	testSecret = "test-operator-jwt-secret"
	testAPIKey = "test-operator-key"
)

func newTestServer(q usecase.QueueUseCase) (*Server, http.Handler) {
	auth := NewAuthManager(testSecret, testAPIKey, false, "", time.Minute)
	s := NewServer(q, auth, map[string]HealthCheck{
		"postgres": func(ctx context.Context) error { return nil },
	}, newTestLogger())
	return s, s.Router()
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(`{"api_key":"`+testAPIKey+`","name":"ops"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil || body.Token == "" {
		t.Fatalf("login: no token in response (%v)", err)
	}
	return body.Token
}

func do(h http.Handler, token, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAuth(t *testing.T) {
	_, h := newTestServer(newMockQueue())

	t.Run("no credentials -> 401", func(t *testing.T) {
		if rr := do(h, "", http.MethodGet, "/api/v1/jobs", nil); rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("wrong api key -> 401", func(t *testing.T) {
		rr := do(h, "", http.MethodPost, "/api/v1/login", strings.NewReader(`{"api_key":"nope"}`))
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("forged token -> 401", func(t *testing.T) {
		other := NewAuthManager("another-secret", testAPIKey, false, "", time.Minute)
		rr := httptest.NewRecorder()
		tok, _, err := other.Mint(rr, "mallory")
		if err != nil {
			t.Fatal(err)
		}
		if rr := do(h, tok, http.MethodGet, "/api/v1/jobs", nil); rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("session cookie is accepted", func(t *testing.T) {
		rr := do(h, "", http.MethodPost, "/api/v1/login", strings.NewReader(`{"api_key":"`+testAPIKey+`"}`))
		cookies := rr.Result().Cookies()
		if len(cookies) == 0 || cookies[0].Name != "operator_session" || !cookies[0].HttpOnly {
			t.Fatalf("expected an http-only session cookie, got %+v", cookies)
		}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		req.AddCookie(cookies[0])
		out := httptest.NewRecorder()
		h.ServeHTTP(out, req)
		if out.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", out.Code)
		}
	})

	t.Run("unconfigured auth refuses everything", func(t *testing.T) {
		s := NewServer(newMockQueue(), NewAuthManager("", "", false, "", time.Minute), nil, newTestLogger())
		if rr := do(s.Router(), "", http.MethodGet, "/api/v1/jobs", nil); rr.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rr.Code)
		}
	})
}

func TestJobRoutes(t *testing.T) {
	q := newMockQueue()
	_, h := newTestServer(q)
	tok := login(t, h)

	t.Run("enqueue", func(t *testing.T) {
		rr := do(h, tok, http.MethodPost, "/api/v1/jobs", strings.NewReader(`{"job_type":"analyze","application_id":"app-1","priority":2}`))
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
		}
		if q.lastInput.Source != "manual" || q.lastInput.JobType != model.JobTypeAnalyze || q.lastInput.Priority != 2 {
			t.Errorf("unexpected input %+v", q.lastInput)
		}
	})

	t.Run("unknown job type -> 400", func(t *testing.T) {
		rr := do(h, tok, http.MethodPost, "/api/v1/jobs", strings.NewReader(`{"job_type":"teleport","application_id":"app-1"}`))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("active job conflict -> 409", func(t *testing.T) {
		q.enqueueErr = domain.ErrActiveJobExists
		defer func() { q.enqueueErr = nil }()
		rr := do(h, tok, http.MethodPost, "/api/v1/jobs", strings.NewReader(`{"job_type":"analyze","application_id":"app-1"}`))
		if rr.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rr.Code)
		}
	})

	t.Run("get unknown -> 404", func(t *testing.T) {
		if rr := do(h, tok, http.MethodGet, "/api/v1/jobs/missing", nil); rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
	})

	t.Run("retry of a pending job -> 409", func(t *testing.T) {
		var id string
		for k := range q.jobs {
			id = k
		}
		if rr := do(h, tok, http.MethodPost, "/api/v1/jobs/"+id+"/retry", nil); rr.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rr.Code)
		}
	})

	t.Run("list with bad status -> 400", func(t *testing.T) {
		if rr := do(h, tok, http.MethodGet, "/api/v1/jobs?status=sleeping", nil); rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("stats reports every status", func(t *testing.T) {
		rr := do(h, tok, http.MethodGet, "/api/v1/jobs/stats", nil)
		var out map[string]int
		if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		if len(out) != len(model.AllJobStatuses) || out["pending"] != 1 {
			t.Fatalf("unexpected stats %v", out)
		}
	})

	t.Run("clear all needs confirmation", func(t *testing.T) {
		if rr := do(h, tok, http.MethodDelete, "/api/v1/jobs", nil); rr.Code != http.StatusBadRequest || q.clearedAll {
			t.Fatalf("expected 400 without clearing, got %d", rr.Code)
		}
		if rr := do(h, tok, http.MethodDelete, "/api/v1/jobs?confirm=true", nil); rr.Code != http.StatusOK || !q.clearedAll {
			t.Fatalf("expected clear, got %d", rr.Code)
		}
	})
}

func TestInterviewCompleted(t *testing.T) {
	q := newMockQueue()
	_, h := newTestServer(q)
	tok := login(t, h)

	rr := do(h, tok, http.MethodPost, "/api/v1/interviews/app-9/completed", bytes.NewBufferString(`not json`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid transcript, got %d", rr.Code)
	}

	transcript := `{"turns":[{"speaker":"candidate","text":"hello"}]}`
	rr = do(h, tok, http.MethodPost, "/api/v1/interviews/app-9/completed", strings.NewReader(transcript))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if string(q.transcript) != transcript {
		t.Errorf("transcript not forwarded: %q", q.transcript)
	}
}

func TestHealthAndTraceID(t *testing.T) {
	_, h := newTestServer(newMockQueue())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") != "trace-123" {
		t.Errorf("trace id not echoed")
	}

	s := NewServer(newMockQueue(), NewAuthManager(testSecret, testAPIKey, false, "", time.Minute), map[string]HealthCheck{
		"redis": func(ctx context.Context) error { return context.DeadlineExceeded },
	}, newTestLogger())
	if rr := do(s.Router(), "", http.MethodGet, "/health", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
