//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/domain/ports/adapter"
	"candidate-screening/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// =============================
// In-memory store
// =============================

// memStore backs all fake repositories. MockTxManager snapshots it so a failed
// transaction leaves no trace, like the Postgres implementation.
type memStore struct {
	mu        sync.Mutex
	jobs      map[string]*model.Job
	apps      map[string]*model.Application
	reqs      map[string]*model.Requisition
	artifacts map[string][]byte

	// hooks
	UpdateStatusErr  error
	SetReportDocErrs []error
}

func newMemStore() *memStore {
	return &memStore{
		jobs:      map[string]*model.Job{},
		apps:      map[string]*model.Application{},
		reqs:      map[string]*model.Requisition{},
		artifacts: map[string][]byte{},
	}
}

type memSnapshot struct {
	jobs      map[string]model.Job
	apps      map[string]model.Application
	reqs      map[string]model.Requisition
	artifacts map[string][]byte
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		jobs:      map[string]model.Job{},
		apps:      map[string]model.Application{},
		reqs:      map[string]model.Requisition{},
		artifacts: map[string][]byte{},
	}
	for k, v := range s.jobs {
		snap.jobs[k] = *v
	}
	for k, v := range s.apps {
		snap.apps[k] = *v
	}
	for k, v := range s.reqs {
		snap.reqs[k] = *v
	}
	for k, v := range s.artifacts {
		snap.artifacts[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = map[string]*model.Job{}
	for k, v := range snap.jobs {
		v := v
		s.jobs[k] = &v
	}
	s.apps = map[string]*model.Application{}
	for k, v := range snap.apps {
		v := v
		s.apps[k] = &v
	}
	s.reqs = map[string]*model.Requisition{}
	for k, v := range snap.reqs {
		v := v
		s.reqs[k] = &v
	}
	s.artifacts = snap.artifacts
}

// job returns a copy of the stored job.
func (s *memStore) job(id string) *model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

func (s *memStore) app(id string) *model.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

func (s *memStore) jobsFor(appID string) []*model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Job
	for _, j := range s.jobs {
		if j.AppID() == appID {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

func (s *memStore) activeCount(appID string) int {
	n := 0
	for _, j := range s.jobsFor(appID) {
		if j.Status.IsActive() {
			n++
		}
	}
	return n
}

func (s *memStore) addRequisition(r *model.Requisition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.reqs[r.ID] = &cp
}

func (s *memStore) addApplication(a *model.Application) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.apps[a.ID] = &cp
}

func (s *memStore) putArtifact(key string, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[key] = b
}

// seed creates an active requisition and one application in the given status.
func (s *memStore) seed(status model.ApplicationStatus) (*model.Requisition, *model.Application) {
	req := &model.Requisition{ID: "req-1", ExternalID: "REQ-EXT-1", Title: "Backend Engineer", Active: true, CreatedAt: time.Now()}
	s.addRequisition(req)
	app, _ := model.NewDiscoveredApplication(req.ID, "APP-EXT-1", "Ada Lovelace", "ada@example.com")
	app.Status = status
	s.addApplication(app)
	return req, app
}

// ---- jobs ----

type memJobRepo struct{ s *memStore }

var _ repository.JobRepository = (*memJobRepo)(nil)

func (r *memJobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, dup := r.s.jobs[job.ID]; dup {
		return domain.ErrAlreadyExists
	}
	if job.ApplicationID != nil && job.Status.IsActive() {
		for _, j := range r.s.jobs {
			if j.AppID() == job.AppID() && j.Status.IsActive() {
				return domain.ErrActiveJobExists
			}
		}
	}
	cp := *job
	r.s.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) ClaimNext(ctx context.Context, workerID string, now time.Time) (*model.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *model.Job
	for _, j := range r.s.jobs {
		if j.Status != model.JobStatusPending || j.ScheduledFor.After(now) {
			continue
		}
		if best == nil || j.Priority > best.Priority ||
			(j.Priority == best.Priority && (j.CreatedAt.Before(best.CreatedAt) ||
				(j.CreatedAt.Equal(best.CreatedAt) && j.ID < best.ID))) {
			best = j
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	best.Start(workerID, now)
	cp := *best
	return &cp, nil
}

func (r *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	if j := r.s.job(id); j != nil {
		return j, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memJobRepo) UpdateLeased(ctx context.Context, tx repository.Tx, job *model.Job, workerID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.jobs[job.ID]
	if !ok || cur.Status != model.JobStatusRunning || cur.ClaimedBy != workerID {
		return domain.ErrLeaseLost
	}
	cp := *job
	r.s.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) ListStale(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Job
	for _, j := range r.s.jobs {
		if j.Status == model.JobStatusRunning && j.StartedAt != nil && j.StartedAt.Before(cutoff) {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].StartedAt.Before(*out[k].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memJobRepo) Requeue(ctx context.Context, tx repository.Tx, id string, now time.Time) (*model.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !j.Status.Retryable() {
		return nil, domain.ErrJobNotRetryable
	}
	for _, o := range r.s.jobs {
		if o.ID != j.ID && j.ApplicationID != nil && o.AppID() == j.AppID() && o.Status.IsActive() {
			return nil, domain.ErrActiveJobExists
		}
	}
	j.Reset(now)
	cp := *j
	return &cp, nil
}

func (r *memJobRepo) ListByStatus(ctx context.Context, tx repository.Tx, status *model.JobStatus, offset, limit int) ([]*model.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Job
	for _, j := range r.s.jobs {
		if status == nil || j.Status == *status {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID > out[k].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memJobRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.JobStatus]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[model.JobStatus]int{}
	for _, st := range model.AllJobStatuses {
		out[st] = 0
	}
	for _, j := range r.s.jobs {
		out[j.Status]++
	}
	return out, nil
}

func (r *memJobRepo) HasActiveSync(ctx context.Context, tx repository.Tx, requisitionID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, j := range r.s.jobs {
		if j.JobType == model.JobTypeSync && j.ReqID() == requisitionID && j.Status.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (r *memJobRepo) DeleteByStatus(ctx context.Context, tx repository.Tx, status model.JobStatus) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, j := range r.s.jobs {
		if j.Status == status {
			delete(r.s.jobs, id)
			n++
		}
	}
	return n, nil
}

func (r *memJobRepo) DeleteAll(ctx context.Context, tx repository.Tx) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := int64(len(r.s.jobs))
	r.s.jobs = map[string]*model.Job{}
	return n, nil
}

// ---- applications ----

type memAppRepo struct{ s *memStore }

var _ repository.ApplicationRepository = (*memAppRepo)(nil)

func (r *memAppRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Application, error) {
	if a := r.s.app(id); a != nil {
		return a, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memAppRepo) InsertDiscovered(ctx context.Context, tx repository.Tx, app *model.Application) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.apps {
		if a.RequisitionID == app.RequisitionID && a.ExternalID == app.ExternalID {
			return false, nil
		}
	}
	cp := *app
	r.s.apps[app.ID] = &cp
	return true, nil
}

func (r *memAppRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, from, to model.ApplicationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.UpdateStatusErr != nil {
		return r.s.UpdateStatusErr
	}
	a, ok := r.s.apps[id]
	if !ok {
		return domain.ErrNotFound
	}
	if a.Status != from {
		return domain.ErrIllegalTransition
	}
	a.Status = to
	return nil
}

func (r *memAppRepo) MarkFailed(ctx context.Context, tx repository.Tx, id string, from model.ApplicationStatus, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.apps[id]
	if !ok {
		return domain.ErrNotFound
	}
	if a.Status != from {
		return domain.ErrIllegalTransition
	}
	a.Status, a.FailedFrom, a.NeedsReview, a.ReviewReason = model.AppStatusFailed, from, true, reason
	return nil
}

func (r *memAppRepo) Reopen(ctx context.Context, tx repository.Tx, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.apps[id]
	if !ok {
		return domain.ErrNotFound
	}
	if a.Status == model.AppStatusFailed && a.FailedFrom != "" {
		a.Status = a.FailedFrom
	}
	a.FailedFrom, a.NeedsReview, a.ReviewReason = "", false, ""
	return nil
}

func (r *memAppRepo) Flag(ctx context.Context, tx repository.Tx, id, reason string) error {
	return r.mutate(id, func(a *model.Application) { a.NeedsReview, a.ReviewReason = true, reason })
}

func (r *memAppRepo) SetResumeKey(ctx context.Context, tx repository.Tx, id, key string) error {
	return r.mutate(id, func(a *model.Application) { a.ResumeKey = key })
}

func (r *memAppRepo) SetInterviewInvite(ctx context.Context, tx repository.Tx, id, token string, sentAt time.Time) error {
	return r.mutate(id, func(a *model.Application) { a.InterviewToken, a.InterviewSentAt = token, &sentAt })
}

func (r *memAppRepo) SetReportDocument(ctx context.Context, tx repository.Tx, id, documentID string) error {
	r.s.mu.Lock()
	if len(r.s.SetReportDocErrs) > 0 {
		err := r.s.SetReportDocErrs[0]
		r.s.SetReportDocErrs = r.s.SetReportDocErrs[1:]
		r.s.mu.Unlock()
		if err != nil {
			return err
		}
	} else {
		r.s.mu.Unlock()
	}
	return r.mutate(id, func(a *model.Application) { a.ReportDocumentID = documentID })
}

func (r *memAppRepo) ListFlagged(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Application
	for _, a := range r.s.apps {
		if a.NeedsReview {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAppRepo) mutate(id string, fn func(a *model.Application)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.apps[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(a)
	return nil
}

// ---- requisitions ----

type memReqRepo struct{ s *memStore }

var _ repository.RequisitionRepository = (*memReqRepo)(nil)

func (r *memReqRepo) Save(ctx context.Context, tx repository.Tx, req *model.Requisition) error {
	r.s.addRequisition(req)
	return nil
}

func (r *memReqRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Requisition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.reqs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (r *memReqRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Requisition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Requisition
	for _, req := range r.s.reqs {
		if req.Active {
			cp := *req
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (r *memReqRepo) MarkSynced(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.reqs[id]
	if !ok {
		return domain.ErrNotFound
	}
	req.LastSyncedAt = &at
	return nil
}

// ---- artifacts ----

type memArtifacts struct {
	s      *memStore
	GetErr error
}

var _ repository.ArtifactStore = (*memArtifacts)(nil)

func (m *memArtifacts) Put(ctx context.Context, key string, content []byte, contentType string) error {
	m.s.putArtifact(key, content)
	return nil
}

func (m *memArtifacts) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	b, ok := m.s.artifacts[key]
	if !ok {
		return nil, domain.ErrArtifactMissing
	}
	return b, nil
}

func (m *memArtifacts) Exists(ctx context.Context, key string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.artifacts[key]
	return ok, nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	store      *memStore
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn against the in-memory store and restores the snapshot when fn fails.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	if m.store == nil {
		return fn(ctx, repository.NoTX)
	}
	snap := m.store.snapshot()
	if err := fn(ctx, repository.NoTX); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// =============================
// Adapters
// =============================

type MockTMS struct {
	mu        sync.Mutex
	Records   []adapter.ApplicationRecord
	FetchErr  error
	Resume    []byte
	ResumeErr error
	Documents map[string]string // filename -> id
	Uploads   int
	UploadErr error
	Lookbacks []time.Duration
}

var _ adapter.TMSClient = (*MockTMS)(nil)

func (m *MockTMS) FetchNewApplications(ctx context.Context, reqExtID string, lookback time.Duration) ([]adapter.ApplicationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookbacks = append(m.Lookbacks, lookback)
	return m.Records, m.FetchErr
}

func (m *MockTMS) FetchResume(ctx context.Context, appExtID string) ([]byte, error) {
	return m.Resume, m.ResumeErr
}

func (m *MockTMS) FindDocument(ctx context.Context, appExtID, filename string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.Documents[filename]
	return id, ok, nil
}

func (m *MockTMS) UploadDocument(ctx context.Context, appExtID string, content []byte, filename string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	m.Uploads++
	if m.Documents == nil {
		m.Documents = map[string]string{}
	}
	id := "doc-" + filename
	m.Documents[filename] = id
	return id, nil
}

type MockAI struct {
	Results map[string]json.RawMessage // template -> raw answer
	Err     error
	Calls   []adapter.PromptRequest
}

var _ adapter.AIClient = (*MockAI)(nil)

func (m *MockAI) RunStructuredPrompt(ctx context.Context, req adapter.PromptRequest) (*adapter.StructuredResult, error) {
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	raw, ok := m.Results[req.Template]
	if !ok {
		return nil, errors.New("no canned answer")
	}
	return &adapter.StructuredResult{Raw: raw, Model: "test-model", Provider: "test"}, nil
}

type sentMail struct{ To, Subject, Body string }

type MockEmail struct {
	Sent []sentMail
	Err  error
}

var _ adapter.EmailClient = (*MockEmail)(nil)

func (m *MockEmail) Send(ctx context.Context, to, subject, htmlBody string) (adapter.DeliveryResult, error) {
	if m.Err != nil {
		return adapter.DeliveryResult{}, m.Err
	}
	m.Sent = append(m.Sent, sentMail{To: to, Subject: subject, Body: htmlBody})
	return adapter.DeliveryResult{MessageID: "msg-1"}, nil
}

type MockAlerter struct {
	mu     sync.Mutex
	Alerts []string
}

var _ adapter.OperatorAlerter = (*MockAlerter)(nil)

func (m *MockAlerter) Alert(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Alerts = append(m.Alerts, text)
	return nil
}
