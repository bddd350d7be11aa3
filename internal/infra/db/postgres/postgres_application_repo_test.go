//go:build integration

package postgres

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/infra/security"
)

func TestApplicationRepo_InsertDiscoveredIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.app(t, "D1")

	again, _ := model.NewDiscoveredApplication(f.req.ID, "D1", "Ada D1", "d1@example.com")
	inserted, err := f.apps.InsertDiscovered(ctx, nil, again)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Fatal("second discovery of the same external id must not insert")
	}
	got, err := f.apps.FindByID(ctx, nil, a.ID)
	if err != nil || got.Status != model.AppStatusNew {
		t.Fatalf("unexpected application %+v (%v)", got, err)
	}
}

func TestApplicationRepo_StatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.app(t, "T1")

	if err := f.apps.UpdateStatus(ctx, nil, a.ID, model.AppStatusNew, model.AppStatusAnalyzing); err != nil {
		t.Fatal(err)
	}
	// stale `from`
	if err := f.apps.UpdateStatus(ctx, nil, a.ID, model.AppStatusNew, model.AppStatusAnalyzing); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if err := f.apps.UpdateStatus(ctx, nil, "missing", model.AppStatusNew, model.AppStatusAnalyzing); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := f.apps.MarkFailed(ctx, nil, a.ID, model.AppStatusAnalyzing, "resume unreadable"); err != nil {
		t.Fatal(err)
	}
	flagged, err := f.apps.ListFlagged(ctx, nil, 0, 10)
	if err != nil || len(flagged) != 1 {
		t.Fatalf("expected one flagged application, got %d (%v)", len(flagged), err)
	}
	if flagged[0].Status != model.AppStatusFailed || flagged[0].FailedFrom != model.AppStatusAnalyzing {
		t.Fatalf("unexpected flagged application %+v", flagged[0])
	}

	if err := f.apps.Reopen(ctx, nil, a.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := f.apps.FindByID(ctx, nil, a.ID)
	if got.Status != model.AppStatusAnalyzing || got.NeedsReview || got.FailedFrom != "" {
		t.Fatalf("reopen should restore the prior status, got %+v", got)
	}
}

func TestApplicationRepo_Setters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.app(t, "S1")
	sent := time.Now().UTC().Truncate(time.Millisecond)

	if err := f.apps.SetResumeKey(ctx, nil, a.ID, "resumes/S1.txt"); err != nil {
		t.Fatal(err)
	}
	if err := f.apps.SetInterviewInvite(ctx, nil, a.ID, "tok-1", sent); err != nil {
		t.Fatal(err)
	}
	if err := f.apps.SetReportDocument(ctx, nil, a.ID, "doc-9"); err != nil {
		t.Fatal(err)
	}
	got, err := f.apps.FindByID(ctx, nil, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ResumeKey != "resumes/S1.txt" || got.InterviewToken != "tok-1" || got.ReportDocumentID != "doc-9" {
		t.Fatalf("unexpected application %+v", got)
	}
	if got.InterviewSentAt == nil || !got.InterviewSentAt.Equal(sent) {
		t.Fatalf("interview sent at = %v, want %v", got.InterviewSentAt, sent)
	}
	if err := f.apps.Flag(ctx, nil, "missing", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestArtifactStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.store.Get(ctx, "analysis/x.json"); !errors.Is(err, domain.ErrArtifactMissing) {
		t.Fatalf("expected ErrArtifactMissing, got %v", err)
	}
	if err := f.store.Put(ctx, "analysis/x.json", []byte(`{"score":1}`), "application/json"); err != nil {
		t.Fatal(err)
	}
	// overwrite
	if err := f.store.Put(ctx, "analysis/x.json", []byte(`{"score":2}`), "application/json"); err != nil {
		t.Fatal(err)
	}
	b, err := f.store.Get(ctx, "analysis/x.json")
	if err != nil || string(b) != `{"score":2}` {
		t.Fatalf("unexpected content %q (%v)", b, err)
	}
	ok, err := f.store.Exists(ctx, "analysis/x.json")
	if err != nil || !ok {
		t.Fatalf("expected artifact to exist (%v)", err)
	}
}

func TestArtifactStore_Encryption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	enc, err := security.NewEncryptionService("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}

	// written before a key was configured
	if err := f.store.Put(ctx, "transcripts/old.json", []byte(`{"turns":[]}`), "application/json"); err != nil {
		t.Fatal(err)
	}
	sealed := NewArtifactStore(testPool).WithEncryption(enc)
	secret := []byte(`{"name":"Ada","email":"ada@example.com"}`)
	if err := sealed.Put(ctx, "resumes/ada.json", secret, "application/json"); err != nil {
		t.Fatal(err)
	}

	var raw []byte
	var size int
	if err := testPool.QueryRow(ctx, `SELECT content, size_bytes FROM artifacts WHERE key = $1`, "resumes/ada.json").Scan(&raw, &size); err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(raw, []byte("ada@example.com")) {
		t.Fatal("content stored in plaintext")
	}
	if size != len(secret) {
		t.Errorf("size_bytes = %d, want plaintext size %d", size, len(secret))
	}

	got, err := sealed.Get(ctx, "resumes/ada.json")
	if err != nil || !bytes.Equal(got, secret) {
		t.Fatalf("decrypt: %q (%v)", got, err)
	}
	if got, err := sealed.Get(ctx, "transcripts/old.json"); err != nil || string(got) != `{"turns":[]}` {
		t.Fatalf("plaintext row unreadable: %q (%v)", got, err)
	}
	if _, err := f.store.Get(ctx, "resumes/ada.json"); domain.ClassifyError(err) != domain.FailureFatal {
		t.Fatalf("reading a sealed row without a key should be fatal, got %v", err)
	}

	// a row moved under another key fails authentication
	if _, err := testPool.Exec(ctx, `UPDATE artifacts SET key = 'resumes/eve.json' WHERE key = 'resumes/ada.json'`); err != nil {
		t.Fatal(err)
	}
	if _, err := sealed.Get(ctx, "resumes/eve.json"); err == nil {
		t.Fatal("expected swapped row to fail")
	}
}

func TestRequisitionRepo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := f.reqs.MarkSynced(ctx, nil, f.req.ID, now); err != nil {
		t.Fatal(err)
	}
	got, err := f.reqs.FindByID(ctx, nil, f.req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastSyncedAt == nil || !got.LastSyncedAt.Equal(now) {
		t.Fatalf("last synced = %v, want %v", got.LastSyncedAt, now)
	}

	inactive := &model.Requisition{ID: "req-2", ExternalID: "EXT-REQ-2", Active: false}
	if err := f.reqs.Save(ctx, nil, inactive); err != nil {
		t.Fatal(err)
	}
	active, err := f.reqs.ListActive(ctx, nil)
	if err != nil || len(active) != 1 || active[0].ID != f.req.ID {
		t.Fatalf("expected only the active requisition, got %v (%v)", active, err)
	}
}
