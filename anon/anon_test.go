// Copyright 2026 The OpenTrusty Authors
// SPDX-License-Identifier: MIT

package anon

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aitema/hinschg-core/apperr"
	"github.com/aitema/hinschg-core/audit"
	"github.com/aitema/hinschg-core/casemgmt"
	"github.com/aitema/hinschg-core/crypto"
	"github.com/aitema/hinschg-core/deadline"
)

type fakeRepo struct {
	mu          sync.Mutex
	submissions map[string]*Submission
	messages    map[string][]*Message
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{submissions: map[string]*Submission{}, messages: map[string][]*Message{}}
}

func (r *fakeRepo) CreateSubmission(ctx context.Context, s *Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.submissions[s.ID] = &cp
	return nil
}

func (r *fakeRepo) GetSubmissionByReceiptCode(ctx context.Context, receiptCode string) (*Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.submissions {
		if s.ReceiptCode == receiptCode {
			cp := *s
			return &cp, nil
		}
	}
	return nil, apperr.NotFoundf("receipt code not found")
}

func (r *fakeRepo) UpdateSubmission(ctx context.Context, s *Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.submissions[s.ID]; !ok {
		return apperr.NotFoundf("submission not found")
	}
	cp := *s
	r.submissions[s.ID] = &cp
	return nil
}

func (r *fakeRepo) GetSubmissionByID(ctx context.Context, tenantID, id string) (*Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok || s.TenantID != tenantID {
		return nil, apperr.NotFoundf("submission not found")
	}
	cp := *s
	return &cp, nil
}

func (r *fakeRepo) AddMessage(ctx context.Context, m *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[m.SubmissionID] = append(r.messages[m.SubmissionID], m)
	return nil
}

func (r *fakeRepo) ListMessages(ctx context.Context, tenantID, submissionID string) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages[submissionID], nil
}

func (r *fakeRepo) DueForDeletion(ctx context.Context, tenantID string, now time.Time) ([]*Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*Submission
	for _, s := range r.submissions {
		if s.TenantID == tenantID && s.DeletionDeadline != nil && !s.DeletionDeadline.After(now) {
			cp := *s
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (r *fakeRepo) HardDelete(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok || s.TenantID != tenantID {
		return apperr.NotFoundf("submission not found")
	}
	delete(r.submissions, id)
	delete(r.messages, id)
	return nil
}

func (r *fakeRepo) DeleteByTenantID(ctx context.Context, tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.submissions {
		if s.TenantID == tenantID {
			delete(r.submissions, id)
			delete(r.messages, id)
		}
	}
	return nil
}

type fakeCaseOpener struct {
	opened []string
}

func (f *fakeCaseOpener) Open(ctx context.Context, tenantID, reportID, tenantSlug string, severity casemgmt.Severity, bounds deadline.Bounds, receivedAt time.Time) (*casemgmt.Case, error) {
	f.opened = append(f.opened, reportID)
	return &casemgmt.Case{
		ID: "case-" + reportID, TenantID: tenantID, ReportID: reportID,
		Number: tenantSlug + "-case", Status: casemgmt.StatusOffen, Severity: severity,
	}, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeCaseOpener) {
	t.Helper()
	env, err := crypto.NewEnvelope(strings.Repeat("k", 32))
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	repo := newFakeRepo()
	opener := &fakeCaseOpener{}
	limiter := NewInMemoryRateLimiter(DefaultLookupLimit, DefaultLookupWindow)
	return NewService(repo, env, opener, limiter, audit.NewSlogLogger()), repo, opener
}

func validInput() SubmitInput {
	return SubmitInput{
		TenantID:    "tenant-1",
		Description: "Ein Kollege hat wiederholt Sicherheitsvorschriften im Lager umgangen.",
		Category:    "arbeitsschutz",
		Language:    "de",
		Bounds:      deadline.DefaultBounds(),
	}
}

func TestSubmitCreatesSubmissionAndCase(t *testing.T) {
	svc, repo, opener := newTestService(t)
	ctx := context.Background()

	sub, c, err := svc.Submit(ctx, validInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(sub.ReceiptCode) != 16 {
		t.Errorf("receipt code length = %d, want 16", len(sub.ReceiptCode))
	}
	if !crypto.ValidReceiptCode(sub.ReceiptCode) {
		t.Errorf("receipt code %q is not valid", sub.ReceiptCode)
	}
	if c.Status != casemgmt.StatusOffen {
		t.Errorf("case status = %s, want offen", c.Status)
	}
	if len(opener.opened) != 1 || opener.opened[0] != sub.ID {
		t.Errorf("expected case to be opened for submission %s", sub.ID)
	}

	stored, err := repo.GetSubmissionByReceiptCode(ctx, sub.ReceiptCode)
	if err != nil {
		t.Fatalf("GetSubmissionByReceiptCode: %v", err)
	}
	if stored.CaseID != c.ID {
		t.Errorf("stored submission not linked to case: got %q, want %q", stored.CaseID, c.ID)
	}
	if stored.DescriptionCipher == "" || stored.DescriptionCipher == validInput().Description {
		t.Error("description was not encrypted at rest")
	}
}

func TestSubmitRejectsShortDescription(t *testing.T) {
	svc, _, _ := newTestService(t)
	in := validInput()
	in.Description = "too short"

	if _, _, err := svc.Submit(context.Background(), in); apperr.KindOf(err) != apperr.Validation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestLookupRoundTrips(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sub, _, err := svc.Submit(ctx, validInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got, err := svc.Lookup(ctx, crypto.FormatReceiptCode(sub.ReceiptCode))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.ID != sub.ID {
		t.Errorf("expected submission %s, got %s", sub.ID, got.ID)
	}
}

func TestLookupUnknownCodeIsNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Lookup(context.Background(), "ABCD-EFGH-JKLM-NPQR")
	if apperr.KindOf(err) != apperr.NotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestLookupMalformedCodeIsIndistinguishableFromNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Lookup(context.Background(), "not-a-real-code")
	if apperr.KindOf(err) != apperr.NotFound {
		t.Errorf("expected not found for malformed code, got %v", err)
	}
}

func TestLookupEnforcesMinimumLatency(t *testing.T) {
	svc, _, _ := newTestService(t)
	start := time.Now()
	_, _ = svc.Lookup(context.Background(), "ABCD-EFGH-JKLM-NPQR")
	if elapsed := time.Since(start); elapsed < lookupFloor {
		t.Errorf("lookup returned in %v, want at least %v", elapsed, lookupFloor)
	}
}

func TestLookupRateLimitsAfterFiveAttempts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < DefaultLookupLimit; i++ {
		if _, err := svc.Lookup(ctx, "ABCD-EFGH-JKLM-NPQR"); apperr.KindOf(err) != apperr.NotFound {
			t.Fatalf("attempt %d: expected not found, got %v", i, err)
		}
	}

	_, err := svc.Lookup(ctx, "ABCD-EFGH-JKLM-NPQR")
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind() != apperr.RateLimited {
		t.Fatalf("expected rate limited error on 6th attempt, got %v", err)
	}
	if appErr.Retry <= 0 || appErr.Retry > DefaultLookupWindow {
		t.Errorf("retry-after %v out of expected range (0, %v]", appErr.Retry, DefaultLookupWindow)
	}
}

func TestAddMessageRejectsOverlongBody(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sub, _, err := svc.Submit(ctx, validInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	_, err = svc.AddMessage(ctx, sub.TenantID, sub.ID, DirectionHandler, strings.Repeat("x", maxMessageLength+1))
	if apperr.KindOf(err) != apperr.Validation {
		t.Errorf("expected validation error for overlong message, got %v", err)
	}
}

func TestAddMessageAndListMessages(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	sub, _, err := svc.Submit(ctx, validInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	originalUpdatedAt := sub.UpdatedAt

	if _, err := svc.AddMessage(ctx, sub.TenantID, sub.ID, DirectionHandler, "Bitte um weitere Details zum Vorfall."); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	stored, err := repo.GetSubmissionByID(ctx, sub.TenantID, sub.ID)
	if err != nil {
		t.Fatalf("GetSubmissionByID: %v", err)
	}
	if !stored.UpdatedAt.After(originalUpdatedAt) {
		t.Errorf("UpdatedAt not bumped by AddMessage: before=%v after=%v", originalUpdatedAt, stored.UpdatedAt)
	}

	msgs, err := svc.Messages(ctx, sub.TenantID, sub.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].BodyCipher == "" || msgs[0].Direction != DirectionHandler {
		t.Errorf("unexpected message: %+v", msgs[0])
	}

	plaintext, err := svc.DecryptMessage(msgs[0])
	if err != nil {
		t.Fatalf("DecryptMessage: %v", err)
	}
	if plaintext != "Bitte um weitere Details zum Vorfall." {
		t.Errorf("decrypted message mismatch: %q", plaintext)
	}
}

func TestMarkArchivedStampsDeletionDeadline(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	sub, _, err := svc.Submit(ctx, validInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	archival := time.Now().Add(3 * 365 * 24 * time.Hour)
	deletion := archival.Add(30 * 24 * time.Hour)
	if err := svc.MarkArchived(ctx, sub.TenantID, sub.ID, archival, deletion); err != nil {
		t.Fatalf("MarkArchived: %v", err)
	}

	stored, err := repo.GetSubmissionByID(ctx, sub.TenantID, sub.ID)
	if err != nil {
		t.Fatalf("GetSubmissionByID: %v", err)
	}
	if stored.DeletionDeadline == nil || !stored.DeletionDeadline.Equal(deletion) {
		t.Errorf("DeletionDeadline = %v, want %v", stored.DeletionDeadline, deletion)
	}
}
