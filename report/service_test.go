// Copyright 2026 The OpenTrusty Authors
// SPDX-License-Identifier: MIT

package report

import (
	"context"
	"regexp"
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
	mu      sync.Mutex
	reports map[string]*Report
}

func newFakeRepo() *fakeRepo { return &fakeRepo{reports: map[string]*Report{}} }

func (r *fakeRepo) Create(ctx context.Context, rep *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rep
	r.reports[rep.ID] = &cp
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, tenantID, id string) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[id]
	if !ok || rep.TenantID != tenantID {
		return nil, apperr.NotFoundf("report not found")
	}
	cp := *rep
	return &cp, nil
}

func (r *fakeRepo) GetByReferenceCode(ctx context.Context, tenantID, code string) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.reports {
		if rep.TenantID == tenantID && rep.ReferenceCode == code {
			cp := *rep
			return &cp, nil
		}
	}
	return nil, apperr.NotFoundf("report not found")
}

func (r *fakeRepo) GetByAccessCode(ctx context.Context, accessCode string) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.reports {
		if rep.AccessCode == accessCode {
			cp := *rep
			return &cp, nil
		}
	}
	return nil, apperr.NotFoundf("report not found")
}

func (r *fakeRepo) Update(ctx context.Context, rep *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reports[rep.ID]; !ok {
		return apperr.NotFoundf("report not found")
	}
	cp := *rep
	r.reports[rep.ID] = &cp
	return nil
}

func (r *fakeRepo) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*Report, error) {
	return nil, nil
}

func (r *fakeRepo) DueForDeletion(ctx context.Context, tenantID string, now time.Time) ([]*Report, error) {
	return nil, nil
}

func (r *fakeRepo) HardDelete(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reports, id)
	return nil
}

func (r *fakeRepo) DeleteByTenantID(ctx context.Context, tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rep := range r.reports {
		if rep.TenantID == tenantID {
			delete(r.reports, id)
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
	return NewService(repo, env, opener, audit.NewSlogLogger()), repo, opener
}

func validInput() SubmitInput {
	return SubmitInput{
		TenantID:    "tenant-1",
		Title:       "Verdacht auf Bestechung im Einkauf",
		Description: "Ein Lieferant hat wiederholt Zahlungen an einen Einkaeufer angeboten.",
		Category:    CategoryKorruption,
		IsAnonymous: true,
		Channel:     ChannelWeb,
		Language:    "de",
		Bounds:      deadline.DefaultBounds(),
	}
}

var refCodePattern = regexp.MustCompile(`^HW-\d{4}-[A-F0-9]{4}$`)

func TestSubmitCreatesReportAndCase(t *testing.T) {
	svc, repo, opener := newTestService(t)
	ctx := context.Background()

	r, c, err := svc.Submit(ctx, validInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !refCodePattern.MatchString(r.ReferenceCode) {
		t.Errorf("reference code %q does not match expected pattern", r.ReferenceCode)
	}
	if len(r.AccessCode) < 43 {
		t.Errorf("access code too short: %d chars", len(r.AccessCode))
	}
	if c.Status != casemgmt.StatusOffen {
		t.Errorf("case status = %s, want offen", c.Status)
	}
	if len(opener.opened) != 1 || opener.opened[0] != r.ID {
		t.Errorf("expected case to be opened for report %s", r.ID)
	}

	stored, err := repo.Get(ctx, "tenant-1", r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.TitleCipher == "" || stored.TitleCipher == validInput().Title {
		t.Error("title was not encrypted at rest")
	}
}

func TestSubmitRejectsInvalidCategory(t *testing.T) {
	svc, _, _ := newTestService(t)
	in := validInput()
	in.Category = "not-a-category"

	_, _, err := svc.Submit(context.Background(), in)
	if apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("want Validation, got %v", err)
	}
}

func TestSubmitRejectsShortDescription(t *testing.T) {
	svc, _, _ := newTestService(t)
	in := validInput()
	in.Description = "too short"

	_, _, err := svc.Submit(context.Background(), in)
	if apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("want Validation, got %v", err)
	}
}

func TestRevealRoundTripsEncryptedFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	in := validInput()
	in.ReporterName = "Jordan Rivera"

	r, _, err := svc.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	dec, err := svc.Reveal(context.Background(), r)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if dec.Title != in.Title {
		t.Errorf("title = %q, want %q", dec.Title, in.Title)
	}
	if dec.ReporterName != in.ReporterName {
		t.Errorf("reporter name = %q, want %q", dec.ReporterName, in.ReporterName)
	}
}

func TestMarkArchivedStampsDeadlines(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	r, _, err := svc.Submit(ctx, validInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	archival := time.Now().Add(3 * 365 * 24 * time.Hour)
	deletion := archival.Add(30 * 24 * time.Hour)
	if err := svc.MarkArchived(ctx, r.TenantID, r.ID, archival, deletion); err != nil {
		t.Fatalf("MarkArchived: %v", err)
	}

	stored, err := repo.Get(ctx, r.TenantID, r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.ArchivalDeadline == nil || !stored.ArchivalDeadline.Equal(archival) {
		t.Errorf("ArchivalDeadline = %v, want %v", stored.ArchivalDeadline, archival)
	}
	if stored.DeletionDeadline == nil || !stored.DeletionDeadline.Equal(deletion) {
		t.Errorf("DeletionDeadline = %v, want %v", stored.DeletionDeadline, deletion)
	}
}
