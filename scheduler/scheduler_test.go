// Copyright 2026 The OpenTrusty Authors
// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aitema/hinschg-core/anon"
	"github.com/aitema/hinschg-core/apperr"
	"github.com/aitema/hinschg-core/audit"
	"github.com/aitema/hinschg-core/casemgmt"
	"github.com/aitema/hinschg-core/deadline"
	"github.com/aitema/hinschg-core/notify"
	"github.com/aitema/hinschg-core/report"
	"github.com/aitema/hinschg-core/tenant"
)

// fakeLocker always grants the lock, as if this process were the only
// scheduler instance running.
type fakeLocker struct{}

type fakeUnlock struct{}

func (fakeUnlock) Unlock(ctx context.Context) error { return nil }

func (fakeLocker) TryAdvisoryLock(ctx context.Context, key int64) (Unlocker, bool, error) {
	return fakeUnlock{}, true, nil
}

type fakeTenantRepo struct {
	tenants []*tenant.Tenant
}

func (f *fakeTenantRepo) Create(ctx context.Context, t *tenant.Tenant) error { return nil }
func (f *fakeTenantRepo) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	return nil, nil
}
func (f *fakeTenantRepo) GetBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	return nil, nil
}
func (f *fakeTenantRepo) Update(ctx context.Context, t *tenant.Tenant) error { return nil }
func (f *fakeTenantRepo) Delete(ctx context.Context, id string) error       { return nil }
func (f *fakeTenantRepo) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	if offset >= len(f.tenants) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.tenants) {
		end = len(f.tenants)
	}
	return f.tenants[offset:end], nil
}

type fakeCaseRepo struct {
	mu    sync.Mutex
	cases map[string]*casemgmt.Case
}

func newFakeCaseRepo() *fakeCaseRepo {
	return &fakeCaseRepo{cases: map[string]*casemgmt.Case{}}
}

func (f *fakeCaseRepo) Create(ctx context.Context, c *casemgmt.Case) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cases[c.ID] = c
	return nil
}
func (f *fakeCaseRepo) Get(ctx context.Context, tenantID, id string) (*casemgmt.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cases[id]
	if !ok {
		return nil, apperr.NotFoundf("case not found")
	}
	return c, nil
}
func (f *fakeCaseRepo) GetByReportID(ctx context.Context, tenantID, reportID string) (*casemgmt.Case, error) {
	return nil, nil
}
func (f *fakeCaseRepo) GetForUpdate(ctx context.Context, tenantID, id string) (*casemgmt.Case, error) {
	return f.Get(ctx, tenantID, id)
}
func (f *fakeCaseRepo) Update(ctx context.Context, c *casemgmt.Case) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cases[c.ID] = c
	return nil
}
func (f *fakeCaseRepo) AppendEvent(ctx context.Context, e *casemgmt.CaseEvent) error { return nil }
func (f *fakeCaseRepo) ListByStatus(ctx context.Context, tenantID string, status casemgmt.Status) ([]*casemgmt.Case, error) {
	return nil, nil
}
func (f *fakeCaseRepo) ListForwardedToOmbudsperson(ctx context.Context, tenantID string) ([]*casemgmt.Case, error) {
	return nil, nil
}
func (f *fakeCaseRepo) CountForTenantSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, c := range f.cases {
		if c.TenantID == tenantID && !c.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}
func (f *fakeCaseRepo) DeleteByTenantID(ctx context.Context, tenantID string) error { return nil }

type fakeDeadlineRepo struct {
	mu        sync.Mutex
	deadlines map[string]*deadline.Deadline
}

func newFakeDeadlineRepo() *fakeDeadlineRepo {
	return &fakeDeadlineRepo{deadlines: map[string]*deadline.Deadline{}}
}

func (f *fakeDeadlineRepo) Create(ctx context.Context, d *deadline.Deadline) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadlines[d.ID] = d
	return nil
}
func (f *fakeDeadlineRepo) Get(ctx context.Context, tenantID, id string) (*deadline.Deadline, error) {
	return f.deadlines[id], nil
}
func (f *fakeDeadlineRepo) GetOpenByCase(ctx context.Context, tenantID, caseID string, t deadline.Type) (*deadline.Deadline, error) {
	return nil, nil
}
func (f *fakeDeadlineRepo) MarkDone(ctx context.Context, tenantID, id string, doneAt time.Time) error {
	return nil
}
func (f *fakeDeadlineRepo) MarkEscalated(ctx context.Context, tenantID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.deadlines[id]; ok {
		d.Escalated = true
	}
	return nil
}
func (f *fakeDeadlineRepo) MarkReminderSent(ctx context.Context, tenantID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.deadlines[id]; ok {
		d.ReminderSent = true
	}
	return nil
}
func (f *fakeDeadlineRepo) DueForEscalation(ctx context.Context, tenantID string, now time.Time) ([]*deadline.Deadline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*deadline.Deadline
	for _, d := range f.deadlines {
		if d.TenantID == tenantID && !d.Escalated && d.DoneAt == nil && !now.Before(d.DueAt) {
			out = append(out, d)
		}
	}
	return out, nil
}
func (f *fakeDeadlineRepo) DueForReminder(ctx context.Context, tenantID string, now time.Time, horizon time.Duration) ([]*deadline.Deadline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*deadline.Deadline
	for _, d := range f.deadlines {
		if d.TenantID == tenantID && !d.ReminderSent && d.DoneAt == nil && d.DueAt.Sub(now) <= horizon {
			out = append(out, d)
		}
	}
	return out, nil
}
func (f *fakeDeadlineRepo) DeleteByTenantID(ctx context.Context, tenantID string) error { return nil }

type fakeReportRepo struct {
	mu      sync.Mutex
	reports map[string]*report.Report
	deleted []string
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{reports: map[string]*report.Report{}}
}

func (f *fakeReportRepo) Create(ctx context.Context, r *report.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[r.ID] = r
	return nil
}
func (f *fakeReportRepo) Get(ctx context.Context, tenantID, id string) (*report.Report, error) {
	return f.reports[id], nil
}
func (f *fakeReportRepo) GetByReferenceCode(ctx context.Context, tenantID, referenceCode string) (*report.Report, error) {
	return nil, nil
}
func (f *fakeReportRepo) GetByAccessCode(ctx context.Context, accessCode string) (*report.Report, error) {
	return nil, nil
}
func (f *fakeReportRepo) Update(ctx context.Context, r *report.Report) error { return nil }
func (f *fakeReportRepo) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*report.Report, error) {
	return nil, nil
}
func (f *fakeReportRepo) DueForDeletion(ctx context.Context, tenantID string, now time.Time) ([]*report.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*report.Report
	for _, r := range f.reports {
		if r.TenantID == tenantID && r.DeletionDeadline != nil && !now.Before(*r.DeletionDeadline) {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeReportRepo) HardDelete(ctx context.Context, tenantID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reports, id)
	f.deleted = append(f.deleted, id)
	return nil
}
func (f *fakeReportRepo) DeleteByTenantID(ctx context.Context, tenantID string) error { return nil }

type fakeAnonRepo struct {
	mu          sync.Mutex
	submissions map[string]*anon.Submission
	deleted     []string
}

func newFakeAnonRepo() *fakeAnonRepo {
	return &fakeAnonRepo{submissions: map[string]*anon.Submission{}}
}

func (f *fakeAnonRepo) CreateSubmission(ctx context.Context, s *anon.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions[s.ID] = s
	return nil
}
func (f *fakeAnonRepo) GetSubmissionByReceiptCode(ctx context.Context, receiptCode string) (*anon.Submission, error) {
	return nil, nil
}
func (f *fakeAnonRepo) GetSubmissionByID(ctx context.Context, tenantID, id string) (*anon.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.submissions[id]; ok {
		return s, nil
	}
	return nil, apperr.NotFoundf("submission not found")
}
func (f *fakeAnonRepo) UpdateSubmission(ctx context.Context, s *anon.Submission) error { return nil }
func (f *fakeAnonRepo) AddMessage(ctx context.Context, m *anon.Message) error          { return nil }
func (f *fakeAnonRepo) ListMessages(ctx context.Context, tenantID, submissionID string) ([]*anon.Message, error) {
	return nil, nil
}
func (f *fakeAnonRepo) DueForDeletion(ctx context.Context, tenantID string, now time.Time) ([]*anon.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*anon.Submission
	for _, s := range f.submissions {
		if s.TenantID == tenantID && s.DeletionDeadline != nil && !now.Before(*s.DeletionDeadline) {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *fakeAnonRepo) HardDelete(ctx context.Context, tenantID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.submissions, id)
	f.deleted = append(f.deleted, id)
	return nil
}
func (f *fakeAnonRepo) DeleteByTenantID(ctx context.Context, tenantID string) error { return nil }

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, m notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeTenantRepo, *fakeCaseRepo, *fakeDeadlineRepo, *fakeReportRepo, *fakeAnonRepo, *fakeDispatcher) {
	t.Helper()
	tenants := &fakeTenantRepo{tenants: []*tenant.Tenant{{ID: "tenant-1"}}}
	cases := newFakeCaseRepo()
	deadlines := newFakeDeadlineRepo()
	reports := newFakeReportRepo()
	anonSubs := newFakeAnonRepo()
	dispatcher := &fakeDispatcher{}
	caseSvc := casemgmt.NewService(cases, deadlines, audit.NewSlogLogger())

	svc := NewService(fakeLocker{}, tenants, deadlines, caseSvc, reports, anonSubs, dispatcher, audit.NewSlogLogger(), time.Minute)
	return svc, tenants, cases, deadlines, reports, anonSubs, dispatcher
}

func TestRunOnceEscalatesOverdueCases(t *testing.T) {
	svc, _, cases, deadlines, _, _, dispatcher := newTestService(t)
	ctx := context.Background()

	c := &casemgmt.Case{ID: "case-1", TenantID: "tenant-1", Status: casemgmt.StatusInErmittlung, Assignee: "handler-1"}
	if err := cases.Create(ctx, c); err != nil {
		t.Fatalf("Create case: %v", err)
	}
	d := &deadline.Deadline{ID: "deadline-1", TenantID: "tenant-1", CaseID: "case-1", Type: deadline.TypeFeedback3m, DueAt: time.Now().Add(-time.Hour)}
	if err := deadlines.Create(ctx, d); err != nil {
		t.Fatalf("Create deadline: %v", err)
	}

	if err := svc.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	got, _ := cases.Get(ctx, "tenant-1", "case-1")
	if got.Status != casemgmt.StatusEskaliert {
		t.Errorf("expected case escalated, got status %q", got.Status)
	}
	if !deadlines.deadlines["deadline-1"].Escalated {
		t.Error("expected deadline marked escalated")
	}

	if len(dispatcher.sent) != 1 {
		t.Fatalf("expected 1 escalation notification dispatched, got %d", len(dispatcher.sent))
	}
	if dispatcher.sent[0].Kind != notify.KindEscalated {
		t.Errorf("expected escalation kind, got %q", dispatcher.sent[0].Kind)
	}
	if dispatcher.sent[0].Recipient != "handler-1" {
		t.Errorf("expected notification addressed to assignee, got %q", dispatcher.sent[0].Recipient)
	}
}

func TestRunOnceSendsReminders(t *testing.T) {
	svc, _, _, deadlines, _, _, dispatcher := newTestService(t)
	ctx := context.Background()

	d := &deadline.Deadline{ID: "deadline-2", TenantID: "tenant-1", CaseID: "case-2", Type: deadline.TypeAck7d, DueAt: time.Now().Add(time.Hour)}
	if err := deadlines.Create(ctx, d); err != nil {
		t.Fatalf("Create deadline: %v", err)
	}

	if err := svc.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(dispatcher.sent) != 1 {
		t.Fatalf("expected 1 reminder dispatched, got %d", len(dispatcher.sent))
	}
	if dispatcher.sent[0].Kind != notify.KindAcknowledgementDue {
		t.Errorf("expected acknowledgement reminder kind, got %q", dispatcher.sent[0].Kind)
	}
	if !deadlines.deadlines["deadline-2"].ReminderSent {
		t.Error("expected deadline marked reminder sent")
	}
}

func TestRunOncePurgesRetentionExpiredRecords(t *testing.T) {
	svc, _, _, _, reports, anonSubs, _ := newTestService(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	if err := reports.Create(ctx, &report.Report{ID: "report-1", TenantID: "tenant-1", DeletionDeadline: &past}); err != nil {
		t.Fatalf("Create report: %v", err)
	}
	if err := anonSubs.CreateSubmission(ctx, &anon.Submission{ID: "sub-1", TenantID: "tenant-1", DeletionDeadline: &past}); err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	if err := svc.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(reports.deleted) != 1 || reports.deleted[0] != "report-1" {
		t.Errorf("expected report-1 hard-deleted, got %v", reports.deleted)
	}
	if len(anonSubs.deleted) != 1 || anonSubs.deleted[0] != "sub-1" {
		t.Errorf("expected sub-1 hard-deleted, got %v", anonSubs.deleted)
	}
}

func TestRunOnceToleratesPerRecordFailures(t *testing.T) {
	svc, _, cases, deadlines, _, _, _ := newTestService(t)
	ctx := context.Background()

	// deadline-3 references a case that was never created: escalating it
	// fails, but a sibling tenant's valid work must still proceed.
	broken := &deadline.Deadline{ID: "deadline-3", TenantID: "tenant-1", CaseID: "missing-case", Type: deadline.TypeFeedback3m, DueAt: time.Now().Add(-time.Hour)}
	if err := deadlines.Create(ctx, broken); err != nil {
		t.Fatalf("Create deadline: %v", err)
	}
	c := &casemgmt.Case{ID: "case-4", TenantID: "tenant-1", Status: casemgmt.StatusOffen}
	if err := cases.Create(ctx, c); err != nil {
		t.Fatalf("Create case: %v", err)
	}
	good := &deadline.Deadline{ID: "deadline-4", TenantID: "tenant-1", CaseID: "case-4", Type: deadline.TypeFeedback3m, DueAt: time.Now().Add(-time.Hour)}
	if err := deadlines.Create(ctx, good); err != nil {
		t.Fatalf("Create deadline: %v", err)
	}

	if err := svc.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	got, _ := cases.Get(ctx, "tenant-1", "case-4")
	if got.Status != casemgmt.StatusEskaliert {
		t.Error("expected sibling case still escalated despite a broken deadline in the same sweep")
	}
}
