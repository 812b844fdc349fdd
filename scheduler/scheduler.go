// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package scheduler runs the periodic background sweep: escalating
// overdue cases, reminding handlers of upcoming deadlines, and purging
// reports and anonymous submissions past their retention deadline. One
// process instance performs a given tick; coordination across multiple
// replicas is a Postgres advisory lock, not leader election.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/aitema/hinschg-core/anon"
	"github.com/aitema/hinschg-core/audit"
	"github.com/aitema/hinschg-core/casemgmt"
	"github.com/aitema/hinschg-core/deadline"
	"github.com/aitema/hinschg-core/metrics"
	"github.com/aitema/hinschg-core/notify"
	"github.com/aitema/hinschg-core/report"
	"github.com/aitema/hinschg-core/tenant"
)

// advisoryLockKey fixes the single lock every scheduler process
// contends for — there is only one sweep, not one per tenant, so a
// single well-known key is sufficient.
const advisoryLockKey int64 = 0x48696e536368 // "HinSch" as hex, arbitrary but stable

// reminderHorizon is how far ahead of a deadline's due_at the reminder
// sweep looks.
const reminderHorizon = 3 * 24 * time.Hour

// Locker is the narrow surface scheduler needs from store/postgres.DB:
// a single coordination primitive so only one process instance runs a
// given tick.
type Locker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (Unlocker, bool, error)
}

// Unlocker releases a lock acquired through Locker.
type Unlocker interface {
	Unlock(ctx context.Context) error
}

// Service runs the three statutory sweeps on an interval.
type Service struct {
	locker      Locker
	tenants     tenant.Repository
	deadlines   deadline.Repository
	cases       *casemgmt.Service
	reports     report.Repository
	anonSubs    anon.Repository
	dispatcher  notify.Dispatcher
	auditLogger audit.Logger
	recorder    metrics.Recorder

	interval time.Duration
}

// WithRecorder wires a metrics.Recorder into the scheduler for
// escalation and retention-purge counters. Unwired, the scheduler
// records nothing.
func (s *Service) WithRecorder(r metrics.Recorder) *Service {
	s.recorder = r
	return s
}

// NewService creates the sweep service. interval is the tick period
// between sweep attempts (every lock acquisition runs all three
// sweeps); a typical deployment ticks every 1-5 minutes.
func NewService(
	locker Locker,
	tenants tenant.Repository,
	deadlines deadline.Repository,
	cases *casemgmt.Service,
	reports report.Repository,
	anonSubs anon.Repository,
	dispatcher notify.Dispatcher,
	auditLogger audit.Logger,
	interval time.Duration,
) *Service {
	return &Service{
		locker: locker, tenants: tenants, deadlines: deadlines, cases: cases,
		reports: reports, anonSubs: anonSubs, dispatcher: dispatcher,
		auditLogger: auditLogger, recorder: metrics.NoopRecorder{}, interval: interval,
	}
}

// Run blocks, ticking every interval until ctx is cancelled. Each tick
// that wins the advisory lock runs RunOnce; a tick that loses the lock
// (another process instance is already sweeping) is a silent no-op.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				slog.ErrorContext(ctx, "scheduler tick failed", "error", err)
			}
		}
	}
}

func (s *Service) tick(ctx context.Context) error {
	lock, acquired, err := s.locker.TryAdvisoryLock(ctx, advisoryLockKey)
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}
	defer func() {
		if err := lock.Unlock(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to release scheduler advisory lock", "error", err)
		}
	}()

	return s.RunOnce(ctx)
}

// RunOnce runs all three sweeps for every tenant once. Exported so a
// caller (a cron-triggered one-shot invocation, or a test) can drive a
// single pass without the ticking loop.
func (s *Service) RunOnce(ctx context.Context) error {
	const pageSize = 500
	for offset := 0; ; offset += pageSize {
		tenants, err := s.tenants.List(ctx, pageSize, offset)
		if err != nil {
			return err
		}
		if len(tenants) == 0 {
			return nil
		}
		for _, t := range tenants {
			s.sweepTenant(ctx, t.ID)
		}
		if len(tenants) < pageSize {
			return nil
		}
	}
}

// sweepTenant runs the escalation, reminder, and retention sweeps for a
// single tenant, logging and skipping any record that fails rather than
// aborting the tenant's remaining work.
func (s *Service) sweepTenant(ctx context.Context, tenantID string) {
	s.sweepEscalations(ctx, tenantID)
	s.sweepReminders(ctx, tenantID)
	s.sweepRetention(ctx, tenantID)
}

func (s *Service) sweepEscalations(ctx context.Context, tenantID string) {
	due, err := s.deadlines.DueForEscalation(ctx, tenantID, time.Now())
	if err != nil {
		slog.ErrorContext(ctx, "failed to query deadlines due for escalation", "tenant_id", tenantID, "error", err)
		return
	}
	for _, d := range due {
		c, escalated, err := s.cases.TryEscalate(ctx, tenantID, d.CaseID)
		if err != nil {
			slog.ErrorContext(ctx, "failed to escalate case", "tenant_id", tenantID, "case_id", d.CaseID, "error", err)
			continue
		}
		if !escalated {
			continue
		}
		if err := s.deadlines.MarkEscalated(ctx, tenantID, d.ID); err != nil {
			slog.ErrorContext(ctx, "failed to mark deadline escalated", "tenant_id", tenantID, "deadline_id", d.ID, "error", err)
		}

		// Recipient is the case's assignee; a case escalated before ever
		// being assigned has no narrower recipient to fall back to than
		// that, so Recipient is left blank for the transport to handle.
		if err := s.dispatcher.Dispatch(ctx, notify.Message{
			Kind: notify.KindEscalated, TenantID: tenantID, CaseID: d.CaseID, Recipient: c.Assignee, Language: "de",
		}); err != nil {
			slog.ErrorContext(ctx, "failed to dispatch escalation notification", "tenant_id", tenantID, "case_id", d.CaseID, "error", err)
		}

		s.recorder.CaseEscalated(tenantID)
	}
}

func (s *Service) sweepReminders(ctx context.Context, tenantID string) {
	now := time.Now()
	due, err := s.deadlines.DueForReminder(ctx, tenantID, now, reminderHorizon)
	if err != nil {
		slog.ErrorContext(ctx, "failed to query deadlines due for reminder", "tenant_id", tenantID, "error", err)
		return
	}
	for _, d := range due {
		// Overdue deadlines belong to the escalation sweep; a reminder
		// only goes out for a deadline still ahead of now.
		if d.DueAt.Before(now) {
			continue
		}
		kind := notify.KindFeedbackDue
		if d.Type == deadline.TypeAck7d {
			kind = notify.KindAcknowledgementDue
		}
		if err := s.dispatcher.Dispatch(ctx, notify.Message{
			Kind: kind, TenantID: tenantID, CaseID: d.CaseID, Language: "de",
		}); err != nil {
			slog.ErrorContext(ctx, "failed to dispatch deadline reminder", "tenant_id", tenantID, "deadline_id", d.ID, "error", err)
			continue
		}
		if err := s.deadlines.MarkReminderSent(ctx, tenantID, d.ID); err != nil {
			slog.ErrorContext(ctx, "failed to mark reminder sent", "tenant_id", tenantID, "deadline_id", d.ID, "error", err)
		}
	}
}

func (s *Service) sweepRetention(ctx context.Context, tenantID string) {
	now := time.Now()

	reports, err := s.reports.DueForDeletion(ctx, tenantID, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to query reports due for deletion", "tenant_id", tenantID, "error", err)
	} else {
		for _, r := range reports {
			if err := s.reports.HardDelete(ctx, tenantID, r.ID); err != nil {
				slog.ErrorContext(ctx, "failed to hard-delete retention-expired report", "tenant_id", tenantID, "report_id", r.ID, "error", err)
				continue
			}
			s.auditLogger.Log(ctx, audit.Event{
				Type: audit.TypeDataDeleted, TenantID: tenantID, Resource: audit.ResourceReport,
				TargetID: r.ID, Metadata: map[string]any{"reason": "retention_expired"}, Success: true,
			})
			s.recorder.RetentionPurge(tenantID, "report")
		}
	}

	submissions, err := s.anonSubs.DueForDeletion(ctx, tenantID, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to query anonymous submissions due for deletion", "tenant_id", tenantID, "error", err)
		return
	}
	for _, sub := range submissions {
		if err := s.anonSubs.HardDelete(ctx, tenantID, sub.ID); err != nil {
			slog.ErrorContext(ctx, "failed to hard-delete retention-expired anonymous submission", "tenant_id", tenantID, "submission_id", sub.ID, "error", err)
			continue
		}
		s.auditLogger.Log(ctx, audit.Event{
			Type: audit.TypeDataDeleted, TenantID: tenantID, Resource: audit.ResourceAnonSubmission,
			TargetID: sub.ID, Metadata: map[string]any{"reason": "retention_expired"}, Success: true,
		})
		s.recorder.RetentionPurge(tenantID, "anon_submission")
	}
}
