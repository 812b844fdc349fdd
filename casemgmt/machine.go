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

package casemgmt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aitema/hinschg-core/apperr"
	"github.com/aitema/hinschg-core/audit"
	"github.com/aitema/hinschg-core/deadline"
	"github.com/aitema/hinschg-core/id"
)

// maxCaseNumberSlugLen is the slug component's length cap in a case
// number, <SLUG>-<year>-<4digits>.
const maxCaseNumberSlugLen = 10

// Archiver records a case's archival and deletion deadlines on whatever
// owns its underlying content — report.Service for an identified report,
// anon.Service for an anonymous submission. Kept as a narrow interface
// here (mirroring caseOpener) so casemgmt never imports report or anon.
type Archiver interface {
	MarkArchived(ctx context.Context, tenantID, reportOrSubmissionID string, archivalDeadline, deletionDeadline time.Time) error
}

type noopArchiver struct{}

func (noopArchiver) MarkArchived(ctx context.Context, tenantID, reportOrSubmissionID string, archivalDeadline, deletionDeadline time.Time) error {
	return nil
}

// Service applies the case transition table and the statutory
// at-most-once operations on top of it.
type Service struct {
	repo        Repository
	deadlines   deadline.Repository
	auditLogger audit.Logger
	archiver    Archiver
}

// NewService creates a case management service. Archival/deletion
// deadlines on the underlying report or anonymous submission are not
// recorded until WithArchiver wires one in.
func NewService(repo Repository, deadlines deadline.Repository, auditLogger audit.Logger) *Service {
	return &Service{repo: repo, deadlines: deadlines, auditLogger: auditLogger, archiver: noopArchiver{}}
}

// WithArchiver wires the component that owns the case's underlying
// report or anonymous submission, so closing a case can stamp its
// archival and deletion deadlines there.
func (s *Service) WithArchiver(a Archiver) *Service {
	s.archiver = a
	return s
}

// Open creates the initial case for a newly submitted report, in status
// offen, and schedules the acknowledgement and feedback deadlines.
// tenantSlug seeds the case number's <SLUG>-<year>-<4digits> format.
func (s *Service) Open(ctx context.Context, tenantID, reportID, tenantSlug string, severity Severity, bounds deadline.Bounds, receivedAt time.Time) (*Case, error) {
	now := time.Now()
	number, err := s.nextCaseNumber(ctx, tenantID, tenantSlug, now)
	if err != nil {
		return nil, err
	}
	c := &Case{
		ID:        id.NewUUIDv7(),
		TenantID:  tenantID,
		ReportID:  reportID,
		Number:    number,
		Status:    StatusOffen,
		Severity:  severity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to open case: %w", err)
	}

	ackDue, feedbackDue := deadline.Calculate(receivedAt, bounds)
	for _, d := range []*deadline.Deadline{
		{ID: id.NewUUIDv7(), TenantID: tenantID, CaseID: c.ID, Type: deadline.TypeAck7d, DueAt: ackDue, CreatedAt: now},
		{ID: id.NewUUIDv7(), TenantID: tenantID, CaseID: c.ID, Type: deadline.TypeFeedback3m, DueAt: feedbackDue, CreatedAt: now},
	} {
		if err := s.deadlines.Create(ctx, d); err != nil {
			return nil, fmt.Errorf("failed to schedule statutory deadline: %w", err)
		}
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCaseOpened,
		TenantID: tenantID,
		Resource: audit.ResourceCase,
		TargetID: c.ID,
		Success:  true,
	})
	return c, nil
}

// nextCaseNumber formats <SLUG_UPPER[:10]>-YYYY-NNNN, NNNN being a
// 1-based per-tenant-per-year sequence derived from how many cases the
// tenant already has this year. Two concurrent Opens in the same tenant
// can race onto the same sequence number; the case number is a
// statutory reference, not a uniqueness constraint, so a rare collision
// does not corrupt case identity.
func (s *Service) nextCaseNumber(ctx context.Context, tenantID, tenantSlug string, now time.Time) (string, error) {
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	count, err := s.repo.CountForTenantSince(ctx, tenantID, yearStart)
	if err != nil {
		return "", fmt.Errorf("failed to count tenant cases for case number: %w", err)
	}
	slug := strings.ToUpper(tenantSlug)
	if len(slug) > maxCaseNumberSlugLen {
		slug = slug[:maxCaseNumberSlugLen]
	}
	return fmt.Sprintf("%s-%d-%04d", slug, now.Year(), count+1), nil
}

// Transition moves a case from its current status to to, validating the
// move against the authoritative table and recording the side effects
// of entering each terminal-adjacent status (assignee on zugewiesen,
// eskaliert flag + timestamp on eskaliert, closed_at + archival
// scheduling on abgeschlossen).
func (s *Service) Transition(ctx context.Context, tenantID, caseID string, to Status, actorID, assignee string) (*Case, error) {
	c, err := s.repo.GetForUpdate(ctx, tenantID, caseID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(c.Status, to) {
		return nil, apperr.BadTransitionf(string(c.Status), string(to))
	}

	if to == StatusZugewiesen && assignee == "" {
		return nil, apperr.Validationf("assignee", "an assignee is required to move a case into zugewiesen")
	}

	from := c.Status
	c.PreviousStatus = from
	c.Status = to
	c.UpdatedAt = time.Now()
	if to == StatusZugewiesen {
		c.Assignee = assignee
	}
	if to == StatusEskaliert {
		now := time.Now()
		c.Eskaliert = true
		c.EskaliertAm = &now
	}
	if to == StatusAbgeschlossen {
		now := time.Now()
		c.ClosedAt = &now
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to transition case: %w", err)
	}

	if to == StatusAbgeschlossen {
		archival := deadline.ArchivalDeadline(*c.ClosedAt, deadline.DefaultBounds())
		deletionDue := deadline.DeletionDeadline(archival)
		if err := s.deadlines.Create(ctx, &deadline.Deadline{
			ID:        id.NewUUIDv7(),
			TenantID:  tenantID,
			CaseID:    c.ID,
			Type:      deadline.TypeArchival3y,
			DueAt:     archival,
			CreatedAt: time.Now(),
		}); err != nil {
			return nil, fmt.Errorf("failed to schedule archival deadline: %w", err)
		}
		if err := s.archiver.MarkArchived(ctx, tenantID, c.ReportID, archival, deletionDue); err != nil {
			return nil, fmt.Errorf("failed to stamp archival/deletion deadlines: %w", err)
		}
		// Closing a case fulfils its feedback deadline even if Resolve
		// was never called directly (e.g. a case closed without a
		// separate feedback step).
		if d, err := s.deadlines.GetOpenByCase(ctx, tenantID, c.ID, deadline.TypeFeedback3m); err == nil && d != nil {
			_ = s.deadlines.MarkDone(ctx, tenantID, d.ID, *c.ClosedAt)
		}
	}

	if err := s.repo.AppendEvent(ctx, &CaseEvent{
		ID:        id.NewUUIDv7(),
		TenantID:  tenantID,
		CaseID:    c.ID,
		Type:      EventStatusChange,
		OldStatus: from,
		NewStatus: to,
		Actor:     actorID,
		CreatedAt: time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("failed to record case event: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCaseStatusChanged,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: audit.ResourceCase,
		TargetID: c.ID,
		Metadata: map[string]any{"from": string(from), "to": string(to)},
		Success:  true,
	})

	return c, nil
}

// TryEscalate force-transitions a case into eskaliert, bypassing the
// normal table, for the scheduler's overdue-deadline sweep. It is a
// no-op (not an error) once the case is already terminal or escalated.
func (s *Service) TryEscalate(ctx context.Context, tenantID, caseID string) (*Case, bool, error) {
	c, err := s.repo.GetForUpdate(ctx, tenantID, caseID)
	if err != nil {
		return nil, false, err
	}
	if c.Eskaliert || Terminal(c.Status) {
		return c, false, nil
	}

	now := time.Now()
	c.PreviousStatus = c.Status
	c.Status = StatusEskaliert
	c.Eskaliert = true
	c.EskaliertAm = &now
	c.UpdatedAt = now

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, false, fmt.Errorf("failed to escalate case: %w", err)
	}
	if err := s.repo.AppendEvent(ctx, &CaseEvent{
		ID:        id.NewUUIDv7(),
		TenantID:  tenantID,
		CaseID:    c.ID,
		Type:      EventStatusChange,
		OldStatus: c.PreviousStatus,
		NewStatus: StatusEskaliert,
		Actor:     audit.ActorSystem,
		CreatedAt: now,
	}); err != nil {
		return nil, false, fmt.Errorf("failed to record escalation event: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCaseEscalated,
		TenantID: tenantID,
		Resource: audit.ResourceCase,
		TargetID: c.ID,
		Success:  true,
	})
	return c, true, nil
}

// Acknowledge records the statutory eingangsbestaetigung (the 7-day
// acknowledgement deadline). At-most-once: a second call returns Conflict.
func (s *Service) Acknowledge(ctx context.Context, tenantID, caseID, actorID string) (*Case, error) {
	c, err := s.repo.GetForUpdate(ctx, tenantID, caseID)
	if err != nil {
		return nil, err
	}
	if c.AcknowledgedAt != nil {
		return nil, apperr.Conflictf("case was already acknowledged")
	}

	now := time.Now()
	c.AcknowledgedAt = &now
	c.UpdatedAt = now
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to record acknowledgement: %w", err)
	}

	if d, err := s.deadlines.GetOpenByCase(ctx, tenantID, caseID, deadline.TypeAck7d); err == nil && d != nil {
		_ = s.deadlines.MarkDone(ctx, tenantID, d.ID, now)
	}

	if err := s.repo.AppendEvent(ctx, &CaseEvent{
		ID: id.NewUUIDv7(), TenantID: tenantID, CaseID: c.ID,
		Type: EventAcknowledged, Actor: actorID, CreatedAt: now, VisibleToReporter: true,
	}); err != nil {
		return nil, fmt.Errorf("failed to record acknowledgement event: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type: audit.TypeCaseAcknowledged, TenantID: tenantID, ActorID: actorID,
		Resource: audit.ResourceCase, TargetID: c.ID, Success: true,
	})
	return c, nil
}

// Resolve records the statutory Rueckmeldung (the 3-month feedback
// deadline). At-most-once: a second call returns Conflict.
func (s *Service) Resolve(ctx context.Context, tenantID, caseID, actorID string) (*Case, error) {
	c, err := s.repo.GetForUpdate(ctx, tenantID, caseID)
	if err != nil {
		return nil, err
	}
	if c.ResolvedAt != nil {
		return nil, apperr.Conflictf("feedback was already sent for this case")
	}

	now := time.Now()
	c.ResolvedAt = &now
	c.UpdatedAt = now
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to record resolution feedback: %w", err)
	}

	if d, err := s.deadlines.GetOpenByCase(ctx, tenantID, caseID, deadline.TypeFeedback3m); err == nil && d != nil {
		_ = s.deadlines.MarkDone(ctx, tenantID, d.ID, now)
	}

	if err := s.repo.AppendEvent(ctx, &CaseEvent{
		ID: id.NewUUIDv7(), TenantID: tenantID, CaseID: c.ID,
		Type: EventResolved, Actor: actorID, CreatedAt: now, VisibleToReporter: true,
	}); err != nil {
		return nil, fmt.Errorf("failed to record resolution event: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type: audit.TypeCaseResolved, TenantID: tenantID, ActorID: actorID,
		Resource: audit.ResourceCase, TargetID: c.ID, Success: true,
	})
	return c, nil
}

// Forward hands a case to the ombudsperson for independent review.
// At-most-once: a second call returns Conflict.
func (s *Service) Forward(ctx context.Context, tenantID, caseID, actorID string) (*Case, error) {
	c, err := s.repo.GetForUpdate(ctx, tenantID, caseID)
	if err != nil {
		return nil, err
	}
	if c.ForwardedToOmbudspersonAt != nil {
		return nil, apperr.Conflictf("case was already forwarded to the ombudsperson")
	}

	now := time.Now()
	c.ForwardedToOmbudspersonAt = &now
	c.ForwardedToOmbudspersonBy = actorID
	c.UpdatedAt = now
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to forward case: %w", err)
	}

	if err := s.repo.AppendEvent(ctx, &CaseEvent{
		ID: id.NewUUIDv7(), TenantID: tenantID, CaseID: c.ID,
		Type: EventForwarded, Actor: actorID, CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to record forwarding event: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type: audit.TypeCaseForwarded, TenantID: tenantID, ActorID: actorID,
		Resource: audit.ResourceCase, TargetID: c.ID, Success: true,
	})
	return c, nil
}

// RecordRecommendation stores the ombudsperson's disposition of a
// forwarded case. Requires the case to have been forwarded first, and is
// at-most-once.
func (s *Service) RecordRecommendation(ctx context.Context, tenantID, caseID, actorID string, rec Recommendation, notesCipher string) (*Case, error) {
	c, err := s.repo.GetForUpdate(ctx, tenantID, caseID)
	if err != nil {
		return nil, err
	}
	if c.ForwardedToOmbudspersonAt == nil {
		return nil, apperr.New(apperr.Forbidden, "case has not been forwarded to an ombudsperson")
	}
	if c.OmbudspersonReviewedAt != nil {
		return nil, apperr.Conflictf("a recommendation (%s) was already recorded for this case", c.OmbudspersonRecommendation)
	}

	now := time.Now()
	c.OmbudspersonRecommendation = rec
	c.OmbudspersonReviewedAt = &now
	c.OmbudspersonReviewedBy = actorID
	c.OmbudspersonNotesCipher = notesCipher
	c.UpdatedAt = now
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to record recommendation: %w", err)
	}

	if err := s.repo.AppendEvent(ctx, &CaseEvent{
		ID: id.NewUUIDv7(), TenantID: tenantID, CaseID: c.ID,
		Type: EventRecommended, Actor: actorID, CreatedAt: now,
		Metadata: map[string]any{"recommendation": string(rec)},
	}); err != nil {
		return nil, fmt.Errorf("failed to record recommendation event: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type: audit.TypeCaseRecommendation, TenantID: tenantID, ActorID: actorID,
		Resource: audit.ResourceCase, TargetID: c.ID,
		Metadata: map[string]any{"recommendation": string(rec)}, Success: true,
	})

	// A recommendation to escalate additionally attempts the status
	// transition, but the recommendation itself is recorded either way;
	// a case already terminal or otherwise ineligible just keeps its
	// current status.
	if rec == RecommendationEscalate && CanTransition(c.Status, StatusEskaliert) {
		if escalated, err := s.Transition(ctx, tenantID, c.ID, StatusEskaliert, actorID, ""); err == nil {
			return escalated, nil
		}
	}

	return c, nil
}
