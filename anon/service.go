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

package anon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aitema/hinschg-core/apperr"
	"github.com/aitema/hinschg-core/audit"
	"github.com/aitema/hinschg-core/casemgmt"
	"github.com/aitema/hinschg-core/crypto"
	"github.com/aitema/hinschg-core/deadline"
	"github.com/aitema/hinschg-core/id"
)

const (
	minDescriptionLength = 20

	// maxMessageLength bounds a single conversation message.
	maxMessageLength = 4000

	// lookupFloor is the fixed minimum latency anon.Lookup enforces
	// regardless of whether the receipt code resolves, so that response
	// timing never distinguishes a valid-but-wrong code from one that
	// resolves to a real submission.
	lookupFloor = 100 * time.Millisecond

	// lookupLimitKey buckets every lookup attempt into a single rate
	// limit, deliberately ignoring tenant and client identity: the
	// channel is anonymous by design, so there is no narrower key that
	// wouldn't itself leak identity.
	lookupLimitKey = "anon:lookup"
)

// caseOpener is the narrow surface anon.Service needs from
// casemgmt.Service, mirroring report.caseOpener.
type caseOpener interface {
	Open(ctx context.Context, tenantID, reportID, tenantSlug string, severity casemgmt.Severity, bounds deadline.Bounds, receivedAt time.Time) (*casemgmt.Case, error)
}

// Service implements the anonymous submission and lookup channel.
type Service struct {
	repo        Repository
	envelope    *crypto.Envelope
	cases       caseOpener
	limiter     RateLimiter
	auditLogger audit.Logger
}

// NewService creates the anonymous channel service.
func NewService(repo Repository, envelope *crypto.Envelope, cases caseOpener, limiter RateLimiter, auditLogger audit.Logger) *Service {
	return &Service{repo: repo, envelope: envelope, cases: cases, limiter: limiter, auditLogger: auditLogger}
}

// SubmitInput carries the fields a caller supplies for a new anonymous
// submission. There is deliberately no reporter identity field anywhere
// in this struct.
type SubmitInput struct {
	TenantID    string
	TenantSlug  string
	Description string
	Category    string
	Language    string
	Bounds      deadline.Bounds
}

func (in SubmitInput) validate() error {
	if len(in.Description) < minDescriptionLength {
		return apperr.Validationf("description", "description must be at least %d characters", minDescriptionLength)
	}
	if strings.TrimSpace(in.Category) == "" {
		return apperr.Validationf("category", "category is required")
	}
	return nil
}

// Submit validates, encrypts, and persists a new anonymous submission,
// mints its receipt code, opens the initial case, and schedules the
// acknowledgement and feedback deadlines. The returned bare receipt code
// is shown to the reporter exactly once; it is never logged or emailed.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Submission, *casemgmt.Case, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	recordID := id.NewUUIDv7()

	receiptCode, err := crypto.GenerateReceiptCode()
	if err != nil {
		return nil, nil, apperr.CryptoFailuref(err)
	}

	descriptionCipher, err := s.envelope.Encrypt(crypto.FieldContext{RecordID: recordID, Field: "description"}, in.Description)
	if err != nil {
		return nil, nil, err
	}

	sub := &Submission{
		ID:                recordID,
		TenantID:          in.TenantID,
		ReceiptCode:       receiptCode,
		DescriptionCipher: descriptionCipher,
		Category:          in.Category,
		Priority:          string(casemgmt.SeverityMittel),
		Language:          in.Language,
		EingegangenAm:     now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	ackDue, feedbackDue := deadline.Calculate(now, in.Bounds)
	sub.EingangsbestaetigungFrist = ackDue
	sub.RueckmeldungFrist = feedbackDue

	if err := s.repo.CreateSubmission(ctx, sub); err != nil {
		return nil, nil, fmt.Errorf("failed to create anonymous submission: %w", err)
	}

	c, err := s.cases.Open(ctx, in.TenantID, sub.ID, in.TenantSlug, casemgmt.SeverityMittel, in.Bounds, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open case for anonymous submission: %w", err)
	}
	sub.CaseID = c.ID
	if err := s.repo.UpdateSubmission(ctx, sub); err != nil {
		return nil, nil, fmt.Errorf("failed to link anonymous submission to case: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAnonSubmissionCreated,
		TenantID: in.TenantID,
		Resource: audit.ResourceAnonSubmission,
		TargetID: sub.ID,
		Metadata: map[string]any{"category": in.Category},
		Success:  true,
	})

	return sub, c, nil
}

// Lookup resolves a receipt code to its submission, enforcing the
// channel's rate limit and a fixed minimum response latency so that
// timing never reveals whether a code is well-formed-but-unknown versus
// genuinely invalid. A not-found receipt code and a malformed one return
// the identical apperr.NotFound error by design.
func (s *Service) Lookup(ctx context.Context, rawCode string) (*Submission, error) {
	start := time.Now()
	defer s.enforceFloor(start)

	allowed, retryAfter, err := s.limiter.Allow(ctx, lookupLimitKey)
	if err != nil {
		return nil, fmt.Errorf("rate limiter check failed: %w", err)
	}
	if !allowed {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeAnonLookupRateLimited,
			Resource: audit.ResourceAnonSubmission,
			Success:  false,
		})
		return nil, apperr.RateLimitedf(retryAfter)
	}

	normalized := crypto.NormalizeReceiptCode(rawCode)
	if !crypto.ValidReceiptCode(normalized) {
		return nil, apperr.NotFoundf("receipt code not found")
	}

	sub, err := s.repo.GetSubmissionByReceiptCode(ctx, normalized)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// enforceFloor blocks until lookupFloor has elapsed since start,
// regardless of how the lookup resolved.
func (s *Service) enforceFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < lookupFloor {
		time.Sleep(lookupFloor - elapsed)
	}
}

// AddMessage appends a message to an existing submission's conversation.
// direction distinguishes a reporter follow-up from a handler reply; no
// identity is ever attached to either side.
func (s *Service) AddMessage(ctx context.Context, tenantID, submissionID string, direction Direction, body string) (*Message, error) {
	if len(body) > maxMessageLength {
		return nil, apperr.Validationf("body", "message must be at most %d characters", maxMessageLength)
	}

	bodyCipher, err := s.envelope.Encrypt(crypto.FieldContext{RecordID: submissionID, Field: "message"}, body)
	if err != nil {
		return nil, err
	}

	m := &Message{
		ID:           id.NewUUIDv7(),
		TenantID:     tenantID,
		SubmissionID: submissionID,
		Direction:    direction,
		BodyCipher:   bodyCipher,
		CreatedAt:    time.Now(),
	}
	if err := s.repo.AddMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to add anonymous message: %w", err)
	}

	// updated_at is the only indirect signal of staff activity on a
	// submission that carries no reporter identity, so every message
	// touches it.
	sub, err := s.repo.GetSubmissionByID(ctx, tenantID, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load submission for message update: %w", err)
	}
	sub.UpdatedAt = time.Now()
	if err := s.repo.UpdateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to bump submission updated_at: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAnonMessageAdded,
		TenantID: tenantID,
		Resource: audit.ResourceAnonSubmission,
		TargetID: submissionID,
		Metadata: map[string]any{"direction": string(direction)},
		Success:  true,
	})

	return m, nil
}

// Messages lists a submission's conversation in chronological order.
func (s *Service) Messages(ctx context.Context, tenantID, submissionID string) ([]*Message, error) {
	return s.repo.ListMessages(ctx, tenantID, submissionID)
}

// MarkArchived stamps a submission's retention-deletion deadline once
// its case closes. Implements casemgmt.Archiver. The anonymous channel
// has no separate archival concept distinct from the report's — the
// submission itself is the record being archived, so only the deletion
// deadline is persisted.
func (s *Service) MarkArchived(ctx context.Context, tenantID, id string, archivalDeadline, deletionDeadline time.Time) error {
	sub, err := s.repo.GetSubmissionByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	sub.DeletionDeadline = &deletionDeadline
	return s.repo.UpdateSubmission(ctx, sub)
}

// DecryptDescription decrypts a submission's description field. Callers
// must have already authorized access; DecryptDescription performs no
// access control itself, mirroring report.Service.Reveal.
func (s *Service) DecryptDescription(sub *Submission) (string, error) {
	return s.envelope.Decrypt(crypto.FieldContext{RecordID: sub.ID, Field: "description"}, sub.DescriptionCipher)
}

// DecryptMessage decrypts a single message body.
func (s *Service) DecryptMessage(m *Message) (string, error) {
	return s.envelope.Decrypt(crypto.FieldContext{RecordID: m.SubmissionID, Field: "message"}, m.BodyCipher)
}
