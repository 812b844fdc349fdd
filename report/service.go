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

package report

import (
	"context"
	"crypto/rand"
	"encoding/hex"
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

const minDescriptionLength = 20

// caseOpener is the narrow surface report.Service needs from
// casemgmt.Service: open the initial case for a newly submitted report.
// Declared locally so report never imports casemgmt.Service's full
// surface, mirroring the tenant package's TenantDataRepository pattern.
type caseOpener interface {
	Open(ctx context.Context, tenantID, reportID, tenantSlug string, severity casemgmt.Severity, bounds deadline.Bounds, receivedAt time.Time) (*casemgmt.Case, error)
}

// Service implements submission intake.
type Service struct {
	repo        Repository
	envelope    *crypto.Envelope
	cases       caseOpener
	auditLogger audit.Logger
}

// NewService creates a report intake service.
func NewService(repo Repository, envelope *crypto.Envelope, cases caseOpener, auditLogger audit.Logger) *Service {
	return &Service{repo: repo, envelope: envelope, cases: cases, auditLogger: auditLogger}
}

// SubmitInput carries the fields a caller (HTTP handler, anon channel
// adapter) supplies for a new submission.
type SubmitInput struct {
	TenantID         string
	TenantSlug       string
	Title            string
	Description      string
	Category         Category
	ReporterName     string
	ReporterEmail    string
	ReporterPhone    string
	AffectedPersons  string
	PreferredContact ContactChannel
	IsAnonymous      bool
	Channel          Channel
	Language         string
	IPHash           string
	Bounds           deadline.Bounds
}

func (in SubmitInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperr.Validationf("title", "title is required")
	}
	if len(in.Description) < minDescriptionLength {
		return apperr.Validationf("description", "description must be at least %d characters", minDescriptionLength)
	}
	if !ValidCategory(in.Category) {
		return apperr.Validationf("category", "%q is not a recognized HinSchG category", in.Category)
	}
	return nil
}

// Submit validates, encrypts, and persists a new report, issues its
// reference/access codes, opens the initial case in status offen, and
// schedules the acknowledgement and feedback deadlines.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Report, *casemgmt.Case, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	recordID := id.NewUUIDv7()

	accessCode, err := crypto.GenerateAccessCode()
	if err != nil {
		return nil, nil, apperr.CryptoFailuref(err)
	}
	refCode, err := newReferenceCode(now)
	if err != nil {
		return nil, nil, err
	}

	r := &Report{
		ID:               recordID,
		TenantID:         in.TenantID,
		ReferenceCode:    refCode,
		AccessCode:       accessCode,
		IsAnonymous:      in.IsAnonymous,
		PreferredContact: in.PreferredContact,
		Category:         in.Category,
		Priority:         PriorityMittel,
		Channel:          in.Channel,
		Language:         in.Language,
		IPHash:           in.IPHash,
		EingegangenAm:    now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	ackDue, feedbackDue := deadline.Calculate(now, in.Bounds)
	r.EingangsbestaetigungFrist = ackDue
	r.RueckmeldungFrist = feedbackDue

	for _, f := range []struct {
		field, plaintext string
		dst              *string
	}{
		{"title", in.Title, &r.TitleCipher},
		{"description", in.Description, &r.DescriptionCipher},
		{"reporter_name", in.ReporterName, &r.ReporterNameCipher},
		{"reporter_email", in.ReporterEmail, &r.ReporterEmailCipher},
		{"reporter_phone", in.ReporterPhone, &r.ReporterPhoneCipher},
		{"affected_persons", in.AffectedPersons, &r.AffectedPersonsCipher},
	} {
		ciphertext, err := s.envelope.Encrypt(crypto.FieldContext{RecordID: recordID, Field: f.field}, f.plaintext)
		if err != nil {
			return nil, nil, err
		}
		*f.dst = ciphertext
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return nil, nil, fmt.Errorf("failed to create report: %w", err)
	}

	c, err := s.cases.Open(ctx, in.TenantID, r.ID, in.TenantSlug, casemgmt.SeverityMittel, in.Bounds, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open case for report: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSubmissionCreated,
		TenantID: in.TenantID,
		Resource: audit.ResourceReport,
		TargetID: r.ID,
		Metadata: map[string]any{"category": string(in.Category), "is_anonymous": in.IsAnonymous},
		Success:  true,
	})

	return r, c, nil
}

// Decrypted is the plaintext projection of a Report's encrypted fields,
// returned only to callers authorized to see identity-bearing content.
type Decrypted struct {
	Title           string
	Description     string
	ReporterName    string
	ReporterEmail   string
	ReporterPhone   string
	AffectedPersons string
}

// Reveal decrypts a report's field-level ciphertext. Callers must have
// already authorized access; Reveal performs no access control itself.
func (s *Service) Reveal(ctx context.Context, r *Report) (*Decrypted, error) {
	out := &Decrypted{}
	for _, f := range []struct {
		field      string
		ciphertext string
		dst        *string
	}{
		{"title", r.TitleCipher, &out.Title},
		{"description", r.DescriptionCipher, &out.Description},
		{"reporter_name", r.ReporterNameCipher, &out.ReporterName},
		{"reporter_email", r.ReporterEmailCipher, &out.ReporterEmail},
		{"reporter_phone", r.ReporterPhoneCipher, &out.ReporterPhone},
		{"affected_persons", r.AffectedPersonsCipher, &out.AffectedPersons},
	} {
		plaintext, err := s.envelope.Decrypt(crypto.FieldContext{RecordID: r.ID, Field: f.field}, f.ciphertext)
		if err != nil {
			return nil, err
		}
		*f.dst = plaintext
	}
	return out, nil
}

// Get retrieves a report, recording an audit view event.
func (s *Service) Get(ctx context.Context, tenantID, id, actorID string) (*Report, error) {
	r, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type: audit.TypeSubmissionViewed, TenantID: tenantID, ActorID: actorID,
		Resource: audit.ResourceReport, TargetID: r.ID, Success: true,
	})
	return r, nil
}

// MarkArchived stamps a report's archival and retention-deletion
// deadlines once its case closes. Implements casemgmt.Archiver.
func (s *Service) MarkArchived(ctx context.Context, tenantID, id string, archivalDeadline, deletionDeadline time.Time) error {
	r, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	r.ArchivalDeadline = &archivalDeadline
	r.DeletionDeadline = &deletionDeadline
	return s.repo.Update(ctx, r)
}

// newReferenceCode mints the human-readable HW-<year>-<4hex> identifier.
// Collisions are possible but vanishingly unlikely (65536 slots per
// tenant-year) and are caught by the repository's unique index; a caller
// hitting one simply retries the submission.
func newReferenceCode(now time.Time) (string, error) {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		return "", apperr.CryptoFailuref(err)
	}
	return fmt.Sprintf("HW-%d-%s", now.Year(), strings.ToUpper(hex.EncodeToString(buf))), nil
}
