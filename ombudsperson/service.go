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

package ombudsperson

import (
	"context"
	"fmt"

	"github.com/aitema/hinschg-core/apperr"
	"github.com/aitema/hinschg-core/casemgmt"
	"github.com/aitema/hinschg-core/crypto"
	"github.com/aitema/hinschg-core/report"
)

// Service wraps the case/report lookups an ombudsperson is permitted to
// perform and the at-most-once forward/recommendation handoff.
type Service struct {
	cases    casemgmt.Repository
	reports  report.Repository
	envelope *crypto.Envelope
	handoff  *casemgmt.Service

	// IncludeDescription gates whether Project surfaces the decrypted
	// description, per tenant policy; false by default so a new wiring
	// never over-shares until a policy explicitly opts in.
	IncludeDescription bool
}

// NewService creates an ombudsperson view/handoff service.
func NewService(cases casemgmt.Repository, reports report.Repository, envelope *crypto.Envelope, handoff *casemgmt.Service) *Service {
	return &Service{cases: cases, reports: reports, envelope: envelope, handoff: handoff}
}

// List returns the masked projection of every case forwarded to the
// ombudsperson role for tenantID. Cases never forwarded do not appear.
func (s *Service) List(ctx context.Context, tenantID string) ([]*Projection, error) {
	cs, err := s.cases.ListForwardedToOmbudsperson(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list forwarded cases: %w", err)
	}

	out := make([]*Projection, 0, len(cs))
	for _, c := range cs {
		p, err := s.project(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Get returns the masked projection of a single forwarded case.
// Requesting a case that was never forwarded to the ombudsperson role
// returns Forbidden, distinct from NotFound: the case exists, the
// ombudsperson role just isn't entitled to see it yet.
func (s *Service) Get(ctx context.Context, tenantID, caseID string) (*Projection, error) {
	c, err := s.cases.Get(ctx, tenantID, caseID)
	if err != nil {
		return nil, err
	}
	if c.ForwardedToOmbudspersonAt == nil {
		return nil, apperr.New(apperr.Forbidden, "case has not been forwarded to the ombudsperson")
	}
	return s.project(ctx, c)
}

func (s *Service) project(ctx context.Context, c *casemgmt.Case) (*Projection, error) {
	r, err := s.reports.Get(ctx, c.TenantID, c.ReportID)
	if err != nil {
		return nil, fmt.Errorf("failed to load report for case projection: %w", err)
	}

	var decrypted *report.Decrypted
	if s.IncludeDescription {
		description, err := s.envelope.Decrypt(crypto.FieldContext{RecordID: r.ID, Field: "description"}, r.DescriptionCipher)
		if err != nil {
			return nil, err
		}
		decrypted = &report.Decrypted{Description: description}
	}
	return Project(c, r, decrypted, s.IncludeDescription), nil
}

// Forward hands a case off to the ombudsperson role. Delegates entirely
// to casemgmt.Service.Forward, which enforces the at-most-once rule.
func (s *Service) Forward(ctx context.Context, tenantID, caseID, actorID string) (*casemgmt.Case, error) {
	return s.handoff.Forward(ctx, tenantID, caseID, actorID)
}

// Recommend records the ombudsperson's disposition. Requires the case to
// have already been forwarded (enforced by casemgmt.Service) and is
// at-most-once; a repeat attempt returns Conflict with the recorded
// recommendation already attached to the returned case.
func (s *Service) Recommend(ctx context.Context, tenantID, caseID, actorID string, rec casemgmt.Recommendation, notes string) (*casemgmt.Case, error) {
	notesCipher, err := s.envelope.Encrypt(crypto.FieldContext{RecordID: caseID, Field: "ombudsperson_notes"}, notes)
	if err != nil {
		return nil, err
	}
	return s.handoff.RecordRecommendation(ctx, tenantID, caseID, actorID, rec, notesCipher)
}
