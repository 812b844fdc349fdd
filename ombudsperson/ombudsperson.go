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

// Package ombudsperson produces the identity-masked case projection the
// ombudsperson role is shown, and wraps casemgmt's forward/recommendation
// handoff so the masking and the forwarded-case check live next to each
// other.
package ombudsperson

import (
	"time"

	"github.com/aitema/hinschg-core/casemgmt"
	"github.com/aitema/hinschg-core/report"
)

// redacted is substituted for every identity-bearing field.
const redacted = "[vertraulich]"

// Projection is the view of a case and its report an ombudsperson is
// permitted to see: category, severity, timestamps, and (if policy
// allows) the description, but never reporter identity.
type Projection struct {
	CaseID     string
	CaseNumber string
	Status     casemgmt.Status
	Severity   casemgmt.Severity

	Category string
	Language string

	ReporterName    string
	ReporterEmail   string
	ReporterPhone   string
	AffectedPersons string
	Description     string

	EingegangenAm time.Time

	ForwardedAt     *time.Time
	ForwardedBy     string
	Recommendation  casemgmt.Recommendation
	ReviewedAt      *time.Time
	ReviewedBy      string
}

// Project builds the masked view of c and r. decrypted is nil when the
// caller has no decryption access at all (description also withheld);
// includeDescription gates whether a non-nil decrypted.Description is
// surfaced, per policy allowing some tenants to show it and others not.
func Project(c *casemgmt.Case, r *report.Report, decrypted *report.Decrypted, includeDescription bool) *Projection {
	p := &Projection{
		CaseID:          c.ID,
		CaseNumber:      c.Number,
		Status:          c.Status,
		Severity:        c.Severity,
		Category:        string(r.Category),
		Language:        r.Language,
		ReporterName:    redacted,
		ReporterEmail:   redacted,
		ReporterPhone:   redacted,
		AffectedPersons: redacted,
		EingegangenAm:   r.EingegangenAm,
		ForwardedAt:     c.ForwardedToOmbudspersonAt,
		ForwardedBy:     c.ForwardedToOmbudspersonBy,
		Recommendation:  c.OmbudspersonRecommendation,
		ReviewedAt:      c.OmbudspersonReviewedAt,
		ReviewedBy:      c.OmbudspersonReviewedBy,
	}
	if includeDescription && decrypted != nil {
		p.Description = decrypted.Description
	}
	return p
}
