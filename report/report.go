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

// Package report implements intake of a Hinweis (whistleblowing report):
// the central entity every case is built around, with its field-level
// encrypted content and statutory category enum bounded by HinSchG §2.
package report

import (
	"context"
	"time"

	"github.com/aitema/hinschg-core/apperr"
)

// ErrReportNotFound is returned when a lookup by id, reference code, or
// access code matches no record.
var ErrReportNotFound = apperr.NotFoundf("report not found")

// Category is one of the 17 categories HinSchG §2 defines the material
// scope of the law around.
type Category string

const (
	CategoryKorruption             Category = "korruption"
	CategoryBetrug                 Category = "betrug"
	CategoryGeldwaesche            Category = "geldwaesche"
	CategorySteuerhinterziehung    Category = "steuerhinterziehung"
	CategoryUmweltverstoss         Category = "umweltverstoss"
	CategoryVerbraucherschutz      Category = "verbraucherschutz"
	CategoryDatenschutz            Category = "datenschutz"
	CategoryDiskriminierung        Category = "diskriminierung"
	CategoryArbeitssicherheit      Category = "arbeitssicherheit"
	CategoryProduktsicherheit      Category = "produktsicherheit"
	CategoryLebensmittelsicherheit Category = "lebensmittelsicherheit"
	CategoryVergaberecht           Category = "vergaberecht"
	CategoryWettbewerbsrecht       Category = "wettbewerbsrecht"
	CategoryFinanzdienstleistungen Category = "finanzdienstleistungen"
	CategoryKernsicherheit         Category = "kernsicherheit"
	CategoryTiergesundheit         Category = "tiergesundheit"
	CategorySonstiges              Category = "sonstiges"
)

var validCategories = map[Category]bool{
	CategoryKorruption: true, CategoryBetrug: true, CategoryGeldwaesche: true,
	CategorySteuerhinterziehung: true, CategoryUmweltverstoss: true, CategoryVerbraucherschutz: true,
	CategoryDatenschutz: true, CategoryDiskriminierung: true, CategoryArbeitssicherheit: true,
	CategoryProduktsicherheit: true, CategoryLebensmittelsicherheit: true, CategoryVergaberecht: true,
	CategoryWettbewerbsrecht: true, CategoryFinanzdienstleistungen: true, CategoryKernsicherheit: true,
	CategoryTiergesundheit: true, CategorySonstiges: true,
}

// ValidCategory reports whether c is one of the 17 statutory categories.
func ValidCategory(c Category) bool { return validCategories[c] }

// Priority classifies urgency independent of the case's severity
// classification (which reflects investigative findings, not intake triage).
type Priority string

const (
	PriorityNiedrig  Priority = "niedrig"
	PriorityMittel   Priority = "mittel"
	PriorityHoch     Priority = "hoch"
	PriorityKritisch Priority = "kritisch"
)

// Channel is how the report reached the system.
type Channel string

const (
	ChannelWeb    Channel = "web"
	ChannelEmail  Channel = "email"
	ChannelPhone  Channel = "phone"
	ChannelLetter Channel = "letter"
)

// ContactChannel is the reporter's preferred channel for receiving
// feedback, distinct from the submission Channel.
type ContactChannel string

const (
	ContactEmail ContactChannel = "email"
	ContactPortal ContactChannel = "portal"
	ContactPhone ContactChannel = "phone"
)

// Report (Hinweis) is the central entity: one per submission, 1:1 with
// its Case. Identity-bearing and narrative fields are stored encrypted
// (*Cipher suffix); everything else is clear.
type Report struct {
	ID            string
	TenantID      string
	ReferenceCode string // HW-<year>-<4hex>
	AccessCode    string // >=256 bits entropy, base64url

	IsAnonymous bool

	TitleCipher           string
	DescriptionCipher     string
	ReporterNameCipher    string
	ReporterEmailCipher   string
	ReporterPhoneCipher   string
	AffectedPersonsCipher string
	PreferredContact      ContactChannel

	Category Category
	Priority Priority
	Channel  Channel
	Language string
	IPHash   string

	EingegangenAm             time.Time
	EingangsbestaetigungFrist time.Time
	EingangsbestaetigungAm    *time.Time
	RueckmeldungFrist         time.Time
	RueckmeldungAm            *time.Time
	ArchivalDeadline          *time.Time
	DeletionDeadline          *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository persists Report records.
type Repository interface {
	Create(ctx context.Context, r *Report) error
	Get(ctx context.Context, tenantID, id string) (*Report, error)
	GetByReferenceCode(ctx context.Context, tenantID, referenceCode string) (*Report, error)
	GetByAccessCode(ctx context.Context, accessCode string) (*Report, error)
	Update(ctx context.Context, r *Report) error
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*Report, error)
	// DueForDeletion returns reports whose deletion deadline has elapsed,
	// for the retention sweep.
	DueForDeletion(ctx context.Context, tenantID string, now time.Time) ([]*Report, error)
	// HardDelete permanently removes a report and, transactionally, the
	// records it exclusively owns (case, case events, deadlines,
	// attachments) so a single delete here cascades to all of them.
	HardDelete(ctx context.Context, tenantID, id string) error
	DeleteByTenantID(ctx context.Context, tenantID string) error
}
