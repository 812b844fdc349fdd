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

// Package casemgmt implements the case lifecycle state machine: the
// authoritative 9-state transition table, its derived side effects, and
// the statutory operations (acknowledge, resolve, forward, recommend)
// that are distinct from status but still at-most-once.
package casemgmt

import (
	"context"
	"time"
)

// Status is one of the 9 authoritative case states.
type Status string

const (
	StatusOffen         Status = "offen"
	StatusZugewiesen    Status = "zugewiesen"
	StatusInErmittlung  Status = "in_ermittlung"
	StatusStellungnahme Status = "stellungnahme"
	StatusMassnahmen    Status = "massnahmen"
	StatusUmsetzung     Status = "umsetzung"
	StatusAbgeschlossen Status = "abgeschlossen"
	StatusEingestellt   Status = "eingestellt"
	StatusEskaliert     Status = "eskaliert"
)

// Severity classifies the gravity of the underlying report.
type Severity string

const (
	SeverityGering   Severity = "gering"
	SeverityMittel   Severity = "mittel"
	SeveritySchwer   Severity = "schwer"
	SeverityKritisch Severity = "kritisch"
)

// Recommendation is an ombudsperson's disposition of a forwarded case.
type Recommendation string

const (
	RecommendationPursue   Recommendation = "pursue"
	RecommendationClose    Recommendation = "close"
	RecommendationEscalate Recommendation = "escalate"
)

// EventType enumerates CaseEvent kinds.
const (
	EventStatusChange = "status_change"
	EventAcknowledged = "acknowledged"
	EventResolved     = "resolved"
	EventForwarded    = "forwarded_to_ombudsperson"
	EventRecommended  = "recommendation_recorded"
)

// Case is the processing vessel around a Report; 1:1 with Report within a
// tenant.
type Case struct {
	ID       string
	TenantID string
	ReportID string
	Number   string // <SLUG>-<year>-<4digits>

	Status         Status
	PreviousStatus Status
	Assignee       string

	Severity            Severity
	Substantiated       *bool
	ComplianceViolation bool
	CriminalSuspicion   bool
	ExternalReportAt    *time.Time
	ExternalBody        string
	DamageEstimate      string

	Eskaliert   bool
	EskaliertAm *time.Time

	ForwardedToOmbudspersonAt  *time.Time
	ForwardedToOmbudspersonBy  string
	OmbudspersonRecommendation Recommendation
	OmbudspersonReviewedAt     *time.Time
	OmbudspersonReviewedBy     string
	// OmbudspersonNotesCipher is the envelope-encrypted recommendation
	// narrative. Encrypted at rest; the ombudsperson package decrypts it
	// under the case's crypto.FieldContext.
	OmbudspersonNotesCipher string

	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
	ClosedAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CaseEvent is an append-only history entry tied to a case.
type CaseEvent struct {
	ID                string
	TenantID          string
	CaseID            string
	Type              string
	OldStatus         Status
	NewStatus         Status
	Actor             string
	DescriptionCipher string
	Metadata          map[string]any
	Internal          bool
	VisibleToReporter bool
	CreatedAt         time.Time
}

// transitionTable is the authoritative status transition map, built
// once at package init.
var transitionTable = map[Status]map[Status]bool{
	StatusOffen: {
		StatusZugewiesen:  true,
		StatusEingestellt: true,
	},
	StatusZugewiesen: {
		StatusInErmittlung: true,
		StatusEingestellt:  true,
		StatusOffen:        true,
	},
	StatusInErmittlung: {
		StatusStellungnahme: true,
		StatusMassnahmen:    true,
		StatusAbgeschlossen: true,
		StatusEingestellt:   true,
		StatusEskaliert:     true,
	},
	StatusStellungnahme: {
		StatusInErmittlung:  true,
		StatusMassnahmen:    true,
		StatusAbgeschlossen: true,
		StatusEskaliert:     true,
	},
	StatusMassnahmen: {
		StatusUmsetzung:     true,
		StatusAbgeschlossen: true,
		StatusEskaliert:     true,
	},
	StatusUmsetzung: {
		StatusAbgeschlossen: true,
		StatusMassnahmen:    true,
	},
	StatusEingestellt: {
		StatusOffen: true,
	},
	StatusEskaliert: {
		StatusInErmittlung: true,
		StatusAbgeschlossen: true,
	},
	StatusAbgeschlossen: {}, // terminal
}

// CanTransition reports whether from -> to is permitted by the authoritative table.
func CanTransition(from, to Status) bool {
	next, ok := transitionTable[from]
	if !ok {
		return false
	}
	return next[to]
}

// Terminal reports whether status has no outgoing transitions.
func Terminal(status Status) bool {
	next, ok := transitionTable[status]
	return ok && len(next) == 0
}

// Repository persists Case and CaseEvent records.
type Repository interface {
	Create(ctx context.Context, c *Case) error
	Get(ctx context.Context, tenantID, id string) (*Case, error)
	GetByReportID(ctx context.Context, tenantID, reportID string) (*Case, error)
	// GetForUpdate locks the case row for the duration of the caller's
	// transaction, the Go-native equivalent of SELECT ... FOR UPDATE.
	GetForUpdate(ctx context.Context, tenantID, id string) (*Case, error)
	Update(ctx context.Context, c *Case) error
	AppendEvent(ctx context.Context, e *CaseEvent) error
	ListByStatus(ctx context.Context, tenantID string, status Status) ([]*Case, error)
	ListForwardedToOmbudsperson(ctx context.Context, tenantID string) ([]*Case, error)
	// CountForTenantSince counts a tenant's cases created at or after
	// since, for deriving the next case number's sequence component.
	CountForTenantSince(ctx context.Context, tenantID string, since time.Time) (int, error)
	DeleteByTenantID(ctx context.Context, tenantID string) error
}
