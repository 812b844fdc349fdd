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

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aitema/hinschg-core/casemgmt"
)

// CaseRepository implements casemgmt.Repository.
type CaseRepository struct {
	db *DB
}

// NewCaseRepository creates a new case repository.
func NewCaseRepository(db *DB) *CaseRepository {
	return &CaseRepository{db: db}
}

const caseColumns = `
	id, tenant_id, report_id, number, status, previous_status, assignee,
	severity, substantiated, compliance_violation, criminal_suspicion,
	external_report_at, external_body, damage_estimate,
	eskaliert, eskaliert_am,
	forwarded_to_ombudsperson_at, forwarded_to_ombudsperson_by,
	ombudsperson_recommendation, ombudsperson_reviewed_at, ombudsperson_reviewed_by,
	ombudsperson_notes_cipher, acknowledged_at, resolved_at, closed_at,
	created_at, updated_at
`

func scanCase(row pgx.Row) (*casemgmt.Case, error) {
	var c casemgmt.Case
	err := row.Scan(
		&c.ID, &c.TenantID, &c.ReportID, &c.Number, &c.Status, &c.PreviousStatus, &c.Assignee,
		&c.Severity, &c.Substantiated, &c.ComplianceViolation, &c.CriminalSuspicion,
		&c.ExternalReportAt, &c.ExternalBody, &c.DamageEstimate,
		&c.Eskaliert, &c.EskaliertAm,
		&c.ForwardedToOmbudspersonAt, &c.ForwardedToOmbudspersonBy,
		&c.OmbudspersonRecommendation, &c.OmbudspersonReviewedAt, &c.OmbudspersonReviewedBy,
		&c.OmbudspersonNotesCipher, &c.AcknowledgedAt, &c.ResolvedAt, &c.ClosedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return &c, err
}

func scanCaseOrNotFound(row pgx.Row) (*casemgmt.Case, error) {
	c, err := scanCase(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("case not found")
		}
		return nil, fmt.Errorf("failed to scan case: %w", err)
	}
	return c, nil
}

// Create inserts a new case. c.Number is expected to already carry its
// statutory <SLUG>-<year>-<4digits> format; casemgmt.Service.Open
// derives it before calling Create.
func (r *CaseRepository) Create(ctx context.Context, c *casemgmt.Case) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO cases (`+caseColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)
	`,
		c.ID, c.TenantID, c.ReportID, c.Number, c.Status, c.PreviousStatus, c.Assignee,
		c.Severity, c.Substantiated, c.ComplianceViolation, c.CriminalSuspicion,
		c.ExternalReportAt, c.ExternalBody, c.DamageEstimate,
		c.Eskaliert, c.EskaliertAm,
		c.ForwardedToOmbudspersonAt, c.ForwardedToOmbudspersonBy,
		c.OmbudspersonRecommendation, c.OmbudspersonReviewedAt, c.OmbudspersonReviewedBy,
		c.OmbudspersonNotesCipher, c.AcknowledgedAt, c.ResolvedAt, c.ClosedAt,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create case: %w", err)
	}
	return nil
}

// Get retrieves a case without locking.
func (r *CaseRepository) Get(ctx context.Context, tenantID, id string) (*casemgmt.Case, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	return scanCaseOrNotFound(row)
}

// GetByReportID retrieves the case owned by a report.
func (r *CaseRepository) GetByReportID(ctx context.Context, tenantID, reportID string) (*casemgmt.Case, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE report_id = $1 AND tenant_id = $2`, reportID, tenantID)
	return scanCaseOrNotFound(row)
}

// CountForTenantSince counts a tenant's cases created at or after since.
func (r *CaseRepository) CountForTenantSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	var count int
	err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cases WHERE tenant_id = $1 AND created_at >= $2`, tenantID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tenant cases: %w", err)
	}
	return count, nil
}

// GetForUpdate retrieves a case row-locked for the caller's transaction.
//
// Note: pgxpool.Pool.QueryRow does not itself open a transaction, so
// "FOR UPDATE" here locks only for the lifetime of the single statement
// under the pool's autocommit behavior. Callers that need the lock held
// across multiple statements must drive this through an explicit
// pgx.Tx — left as a seam for the transactional wiring the case service
// composes at its call site.
func (r *CaseRepository) GetForUpdate(ctx context.Context, tenantID, id string) (*casemgmt.Case, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1 AND tenant_id = $2 FOR UPDATE`, id, tenantID)
	return scanCaseOrNotFound(row)
}

// Update persists a case's mutable fields.
func (r *CaseRepository) Update(ctx context.Context, c *casemgmt.Case) error {
	c.UpdatedAt = time.Now()
	result, err := r.db.pool.Exec(ctx, `
		UPDATE cases SET
			status = $3, previous_status = $4, assignee = $5,
			severity = $6, substantiated = $7, compliance_violation = $8, criminal_suspicion = $9,
			external_report_at = $10, external_body = $11, damage_estimate = $12,
			eskaliert = $13, eskaliert_am = $14,
			forwarded_to_ombudsperson_at = $15, forwarded_to_ombudsperson_by = $16,
			ombudsperson_recommendation = $17, ombudsperson_reviewed_at = $18, ombudsperson_reviewed_by = $19,
			ombudsperson_notes_cipher = $20, acknowledged_at = $21, resolved_at = $22, closed_at = $23,
			updated_at = $24
		WHERE id = $1 AND tenant_id = $2
	`,
		c.ID, c.TenantID, c.Status, c.PreviousStatus, c.Assignee,
		c.Severity, c.Substantiated, c.ComplianceViolation, c.CriminalSuspicion,
		c.ExternalReportAt, c.ExternalBody, c.DamageEstimate,
		c.Eskaliert, c.EskaliertAm,
		c.ForwardedToOmbudspersonAt, c.ForwardedToOmbudspersonBy,
		c.OmbudspersonRecommendation, c.OmbudspersonReviewedAt, c.OmbudspersonReviewedBy,
		c.OmbudspersonNotesCipher, c.AcknowledgedAt, c.ResolvedAt, c.ClosedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("case not found")
	}
	return nil
}

// AppendEvent records an append-only case history entry.
func (r *CaseRepository) AppendEvent(ctx context.Context, e *casemgmt.CaseEvent) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode case event metadata: %w", err)
	}
	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO case_events (id, tenant_id, case_id, type, old_status, new_status, actor,
			description_cipher, metadata, internal, visible_to_reporter, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, e.ID, e.TenantID, e.CaseID, e.Type, e.OldStatus, e.NewStatus, e.Actor,
		e.DescriptionCipher, metadata, e.Internal, e.VisibleToReporter, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append case event: %w", err)
	}
	return nil
}

// ListByStatus lists cases in a given status for a tenant.
func (r *CaseRepository) ListByStatus(ctx context.Context, tenantID string, status casemgmt.Status) ([]*casemgmt.Case, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+caseColumns+` FROM cases WHERE tenant_id = $1 AND status = $2`, tenantID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases by status: %w", err)
	}
	defer rows.Close()
	return scanCases(rows)
}

// ListForwardedToOmbudsperson lists cases forwarded for independent review.
func (r *CaseRepository) ListForwardedToOmbudsperson(ctx context.Context, tenantID string) ([]*casemgmt.Case, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+caseColumns+` FROM cases WHERE tenant_id = $1 AND forwarded_to_ombudsperson_at IS NOT NULL
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list forwarded cases: %w", err)
	}
	defer rows.Close()
	return scanCases(rows)
}

// DeleteByTenantID purges every case owned by a deleted tenant. Case
// events cascade via cases.id ON DELETE CASCADE.
func (r *CaseRepository) DeleteByTenantID(ctx context.Context, tenantID string) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM cases WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant cases: %w", err)
	}
	return nil
}

func scanCases(rows pgx.Rows) ([]*casemgmt.Case, error) {
	var out []*casemgmt.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
