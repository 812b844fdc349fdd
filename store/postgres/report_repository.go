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
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aitema/hinschg-core/report"
)

// ReportRepository implements report.Repository.
type ReportRepository struct {
	db *DB
}

// NewReportRepository creates a new report repository.
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `
	id, tenant_id, reference_code, access_code, is_anonymous,
	title_cipher, description_cipher, reporter_name_cipher, reporter_email_cipher,
	reporter_phone_cipher, affected_persons_cipher, preferred_contact,
	category, priority, channel, language, ip_hash,
	eingegangen_am, eingangsbestaetigung_frist, eingangsbestaetigung_am,
	rueckmeldung_frist, rueckmeldung_am, archival_deadline, deletion_deadline,
	created_at, updated_at
`

func scanReport(row pgx.Row) (*report.Report, error) {
	var r report.Report
	err := row.Scan(
		&r.ID, &r.TenantID, &r.ReferenceCode, &r.AccessCode, &r.IsAnonymous,
		&r.TitleCipher, &r.DescriptionCipher, &r.ReporterNameCipher, &r.ReporterEmailCipher,
		&r.ReporterPhoneCipher, &r.AffectedPersonsCipher, &r.PreferredContact,
		&r.Category, &r.Priority, &r.Channel, &r.Language, &r.IPHash,
		&r.EingegangenAm, &r.EingangsbestaetigungFrist, &r.EingangsbestaetigungAm,
		&r.RueckmeldungFrist, &r.RueckmeldungAm, &r.ArchivalDeadline, &r.DeletionDeadline,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return &r, err
}

func scanReportOrNotFound(row pgx.Row) (*report.Report, error) {
	rep, err := scanReport(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, report.ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}
	return rep, nil
}

// Create inserts a new report.
func (r *ReportRepository) Create(ctx context.Context, rep *report.Report) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO reports (`+reportColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
	`,
		rep.ID, rep.TenantID, rep.ReferenceCode, rep.AccessCode, rep.IsAnonymous,
		rep.TitleCipher, rep.DescriptionCipher, rep.ReporterNameCipher, rep.ReporterEmailCipher,
		rep.ReporterPhoneCipher, rep.AffectedPersonsCipher, rep.PreferredContact,
		rep.Category, rep.Priority, rep.Channel, rep.Language, rep.IPHash,
		rep.EingegangenAm, rep.EingangsbestaetigungFrist, rep.EingangsbestaetigungAm,
		rep.RueckmeldungFrist, rep.RueckmeldungAm, rep.ArchivalDeadline, rep.DeletionDeadline,
		rep.CreatedAt, rep.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// Get retrieves a report by tenant-scoped id.
func (r *ReportRepository) Get(ctx context.Context, tenantID, id string) (*report.Report, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	return scanReportOrNotFound(row)
}

// GetByReferenceCode retrieves a report by its human-readable reference code.
func (r *ReportRepository) GetByReferenceCode(ctx context.Context, tenantID, code string) (*report.Report, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE reference_code = $1 AND tenant_id = $2`, code, tenantID)
	return scanReportOrNotFound(row)
}

// GetByAccessCode retrieves a report by its opaque access code. Not
// tenant-scoped by design: the access code alone is the credential for
// anonymous status lookup.
func (r *ReportRepository) GetByAccessCode(ctx context.Context, accessCode string) (*report.Report, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE access_code = $1`, accessCode)
	return scanReportOrNotFound(row)
}

// Update persists mutated report fields (acknowledgement/feedback
// timestamps, archival/deletion scheduling).
func (r *ReportRepository) Update(ctx context.Context, rep *report.Report) error {
	rep.UpdatedAt = time.Now()
	result, err := r.db.pool.Exec(ctx, `
		UPDATE reports SET
			eingangsbestaetigung_am = $3, rueckmeldung_am = $4,
			archival_deadline = $5, deletion_deadline = $6, priority = $7, updated_at = $8
		WHERE id = $1 AND tenant_id = $2
	`, rep.ID, rep.TenantID, rep.EingangsbestaetigungAm, rep.RueckmeldungAm,
		rep.ArchivalDeadline, rep.DeletionDeadline, rep.Priority, rep.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("report not found")
	}
	return nil
}

// ListByTenant lists reports for a tenant with pagination.
func (r *ReportRepository) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*report.Report, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+reportColumns+` FROM reports
		WHERE tenant_id = $1
		ORDER BY eingegangen_am DESC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var out []*report.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// DueForDeletion returns reports past their deletion deadline, for the
// retention sweep.
func (r *ReportRepository) DueForDeletion(ctx context.Context, tenantID string, now time.Time) ([]*report.Report, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+reportColumns+` FROM reports
		WHERE tenant_id = $1 AND deletion_deadline IS NOT NULL AND deletion_deadline <= $2
		ORDER BY deletion_deadline ASC
	`, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports due for deletion: %w", err)
	}
	defer rows.Close()

	var out []*report.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// HardDelete permanently removes a report and everything it exclusively
// owns, in one transaction. Neither cases nor attachments carry a foreign
// key to reports, so both are deleted explicitly before the report row.
func (r *ReportRepository) HardDelete(ctx context.Context, tenantID, id string) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin report deletion transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// cases.report_id carries no foreign key (it is shared with
	// anon_submissions.id depending on intake channel), so the case row
	// has to be deleted explicitly; its own foreign keys then cascade
	// to case_events and deadlines.
	if _, err := tx.Exec(ctx, `DELETE FROM cases WHERE tenant_id = $1 AND report_id = $2`, tenantID, id); err != nil {
		return fmt.Errorf("failed to delete report's case: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM attachments WHERE tenant_id = $1 AND report_id = $2`, tenantID, id); err != nil {
		return fmt.Errorf("failed to delete report's attachments: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM reports WHERE id = $1 AND tenant_id = $2`, id, tenantID); err != nil {
		return fmt.Errorf("failed to hard-delete report: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit report deletion: %w", err)
	}
	return nil
}

// DeleteByTenantID purges every report owned by a deleted tenant. Cases
// are not reached from here (cases.report_id has no foreign key); the
// case repository's own DeleteByTenantID removes them.
func (r *ReportRepository) DeleteByTenantID(ctx context.Context, tenantID string) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM reports WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant reports: %w", err)
	}
	return nil
}
