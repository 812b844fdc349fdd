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

	"github.com/aitema/hinschg-core/anon"
)

// AnonRepository implements anon.Repository.
type AnonRepository struct {
	db *DB
}

// NewAnonRepository creates a new anonymous-channel repository.
func NewAnonRepository(db *DB) *AnonRepository {
	return &AnonRepository{db: db}
}

const anonSubmissionColumns = `
	id, tenant_id, case_id, receipt_code, description_cipher, category,
	priority, language, eingegangen_am, eingangsbestaetigung_frist,
	eingangsbestaetigung_am, rueckmeldung_frist, rueckmeldung_am,
	deletion_deadline, created_at, updated_at
`

func scanAnonSubmission(row pgx.Row) (*anon.Submission, error) {
	var s anon.Submission
	err := row.Scan(
		&s.ID, &s.TenantID, &s.CaseID, &s.ReceiptCode, &s.DescriptionCipher, &s.Category,
		&s.Priority, &s.Language, &s.EingegangenAm, &s.EingangsbestaetigungFrist,
		&s.EingangsbestaetigungAm, &s.RueckmeldungFrist, &s.RueckmeldungAm,
		&s.DeletionDeadline, &s.CreatedAt, &s.UpdatedAt,
	)
	return &s, err
}

func scanAnonSubmissionOrNotFound(row pgx.Row) (*anon.Submission, error) {
	s, err := scanAnonSubmission(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("anonymous submission not found")
		}
		return nil, fmt.Errorf("failed to scan anonymous submission: %w", err)
	}
	return s, nil
}

// CreateSubmission inserts a new anonymous submission.
func (r *AnonRepository) CreateSubmission(ctx context.Context, s *anon.Submission) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO anon_submissions (`+anonSubmissionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`,
		s.ID, s.TenantID, nullString(s.CaseID), s.ReceiptCode, s.DescriptionCipher, s.Category,
		s.Priority, s.Language, s.EingegangenAm, s.EingangsbestaetigungFrist,
		s.EingangsbestaetigungAm, s.RueckmeldungFrist, s.RueckmeldungAm,
		s.DeletionDeadline, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create anonymous submission: %w", err)
	}
	return nil
}

// GetSubmissionByReceiptCode looks up a submission by its normalized
// receipt code. Not tenant-scoped by design: the receipt code alone is
// the reporter's only credential.
func (r *AnonRepository) GetSubmissionByReceiptCode(ctx context.Context, receiptCode string) (*anon.Submission, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+anonSubmissionColumns+` FROM anon_submissions WHERE receipt_code = $1`, receiptCode)
	return scanAnonSubmissionOrNotFound(row)
}

// GetSubmissionByID looks up a submission by its tenant-scoped primary
// key, for callers (archival stamping, internal tooling) that already
// hold the id rather than the receipt code.
func (r *AnonRepository) GetSubmissionByID(ctx context.Context, tenantID, id string) (*anon.Submission, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+anonSubmissionColumns+` FROM anon_submissions WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	return scanAnonSubmissionOrNotFound(row)
}

// UpdateSubmission persists mutated submission fields (case linkage,
// acknowledgement/feedback timestamps).
func (r *AnonRepository) UpdateSubmission(ctx context.Context, s *anon.Submission) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE anon_submissions SET
			case_id = $3, eingangsbestaetigung_am = $4, rueckmeldung_am = $5,
			priority = $6, deletion_deadline = $7, updated_at = $8
		WHERE id = $1 AND tenant_id = $2
	`, s.ID, s.TenantID, nullString(s.CaseID), s.EingangsbestaetigungAm, s.RueckmeldungAm, s.Priority, s.DeletionDeadline, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update anonymous submission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("anonymous submission not found")
	}
	return nil
}

// AddMessage appends a message to a submission's conversation.
func (r *AnonRepository) AddMessage(ctx context.Context, m *anon.Message) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO anon_messages (id, tenant_id, submission_id, direction, body_cipher, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, m.ID, m.TenantID, m.SubmissionID, string(m.Direction), m.BodyCipher, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add anonymous message: %w", err)
	}
	return nil
}

// ListMessages returns a submission's conversation in chronological order.
func (r *AnonRepository) ListMessages(ctx context.Context, tenantID, submissionID string) ([]*anon.Message, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, tenant_id, submission_id, direction, body_cipher, created_at
		FROM anon_messages
		WHERE tenant_id = $1 AND submission_id = $2
		ORDER BY created_at ASC
	`, tenantID, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list anonymous messages: %w", err)
	}
	defer rows.Close()

	var out []*anon.Message
	for rows.Next() {
		var m anon.Message
		var direction string
		if err := rows.Scan(&m.ID, &m.TenantID, &m.SubmissionID, &direction, &m.BodyCipher, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan anonymous message: %w", err)
		}
		m.Direction = anon.Direction(direction)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// DueForDeletion returns submissions past their deletion deadline, for
// the retention sweep.
func (r *AnonRepository) DueForDeletion(ctx context.Context, tenantID string, now time.Time) ([]*anon.Submission, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+anonSubmissionColumns+` FROM anon_submissions
		WHERE tenant_id = $1 AND deletion_deadline IS NOT NULL AND deletion_deadline <= $2
		ORDER BY deletion_deadline ASC
	`, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query anonymous submissions due for deletion: %w", err)
	}
	defer rows.Close()

	var out []*anon.Submission
	for rows.Next() {
		s, err := scanAnonSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan anonymous submission: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// HardDelete permanently removes a submission. Its messages cascade
// from anon_submissions.id ON DELETE CASCADE.
func (r *AnonRepository) HardDelete(ctx context.Context, tenantID, id string) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin submission deletion transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// cases.report_id carries no foreign key here either (see
	// report_repository.go's HardDelete), so the case row is deleted
	// explicitly; anon_messages cascades via its own foreign key.
	if _, err := tx.Exec(ctx, `DELETE FROM cases WHERE tenant_id = $1 AND report_id = $2`, tenantID, id); err != nil {
		return fmt.Errorf("failed to delete submission's case: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM attachments WHERE tenant_id = $1 AND submission_id = $2`, tenantID, id); err != nil {
		return fmt.Errorf("failed to delete submission's attachments: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM anon_submissions WHERE id = $1 AND tenant_id = $2`, id, tenantID); err != nil {
		return fmt.Errorf("failed to hard-delete anonymous submission: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit submission deletion: %w", err)
	}
	return nil
}

// DeleteByTenantID purges every anonymous submission (and, by cascade,
// its messages) owned by a deleted tenant. Cases are not reached from
// here (cases.report_id has no foreign key).
func (r *AnonRepository) DeleteByTenantID(ctx context.Context, tenantID string) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM anon_submissions WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant anonymous submissions: %w", err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
