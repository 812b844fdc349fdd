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

	"github.com/aitema/hinschg-core/deadline"
)

// DeadlineRepository implements deadline.Repository.
type DeadlineRepository struct {
	db *DB
}

// NewDeadlineRepository creates a new deadline repository.
func NewDeadlineRepository(db *DB) *DeadlineRepository {
	return &DeadlineRepository{db: db}
}

const deadlineColumns = `id, tenant_id, case_id, type, due_at, done_at, reminder_sent, escalated, created_at`

func scanDeadline(row pgx.Row) (*deadline.Deadline, error) {
	var d deadline.Deadline
	err := row.Scan(&d.ID, &d.TenantID, &d.CaseID, &d.Type, &d.DueAt, &d.DoneAt, &d.ReminderSent, &d.Escalated, &d.CreatedAt)
	return &d, err
}

// Create inserts a new deadline.
func (r *DeadlineRepository) Create(ctx context.Context, d *deadline.Deadline) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO deadlines (`+deadlineColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, d.ID, d.TenantID, d.CaseID, d.Type, d.DueAt, d.DoneAt, d.ReminderSent, d.Escalated, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create deadline: %w", err)
	}
	return nil
}

// Get retrieves a deadline by id.
func (r *DeadlineRepository) Get(ctx context.Context, tenantID, id string) (*deadline.Deadline, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+deadlineColumns+` FROM deadlines WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	d, err := scanDeadline(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("deadline not found")
		}
		return nil, fmt.Errorf("failed to get deadline: %w", err)
	}
	return d, nil
}

// GetOpenByCase retrieves the open deadline of the given type for a case.
func (r *DeadlineRepository) GetOpenByCase(ctx context.Context, tenantID, caseID string, typ deadline.Type) (*deadline.Deadline, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+deadlineColumns+` FROM deadlines
		WHERE tenant_id = $1 AND case_id = $2 AND type = $3 AND done_at IS NULL
	`, tenantID, caseID, typ)
	d, err := scanDeadline(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("open deadline not found")
		}
		return nil, fmt.Errorf("failed to get open deadline: %w", err)
	}
	return d, nil
}

// MarkDone records fulfilment of a deadline.
func (r *DeadlineRepository) MarkDone(ctx context.Context, tenantID, id string, doneAt time.Time) error {
	_, err := r.db.pool.Exec(ctx, `UPDATE deadlines SET done_at = $3 WHERE id = $1 AND tenant_id = $2`, id, tenantID, doneAt)
	if err != nil {
		return fmt.Errorf("failed to mark deadline done: %w", err)
	}
	return nil
}

// MarkEscalated flags a deadline as having triggered escalation, so the
// scheduler's sweep doesn't re-escalate the same case every tick.
func (r *DeadlineRepository) MarkEscalated(ctx context.Context, tenantID, id string) error {
	_, err := r.db.pool.Exec(ctx, `UPDATE deadlines SET escalated = true WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to mark deadline escalated: %w", err)
	}
	return nil
}

// MarkReminderSent flags that a reminder notification has gone out.
func (r *DeadlineRepository) MarkReminderSent(ctx context.Context, tenantID, id string) error {
	_, err := r.db.pool.Exec(ctx, `UPDATE deadlines SET reminder_sent = true WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return nil
}

// DueForEscalation returns open, non-escalated deadlines whose due_at has
// already passed.
func (r *DeadlineRepository) DueForEscalation(ctx context.Context, tenantID string, now time.Time) ([]*deadline.Deadline, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+deadlineColumns+` FROM deadlines
		WHERE tenant_id = $1 AND done_at IS NULL AND escalated = false AND due_at <= $2
		ORDER BY due_at ASC
	`, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query deadlines due for escalation: %w", err)
	}
	defer rows.Close()
	return scanDeadlines(rows)
}

// DueForReminder returns open, non-reminded deadlines due within horizon.
func (r *DeadlineRepository) DueForReminder(ctx context.Context, tenantID string, now time.Time, horizon time.Duration) ([]*deadline.Deadline, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+deadlineColumns+` FROM deadlines
		WHERE tenant_id = $1 AND done_at IS NULL AND reminder_sent = false AND due_at <= $2
		ORDER BY due_at ASC
	`, tenantID, now.Add(horizon))
	if err != nil {
		return nil, fmt.Errorf("failed to query deadlines due for reminder: %w", err)
	}
	defer rows.Close()
	return scanDeadlines(rows)
}

// DeleteByTenantID purges every deadline owned by a deleted tenant.
func (r *DeadlineRepository) DeleteByTenantID(ctx context.Context, tenantID string) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM deadlines WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant deadlines: %w", err)
	}
	return nil
}

func scanDeadlines(rows pgx.Rows) ([]*deadline.Deadline, error) {
	var out []*deadline.Deadline
	for rows.Next() {
		d, err := scanDeadline(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deadline: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
