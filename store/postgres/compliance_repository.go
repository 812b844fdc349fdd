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

	"github.com/aitema/hinschg-core/compliance"
)

// ComplianceRepository implements compliance.Repository with aggregate
// SQL queries — it never selects encrypted fields or individual rows,
// only counts.
type ComplianceRepository struct {
	db *DB
}

// NewComplianceRepository creates a new compliance aggregation repository.
func NewComplianceRepository(db *DB) *ComplianceRepository {
	return &ComplianceRepository{db: db}
}

// TotalReports counts every report a tenant has received.
func (r *ComplianceRepository) TotalReports(ctx context.Context, tenantID string) (int, error) {
	var total int
	err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reports WHERE tenant_id = $1`, tenantID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return total, nil
}

// MonthlyVolume counts reports received per calendar month since the
// given time.
func (r *ComplianceRepository) MonthlyVolume(ctx context.Context, tenantID string, since time.Time) ([]compliance.MonthlyVolume, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT EXTRACT(YEAR FROM eingegangen_am)::int, EXTRACT(MONTH FROM eingegangen_am)::int, COUNT(*)
		FROM reports
		WHERE tenant_id = $1 AND eingegangen_am >= $2
		GROUP BY 1, 2
		ORDER BY 1, 2
	`, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate monthly volume: %w", err)
	}
	defer rows.Close()

	var out []compliance.MonthlyVolume
	for rows.Next() {
		var v compliance.MonthlyVolume
		if err := rows.Scan(&v.Year, &v.Month, &v.Count); err != nil {
			return nil, fmt.Errorf("failed to scan monthly volume row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CategoryCounts counts reports per HinSchG category.
func (r *ComplianceRepository) CategoryCounts(ctx context.Context, tenantID string) ([]compliance.CategoryCount, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT category, COUNT(*) FROM reports WHERE tenant_id = $1 GROUP BY category ORDER BY COUNT(*) DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate category counts: %w", err)
	}
	defer rows.Close()

	var out []compliance.CategoryCount
	for rows.Next() {
		var c compliance.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category count row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// StatusCounts counts cases per status.
func (r *ComplianceRepository) StatusCounts(ctx context.Context, tenantID string) ([]compliance.StatusCount, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM cases WHERE tenant_id = $1 GROUP BY status
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate status counts: %w", err)
	}
	defer rows.Close()

	var out []compliance.StatusCount
	for rows.Next() {
		var s compliance.StatusCount
		if err := rows.Scan(&s.Status, &s.Count); err != nil {
			return nil, fmt.Errorf("failed to scan status count row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// OverdueCounts computes the three deadline-compliance aggregates as of
// now: reports whose acknowledgement deadline has passed without one
// sent, reports whose feedback deadline has passed without one sent
// (excluding closed/rejected cases), and reports that are either
// acknowledged already or still within their acknowledgement window.
func (r *ComplianceRepository) OverdueCounts(ctx context.Context, tenantID string, now time.Time) (overdueAck, overdueFeedback, withinAckWindow int, err error) {
	err = r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM reports
		WHERE tenant_id = $1 AND eingangsbestaetigung_am IS NULL AND eingangsbestaetigung_frist < $2
	`, tenantID, now).Scan(&overdueAck)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count overdue acknowledgements: %w", err)
	}

	err = r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM reports r
		JOIN cases c ON c.report_id = r.id AND c.tenant_id = r.tenant_id
		WHERE r.tenant_id = $1 AND r.rueckmeldung_am IS NULL AND r.rueckmeldung_frist < $2
			AND c.status NOT IN ('abgeschlossen', 'eingestellt')
	`, tenantID, now).Scan(&overdueFeedback)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count overdue feedback: %w", err)
	}

	err = r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM reports
		WHERE tenant_id = $1 AND (eingangsbestaetigung_am IS NOT NULL OR eingangsbestaetigung_frist > $2)
	`, tenantID, now).Scan(&withinAckWindow)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count reports within acknowledgement window: %w", err)
	}

	return overdueAck, overdueFeedback, withinAckWindow, nil
}
