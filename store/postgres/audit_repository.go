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
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aitema/hinschg-core/audit"
	"github.com/aitema/hinschg-core/id"
)

// AuditRepository implements audit.Repository, chaining each tenant's
// entries via HMAC-SHA256 per HinSchG §11.
type AuditRepository struct {
	db      *DB
	hmacKey []byte
}

// NewAuditRepository creates a new audit repository. hmacKey is the
// process-wide audit integrity key (config.Config.AuditHMACKey); it never
// leaves this package.
func NewAuditRepository(db *DB, hmacKey []byte) *AuditRepository {
	return &AuditRepository{db: db, hmacKey: hmacKey}
}

// Log persists an event, chaining it onto the tenant's last entry inside
// a single transaction so the prev_hash read and the insert are
// serialized against concurrent writers for the same tenant.
func (r *AuditRepository) Log(ctx context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = id.NewUUIDv7()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	prevHash := audit.GenesisHash
	row := tx.QueryRow(ctx, `
		SELECT integrity FROM audit_events
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
		FOR UPDATE
	`, event.TenantID)
	var last string
	if err := row.Scan(&last); err == nil {
		prevHash = last
	} else if err != pgx.ErrNoRows {
		return fmt.Errorf("failed to read last audit entry: %w", err)
	}

	integrity, err := audit.ComputeIntegrity(r.hmacKey, prevHash, event)
	if err != nil {
		return fmt.Errorf("failed to compute audit integrity: %w", err)
	}

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_events (
			id, type, tenant_id, actor_id, actor_name, resource, target_name, target_id,
			method, path, ip_hash, user_agent, metadata, success, prev_hash, integrity, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`,
		event.ID, event.Type, nullableString(event.TenantID), nullableString(event.ActorID), event.ActorName,
		event.Resource, event.TargetName, event.TargetID,
		event.Request.Method, event.Request.Path, event.Request.IPHash, event.Request.UserAgent,
		metadata, event.Success, prevHash, integrity, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit audit transaction: %w", err)
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// List retrieves events matching filter, most recent first.
func (r *AuditRepository) List(ctx context.Context, filter audit.Filter) ([]audit.Event, int, error) {
	where, args := filterWhere(filter)

	var total int
	if err := r.db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_events e "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit events: %w", err)
	}

	limit, offset := filter.Limit, filter.Offset
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT e.id, e.type, COALESCE(e.tenant_id, ''), COALESCE(e.actor_id, ''), e.actor_name,
			e.resource, COALESCE(e.target_name, ''), COALESCE(e.target_id, ''),
			COALESCE(e.method, ''), COALESCE(e.path, ''), COALESCE(e.ip_hash, ''), COALESCE(e.user_agent, ''),
			e.metadata, e.success, e.created_at
		FROM audit_events e %s
		ORDER BY e.created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		var metadata []byte
		if err := rows.Scan(
			&e.ID, &e.Type, &e.TenantID, &e.ActorID, &e.ActorName, &e.Resource,
			&e.TargetName, &e.TargetID, &e.Request.Method, &e.Request.Path, &e.Request.IPHash,
			&e.Request.UserAgent, &metadata, &e.Success, &e.Timestamp,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, 0, fmt.Errorf("failed to decode audit metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// VerifyChain recomputes the integrity chain for a tenant and reports
// whether every stored hash matches its recomputation.
func (r *AuditRepository) VerifyChain(ctx context.Context, tenantID string) (bool, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT e.id, e.type, COALESCE(e.tenant_id, ''), COALESCE(e.actor_id, ''), e.actor_name,
			e.resource, COALESCE(e.target_name, ''), COALESCE(e.target_id, ''), e.metadata, e.success,
			e.created_at, e.prev_hash, e.integrity
		FROM audit_events e
		WHERE e.tenant_id = $1
		ORDER BY e.created_at ASC, e.id ASC
	`, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to read audit chain: %w", err)
	}
	defer rows.Close()

	var entries []audit.ChainedEntry
	for rows.Next() {
		var e audit.Event
		var metadata []byte
		var prevHash, integrity string
		if err := rows.Scan(
			&e.ID, &e.Type, &e.TenantID, &e.ActorID, &e.ActorName, &e.Resource,
			&e.TargetName, &e.TargetID, &metadata, &e.Success, &e.Timestamp, &prevHash, &integrity,
		); err != nil {
			return false, fmt.Errorf("failed to scan audit chain entry: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return false, fmt.Errorf("failed to decode audit metadata: %w", err)
			}
		}
		entries = append(entries, audit.ChainedEntry{Event: e, PrevHash: prevHash, Integrity: integrity})
	}
	if err := rows.Err(); err != nil {
		return false, err
	}

	brokenAt, err := audit.VerifyChain(r.hmacKey, entries)
	if err != nil {
		return false, err
	}
	return brokenAt == -1, nil
}

// filterBuilder and filterWhere build the WHERE clause for an
// audit.Filter; they are plain helpers here because Filter lives in
// another package and cannot carry methods defined in this one.
type filterBuilder struct {
	where []string
	args  []any
}

func filterWhere(f audit.Filter) (string, []any) {
	b := &filterBuilder{}
	idx := 1
	add := func(clause string, value any) {
		b.where = append(b.where, fmt.Sprintf(clause, idx))
		b.args = append(b.args, value)
		idx++
	}
	if f.TenantID != nil {
		add("e.tenant_id = $%d", *f.TenantID)
	}
	if f.ActorID != nil {
		add("e.actor_id = $%d", *f.ActorID)
	}
	if f.Type != nil {
		add("e.type = $%d", *f.Type)
	}
	if f.StartDate != nil {
		add("e.created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("e.created_at <= $%d", *f.EndDate)
	}
	if len(b.where) == 0 {
		return "", b.args
	}
	return "WHERE " + strings.Join(b.where, " AND "), b.args
}
