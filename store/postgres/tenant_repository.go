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

	"github.com/aitema/hinschg-core/tenant"
)

// TenantRepository implements tenant.Repository.
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new tenant repository.
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

type tenantConfigRow struct {
	AckDays        int             `json:"ack_days"`
	FeedbackDays   int             `json:"feedback_days"`
	RetentionYears int             `json:"retention_years"`
	FeatureFlags   map[string]bool `json:"feature_flags"`
}

func encodeConfig(c tenant.Config) ([]byte, error) {
	return json.Marshal(tenantConfigRow{
		AckDays:        c.Deadlines.AckDays,
		FeedbackDays:   c.Deadlines.FeedbackDays,
		RetentionYears: c.Deadlines.RetentionYears,
		FeatureFlags:   c.FeatureFlags,
	})
}

func decodeConfig(raw []byte) (tenant.Config, error) {
	if len(raw) == 0 {
		return tenant.DefaultConfig(), nil
	}
	var row tenantConfigRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return tenant.Config{}, fmt.Errorf("failed to decode tenant config: %w", err)
	}

	c := tenant.DefaultConfig()
	if row.AckDays != 0 {
		c.Deadlines.AckDays = row.AckDays
	}
	if row.FeedbackDays != 0 {
		c.Deadlines.FeedbackDays = row.FeedbackDays
	}
	if row.RetentionYears != 0 {
		c.Deadlines.RetentionYears = row.RetentionYears
	}
	c.FeatureFlags = row.FeatureFlags
	return c, nil
}

// Create creates a new tenant.
func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	cfg, err := encodeConfig(t.Config)
	if err != nil {
		return err
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO tenants (id, slug, name, org_size, contact_email, ombudsperson_name, ombudsperson_email, config, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, t.ID, t.Slug, t.Name, t.OrgSize, t.ContactEmail, t.OmbudspersonName, t.OmbudspersonEmail, cfg, t.Status, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) scanOne(ctx context.Context, query string, args ...any) (*tenant.Tenant, error) {
	var t tenant.Tenant
	var cfgRaw []byte

	err := r.db.pool.QueryRow(ctx, query, args...).Scan(
		&t.ID, &t.Slug, &t.Name, &t.OrgSize, &t.ContactEmail, &t.OmbudspersonName, &t.OmbudspersonEmail,
		&cfgRaw, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	cfg, err := decodeConfig(cfgRaw)
	if err != nil {
		return nil, err
	}
	t.Config = cfg
	return &t, nil
}

// GetByID retrieves a tenant by ID.
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	return r.scanOne(ctx, `
		SELECT id, slug, name, org_size, contact_email, ombudsperson_name, ombudsperson_email, config, status, created_at, updated_at
		FROM tenants
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
}

// GetBySlug retrieves a tenant by slug.
func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	return r.scanOne(ctx, `
		SELECT id, slug, name, org_size, contact_email, ombudsperson_name, ombudsperson_email, config, status, created_at, updated_at
		FROM tenants
		WHERE slug = $1 AND deleted_at IS NULL
	`, slug)
}

// Update updates a tenant.
func (r *TenantRepository) Update(ctx context.Context, t *tenant.Tenant) error {
	t.UpdatedAt = time.Now()
	cfg, err := encodeConfig(t.Config)
	if err != nil {
		return err
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE tenants
		SET name = $2, contact_email = $3, ombudsperson_name = $4, ombudsperson_email = $5,
		    config = $6, status = $7, updated_at = $8
		WHERE id = $1 AND deleted_at IS NULL
	`, t.ID, t.Name, t.ContactEmail, t.OmbudspersonName, t.OmbudspersonEmail, cfg, t.Status, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

// Delete soft-deletes a tenant. Cascading hard-deletion of owned data is
// the service layer's responsibility (tenant.Service.DeleteTenant).
func (r *TenantRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE tenants SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

// List lists tenants.
func (r *TenantRepository) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, slug, name, org_size, contact_email, ombudsperson_name, ombudsperson_email, config, status, created_at, updated_at
		FROM tenants
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		var t tenant.Tenant
		var cfgRaw []byte
		if err := rows.Scan(&t.ID, &t.Slug, &t.Name, &t.OrgSize, &t.ContactEmail, &t.OmbudspersonName, &t.OmbudspersonEmail, &cfgRaw, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		cfg, err := decodeConfig(cfgRaw)
		if err != nil {
			return nil, err
		}
		t.Config = cfg
		tenants = append(tenants, &t)
	}

	return tenants, nil
}
