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

	"github.com/aitema/hinschg-core/user"
)

// UserRepository implements user.Repository.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, tenant_id, email_hash, email, full_name, role, mfa_enabled,
	failed_login_attempts, locked_until, created_at, updated_at, deleted_at
`

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID, &u.TenantID, &u.EmailHash, &u.Email, &u.FullName, &u.Role, &u.MFAEnabled,
		&u.FailedLoginAttempts, &u.LockedUntil, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt,
	)
	return &u, err
}

func scanUserOrNotFound(row pgx.Row) (*user.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return u, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		u.ID, u.TenantID, u.EmailHash, u.Email, u.FullName, u.Role, u.MFAEnabled,
		u.FailedLoginAttempts, u.LockedUntil, u.CreatedAt, u.UpdatedAt, u.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a non-deleted user scoped to a tenant.
func (r *UserRepository) GetByID(ctx context.Context, tenantID, id string) (*user.User, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`, id, tenantID)
	return scanUserOrNotFound(row)
}

// GetByEmailHash retrieves a non-deleted user by its identity hash,
// across tenants: a caller authenticating doesn't know its tenant yet.
func (r *UserRepository) GetByEmailHash(ctx context.Context, emailHash string) (*user.User, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE email_hash = $1 AND deleted_at IS NULL
	`, emailHash)
	return scanUserOrNotFound(row)
}

// Update persists mutable profile fields.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	u.UpdatedAt = time.Now()
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET email = $3, full_name = $4, role = $5, mfa_enabled = $6, updated_at = $7
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`, u.ID, u.TenantID, u.Email, u.FullName, u.Role, u.MFAEnabled, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// RecordFailedLogin persists an incremented failed-login counter and,
// once the threshold is crossed, a lockout expiry.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, tenantID, id string, attempts int, lockedUntil *time.Time) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE users SET failed_login_attempts = $3, locked_until = $4, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID, attempts, lockedUntil)
	if err != nil {
		return fmt.Errorf("failed to record failed login: %w", err)
	}
	return nil
}

// ResetFailedLogins clears the lockout counter after a successful login.
func (r *UserRepository) ResetFailedLogins(ctx context.Context, tenantID, id string) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE users SET failed_login_attempts = 0, locked_until = NULL, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to reset failed logins: %w", err)
	}
	return nil
}

// Delete soft-deletes a user.
func (r *UserRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET deleted_at = $3, updated_at = $3
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`, id, tenantID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// ListByTenant lists non-deleted users for a tenant.
func (r *UserRepository) ListByTenant(ctx context.Context, tenantID string) ([]*user.User, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteByTenantID purges every user owned by a deleted tenant.
func (r *UserRepository) DeleteByTenantID(ctx context.Context, tenantID string) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM users WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant users: %w", err)
	}
	return nil
}

// SetPasswordHash upserts the Argon2id hash backing a user's password.
func (r *UserRepository) SetPasswordHash(ctx context.Context, tenantID, id, hash string) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO user_credentials (user_id, tenant_id, password_hash, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET password_hash = $3, updated_at = NOW()
	`, id, tenantID, hash)
	if err != nil {
		return fmt.Errorf("failed to set password hash: %w", err)
	}
	return nil
}

// GetPasswordHash retrieves the stored Argon2id hash for a user.
func (r *UserRepository) GetPasswordHash(ctx context.Context, tenantID, id string) (string, error) {
	var hash string
	err := r.db.pool.QueryRow(ctx, `
		SELECT password_hash FROM user_credentials WHERE user_id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&hash)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", user.ErrUserNotFound
		}
		return "", fmt.Errorf("failed to get password hash: %w", err)
	}
	return hash, nil
}
