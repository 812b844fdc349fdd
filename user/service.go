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

package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aitema/hinschg-core/audit"
	"github.com/aitema/hinschg-core/crypto"
	"github.com/aitema/hinschg-core/id"
	"github.com/aitema/hinschg-core/password"
	"github.com/aitema/hinschg-core/role"
)

var ErrWeakPassword = errors.New("password must be at least 12 characters")

// Service provides account provisioning, authentication, and lockout
// enforcement for tenant-scoped users. Authentication itself (session
// issuance, MFA challenge) is out of scope here — this is the account
// record and credential check an external auth layer calls into.
type Service struct {
	repo        Repository
	hasher      *password.Hasher
	hmacKey     string
	auditLogger audit.Logger
}

// NewService creates a new user service. hmacKey derives the stable
// lookup hash for an email address (config.Config.EmailHMACKey); the
// plaintext address is kept alongside only for notification delivery.
func NewService(repo Repository, hasher *password.Hasher, hmacKey string, auditLogger audit.Logger) *Service {
	return &Service{repo: repo, hasher: hasher, hmacKey: hmacKey, auditLogger: auditLogger}
}

// Create provisions a new account for a tenant. The role must be one of
// the five fixed names in role.Table; email uniqueness is enforced per
// tenant via the hash index.
func (s *Service) Create(ctx context.Context, tenantID, email, fullName, roleName, initialPassword, actorID string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if !role.Valid(roleName) {
		return nil, ErrInvalidRole
	}
	if len(initialPassword) < 12 {
		return nil, ErrWeakPassword
	}

	emailHash := crypto.ComputeEmailHash(s.hmacKey, email)
	if existing, err := s.repo.GetByEmailHash(ctx, emailHash); err == nil && existing != nil && existing.TenantID == tenantID {
		return nil, ErrUserAlreadyExists
	}

	now := time.Now()
	u := &User{
		ID:        id.NewUUIDv7(),
		TenantID:  tenantID,
		EmailHash: emailHash,
		Email:     email,
		FullName:  strings.TrimSpace(fullName),
		Role:      roleName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	hash, err := s.hasher.Hash(initialPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.SetPasswordHash(ctx, tenantID, u.ID, hash); err != nil {
		return nil, fmt.Errorf("failed to store password: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeUserCreated,
		TenantID:   tenantID,
		ActorID:    actorID,
		Resource:   audit.ResourceUser,
		TargetName: u.FullName,
		TargetID:   u.ID,
		Metadata:   map[string]any{"role": roleName},
		Success:    true,
	})

	return u, nil
}

// Authenticate verifies an email/password pair, enforcing the lockout
// policy: an attempt against a found-but-locked account is rejected with
// ErrAccountLocked before the password is checked and leaves the
// failed-login counter unchanged.
func (s *Service) Authenticate(ctx context.Context, email, plainPassword string) (*User, error) {
	emailHash := crypto.ComputeEmailHash(s.hmacKey, strings.TrimSpace(strings.ToLower(email)))
	u, err := s.repo.GetByEmailHash(ctx, emailHash)
	if err != nil {
		return nil, ErrUserNotFound
	}

	now := time.Now()
	if u.Locked(now) {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeUserLocked,
			TenantID: u.TenantID,
			Resource: audit.ResourceUser,
			TargetID: u.ID,
			Success:  false,
		})
		return nil, ErrAccountLocked
	}

	hash, err := s.repo.GetPasswordHash(ctx, u.TenantID, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load password hash: %w", err)
	}
	ok, err := s.hasher.Verify(plainPassword, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		attempts := u.FailedLoginAttempts + 1
		var lockedUntil *time.Time
		if attempts >= MaxFailedLogins {
			until := now.Add(LockoutDuration)
			lockedUntil = &until
			s.auditLogger.Log(ctx, audit.Event{
				Type:     audit.TypeUserLocked,
				TenantID: u.TenantID,
				Resource: audit.ResourceUser,
				TargetID: u.ID,
				Success:  true,
			})
		}
		if err := s.repo.RecordFailedLogin(ctx, u.TenantID, u.ID, attempts, lockedUntil); err != nil {
			return nil, fmt.Errorf("failed to record failed login: %w", err)
		}
		return nil, ErrInvalidCredentials
	}

	if u.FailedLoginAttempts > 0 || u.LockedUntil != nil {
		if err := s.repo.ResetFailedLogins(ctx, u.TenantID, u.ID); err != nil {
			return nil, fmt.Errorf("failed to reset failed logins: %w", err)
		}
	}
	return u, nil
}

// SetPassword replaces a user's password (administrative reset; no old
// password required).
func (s *Service) SetPassword(ctx context.Context, tenantID, userID, newPassword string) error {
	if len(newPassword) < 12 {
		return ErrWeakPassword
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.repo.SetPasswordHash(ctx, tenantID, userID, hash)
}

// UpdateRole changes a user's role, validating against the fixed table.
func (s *Service) UpdateRole(ctx context.Context, tenantID, userID, roleName, actorID string) (*User, error) {
	if !role.Valid(roleName) {
		return nil, ErrInvalidRole
	}
	u, err := s.repo.GetByID(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	u.Role = roleName
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to update user role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeUserUpdated,
		TenantID:   tenantID,
		ActorID:    actorID,
		Resource:   audit.ResourceUser,
		TargetID:   u.ID,
		TargetName: u.FullName,
		Metadata:   map[string]any{"role": roleName},
		Success:    true,
	})
	return u, nil
}

// Deactivate soft-deletes an account.
func (s *Service) Deactivate(ctx context.Context, tenantID, userID, actorID string) error {
	if err := s.repo.Delete(ctx, tenantID, userID); err != nil {
		return err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserUpdated,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: audit.ResourceUser,
		TargetID: userID,
		Metadata: map[string]any{"deactivated": true},
		Success:  true,
	})
	return nil
}

// List returns every active account of a tenant.
func (s *Service) List(ctx context.Context, tenantID string) ([]*User, error) {
	return s.repo.ListByTenant(ctx, tenantID)
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(ctx context.Context, tenantID, userID string) (*User, error) {
	return s.repo.GetByID(ctx, tenantID, userID)
}
