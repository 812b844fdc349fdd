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

// Package user manages the human accounts that exercise a role's
// capabilities: admins, ombudspersons, fallbearbeiter, and auditors.
// Reporters using the anonymous channel are never users (see package
// anon) — a user account always belongs to exactly one tenant.
package user

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("a user with this email already exists for this tenant")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidRole        = errors.New("role is not one of the recognized role names")
	ErrAccountLocked      = errors.New("account is locked")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// MaxFailedLogins is the threshold after which an account locks out.
const MaxFailedLogins = 5

// LockoutDuration is how long an account stays locked after crossing
// MaxFailedLogins.
const LockoutDuration = 15 * time.Minute

// User is a tenant-scoped account exercising one of the five fixed
// roles. The email is stored only as an HMAC identity key plus an
// optional plaintext copy for notification delivery; authentication
// (password/MFA verification, session issuance) is an external
// collaborator's concern — this package models the account record
// itself.
type User struct {
	ID        string
	TenantID  string
	EmailHash string // HMAC-SHA256, stable lookup key
	Email     string // plaintext, used only for notification delivery
	FullName  string
	Role      string // one of role.Table's keys

	MFAEnabled bool

	FailedLoginAttempts int
	LockedUntil         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Locked reports whether the account is currently locked out.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// Repository persists User records, tenant-scoped except for the
// email-hash lookup used at authentication time (a caller presenting
// credentials doesn't yet know which tenant they belong to; email
// uniqueness is still enforced per tenant).
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, tenantID, id string) (*User, error)
	GetByEmailHash(ctx context.Context, emailHash string) (*User, error)
	Update(ctx context.Context, u *User) error
	RecordFailedLogin(ctx context.Context, tenantID, id string, attempts int, lockedUntil *time.Time) error
	ResetFailedLogins(ctx context.Context, tenantID, id string) error
	Delete(ctx context.Context, tenantID, id string) error
	ListByTenant(ctx context.Context, tenantID string) ([]*User, error)
	DeleteByTenantID(ctx context.Context, tenantID string) error

	SetPasswordHash(ctx context.Context, tenantID, id, hash string) error
	GetPasswordHash(ctx context.Context, tenantID, id string) (string, error)
}
