// Copyright 2026 The OpenTrusty Authors
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/aitema/hinschg-core/user"
)

func TestUserRepository(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewUserRepository(db)

	tenantID := "00000000-0000-0000-0000-0000000000t1"
	u := &user.User{
		ID:        "00000000-0000-0000-0000-000000000101",
		TenantID:  tenantID,
		EmailHash: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Email:     "user1@example.com",
		FullName:  "User One",
		Role:      "fallbearbeiter",
	}

	t.Run("Create and Get", func(t *testing.T) {
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		got, err := repo.GetByID(ctx, tenantID, u.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.EmailHash != u.EmailHash {
			t.Errorf("expected hash %s, got %s", u.EmailHash, got.EmailHash)
		}
		if got.Role != "fallbearbeiter" {
			t.Errorf("expected role fallbearbeiter, got %s", got.Role)
		}
	})

	t.Run("GetByEmailHash", func(t *testing.T) {
		got, err := repo.GetByEmailHash(ctx, u.EmailHash)
		if err != nil {
			t.Fatalf("failed to get user by hash: %v", err)
		}
		if got.ID != u.ID {
			t.Errorf("expected id %s, got %s", u.ID, got.ID)
		}
	})

	t.Run("Update", func(t *testing.T) {
		u.FullName = "User One Updated"
		if err := repo.Update(ctx, u); err != nil {
			t.Fatalf("failed to update user: %v", err)
		}

		got, err := repo.GetByID(ctx, tenantID, u.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.FullName != "User One Updated" {
			t.Errorf("expected updated name, got %s", got.FullName)
		}
	})

	t.Run("RecordFailedLogin and ResetFailedLogins", func(t *testing.T) {
		lockedUntil := time.Now().Add(15 * time.Minute)
		if err := repo.RecordFailedLogin(ctx, tenantID, u.ID, 5, &lockedUntil); err != nil {
			t.Fatalf("failed to record failed login: %v", err)
		}

		got, err := repo.GetByID(ctx, tenantID, u.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.FailedLoginAttempts != 5 || got.LockedUntil == nil {
			t.Fatalf("expected locked user with 5 failed attempts, got %+v", got)
		}
		if !got.Locked(time.Now()) {
			t.Errorf("expected account to be locked")
		}

		if err := repo.ResetFailedLogins(ctx, tenantID, u.ID); err != nil {
			t.Fatalf("failed to reset failed logins: %v", err)
		}
		got, err = repo.GetByID(ctx, tenantID, u.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.FailedLoginAttempts != 0 || got.LockedUntil != nil {
			t.Fatalf("expected reset lockout state, got %+v", got)
		}
	})

	t.Run("ListByTenant", func(t *testing.T) {
		users, err := repo.ListByTenant(ctx, tenantID)
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(users) != 1 {
			t.Fatalf("expected 1 user, got %d", len(users))
		}
	})

	t.Run("SetPasswordHash and GetPasswordHash", func(t *testing.T) {
		if err := repo.SetPasswordHash(ctx, tenantID, u.ID, "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA"); err != nil {
			t.Fatalf("failed to set password hash: %v", err)
		}

		hash, err := repo.GetPasswordHash(ctx, tenantID, u.ID)
		if err != nil {
			t.Fatalf("failed to get password hash: %v", err)
		}
		if hash != "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA" {
			t.Errorf("unexpected password hash: %s", hash)
		}

		if err := repo.SetPasswordHash(ctx, tenantID, u.ID, "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$cmVoYXNo"); err != nil {
			t.Fatalf("failed to update password hash: %v", err)
		}
		hash, err = repo.GetPasswordHash(ctx, tenantID, u.ID)
		if err != nil {
			t.Fatalf("failed to get updated password hash: %v", err)
		}
		if hash != "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$cmVoYXNo" {
			t.Errorf("expected updated hash to persist, got %s", hash)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(ctx, tenantID, u.ID); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}

		_, err := repo.GetByID(ctx, tenantID, u.ID)
		if err != user.ErrUserNotFound {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})
}
