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

package config

import (
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/hinschg")
	t.Setenv("ENCRYPTION_MASTER_KEY", "01234567890123456789012345678901")
	t.Setenv("AUDIT_HMAC_KEY", "audit-key")
	t.Setenv("EMAIL_HMAC_KEY", "email-key")
}

func TestLoadRejectsMissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ENCRYPTION_MASTER_KEY", "01234567890123456789012345678901")
	t.Setenv("AUDIT_HMAC_KEY", "audit-key")
	t.Setenv("EMAIL_HMAC_KEY", "email-key")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}

func TestLoadRejectsShortMasterKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENCRYPTION_MASTER_KEY", "short")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for short encryption key")
	}
}

func TestLoadAppliesStatutoryDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultDeadlines.AckDays != 7 {
		t.Errorf("expected default ack days 7, got %d", cfg.DefaultDeadlines.AckDays)
	}
	if cfg.DefaultDeadlines.FeedbackDays != 90 {
		t.Errorf("expected default feedback days 90, got %d", cfg.DefaultDeadlines.FeedbackDays)
	}
}

func TestLoadHonorsDeadlineOverrideWithinBounds(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HINSCHG_ACK_DAYS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultDeadlines.AckDays != 3 {
		t.Errorf("expected overridden ack days 3, got %d", cfg.DefaultDeadlines.AckDays)
	}
}

func TestLoadClampsOutOfRangeOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HINSCHG_ACK_DAYS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultDeadlines.AckDays != 7 {
		t.Errorf("expected clamp to statutory max 7, got %d", cfg.DefaultDeadlines.AckDays)
	}
}
