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

// Package config loads the process-wide configuration from environment
// variables: database and cache connection strings, the encryption and
// audit integrity keys, and the statutory deadline overrides tenants may
// tighten but never loosen.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/aitema/hinschg-core/deadline"
)

// Config is the fully resolved process configuration.
type Config struct {
	DatabaseURL string
	RedisURL    string

	// EncryptionMasterKey seeds crypto.Envelope's per-record subkey
	// derivation. At least 32 bytes; Load rejects anything shorter.
	EncryptionMasterKey string

	// AuditHMACKey signs the audit hash chain (audit.ComputeIntegrity).
	AuditHMACKey string

	// EmailHMACKey derives the stable user email lookup hash
	// (crypto.ComputeEmailHash).
	EmailHMACKey string

	// DefaultDeadlines seeds a newly created tenant's Config.Bounds
	// before any tenant-specific tightening is applied.
	DefaultDeadlines deadline.Bounds

	HTTPAddr    string
	MetricsAddr string
}

// Load reads Config from the environment, applying the statutory
// defaults from deadline.DefaultBounds wherever an override isn't set.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379/0"),
		EncryptionMasterKey: getEnv("ENCRYPTION_MASTER_KEY", ""),
		AuditHMACKey:        getEnv("AUDIT_HMAC_KEY", ""),
		EmailHMACKey:        getEnv("EMAIL_HMAC_KEY", ""),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:         getEnv("METRICS_ADDR", ":9090"),
		DefaultDeadlines:    deadline.DefaultBounds(),
	}

	if v, err := getEnvInt("HINSCHG_ACK_DAYS"); err != nil {
		return Config{}, err
	} else if v > 0 {
		cfg.DefaultDeadlines.AckDays = v
	}
	if v, err := getEnvInt("HINSCHG_FEEDBACK_DAYS"); err != nil {
		return Config{}, err
	} else if v > 0 {
		cfg.DefaultDeadlines.FeedbackDays = v
	}
	if v, err := getEnvInt("HINSCHG_RETENTION_YEARS"); err != nil {
		return Config{}, err
	} else if v > 0 {
		cfg.DefaultDeadlines.RetentionYears = v
	}
	cfg.DefaultDeadlines = cfg.DefaultDeadlines.Clamp()

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if len(cfg.EncryptionMasterKey) < 32 {
		return Config{}, fmt.Errorf("ENCRYPTION_MASTER_KEY must be at least 32 bytes")
	}
	if cfg.AuditHMACKey == "" {
		return Config{}, fmt.Errorf("AUDIT_HMAC_KEY is required")
	}
	if cfg.EmailHMACKey == "" {
		return Config{}, fmt.Errorf("EMAIL_HMAC_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
