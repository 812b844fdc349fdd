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

// Package audit is the append-only, tamper-evident event record required
// by HinSchG §11. Every state-changing operation, authentication event,
// data access on a report or case, and admin action writes exactly one
// Event; entries are never updated or deleted at the application layer.
package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event types recorded by the compliance engine.
const (
	TypeSubmissionCreated     = "submission_created"
	TypeSubmissionViewed      = "submission_viewed"
	TypeAnonSubmissionCreated = "anon_submission_created"
	TypeAnonMessageAdded      = "anon_message_added"
	TypeAnonLookupRateLimited = "anon_lookup_rate_limited"
	TypeCaseOpened            = "case_opened"
	TypeCaseStatusChanged     = "case_status_changed"
	TypeCaseAcknowledged      = "eingangsbestaetigung_sent"
	TypeCaseResolved          = "rueckmeldung_sent"
	TypeCaseForwarded         = "case_forwarded_to_ombudsperson"
	TypeCaseRecommendation    = "case_recommendation_recorded"
	TypeCaseEscalated         = "case_escalated"
	TypeDeadlineReminderSent  = "deadline_reminder_sent"
	TypeDataDeleted           = "data_deleted"
	TypeTenantCreated         = "tenant_created"
	TypeTenantUpdated         = "tenant_updated"
	TypeTenantDeleted         = "tenant_deleted"
	TypeTenantConfigUpdated   = "tenant_config_updated"
	TypeUserCreated           = "user_created"
	TypeUserUpdated           = "user_updated"
	TypeUserLocked            = "user_locked"
	TypeUserUnlocked          = "user_unlocked"
	TypePasswordChanged       = "password_changed"
	TypeAccessDenied          = "access_denied"
	// TypeAuditRead is emitted when an admin/auditor accesses tenant audit logs.
	TypeAuditRead = "audit.read"
)

// Standard audit attribute keys.
const (
	AttrAuditType  = "audit_type"
	AttrTenantID   = "tenant_id"
	AttrActorID    = "actor_id"
	AttrActorName  = "actor_name"
	AttrResource   = "resource"
	AttrTargetName = "target_name"
	AttrTargetID   = "target_id"
	AttrTimestamp  = "timestamp"
	AttrIPAddress  = "ip_address"
	AttrUserAgent  = "user_agent"
	AttrComponent  = "component"
	AttrMetadata   = "metadata"
	AttrMethod     = "method"
	AttrPath       = "path"
	AttrSuccess    = "success"
)

// Common resource types.
const (
	ResourceTenant         = "tenant"
	ResourceUser           = "user"
	ResourceReport         = "report"
	ResourceCase           = "case"
	ResourceDeadline       = "deadline"
	ResourceAnonSubmission = "anon_submission"
)

// ActorSystem identifies events emitted by the scheduler or other
// background processes rather than a human actor.
const ActorSystem = ""

// Common metadata keys.
const (
	AttrReason     = "reason"
	AttrAttempts   = "attempts"
	AttrTenantName = "tenant_name"
)

// RequestInfo captures the request context the taxonomy requires on every
// failure entry: method, path, and the client's hashed IP (never raw).
type RequestInfo struct {
	Method    string
	Path      string
	IPHash    string
	UserAgent string
}

// Event represents one auditable action.
//
// Purpose: canonical representation of a security or compliance event.
// Invariants: Type must be a known Type constant; Timestamp must be set.
type Event struct {
	ID         string
	Type       string
	TenantID   string
	ActorID    string
	ActorName  string
	Resource   string
	TargetName string
	TargetID   string
	Metadata   map[string]any
	Timestamp  time.Time
	Request    RequestInfo
	Success    bool
}

// Logger defines the interface for audit logging, shielding the rest of
// the engine from the persistence concern.
type Logger interface {
	Log(ctx context.Context, event Event)
}

// Filter defines criteria for listing audit events, partitioned by
// (tenant_id, created_at) per HinSchG §11's retention and export
// requirements.
type Filter struct {
	TenantID  *string
	ActorID   *string
	Type      *string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// Repository defines storage for audit events. It has no update or
// delete method: the audit trail is append-only at the application
// layer.
type Repository interface {
	// Log persists an event, computing and storing its integrity hash
	// chained to the previous entry for this tenant.
	Log(ctx context.Context, event Event) error
	// List retrieves events matching filter.
	List(ctx context.Context, filter Filter) ([]Event, int, error)
	// VerifyChain recomputes the integrity chain for a tenant and reports
	// whether every stored hash matches its recomputation.
	VerifyChain(ctx context.Context, tenantID string) (bool, error)
}

// SlogLogger implements Logger using structured logging only (no
// persistence); useful for tests and for the scheduler's best-effort
// logging path when a repository write itself fails.
type SlogLogger struct{}

// NewSlogLogger creates a new audit logger.
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event to structured logging.
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String(AttrAuditType, event.Type),
		slog.String(AttrTenantID, event.TenantID),
		slog.String(AttrActorID, event.ActorID),
		slog.String(AttrResource, event.Resource),
		slog.String(AttrTargetName, event.TargetName),
		slog.String(AttrTargetID, event.TargetID),
		slog.Time(AttrTimestamp, event.Timestamp),
		slog.Bool(AttrSuccess, event.Success),
	}

	if event.Request.Method != "" {
		attrs = append(attrs, slog.String(AttrMethod, event.Request.Method), slog.String(AttrPath, event.Request.Path))
	}
	if event.Request.IPHash != "" {
		attrs = append(attrs, slog.String(AttrIPAddress, event.Request.IPHash))
	}

	if len(event.Metadata) > 0 {
		group := make([]any, 0, len(event.Metadata)*2)
		for k, v := range event.Metadata {
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group(AttrMetadata, group...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String(AttrComponent, "audit"))...)
}

// RepositoryLogger implements Logger by writing to structured logging and
// persisting to a Repository. Persistence failures are logged but never
// raised to the caller: audit logging must not be able to abort the
// business operation it is recording.
type RepositoryLogger struct {
	repo Repository
	slog *SlogLogger
}

// NewRepositoryLogger creates a new repository-backed logger.
func NewRepositoryLogger(repo Repository) *RepositoryLogger {
	return &RepositoryLogger{repo: repo, slog: NewSlogLogger()}
}

// Log records an audit event to both structured logging and the
// repository.
func (l *RepositoryLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	l.slog.Log(ctx, event)

	if err := l.repo.Log(ctx, event); err != nil {
		slog.ErrorContext(ctx, "failed to persist audit event", "error", err, "event_type", event.Type)
	}
}

// isSecret checks if a key likely contains a secret, via case-insensitive
// substring matching against common sensitive keywords.
func isSecret(key string) bool {
	k := strings.ToLower(key)
	secrets := []string{
		"password", "secret", "token", "key", "authorization",
		"hash", "credential", "private", "api_key",
	}
	for _, s := range secrets {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
