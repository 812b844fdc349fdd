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

// Package deadline computes and classifies the statutory timers HinSchG
// attaches to a case: acknowledgement (7 days), feedback (3 months),
// archival (3 years after closure), and deletion (30 days after archival
// expiry). All computation here is pure; persistence lives in
// store/postgres.
package deadline

import (
	"context"
	"time"
)

// Type identifies which statutory timer a Deadline record tracks.
type Type string

const (
	TypeAck7d       Type = "ack_7d"
	TypeFeedback3m  Type = "feedback_3m"
	TypeArchival3y  Type = "archival_3y"
	TypeDeletion30d Type = "deletion_30d"
)

// TrafficLight classifies a deadline's urgency relative to now.
type TrafficLight string

const (
	Green  TrafficLight = "green"
	Yellow TrafficLight = "yellow"
	Red    TrafficLight = "red"
	Done   TrafficLight = "done"
)

// yellowWindow is the lead time before a deadline during which its
// traffic light turns yellow.
const yellowWindow = 14 * 24 * time.Hour

// Statutory defaults and bounds, expressed in days/years.
const (
	DefaultAckDays        = 7
	DefaultFeedbackDays   = 90
	DefaultRetentionYears = 3
	DeletionGraceDays     = 30

	MinAckDays        = 1
	MaxAckDays        = 7
	MinFeedbackDays   = 30
	MaxFeedbackDays   = 90
	MinRetentionYears = 3
	MaxRetentionYears = 10
)

// Deadline records one statutory timer attached to a case.
type Deadline struct {
	ID           string
	TenantID     string
	CaseID       string
	Type         Type
	DueAt        time.Time
	DoneAt       *time.Time
	ReminderSent bool
	Escalated    bool
	CreatedAt    time.Time
}

// Done reports whether the deadline has been fulfilled.
func (d *Deadline) Done() bool {
	return d.DoneAt != nil
}

// Repository persists Deadline records.
type Repository interface {
	Create(ctx context.Context, d *Deadline) error
	Get(ctx context.Context, tenantID, id string) (*Deadline, error)
	GetOpenByCase(ctx context.Context, tenantID, caseID string, typ Type) (*Deadline, error)
	MarkDone(ctx context.Context, tenantID, id string, doneAt time.Time) error
	MarkEscalated(ctx context.Context, tenantID, id string) error
	MarkReminderSent(ctx context.Context, tenantID, id string) error
	// DueForEscalation returns open, non-escalated deadlines whose due_at
	// has already passed, across a tenant.
	DueForEscalation(ctx context.Context, tenantID string, now time.Time) ([]*Deadline, error)
	// DueForReminder returns open, non-reminded deadlines due within the
	// given horizon.
	DueForReminder(ctx context.Context, tenantID string, now time.Time, horizon time.Duration) ([]*Deadline, error)
	DeleteByTenantID(ctx context.Context, tenantID string) error
}

// Bounds is the per-tenant override configuration consumed by Calculate,
// equivalent to tenant.Config's deadline fields. Expressed here rather
// than importing package tenant to avoid a dependency cycle (tenant
// configuration is a pure value type, consumed by multiple packages).
type Bounds struct {
	AckDays        int
	FeedbackDays   int
	RetentionYears int
}

// DefaultBounds returns the statutory defaults (7d/90d/3y).
func DefaultBounds() Bounds {
	return Bounds{
		AckDays:        DefaultAckDays,
		FeedbackDays:   DefaultFeedbackDays,
		RetentionYears: DefaultRetentionYears,
	}
}

// Clamp forces each override within its statutory legal bound, so a
// misconfigured tenant can never grant itself a longer response window
// than HinSchG allows.
func (b Bounds) Clamp() Bounds {
	clamped := b
	if clamped.AckDays == 0 {
		clamped.AckDays = DefaultAckDays
	}
	if clamped.FeedbackDays == 0 {
		clamped.FeedbackDays = DefaultFeedbackDays
	}
	if clamped.RetentionYears == 0 {
		clamped.RetentionYears = DefaultRetentionYears
	}
	clamped.AckDays = clampInt(clamped.AckDays, MinAckDays, MaxAckDays)
	clamped.FeedbackDays = clampInt(clamped.FeedbackDays, MinFeedbackDays, MaxFeedbackDays)
	clamped.RetentionYears = clampInt(clamped.RetentionYears, MinRetentionYears, MaxRetentionYears)
	return clamped
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Calculate computes the acknowledgement and feedback deadlines for a
// report received at eingegangenAm, honoring tenant overrides within
// statutory bounds.
func Calculate(eingegangenAm time.Time, bounds Bounds) (ackDeadline, feedbackDeadline time.Time) {
	b := bounds.Clamp()
	ackDeadline = eingegangenAm.AddDate(0, 0, b.AckDays)
	feedbackDeadline = eingegangenAm.AddDate(0, 0, b.FeedbackDays)
	return ackDeadline, feedbackDeadline
}

// ArchivalDeadline computes when a closed case's archival period expires:
// RetentionYears × 365 days after closure, leap days not counted.
func ArchivalDeadline(closedAt time.Time, bounds Bounds) time.Time {
	b := bounds.Clamp()
	return closedAt.AddDate(0, 0, b.RetentionYears*365)
}

// DeletionDeadline computes the deletion sweep threshold: 30 days after
// the archival period's expiry, matching the statutory 30-day grace
// period before hard deletion.
func DeletionDeadline(archivalDeadline time.Time) time.Time {
	return archivalDeadline.AddDate(0, 0, DeletionGraceDays)
}

// Classify applies the traffic-light rule used for deadline reporting:
// done if fulfilled; red if now is strictly after due; yellow within the
// 14-day lead window (including the exact due instant); green otherwise.
func Classify(due time.Time, done bool, now time.Time) TrafficLight {
	if done {
		return Done
	}
	if now.After(due) {
		return Red
	}
	if due.Sub(now) <= yellowWindow {
		return Yellow
	}
	return Green
}

// NextActive reports which deadline type is currently governing a case:
// ack_7d until acknowledged, then feedback_3m until resolved, then none.
func NextActive(acknowledged, resolved bool) (Type, bool) {
	if !acknowledged {
		return TypeAck7d, true
	}
	if !resolved {
		return TypeFeedback3m, true
	}
	return "", false
}
