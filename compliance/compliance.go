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

// Package compliance aggregates a tenant's report and case data into a
// point-in-time statistics artifact for dashboards and regulator
// export. It never returns individual reports — only counts and rates,
// and category counts below a small-number threshold are suppressed so
// a single-report category can't be reverse-identified.
package compliance

import (
	"context"
	"time"
)

// smallCategoryThreshold is the minimum count a category must reach
// before it is reported individually; categories below it are folded
// into "sonstiges" in the rendered report, matching the anonymization
// floor used for the dashboard this package replaces.
const smallCategoryThreshold = 3

// CategoryCount is the number of reports in one category.
type CategoryCount struct {
	Category string
	Count    int
}

// StatusCount is the number of cases in one status.
type StatusCount struct {
	Status string
	Count  int
}

// MonthlyVolume is the number of reports received in one calendar month.
type MonthlyVolume struct {
	Year  int
	Month int
	Count int
}

// Report is a tenant's compliance snapshot as of GeneratedAt.
type Report struct {
	TenantID string

	TotalReports int
	MonthlyVolume []MonthlyVolume
	CategoryCounts []CategoryCount
	StatusCounts   []StatusCount

	// AcknowledgementComplianceRate is the share of reports (0-100) that
	// either already received their acknowledgement or are still within
	// the acknowledgement deadline.
	AcknowledgementComplianceRate float64

	OverdueAcknowledgements int
	OverdueFeedback         int

	GeneratedAt time.Time
}

// Repository supplies the raw aggregates a Report is built from. It
// never returns encrypted field content or identity-bearing rows —
// only counts — so it is the narrowest surface that can satisfy the
// non-goal of "no individual-record access" for this package.
type Repository interface {
	TotalReports(ctx context.Context, tenantID string) (int, error)
	MonthlyVolume(ctx context.Context, tenantID string, since time.Time) ([]MonthlyVolume, error)
	CategoryCounts(ctx context.Context, tenantID string) ([]CategoryCount, error)
	StatusCounts(ctx context.Context, tenantID string) ([]StatusCount, error)
	// OverdueCounts returns, as of now, the number of reports past their
	// acknowledgement deadline without one sent, the number past their
	// feedback deadline without one sent (excluding terminal cases), and
	// the number that are acknowledged or still within their
	// acknowledgement window (the numerator of the compliance rate).
	OverdueCounts(ctx context.Context, tenantID string, now time.Time) (overdueAck, overdueFeedback, withinAckWindow int, err error)
}
