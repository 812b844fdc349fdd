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

// Package metrics exposes Prometheus counters and gauges for the
// compliance engine. It owns a private prometheus.Registry rather than
// the global default, so an embedding process chooses what to publish
// at its own /metrics endpoint; rendering that endpoint as text
// exposition is the caller's concern, not this package's.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the private registry every metric in this package is
// registered against.
var Registry = prometheus.NewRegistry()

var (
	// ReportsReceived counts intake, labelled by tenant and category.
	ReportsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hinschg_reports_received_total",
			Help: "Total number of reports received, by tenant and category.",
		},
		[]string{"tenant_id", "category"},
	)

	// AnonLookups counts anonymous receipt-code lookups by outcome.
	AnonLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hinschg_anon_lookups_total",
			Help: "Total number of anonymous submission lookups, by outcome.",
		},
		[]string{"outcome"}, // found, not_found, rate_limited
	)

	// CaseEscalations counts deadline-driven escalations performed by the scheduler.
	CaseEscalations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hinschg_case_escalations_total",
			Help: "Total number of cases escalated by the deadline scheduler, by tenant.",
		},
		[]string{"tenant_id"},
	)

	// NotificationsDispatched counts outbound notifications by kind and result.
	NotificationsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hinschg_notifications_dispatched_total",
			Help: "Total number of notifications dispatched, by kind and result.",
		},
		[]string{"kind", "result"}, // result: sent, failed
	)

	// RetentionPurges counts records hard-deleted by the retention sweep.
	RetentionPurges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hinschg_retention_purges_total",
			Help: "Total number of records purged by the retention sweep, by tenant and record type.",
		},
		[]string{"tenant_id", "record_type"}, // record_type: report, anon_submission
	)

	// OpenCasesByStatus is a periodically refreshed gauge of open cases
	// per status, populated by Collector.Run's periodic refresh rather than incremented
	// inline — status is a set, not an event count.
	OpenCasesByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hinschg_open_cases",
			Help: "Current number of cases per status, by tenant. Refreshed periodically.",
		},
		[]string{"tenant_id", "status"},
	)
)

func init() {
	Registry.MustRegister(
		ReportsReceived,
		AnonLookups,
		CaseEscalations,
		NotificationsDispatched,
		RetentionPurges,
		OpenCasesByStatus,
	)
}
