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

package metrics

// Recorder is the narrow event-recording surface other packages depend
// on, so they need not import prometheus directly. A nil Recorder on
// an embedding service is always safe to call through NoopRecorder.
type Recorder interface {
	ReportReceived(tenantID, category string)
	AnonLookup(outcome string)
	CaseEscalated(tenantID string)
	NotificationDispatched(kind, result string)
	RetentionPurge(tenantID, recordType string)
}

// PrometheusRecorder implements Recorder against this package's counters.
type PrometheusRecorder struct{}

func (PrometheusRecorder) ReportReceived(tenantID, category string) {
	ReportsReceived.WithLabelValues(tenantID, category).Inc()
}

func (PrometheusRecorder) AnonLookup(outcome string) {
	AnonLookups.WithLabelValues(outcome).Inc()
}

func (PrometheusRecorder) CaseEscalated(tenantID string) {
	CaseEscalations.WithLabelValues(tenantID).Inc()
}

func (PrometheusRecorder) NotificationDispatched(kind, result string) {
	NotificationsDispatched.WithLabelValues(kind, result).Inc()
}

func (PrometheusRecorder) RetentionPurge(tenantID, recordType string) {
	RetentionPurges.WithLabelValues(tenantID, recordType).Inc()
}

// NoopRecorder discards every event. It is the zero-value default for
// any service that embeds a Recorder field, so metrics are opt-in.
type NoopRecorder struct{}

func (NoopRecorder) ReportReceived(tenantID, category string)      {}
func (NoopRecorder) AnonLookup(outcome string)                     {}
func (NoopRecorder) CaseEscalated(tenantID string)                 {}
func (NoopRecorder) NotificationDispatched(kind, result string)    {}
func (NoopRecorder) RetentionPurge(tenantID, recordType string)    {}
