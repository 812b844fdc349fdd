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

// Package notify implements templated, localized notification dispatch
// for deadline reminders and escalations, retried with exponential
// backoff and shielded from a dead transport by a circuit breaker.
package notify

import "context"

// Kind identifies which statutory event a notification reports.
type Kind string

const (
	KindAcknowledgementDue Kind = "acknowledgement_due"
	KindFeedbackDue        Kind = "feedback_due"
	KindEscalated          Kind = "escalated"
	KindForwarded          Kind = "forwarded_to_ombudsperson"
)

// Message is one notification ready for dispatch: a recipient, the
// statutory event it reports, and the data its localized template needs.
type Message struct {
	Kind       Kind
	TenantID   string
	CaseID     string
	Recipient  string // email address; resolved by the caller, never decrypted here
	Language   string
	TemplateData map[string]string
}

// Transport sends a single rendered notification. Implementations wrap
// the actual email/webhook client; notify.Dispatcher never talks to a
// transport directly except through this interface.
type Transport interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Templater renders a Message into a subject/body pair for its Kind and
// Language. Kept separate from Transport so a new channel (SMS, push)
// can reuse the same template set.
type Templater interface {
	Render(m Message) (subject, body string, err error)
}

// Dispatcher sends notifications, retrying transient transport failures
// with exponential backoff and tripping a circuit breaker when the
// transport is persistently down, so a dead mail server doesn't pile up
// retries against itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, m Message) error
}
