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

// Package anon implements the anonymous intake channel: a submission
// identified only by a receipt code, with rate-limited status lookup and
// two-way messaging that never links back to an identity.
package anon

import (
	"context"
	"time"
)

// Direction identifies which side of the conversation wrote a message.
type Direction string

const (
	DirectionReporter Direction = "reporter"
	DirectionHandler  Direction = "handler"
)

// Submission is the anonymous counterpart to report.Report: a report
// entity reachable only by its receipt code, never by a tenant-scoped
// account. It still flows through the shared case/deadline machinery
// (casemgmt, deadline), same as the identified intake channel.
type Submission struct {
	ID         string
	TenantID   string
	CaseID     string
	ReceiptCode string // bare 16-char form; display form adds hyphens

	DescriptionCipher string
	Category          string
	Priority          string
	Language          string

	EingegangenAm             time.Time
	EingangsbestaetigungFrist time.Time
	EingangsbestaetigungAm    *time.Time
	RueckmeldungFrist         time.Time
	RueckmeldungAm            *time.Time
	DeletionDeadline          *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one entry in the two-way conversation attached to a
// submission. No identity is ever recorded — only which side wrote it.
type Message struct {
	ID           string
	TenantID     string
	SubmissionID string
	Direction    Direction
	BodyCipher   string
	CreatedAt    time.Time
}

// Repository persists Submission and Message records.
type Repository interface {
	CreateSubmission(ctx context.Context, s *Submission) error
	GetSubmissionByReceiptCode(ctx context.Context, receiptCode string) (*Submission, error)
	GetSubmissionByID(ctx context.Context, tenantID, id string) (*Submission, error)
	UpdateSubmission(ctx context.Context, s *Submission) error

	AddMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, tenantID, submissionID string) ([]*Message, error)

	// DueForDeletion returns tenantID's submissions whose deletion
	// deadline has elapsed; retention sweeps call it tenant by tenant.
	DueForDeletion(ctx context.Context, tenantID string, now time.Time) ([]*Submission, error)
	// HardDelete permanently removes a submission and its messages.
	HardDelete(ctx context.Context, tenantID, id string) error

	DeleteByTenantID(ctx context.Context, tenantID string) error
}

// RateLimiter enforces the sliding-window limit on status lookups,
// keyed by an identity- and tenant-blind bucket (a Tor circuit ID or a
// shared anonymous bucket) rather than client IP.
type RateLimiter interface {
	// Allow records one attempt for limitKey and reports whether it is
	// within the window's limit. If not, retryAfter is the time until
	// the oldest attempt in the window expires.
	Allow(ctx context.Context, limitKey string) (allowed bool, retryAfter time.Duration, err error)
}
