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

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/aitema/hinschg-core/metrics"
)

// BreakerDispatcher implements Dispatcher by rendering a Message through
// a Templater and sending it through a Transport, retrying transport
// errors with exponential backoff and tripping a circuit breaker once
// the transport fails persistently.
type BreakerDispatcher struct {
	transport  Transport
	templater  Templater
	breaker    *gobreaker.CircuitBreaker
	maxRetries uint64
	recorder   metrics.Recorder
}

// WithRecorder wires a metrics.Recorder into the dispatcher for
// dispatch success/failure counters. Unwired, the dispatcher records
// nothing.
func (d *BreakerDispatcher) WithRecorder(r metrics.Recorder) *BreakerDispatcher {
	d.recorder = r
	return d
}

// NewBreakerDispatcher creates a dispatcher named for logging/metrics
// purposes, backed by transport and templater. The breaker trips after
// 5 consecutive failures and stays open for 30 seconds before allowing a
// single probe request through, mirroring a conservative mail-relay
// failover policy.
func NewBreakerDispatcher(name string, transport Transport, templater Templater) *BreakerDispatcher {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("notification circuit breaker state change", "breaker", name, "from", from, "to", to)
		},
	}
	return &BreakerDispatcher{
		transport:  transport,
		templater:  templater,
		breaker:    gobreaker.NewCircuitBreaker(settings),
		maxRetries: 5,
		recorder:   metrics.NoopRecorder{},
	}
}

// Dispatch implements Dispatcher.
func (d *BreakerDispatcher) Dispatch(ctx context.Context, m Message) error {
	subject, body, err := d.templater.Render(m)
	if err != nil {
		return fmt.Errorf("failed to render notification template: %w", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), d.maxRetries), ctx)

	operation := func() error {
		_, err := d.breaker.Execute(func() (any, error) {
			return nil, d.transport.Send(ctx, m.Recipient, subject, body)
		})
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return backoff.Permanent(fmt.Errorf("notification transport circuit is open: %w", err))
		}
		return err
	}

	if err := backoff.Retry(operation, policy); err != nil {
		d.recorder.NotificationDispatched(string(m.Kind), "failed")
		return fmt.Errorf("failed to dispatch %s notification for case %s: %w", m.Kind, m.CaseID, err)
	}
	d.recorder.NotificationDispatched(string(m.Kind), "sent")
	return nil
}
