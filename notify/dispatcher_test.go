// Copyright 2026 The OpenTrusty Authors
// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeTransport struct {
	mu       sync.Mutex
	sent     []string
	failures int
}

func (f *fakeTransport) Send(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("transport temporarily unavailable")
	}
	f.sent = append(f.sent, to+": "+subject+" - "+body)
	return nil
}

func TestDispatchRendersAndSends(t *testing.T) {
	transport := &fakeTransport{}
	d := NewBreakerDispatcher("test", transport, DefaultTemplater{})

	err := d.Dispatch(context.Background(), Message{
		Kind: KindAcknowledgementDue, CaseID: "case-1", Recipient: "handler@example.com", Language: "de",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(transport.sent))
	}
}

func TestDispatchRetriesTransientFailures(t *testing.T) {
	transport := &fakeTransport{failures: 2}
	d := NewBreakerDispatcher("test-retry", transport, DefaultTemplater{})

	err := d.Dispatch(context.Background(), Message{
		Kind: KindFeedbackDue, CaseID: "case-2", Recipient: "handler@example.com", Language: "en",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("expected eventual success after retries, got %d sent", len(transport.sent))
	}
}

func TestDispatchUnknownLanguageFallsBackToGerman(t *testing.T) {
	transport := &fakeTransport{}
	d := NewBreakerDispatcher("test-lang", transport, DefaultTemplater{})

	err := d.Dispatch(context.Background(), Message{
		Kind: KindEscalated, CaseID: "case-3", Recipient: "handler@example.com", Language: "fr",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("expected message to send via de fallback, got %d", len(transport.sent))
	}
}

func TestRenderUnknownKindFails(t *testing.T) {
	_, _, err := DefaultTemplater{}.Render(Message{Kind: "not-a-kind", CaseID: "case-4", Language: "de"})
	if err == nil {
		t.Error("expected error for unknown notification kind")
	}
}
