// Copyright 2026 The OpenTrusty Authors
// SPDX-License-Identifier: MIT

package compliance

import (
	"context"
	"testing"
	"time"
)

type fakeRepo struct {
	total           int
	volume          []MonthlyVolume
	categories      []CategoryCount
	statuses        []StatusCount
	overdueAck      int
	overdueFeedback int
	withinAckWindow int
}

func (f *fakeRepo) TotalReports(ctx context.Context, tenantID string) (int, error) {
	return f.total, nil
}
func (f *fakeRepo) MonthlyVolume(ctx context.Context, tenantID string, since time.Time) ([]MonthlyVolume, error) {
	return f.volume, nil
}
func (f *fakeRepo) CategoryCounts(ctx context.Context, tenantID string) ([]CategoryCount, error) {
	return f.categories, nil
}
func (f *fakeRepo) StatusCounts(ctx context.Context, tenantID string) ([]StatusCount, error) {
	return f.statuses, nil
}
func (f *fakeRepo) OverdueCounts(ctx context.Context, tenantID string, now time.Time) (int, int, int, error) {
	return f.overdueAck, f.overdueFeedback, f.withinAckWindow, nil
}

func TestGenerateComputesComplianceRate(t *testing.T) {
	repo := &fakeRepo{total: 10, withinAckWindow: 8, overdueAck: 2, overdueFeedback: 1}
	svc := NewService(repo)

	report, err := svc.Generate(context.Background(), "tenant-1", 12)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if report.AcknowledgementComplianceRate != 80.0 {
		t.Errorf("expected compliance rate 80.0, got %v", report.AcknowledgementComplianceRate)
	}
	if report.OverdueAcknowledgements != 2 || report.OverdueFeedback != 1 {
		t.Errorf("unexpected overdue counts: %+v", report)
	}
}

func TestGenerateWithNoReportsReportsFullCompliance(t *testing.T) {
	repo := &fakeRepo{total: 0}
	svc := NewService(repo)

	report, err := svc.Generate(context.Background(), "tenant-1", 12)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if report.AcknowledgementComplianceRate != 100.0 {
		t.Errorf("expected 100.0 compliance rate with zero reports, got %v", report.AcknowledgementComplianceRate)
	}
}

func TestGenerateSuppressesSmallCategories(t *testing.T) {
	repo := &fakeRepo{
		total: 20,
		categories: []CategoryCount{
			{Category: "korruption", Count: 10},
			{Category: "betrug", Count: 2},
			{Category: "geldwaesche", Count: 1},
		},
	}
	svc := NewService(repo)

	report, err := svc.Generate(context.Background(), "tenant-1", 12)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(report.CategoryCounts) != 2 {
		t.Fatalf("expected 2 category entries after suppression, got %d: %+v", len(report.CategoryCounts), report.CategoryCounts)
	}
	var sawKorruption, sawSonstiges bool
	for _, c := range report.CategoryCounts {
		switch c.Category {
		case "korruption":
			sawKorruption = true
			if c.Count != 10 {
				t.Errorf("expected korruption count 10, got %d", c.Count)
			}
		case "sonstiges":
			sawSonstiges = true
			if c.Count != 3 {
				t.Errorf("expected folded sonstiges count 3, got %d", c.Count)
			}
		}
	}
	if !sawKorruption || !sawSonstiges {
		t.Errorf("expected korruption and sonstiges categories, got %+v", report.CategoryCounts)
	}
}
