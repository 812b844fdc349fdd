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

package compliance

import (
	"context"
	"fmt"
	"time"
)

// Service builds Report snapshots from a Repository.
type Service struct {
	repo Repository
}

// NewService creates a compliance reporting service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Generate builds a point-in-time Report for tenantID. monthsOfVolume
// bounds how far back the monthly volume series reaches (12 is the
// typical dashboard window).
func (s *Service) Generate(ctx context.Context, tenantID string, monthsOfVolume int) (*Report, error) {
	now := time.Now()

	total, err := s.repo.TotalReports(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count reports: %w", err)
	}

	since := now.AddDate(0, -monthsOfVolume, 0)
	volume, err := s.repo.MonthlyVolume(ctx, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate monthly volume: %w", err)
	}

	categories, err := s.repo.CategoryCounts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate category counts: %w", err)
	}
	categories = suppressSmallCategories(categories)

	statuses, err := s.repo.StatusCounts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate status counts: %w", err)
	}

	overdueAck, overdueFeedback, withinAckWindow, err := s.repo.OverdueCounts(ctx, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate deadline compliance: %w", err)
	}

	rate := 100.0
	if total > 0 {
		rate = float64(withinAckWindow) / float64(total) * 100
	}

	return &Report{
		TenantID:                       tenantID,
		TotalReports:                   total,
		MonthlyVolume:                  volume,
		CategoryCounts:                 categories,
		StatusCounts:                   statuses,
		AcknowledgementComplianceRate:  round1(rate),
		OverdueAcknowledgements:        overdueAck,
		OverdueFeedback:                overdueFeedback,
		GeneratedAt:                    now,
	}, nil
}

// suppressSmallCategories folds any category under the anonymization
// threshold into "sonstiges", and drops a now-redundant zero-count
// "sonstiges" entry that folding didn't actually populate.
func suppressSmallCategories(counts []CategoryCount) []CategoryCount {
	var out []CategoryCount
	suppressed := 0
	for _, c := range counts {
		if c.Count < smallCategoryThreshold {
			suppressed += c.Count
			continue
		}
		out = append(out, c)
	}
	if suppressed > 0 {
		out = append(out, CategoryCount{Category: "sonstiges", Count: suppressed})
	}
	return out
}

func round1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}
