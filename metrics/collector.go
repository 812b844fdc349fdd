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

import (
	"context"
	"log/slog"
	"time"

	"github.com/aitema/hinschg-core/compliance"
	"github.com/aitema/hinschg-core/tenant"
)

// StatusSource supplies the per-tenant status distribution a Collector
// refreshes OpenCasesByStatus from. compliance.Repository already
// implements this method.
type StatusSource interface {
	StatusCounts(ctx context.Context, tenantID string) ([]compliance.StatusCount, error)
}

// Collector periodically re-populates OpenCasesByStatus from a
// StatusSource, the "periodic aggregation cache" counterpart to the
// inline event counters in Recorder.
type Collector struct {
	tenants tenant.Repository
	source  StatusSource
}

// NewCollector creates a gauge-refreshing collector.
func NewCollector(tenants tenant.Repository, source StatusSource) *Collector {
	return &Collector{tenants: tenants, source: source}
}

// Run blocks, refreshing every interval until ctx is cancelled.
func (c *Collector) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.refresh(ctx)
		}
	}
}

func (c *Collector) refresh(ctx context.Context) {
	const pageSize = 500
	for offset := 0; ; offset += pageSize {
		tenants, err := c.tenants.List(ctx, pageSize, offset)
		if err != nil {
			slog.ErrorContext(ctx, "failed to list tenants for metrics refresh", "error", err)
			return
		}
		if len(tenants) == 0 {
			return
		}
		for _, t := range tenants {
			counts, err := c.source.StatusCounts(ctx, t.ID)
			if err != nil {
				slog.ErrorContext(ctx, "failed to refresh case status gauge", "tenant_id", t.ID, "error", err)
				continue
			}
			for _, sc := range counts {
				OpenCasesByStatus.WithLabelValues(t.ID, sc.Status).Set(float64(sc.Count))
			}
		}
		if len(tenants) < pageSize {
			return
		}
	}
}
