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

// Package tenant models the customer organization that owns every
// report, case, user, and audit entry in the system. Tenant isolation is
// the overarching invariant: every repository method that reads or
// writes domain data scopes its query by tenant id.
package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/aitema/hinschg-core/deadline"
)

// Domain errors
var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrTenantAlreadyExists = errors.New("tenant already exists")
	ErrInvalidTenantName   = errors.New("invalid tenant name")
)

// OrgSize classifies the tenant's organization for reporting purposes.
type OrgSize string

const (
	OrgSizeSmall  OrgSize = "small"
	OrgSizeMedium OrgSize = "medium"
	OrgSizeLarge  OrgSize = "large"
)

// Status constants
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Config is the single typed configuration object per tenant — resolving
// the open question of two divergent override representations (a SQL
// column and a JSON blob) in favor of one typed value embedding
// deadline.Bounds plus feature flags.
type Config struct {
	Deadlines    deadline.Bounds
	FeatureFlags map[string]bool
}

// DefaultConfig returns the statutory defaults with no feature flags set.
func DefaultConfig() Config {
	return Config{Deadlines: deadline.DefaultBounds(), FeatureFlags: map[string]bool{}}
}

// Validate clamps deadline overrides to their statutory bounds, returning
// the clamped config and whether clamping changed anything.
func (c Config) Validate() (Config, bool) {
	clamped := c.Deadlines.Clamp()
	changed := clamped != c.Deadlines
	c.Deadlines = clamped
	if c.FeatureFlags == nil {
		c.FeatureFlags = map[string]bool{}
	}
	return c, changed
}

// Tenant represents an isolated customer organization.
//
// Purpose: Root container for data isolation in the multi-tenant
// architecture; destroyed only by explicit administrative deletion.
type Tenant struct {
	ID                string
	Slug              string
	Name              string
	OrgSize           OrgSize
	ContactEmail      string
	OmbudspersonName  string
	OmbudspersonEmail string
	Config            Config
	Status            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Repository persists Tenant records.
type Repository interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*Tenant, error)
}
