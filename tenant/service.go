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

package tenant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aitema/hinschg-core/audit"
	"github.com/aitema/hinschg-core/id"
)

// TenantDataRepository is the narrow cascade-deletion surface each
// domain package (report, anon, user) exposes so DeleteTenant can purge
// everything a tenant owns without importing those packages directly and
// risking an import cycle — report.Repository embeds this method
// alongside its own domain methods.
type TenantDataRepository interface {
	DeleteByTenantID(ctx context.Context, tenantID string) error
}

// Service provides tenant management business logic.
type Service struct {
	repo        Repository
	auditLogger audit.Logger

	// Cascade targets for DeleteTenant. Any of these may be nil in a
	// partial wiring (e.g. tests exercising only tenant CRUD).
	reports     TenantDataRepository
	cases       TenantDataRepository
	deadlines   TenantDataRepository
	anon        TenantDataRepository
	users       TenantDataRepository
	auditEvents TenantDataRepository
}

// NewService creates a new tenant service.
func NewService(repo Repository, auditLogger audit.Logger) *Service {
	return &Service{repo: repo, auditLogger: auditLogger}
}

// WithCascadeTargets registers the repositories DeleteTenant purges. It
// returns the receiver for chaining at wiring time.
func (s *Service) WithCascadeTargets(reports, cases, deadlines, anon, users, auditEvents TenantDataRepository) *Service {
	s.reports = reports
	s.cases = cases
	s.deadlines = deadlines
	s.anon = anon
	s.users = users
	s.auditEvents = auditEvents
	return s
}

// CreateTenant creates a new tenant with statutory-default configuration.
func (s *Service) CreateTenant(ctx context.Context, name, slug string, orgSize OrgSize, contactEmail, actorID string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 200 {
		return nil, ErrInvalidTenantName
	}

	if existing, err := s.repo.GetBySlug(ctx, slug); err == nil && existing != nil {
		return nil, ErrTenantAlreadyExists
	}

	now := time.Now()
	t := &Tenant{
		ID:           id.NewUUIDv7(),
		Slug:         slug,
		Name:         name,
		OrgSize:      orgSize,
		ContactEmail: contactEmail,
		Config:       DefaultConfig(),
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeTenantCreated,
		TenantID:   t.ID,
		ActorID:    actorID,
		Resource:   audit.ResourceTenant,
		TargetName: t.Name,
		TargetID:   t.ID,
		Success:    true,
	})

	return t, nil
}

// GetTenant retrieves a tenant by ID.
func (s *Service) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// GetTenantBySlug retrieves a tenant by slug.
func (s *Service) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	return s.repo.GetBySlug(ctx, slug)
}

// ListTenants retrieves tenants with pagination.
func (s *Service) ListTenants(ctx context.Context, limit, offset int) ([]*Tenant, error) {
	return s.repo.List(ctx, limit, offset)
}

// UpdateConfig validates (clamping out-of-bound overrides) and persists a
// tenant's deadline configuration.
func (s *Service) UpdateConfig(ctx context.Context, tenantID string, cfg Config, actorID string) (*Tenant, error) {
	t, err := s.repo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	validated, clamped := cfg.Validate()
	t.Config = validated
	t.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update tenant config: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeTenantConfigUpdated,
		TenantID:   tenantID,
		ActorID:    actorID,
		Resource:   audit.ResourceTenant,
		TargetID:   tenantID,
		Metadata:   map[string]any{"clamped": clamped},
		Success:    true,
	})

	return t, nil
}

// UpdateTenant updates mutable tenant profile fields.
func (s *Service) UpdateTenant(ctx context.Context, tenantID, name, contactEmail, ombudspersonName, ombudspersonEmail, actorID string) (*Tenant, error) {
	t, err := s.repo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if name != "" {
		t.Name = name
	}
	if contactEmail != "" {
		t.ContactEmail = contactEmail
	}
	if ombudspersonName != "" {
		t.OmbudspersonName = ombudspersonName
	}
	if ombudspersonEmail != "" {
		t.OmbudspersonEmail = ombudspersonEmail
	}
	t.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeTenantUpdated,
		TenantID:   tenantID,
		ActorID:    actorID,
		Resource:   audit.ResourceTenant,
		TargetName: t.Name,
		TargetID:   t.ID,
		Success:    true,
	})
	return t, nil
}

// DeleteTenant deletes a tenant and cascades to every record it owns:
// reports, cases, deadlines, anon submissions, users, and audit entries,
// through whichever cascade targets are wired. It stops at the first
// target that fails.
func (s *Service) DeleteTenant(ctx context.Context, tenantID, actorID string) error {
	t, err := s.repo.GetByID(ctx, tenantID)
	tenantName := tenantID
	if err == nil && t != nil {
		tenantName = t.Name
	}

	for _, target := range []TenantDataRepository{s.deadlines, s.cases, s.reports, s.anon, s.users, s.auditEvents} {
		if target == nil {
			continue
		}
		if err := target.DeleteByTenantID(ctx, tenantID); err != nil {
			return fmt.Errorf("failed to cascade tenant data deletion: %w", err)
		}
	}

	if err := s.repo.Delete(ctx, tenantID); err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeTenantDeleted,
		ActorID:    actorID,
		Resource:   audit.ResourceTenant,
		TargetName: tenantName,
		TargetID:   tenantID,
		Success:    true,
	})
	return nil
}
