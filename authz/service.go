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

// Package authz enforces the fixed role.Table at handler entry and is
// reaffirmed inside casemgmt and ombudsperson operations, so a missing
// check upstream never silently grants access (defence in depth per
// the authorization layer).
package authz

import (
	"context"
	"log/slog"

	"github.com/aitema/hinschg-core/apperr"
	"github.com/aitema/hinschg-core/role"
)

// Service evaluates capability checks against the fixed role table.
//
// Purpose: Single entry point every handler and service calls to check
// whether an acting role may perform an operation.
type Service struct{}

// NewService creates a new authorization service.
func NewService() *Service {
	return &Service{}
}

// HasCapability reports whether the given role grants capability.
func (s *Service) HasCapability(roleName, capability string) bool {
	return role.HasCapability(roleName, capability)
}

// Require returns apperr.Forbidden if roleName lacks capability, logging
// the denial for audit visibility. Callers in casemgmt/ombudsperson call
// this again even when a handler layer has already checked, so a missing
// upstream check never silently grants access.
func (s *Service) Require(ctx context.Context, roleName, capability string) error {
	if role.HasCapability(roleName, capability) {
		return nil
	}
	slog.WarnContext(ctx, "authz: denied", "role", roleName, "capability", capability)
	return apperr.New(apperr.Forbidden, "role does not grant the required capability")
}
