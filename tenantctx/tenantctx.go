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

// Package tenantctx carries the request-scoped values every handler needs
// — active tenant, actor, and request metadata — as an explicit value
// threaded through context.Context, replacing the thread-local pattern of
// the system this module was modeled on.
package tenantctx

import (
	"context"

	"github.com/aitema/hinschg-core/apperr"
)

type key int

const requestKey key = 0

// RequestInfo is the request-scoped data a handler resolves once and
// every downstream service call reads from the context.
type RequestInfo struct {
	TenantID  string
	ActorID   string
	Role      string
	Method    string
	Path      string
	IPHash    string
	UserAgent string
}

// WithRequest returns a new context carrying info.
func WithRequest(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestKey, info)
}

// FromContext retrieves the RequestInfo stored by WithRequest, or the
// zero value and false if none is present.
func FromContext(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestKey).(RequestInfo)
	return info, ok
}

// TenantID returns the active tenant id, or an *apperr.Error of kind
// Internal if no request info was attached — a handler reaching a
// tenant-scoped operation without a resolved tenant is a programming
// error, not a recoverable condition.
func TenantID(ctx context.Context) (string, error) {
	info, ok := FromContext(ctx)
	if !ok || info.TenantID == "" {
		return "", apperr.New(apperr.Internal, "no tenant resolved on request context")
	}
	return info.TenantID, nil
}

// ActorID returns the acting user id, empty for anonymous/system
// operations.
func ActorID(ctx context.Context) string {
	info, _ := FromContext(ctx)
	return info.ActorID
}

// Role returns the acting user's role, empty if unresolved.
func Role(ctx context.Context) string {
	info, _ := FromContext(ctx)
	return info.Role
}

// RequireTenantMatch returns apperr.Forbidden if resourceTenantID does not
// equal the context's active tenant. No repository or service in this
// module calls it; they scope rows with tenant_id predicates of their
// own.
func RequireTenantMatch(ctx context.Context, resourceTenantID string) error {
	tid, err := TenantID(ctx)
	if err != nil {
		return err
	}
	if tid != resourceTenantID {
		return apperr.New(apperr.Forbidden, "resource does not belong to the active tenant")
	}
	return nil
}
