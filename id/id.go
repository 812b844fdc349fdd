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

// Package id generates primary-key identifiers for every entity in the
// system. All entity IDs are UUIDv7 (RFC 9562): time-ordered, so primary
// key indices stay append-mostly, while remaining opaque and non-
// enumerable like a random UUID.
package id

import "github.com/google/uuid"

// NewUUIDv7 returns a new time-ordered UUID for use as an entity primary
// key. Panics only if the system's CSPRNG is unavailable, mirroring
// uuid.Must semantics used throughout the pack.
func NewUUIDv7() string {
	v, err := uuid.NewV7()
	if err != nil {
		// crypto/rand failure; there is no sane fallback for an identifier
		// that must be globally unique.
		v = uuid.New()
	}
	return v.String()
}
