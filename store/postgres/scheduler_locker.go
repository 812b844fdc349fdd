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

package postgres

import (
	"context"

	"github.com/aitema/hinschg-core/scheduler"
)

// SchedulerLocker adapts DB's advisory lock to scheduler.Locker. The
// adaptation exists only because DB.TryAdvisoryLock returns the
// concrete *AdvisoryLock rather than the scheduler.Unlocker interface.
type SchedulerLocker struct {
	db *DB
}

// NewSchedulerLocker wraps db for use as a scheduler.Locker.
func NewSchedulerLocker(db *DB) SchedulerLocker {
	return SchedulerLocker{db: db}
}

// TryAdvisoryLock implements scheduler.Locker.
func (l SchedulerLocker) TryAdvisoryLock(ctx context.Context, key int64) (scheduler.Unlocker, bool, error) {
	lock, ok, err := l.db.TryAdvisoryLock(ctx, key)
	if lock == nil {
		return nil, ok, err
	}
	return lock, ok, err
}
