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

package role

import "testing"

func TestHasCapability(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		capability string
		want       bool
	}{
		{"admin can manage tenants", Admin, CapManageTenants, true},
		{"admin cannot assign cases", Admin, CapAssignCases, false},
		{"ombudsperson can assign cases", Ombudsperson, CapAssignCases, true},
		{"melder can create submission", Melder, CapCreateSubmission, true},
		{"melder cannot manage cases", Melder, CapManageCases, false},
		{"fallbearbeiter can add notes", Fallbearbeiter, CapAddNotes, true},
		{"auditor can view audit", Auditor, CapViewAudit, true},
		{"auditor cannot manage cases", Auditor, CapManageCases, false},
		{"unknown role has no capabilities", "unknown", CapViewAudit, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCapability(tt.role, tt.capability); got != tt.want {
				t.Errorf("HasCapability(%q, %q) = %v, want %v", tt.role, tt.capability, got, tt.want)
			}
		})
	}
}

func TestValid(t *testing.T) {
	for _, r := range []string{Admin, Ombudsperson, Fallbearbeiter, Melder, Auditor} {
		if !Valid(r) {
			t.Errorf("Valid(%q) = false, want true", r)
		}
	}
	if Valid("platform_admin") {
		t.Error("Valid(\"platform_admin\") = true, want false: not one of the five fixed roles")
	}
}

func TestCapabilitiesTableCoversAllRoles(t *testing.T) {
	for _, r := range []string{Admin, Ombudsperson, Fallbearbeiter, Melder, Auditor} {
		if len(Capabilities(r)) == 0 {
			t.Errorf("role %q has no capabilities defined", r)
		}
	}
}
