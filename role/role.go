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

// Package role defines the fixed role-to-capability table. Unlike a
// dynamic, database-seeded RBAC system, the five roles and their
// capabilities are a closed set known at compile time: HinSchG assigns
// statutory responsibilities to named roles, not to administrator-defined
// policies.
package role

// -----------------------------------------------------------------------------
// Role Name Constants
// -----------------------------------------------------------------------------

const (
	// Admin manages tenants, users, and has unrestricted case visibility.
	Admin = "admin"

	// Ombudsperson receives forwarded cases, sees identity-masked
	// projections, and records recommendations.
	Ombudsperson = "ombudsperson"

	// Fallbearbeiter ("case handler") works assigned cases.
	Fallbearbeiter = "fallbearbeiter"

	// Melder ("reporter") submits and tracks their own submissions.
	Melder = "melder"

	// Auditor has read-only access to cases and the audit trail.
	Auditor = "auditor"
)

// ActorType identifies the kind of actor performing an action, so system
// (scheduler) events can be distinguished from human actors in the audit
// trail without inventing a synthetic user row.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// Capabilities, named for what they permit.
const (
	CapManageTenants      = "manage_tenants"
	CapManageUsers        = "manage_users"
	CapViewAllCases       = "view_all_cases"
	CapViewAssignedCases  = "view_assigned_cases"
	CapViewAudit          = "view_audit"
	CapExportData         = "export_data"
	CapManageCases        = "manage_cases"
	CapAssignCases        = "assign_cases"
	CapViewSubmissions    = "view_submissions"
	CapViewOwnSubmissions = "view_own_submissions"
	CapSendNotifications  = "send_notifications"
	CapCreateSubmission   = "create_submission"
	CapAddFollowUp        = "add_follow_up"
	CapAddNotes           = "add_notes"
	CapUploadAttachments  = "upload_attachments"
)

// Table is the fixed role→capability map. It is built once
// at package init and never mutated at runtime: granting a capability
// means adding it here and shipping a new binary, not writing a row.
var Table = map[string][]string{
	Admin: {
		CapManageTenants, CapManageUsers, CapViewAllCases, CapViewAudit,
		CapExportData, CapManageCases, CapViewSubmissions,
	},
	Ombudsperson: {
		CapViewSubmissions, CapManageCases, CapAssignCases, CapViewAudit,
		CapExportData, CapViewAllCases, CapSendNotifications,
	},
	Fallbearbeiter: {
		CapViewAssignedCases, CapManageCases, CapAddNotes, CapUploadAttachments,
	},
	Melder: {
		CapCreateSubmission, CapViewOwnSubmissions, CapAddFollowUp,
	},
	Auditor: {
		CapViewAllCases, CapViewAudit, CapViewSubmissions, CapExportData,
	},
}

// Valid reports whether name is one of the five known roles.
func Valid(name string) bool {
	_, ok := Table[name]
	return ok
}

// HasCapability reports whether role grants capability. An unknown role
// has no capabilities, not a wildcard.
func HasCapability(role, capability string) bool {
	caps, ok := Table[role]
	if !ok {
		return false
	}
	for _, c := range caps {
		if c == capability {
			return true
		}
	}
	return false
}

// Capabilities returns the capability list for role, or nil if role is
// unknown.
func Capabilities(role string) []string {
	return Table[role]
}
