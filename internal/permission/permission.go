// Package permission decides what each role may do.
//
// Authorization is a pure function of (role, action) — no per-user grants,
// no runtime type checks. The table below is the whole policy:
//
//	Action          Reporter  Maintainer  Admin
//	create issue    yes       yes         yes
//	view all issues no        yes         yes
//	update issue    no        yes         yes
//	delete issue    no        no          yes
//
// Reporters can always view their own issues; ViewAllIssues governs whether
// list/stats queries are filtered down to the caller's own rows.
package permission

import "github.com/sakif/issue-tracker/internal/model"

// Action is something a caller attempts that authorization must gate.
type Action int

const (
	CreateIssue Action = iota
	ViewAllIssues
	UpdateIssueStatus
	DeleteIssue
)

var table = map[model.Role]map[Action]bool{
	model.RoleReporter: {
		CreateIssue: true,
	},
	model.RoleMaintainer: {
		CreateIssue:       true,
		ViewAllIssues:     true,
		UpdateIssueStatus: true,
	},
	model.RoleAdmin: {
		CreateIssue:       true,
		ViewAllIssues:     true,
		UpdateIssueStatus: true,
		DeleteIssue:       true,
	},
}

// Can reports whether the given role may perform the action.
// Unknown roles (including the empty no-profile role) get reporter rights.
func Can(role model.Role, action Action) bool {
	perms, ok := table[role]
	if !ok {
		perms = table[model.RoleReporter]
	}
	return perms[action]
}
