package auth

import (
	"context"
	"slices"
)

const (
	RoleEmployee = "employee"
	RoleLeader   = "leader"
	RoleAdmin    = "admin"
)

const (
	PermRequestsRead   = "requests.read"
	PermRequestsWrite  = "requests.write"
	PermRequestsDecide = "requests.decide"
	PermEmployeesRead  = "org.employees.read"
	PermEmployeesWrite = "org.employees.write"
	PermOrgRead        = "org.read"
	PermOrgWrite       = "org.write"
	PermCalendarRead   = "calendar.read"
	PermReportsRead    = "reports.read"
	PermNotifications  = "notifications.read"
	PermAuditRead      = "audit.read"
	PermJobsRun        = "jobs.run"
)

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermRequestsRead,
		PermRequestsWrite,
		PermOrgRead,
		PermCalendarRead,
		PermNotifications,
	},
	RoleLeader: {
		PermRequestsRead,
		PermRequestsWrite,
		PermRequestsDecide,
		PermEmployeesRead,
		PermOrgRead,
		PermCalendarRead,
		PermReportsRead,
		PermNotifications,
	},
	RoleAdmin: {
		PermRequestsRead,
		PermRequestsWrite,
		PermRequestsDecide,
		PermEmployeesRead,
		PermEmployeesWrite,
		PermOrgRead,
		PermOrgWrite,
		PermCalendarRead,
		PermReportsRead,
		PermNotifications,
		PermAuditRead,
		PermJobsRun,
	},
}

func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}

func RoleHasPermission(role, permission string) bool {
	return slices.Contains(RolePermissions[role], permission)
}

// RolePermissionStore answers permission checks from the static role map.
type RolePermissionStore struct{}

func (RolePermissionStore) HasPermission(_ context.Context, role, permission string) (bool, error) {
	return RoleHasPermission(role, permission), nil
}
