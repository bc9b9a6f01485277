package org

import (
	"context"
	"time"
)

type StoreAPI interface {
	ListEmployees(ctx context.Context, filter EmployeeFilter) ([]Employee, error)
	GetEmployee(ctx context.Context, employeeID string) (Employee, error)
	EmployeeByUserID(ctx context.Context, userID string) (Employee, error)
	ExistingEmails(ctx context.Context) (map[string]bool, error)
	CreateEmployee(ctx context.Context, emp Employee, passwordHash string) (string, error)
	UpdateEmployee(ctx context.Context, employeeID string, emp Employee) error

	ListFactories(ctx context.Context) ([]Factory, error)
	GetFactory(ctx context.Context, factoryID string) (Factory, error)
	CreateFactory(ctx context.Context, factory Factory) (string, error)
	UpdateFactory(ctx context.Context, factoryID string, factory Factory) error

	ListGroups(ctx context.Context, factoryID string) ([]Group, error)
	GetGroup(ctx context.Context, groupID string) (Group, error)
	CreateGroup(ctx context.Context, group Group) (string, error)
	UpdateGroup(ctx context.Context, groupID string, group Group) error

	ListHolidays(ctx context.Context, from, to time.Time) ([]Holiday, error)
	CreateHoliday(ctx context.Context, holiday Holiday) (string, error)
	DeleteHoliday(ctx context.Context, holidayID string) error
}
