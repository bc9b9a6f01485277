package requests

import (
	"context"
	"time"
)

// StoreAPI reads the four request tables and the directory, and writes
// requests together with their detail rows. An empty id reads every row.
type StoreAPI interface {
	RequestRows(ctx context.Context, id string) ([]RequestRow, error)
	TimeOffRows(ctx context.Context, id string) ([]TimeOffRow, error)
	EarlyDepartureRows(ctx context.Context, id string) ([]EarlyDepartureRow, error)
	LatenessRows(ctx context.Context, id string) ([]LatenessRow, error)

	EmployeeRefs(ctx context.Context) ([]EmployeeRef, error)
	Employee(ctx context.Context, employeeID string) (EmployeeRef, error)
	GroupLeaders(ctx context.Context, groupID string) (GroupLeaders, error)
	LedGroupIDs(ctx context.Context, employeeID string) ([]string, error)
	FactoryDailyLimit(ctx context.Context, factoryID string) (*int, error)

	Insert(ctx context.Context, req Request) error
	Update(ctx context.Context, req Request) error
	Decide(ctx context.Context, id, status, decidedBy, note string, at time.Time) error
	Delete(ctx context.Context, id string) error
}
