package calendar

import (
	"context"
	"fmt"
	"time"

	"hrsched/internal/domain/org"
	"hrsched/internal/domain/requests"
)

type RequestSource interface {
	UnifiedView(ctx context.Context, filter requests.Filter) ([]requests.Request, error)
}

type HolidaySource interface {
	ListHolidays(ctx context.Context, from, to time.Time) ([]org.Holiday, error)
}

type Service struct {
	Requests RequestSource
	Holidays HolidaySource
}

func NewService(reqs RequestSource, holidays HolidaySource) *Service {
	return &Service{Requests: reqs, Holidays: holidays}
}

func (s *Service) Month(ctx context.Context, year, month int, factoryID string) (Month, error) {
	if month < 1 || month > 12 {
		return Month{}, fmt.Errorf("month %d out of range", month)
	}
	first, last := Bounds(year, month)
	items, err := s.Requests.UnifiedView(ctx, requests.Filter{
		Status:    requests.StatusApproved,
		FactoryID: factoryID,
		From:      first,
		To:        last,
	})
	if err != nil {
		return Month{}, err
	}
	holidays, err := s.Holidays.ListHolidays(ctx, first, last)
	if err != nil {
		return Month{}, err
	}
	return Build(year, month, items, holidays, factoryID), nil
}

// Approved returns the approved requests overlapping [from, to] for export.
func (s *Service) Approved(ctx context.Context, from, to time.Time, factoryID string) ([]requests.Request, error) {
	return s.Requests.UnifiedView(ctx, requests.Filter{
		Status:    requests.StatusApproved,
		FactoryID: factoryID,
		From:      from,
		To:        to,
	})
}
