package org

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"hrsched/internal/domain/auth"
	"hrsched/internal/platform/validation"
)

type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) ListEmployees(ctx context.Context, filter EmployeeFilter) ([]Employee, error) {
	employees, err := s.store.ListEmployees(ctx, filter)
	if err != nil {
		return nil, err
	}
	return Search(employees, filter.Query), nil
}

func (s *Service) GetEmployee(ctx context.Context, employeeID string) (Employee, error) {
	return s.store.GetEmployee(ctx, employeeID)
}

func (s *Service) EmployeeByUserID(ctx context.Context, userID string) (Employee, error) {
	return s.store.EmployeeByUserID(ctx, userID)
}

func (s *Service) CreateEmployee(ctx context.Context, in EmployeeInput) (Employee, error) {
	emp, err := s.employeeFromInput(ctx, in)
	if err != nil {
		return Employee{}, err
	}
	var hash string
	if in.Password != "" {
		hash, err = auth.HashPassword(in.Password)
		if err != nil {
			return Employee{}, err
		}
	}
	id, err := s.store.CreateEmployee(ctx, emp, hash)
	if err != nil {
		return Employee{}, err
	}
	return s.store.GetEmployee(ctx, id)
}

// UpdateEmployee replaces the editable fields and returns the record before and after.
func (s *Service) UpdateEmployee(ctx context.Context, employeeID string, in EmployeeInput) (Employee, Employee, error) {
	before, err := s.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return Employee{}, Employee{}, err
	}
	if in.Active == nil {
		in.Active = &before.Active
	}
	emp, err := s.employeeFromInput(ctx, in)
	if err != nil {
		return Employee{}, Employee{}, err
	}
	emp.UserID = before.UserID
	if err := s.store.UpdateEmployee(ctx, employeeID, emp); err != nil {
		return Employee{}, Employee{}, err
	}
	after, err := s.store.GetEmployee(ctx, employeeID)
	return before, after, err
}

func (s *Service) employeeFromInput(ctx context.Context, in EmployeeInput) (Employee, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	verr := validation.Struct(in)
	if len(verr.Issues) > 0 {
		return Employee{}, verr.OrNil()
	}

	if _, err := s.store.GetFactory(ctx, in.FactoryID); err != nil {
		if errors.Is(err, ErrNotFound) {
			verr.Add("factoryId", "unknown factory")
			return Employee{}, verr.OrNil()
		}
		return Employee{}, err
	}
	if in.GroupID != "" {
		group, err := s.store.GetGroup(ctx, in.GroupID)
		if errors.Is(err, ErrNotFound) {
			verr.Add("groupId", "unknown group")
			return Employee{}, verr.OrNil()
		}
		if err != nil {
			return Employee{}, err
		}
		if group.FactoryID != in.FactoryID {
			verr.Add("groupId", "group belongs to another factory")
			return Employee{}, verr.OrNil()
		}
	}

	role := in.Role
	if role == "" {
		role = auth.RoleEmployee
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	return Employee{
		Name:      in.Name,
		Email:     in.Email,
		Phone:     strings.TrimSpace(in.Phone),
		Role:      role,
		FactoryID: in.FactoryID,
		GroupID:   in.GroupID,
		Active:    active,
	}, nil
}

func (s *Service) ListFactories(ctx context.Context) ([]Factory, error) {
	return s.store.ListFactories(ctx)
}

func (s *Service) GetFactory(ctx context.Context, factoryID string) (Factory, error) {
	return s.store.GetFactory(ctx, factoryID)
}

func (s *Service) CreateFactory(ctx context.Context, in FactoryInput) (Factory, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	if err := validation.Struct(in).OrNil(); err != nil {
		return Factory{}, err
	}
	factory := Factory{Name: in.Name, Code: in.Code, DailyApprovalLimit: in.DailyApprovalLimit}
	id, err := s.store.CreateFactory(ctx, factory)
	if err != nil {
		return Factory{}, err
	}
	factory.ID = id
	return factory, nil
}

func (s *Service) UpdateFactory(ctx context.Context, factoryID string, in FactoryInput) (Factory, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	if err := validation.Struct(in).OrNil(); err != nil {
		return Factory{}, err
	}
	factory := Factory{ID: factoryID, Name: in.Name, Code: in.Code, DailyApprovalLimit: in.DailyApprovalLimit}
	if err := s.store.UpdateFactory(ctx, factoryID, factory); err != nil {
		return Factory{}, err
	}
	return factory, nil
}

func (s *Service) ListGroups(ctx context.Context, factoryID string) ([]Group, error) {
	return s.store.ListGroups(ctx, factoryID)
}

func (s *Service) GetGroup(ctx context.Context, groupID string) (Group, error) {
	return s.store.GetGroup(ctx, groupID)
}

func (s *Service) CreateGroup(ctx context.Context, in GroupInput) (Group, error) {
	group, err := s.groupFromInput(ctx, in)
	if err != nil {
		return Group{}, err
	}
	id, err := s.store.CreateGroup(ctx, group)
	if err != nil {
		return Group{}, err
	}
	group.ID = id
	return group, nil
}

// UpdateGroup changes name, shift and leaders. A group cannot move between factories.
func (s *Service) UpdateGroup(ctx context.Context, groupID string, in GroupInput) (Group, error) {
	current, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return Group{}, err
	}
	in.FactoryID = current.FactoryID
	group, err := s.groupFromInput(ctx, in)
	if err != nil {
		return Group{}, err
	}
	group.ID = groupID
	if err := s.store.UpdateGroup(ctx, groupID, group); err != nil {
		return Group{}, err
	}
	return group, nil
}

func (s *Service) groupFromInput(ctx context.Context, in GroupInput) (Group, error) {
	in.Name = strings.TrimSpace(in.Name)
	verr := validation.Struct(in)
	if len(verr.Issues) > 0 {
		return Group{}, verr.OrNil()
	}
	if _, err := s.store.GetFactory(ctx, in.FactoryID); err != nil {
		if errors.Is(err, ErrNotFound) {
			verr.Add("factoryId", "unknown factory")
			return Group{}, verr.OrNil()
		}
		return Group{}, err
	}
	if in.PrimaryLeaderID != "" && in.PrimaryLeaderID == in.SecondaryLeaderID {
		verr.Add("secondaryLeaderId", "must differ from primary leader")
	}
	for field, leaderID := range map[string]string{"primaryLeaderId": in.PrimaryLeaderID, "secondaryLeaderId": in.SecondaryLeaderID} {
		if leaderID == "" {
			continue
		}
		leader, err := s.store.GetEmployee(ctx, leaderID)
		if errors.Is(err, ErrNotFound) {
			verr.Add(field, "unknown employee")
			continue
		}
		if err != nil {
			return Group{}, err
		}
		if leader.FactoryID != in.FactoryID || !leader.Active {
			verr.Add(field, "must be an active employee of the same factory")
		}
	}
	if err := verr.OrNil(); err != nil {
		return Group{}, err
	}
	return Group{
		FactoryID:         in.FactoryID,
		Name:              in.Name,
		Shift:             in.Shift,
		PrimaryLeaderID:   in.PrimaryLeaderID,
		SecondaryLeaderID: in.SecondaryLeaderID,
	}, nil
}

func (s *Service) ListHolidays(ctx context.Context, from, to time.Time) ([]Holiday, error) {
	return s.store.ListHolidays(ctx, from, to)
}

func (s *Service) CreateHoliday(ctx context.Context, in HolidayInput) (Holiday, error) {
	in.Name = strings.TrimSpace(in.Name)
	verr := validation.Struct(in)
	if len(verr.Issues) > 0 {
		return Holiday{}, verr.OrNil()
	}
	date, _ := time.Parse(time.DateOnly, in.Date)
	if in.FactoryID != "" {
		if _, err := s.store.GetFactory(ctx, in.FactoryID); err != nil {
			if errors.Is(err, ErrNotFound) {
				verr.Add("factoryId", "unknown factory")
				return Holiday{}, verr.OrNil()
			}
			return Holiday{}, err
		}
	}
	holiday := Holiday{Date: date, Name: in.Name, FactoryID: in.FactoryID}
	id, err := s.store.CreateHoliday(ctx, holiday)
	if err != nil {
		return Holiday{}, err
	}
	holiday.ID = id
	return holiday, nil
}

func (s *Service) DeleteHoliday(ctx context.Context, holidayID string) error {
	return s.store.DeleteHoliday(ctx, holidayID)
}

// ImportRoster creates employees from an XLSX roster. Rows whose email already
// exists are skipped; rows that fail validation are reported and skipped.
// Factories are matched by code, groups by name within the factory, and
// defaultFactoryID is used for rows without a factory column.
func (s *Service) ImportRoster(ctx context.Context, r io.Reader, defaultFactoryID string) (ImportResult, error) {
	rows, err := ParseRoster(r)
	if err != nil {
		return ImportResult{}, err
	}
	existing, err := s.store.ExistingEmails(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	factories, err := s.store.ListFactories(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	factoryByCode := map[string]string{}
	for _, f := range factories {
		factoryByCode[strings.ToUpper(f.Code)] = f.ID
	}
	groupCache := map[string]map[string]string{}

	var result ImportResult
	for _, row := range rows {
		if existing[row.Email] {
			result.Skipped++
			continue
		}
		factoryID := defaultFactoryID
		if row.Factory != "" {
			factoryID = factoryByCode[strings.ToUpper(row.Factory)]
		}
		if factoryID == "" {
			result.Errors = append(result.Errors, ImportIssue{Row: row.Line, Reason: "unknown factory"})
			continue
		}
		groupID := ""
		if row.Group != "" {
			groups, ok := groupCache[factoryID]
			if !ok {
				list, err := s.store.ListGroups(ctx, factoryID)
				if err != nil {
					return result, err
				}
				groups = map[string]string{}
				for _, g := range list {
					groups[strings.ToLower(g.Name)] = g.ID
				}
				groupCache[factoryID] = groups
			}
			groupID = groups[strings.ToLower(row.Group)]
			if groupID == "" {
				result.Errors = append(result.Errors, ImportIssue{Row: row.Line, Reason: "unknown group"})
				continue
			}
		}

		_, err := s.CreateEmployee(ctx, EmployeeInput{
			Name:      row.Name,
			Email:     row.Email,
			Phone:     row.Phone,
			Role:      row.Role,
			FactoryID: factoryID,
			GroupID:   groupID,
		})
		var verr *validation.Error
		switch {
		case errors.As(err, &verr):
			result.Errors = append(result.Errors, ImportIssue{Row: row.Line, Reason: verr.Error()})
			continue
		case errors.Is(err, ErrDuplicateEmail):
			result.Skipped++
			continue
		case err != nil:
			return result, err
		}
		existing[row.Email] = true
		result.Created++
	}
	slog.Info("roster import finished", "created", result.Created, "skipped", result.Skipped, "errors", len(result.Errors))
	return result, nil
}
