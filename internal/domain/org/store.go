package org

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"hrsched/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const employeeColumns = `id, COALESCE(user_id::text, ''), full_name, email, phone, role,
  factory_id::text, COALESCE(group_id::text, ''), active, created_at, updated_at`

func scanEmployee(row pgx.Row) (Employee, error) {
	var emp Employee
	err := row.Scan(&emp.ID, &emp.UserID, &emp.Name, &emp.Email, &emp.Phone, &emp.Role,
		&emp.FactoryID, &emp.GroupID, &emp.Active, &emp.CreatedAt, &emp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrNotFound
	}
	return emp, err
}

func (s *Store) ListEmployees(ctx context.Context, filter EmployeeFilter) ([]Employee, error) {
	query := "SELECT " + employeeColumns + " FROM employees WHERE 1=1"
	var args []any
	if filter.FactoryID != "" {
		args = append(args, filter.FactoryID)
		query += fmt.Sprintf(" AND factory_id = $%d", len(args))
	}
	if filter.GroupID != "" {
		args = append(args, filter.GroupID)
		query += fmt.Sprintf(" AND group_id = $%d", len(args))
	}
	if filter.ActiveOnly {
		query += " AND active"
	}
	query += " ORDER BY full_name"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func (s *Store) GetEmployee(ctx context.Context, employeeID string) (Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = $1", employeeID))
}

func (s *Store) EmployeeByUserID(ctx context.Context, userID string) (Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE user_id = $1", userID))
}

func (s *Store) ExistingEmails(ctx context.Context) (map[string]bool, error) {
	rows, err := s.DB.Query(ctx, "SELECT lower(email) FROM employees UNION SELECT lower(email) FROM users")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out[email] = true
	}
	return out, rows.Err()
}

// CreateEmployee inserts the employee and, when passwordHash is set, a login
// user with the same email and role in one transaction.
func (s *Store) CreateEmployee(ctx context.Context, emp Employee, passwordHash string) (string, error) {
	var id string
	err := pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		var userID any
		if passwordHash != "" {
			var created string
			if err := tx.QueryRow(ctx, `
        INSERT INTO users (email, password_hash, role)
        VALUES ($1,$2,$3)
        RETURNING id
      `, emp.Email, passwordHash, emp.Role).Scan(&created); err != nil {
				return err
			}
			userID = created
		}
		return tx.QueryRow(ctx, `
      INSERT INTO employees (user_id, factory_id, group_id, full_name, email, phone, role, active)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
      RETURNING id
    `, userID, emp.FactoryID, nullIfEmpty(emp.GroupID), emp.Name, emp.Email, emp.Phone, emp.Role, emp.Active).Scan(&id)
	})
	if isUniqueViolation(err) {
		return "", ErrDuplicateEmail
	}
	return id, err
}

// UpdateEmployee rewrites the employee row and its login account in one
// transaction so the two never disagree on email, role or active state.
func (s *Store) UpdateEmployee(ctx context.Context, employeeID string, emp Employee) error {
	err := pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
      UPDATE employees
      SET full_name = $2, email = $3, phone = $4, role = $5, factory_id = $6, group_id = $7, active = $8, updated_at = now()
      WHERE id = $1
    `, employeeID, emp.Name, emp.Email, emp.Phone, emp.Role, emp.FactoryID, nullIfEmpty(emp.GroupID), emp.Active)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if emp.UserID == "" {
			return nil
		}
		_, err = tx.Exec(ctx, "UPDATE users SET email = $2, role = $3, active = $4 WHERE id = $1", emp.UserID, emp.Email, emp.Role, emp.Active)
		return err
	})
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (s *Store) ListFactories(ctx context.Context) ([]Factory, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, name, code, daily_approval_limit, created_at FROM factories ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Factory
	for rows.Next() {
		var f Factory
		if err := rows.Scan(&f.ID, &f.Name, &f.Code, &f.DailyApprovalLimit, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) GetFactory(ctx context.Context, factoryID string) (Factory, error) {
	var f Factory
	err := s.DB.QueryRow(ctx, "SELECT id, name, code, daily_approval_limit, created_at FROM factories WHERE id = $1", factoryID).
		Scan(&f.ID, &f.Name, &f.Code, &f.DailyApprovalLimit, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Factory{}, ErrNotFound
	}
	return f, err
}

func (s *Store) CreateFactory(ctx context.Context, factory Factory) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO factories (name, code, daily_approval_limit)
    VALUES ($1,$2,$3)
    RETURNING id
  `, factory.Name, factory.Code, factory.DailyApprovalLimit).Scan(&id)
	return id, err
}

func (s *Store) UpdateFactory(ctx context.Context, factoryID string, factory Factory) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE factories SET name = $2, code = $3, daily_approval_limit = $4, updated_at = now()
    WHERE id = $1
  `, factoryID, factory.Name, factory.Code, factory.DailyApprovalLimit)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const groupColumns = `id, factory_id::text, name, shift,
  COALESCE(primary_leader_id::text, ''), COALESCE(secondary_leader_id::text, ''), created_at`

func (s *Store) ListGroups(ctx context.Context, factoryID string) ([]Group, error) {
	query := "SELECT " + groupColumns + " FROM groups"
	var args []any
	if factoryID != "" {
		query += " WHERE factory_id = $1"
		args = append(args, factoryID)
	}
	query += " ORDER BY name"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.FactoryID, &g.Name, &g.Shift, &g.PrimaryLeaderID, &g.SecondaryLeaderID, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) GetGroup(ctx context.Context, groupID string) (Group, error) {
	var g Group
	err := s.DB.QueryRow(ctx, "SELECT "+groupColumns+" FROM groups WHERE id = $1", groupID).
		Scan(&g.ID, &g.FactoryID, &g.Name, &g.Shift, &g.PrimaryLeaderID, &g.SecondaryLeaderID, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, ErrNotFound
	}
	return g, err
}

func (s *Store) CreateGroup(ctx context.Context, group Group) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO groups (factory_id, name, shift, primary_leader_id, secondary_leader_id)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, group.FactoryID, group.Name, group.Shift, nullIfEmpty(group.PrimaryLeaderID), nullIfEmpty(group.SecondaryLeaderID)).Scan(&id)
	return id, err
}

func (s *Store) UpdateGroup(ctx context.Context, groupID string, group Group) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE groups
    SET name = $2, shift = $3, primary_leader_id = $4, secondary_leader_id = $5, updated_at = now()
    WHERE id = $1
  `, groupID, group.Name, group.Shift, nullIfEmpty(group.PrimaryLeaderID), nullIfEmpty(group.SecondaryLeaderID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListHolidays returns holidays in [from, to]; zero bounds are open.
func (s *Store) ListHolidays(ctx context.Context, from, to time.Time) ([]Holiday, error) {
	query := "SELECT id, date, name, COALESCE(factory_id::text, '') FROM holidays WHERE 1=1"
	var args []any
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	query += " ORDER BY date"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Holiday
	for rows.Next() {
		var h Holiday
		if err := rows.Scan(&h.ID, &h.Date, &h.Name, &h.FactoryID); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) CreateHoliday(ctx context.Context, holiday Holiday) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO holidays (date, name, factory_id)
    VALUES ($1,$2,$3)
    RETURNING id
  `, holiday.Date, holiday.Name, nullIfEmpty(holiday.FactoryID)).Scan(&id)
	return id, err
}

func (s *Store) DeleteHoliday(ctx context.Context, holidayID string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM holidays WHERE id = $1", holidayID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
