package requests

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"hrsched/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func byID(query, id string) (string, []any) {
	if id == "" {
		return query, nil
	}
	return query + " WHERE id = $1", []any{id}
}

func (s *Store) RequestRows(ctx context.Context, id string) ([]RequestRow, error) {
	query, args := byID(`
    SELECT id, type, status, employee_id, start_date, end_date, reason,
      COALESCE(substitute_id::text, ''), COALESCE(decided_by::text, ''), decided_at, decision_note,
      created_at, updated_at
    FROM requests`, id)
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RequestRow
	for rows.Next() {
		var r RequestRow
		if err := rows.Scan(&r.ID, &r.Type, &r.Status, &r.EmployeeID, &r.StartDate, &r.EndDate, &r.Reason,
			&r.SubstituteID, &r.DecidedBy, &r.DecidedAt, &r.DecisionNote, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) TimeOffRows(ctx context.Context, id string) ([]TimeOffRow, error) {
	query, args := byID("SELECT id, employee_id, start_date, end_date, reason, status, created_at FROM time_off", id)
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimeOffRow
	for rows.Next() {
		var r TimeOffRow
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.StartDate, &r.EndDate, &r.Reason, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) EarlyDepartureRows(ctx context.Context, id string) ([]EarlyDepartureRow, error) {
	query, args := byID("SELECT id, employee_id, date, departure_time, reason, status, created_at FROM early_departures", id)
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EarlyDepartureRow
	for rows.Next() {
		var r EarlyDepartureRow
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.Date, &r.DepartureTime, &r.Reason, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) LatenessRows(ctx context.Context, id string) ([]LatenessRow, error) {
	query, args := byID("SELECT id, employee_id, date, arrival_time, reason, status, created_at FROM lateness", id)
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LatenessRow
	for rows.Next() {
		var r LatenessRow
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.Date, &r.ArrivalTime, &r.Reason, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const employeeRefQuery = `
  SELECT e.id, COALESCE(e.user_id::text, ''), e.full_name, e.email, e.factory_id::text,
    COALESCE(e.group_id::text, ''), COALESCE(g.shift, ''), e.active
  FROM employees e
  LEFT JOIN groups g ON g.id = e.group_id`

func scanEmployeeRef(row pgx.Row) (EmployeeRef, error) {
	var e EmployeeRef
	err := row.Scan(&e.ID, &e.UserID, &e.Name, &e.Email, &e.FactoryID, &e.GroupID, &e.Shift, &e.Active)
	return e, err
}

func (s *Store) EmployeeRefs(ctx context.Context) ([]EmployeeRef, error) {
	rows, err := s.DB.Query(ctx, employeeRefQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EmployeeRef
	for rows.Next() {
		e, err := scanEmployeeRef(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Employee(ctx context.Context, employeeID string) (EmployeeRef, error) {
	e, err := scanEmployeeRef(s.DB.QueryRow(ctx, employeeRefQuery+" WHERE e.id = $1", employeeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return EmployeeRef{}, ErrNotFound
	}
	return e, err
}

func (s *Store) GroupLeaders(ctx context.Context, groupID string) (GroupLeaders, error) {
	var out GroupLeaders
	err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(g.primary_leader_id::text, ''), COALESCE(g.secondary_leader_id::text, ''),
      COALESCE(p.user_id::text, ''), COALESCE(s.user_id::text, '')
    FROM groups g
    LEFT JOIN employees p ON p.id = g.primary_leader_id
    LEFT JOIN employees s ON s.id = g.secondary_leader_id
    WHERE g.id = $1
  `, groupID).Scan(&out.PrimaryID, &out.SecondaryID, &out.PrimaryUserID, &out.SecondaryUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return GroupLeaders{}, nil
	}
	return out, err
}

func (s *Store) LedGroupIDs(ctx context.Context, employeeID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id FROM groups WHERE primary_leader_id = $1 OR secondary_leader_id = $1", employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) FactoryDailyLimit(ctx context.Context, factoryID string) (*int, error) {
	var limit *int
	err := s.DB.QueryRow(ctx, "SELECT daily_approval_limit FROM factories WHERE id = $1", factoryID).Scan(&limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return limit, err
}

// Insert writes the requests row and its detail row under the same id.
func (s *Store) Insert(ctx context.Context, req Request) error {
	return pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
      INSERT INTO requests (id, type, status, employee_id, start_date, end_date, reason, substitute_id, created_at, updated_at)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
    `, req.ID, req.Type, req.Status, req.EmployeeID, req.StartDate, req.EndDate, req.Reason, nullIfEmpty(req.SubstituteID), req.CreatedAt); err != nil {
			return err
		}
		return insertDetail(ctx, tx, req)
	})
}

func insertDetail(ctx context.Context, tx pgx.Tx, req Request) error {
	var err error
	switch req.Type {
	case TypeTimeOff, TypeAbsence:
		_, err = tx.Exec(ctx, `
      INSERT INTO time_off (id, employee_id, start_date, end_date, reason, status, created_at)
      VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, req.ID, req.EmployeeID, req.StartDate, req.EndDate, req.Reason, req.Status, req.CreatedAt)
	case TypeEarlyDeparture:
		_, err = tx.Exec(ctx, `
      INSERT INTO early_departures (id, employee_id, date, departure_time, reason, status, created_at)
      VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, req.ID, req.EmployeeID, req.StartDate, req.Time, req.Reason, req.Status, req.CreatedAt)
	case TypeLateness:
		_, err = tx.Exec(ctx, `
      INSERT INTO lateness (id, employee_id, date, arrival_time, reason, status, created_at)
      VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, req.ID, req.EmployeeID, req.StartDate, req.Time, req.Reason, req.Status, req.CreatedAt)
	}
	return err
}

// Update rewrites the editable fields of a pending request in every table holding it.
func (s *Store) Update(ctx context.Context, req Request) error {
	return pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		var affected int64
		tag, err := tx.Exec(ctx, `
      UPDATE requests SET start_date = $2, end_date = $3, reason = $4, substitute_id = $5, updated_at = $6
      WHERE id = $1 AND status = 'pending'
    `, req.ID, req.StartDate, req.EndDate, req.Reason, nullIfEmpty(req.SubstituteID), req.UpdatedAt)
		if err != nil {
			return err
		}
		affected += tag.RowsAffected()

		switch req.Type {
		case TypeTimeOff, TypeAbsence:
			tag, err = tx.Exec(ctx, `
        UPDATE time_off SET start_date = $2, end_date = $3, reason = $4
        WHERE id = $1 AND status = 'pending'
      `, req.ID, req.StartDate, req.EndDate, req.Reason)
		case TypeEarlyDeparture:
			tag, err = tx.Exec(ctx, `
        UPDATE early_departures SET date = $2, departure_time = $3, reason = $4
        WHERE id = $1 AND status = 'pending'
      `, req.ID, req.StartDate, req.Time, req.Reason)
		case TypeLateness:
			tag, err = tx.Exec(ctx, `
        UPDATE lateness SET date = $2, arrival_time = $3, reason = $4
        WHERE id = $1 AND status = 'pending'
      `, req.ID, req.StartDate, req.Time, req.Reason)
		}
		if err != nil {
			return err
		}
		affected += tag.RowsAffected()
		if affected == 0 {
			return ErrInvalidState
		}
		return nil
	})
}

// Decide moves a pending request to status in every table holding its id.
func (s *Store) Decide(ctx context.Context, id, status, decidedBy, note string, at time.Time) error {
	return pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
      UPDATE requests SET status = $2, decided_by = $3, decided_at = $4, decision_note = $5, updated_at = $4
      WHERE id = $1 AND status = 'pending'
    `, id, status, nullIfEmpty(decidedBy), at, note)
		if err != nil {
			return err
		}
		affected := tag.RowsAffected()
		for _, table := range []string{"time_off", "early_departures", "lateness"} {
			tag, err := tx.Exec(ctx, "UPDATE "+table+" SET status = $2 WHERE id = $1 AND status = 'pending'", id, status)
			if err != nil {
				return err
			}
			affected += tag.RowsAffected()
		}
		if affected == 0 {
			return ErrInvalidState
		}
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		var affected int64
		for _, table := range []string{"time_off", "early_departures", "lateness", "requests"} {
			tag, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
			if err != nil {
				return err
			}
			affected += tag.RowsAffected()
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
