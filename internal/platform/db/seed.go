package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hrsched/internal/domain/auth"
	"hrsched/internal/platform/config"
)

func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensureUser(ctx, pool, cfg.SeedAdminEmail, cfg.SeedAdminPassword, auth.RoleAdmin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if strings.TrimSpace(cfg.SeedFixturesFile) == "" {
		return nil
	}
	fixtures, err := LoadFixtures(cfg.SeedFixturesFile)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		return ApplyFixtures(ctx, tx, fixtures)
	})
}

func ensureUser(ctx context.Context, q userQuerier, email, password, role string) error {
	_, err := ensureUserID(ctx, q, email, password, role)
	return err
}

// ApplyFixtures upserts factories, groups, holidays and employees. Re-running is a no-op.
func ApplyFixtures(ctx context.Context, tx pgx.Tx, fixtures Fixtures) error {
	for _, h := range fixtures.Holidays {
		if err := upsertHoliday(ctx, tx, "", h); err != nil {
			return err
		}
	}
	for _, factory := range fixtures.Factories {
		var factoryID string
		if err := tx.QueryRow(ctx, `
      INSERT INTO factories (name, code, daily_approval_limit)
      VALUES ($1,$2,$3)
      ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, daily_approval_limit = EXCLUDED.daily_approval_limit, updated_at = now()
      RETURNING id
    `, factory.Name, factory.Code, factory.DailyApprovalLimit).Scan(&factoryID); err != nil {
			return fmt.Errorf("factory %s: %w", factory.Code, err)
		}

		groupIDs := map[string]string{}
		for _, g := range factory.Groups {
			var groupID string
			if err := tx.QueryRow(ctx, `
        INSERT INTO groups (factory_id, name, shift)
        VALUES ($1,$2,$3)
        ON CONFLICT (factory_id, name) DO UPDATE SET shift = EXCLUDED.shift, updated_at = now()
        RETURNING id
      `, factoryID, g.Name, g.Shift).Scan(&groupID); err != nil {
				return fmt.Errorf("group %s/%s: %w", factory.Code, g.Name, err)
			}
			groupIDs[g.Name] = groupID
		}

		for _, h := range factory.Holidays {
			if err := upsertHoliday(ctx, tx, factoryID, h); err != nil {
				return err
			}
		}

		for _, e := range factory.Employees {
			if err := upsertEmployee(ctx, tx, factoryID, groupIDs, e); err != nil {
				return fmt.Errorf("employee %s: %w", e.Email, err)
			}
		}
	}
	return nil
}

func upsertHoliday(ctx context.Context, tx pgx.Tx, factoryID string, h HolidayFixture) error {
	date, err := h.parsedDate()
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
    INSERT INTO holidays (date, name, factory_id)
    VALUES ($1,$2,$3)
    ON CONFLICT DO NOTHING
  `, date, h.Name, nullIfEmpty(factoryID))
	return err
}

func upsertEmployee(ctx context.Context, tx pgx.Tx, factoryID string, groupIDs map[string]string, e EmployeeFixture) error {
	role := e.Role
	if role == "" {
		role = auth.RoleEmployee
	}
	if !auth.ValidRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}
	userID := ""
	if strings.TrimSpace(e.Password) != "" {
		id, err := ensureUserID(ctx, tx, e.Email, e.Password, role)
		if err != nil {
			return err
		}
		userID = id
	}
	groupID := groupIDs[e.Group]

	var employeeID string
	if err := tx.QueryRow(ctx, `
    INSERT INTO employees (user_id, factory_id, group_id, full_name, email, phone, role)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (email) DO UPDATE SET
      factory_id = EXCLUDED.factory_id,
      group_id = EXCLUDED.group_id,
      full_name = EXCLUDED.full_name,
      role = EXCLUDED.role,
      user_id = COALESCE(employees.user_id, EXCLUDED.user_id),
      updated_at = now()
    RETURNING id
  `, nullIfEmpty(userID), factoryID, nullIfEmpty(groupID), e.Name, strings.ToLower(e.Email), e.Phone, role).Scan(&employeeID); err != nil {
		return err
	}

	switch e.Leads {
	case "primary":
		_, err := tx.Exec(ctx, "UPDATE groups SET primary_leader_id = $1, updated_at = now() WHERE id = $2", employeeID, groupID)
		return err
	case "secondary":
		_, err := tx.Exec(ctx, "UPDATE groups SET secondary_leader_id = $1, updated_at = now() WHERE id = $2", employeeID, groupID)
		return err
	}
	return nil
}

type userQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func ensureUserID(ctx context.Context, q userQuerier, email, password, role string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return "", nil
	}

	var id string
	err := q.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", email).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	if err := q.QueryRow(ctx, "INSERT INTO users (email, password_hash, role) VALUES ($1, $2, $3) RETURNING id", email, hash, role).Scan(&id); err != nil {
		return "", err
	}
	slog.Info("seeded user", "email", email, "role", role)
	return id, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
