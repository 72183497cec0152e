package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocoder89/coursehub/internal/domain/company"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/geocoder89/coursehub/internal/utils"
)

type CompaniesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewCompaniesRepo(pool *pgxpool.Pool, prom *observability.Prom) *CompaniesRepo {
	return &CompaniesRepo{pool: pool, prom: prom}
}

func (r *CompaniesRepo) GetByID(ctx context.Context, id string) (company.Company, error) {
	if !utils.IsUUID(id) {
		return company.Company{}, company.ErrNotFound
	}

	var c company.Company
	err := r.prom.ObserveDB("companies.get_by_id", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT id, name, logo_url, created_at, updated_at
			FROM companies
			WHERE id = $1
		`, id).Scan(&c.ID, &c.Name, &c.LogoURL, &c.CreatedAt, &c.UpdatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return company.Company{}, company.ErrNotFound
		}
		return company.Company{}, err
	}
	return c, nil
}

// ListEmployees returns up to limit members of the company in join order,
// each with enrollment totals. after is the keyset position of the previous
// page, nil for the first page.
func (r *CompaniesRepo) ListEmployees(ctx context.Context, companyID string, limit int, after *utils.Cursor) (items []company.Employee, nextCursor *string, err error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	args := []any{companyID, limit + 1}
	keyset := ""
	if after != nil {
		args = append(args, after.At, after.ID)
		keyset = ` AND (u.created_at, u.id) > ($3, $4)`
	}

	err = r.prom.ObserveDB("companies.list_employees", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT u.id, u.first_name, u.last_name, u.email, u.password_hash, u.roles,
			       u.company_id, u.status, u.created_at, u.updated_at,
			       COUNT(e.course_id),
			       COUNT(e.completed_at),
			       COALESCE(SUM(e.progress_percent), 0)
			FROM users u
			LEFT JOIN enrollments e ON e.user_id = u.id
			WHERE u.company_id = $1`+keyset+`
			GROUP BY u.id
			ORDER BY u.created_at, u.id
			LIMIT $2
		`, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				e company.Employee
				s company.EnrollmentStats
			)
			if err := rows.Scan(
				&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.PasswordHash, &e.Roles,
				&e.CompanyID, &e.Status, &e.CreatedAt, &e.UpdatedAt,
				&s.Enrolled, &s.Completed, &s.ProgressSum,
			); err != nil {
				return err
			}
			items = append(items, company.NewEmployee(e.User, s))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		cur, encErr := utils.EncodeCursor(last.CreatedAt, last.ID)
		if encErr != nil {
			return nil, nil, encErr
		}
		nextCursor = &cur
	}
	if items == nil {
		items = []company.Employee{}
	}
	return items, nextCursor, nil
}
