package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/observability"
)

type CatalogRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewCatalogRepo(pool *pgxpool.Pool, prom *observability.Prom) *CatalogRepo {
	return &CatalogRepo{pool: pool, prom: prom}
}

func (r *CatalogRepo) ListSubjects(ctx context.Context) ([]course.Option, error) {
	return r.listOptions(ctx, "catalog.list_subjects", `SELECT id, name FROM course_subjects ORDER BY name, id`)
}

func (r *CatalogRepo) ListLevels(ctx context.Context) ([]course.Option, error) {
	return r.listOptions(ctx, "catalog.list_levels", `SELECT id, name FROM course_levels ORDER BY name, id`)
}

func (r *CatalogRepo) listOptions(ctx context.Context, op, q string) ([]course.Option, error) {
	var out []course.Option

	err := r.prom.ObserveDB(op, func() error {
		rows, err := r.pool.Query(ctx, q)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToStructByPos[course.Option])
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []course.Option{}
	}
	return out, nil
}

func (r *CatalogRepo) ListCourses(ctx context.Context, f course.ListFilter) ([]course.Course, error) {
	var (
		conds []string
		args  []any
	)

	if f.SubjectID != nil {
		args = append(args, *f.SubjectID)
		conds = append(conds, fmt.Sprintf("subject_id = $%d", len(args)))
	}
	if f.LevelID != nil {
		args = append(args, *f.LevelID)
		conds = append(conds, fmt.Sprintf("level_id = $%d", len(args)))
	}

	q := `SELECT id, title, subject_id, level_id, thumbnail_url, created_at, updated_at FROM courses`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY title, id"

	out := []course.Course{}

	err := r.prom.ObserveDB("catalog.list_courses", func() error {
		rows, err := r.pool.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c course.Course
			if err := rows.Scan(&c.ID, &c.Title, &c.SubjectID, &c.LevelID, &c.ThumbnailURL, &c.CreatedAt, &c.UpdatedAt); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
