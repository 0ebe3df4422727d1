package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/defense-allocation-api/internal/models"
)

// CatalogRepository reads areas, case studies and defense types.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs a CatalogRepository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListActiveAreasByCareer returns the active areas linked to a career.
func (r *CatalogRepository) ListActiveAreasByCareer(ctx context.Context, exec sqlx.ExtContext, careerID string) ([]models.Area, error) {
	const query = `SELECT a.id, a.name, a.active
FROM areas a
JOIN career_areas ca ON ca.area_id = a.id
WHERE ca.career_id = $1 AND a.active = TRUE
ORDER BY a.name ASC`
	var areas []models.Area
	if err := sqlx.SelectContext(ctx, r.exec(exec), &areas, query, careerID); err != nil {
		return nil, fmt.Errorf("list areas by career: %w", err)
	}
	return areas, nil
}

// ListActiveCaseStudiesByArea returns case studies of an area that are active and not soft-deleted.
func (r *CatalogRepository) ListActiveCaseStudiesByArea(ctx context.Context, exec sqlx.ExtContext, areaID string) ([]models.CaseStudy, error) {
	const query = `SELECT id, area_id, title, document_url, active, deleted, deleted_at
FROM case_studies
WHERE area_id = $1 AND active = TRUE AND deleted = FALSE
ORDER BY title ASC`
	var cases []models.CaseStudy
	if err := sqlx.SelectContext(ctx, r.exec(exec), &cases, query, areaID); err != nil {
		return nil, fmt.Errorf("list case studies by area: %w", err)
	}
	return cases, nil
}

// FindCaseStudy loads a case study regardless of its state.
func (r *CatalogRepository) FindCaseStudy(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CaseStudy, error) {
	const query = `SELECT id, area_id, title, document_url, active, deleted, deleted_at FROM case_studies WHERE id = $1`
	var cs models.CaseStudy
	if err := sqlx.GetContext(ctx, r.exec(exec), &cs, query, id); err != nil {
		return nil, err
	}
	return &cs, nil
}

// FindDefenseType loads a defense type lookup row.
func (r *CatalogRepository) FindDefenseType(ctx context.Context, exec sqlx.ExtContext, id string) (*models.DefenseType, error) {
	const query = `SELECT id, name FROM defense_types WHERE id = $1`
	var dt models.DefenseType
	if err := sqlx.GetContext(ctx, r.exec(exec), &dt, query, id); err != nil {
		return nil, err
	}
	return &dt, nil
}

// ListConsumedCaseStudies returns case studies already taken by defenses on the given day.
func (r *CatalogRepository) ListConsumedCaseStudies(ctx context.Context, exec sqlx.ExtContext, day time.Time) ([]string, error) {
	const query = `SELECT DISTINCT case_study_id FROM defenses
WHERE case_study_id IS NOT NULL AND scheduled_at >= $1 AND scheduled_at < $2`
	start := truncateDay(day)
	var ids []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, start, start.AddDate(0, 0, 1)); err != nil {
		return nil, fmt.Errorf("list consumed case studies: %w", err)
	}
	return ids, nil
}

// LockScheduleDay takes a transaction scoped advisory lock on a calendar day.
// Concurrent allocation batches for the same day serialise on it.
func (r *CatalogRepository) LockScheduleDay(ctx context.Context, exec sqlx.ExtContext, day time.Time) error {
	const query = `SELECT pg_advisory_xact_lock(hashtext($1))`
	key := "defense-day:" + truncateDay(day).Format("2006-01-02")
	if _, err := r.exec(exec).ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("lock schedule day: %w", err)
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
