package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/defense-allocation-api/internal/models"
)

// ErrUniqueViolation is returned when an insert trips a unique index.
var ErrUniqueViolation = errors.New("unique constraint violated")

const uniqueViolationCode = "23505"

const defenseDetailSelect = `SELECT d.id, d.student_id, d.defense_type_id, d.scheduled_at, d.area_id, d.case_study_id,
       d.room, d.grade, d.status, d.created_at, d.updated_at,
       s.full_name AS student_name, dt.name AS defense_type_name,
       a.name AS area_name, cs.title AS case_study_title, cs.document_url AS case_study_url
FROM defenses d
JOIN students s ON s.id = d.student_id
JOIN defense_types dt ON dt.id = d.defense_type_id
LEFT JOIN areas a ON a.id = d.area_id
LEFT JOIN case_studies cs ON cs.id = d.case_study_id`

// DefenseRepository persists defenses.
type DefenseRepository struct {
	db *sqlx.DB
}

// NewDefenseRepository constructs a DefenseRepository.
func NewDefenseRepository(db *sqlx.DB) *DefenseRepository {
	return &DefenseRepository{db: db}
}

func (r *DefenseRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ExistsForSlot checks the (student, defense type, scheduled_at) uniqueness triple.
func (r *DefenseRepository) ExistsForSlot(ctx context.Context, exec sqlx.ExtContext, studentID, defenseTypeID string, scheduledAt time.Time) (bool, error) {
	const query = `SELECT 1 FROM defenses WHERE student_id = $1 AND defense_type_id = $2 AND scheduled_at = $3 LIMIT 1`
	var exists int
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, studentID, defenseTypeID, scheduledAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check defense slot: %w", err)
	}
	return true, nil
}

// Create inserts a new defense, filling id and timestamps when empty.
func (r *DefenseRepository) Create(ctx context.Context, exec sqlx.ExtContext, defense *models.Defense) error {
	if defense.ID == "" {
		defense.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if defense.CreatedAt.IsZero() {
		defense.CreatedAt = now
	}
	defense.UpdatedAt = defense.CreatedAt
	const query = `INSERT INTO defenses (id, student_id, defense_type_id, scheduled_at, area_id, case_study_id, room, grade, status, created_at, updated_at)
VALUES (:id, :student_id, :defense_type_id, :scheduled_at, :area_id, :case_study_id, :room, :grade, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, defense); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return fmt.Errorf("create defense: %w", ErrUniqueViolation)
		}
		return fmt.Errorf("create defense: %w", err)
	}
	return nil
}

// FindByID loads a defense with its display fields.
func (r *DefenseRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.DefenseDetail, error) {
	query := defenseDetailSelect + ` WHERE d.id = $1`
	var detail models.DefenseDetail
	if err := sqlx.GetContext(ctx, r.exec(exec), &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByIDs loads every defense of the id list. Missing ids are simply absent from the result.
func (r *DefenseRepository) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.DefenseDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := defenseDetailSelect + ` WHERE d.id = ANY($1)`
	var details []models.DefenseDetail
	if err := sqlx.SelectContext(ctx, r.exec(exec), &details, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find defenses: %w", err)
	}
	return details, nil
}

// UpdateGrade stores the grade and its derived status.
func (r *DefenseRepository) UpdateGrade(ctx context.Context, exec sqlx.ExtContext, id string, grade float64, status models.DefenseStatus) error {
	const query = `UPDATE defenses SET grade = $1, status = $2, updated_at = $3 WHERE id = $4`
	return r.update(ctx, exec, "update defense grade", query, grade, status, time.Now().UTC(), id)
}

// UpdateRoom stores the room label.
func (r *DefenseRepository) UpdateRoom(ctx context.Context, exec sqlx.ExtContext, id, room string) error {
	const query = `UPDATE defenses SET room = $1, updated_at = $2 WHERE id = $3`
	return r.update(ctx, exec, "update defense room", query, room, time.Now().UTC(), id)
}

func (r *DefenseRepository) update(ctx context.Context, exec sqlx.ExtContext, op, query string, args ...interface{}) error {
	result, err := r.exec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns defenses matching the filter along with the total count.
func (r *DefenseRepository) List(ctx context.Context, filter models.DefenseFilter) ([]models.DefenseDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("d.student_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("d.status = $%d", len(args)))
	}
	if filter.Date != nil {
		start := truncateDay(*filter.Date)
		args = append(args, start, start.AddDate(0, 0, 1))
		conditions = append(conditions, fmt.Sprintf("d.scheduled_at >= $%d AND d.scheduled_at < $%d", len(args)-1, len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM defenses d" + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count defenses: %w", err)
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	args = append(args, size, (page-1)*size)
	query := defenseDetailSelect + where + fmt.Sprintf(" ORDER BY d.scheduled_at ASC, s.full_name ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var details []models.DefenseDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list defenses: %w", err)
	}
	return details, total, nil
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
