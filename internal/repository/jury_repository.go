package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/defense-allocation-api/internal/models"
)

// JuryRepository persists jury members and their defense assignments.
type JuryRepository struct {
	db *sqlx.DB
}

// NewJuryRepository constructs a JuryRepository.
func NewJuryRepository(db *sqlx.DB) *JuryRepository {
	return &JuryRepository{db: db}
}

func (r *JuryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListEligibleByArea returns active jury members specialised in the area.
// The order is stable so load balancing ties resolve the same way on every call.
func (r *JuryRepository) ListEligibleByArea(ctx context.Context, exec sqlx.ExtContext, areaID string) ([]models.JuryMember, error) {
	const query = `SELECT jm.id, jm.full_name, jm.email, jm.phone, jm.active
FROM jury_members jm
JOIN area_juries aj ON aj.jury_member_id = jm.id
WHERE aj.area_id = $1 AND jm.active = TRUE
ORDER BY jm.full_name ASC, jm.id ASC`
	var members []models.JuryMember
	if err := sqlx.SelectContext(ctx, r.exec(exec), &members, query, areaID); err != nil {
		return nil, fmt.Errorf("list eligible jurors: %w", err)
	}
	return members, nil
}

// CountAssignments returns the number of existing assignments per jury member id.
// Members without assignments are absent from the map.
func (r *JuryRepository) CountAssignments(ctx context.Context, exec sqlx.ExtContext, juryIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(juryIDs))
	if len(juryIDs) == 0 {
		return counts, nil
	}
	const query = `SELECT jury_member_id, COUNT(*) AS assignment_count
FROM jury_assignments
WHERE jury_member_id = ANY($1)
GROUP BY jury_member_id`
	var rows []struct {
		JuryMemberID string `db:"jury_member_id"`
		Count        int    `db:"assignment_count"`
	}
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query, pq.Array(juryIDs)); err != nil {
		return nil, fmt.Errorf("count jury assignments: %w", err)
	}
	for _, row := range rows {
		counts[row.JuryMemberID] = row.Count
	}
	return counts, nil
}

// CreateAssignment inserts a jury assignment row with its own timestamp.
func (r *JuryRepository) CreateAssignment(ctx context.Context, exec sqlx.ExtContext, assignment *models.JuryAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO jury_assignments (id, defense_id, jury_member_id, created_at)
VALUES (:id, :defense_id, :jury_member_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, assignment); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return fmt.Errorf("create jury assignment: %w", ErrUniqueViolation)
		}
		return fmt.Errorf("create jury assignment: %w", err)
	}
	return nil
}

// ListAssignedJurorIDs returns the jury members already sitting on a defense.
func (r *JuryRepository) ListAssignedJurorIDs(ctx context.Context, exec sqlx.ExtContext, defenseID string) ([]string, error) {
	const query = `SELECT jury_member_id FROM jury_assignments WHERE defense_id = $1 ORDER BY created_at ASC`
	var ids []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, defenseID); err != nil {
		return nil, fmt.Errorf("list assigned jurors: %w", err)
	}
	return ids, nil
}

// ListActiveWorkloads returns every active jury member with areas and assignment totals.
func (r *JuryRepository) ListActiveWorkloads(ctx context.Context) ([]models.JurorWorkload, error) {
	const membersQuery = `SELECT jm.id, jm.full_name, jm.email, jm.phone, jm.active,
       COALESCE(ja.assignment_count, 0) AS assignment_count
FROM jury_members jm
LEFT JOIN (
    SELECT jury_member_id, COUNT(*) AS assignment_count FROM jury_assignments GROUP BY jury_member_id
) ja ON ja.jury_member_id = jm.id
WHERE jm.active = TRUE
ORDER BY jm.full_name ASC, jm.id ASC`
	var members []models.JurorWorkload
	if err := r.db.SelectContext(ctx, &members, membersQuery); err != nil {
		return nil, fmt.Errorf("list juror workloads: %w", err)
	}
	if len(members) == 0 {
		return members, nil
	}

	const areasQuery = `SELECT aj.jury_member_id, a.id AS area_id, a.name AS area_name, a.active AS area_active
FROM area_juries aj
JOIN areas a ON a.id = aj.area_id
JOIN jury_members jm ON jm.id = aj.jury_member_id
WHERE jm.active = TRUE
ORDER BY a.name ASC`
	var rows []models.JurorAreaRow
	if err := r.db.SelectContext(ctx, &rows, areasQuery); err != nil {
		return nil, fmt.Errorf("list juror areas: %w", err)
	}

	index := make(map[string]int, len(members))
	for i := range members {
		members[i].Areas = []models.Area{}
		index[members[i].ID] = i
	}
	for _, row := range rows {
		if i, ok := index[row.JuryMemberID]; ok {
			members[i].Areas = append(members[i].Areas, models.Area{ID: row.AreaID, Name: row.AreaName, Active: row.AreaActive})
		}
	}
	return members, nil
}
