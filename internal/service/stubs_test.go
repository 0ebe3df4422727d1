package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/defense-allocation-api/internal/models"
	"github.com/noah-isme/defense-allocation-api/internal/notification"
	appErrors "github.com/noah-isme/defense-allocation-api/pkg/errors"
)

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (*txProviderMock, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// catalogStub mirrors the repository filters: only active areas and eligible case studies are listed.
type catalogStub struct {
	areas        []models.Area
	careerAreas  map[string][]string
	caseStudies  []models.CaseStudy
	defenseTypes map[string]models.DefenseType
	consumed     []string
	locked       []time.Time
	err          error
}

func (c *catalogStub) ListActiveAreasByCareer(ctx context.Context, exec sqlx.ExtContext, careerID string) ([]models.Area, error) {
	if c.err != nil {
		return nil, c.err
	}
	var out []models.Area
	for _, id := range c.careerAreas[careerID] {
		for _, area := range c.areas {
			if area.ID == id && area.Active {
				out = append(out, area)
			}
		}
	}
	return out, nil
}

func (c *catalogStub) ListActiveCaseStudiesByArea(ctx context.Context, exec sqlx.ExtContext, areaID string) ([]models.CaseStudy, error) {
	var out []models.CaseStudy
	for _, cs := range c.caseStudies {
		if cs.AreaID == areaID && cs.Eligible() {
			out = append(out, cs)
		}
	}
	return out, nil
}

func (c *catalogStub) FindCaseStudy(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CaseStudy, error) {
	for _, cs := range c.caseStudies {
		if cs.ID == id {
			found := cs
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (c *catalogStub) FindDefenseType(ctx context.Context, exec sqlx.ExtContext, id string) (*models.DefenseType, error) {
	dt, ok := c.defenseTypes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &dt, nil
}

func (c *catalogStub) ListConsumedCaseStudies(ctx context.Context, exec sqlx.ExtContext, day time.Time) ([]string, error) {
	return c.consumed, nil
}

func (c *catalogStub) LockScheduleDay(ctx context.Context, exec sqlx.ExtContext, day time.Time) error {
	c.locked = append(c.locked, day)
	return nil
}

type careerStub map[string]string

func (s careerStub) GetStudentCareer(ctx context.Context, exec sqlx.ExtContext, studentID string) (string, error) {
	career, ok := s[studentID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return career, nil
}

// defenseStoreStub is an in-memory defense table.
type defenseStoreStub struct {
	mu        sync.Mutex
	rows      map[string]*models.DefenseDetail
	seq       int
	createErr error
}

func newDefenseStoreStub() *defenseStoreStub {
	return &defenseStoreStub{rows: map[string]*models.DefenseDetail{}}
}

func (s *defenseStoreStub) ExistsForSlot(ctx context.Context, exec sqlx.ExtContext, studentID, defenseTypeID string, scheduledAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.rows {
		if d.StudentID == studentID && d.DefenseTypeID == defenseTypeID && d.ScheduledAt.Equal(scheduledAt) {
			return true, nil
		}
	}
	return false, nil
}

func (s *defenseStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, defense *models.Defense) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	defense.ID = fmt.Sprintf("def-%d", s.seq)
	defense.CreatedAt = time.Now().UTC()
	defense.UpdatedAt = defense.CreatedAt
	s.rows[defense.ID] = &models.DefenseDetail{Defense: *defense, StudentName: "Student " + defense.StudentID}
	return nil
}

func (s *defenseStoreStub) put(detail models.DefenseDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[detail.ID] = &detail
}

func (s *defenseStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.DefenseDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *d
	return &copied, nil
}

func (s *defenseStoreStub) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.DefenseDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DefenseDetail
	for _, id := range ids {
		if d, ok := s.rows[id]; ok {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *defenseStoreStub) UpdateGrade(ctx context.Context, exec sqlx.ExtContext, id string, grade float64, status models.DefenseStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.rows[id]
	if !ok {
		return sql.ErrNoRows
	}
	d.Grade = &grade
	d.Status = status
	return nil
}

func (s *defenseStoreStub) UpdateRoom(ctx context.Context, exec sqlx.ExtContext, id, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.rows[id]
	if !ok {
		return sql.ErrNoRows
	}
	d.Room = &room
	return nil
}

func (s *defenseStoreStub) List(ctx context.Context, filter models.DefenseFilter) ([]models.DefenseDetail, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.DefenseDetail
	for _, d := range s.rows {
		if filter.StudentID != "" && d.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		all = append(all, *d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	page, size := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	start := (page - 1) * size
	if start >= len(all) {
		return nil, len(all), nil
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

type publisherStub struct {
	mu     sync.Mutex
	events []notification.Event
}

func (p *publisherStub) Publish(event notification.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *publisherStub) published() []notification.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notification.Event(nil), p.events...)
}

type metricsStub struct {
	outcomes    []string
	created     map[string]int
	assignments int
}

func (m *metricsStub) RecordAllocation(outcome string, created map[string]int) {
	m.outcomes = append(m.outcomes, outcome)
	if m.created == nil {
		m.created = map[string]int{}
	}
	for k, v := range created {
		m.created[k] += v
	}
}

func (m *metricsStub) RecordJuryAssignments(n int) {
	m.assignments += n
}

// firstRandomizer always picks index 0 and keeps shuffles in place.
type firstRandomizer struct{}

func (firstRandomizer) Intn(int) int                 { return 0 }
func (firstRandomizer) Shuffle(int, func(i, j int)) {}

func strPtr(s string) *string { return &s }

func requireAppError(t *testing.T, err error, want *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, want)
	require.Equal(t, want.Status, appErrors.FromError(err).Status)
}
