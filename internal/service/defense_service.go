package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/defense-allocation-api/internal/dto"
	"github.com/noah-isme/defense-allocation-api/internal/models"
	"github.com/noah-isme/defense-allocation-api/internal/notification"
	"github.com/noah-isme/defense-allocation-api/internal/repository"
	appErrors "github.com/noah-isme/defense-allocation-api/pkg/errors"
)

type defenseStore interface {
	ExistsForSlot(ctx context.Context, exec sqlx.ExtContext, studentID, defenseTypeID string, scheduledAt time.Time) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, defense *models.Defense) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.DefenseDetail, error)
	UpdateGrade(ctx context.Context, exec sqlx.ExtContext, id string, grade float64, status models.DefenseStatus) error
	UpdateRoom(ctx context.Context, exec sqlx.ExtContext, id, room string) error
	List(ctx context.Context, filter models.DefenseFilter) ([]models.DefenseDetail, int, error)
}

type notificationPublisher interface {
	Publish(event notification.Event)
}

// CreateDefenseInput is the planner outcome to persist for one student.
type CreateDefenseInput struct {
	StudentID   string
	DefenseType models.DefenseType
	ScheduledAt time.Time
	Area        *models.Area
	CaseStudy   *models.CaseStudy
}

// DefenseService owns the defense lifecycle: creation, grading and room assignment.
type DefenseService struct {
	defenses  defenseStore
	notifier  notificationPublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDefenseService constructs a DefenseService.
func NewDefenseService(defenses defenseStore, notifier notificationPublisher, validate *validator.Validate, logger *zap.Logger) *DefenseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefenseService{
		defenses:  defenses,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
	}
}

// Create persists one defense inside the caller's transaction.
// Notifications are not sent here; the caller publishes them after commit.
func (s *DefenseService) Create(ctx context.Context, exec sqlx.ExtContext, in CreateDefenseInput) (*dto.DefenseSummary, error) {
	exists, err := s.defenses.ExistsForSlot(ctx, exec, in.StudentID, in.DefenseType.ID, in.ScheduledAt)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check defense uniqueness")
	}
	if exists {
		return nil, duplicateDefense(in.StudentID)
	}

	defense := &models.Defense{
		StudentID:     in.StudentID,
		DefenseTypeID: in.DefenseType.ID,
		ScheduledAt:   in.ScheduledAt,
	}
	if in.Area != nil {
		defense.AreaID = &in.Area.ID
	}
	if in.CaseStudy != nil {
		defense.CaseStudyID = &in.CaseStudy.ID
	}
	defense.Status = models.StatusForAllocation(defense.AreaID, defense.CaseStudyID)

	if err := s.defenses.Create(ctx, exec, defense); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, duplicateDefense(in.StudentID)
		}
		return nil, appErrors.Internal(err, "failed to create defense")
	}

	summary := dto.DefenseSummary{
		ID:              defense.ID,
		StudentID:       defense.StudentID,
		DefenseTypeID:   defense.DefenseTypeID,
		DefenseTypeName: in.DefenseType.Name,
		ScheduledAt:     defense.ScheduledAt,
		AreaID:          defense.AreaID,
		CaseStudyID:     defense.CaseStudyID,
		Status:          defense.Status,
		UpdatedAt:       defense.UpdatedAt,
	}
	if in.Area != nil {
		summary.AreaName = &in.Area.Name
	}
	if in.CaseStudy != nil {
		summary.CaseStudyTitle = &in.CaseStudy.Title
		summary.CaseStudyURL = in.CaseStudy.DocumentURL
	}
	return &summary, nil
}

// Get returns one defense.
func (s *DefenseService) Get(ctx context.Context, id string) (*dto.DefenseSummary, error) {
	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := dto.NewDefenseSummary(*detail)
	return &summary, nil
}

// List returns defenses matching the filter.
func (s *DefenseService) List(ctx context.Context, filter models.DefenseFilter) ([]dto.DefenseSummary, *models.Pagination, error) {
	details, total, err := s.defenses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list defenses")
	}
	items := make([]dto.DefenseSummary, 0, len(details))
	for _, d := range details {
		items = append(items, dto.NewDefenseSummary(d))
	}
	page, size := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// RecordGrade stores the grade, derives APROBADO/REPROBADO and notifies the student.
// Notification failures never fail the call.
func (s *DefenseService) RecordGrade(ctx context.Context, id string, req dto.RecordGradeRequest) (*dto.DefenseSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "grade must be between 0 and 100")
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	grade := models.RoundGrade(*req.Grade)
	status := models.StatusForGrade(grade)
	if err := s.defenses.UpdateGrade(ctx, nil, id, grade, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrDefenseNotFound
		}
		return nil, appErrors.Internal(err, "failed to record grade")
	}

	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := dto.NewDefenseSummary(*detail)
	s.logger.Info("defense graded", zap.String("defense_id", id), zap.Float64("grade", grade), zap.String("status", string(status)))
	if s.notifier != nil {
		s.notifier.Publish(notification.Event{Purpose: notification.PurposeGrade, Defense: summary})
	}
	return &summary, nil
}

// RecordRoom sets the room of a defense. It is idempotent and does not notify.
func (s *DefenseService) RecordRoom(ctx context.Context, id string, req dto.RecordRoomRequest) (*dto.DefenseSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	if err := s.defenses.UpdateRoom(ctx, nil, id, req.Room); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrDefenseNotFound
		}
		return nil, appErrors.Internal(err, "failed to record room")
	}
	return s.Get(ctx, id)
}

func (s *DefenseService) load(ctx context.Context, id string) (*models.DefenseDetail, error) {
	detail, err := s.defenses.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrDefenseNotFound, fmt.Sprintf("defense %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to load defense")
	}
	return detail, nil
}

func duplicateDefense(studentID string) error {
	return appErrors.Clone(appErrors.ErrDuplicateDefense, fmt.Sprintf("student %s already has a defense of this type at this date", studentID))
}
