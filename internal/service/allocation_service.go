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
	appErrors "github.com/noah-isme/defense-allocation-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type scheduleCatalog interface {
	FindDefenseType(ctx context.Context, exec sqlx.ExtContext, id string) (*models.DefenseType, error)
	ListConsumedCaseStudies(ctx context.Context, exec sqlx.ExtContext, day time.Time) ([]string, error)
	LockScheduleDay(ctx context.Context, exec sqlx.ExtContext, day time.Time) error
}

type careerReader interface {
	GetStudentCareer(ctx context.Context, exec sqlx.ExtContext, studentID string) (string, error)
}

type allocationPlanner interface {
	Plan(ctx context.Context, exec sqlx.ExtContext, in PlanInput) (*Allocation, error)
}

type defenseCreator interface {
	Create(ctx context.Context, exec sqlx.ExtContext, in CreateDefenseInput) (*dto.DefenseSummary, error)
}

type allocationMetrics interface {
	RecordAllocation(outcome string, created map[string]int)
}

// AllocationService runs one allocation batch per call inside a single transaction.
type AllocationService struct {
	tx        txProvider
	catalog   scheduleCatalog
	students  careerReader
	planner   allocationPlanner
	defenses  defenseCreator
	notifier  notificationPublisher
	metrics   allocationMetrics
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAllocationService wires the orchestrator dependencies.
func NewAllocationService(
	tx txProvider,
	catalog scheduleCatalog,
	students careerReader,
	planner allocationPlanner,
	defenses defenseCreator,
	notifier notificationPublisher,
	metrics allocationMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
) *AllocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationService{
		tx:        tx,
		catalog:   catalog,
		students:  students,
		planner:   planner,
		defenses:  defenses,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// AllocateDefenses schedules one defense per student. The batch is all-or-nothing:
// the first failure rolls back every row and is returned as is.
func (s *AllocationService) AllocateDefenses(ctx context.Context, req dto.AllocateDefensesRequest) (result []dto.DefenseSummary, err error) {
	defer func() {
		s.recordOutcome(result, err)
	}()

	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation payload")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	summaries, err := s.allocate(ctx, tx, req)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit allocation transaction")
	}

	s.logger.Info("defenses allocated",
		zap.Int("count", len(summaries)),
		zap.String("defense_type_id", req.DefenseTypeID),
		zap.Time("scheduled_at", req.ScheduledAt),
	)
	if s.notifier != nil {
		for _, summary := range summaries {
			s.notifier.Publish(notification.Event{Purpose: notification.PurposeSchedule, Defense: summary})
		}
	}
	return summaries, nil
}

func (s *AllocationService) allocate(ctx context.Context, tx *sqlx.Tx, req dto.AllocateDefensesRequest) ([]dto.DefenseSummary, error) {
	if err := s.catalog.LockScheduleDay(ctx, tx, req.ScheduledAt); err != nil {
		return nil, appErrors.Internal(err, "failed to lock schedule day")
	}

	defenseType, err := s.catalog.FindDefenseType(ctx, tx, req.DefenseTypeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrDefenseTypeNotFound, fmt.Sprintf("defense type %s not found", req.DefenseTypeID))
		}
		return nil, appErrors.Internal(err, "failed to load defense type")
	}

	taken, err := s.catalog.ListConsumedCaseStudies(ctx, tx, req.ScheduledAt)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load scheduled case studies")
	}
	consumed := NewConsumedSet(taken...)

	policy := AllocationPolicy{
		AutoPickArea:         req.AutoPickArea,
		AutoPickCase:         req.AutoPickCase,
		RequestedAreaID:      req.AreaID,
		RequestedCaseStudyID: req.CaseStudyID,
	}

	summaries := make([]dto.DefenseSummary, 0, len(req.StudentIDs))
	for _, studentID := range req.StudentIDs {
		careerID, err := s.students.GetStudentCareer(ctx, tx, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrStudentNotFound, fmt.Sprintf("student %s not found", studentID))
			}
			return nil, appErrors.Internal(err, "failed to load student career")
		}

		allocation, err := s.planner.Plan(ctx, tx, PlanInput{
			StudentID: studentID,
			CareerID:  careerID,
			Policy:    policy,
			Consumed:  consumed,
		})
		if err != nil {
			return nil, err
		}

		summary, err := s.defenses.Create(ctx, tx, CreateDefenseInput{
			StudentID:   studentID,
			DefenseType: *defenseType,
			ScheduledAt: req.ScheduledAt,
			Area:        allocation.Area,
			CaseStudy:   allocation.CaseStudy,
		})
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

func (s *AllocationService) recordOutcome(result []dto.DefenseSummary, err error) {
	if s.metrics == nil {
		return
	}
	if err != nil {
		s.metrics.RecordAllocation(appErrors.FromError(err).Code, nil)
		return
	}
	created := make(map[string]int)
	for _, summary := range result {
		created[string(summary.Status)]++
	}
	s.metrics.RecordAllocation("ok", created)
}
