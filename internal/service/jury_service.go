package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/defense-allocation-api/internal/dto"
	"github.com/noah-isme/defense-allocation-api/internal/models"
	"github.com/noah-isme/defense-allocation-api/internal/repository"
	appErrors "github.com/noah-isme/defense-allocation-api/pkg/errors"
)

const (
	// minJurors is the smallest jury allowed for a defense.
	minJurors = 2
	// suggestionThreshold is the workload up to which a juror is suggested.
	suggestionThreshold = 2

	suggestionsCacheKey = "jury:suggestions"
)

type juryStore interface {
	ListEligibleByArea(ctx context.Context, exec sqlx.ExtContext, areaID string) ([]models.JuryMember, error)
	CountAssignments(ctx context.Context, exec sqlx.ExtContext, juryIDs []string) (map[string]int, error)
	CreateAssignment(ctx context.Context, exec sqlx.ExtContext, assignment *models.JuryAssignment) error
	ListAssignedJurorIDs(ctx context.Context, exec sqlx.ExtContext, defenseID string) ([]string, error)
	ListActiveWorkloads(ctx context.Context) ([]models.JurorWorkload, error)
}

type defenseBatchReader interface {
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.DefenseDetail, error)
}

type suggestionCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type juryMetrics interface {
	RecordJuryAssignments(n int)
}

// JuryServiceConfig tunes the suggestion cache.
type JuryServiceConfig struct {
	SuggestionCacheTTL time.Duration
}

// JuryService assigns jurors to defenses and reports juror workload.
type JuryService struct {
	tx       txProvider
	defenses defenseBatchReader
	juries   juryStore
	cache    suggestionCache
	metrics  juryMetrics
	logger   *zap.Logger
	cfg      JuryServiceConfig
}

// NewJuryService constructs a JuryService. cache and metrics are optional.
func NewJuryService(tx txProvider, defenses defenseBatchReader, juries juryStore, cache suggestionCache, metrics juryMetrics, logger *zap.Logger, cfg JuryServiceConfig) *JuryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SuggestionCacheTTL <= 0 {
		cfg.SuggestionCacheTTL = time.Minute
	}
	return &JuryService{
		tx:       tx,
		defenses: defenses,
		juries:   juries,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// AssignJury creates jury assignments for every defense of the request in one transaction.
func (s *JuryService) AssignJury(ctx context.Context, req dto.AssignJuryRequest) (result []dto.JuryAssignmentSummary, err error) {
	defenseIDs := uniqueIDs(req.DefenseIDs)
	if len(defenseIDs) == 0 {
		return nil, appErrors.ErrNoDefensesSpecified
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	defenses, err := s.loadDefenses(ctx, tx, defenseIDs)
	if err != nil {
		return nil, err
	}

	created := 0
	summaries := make([]dto.JuryAssignmentSummary, 0, len(defenses))
	for _, defense := range defenses {
		var summary *dto.JuryAssignmentSummary
		summary, err = s.assignOne(ctx, tx, defense, req)
		if err != nil {
			return nil, err
		}
		created += len(summary.Assignments)
		summaries = append(summaries, *summary)
	}

	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit jury assignment")
	}

	if s.metrics != nil {
		s.metrics.RecordJuryAssignments(created)
	}
	if s.cache != nil {
		if cacheErr := s.cache.Delete(ctx, suggestionsCacheKey); cacheErr != nil {
			s.logger.Warn("failed to invalidate juror suggestions", zap.Error(cacheErr))
		}
	}
	s.logger.Info("jury assigned", zap.Int("defenses", len(summaries)), zap.Int("assignments", created), zap.Bool("auto", req.Auto))
	return summaries, nil
}

// loadDefenses returns the defenses in request order, failing when any id is unknown.
func (s *JuryService) loadDefenses(ctx context.Context, tx *sqlx.Tx, ids []string) ([]models.DefenseDetail, error) {
	found, err := s.defenses.FindByIDs(ctx, tx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load defenses")
	}
	byID := make(map[string]models.DefenseDetail, len(found))
	for _, d := range found {
		byID[d.ID] = d
	}
	ordered := make([]models.DefenseDetail, 0, len(ids))
	for _, id := range ids {
		d, ok := byID[id]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrDefenseNotFound, fmt.Sprintf("defense %s not found", id))
		}
		ordered = append(ordered, d)
	}
	return ordered, nil
}

func (s *JuryService) assignOne(ctx context.Context, tx *sqlx.Tx, defense models.DefenseDetail, req dto.AssignJuryRequest) (*dto.JuryAssignmentSummary, error) {
	if defense.AreaID == nil {
		return nil, appErrors.Clone(appErrors.ErrNoAreaAssigned, fmt.Sprintf("defense %s has no area assigned", defense.ID))
	}

	eligible, err := s.juries.ListEligibleByArea(ctx, tx, *defense.AreaID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load eligible jurors")
	}
	if len(eligible) < minJurors {
		return nil, appErrors.Clone(appErrors.ErrInsufficientJurors, fmt.Sprintf("area of defense %s has %d eligible jurors, at least %d are required", defense.ID, len(eligible), minJurors))
	}

	// Jurors already seated on this defense are never assigned twice.
	seated, err := s.juries.ListAssignedJurorIDs(ctx, tx, defense.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load current jury")
	}
	available := withoutJurors(eligible, seated)

	var selected []models.JuryMember
	if req.Auto {
		if len(available) < minJurors {
			return nil, appErrors.Clone(appErrors.ErrInsufficientJurors, fmt.Sprintf("area of defense %s has %d eligible jurors not yet on its jury, at least %d are required", defense.ID, len(available), minJurors))
		}
		selected, err = s.leastLoaded(ctx, tx, available)
		if err != nil {
			return nil, err
		}
	} else {
		selected = filterEligible(available, req.JuryIDs)
		if len(selected) < minJurors {
			return nil, appErrors.Clone(appErrors.ErrInvalidJurySelection, fmt.Sprintf("at least %d jurors of the defense area not yet on its jury must be selected for defense %s", minJurors, defense.ID))
		}
	}

	summary := &dto.JuryAssignmentSummary{DefenseID: defense.ID, Assignments: make([]models.JuryAssignment, 0, len(selected))}
	if defense.AreaName != nil {
		summary.AreaName = *defense.AreaName
	}
	for _, juror := range selected {
		assignment := &models.JuryAssignment{DefenseID: defense.ID, JuryMemberID: juror.ID, CreatedAt: time.Now().UTC()}
		if err := s.juries.CreateAssignment(ctx, tx, assignment); err != nil {
			if errors.Is(err, repository.ErrUniqueViolation) {
				return nil, appErrors.Clone(appErrors.ErrInvalidJurySelection, fmt.Sprintf("juror %s already sits on defense %s", juror.ID, defense.ID))
			}
			return nil, appErrors.Internal(err, "failed to create jury assignment")
		}
		summary.Assignments = append(summary.Assignments, *assignment)
	}
	return summary, nil
}

// leastLoaded picks the minJurors jurors with the fewest assignments, ties kept in eligibility order.
func (s *JuryService) leastLoaded(ctx context.Context, tx *sqlx.Tx, eligible []models.JuryMember) ([]models.JuryMember, error) {
	ids := make([]string, len(eligible))
	for i, juror := range eligible {
		ids[i] = juror.ID
	}
	counts, err := s.juries.CountAssignments(ctx, tx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count juror workload")
	}
	ranked := append([]models.JuryMember(nil), eligible...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i].ID] < counts[ranked[j].ID]
	})
	return ranked[:minJurors], nil
}

// ListJurorsWithSuggestion returns active jurors flagged when their workload is low.
func (s *JuryService) ListJurorsWithSuggestion(ctx context.Context) ([]dto.JurorSuggestion, error) {
	if s.cache != nil {
		var cached []dto.JurorSuggestion
		err := s.cache.Get(ctx, suggestionsCacheKey, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("juror suggestion cache unavailable", zap.Error(err))
		}
	}

	workloads, err := s.juries.ListActiveWorkloads(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list jurors")
	}
	suggestions := make([]dto.JurorSuggestion, 0, len(workloads))
	for _, w := range workloads {
		areas := w.Areas
		if areas == nil {
			areas = []models.Area{}
		}
		suggestions = append(suggestions, dto.JurorSuggestion{
			Juror:           w.JuryMember,
			Areas:           areas,
			AssignmentCount: w.AssignmentCount,
			Suggested:       w.AssignmentCount <= suggestionThreshold,
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, suggestionsCacheKey, suggestions, s.cfg.SuggestionCacheTTL); err != nil {
			s.logger.Warn("failed to cache juror suggestions", zap.Error(err))
		}
	}
	return suggestions, nil
}

func withoutJurors(members []models.JuryMember, excluded []string) []models.JuryMember {
	if len(excluded) == 0 {
		return members
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		skip[id] = struct{}{}
	}
	out := make([]models.JuryMember, 0, len(members))
	for _, m := range members {
		if _, ok := skip[m.ID]; !ok {
			out = append(out, m)
		}
	}
	return out
}

func filterEligible(eligible []models.JuryMember, requested []string) []models.JuryMember {
	allowed := make(map[string]models.JuryMember, len(eligible))
	for _, juror := range eligible {
		allowed[juror.ID] = juror
	}
	selected := make([]models.JuryMember, 0, len(requested))
	for _, id := range uniqueIDs(requested) {
		if juror, ok := allowed[id]; ok {
			selected = append(selected, juror)
		}
	}
	return selected
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
