package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/defense-allocation-api/internal/models"
	appErrors "github.com/noah-isme/defense-allocation-api/pkg/errors"
)

type catalogReader interface {
	ListActiveAreasByCareer(ctx context.Context, exec sqlx.ExtContext, careerID string) ([]models.Area, error)
	ListActiveCaseStudiesByArea(ctx context.Context, exec sqlx.ExtContext, areaID string) ([]models.CaseStudy, error)
	FindCaseStudy(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CaseStudy, error)
}

// ConsumedSet holds the case study ids already taken on the batch's target date.
type ConsumedSet map[string]struct{}

// NewConsumedSet seeds a set with ids.
func NewConsumedSet(ids ...string) ConsumedSet {
	set := make(ConsumedSet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

// Has reports membership.
func (s ConsumedSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add marks id as consumed.
func (s ConsumedSet) Add(id string) {
	s[id] = struct{}{}
}

// AllocationPolicy is the caller's intent for one batch.
type AllocationPolicy struct {
	AutoPickArea         bool
	AutoPickCase         bool
	RequestedAreaID      *string
	RequestedCaseStudyID *string
}

// PlanInput describes the allocation problem for one student.
type PlanInput struct {
	StudentID string
	CareerID  string
	Policy    AllocationPolicy
	Consumed  ConsumedSet
}

// Allocation is the planner outcome. CaseStudy is nil when the case is deferred.
type Allocation struct {
	Area      *models.Area
	CaseStudy *models.CaseStudy
}

// AllocationPlanner selects an area and a case study for a student.
type AllocationPlanner struct {
	catalog catalogReader
	rng     Randomizer
}

// NewAllocationPlanner builds a planner. A nil randomizer falls back to a time seeded one.
func NewAllocationPlanner(catalog catalogReader, rng Randomizer) *AllocationPlanner {
	if rng == nil {
		rng = NewRandomizer()
	}
	return &AllocationPlanner{catalog: catalog, rng: rng}
}

// Plan resolves the allocation for one student and records the picked case study in Consumed.
func (p *AllocationPlanner) Plan(ctx context.Context, exec sqlx.ExtContext, in PlanInput) (*Allocation, error) {
	if in.Consumed == nil {
		in.Consumed = NewConsumedSet()
	}
	areas, err := p.catalog.ListActiveAreasByCareer(ctx, exec, in.CareerID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load career areas")
	}
	if len(areas) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoAvailableAreas, fmt.Sprintf("no active areas available for student %s", in.StudentID))
	}

	if in.Policy.AutoPickCase {
		return p.pickAutomatically(ctx, exec, in, areas)
	}
	return p.pickManually(ctx, exec, in, areas)
}

func (p *AllocationPlanner) pickAutomatically(ctx context.Context, exec sqlx.ExtContext, in PlanInput, areas []models.Area) (*Allocation, error) {
	for _, area := range p.candidateOrder(in.Policy, areas) {
		cases, err := p.catalog.ListActiveCaseStudiesByArea(ctx, exec, area.ID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load case studies")
		}
		free := make([]models.CaseStudy, 0, len(cases))
		for _, cs := range cases {
			if cs.Eligible() && !in.Consumed.Has(cs.ID) {
				free = append(free, cs)
			}
		}
		if len(free) == 0 {
			continue
		}
		picked := free[p.rng.Intn(len(free))]
		in.Consumed.Add(picked.ID)
		selectedArea := area
		return &Allocation{Area: &selectedArea, CaseStudy: &picked}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNoAvailableCaseStudy, fmt.Sprintf("no case study available for student %s", in.StudentID))
}

// candidateOrder puts the preferred area first and the rest in shuffled order.
func (p *AllocationPlanner) candidateOrder(policy AllocationPolicy, areas []models.Area) []models.Area {
	start := -1
	if policy.AutoPickArea {
		start = p.rng.Intn(len(areas))
	} else if policy.RequestedAreaID != nil {
		start = indexOfArea(areas, *policy.RequestedAreaID)
	}

	rest := make([]models.Area, 0, len(areas))
	for i, area := range areas {
		if i != start {
			rest = append(rest, area)
		}
	}
	p.rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })

	if start < 0 {
		return rest
	}
	return append([]models.Area{areas[start]}, rest...)
}

func (p *AllocationPlanner) pickManually(ctx context.Context, exec sqlx.ExtContext, in PlanInput, areas []models.Area) (*Allocation, error) {
	var caseStudy *models.CaseStudy
	if in.Policy.RequestedCaseStudyID != nil {
		cs, err := p.catalog.FindCaseStudy(ctx, exec, *in.Policy.RequestedCaseStudyID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Internal(err, "failed to load case study")
		}
		if cs == nil || !cs.Eligible() || in.Consumed.Has(cs.ID) {
			return nil, appErrors.Clone(appErrors.ErrCaseStudyUnavailable, fmt.Sprintf("case study %s is not available", *in.Policy.RequestedCaseStudyID))
		}
		caseStudy = cs
	}

	area, err := p.manualArea(in.Policy, areas, caseStudy)
	if err != nil {
		return nil, err
	}

	if caseStudy != nil {
		in.Consumed.Add(caseStudy.ID)
	}
	return &Allocation{Area: area, CaseStudy: caseStudy}, nil
}

// manualArea resolves the area of a manual allocation. A requested case study
// fixes the area to its own, so a different requested area is rejected.
func (p *AllocationPlanner) manualArea(policy AllocationPolicy, areas []models.Area, caseStudy *models.CaseStudy) (*models.Area, error) {
	if policy.RequestedAreaID != nil {
		idx := indexOfArea(areas, *policy.RequestedAreaID)
		if idx < 0 {
			return nil, appErrors.Clone(appErrors.ErrAreaUnavailable, fmt.Sprintf("area %s is not available", *policy.RequestedAreaID))
		}
		if caseStudy != nil && caseStudy.AreaID != areas[idx].ID {
			return nil, appErrors.Clone(appErrors.ErrCaseStudyUnavailable, fmt.Sprintf("case study %s does not belong to area %s", caseStudy.ID, areas[idx].ID))
		}
		picked := areas[idx]
		return &picked, nil
	}

	if caseStudy != nil {
		idx := indexOfArea(areas, caseStudy.AreaID)
		if idx < 0 {
			return nil, appErrors.Clone(appErrors.ErrAreaNotAvailableForCareer, fmt.Sprintf("area of case study %s is not available for the career", caseStudy.ID))
		}
		picked := areas[idx]
		return &picked, nil
	}

	if policy.AutoPickArea {
		picked := areas[p.rng.Intn(len(areas))]
		return &picked, nil
	}
	return nil, appErrors.Clone(appErrors.ErrAreaUnavailable, "an area or a case study must be requested")
}

func indexOfArea(areas []models.Area, id string) int {
	for i, area := range areas {
		if area.ID == id {
			return i
		}
	}
	return -1
}
