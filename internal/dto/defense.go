package dto

import (
	"time"

	"github.com/noah-isme/defense-allocation-api/internal/models"
)

// AllocateDefensesRequest schedules one defense per student for a single date and type.
type AllocateDefensesRequest struct {
	StudentIDs    []string  `json:"student_ids" validate:"required,min=1,dive,required"`
	DefenseTypeID string    `json:"defense_type_id" validate:"required"`
	ScheduledAt   time.Time `json:"scheduled_at" validate:"required"`
	AutoPickArea  bool      `json:"auto_pick_area"`
	AutoPickCase  bool      `json:"auto_pick_case"`
	AreaID        *string   `json:"area_id,omitempty"`
	CaseStudyID   *string   `json:"case_study_id,omitempty"`
}

// RecordGradeRequest carries the final grade of a defense.
type RecordGradeRequest struct {
	Grade *float64 `json:"grade" validate:"required,gte=0,lte=100"`
}

// RecordRoomRequest carries the room label of a defense.
type RecordRoomRequest struct {
	Room string `json:"room" validate:"required,max=100"`
}

// DefenseSummary is the defense representation returned to callers and notifiers.
type DefenseSummary struct {
	ID              string               `json:"id"`
	StudentID       string               `json:"student_id"`
	StudentName     string               `json:"student_name,omitempty"`
	DefenseTypeID   string               `json:"defense_type_id"`
	DefenseTypeName string               `json:"defense_type_name,omitempty"`
	ScheduledAt     time.Time            `json:"scheduled_at"`
	AreaID          *string              `json:"area_id,omitempty"`
	AreaName        *string              `json:"area_name,omitempty"`
	CaseStudyID     *string              `json:"case_study_id,omitempty"`
	CaseStudyTitle  *string              `json:"case_study_title,omitempty"`
	CaseStudyURL    *string              `json:"case_study_url,omitempty"`
	Room            *string              `json:"room,omitempty"`
	Grade           *float64             `json:"grade,omitempty"`
	Status          models.DefenseStatus `json:"status"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// NewDefenseSummary flattens a defense detail row.
func NewDefenseSummary(d models.DefenseDetail) DefenseSummary {
	return DefenseSummary{
		ID:              d.ID,
		StudentID:       d.StudentID,
		StudentName:     d.StudentName,
		DefenseTypeID:   d.DefenseTypeID,
		DefenseTypeName: d.DefenseTypeName,
		ScheduledAt:     d.ScheduledAt,
		AreaID:          d.AreaID,
		AreaName:        d.AreaName,
		CaseStudyID:     d.CaseStudyID,
		CaseStudyTitle:  d.CaseStudyTitle,
		CaseStudyURL:    d.CaseStudyURL,
		Room:            d.Room,
		Grade:           d.Grade,
		Status:          d.Status,
		UpdatedAt:       d.UpdatedAt,
	}
}
