package models

import (
	"math"
	"time"
)

// DefenseStatus tracks where a defense is in its lifecycle.
type DefenseStatus string

const (
	// DefenseStatusPending means area or case study are still unresolved.
	DefenseStatusPending DefenseStatus = "PENDIENTE"
	// DefenseStatusAssigned means both area and case study were resolved.
	DefenseStatusAssigned DefenseStatus = "ASIGNADO"
	// DefenseStatusApproved is set by grading when grade >= PassingGrade.
	DefenseStatusApproved DefenseStatus = "APROBADO"
	// DefenseStatusFailed is set by grading when grade < PassingGrade.
	DefenseStatusFailed DefenseStatus = "REPROBADO"
)

// PassingGrade is the inclusive lower bound of an approved defense.
const PassingGrade = 51

// StatusForAllocation derives the creation status from the resolved resources.
func StatusForAllocation(areaID, caseStudyID *string) DefenseStatus {
	if areaID != nil && caseStudyID != nil {
		return DefenseStatusAssigned
	}
	return DefenseStatusPending
}

// RoundGrade rounds half away from zero to the two decimals the grade column stores.
func RoundGrade(grade float64) float64 {
	return math.Round(grade*100) / 100
}

// StatusForGrade maps a stored grade onto its terminal status.
func StatusForGrade(grade float64) DefenseStatus {
	if grade >= PassingGrade {
		return DefenseStatusApproved
	}
	return DefenseStatusFailed
}

// Defense is a scheduled oral examination for one student.
type Defense struct {
	ID            string        `db:"id" json:"id"`
	StudentID     string        `db:"student_id" json:"student_id"`
	DefenseTypeID string        `db:"defense_type_id" json:"defense_type_id"`
	ScheduledAt   time.Time     `db:"scheduled_at" json:"scheduled_at"`
	AreaID        *string       `db:"area_id" json:"area_id,omitempty"`
	CaseStudyID   *string       `db:"case_study_id" json:"case_study_id,omitempty"`
	Room          *string       `db:"room" json:"room,omitempty"`
	Grade         *float64      `db:"grade" json:"grade,omitempty"`
	Status        DefenseStatus `db:"status" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// DefenseDetail enriches a defense with display fields.
type DefenseDetail struct {
	Defense
	StudentName     string  `db:"student_name" json:"student_name"`
	DefenseTypeName string  `db:"defense_type_name" json:"defense_type_name"`
	AreaName        *string `db:"area_name" json:"area_name,omitempty"`
	CaseStudyTitle  *string `db:"case_study_title" json:"case_study_title,omitempty"`
	CaseStudyURL    *string `db:"case_study_url" json:"case_study_url,omitempty"`
}

// DefenseFilter scopes defense listings.
type DefenseFilter struct {
	StudentID string
	Status    *DefenseStatus
	Date      *time.Time
	Page      int
	PageSize  int
}
