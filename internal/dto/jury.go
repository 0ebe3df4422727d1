package dto

import "github.com/noah-isme/defense-allocation-api/internal/models"

// AssignJuryRequest assigns jurors to a batch of defenses.
// With Auto the least loaded eligible jurors are picked, otherwise JuryIDs is validated.
type AssignJuryRequest struct {
	DefenseIDs []string `json:"defense_ids"`
	Auto       bool     `json:"auto"`
	JuryIDs    []string `json:"jury_ids,omitempty"`
}

// JuryAssignmentSummary reports the jurors created for one defense.
type JuryAssignmentSummary struct {
	DefenseID   string                  `json:"defense_id"`
	AreaName    string                  `json:"area_name"`
	Assignments []models.JuryAssignment `json:"assignments"`
}

// JurorSuggestion is a juror with their workload and whether they are suggested for new juries.
type JurorSuggestion struct {
	Juror           models.JuryMember `json:"juror"`
	Areas           []models.Area     `json:"areas"`
	AssignmentCount int               `json:"assignment_count"`
	Suggested       bool              `json:"suggested"`
}
