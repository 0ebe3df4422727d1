package models

import "time"

// JuryMember is a teacher eligible to sit on defense juries.
type JuryMember struct {
	ID       string  `db:"id" json:"id"`
	FullName string  `db:"full_name" json:"full_name"`
	Email    *string `db:"email" json:"email,omitempty"`
	Phone    *string `db:"phone" json:"phone,omitempty"`
	Active   bool    `db:"active" json:"active"`
}

// JuryAssignment links a jury member to a defense.
type JuryAssignment struct {
	ID           string    `db:"id" json:"id"`
	DefenseID    string    `db:"defense_id" json:"defense_id"`
	JuryMemberID string    `db:"jury_member_id" json:"jury_member_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// JurorWorkload is a jury member with the areas they cover and their total assignments.
type JurorWorkload struct {
	JuryMember
	Areas           []Area `db:"-" json:"areas"`
	AssignmentCount int    `db:"assignment_count" json:"assignment_count"`
}

// JurorAreaRow is the flat row used to build JurorWorkload values.
type JurorAreaRow struct {
	JuryMemberID string `db:"jury_member_id"`
	AreaID       string `db:"area_id"`
	AreaName     string `db:"area_name"`
	AreaActive   bool   `db:"area_active"`
}
