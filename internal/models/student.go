package models

// Student is the enrollee a defense is scheduled for.
type Student struct {
	ID       string  `db:"id" json:"id"`
	FullName string  `db:"full_name" json:"full_name"`
	CareerID string  `db:"career_id" json:"career_id"`
	Phone    *string `db:"phone" json:"phone,omitempty"`
	Email    *string `db:"email" json:"email,omitempty"`
}

// StudentContact holds the channels a student can be notified on.
type StudentContact struct {
	StudentID string  `db:"id"`
	FullName  string  `db:"full_name"`
	Phone     *string `db:"phone"`
	Email     *string `db:"email"`
}
