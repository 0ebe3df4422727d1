package models

import "time"

// Career groups students and the areas they may defend in.
type Career struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Area is a subject specialization linked to careers, case studies and jurors.
type Area struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Active bool   `db:"active" json:"active"`
}

// CaseStudy is the document a student defends. It belongs to exactly one area.
type CaseStudy struct {
	ID          string     `db:"id" json:"id"`
	AreaID      string     `db:"area_id" json:"area_id"`
	Title       string     `db:"title" json:"title"`
	DocumentURL *string    `db:"document_url" json:"document_url,omitempty"`
	Active      bool       `db:"active" json:"active"`
	Deleted     bool       `db:"deleted" json:"-"`
	DeletedAt   *time.Time `db:"deleted_at" json:"-"`
}

// Eligible reports whether the case study can be handed to a defense.
func (c CaseStudy) Eligible() bool {
	return c.Active && !c.Deleted
}

// DefenseType is a lookup category such as internal or external exam.
type DefenseType struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
