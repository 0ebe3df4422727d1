package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/defense-allocation-api/internal/models"
)

// StudentRepository is the read side of the student management collaborator.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// GetStudentCareer returns the career the student is enrolled in.
func (r *StudentRepository) GetStudentCareer(ctx context.Context, exec sqlx.ExtContext, studentID string) (string, error) {
	if exec == nil {
		exec = r.db
	}
	const query = `SELECT career_id FROM students WHERE id = $1`
	var careerID string
	if err := sqlx.GetContext(ctx, exec, &careerID, query, studentID); err != nil {
		return "", err
	}
	return careerID, nil
}

// FindContact returns the notification channels of a student.
func (r *StudentRepository) FindContact(ctx context.Context, studentID string) (*models.StudentContact, error) {
	const query = `SELECT id, full_name, phone, email FROM students WHERE id = $1`
	var contact models.StudentContact
	if err := r.db.GetContext(ctx, &contact, query, studentID); err != nil {
		return nil, err
	}
	return &contact, nil
}
