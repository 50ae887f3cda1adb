package grading

import (
	"fmt"

	"github.com/google/uuid"
)

// Scope is the (student, semester, academic term) tuple every score row is
// keyed under.
type Scope struct {
	StudentID    uuid.UUID `json:"student_id"`
	Semester     int       `json:"semester"`
	AcademicTerm string    `json:"academic_term"`
}

func (s Scope) String() string {
	return fmt.Sprintf("%s:%d:%s", s.StudentID, s.Semester, s.AcademicTerm)
}
