package grading

import (
	"time"

	"github.com/yungbote/obe-backend/internal/data/repos"
)

// Stores groups the record stores the engine reads and writes.
type Stores struct {
	Courses    repos.CourseRepo
	Cpmks      repos.CpmkRepo
	Cpls       repos.CplRepo
	Techniques repos.TechniqueRepo
	Mappings   repos.MappingRepo
	RawScores  repos.RawScoreRepo
	CpmkScores repos.CpmkScoreRepo
	CplScores  repos.CplScoreRepo
}

// Recorder receives compute and cascade measurements.
type Recorder interface {
	ObserveCompute(phase string, d time.Duration, err error)
	ObserveCascade(report *CascadeReport)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCompute(string, time.Duration, error) {}
func (nopRecorder) ObserveCascade(*CascadeReport)               {}
