package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/obe-backend/internal/data/repos"
	"github.com/yungbote/obe-backend/internal/grading"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

type Repos struct {
	Course    repos.CourseRepo
	Cpmk      repos.CpmkRepo
	Cpl       repos.CplRepo
	Technique repos.TechniqueRepo
	Mapping   repos.MappingRepo
	RawScore  repos.RawScoreRepo
	CpmkScore repos.CpmkScoreRepo
	CplScore  repos.CplScoreRepo
	JobRun    repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Course:    repos.NewCourseRepo(db, log),
		Cpmk:      repos.NewCpmkRepo(db, log),
		Cpl:       repos.NewCplRepo(db, log),
		Technique: repos.NewTechniqueRepo(db, log),
		Mapping:   repos.NewMappingRepo(db, log),
		RawScore:  repos.NewRawScoreRepo(db, log),
		CpmkScore: repos.NewCpmkScoreRepo(db, log),
		CplScore:  repos.NewCplScoreRepo(db, log),
		JobRun:    repos.NewJobRunRepo(db, log),
	}
}

// Stores is the grading engine's view of the repos.
func (r Repos) Stores() grading.Stores {
	return grading.Stores{
		Courses:    r.Course,
		Cpmks:      r.Cpmk,
		Cpls:       r.Cpl,
		Techniques: r.Technique,
		Mappings:   r.Mapping,
		RawScores:  r.RawScore,
		CpmkScores: r.CpmkScore,
		CplScores:  r.CplScore,
	}
}
