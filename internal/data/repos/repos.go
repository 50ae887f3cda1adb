package repos

import (
	"github.com/yungbote/obe-backend/internal/data/repos/grading"
	"github.com/yungbote/obe-backend/internal/data/repos/jobs"
	"github.com/yungbote/obe-backend/internal/data/repos/outcomes"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
	"gorm.io/gorm"
)

type CourseRepo = outcomes.CourseRepo
type CpmkRepo = outcomes.CpmkRepo
type CplRepo = outcomes.CplRepo
type TechniqueRepo = outcomes.TechniqueRepo
type MappingRepo = outcomes.MappingRepo

type RawScoreRepo = grading.RawScoreRepo
type CpmkScoreRepo = grading.CpmkScoreRepo
type CplScoreRepo = grading.CplScoreRepo

type JobRunRepo = jobs.JobRunRepo

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return outcomes.NewCourseRepo(db, baseLog)
}
func NewCpmkRepo(db *gorm.DB, baseLog *logger.Logger) CpmkRepo {
	return outcomes.NewCpmkRepo(db, baseLog)
}
func NewCplRepo(db *gorm.DB, baseLog *logger.Logger) CplRepo {
	return outcomes.NewCplRepo(db, baseLog)
}
func NewTechniqueRepo(db *gorm.DB, baseLog *logger.Logger) TechniqueRepo {
	return outcomes.NewTechniqueRepo(db, baseLog)
}
func NewMappingRepo(db *gorm.DB, baseLog *logger.Logger) MappingRepo {
	return outcomes.NewMappingRepo(db, baseLog)
}

func NewRawScoreRepo(db *gorm.DB, baseLog *logger.Logger) RawScoreRepo {
	return grading.NewRawScoreRepo(db, baseLog)
}
func NewCpmkScoreRepo(db *gorm.DB, baseLog *logger.Logger) CpmkScoreRepo {
	return grading.NewCpmkScoreRepo(db, baseLog)
}
func NewCplScoreRepo(db *gorm.DB, baseLog *logger.Logger) CplScoreRepo {
	return grading.NewCplScoreRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
