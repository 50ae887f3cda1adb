package db

import (
	types "github.com/yungbote/obe-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// =========================
		// Outcome catalogue
		// =========================
		&types.Course{},
		&types.Cpmk{},
		&types.Cpl{},
		&types.AssessmentTechnique{},
		&types.CpmkCplMapping{},

		// =========================
		// Scores (raw + derived)
		// =========================
		&types.RawScore{},
		&types.CpmkScore{},
		&types.CplScore{},

		// =========================
		// Jobs
		// =========================
		&types.JobRun{},
	)
}

func (s *DatabaseService) AutoMigrateAll() error {
	s.log.Info("Running auto migrations")
	return AutoMigrateAll(s.db)
}
