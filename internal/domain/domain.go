package domain

import (
	"github.com/yungbote/obe-backend/internal/domain/grading"
	"github.com/yungbote/obe-backend/internal/domain/jobs"
	"github.com/yungbote/obe-backend/internal/domain/outcomes"
)

type (
	Course              = outcomes.Course
	Cpmk                = outcomes.Cpmk
	Cpl                 = outcomes.Cpl
	AssessmentTechnique = outcomes.AssessmentTechnique
	CpmkCplMapping      = outcomes.CpmkCplMapping

	Scope     = grading.Scope
	RawScore  = grading.RawScore
	CpmkScore = grading.CpmkScore
	CplScore  = grading.CplScore

	JobRun = jobs.JobRun
)
