package app

import (
	httpH "github.com/yungbote/obe-backend/internal/http/handlers"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Outcome  *httpH.OutcomeHandler
	Weight   *httpH.WeightHandler
	RawScore *httpH.RawScoreHandler
	Score    *httpH.ScoreHandler
	Job      *httpH.JobHandler
}

func wireHandlers(log *logger.Logger, db httpH.Pinger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(db),
		Outcome:  httpH.NewOutcomeHandler(services.Outcomes),
		Weight:   httpH.NewWeightHandler(services.Weights),
		RawScore: httpH.NewRawScoreHandler(services.RawScores),
		Score:    httpH.NewScoreHandler(services.Scores),
		Job:      httpH.NewJobHandler(services.JobService),
	}
}
