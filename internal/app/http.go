package app

import (
	"github.com/yungbote/obe-backend/internal/http"
	"github.com/yungbote/obe-backend/internal/observability"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, h Handlers) *http.Server {
	log.Info("Wiring router...")
	rc := http.RouterConfig{
		Log:             log,
		CORSOrigins:     cfg.CORSOrigins,
		HealthHandler:   h.Health,
		OutcomeHandler:  h.Outcome,
		WeightHandler:   h.Weight,
		RawScoreHandler: h.RawScore,
		ScoreHandler:    h.Score,
		JobHandler:      h.Job,
	}
	if cfg.MetricsEnabled {
		rc.Metrics = metrics
	}
	if cfg.Tracing.Enabled {
		rc.ServiceName = cfg.Tracing.ServiceName
	}
	return http.NewServer(rc)
}
