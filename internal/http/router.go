package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/obe-backend/internal/http/handlers"
	httpMW "github.com/yungbote/obe-backend/internal/http/middleware"
	"github.com/yungbote/obe-backend/internal/observability"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string
	// ServiceName turns on otelgin spans when set.
	ServiceName string

	HealthHandler   *httpH.HealthHandler
	OutcomeHandler  *httpH.OutcomeHandler
	WeightHandler   *httpH.WeightHandler
	RawScoreHandler *httpH.RawScoreHandler
	ScoreHandler    *httpH.ScoreHandler
	JobHandler      *httpH.JobHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachActor())
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// Courses, CPMKs and CPLs
		if cfg.OutcomeHandler != nil {
			api.POST("/courses", cfg.OutcomeHandler.CreateCourse)
			api.GET("/courses", cfg.OutcomeHandler.ListCourses)
			api.GET("/courses/:id", cfg.OutcomeHandler.GetCourse)
			api.POST("/courses/:id/cpmks", cfg.OutcomeHandler.CreateCpmk)
			api.POST("/cpls", cfg.OutcomeHandler.CreateCpl)
			api.GET("/cpls", cfg.OutcomeHandler.ListCpls)
		}

		// Weights
		if cfg.WeightHandler != nil {
			api.POST("/cpmks/:id/techniques", cfg.WeightHandler.AddTechnique)
			api.PATCH("/techniques/:id", cfg.WeightHandler.UpdateTechnique)
			api.DELETE("/techniques/:id", cfg.WeightHandler.RemoveTechnique)
			api.GET("/cpmks/:id/weights", cfg.WeightHandler.CpmkWeights)
			api.POST("/cpmks/:id/mappings", cfg.WeightHandler.AddMapping)
			api.POST("/mappings/batch", cfg.WeightHandler.AddMappingsBatch)
			api.PATCH("/mappings/:id", cfg.WeightHandler.UpdateMapping)
			api.DELETE("/mappings/:id", cfg.WeightHandler.RemoveMapping)
			api.POST("/courses/:id/recalculate", cfg.WeightHandler.RecalculateCourse)
		}

		// Grading
		if cfg.RawScoreHandler != nil {
			api.PUT("/raw-scores", cfg.RawScoreHandler.Upsert)
			api.DELETE("/raw-scores", cfg.RawScoreHandler.Delete)
		}

		// Scores
		if cfg.ScoreHandler != nil {
			api.GET("/students/:id/cpmk-scores/:cpmkId", cfg.ScoreHandler.GetCpmkScore)
			api.GET("/students/:id/cpl-scores/:cplId", cfg.ScoreHandler.GetCplScore)
			api.GET("/students/:id/scores", cfg.ScoreHandler.ListStudentScores)
		}

		// Job
		if cfg.JobHandler != nil {
			api.GET("/jobs", cfg.JobHandler.ListJobs)
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
		}
	}

	return r
}
