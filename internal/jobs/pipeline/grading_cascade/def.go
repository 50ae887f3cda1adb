package grading_cascade

import (
	"github.com/yungbote/obe-backend/internal/domain/jobs"
	"github.com/yungbote/obe-backend/internal/grading"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

type Pipeline struct {
	log   *logger.Logger
	coord *grading.Coordinator
}

func New(baseLog *logger.Logger, coord *grading.Coordinator) *Pipeline {
	return &Pipeline{
		log:   baseLog.With("job", jobs.TypeGradingCascade),
		coord: coord,
	}
}

func (p *Pipeline) Type() string { return jobs.TypeGradingCascade }
