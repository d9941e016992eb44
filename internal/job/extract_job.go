package job

import (
	"context"
	"errors"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/podsage/internal/pkg/errs"
	"github.com/xxxsen/podsage/internal/service"
)

// ExtractJob refreshes concepts and insights for every configured podcast.
// One podcast failing does not stop the others.
type ExtractJob struct {
	extract  *service.ExtractService
	reports  *service.ReportService
	podcasts []string
}

func NewExtractJob(extract *service.ExtractService, reports *service.ReportService, podcasts []string) *ExtractJob {
	return &ExtractJob{extract: extract, reports: reports, podcasts: podcasts}
}

func (j *ExtractJob) Name() string {
	return "extract"
}

func (j *ExtractJob) Run(ctx context.Context) error {
	if j.extract == nil || len(j.podcasts) == 0 {
		return nil
	}
	var lastErr error
	for _, slug := range j.podcasts {
		logger := logutil.GetLogger(ctx).With(zap.String("podcast", slug))
		result, err := j.extract.Run(ctx, slug)
		if errors.Is(err, errs.ErrExtractionRunning) {
			logger.Info("extraction already running, skipped")
			continue
		}
		if err != nil {
			logger.Error("extraction failed", zap.Error(err))
			lastErr = err
			continue
		}
		if j.reports != nil {
			if url := j.reports.Publish(ctx, result); url != "" {
				logger.Info("extraction report published", zap.String("url", url))
			}
		}
	}
	return lastErr
}
