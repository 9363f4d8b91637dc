package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/model"
	"github.com/scarnyc/fitbit-data-ai-agent/internal/normalize"
	"github.com/scarnyc/fitbit-data-ai-agent/internal/store"
)

// PersistStage normalizes extracted metrics and writes them to the store.
type PersistStage struct {
	store store.Store
}

// NewPersistStage creates a persistence stage.
func NewPersistStage(st store.Store) *PersistStage {
	return &PersistStage{store: st}
}

// Execute runs one persistence action: save_metrics or get_metrics.
func (s *PersistStage) Execute(ctx context.Context, action string, params Params) Outcome {
	zap.L().Info("persist stage", zap.String("action", action))

	switch action {
	case "save_metrics":
		return s.saveMetrics(ctx, params)
	case "get_metrics":
		return s.getMetrics(ctx, params)
	default:
		return failUnknownAction(action)
	}
}

// saveMetrics upserts each record individually; a record the store rejects
// is logged and skipped so one bad row never loses the rest of the batch.
func (s *PersistStage) saveMetrics(ctx context.Context, params Params) Outcome {
	metrics, _ := params["metrics"].([]model.ExtractedMetrics)
	if len(metrics) == 0 {
		return Outcome{Success: true}
	}

	var saved []string
	for _, m := range metrics {
		report := normalize.Report(m)
		id, err := s.store.SaveReport(ctx, report)
		if err != nil {
			zap.L().Warn("save report",
				zap.String("date_range", report.DateRange), zap.Error(err))
			continue
		}
		saved = append(saved, id)
	}

	return Outcome{Success: true, SavedIDs: saved}
}

func (s *PersistStage) getMetrics(ctx context.Context, params Params) Outcome {
	startDate := stringParam(params, "start_date")
	endDate := stringParam(params, "end_date")

	var (
		reports []model.WeeklyReport
		err     error
	)
	if startDate != "" && endDate != "" {
		reports, err = s.store.ReportsByDateRange(ctx, startDate, endDate)
	} else {
		reports, err = s.store.ListReports(ctx)
	}
	if err != nil {
		zap.L().Error("get reports", zap.Error(err))
		return fail(err.Error())
	}

	return Outcome{Success: true, Reports: reports}
}
