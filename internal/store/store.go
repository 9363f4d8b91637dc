package store

import (
	"context"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/model"
)

// Store defines the persistence interface for normalized weekly reports.
//
// SaveReport upserts on the raw period label (date_range): a report carrying
// the same label as an existing row updates that row in place and returns its
// id. Reports with an empty label always insert a new row, since there is no
// natural key to match on.
type Store interface {
	SaveReport(ctx context.Context, report model.WeeklyReport) (string, error)
	ListReports(ctx context.Context) ([]model.WeeklyReport, error)
	ReportsByDateRange(ctx context.Context, startDate, endDate string) ([]model.WeeklyReport, error)
	DeleteReport(ctx context.Context, id string) (bool, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
