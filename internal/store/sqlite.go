package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS fitbit_reports (
	id                            TEXT PRIMARY KEY,
	date_range                    TEXT NOT NULL DEFAULT '',
	date_start                    TEXT NOT NULL DEFAULT '',
	date_end                      TEXT NOT NULL DEFAULT '',
	step_target_days_met          INTEGER NOT NULL DEFAULT 0,
	best_day_steps                INTEGER,
	total_steps                   INTEGER,
	avg_steps_per_day             REAL,
	steps_variance                REAL NOT NULL DEFAULT 0,
	total_miles                   REAL,
	miles_variance                REAL NOT NULL DEFAULT 0,
	avg_daily_calorie_burn        REAL,
	calorie_burn_variance         REAL NOT NULL DEFAULT 0,
	total_active_zone_minutes     INTEGER,
	active_zone_minutes_variance  REAL NOT NULL DEFAULT 0,
	avg_restful_sleep             TEXT NOT NULL DEFAULT '',
	restful_sleep_minutes         INTEGER,
	restful_sleep_variance        INTEGER NOT NULL DEFAULT 0,
	avg_hours_with_250_steps      REAL,
	hours_with_250_steps_variance REAL NOT NULL DEFAULT 0,
	avg_resting_heart_rate        INTEGER,
	resting_heart_rate_variance   TEXT NOT NULL DEFAULT '',
	created_at                    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_fitbit_reports_date_range ON fitbit_reports(date_range);
CREATE INDEX IF NOT EXISTS idx_fitbit_reports_date_start ON fitbit_reports(date_start);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const reportColumns = `id, date_range, date_start, date_end, step_target_days_met,
	best_day_steps, total_steps, avg_steps_per_day, steps_variance,
	total_miles, miles_variance, avg_daily_calorie_burn, calorie_burn_variance,
	total_active_zone_minutes, active_zone_minutes_variance,
	avg_restful_sleep, restful_sleep_minutes, restful_sleep_variance,
	avg_hours_with_250_steps, hours_with_250_steps_variance,
	avg_resting_heart_rate, resting_heart_rate_variance, created_at`

func (s *SQLiteStore) SaveReport(ctx context.Context, report model.WeeklyReport) (string, error) {
	// A non-empty period label is the natural key: update the existing row
	// for the same label instead of inserting a duplicate.
	if report.DateRange != "" {
		var existingID string
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM fitbit_reports WHERE date_range = ?`, report.DateRange,
		).Scan(&existingID)
		if err != nil && err != sql.ErrNoRows {
			return "", eris.Wrap(err, "sqlite: check existing report")
		}
		if err == nil {
			return existingID, s.updateReport(ctx, existingID, report)
		}
	}
	return s.insertReport(ctx, report)
}

func (s *SQLiteStore) insertReport(ctx context.Context, report model.WeeklyReport) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fitbit_reports (`+reportColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, report.DateRange, report.DateStart, report.DateEnd, report.StepTargetDaysMet,
		report.BestDaySteps, report.TotalSteps, report.AvgStepsPerDay, report.StepsVariance,
		report.TotalMiles, report.MilesVariance, report.AvgDailyCalorieBurn, report.CalorieBurnVariance,
		report.TotalActiveZoneMinutes, report.ActiveZoneMinutesVariance,
		report.AvgRestfulSleep, report.RestfulSleepMinutes, report.RestfulSleepVariance,
		report.AvgHoursWith250Steps, report.HoursWith250StepsVariance,
		report.AvgRestingHeartRate, report.RestingHeartRateVariance, now,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert report")
	}
	return id, nil
}

func (s *SQLiteStore) updateReport(ctx context.Context, id string, report model.WeeklyReport) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fitbit_reports SET
			date_start = ?, date_end = ?, step_target_days_met = ?,
			best_day_steps = ?, total_steps = ?, avg_steps_per_day = ?, steps_variance = ?,
			total_miles = ?, miles_variance = ?, avg_daily_calorie_burn = ?, calorie_burn_variance = ?,
			total_active_zone_minutes = ?, active_zone_minutes_variance = ?,
			avg_restful_sleep = ?, restful_sleep_minutes = ?, restful_sleep_variance = ?,
			avg_hours_with_250_steps = ?, hours_with_250_steps_variance = ?,
			avg_resting_heart_rate = ?, resting_heart_rate_variance = ?
		 WHERE id = ?`,
		report.DateStart, report.DateEnd, report.StepTargetDaysMet,
		report.BestDaySteps, report.TotalSteps, report.AvgStepsPerDay, report.StepsVariance,
		report.TotalMiles, report.MilesVariance, report.AvgDailyCalorieBurn, report.CalorieBurnVariance,
		report.TotalActiveZoneMinutes, report.ActiveZoneMinutesVariance,
		report.AvgRestfulSleep, report.RestfulSleepMinutes, report.RestfulSleepVariance,
		report.AvgHoursWith250Steps, report.HoursWith250StepsVariance,
		report.AvgRestingHeartRate, report.RestingHeartRateVariance,
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update report %s", id)
	}
	return checkRowsAffected(res, "report", id)
}

func (s *SQLiteStore) ListReports(ctx context.Context) ([]model.WeeklyReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM fitbit_reports ORDER BY date_start DESC, date_end DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close()
	return collectReports(rows)
}

func (s *SQLiteStore) ReportsByDateRange(ctx context.Context, startDate, endDate string) ([]model.WeeklyReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM fitbit_reports
		 WHERE date_start >= ? AND date_end <= ?
		 ORDER BY date_start, date_end`,
		startDate, endDate,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: reports by date range")
	}
	defer rows.Close()
	return collectReports(rows)
}

func (s *SQLiteStore) DeleteReport(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM fitbit_reports WHERE id = ?`, id)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: delete report %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanReport(row scannable) (*model.WeeklyReport, error) {
	var r model.WeeklyReport
	err := row.Scan(
		&r.ID, &r.DateRange, &r.DateStart, &r.DateEnd, &r.StepTargetDaysMet,
		&r.BestDaySteps, &r.TotalSteps, &r.AvgStepsPerDay, &r.StepsVariance,
		&r.TotalMiles, &r.MilesVariance, &r.AvgDailyCalorieBurn, &r.CalorieBurnVariance,
		&r.TotalActiveZoneMinutes, &r.ActiveZoneMinutesVariance,
		&r.AvgRestfulSleep, &r.RestfulSleepMinutes, &r.RestfulSleepVariance,
		&r.AvgHoursWith250Steps, &r.HoursWith250StepsVariance,
		&r.AvgRestingHeartRate, &r.RestingHeartRateVariance, &r.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "scan report")
	}
	return &r, nil
}

func collectReports(rows *sql.Rows) ([]model.WeeklyReport, error) {
	var reports []model.WeeklyReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, eris.Wrap(rows.Err(), "iterate reports")
}
