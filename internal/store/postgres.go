package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/db"
	"github.com/scarnyc/fitbit-data-ai-agent/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS fitbit_reports (
	id                            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	date_range                    TEXT NOT NULL DEFAULT '',
	date_start                    TEXT NOT NULL DEFAULT '',
	date_end                      TEXT NOT NULL DEFAULT '',
	step_target_days_met          INTEGER NOT NULL DEFAULT 0,
	best_day_steps                INTEGER,
	total_steps                   INTEGER,
	avg_steps_per_day             DOUBLE PRECISION,
	steps_variance                DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_miles                   DOUBLE PRECISION,
	miles_variance                DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_daily_calorie_burn        DOUBLE PRECISION,
	calorie_burn_variance         DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_active_zone_minutes     INTEGER,
	active_zone_minutes_variance  DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_restful_sleep             TEXT NOT NULL DEFAULT '',
	restful_sleep_minutes         INTEGER,
	restful_sleep_variance        INTEGER NOT NULL DEFAULT 0,
	avg_hours_with_250_steps      DOUBLE PRECISION,
	hours_with_250_steps_variance DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_resting_heart_rate        INTEGER,
	resting_heart_rate_variance   TEXT NOT NULL DEFAULT '',
	created_at                    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_fitbit_reports_date_range ON fitbit_reports(date_range);
CREATE INDEX IF NOT EXISTS idx_fitbit_reports_date_start ON fitbit_reports(date_start);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const pgSelectExisting = `SELECT id FROM fitbit_reports WHERE date_range = $1`

const pgInsertReport = `INSERT INTO fitbit_reports (` + reportColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`

const pgUpdateReport = `UPDATE fitbit_reports SET
	date_start = $1, date_end = $2, step_target_days_met = $3,
	best_day_steps = $4, total_steps = $5, avg_steps_per_day = $6, steps_variance = $7,
	total_miles = $8, miles_variance = $9, avg_daily_calorie_burn = $10, calorie_burn_variance = $11,
	total_active_zone_minutes = $12, active_zone_minutes_variance = $13,
	avg_restful_sleep = $14, restful_sleep_minutes = $15, restful_sleep_variance = $16,
	avg_hours_with_250_steps = $17, hours_with_250_steps_variance = $18,
	avg_resting_heart_rate = $19, resting_heart_rate_variance = $20
	WHERE id = $21`

func (s *PostgresStore) SaveReport(ctx context.Context, report model.WeeklyReport) (string, error) {
	if report.DateRange != "" {
		var existingID string
		err := s.pool.QueryRow(ctx, pgSelectExisting, report.DateRange).Scan(&existingID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return "", eris.Wrap(err, "postgres: check existing report")
		}
		if err == nil {
			return existingID, s.updateReport(ctx, existingID, report)
		}
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, pgInsertReport,
		id, report.DateRange, report.DateStart, report.DateEnd, report.StepTargetDaysMet,
		report.BestDaySteps, report.TotalSteps, report.AvgStepsPerDay, report.StepsVariance,
		report.TotalMiles, report.MilesVariance, report.AvgDailyCalorieBurn, report.CalorieBurnVariance,
		report.TotalActiveZoneMinutes, report.ActiveZoneMinutesVariance,
		report.AvgRestfulSleep, report.RestfulSleepMinutes, report.RestfulSleepVariance,
		report.AvgHoursWith250Steps, report.HoursWith250StepsVariance,
		report.AvgRestingHeartRate, report.RestingHeartRateVariance, now,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert report")
	}
	return id, nil
}

func (s *PostgresStore) updateReport(ctx context.Context, id string, report model.WeeklyReport) error {
	tag, err := s.pool.Exec(ctx, pgUpdateReport,
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
		return eris.Wrapf(err, "postgres: update report %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("report not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) ListReports(ctx context.Context) ([]model.WeeklyReport, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM fitbit_reports ORDER BY date_start DESC, date_end DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()
	return collectPgxReports(rows)
}

func (s *PostgresStore) ReportsByDateRange(ctx context.Context, startDate, endDate string) ([]model.WeeklyReport, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM fitbit_reports
		 WHERE date_start >= $1 AND date_end <= $2
		 ORDER BY date_start, date_end`,
		startDate, endDate,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: reports by date range")
	}
	defer rows.Close()
	return collectPgxReports(rows)
}

func (s *PostgresStore) DeleteReport(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fitbit_reports WHERE id = $1`, id)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: delete report %s", id)
	}
	return tag.RowsAffected() > 0, nil
}

func collectPgxReports(rows pgx.Rows) ([]model.WeeklyReport, error) {
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
