package model

import "time"

// RunStatus represents the current state of an extraction run.
type RunStatus string

const (
	RunStatusStarting         RunStatus = "starting"
	RunStatusBrowserFailed    RunStatus = "browser_failed"
	RunStatusNavigationFailed RunStatus = "navigation_failed"
	RunStatusLoginFailed      RunStatus = "login_failed"
	RunStatusNoEmailsFound    RunStatus = "no_emails_found"
	RunStatusExtractionFailed RunStatus = "extraction_failed"
	RunStatusDatabaseFailed   RunStatus = "database_failed"
	RunStatusComplete         RunStatus = "complete"
	RunStatusError            RunStatus = "error"
)

// Intermediate statuses reported through the progress callback only; they
// never appear as a RunResult status.
const (
	RunStatusPlanning           RunStatus = "planning"
	RunStatusBrowserOpen        RunStatus = "browser_open"
	RunStatusNavigating         RunStatus = "navigating"
	RunStatusWaitingForLogin    RunStatus = "waiting_for_login"
	RunStatusSearching          RunStatus = "searching"
	RunStatusEmailsFound        RunStatus = "emails_found"
	RunStatusExtracting         RunStatus = "extracting"
	RunStatusExtractingEmail    RunStatus = "extracting_email"
	RunStatusExtractionComplete RunStatus = "extraction_complete"
	RunStatusSaving             RunStatus = "saving"
	RunStatusSaveComplete       RunStatus = "save_complete"
	RunStatusSummarizing        RunStatus = "summarizing"
)

// Terminal reports whether the status ends a run.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusBrowserFailed, RunStatusNavigationFailed, RunStatusLoginFailed,
		RunStatusNoEmailsFound, RunStatusExtractionFailed, RunStatusDatabaseFailed,
		RunStatusComplete, RunStatusError:
		return true
	}
	return false
}

// ExtractedMetrics is the raw model output for a single weekly report email.
// Each field may be absent, a string, or a number depending on what the model
// returned, so values stay untyped until normalization.
type ExtractedMetrics struct {
	DateRange                 any `json:"date_range"`
	StepTargetDaysMet         any `json:"step_target_days_met"`
	BestDaySteps              any `json:"best_day_steps"`
	TotalSteps                any `json:"total_steps"`
	AvgStepsPerDay            any `json:"avg_steps_per_day"`
	StepsVariance             any `json:"steps_variance"`
	TotalMiles                any `json:"total_miles"`
	MilesVariance             any `json:"miles_variance"`
	AvgDailyCalorieBurn       any `json:"avg_daily_calorie_burn"`
	CalorieBurnVariance       any `json:"calorie_burn_variance"`
	TotalActiveZoneMinutes    any `json:"total_active_zone_minutes"`
	ActiveZoneMinutesVariance any `json:"active_zone_minutes_variance"`
	AvgRestfulSleep           any `json:"avg_restful_sleep"`
	RestfulSleepVariance      any `json:"restful_sleep_variance"`
	AvgHoursWith250Steps      any `json:"avg_hours_with_250_steps"`
	HoursWith250StepsVariance any `json:"hours_with_250_steps_variance"`
	AvgRestingHeartRate       any `json:"avg_resting_heart_rate"`
	RestingHeartRateVariance  any `json:"resting_heart_rate_variance"`
}

// WeeklyReport is a normalized weekly report ready for persistence. The raw
// period label (DateRange) is the natural key; DateStart/DateEnd are derived
// ISO dates, empty when the label could not be parsed.
type WeeklyReport struct {
	ID                        string    `json:"id"`
	DateRange                 string    `json:"date_range"`
	DateStart                 string    `json:"date_start"`
	DateEnd                   string    `json:"date_end"`
	StepTargetDaysMet         int       `json:"step_target_days_met"`
	BestDaySteps              *int      `json:"best_day_steps"`
	TotalSteps                *int      `json:"total_steps"`
	AvgStepsPerDay            *float64  `json:"avg_steps_per_day"`
	StepsVariance             float64   `json:"steps_variance"`
	TotalMiles                *float64  `json:"total_miles"`
	MilesVariance             float64   `json:"miles_variance"`
	AvgDailyCalorieBurn       *float64  `json:"avg_daily_calorie_burn"`
	CalorieBurnVariance       float64   `json:"calorie_burn_variance"`
	TotalActiveZoneMinutes    *int      `json:"total_active_zone_minutes"`
	ActiveZoneMinutesVariance float64   `json:"active_zone_minutes_variance"`
	AvgRestfulSleep           string    `json:"avg_restful_sleep"`
	RestfulSleepMinutes       *int      `json:"restful_sleep_minutes"`
	RestfulSleepVariance      int       `json:"restful_sleep_variance"`
	AvgHoursWith250Steps      *float64  `json:"avg_hours_with_250_steps"`
	HoursWith250StepsVariance float64   `json:"hours_with_250_steps_variance"`
	AvgRestingHeartRate       *int      `json:"avg_resting_heart_rate"`
	RestingHeartRateVariance  string    `json:"resting_heart_rate_variance"`
	CreatedAt                 time.Time `json:"created_at"`
}

// RunResult holds the final outcome of an extraction run.
type RunResult struct {
	Status        RunStatus          `json:"status"`
	Summary       string             `json:"summary"`
	Error         string             `json:"error,omitempty"`
	ExtractedData []ExtractedMetrics `json:"extracted_data"`
	SavedRecords  []string           `json:"saved_records"`
}

// Progress is a single progress update emitted during a run. Percent is
// 0-100 and non-decreasing on the success path; failure updates report 0.
type Progress struct {
	Status  RunStatus `json:"status"`
	Message string    `json:"message"`
	Percent int       `json:"progress"`
}
