package store

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/model"
)

// csvHeader mirrors the report column order used by the store schema.
var csvHeader = []string{
	"id", "date_range", "date_start", "date_end", "step_target_days_met",
	"best_day_steps", "total_steps", "avg_steps_per_day", "steps_variance",
	"total_miles", "miles_variance", "avg_daily_calorie_burn", "calorie_burn_variance",
	"total_active_zone_minutes", "active_zone_minutes_variance",
	"avg_restful_sleep", "restful_sleep_minutes", "restful_sleep_variance",
	"avg_hours_with_250_steps", "hours_with_250_steps_variance",
	"avg_resting_heart_rate", "resting_heart_rate_variance", "created_at",
}

// ExportJSON renders reports as indented JSON.
func ExportJSON(reports []model.WeeklyReport) (string, error) {
	if reports == nil {
		reports = []model.WeeklyReport{}
	}
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "export: marshal json")
	}
	return string(data), nil
}

// ExportCSV renders reports as CSV with a header row. Null metrics become
// empty cells.
func ExportCSV(reports []model.WeeklyReport) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return "", eris.Wrap(err, "export: write header")
	}
	for _, r := range reports {
		row := []string{
			r.ID, r.DateRange, r.DateStart, r.DateEnd, strconv.Itoa(r.StepTargetDaysMet),
			intCell(r.BestDaySteps), intCell(r.TotalSteps), floatCell(r.AvgStepsPerDay), formatFloat(r.StepsVariance),
			floatCell(r.TotalMiles), formatFloat(r.MilesVariance), floatCell(r.AvgDailyCalorieBurn), formatFloat(r.CalorieBurnVariance),
			intCell(r.TotalActiveZoneMinutes), formatFloat(r.ActiveZoneMinutesVariance),
			r.AvgRestfulSleep, intCell(r.RestfulSleepMinutes), strconv.Itoa(r.RestfulSleepVariance),
			floatCell(r.AvgHoursWith250Steps), formatFloat(r.HoursWith250StepsVariance),
			intCell(r.AvgRestingHeartRate), r.RestingHeartRateVariance, r.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := w.Write(row); err != nil {
			return "", eris.Wrap(err, "export: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", eris.Wrap(err, "export: flush")
	}
	return buf.String(), nil
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
