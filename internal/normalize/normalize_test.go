package normalize

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/model"
)

func TestPeriod(t *testing.T) {
	year := time.Now().Year()

	tests := []struct {
		name      string
		label     string
		wantStart string
		wantEnd   string
	}{
		{
			name:      "abbreviated months with periods",
			label:     "Mar. 3 - Mar. 9",
			wantStart: fmt.Sprintf("%d-03-03", year),
			wantEnd:   fmt.Sprintf("%d-03-09", year),
		},
		{
			name:      "months without periods",
			label:     "Jan 15 - Jan 21",
			wantStart: fmt.Sprintf("%d-01-15", year),
			wantEnd:   fmt.Sprintf("%d-01-21", year),
		},
		{
			name:      "range crossing months",
			label:     "Apr. 28 - May. 4",
			wantStart: fmt.Sprintf("%d-04-28", year),
			wantEnd:   fmt.Sprintf("%d-05-04", year),
		},
		{
			name:      "no separator",
			label:     "March 2024",
			wantStart: "",
			wantEnd:   "",
		},
		{
			name:      "unknown month name",
			label:     "Foo. 3 - Bar. 9",
			wantStart: "",
			wantEnd:   "",
		},
		{
			name:      "empty label",
			label:     "",
			wantStart: "",
			wantEnd:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := Period(tt.label)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestDurationMinutes(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *int
	}{
		{"hours and minutes", "7 hrs 52 min", intPtr(472)},
		{"single hr", "1 hr 5 min", intPtr(65)},
		{"minutes only", "45 min", intPtr(45)},
		{"hours only", "8 hrs", intPtr(480)},
		{"embedded in sentence", "you slept 6 hrs 10 min on average", intPtr(370)},
		{"no duration", "not applicable", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DurationMinutes(tt.text)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestSignedVariance(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"float passthrough", 123.5, 123.5},
		{"negative float passthrough", -42.0, -42.0},
		{"nil", nil, 0},
		{"empty string", "", 0},
		{"same as previous week", "same as previous week", 0},
		{"Same capitalized", "Same", 0},
		{"decrease arrow with commas", "▼2,693 fewer than last week", -2693},
		{"increase arrow", "▲ 4 cals. over last week", 4},
		{"fewer word", "120 fewer steps", -120},
		{"more word", "350 more than last week", 350},
		{"plus sign", "+500", 500},
		{"minus sign", "-200", -200},
		{"plain number string", "17", 17},
		{"decrease wins over increase", "▼ 3 fewer but more restful", -3},
		{"no numeric token", "no change worth noting", 0},
		{"unsupported type", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SignedVariance(tt.in))
		})
	}
}

func TestSignedDurationVariance(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"decrease hours and minutes", "▼ 0 hrs 23 min lower than last week", -23},
		{"increase", "▲ 1 hr 10 min more than last week", 70},
		{"minutes only decrease", "15 min less", -15},
		{"same", "same as previous week", 0},
		{"empty", "", 0},
		{"no components", "slightly better", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SignedDurationVariance(tt.text))
		})
	}
}

func TestIntAndFloat(t *testing.T) {
	assert.Nil(t, Int(nil))
	assert.Nil(t, Int(""))
	assert.Nil(t, Int("n/a"))
	assert.Equal(t, 12847, *Int("12,847 steps"))
	assert.Equal(t, 62, *Int(62.0))
	assert.Equal(t, 9, *Int("9.4"))

	assert.Nil(t, Float(nil))
	assert.Nil(t, Float(""))
	assert.Nil(t, Float("----"))
	assert.Equal(t, 23.4, *Float("23.4 miles"))
	assert.Equal(t, 7.5, *Float(7.5))
}

func TestReport(t *testing.T) {
	year := time.Now().Year()

	m := model.ExtractedMetrics{
		DateRange:                 "Mar. 3 - Mar. 9",
		StepTargetDaysMet:         "5",
		BestDaySteps:              "12,847",
		TotalSteps:                64230.0,
		AvgStepsPerDay:            "9,175.7",
		StepsVariance:             "▼2,693 fewer than last week",
		TotalMiles:                "23.4",
		MilesVariance:             "▲ 1.2 more than last week",
		AvgDailyCalorieBurn:       2215.0,
		CalorieBurnVariance:       "▲ 4 cals. over last week",
		TotalActiveZoneMinutes:    "312",
		ActiveZoneMinutesVariance: "same as previous week",
		AvgRestfulSleep:           "7 hrs 52 min",
		RestfulSleepVariance:      "▼ 0 hrs 23 min lower than last week",
		AvgHoursWith250Steps:      "9.4",
		HoursWith250StepsVariance: "▲ 0.6 more than last week",
		AvgRestingHeartRate:       "62 bpm",
		RestingHeartRateVariance:  "same as previous week",
	}

	r := Report(m)

	assert.Equal(t, "Mar. 3 - Mar. 9", r.DateRange)
	assert.Equal(t, fmt.Sprintf("%d-03-03", year), r.DateStart)
	assert.Equal(t, fmt.Sprintf("%d-03-09", year), r.DateEnd)
	assert.Equal(t, 5, r.StepTargetDaysMet)
	require.NotNil(t, r.BestDaySteps)
	assert.Equal(t, 12847, *r.BestDaySteps)
	require.NotNil(t, r.TotalSteps)
	assert.Equal(t, 64230, *r.TotalSteps)
	assert.Equal(t, -2693.0, r.StepsVariance)
	assert.Equal(t, 1.2, r.MilesVariance)
	assert.Equal(t, 4.0, r.CalorieBurnVariance)
	assert.Equal(t, 0.0, r.ActiveZoneMinutesVariance)
	assert.Equal(t, "7 hrs 52 min", r.AvgRestfulSleep)
	require.NotNil(t, r.RestfulSleepMinutes)
	assert.Equal(t, 472, *r.RestfulSleepMinutes)
	assert.Equal(t, -23, r.RestfulSleepVariance)
	require.NotNil(t, r.AvgRestingHeartRate)
	assert.Equal(t, 62, *r.AvgRestingHeartRate)
	assert.Equal(t, "same as previous week", r.RestingHeartRateVariance)
}

func TestReportEmptyMetrics(t *testing.T) {
	r := Report(model.ExtractedMetrics{})

	assert.Empty(t, r.DateRange)
	assert.Empty(t, r.DateStart)
	assert.Empty(t, r.DateEnd)
	assert.Equal(t, 0, r.StepTargetDaysMet)
	assert.Nil(t, r.BestDaySteps)
	assert.Nil(t, r.TotalSteps)
	assert.Nil(t, r.RestfulSleepMinutes)
	assert.Equal(t, 0.0, r.StepsVariance)
	assert.Equal(t, 0, r.RestfulSleepVariance)
}

func intPtr(n int) *int { return &n }
