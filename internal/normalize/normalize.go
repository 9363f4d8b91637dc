// Package normalize converts raw metric values extracted from Fitbit weekly
// report emails into typed values ready for persistence. Every function is
// total: malformed input degrades to a zero value or nil, never an error.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/model"
)

var (
	periodRe   = regexp.MustCompile(`([A-Za-z]+\.?\s+\d+)\s*-\s*([A-Za-z]+\.?\s+\d+)`)
	hoursRe    = regexp.MustCompile(`(\d+)\s*hrs?`)
	minutesRe  = regexp.MustCompile(`(\d+)\s*min`)
	numberRe   = regexp.MustCompile(`[-+]?\d+\.?\d*`)
	nonNumeric = regexp.MustCompile(`[^\d.-]`)
)

var decreaseMarkers = []string{"▼", "fewer", "below", "lower", "less", "-"}
var increaseMarkers = []string{"▲", "more", "above", "higher", "extra", "+"}

// Period parses a label like "Mar. 3 - Mar. 9" into ISO start and end dates.
// The year is assumed to be the current year. Both results are empty when the
// label does not match or a month abbreviation is unknown.
func Period(label string) (start, end string) {
	m := periodRe.FindStringSubmatch(label)
	if m == nil {
		return "", ""
	}

	year := time.Now().Year()
	start = parseMonthDay(m[1], year)
	end = parseMonthDay(m[2], year)
	if start == "" || end == "" {
		return "", ""
	}
	return start, end
}

func parseMonthDay(s string, year int) string {
	s = strings.ReplaceAll(s, ".", "")
	t, err := time.Parse("Jan 2, 2006", fmt.Sprintf("%s, %d", s, year))
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// DurationMinutes parses a duration like "7 hrs 52 min" into total minutes.
// Returns nil when neither an hours nor a minutes component is present.
func DurationMinutes(text string) *int {
	if text == "" {
		return nil
	}

	matched := false
	total := 0
	if m := hoursRe.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		total += h * 60
		matched = true
	}
	if m := minutesRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		total += n
		matched = true
	}
	if !matched {
		return nil
	}
	return &total
}

// SignedVariance converts a week-over-week variance value into a signed
// number. Numbers pass through unchanged. Strings like
// "▼ 2,693 fewer than last week" resolve to a magnitude with the direction
// taken from marker words; "same as previous week" and unparseable input
// resolve to 0. A decrease marker wins when both directions appear.
func SignedVariance(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		return signedVarianceString(n)
	}
	return 0
}

func signedVarianceString(s string) float64 {
	if s == "" {
		return 0
	}
	if strings.Contains(strings.ToLower(s), "same") {
		return 0
	}

	negative := containsAny(s, decreaseMarkers)
	m := numberRe.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		return 0
	}
	value, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	if value < 0 {
		value = -value
	}
	if negative {
		return -value
	}
	return value
}

// SignedDurationVariance converts a sleep variance like
// "▼ 0 hrs 23 min lower than last week" into signed minutes. Same direction
// rules as SignedVariance; "same" and empty input resolve to 0.
func SignedDurationVariance(text string) int {
	if text == "" {
		return 0
	}
	if strings.Contains(strings.ToLower(text), "same") {
		return 0
	}

	total := 0
	if m := hoursRe.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		total += h * 60
	}
	if m := minutesRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		total += n
	}
	if containsAny(text, decreaseMarkers) {
		return -total
	}
	return total
}

// Int coerces a raw value to an integer. Strings are stripped to numeric
// characters first. Returns nil on empty or unparseable input.
func Int(v any) *int {
	f := Float(v)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

// Float coerces a raw value to a float. Strings are stripped to numeric
// characters first. Returns nil on empty or unparseable input.
func Float(v any) *float64 {
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	case string:
		clean := nonNumeric.ReplaceAllString(n, "")
		if clean == "" {
			return nil
		}
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

// Report normalizes raw extracted metrics into a persistable weekly report.
func Report(m model.ExtractedMetrics) model.WeeklyReport {
	r := model.WeeklyReport{
		DateRange:                rawString(m.DateRange),
		AvgRestfulSleep:          rawString(m.AvgRestfulSleep),
		RestingHeartRateVariance: rawString(m.RestingHeartRateVariance),
	}
	r.DateStart, r.DateEnd = Period(r.DateRange)

	if n := Int(m.StepTargetDaysMet); n != nil {
		r.StepTargetDaysMet = *n
	}
	r.BestDaySteps = Int(m.BestDaySteps)
	r.TotalSteps = Int(m.TotalSteps)
	r.AvgStepsPerDay = Float(m.AvgStepsPerDay)
	r.TotalMiles = Float(m.TotalMiles)
	r.AvgDailyCalorieBurn = Float(m.AvgDailyCalorieBurn)
	r.TotalActiveZoneMinutes = Int(m.TotalActiveZoneMinutes)
	r.AvgHoursWith250Steps = Float(m.AvgHoursWith250Steps)
	r.AvgRestingHeartRate = Int(m.AvgRestingHeartRate)

	r.StepsVariance = SignedVariance(m.StepsVariance)
	r.MilesVariance = SignedVariance(m.MilesVariance)
	r.CalorieBurnVariance = SignedVariance(m.CalorieBurnVariance)
	r.ActiveZoneMinutesVariance = SignedVariance(m.ActiveZoneMinutesVariance)
	r.HoursWith250StepsVariance = SignedVariance(m.HoursWith250StepsVariance)

	r.RestfulSleepMinutes = DurationMinutes(r.AvgRestfulSleep)
	r.RestfulSleepVariance = SignedDurationVariance(rawString(m.RestfulSleepVariance))

	return r
}

func rawString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
