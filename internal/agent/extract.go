package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/config"
	"github.com/scarnyc/fitbit-data-ai-agent/internal/model"
	"github.com/scarnyc/fitbit-data-ai-agent/pkg/browser"
	"github.com/scarnyc/fitbit-data-ai-agent/pkg/gemini"
)

// EmailProgressFunc reports per-email extraction progress. idx is zero-based.
type EmailProgressFunc func(idx, total int)

// ExtractStage opens each email in the search results, reads its text, and
// has the model pull the weekly metrics out of it.
type ExtractStage struct {
	llm          gemini.Client
	selectors    config.Selectors
	selectorWait time.Duration
}

// NewExtractStage creates an extraction stage.
func NewExtractStage(llm gemini.Client, selectors config.Selectors, gmail config.GmailConfig) *ExtractStage {
	return &ExtractStage{
		llm:          llm,
		selectors:    selectors,
		selectorWait: time.Duration(gmail.SelectorWaitMS) * time.Millisecond,
	}
}

// Execute runs one extraction action: extract_from_emails or parse_email.
func (s *ExtractStage) Execute(ctx context.Context, action string, params Params) Outcome {
	zap.L().Info("extract stage", zap.String("action", action))

	switch action {
	case "extract_from_emails":
		return s.extractFromEmails(ctx, params)
	case "parse_email":
		return s.parseEmail(ctx, params)
	default:
		return failUnknownAction(action)
	}
}

func (s *ExtractStage) extractFromEmails(ctx context.Context, params Params) Outcome {
	sess, ok := params["session"].(browser.Session)
	if !ok || sess == nil {
		return fail("no session provided")
	}

	maxEmails := intParam(params, "max_emails", 10)
	progress, _ := params["progress"].(EmailProgressFunc)

	count, err := sess.Count(ctx, s.selectors.EmailRow)
	if err != nil {
		zap.L().Error("count emails", zap.Error(err))
		return fail(err.Error())
	}
	if count == 0 {
		return Outcome{Success: true}
	}

	total := count
	if total > maxEmails {
		total = maxEmails
	}

	var extracted []model.ExtractedMetrics
	for idx := 0; idx < total; idx++ {
		if progress != nil {
			progress(idx, total)
		}

		metrics, err := s.extractOne(ctx, sess, idx)
		if err != nil {
			zap.L().Warn("process email", zap.Int("index", idx+1), zap.Error(err))
			s.returnToInbox(ctx, sess)
			continue
		}
		if metrics != nil {
			extracted = append(extracted, *metrics)
		}
	}

	return Outcome{Success: true, Extracted: extracted}
}

// extractOne opens the idx-th result row, parses its body, and navigates
// back to the result list so the next row can be opened.
func (s *ExtractStage) extractOne(ctx context.Context, sess browser.Session, idx int) (*model.ExtractedMetrics, error) {
	if err := sess.ClickNth(ctx, s.selectors.EmailRow, idx); err != nil {
		return nil, err
	}
	if err := sess.WaitForSelector(ctx, s.selectors.MainRegion, s.selectorWait); err != nil {
		return nil, err
	}

	content, err := sess.InnerText(ctx, s.selectors.MainRegion)
	if err != nil {
		return nil, err
	}

	var metrics *model.ExtractedMetrics
	out := s.parseEmail(ctx, Params{"content": content})
	if out.Success {
		metrics = out.Metrics
	} else {
		zap.L().Warn("parse email", zap.Int("index", idx+1), zap.String("error", out.Error))
	}

	if err := sess.Click(ctx, s.selectors.BackToInbox); err != nil {
		return metrics, err
	}
	if err := sess.WaitForSelector(ctx, s.selectors.MainRegion, s.selectorWait); err != nil {
		return metrics, err
	}

	return metrics, nil
}

// returnToInbox is the best-effort recovery after a failed email; errors
// here are swallowed so the loop can try the next row.
func (s *ExtractStage) returnToInbox(ctx context.Context, sess browser.Session) {
	if err := sess.Click(ctx, s.selectors.BackToInbox); err != nil {
		return
	}
	_ = sess.WaitForSelector(ctx, s.selectors.MainRegion, s.selectorWait)
}

func (s *ExtractStage) parseEmail(ctx context.Context, params Params) Outcome {
	content := stringParam(params, "content")
	if content == "" {
		return fail("no content provided")
	}

	raw, err := s.llm.Generate(ctx, fmt.Sprintf(extractionPrompt, content))
	if err != nil {
		zap.L().Error("generate extraction", zap.Error(err))
		return fail(err.Error())
	}

	var metrics model.ExtractedMetrics
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &metrics); err != nil {
		// Malformed model output degrades to an empty record rather than
		// dropping the email.
		zap.L().Warn("unmarshal metrics", zap.Error(err))
		metrics = model.ExtractedMetrics{}
	}

	return Outcome{Success: true, Metrics: &metrics}
}

// extractionPrompt asks for the eighteen weekly-report metrics as a JSON
// object with fixed keys. The %s slot receives the email body text.
const extractionPrompt = `Extract the following metrics from this Fitbit weekly report email content:
1. Date Range (e.g., Mar. 3 - Mar. 9)
2. Number of Days Daily Step Target was Met (if available)
3. Best Day Steps Count (the highest number)
4. Total Steps that Week
5. Average Steps per Day
6. Variance in Total Steps compared to last week (number with direction)
7. Total Miles
8. Variance in Miles compared to last week (number with direction)
9. Average Daily Calorie Burn
10. Variance in Calorie Burn compared to last week (number with direction)
11. Total Active Zone Minutes
12. Variance in Active Zone Minutes compared to last week (number with direction)
13. Average Restful Sleep (in hours and minutes)
14. Variance in Restful Sleep compared to last week (in hours and minutes with direction)
15. Average Hours with 250+ Steps
16. Variance in Hours with 250+ Steps compared to last week (number with direction)
17. Average Resting Heart Rate (in bpm)
18. Variance in Resting Heart Rate compared to last week (with direction)

Format your response as a JSON object with these exact keys:
{
    "date_range": "",
    "step_target_days_met": null,
    "best_day_steps": null,
    "total_steps": null,
    "avg_steps_per_day": null,
    "steps_variance": null,
    "total_miles": null,
    "miles_variance": null,
    "avg_daily_calorie_burn": null,
    "calorie_burn_variance": null,
    "total_active_zone_minutes": null,
    "active_zone_minutes_variance": null,
    "avg_restful_sleep": "",
    "restful_sleep_variance": "",
    "avg_hours_with_250_steps": null,
    "hours_with_250_steps_variance": null,
    "avg_resting_heart_rate": null,
    "resting_heart_rate_variance": ""
}

For any metric not found in the email, set the value to null.
Only return the JSON object, nothing else.

Email content:
%s`

// cleanJSON extracts a JSON object from text that may carry markdown code
// fences or prose around it. Returns "{}" when no object is present.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "{}"
	}

	return text[start : end+1]
}
