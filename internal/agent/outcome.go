// Package agent implements the Fitbit report extraction pipeline: a set of
// stage executors driven by a sequential orchestrator. Stages share a uniform
// envelope so the orchestrator only ever branches on Outcome.Success; raw
// errors never cross a stage boundary.
package agent

import "github.com/scarnyc/fitbit-data-ai-agent/internal/model"

// Params carries action-specific inputs into a stage executor.
type Params map[string]any

// Outcome is the uniform result envelope returned by every stage action.
// Only the fields relevant to the executed action are populated.
type Outcome struct {
	Success bool
	Error   string

	// wait_for_login
	LoggedIn bool

	// search
	EmailsFound bool
	EmailCount  int

	// extract_from_emails / parse_email
	Extracted []model.ExtractedMetrics
	Metrics   *model.ExtractedMetrics

	// save_metrics
	SavedIDs []string

	// get_metrics
	Reports []model.WeeklyReport
}

func fail(msg string) Outcome {
	return Outcome{Error: msg}
}

func failUnknownAction(action string) Outcome {
	return fail("unknown action: " + action)
}

// stringParam reads an optional string parameter.
func stringParam(params Params, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

// intParam reads an optional int parameter with a default.
func intParam(params Params, key string, def int) int {
	if v, ok := params[key].(int); ok {
		return v
	}
	return def
}
