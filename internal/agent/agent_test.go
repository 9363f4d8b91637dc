package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/config"
	"github.com/scarnyc/fitbit-data-ai-agent/internal/model"
	"github.com/scarnyc/fitbit-data-ai-agent/internal/store"
	"github.com/scarnyc/fitbit-data-ai-agent/pkg/browser"
)

// fakeSession is a scripted browser.Session. Interactions are recorded in
// calls; behavior is driven by the lookup maps.
type fakeSession struct {
	exists       map[string]bool
	counts       map[string]int
	texts        map[string]string
	waitErrs     map[string]error
	clickNthErrs map[int]error
	navErr       error

	calls  []string
	closed bool
}

func (f *fakeSession) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.record("navigate:" + url)
	return f.navErr
}

func (f *fakeSession) WaitForSelector(_ context.Context, selector string, _ time.Duration) error {
	f.record("wait:" + selector)
	return f.waitErrs[selector]
}

func (f *fakeSession) Exists(_ context.Context, selector string) (bool, error) {
	return f.exists[selector], nil
}

func (f *fakeSession) Count(_ context.Context, selector string) (int, error) {
	return f.counts[selector], nil
}

func (f *fakeSession) Click(_ context.Context, selector string) error {
	f.record("click:" + selector)
	return nil
}

func (f *fakeSession) ClickNth(_ context.Context, selector string, n int) error {
	f.record(fmt.Sprintf("clicknth:%s:%d", selector, n))
	return f.clickNthErrs[n]
}

func (f *fakeSession) Fill(_ context.Context, selector, text string) error {
	f.record("fill:" + selector + ":" + text)
	return nil
}

func (f *fakeSession) Type(_ context.Context, text string) error {
	f.record("type:" + text)
	return nil
}

func (f *fakeSession) Press(_ context.Context, selector, key string) error {
	f.record("press:" + selector + ":" + key)
	return nil
}

func (f *fakeSession) InnerText(_ context.Context, selector string) (string, error) {
	return f.texts[selector], nil
}

func (f *fakeSession) Close(_ context.Context) error {
	f.closed = true
	return nil
}

type fakeClient struct {
	sess *fakeSession
	err  error
}

func (f *fakeClient) OpenSession(_ context.Context, _ browser.OpenOptions) (browser.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sess, nil
}

// fakeLLM scripts gemini.Client with a per-prompt function.
type fakeLLM struct {
	generate func(prompt string) (string, error)
	prompts  []string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.generate(prompt)
}

func (f *fakeLLM) Close() error { return nil }

const metricsJSON = `{
	"date_range": "Mar. 3 - Mar. 9",
	"step_target_days_met": 5,
	"best_day_steps": 12500,
	"total_steps": 65000,
	"avg_steps_per_day": 9285.7,
	"steps_variance": "▼2,693 fewer than last week",
	"total_miles": 28.5,
	"miles_variance": "1.2 more than last week",
	"avg_daily_calorie_burn": 2450,
	"calorie_burn_variance": "120 more than last week",
	"total_active_zone_minutes": 180,
	"active_zone_minutes_variance": "30 fewer than last week",
	"avg_restful_sleep": "6 hrs 45 min",
	"restful_sleep_variance": "15 min more than last week",
	"avg_hours_with_250_steps": 8.2,
	"hours_with_250_steps_variance": "same as last week",
	"avg_resting_heart_rate": 62,
	"resting_heart_rate_variance": "▲2 bpm higher"
}`

func testConfig() *config.Config {
	return &config.Config{
		Gmail: config.GmailConfig{
			URL:            "https://gmail.com",
			SearchSubject:  "Your weekly progress report from Fitbit!",
			LoginWaitMS:    1000,
			SelectorWaitMS: 100,
		},
		Agent: config.AgentConfig{MaxEmails: 10},
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func happyPathSession(emailCount int) *fakeSession {
	sel := config.DefaultSelectors()
	return &fakeSession{
		exists: map[string]bool{
			sel.SearchInput: true,
		},
		counts: map[string]int{
			sel.EmailRow: emailCount,
		},
		texts: map[string]string{
			sel.MainRegion: "Your weekly progress report from Fitbit! Mar. 3 - Mar. 9 ...",
		},
	}
}

func llmWithMetrics() *fakeLLM {
	return &fakeLLM{generate: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Create a summary") {
			return "You walked a lot this week.", nil
		}
		return metricsJSON, nil
	}}
}

func TestRunCompletes(t *testing.T) {
	sess := happyPathSession(2)
	llm := llmWithMetrics()
	st := newTestStore(t)
	system := New(testConfig(), config.DefaultSelectors(), &fakeClient{sess: sess}, llm, st)

	var updates []model.Progress
	result := system.Run(context.Background(), "2024/06/01", func(p model.Progress) {
		updates = append(updates, p)
	})

	assert.Equal(t, model.RunStatusComplete, result.Status)
	assert.Empty(t, result.Error)
	assert.Len(t, result.ExtractedData, 2)
	assert.Len(t, result.SavedRecords, 2)
	assert.Equal(t, "You walked a lot this week.", result.Summary)
	assert.True(t, sess.closed)

	// Both emails carry the same period label, so the second save updates
	// the first row.
	reports, err := st.ListReports(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "Mar. 3 - Mar. 9", reports[0].DateRange)
	assert.Equal(t, -2693.0, reports[0].StepsVariance)

	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, model.RunStatusComplete, last.Status)
	assert.Equal(t, 100, last.Percent)

	// Percent is non-decreasing on the success path.
	prev := 0
	for _, u := range updates {
		assert.GreaterOrEqual(t, u.Percent, prev, "status %s", u.Status)
		prev = u.Percent
	}

	// The search query interpolates the subject and start date.
	assert.Contains(t, sess.calls,
		`fill:input[aria-label='Search mail']:subject:"Your weekly progress report from Fitbit!" after:2024/06/01`)
}

func TestRunBrowserFailed(t *testing.T) {
	client := &fakeClient{err: fmt.Errorf("driver unreachable")}
	system := New(testConfig(), config.DefaultSelectors(), client, llmWithMetrics(), newTestStore(t))

	var updates []model.Progress
	result := system.Run(context.Background(), "2024/06/01", func(p model.Progress) {
		updates = append(updates, p)
	})

	assert.Equal(t, model.RunStatusBrowserFailed, result.Status)
	assert.Contains(t, result.Error, "driver unreachable")

	last := updates[len(updates)-1]
	assert.Equal(t, model.RunStatusBrowserFailed, last.Status)
	assert.Equal(t, 0, last.Percent)
}

func TestRunNavigationFailed(t *testing.T) {
	sess := happyPathSession(0)
	sess.navErr = fmt.Errorf("net::ERR_NAME_NOT_RESOLVED")
	system := New(testConfig(), config.DefaultSelectors(), &fakeClient{sess: sess}, llmWithMetrics(), newTestStore(t))

	result := system.Run(context.Background(), "2024/06/01", nil)

	assert.Equal(t, model.RunStatusNavigationFailed, result.Status)
	assert.True(t, sess.closed)
}

func TestRunLoginFailed(t *testing.T) {
	sel := config.DefaultSelectors()
	sess := happyPathSession(0)
	sess.exists[sel.LoginMarker] = true
	sess.waitErrs = map[string]error{sel.MainRegion: fmt.Errorf("timeout waiting for selector")}
	system := New(testConfig(), sel, &fakeClient{sess: sess}, llmWithMetrics(), newTestStore(t))

	result := system.Run(context.Background(), "2024/06/01", nil)

	assert.Equal(t, model.RunStatusLoginFailed, result.Status)
	assert.Contains(t, result.Error, "timeout")
	assert.True(t, sess.closed)
}

func TestRunNoEmailsFound(t *testing.T) {
	sel := config.DefaultSelectors()
	sess := happyPathSession(0)
	sess.exists[sel.NoResults] = true
	sess.texts[sel.NoResults] = "No results found for your search"
	system := New(testConfig(), sel, &fakeClient{sess: sess}, llmWithMetrics(), newTestStore(t))

	result := system.Run(context.Background(), "2024/06/01", nil)

	assert.Equal(t, model.RunStatusNoEmailsFound, result.Status)
	assert.Equal(t, "No Fitbit emails found matching the search criteria", result.Error)
	assert.True(t, sess.closed)
}

func TestRunExtractionFailed(t *testing.T) {
	sess := happyPathSession(1)
	llm := &fakeLLM{generate: func(string) (string, error) {
		return "", fmt.Errorf("quota exceeded")
	}}
	system := New(testConfig(), config.DefaultSelectors(), &fakeClient{sess: sess}, llm, newTestStore(t))

	result := system.Run(context.Background(), "2024/06/01", nil)

	assert.Equal(t, model.RunStatusExtractionFailed, result.Status)
	assert.Equal(t, "Failed to extract data from emails", result.Error)
	assert.True(t, sess.closed)
}

func TestRunFallbackSummary(t *testing.T) {
	sess := happyPathSession(1)
	llm := &fakeLLM{generate: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Create a summary") {
			return "", fmt.Errorf("quota exceeded")
		}
		return metricsJSON, nil
	}}
	system := New(testConfig(), config.DefaultSelectors(), &fakeClient{sess: sess}, llm, newTestStore(t))

	result := system.Run(context.Background(), "2024/06/01", nil)

	assert.Equal(t, model.RunStatusComplete, result.Status)
	assert.Equal(t,
		"Successfully extracted data from 1 emails and saved 1 records to the database.",
		result.Summary)
}

func TestRunHonorsMaxEmails(t *testing.T) {
	sess := happyPathSession(8)
	cfg := testConfig()
	cfg.Agent.MaxEmails = 3
	system := New(cfg, config.DefaultSelectors(), &fakeClient{sess: sess}, llmWithMetrics(), newTestStore(t))

	result := system.Run(context.Background(), "2024/06/01", nil)

	assert.Equal(t, model.RunStatusComplete, result.Status)
	assert.Len(t, result.ExtractedData, 3)
}
