package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/agent"
	"github.com/scarnyc/fitbit-data-ai-agent/internal/config"
	"github.com/scarnyc/fitbit-data-ai-agent/internal/model"
	"github.com/scarnyc/fitbit-data-ai-agent/internal/store"
)

func newServeTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedReport(t *testing.T, st store.Store, label, start, end string) string {
	t.Helper()

	totalSteps := 65000
	id, err := st.SaveReport(context.Background(), model.WeeklyReport{
		DateRange:  label,
		DateStart:  start,
		DateEnd:    end,
		TotalSteps: &totalSteps,
	})
	require.NoError(t, err)
	return id
}

func completedRunner(result model.RunResult) runnerFunc {
	return func(_ context.Context, _ string, cb agent.Callback) model.RunResult {
		if cb != nil {
			cb(model.Progress{Status: model.RunStatusPlanning, Message: "Creating extraction plan...", Percent: 5})
		}
		return result
	}
}

func setupServeTest(t *testing.T, run runnerFunc) (*httptest.Server, store.Store, *runState) {
	t.Helper()

	cfg = &config.Config{Agent: config.AgentConfig{StartDate: "2024/06/01"}}
	st := newServeTestStore(t)
	state := newRunState()
	srv := httptest.NewServer(newRouter(context.Background(), st, run, state))
	t.Cleanup(srv.Close)
	return srv, st, state
}

func TestHealth(t *testing.T) {
	srv, _, _ := setupServeTest(t, completedRunner(model.RunResult{Status: model.RunStatusComplete}))

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestStartExtraction(t *testing.T) {
	srv, _, _ := setupServeTest(t, completedRunner(model.RunResult{
		Status:       model.RunStatusComplete,
		Summary:      "All done.",
		SavedRecords: []string{"a", "b"},
	}))

	resp, err := http.Post(srv.URL+"/start-extraction", "application/json",
		strings.NewReader(`{"start_date": "2024/06/01"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "started", body["status"])

	// The run finishes in the background; status converges on complete.
	require.Eventually(t, func() bool {
		st, err := http.Get(srv.URL + "/status")
		if err != nil {
			return false
		}
		defer st.Body.Close()

		var status statusResponse
		if err := json.NewDecoder(st.Body).Decode(&status); err != nil {
			return false
		}
		return status.Status == model.RunStatusComplete &&
			status.Progress == 100 &&
			status.DataCount == 2 &&
			status.Message == "All done."
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartExtractionConflict(t *testing.T) {
	release := make(chan struct{})
	blocked := make(chan struct{})
	srv, _, _ := setupServeTest(t, func(_ context.Context, _ string, _ agent.Callback) model.RunResult {
		close(blocked)
		<-release
		return model.RunResult{Status: model.RunStatusComplete}
	})
	defer close(release)

	resp, err := http.Post(srv.URL+"/start-extraction", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	<-blocked

	resp, err = http.Post(srv.URL+"/start-extraction", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStartExtractionFailureState(t *testing.T) {
	srv, _, _ := setupServeTest(t, completedRunner(model.RunResult{
		Status: model.RunStatusLoginFailed,
		Error:  "Login failed or timed out",
	}))

	resp, err := http.Post(srv.URL+"/start-extraction", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		st, err := http.Get(srv.URL + "/status")
		if err != nil {
			return false
		}
		defer st.Body.Close()

		var status statusResponse
		if err := json.NewDecoder(st.Body).Decode(&status); err != nil {
			return false
		}
		return status.Status == model.RunStatusLoginFailed && status.Progress == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAPIMetrics(t *testing.T) {
	srv, st, _ := setupServeTest(t, completedRunner(model.RunResult{Status: model.RunStatusComplete}))

	resp, err := http.Get(srv.URL + "/api/metrics")
	require.NoError(t, err)
	var reports []model.WeeklyReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reports))
	resp.Body.Close()
	assert.Empty(t, reports)

	seedReport(t, st, "Mar. 3 - Mar. 9", "2025-03-03", "2025-03-09")
	seedReport(t, st, "Mar. 10 - Mar. 16", "2025-03-10", "2025-03-16")

	resp, err = http.Get(srv.URL + "/api/metrics")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reports))
	resp.Body.Close()
	require.Len(t, reports, 2)
	assert.Equal(t, "Mar. 10 - Mar. 16", reports[0].DateRange)
}

func TestAPIMetricsRange(t *testing.T) {
	srv, st, _ := setupServeTest(t, completedRunner(model.RunResult{Status: model.RunStatusComplete}))
	seedReport(t, st, "Mar. 3 - Mar. 9", "2025-03-03", "2025-03-09")
	seedReport(t, st, "Jun. 2 - Jun. 8", "2025-06-02", "2025-06-08")

	resp, err := http.Get(srv.URL + "/api/metrics/range?start=2025-03-01&end=2025-03-31")
	require.NoError(t, err)
	defer resp.Body.Close()

	var reports []model.WeeklyReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "Mar. 3 - Mar. 9", reports[0].DateRange)

	missing, err := http.Get(srv.URL + "/api/metrics/range?start=2025-03-01")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusBadRequest, missing.StatusCode)
}

func TestExportData(t *testing.T) {
	srv, st, _ := setupServeTest(t, completedRunner(model.RunResult{Status: model.RunStatusComplete}))
	seedReport(t, st, "Mar. 3 - Mar. 9", "2025-03-03", "2025-03-09")

	t.Run("csv", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/export-data?format=csv")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "fitbit_data.csv")

		records, err := csv.NewReader(resp.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "date_range", records[0][1])
		assert.Equal(t, "Mar. 3 - Mar. 9", records[1][1])
	})

	t.Run("json", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/export-data?format=json")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var reports []model.WeeklyReport
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&reports))
		assert.Len(t, reports, 1)
	})

	t.Run("unsupported", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/export-data?format=xml")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestDeleteMetric(t *testing.T) {
	srv, st, _ := setupServeTest(t, completedRunner(model.RunResult{Status: model.RunStatusComplete}))
	id := seedReport(t, st, "Mar. 3 - Mar. 9", "2025-03-03", "2025-03-09")

	resp, err := http.Post(srv.URL+"/delete-metric/"+id, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	reports, err := st.ListReports(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports)

	again, err := http.Post(srv.URL+"/delete-metric/"+id, "application/json", nil)
	require.NoError(t, err)
	defer again.Body.Close()
	assert.Equal(t, http.StatusNotFound, again.StatusCode)
}
