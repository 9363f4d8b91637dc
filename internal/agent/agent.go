package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/config"
	"github.com/scarnyc/fitbit-data-ai-agent/internal/model"
	"github.com/scarnyc/fitbit-data-ai-agent/internal/store"
	"github.com/scarnyc/fitbit-data-ai-agent/pkg/browser"
	"github.com/scarnyc/fitbit-data-ai-agent/pkg/gemini"
)

// Callback receives progress updates during a run.
type Callback func(model.Progress)

// System wires the four stages into the sequential extraction pipeline:
// open the browser, log in to Gmail, search for report emails, extract
// metrics with the model, persist them, and summarize the run.
type System struct {
	browser *BrowserStage
	search  *SearchStage
	extract *ExtractStage
	persist *PersistStage
	llm     gemini.Client

	gmailURL      string
	searchSubject string
	maxEmails     int
}

// New assembles the extraction system from its collaborators.
func New(cfg *config.Config, selectors config.Selectors, client browser.Client, llm gemini.Client, st store.Store) *System {
	return &System{
		browser:       NewBrowserStage(client, selectors, cfg.Gmail, cfg.Browser.Headless),
		search:        NewSearchStage(selectors, cfg.Gmail),
		extract:       NewExtractStage(llm, selectors, cfg.Gmail),
		persist:       NewPersistStage(st),
		llm:           llm,
		gmailURL:      cfg.Gmail.URL,
		searchSubject: cfg.Gmail.SearchSubject,
		maxEmails:     cfg.Agent.MaxEmails,
	}
}

// Run executes the full pipeline. startDate filters the Gmail search
// (YYYY/MM/DD); cb may be nil. Run always returns a RunResult with a
// terminal status, never an error: failures are reported in-band so callers
// and the HTTP status endpoint see the same shape either way.
func (s *System) Run(ctx context.Context, startDate string, cb Callback) model.RunResult {
	update := func(status model.RunStatus, message string, percent int) {
		if cb != nil {
			cb(model.Progress{Status: status, Message: message, Percent: percent})
		}
		zap.L().Info("run status",
			zap.String("status", string(status)),
			zap.String("message", message),
			zap.Int("progress", percent))
	}

	result := model.RunResult{Status: model.RunStatusStarting}

	failRun := func(status model.RunStatus, errMsg string) model.RunResult {
		update(status, "Error: "+errMsg, 0)
		result.Status = status
		result.Error = errMsg
		s.browser.Execute(ctx, "close", nil)
		return result
	}

	update(model.RunStatusPlanning, "Creating extraction plan...", 5)
	searchQuery := fmt.Sprintf("subject:%q after:%s", s.searchSubject, startDate)

	update(model.RunStatusBrowserOpen, "Opening browser...", 10)
	out := s.browser.Execute(ctx, "open", Params{})
	if !out.Success {
		update(model.RunStatusBrowserFailed, "Error: "+out.Error, 0)
		result.Status = model.RunStatusBrowserFailed
		result.Error = out.Error
		return result
	}

	update(model.RunStatusNavigating, "Navigating to Gmail...", 20)
	out = s.browser.Execute(ctx, "navigate", Params{"url": s.gmailURL})
	if !out.Success {
		return failRun(model.RunStatusNavigationFailed, out.Error)
	}

	update(model.RunStatusWaitingForLogin, "Please log in to your Gmail account...", 30)
	out = s.browser.Execute(ctx, "wait_for_login", nil)
	if !out.LoggedIn {
		errMsg := out.Error
		if errMsg == "" {
			errMsg = "Login failed or timed out"
		}
		return failRun(model.RunStatusLoginFailed, errMsg)
	}

	update(model.RunStatusSearching, "Searching for Fitbit emails with query: "+searchQuery, 40)
	out = s.search.Execute(ctx, "search", Params{
		"session": s.browser.Session(),
		"query":   searchQuery,
	})
	if !out.Success || !out.EmailsFound {
		errMsg := out.Error
		if errMsg == "" {
			errMsg = "No Fitbit emails found matching the search criteria"
		}
		return failRun(model.RunStatusNoEmailsFound, errMsg)
	}
	update(model.RunStatusEmailsFound, fmt.Sprintf("Found %d Fitbit emails", out.EmailCount), 50)

	update(model.RunStatusExtracting, "Extracting data from Fitbit emails...", 60)
	out = s.extract.Execute(ctx, "extract_from_emails", Params{
		"session":    s.browser.Session(),
		"max_emails": s.maxEmails,
		"progress": EmailProgressFunc(func(idx, total int) {
			update(model.RunStatusExtractingEmail,
				fmt.Sprintf("Processing email %d of %d", idx+1, total),
				60+(10*idx)/total)
		}),
	})
	if len(out.Extracted) == 0 {
		errMsg := out.Error
		if errMsg == "" {
			errMsg = "Failed to extract data from emails"
		}
		return failRun(model.RunStatusExtractionFailed, errMsg)
	}
	extracted := out.Extracted
	result.ExtractedData = extracted
	update(model.RunStatusExtractionComplete,
		fmt.Sprintf("Successfully extracted data from %d emails", len(extracted)), 70)

	update(model.RunStatusSaving, "Saving extracted data to database...", 80)
	out = s.persist.Execute(ctx, "save_metrics", Params{"metrics": extracted})
	if len(out.SavedIDs) == 0 {
		errMsg := out.Error
		if errMsg == "" {
			errMsg = "Failed to save data to database"
		}
		return failRun(model.RunStatusDatabaseFailed, errMsg)
	}
	result.SavedRecords = out.SavedIDs
	update(model.RunStatusSaveComplete,
		fmt.Sprintf("Successfully saved %d records to database", len(out.SavedIDs)), 90)

	update(model.RunStatusSummarizing, "Creating summary of extracted data...", 95)
	result.Summary = s.summarize(ctx, len(extracted), len(result.SavedRecords))
	result.Status = model.RunStatusComplete

	update(model.RunStatusComplete, "Data extraction complete!", 100)
	s.browser.Execute(ctx, "close", nil)

	return result
}

// summarize asks the model for a short run summary, falling back to a
// templated line when generation fails.
func (s *System) summarize(ctx context.Context, extracted, saved int) string {
	prompt := fmt.Sprintf(`Create a summary of the Fitbit data extraction process:

- %d emails were processed
- %d records were saved to the database

Highlight any trends or patterns in the data.`, extracted, saved)

	summary, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		zap.L().Warn("generate summary", zap.Error(err))
		return fmt.Sprintf(
			"Successfully extracted data from %d emails and saved %d records to the database.",
			extracted, saved)
	}
	return summary
}
