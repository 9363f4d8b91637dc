package agent

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/config"
	"github.com/scarnyc/fitbit-data-ai-agent/pkg/browser"
)

// SearchStage runs Gmail searches on a borrowed browser session.
type SearchStage struct {
	selectors    config.Selectors
	selectorWait time.Duration
}

// NewSearchStage creates a search stage.
func NewSearchStage(selectors config.Selectors, gmail config.GmailConfig) *SearchStage {
	return &SearchStage{
		selectors:    selectors,
		selectorWait: time.Duration(gmail.SelectorWaitMS) * time.Millisecond,
	}
}

// Execute runs one search action. The only action is "search", which needs
// a "session" and a "query" parameter.
func (s *SearchStage) Execute(ctx context.Context, action string, params Params) Outcome {
	zap.L().Info("search stage", zap.String("action", action))

	if action != "search" {
		return failUnknownAction(action)
	}
	return s.search(ctx, params)
}

func (s *SearchStage) search(ctx context.Context, params Params) Outcome {
	sess, ok := params["session"].(browser.Session)
	if !ok || sess == nil {
		return fail("no session provided")
	}

	query := stringParam(params, "query")
	if query == "" {
		return fail("no search query provided")
	}

	if err := s.submitQuery(ctx, sess, query); err != nil {
		zap.L().Error("submit search", zap.Error(err))
		return fail(err.Error())
	}

	if err := sess.WaitForSelector(ctx, s.selectors.MainRegion, s.selectorWait); err != nil {
		zap.L().Error("wait for search results", zap.Error(err))
		return Outcome{Error: err.Error()}
	}

	// Gmail renders a banner instead of an empty list when nothing matches.
	noResults, err := sess.Exists(ctx, s.selectors.NoResults)
	if err != nil {
		return fail(err.Error())
	}
	if noResults {
		text, err := sess.InnerText(ctx, s.selectors.NoResults)
		if err == nil && strings.Contains(text, "No results found") {
			return Outcome{Success: true, EmailsFound: false}
		}
	}

	count, err := sess.Count(ctx, s.selectors.EmailRow)
	if err != nil {
		return fail(err.Error())
	}

	return Outcome{
		Success:     true,
		EmailsFound: count > 0,
		EmailCount:  count,
	}
}

// submitQuery types the query into the search bar and presses Enter. When
// the search input selector no longer matches the current markup it falls
// back to focusing the search region and typing through the keyboard.
func (s *SearchStage) submitQuery(ctx context.Context, sess browser.Session, query string) error {
	hasInput, err := sess.Exists(ctx, s.selectors.SearchInput)
	if err != nil {
		return err
	}

	if hasInput {
		if err := sess.Click(ctx, s.selectors.SearchInput); err != nil {
			return err
		}
		if err := sess.Fill(ctx, s.selectors.SearchInput, query); err != nil {
			return err
		}
		return sess.Press(ctx, s.selectors.SearchInput, "Enter")
	}

	if err := sess.Click(ctx, s.selectors.SearchRegion); err != nil {
		return err
	}
	if err := sess.Type(ctx, query); err != nil {
		return err
	}
	return sess.Press(ctx, "", "Enter")
}
