package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/config"
	"github.com/scarnyc/fitbit-data-ai-agent/pkg/browser"
)

// BrowserStage owns the driver session for a run. It opens the browser,
// navigates, waits out the interactive Gmail login, and closes the session;
// the other stages borrow the session through Session().
type BrowserStage struct {
	client       browser.Client
	selectors    config.Selectors
	headless     bool
	loginWait    time.Duration
	selectorWait time.Duration

	sess browser.Session
}

// NewBrowserStage creates a browser stage against the given driver client.
func NewBrowserStage(client browser.Client, selectors config.Selectors, gmail config.GmailConfig, headless bool) *BrowserStage {
	return &BrowserStage{
		client:       client,
		selectors:    selectors,
		headless:     headless,
		loginWait:    time.Duration(gmail.LoginWaitMS) * time.Millisecond,
		selectorWait: time.Duration(gmail.SelectorWaitMS) * time.Millisecond,
	}
}

// Session returns the live driver session, nil before open or after close.
func (s *BrowserStage) Session() browser.Session {
	return s.sess
}

// Execute runs one browser action: open, navigate, wait_for_login, or close.
func (s *BrowserStage) Execute(ctx context.Context, action string, params Params) Outcome {
	zap.L().Info("browser stage", zap.String("action", action))

	switch action {
	case "open":
		return s.open(ctx, params)
	case "navigate":
		return s.navigate(ctx, params)
	case "wait_for_login":
		return s.waitForLogin(ctx)
	case "close":
		return s.close(ctx)
	default:
		return failUnknownAction(action)
	}
}

func (s *BrowserStage) open(ctx context.Context, params Params) Outcome {
	headless := s.headless
	if v, ok := params["headless"].(bool); ok {
		headless = v
	}

	sess, err := s.client.OpenSession(ctx, browser.OpenOptions{Headless: headless})
	if err != nil {
		zap.L().Error("open browser", zap.Error(err))
		return fail(err.Error())
	}
	s.sess = sess

	return Outcome{Success: true}
}

func (s *BrowserStage) navigate(ctx context.Context, params Params) Outcome {
	url := stringParam(params, "url")
	if url == "" {
		return fail("no URL provided")
	}
	if s.sess == nil {
		return fail("browser not open")
	}

	if err := s.sess.Navigate(ctx, url); err != nil {
		zap.L().Error("navigate", zap.String("url", url), zap.Error(err))
		return fail(err.Error())
	}

	return Outcome{Success: true}
}

// waitForLogin blocks until the Gmail main pane appears. When the login form
// is on screen it waits the long interactive timeout so a human can sign in;
// otherwise the session is assumed authenticated and gets the short wait.
func (s *BrowserStage) waitForLogin(ctx context.Context) Outcome {
	if s.sess == nil {
		return fail("browser not open")
	}

	loginDetected, err := s.sess.Exists(ctx, s.selectors.LoginMarker)
	if err != nil {
		zap.L().Error("check login page", zap.Error(err))
		return fail(err.Error())
	}

	wait := s.selectorWait
	if loginDetected {
		zap.L().Info("login page detected, waiting for user to sign in",
			zap.Duration("timeout", s.loginWait))
		wait = s.loginWait
	}

	if err := s.sess.WaitForSelector(ctx, s.selectors.MainRegion, wait); err != nil {
		zap.L().Error("wait for login", zap.Error(err))
		return fail(err.Error())
	}

	return Outcome{Success: true, LoggedIn: true}
}

func (s *BrowserStage) close(ctx context.Context) Outcome {
	if s.sess == nil {
		return Outcome{Success: true}
	}

	err := s.sess.Close(ctx)
	s.sess = nil
	if err != nil {
		zap.L().Warn("close browser", zap.Error(err))
		return fail(err.Error())
	}

	return Outcome{Success: true}
}
