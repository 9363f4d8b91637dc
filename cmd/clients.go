package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/config"
	"github.com/scarnyc/fitbit-data-ai-agent/pkg/browser"
	"github.com/scarnyc/fitbit-data-ai-agent/pkg/gemini"
)

func loadSelectors() (config.Selectors, error) {
	return config.LoadSelectors(cfg.Gmail.SelectorsFile)
}

func initBrowser() browser.Client {
	var opts []browser.Option
	if cfg.Browser.BaseURL != "" {
		opts = append(opts, browser.WithBaseURL(cfg.Browser.BaseURL))
	}
	return browser.NewClient(opts...)
}

func initGemini(ctx context.Context) (gemini.Client, error) {
	if cfg.Gemini.Key == "" {
		return nil, eris.New("gemini API key is required (FITBIT_GEMINI_KEY)")
	}

	opts := []gemini.Option{
		gemini.WithModel(cfg.Gemini.Model),
		gemini.WithTemperature(cfg.Gemini.Temperature),
		gemini.WithMaxOutputTokens(cfg.Gemini.MaxOutputTokens),
	}
	if cfg.Gemini.RequestsPerSecond > 0 {
		opts = append(opts, gemini.WithRateLimit(cfg.Gemini.RequestsPerSecond, cfg.Gemini.Burst))
	}

	return gemini.NewClient(ctx, cfg.Gemini.Key, opts...)
}
