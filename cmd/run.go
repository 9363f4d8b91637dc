package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/agent"
	"github.com/scarnyc/fitbit-data-ai-agent/internal/model"
)

var (
	runStartDate string
	runMaxEmails int
	runHeadless  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full extraction pass over Gmail",
	Long:  "Opens a browser session, waits for you to sign in to Gmail, then searches for Fitbit weekly report emails, extracts the metrics, and saves them to the store. The result is printed as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		selectors, err := loadSelectors()
		if err != nil {
			return err
		}

		llm, err := initGemini(ctx)
		if err != nil {
			return err
		}
		defer llm.Close()

		if cmd.Flags().Changed("start-date") {
			cfg.Agent.StartDate = runStartDate
		}
		if cmd.Flags().Changed("max-emails") {
			cfg.Agent.MaxEmails = runMaxEmails
		}
		if cmd.Flags().Changed("headless") {
			cfg.Browser.Headless = runHeadless
		}

		system := agent.New(cfg, selectors, initBrowser(), llm, st)

		result := system.Run(ctx, cfg.Agent.StartDate, func(p model.Progress) {
			zap.L().Info("progress",
				zap.String("status", string(p.Status)),
				zap.String("message", p.Message),
				zap.Int("progress", p.Percent))
		})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return eris.Wrap(err, "encode result")
		}

		if result.Status != model.RunStatusComplete {
			return eris.Errorf("extraction ended with status %s: %s", result.Status, result.Error)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runStartDate, "start-date", "2024/06/01", "only search emails after this date (YYYY/MM/DD)")
	runCmd.Flags().IntVar(&runMaxEmails, "max-emails", 10, "maximum number of emails to process")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "run the browser headless")
	rootCmd.AddCommand(runCmd)
}
