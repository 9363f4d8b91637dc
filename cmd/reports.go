package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/store"
)

var (
	reportsJSON         bool
	reportsExportFormat string
	reportsExportOutput string
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect stored weekly reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored weekly reports",
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

		reports, err := st.ListReports(ctx)
		if err != nil {
			return err
		}

		if reportsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(reports)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPERIOD\tTOTAL STEPS\tMILES\tRESTING HR")
		for _, r := range reports {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.DateRange,
				intField(r.TotalSteps), floatField(r.TotalMiles), intField(r.AvgRestingHeartRate))
		}
		return w.Flush()
	},
}

var reportsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored reports as CSV or JSON",
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

		reports, err := st.ListReports(ctx)
		if err != nil {
			return err
		}

		var data string
		switch reportsExportFormat {
		case "csv":
			data, err = store.ExportCSV(reports)
		case "json":
			data, err = store.ExportJSON(reports)
		default:
			return eris.Errorf("unsupported export format: %s", reportsExportFormat)
		}
		if err != nil {
			return err
		}

		if reportsExportOutput == "" {
			fmt.Print(data)
			return nil
		}
		if err := os.WriteFile(reportsExportOutput, []byte(data), 0o644); err != nil {
			return eris.Wrapf(err, "write %s", reportsExportOutput)
		}
		fmt.Printf("wrote %d reports to %s\n", len(reports), reportsExportOutput)
		return nil
	},
}

var reportsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored report by id",
	Args:  cobra.ExactArgs(1),
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

		deleted, err := st.DeleteReport(ctx, args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return eris.Errorf("report not found: %s", args[0])
		}
		fmt.Printf("deleted report %s\n", args[0])
		return nil
	},
}

func intField(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func floatField(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func init() {
	reportsListCmd.Flags().BoolVar(&reportsJSON, "json", false, "output as JSON")
	reportsExportCmd.Flags().StringVar(&reportsExportFormat, "format", "csv", "export format (csv or json)")
	reportsExportCmd.Flags().StringVar(&reportsExportOutput, "output", "", "write to file instead of stdout")

	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsExportCmd)
	reportsCmd.AddCommand(reportsDeleteCmd)
	rootCmd.AddCommand(reportsCmd)
}
