package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/connector"
	"github.com/sells-group/atlas-cli/internal/export"
	"github.com/sells-group/atlas-cli/internal/orchestrator"
	"github.com/sells-group/atlas-cli/internal/store"
)

var (
	reportStart      string
	reportEnd        string
	reportConnectors []string
	reportSave       bool
	reportXLSX       string
	reportListLimit  int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a markdown funnel report",
	Long: `Runs the full report pipeline: concurrent connector fetch, funnel
aggregation, optional Claude insight generation and markdown formatting.

Examples:
  # Report over the default range using all configured connectors
  atlas-cli report

  # Fixed window, GA4 and HubSpot only, persisted and exported
  atlas-cli report --start 2024-03-01 --end 2024-03-05 \
    --connectors ga4,hubspot --save --xlsx funnel.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "report")
		if err != nil {
			return err
		}
		defer env.Close()

		req := orchestrator.Request{
			StartDate:  reportStart,
			EndDate:    reportEnd,
			Connectors: reportConnectors,
		}
		if len(req.Connectors) == 0 {
			req.Connectors = connector.ValidNames
		}

		rep, err := env.Orchestrator.GenerateReport(ctx, req)
		if err != nil {
			return err
		}

		if reportSave {
			if err := env.Store.SaveReport(ctx, toStoredReport(rep, req)); err != nil {
				return eris.Wrap(err, "save report")
			}
			zap.L().Info("report saved", zap.String("report_id", rep.ReportID))
		}

		if reportXLSX != "" {
			if err := export.WriteFunnelXLSX(reportXLSX, rep.Funnel, rep.Sources); err != nil {
				return err
			}
			zap.L().Info("workbook written", zap.String("path", reportXLSX))
		}

		fmt.Println(rep.Markdown)
		if rep.Partial {
			fmt.Printf("⚠️  Partial data, degraded providers: %s\n", strings.Join(rep.Degraded, ", "))
		}
		fmt.Printf("Report %s generated in %.1fs\n", rep.ReportID, rep.Metadata.ExecutionTimeSeconds)
		return nil
	},
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, "report")
		if err != nil {
			return err
		}
		defer env.Close()

		reports, err := env.Store.ListReports(ctx, store.ReportFilter{Limit: reportListLimit})
		if err != nil {
			return err
		}

		if len(reports) == 0 {
			fmt.Println("no stored reports")
			return nil
		}
		for _, r := range reports {
			flag := ""
			if r.Partial {
				flag = "  [partial]"
			}
			fmt.Printf("%s  %s..%s  %s  %ds%s\n",
				r.ID, r.StartDate, r.EndDate,
				strings.Join(r.Connectors, ","), r.ExecSeconds, flag)
		}
		return nil
	},
}

var reportGetCmd = &cobra.Command{
	Use:   "get <report-id>",
	Short: "Print one stored report as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, "report")
		if err != nil {
			return err
		}
		defer env.Close()

		rep, err := env.Store.GetReport(ctx, args[0])
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal report")
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportStart, "start", "", "start date token (default 30daysAgo)")
	reportCmd.Flags().StringVar(&reportEnd, "end", "", "end date token (default yesterday)")
	reportCmd.Flags().StringSliceVar(&reportConnectors, "connectors", nil, "connectors to fetch (default all configured)")
	reportCmd.Flags().BoolVar(&reportSave, "save", false, "persist the report to the store")
	reportCmd.Flags().StringVar(&reportXLSX, "xlsx", "", "also write the funnel to this .xlsx path")
	reportListCmd.Flags().IntVar(&reportListLimit, "limit", 20, "max reports to list")

	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportGetCmd)
	rootCmd.AddCommand(reportCmd)
}
