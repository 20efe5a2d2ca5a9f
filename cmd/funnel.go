package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	funnelStart   string
	funnelEnd     string
	funnelSources bool
)

var funnelCmd = &cobra.Command{
	Use:   "funnel",
	Short: "Aggregate the four-stage conversion funnel",
	Long: `Fetches traffic and lead events from GA4 and deals from HubSpot for the
date range, classifies traffic into channels and prints the aggregated
funnel as JSON.

Date tokens: yesterday, today, NdaysAgo or YYYY-MM-DD.

Examples:
  # Last 30 days (default range)
  atlas-cli funnel

  # Fixed window
  atlas-cli funnel --start 2024-03-01 --end 2024-03-05

  # Deal and revenue attribution by CRM source
  atlas-cli funnel --sources --start 7daysAgo --end yesterday`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "funnel")
		if err != nil {
			return err
		}
		defer env.Close()

		// CLI output keeps "today" literal; substitution is an HTTP-path
		// behavior.
		dr, err := env.Orchestrator.ResolveRange(funnelStart, funnelEnd, false)
		if err != nil {
			return err
		}

		var out any
		if funnelSources {
			out, err = env.Orchestrator.DealSources(ctx, dr)
		} else {
			out, err = env.Orchestrator.Funnel(ctx, dr)
		}
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal funnel")
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	funnelCmd.Flags().StringVar(&funnelStart, "start", "", "start date token (default 30daysAgo)")
	funnelCmd.Flags().StringVar(&funnelEnd, "end", "", "end date token (default yesterday)")
	funnelCmd.Flags().BoolVar(&funnelSources, "sources", false, "print deal/revenue attribution by CRM source instead")
	rootCmd.AddCommand(funnelCmd)
}
