package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/toktrack/usagepipe/aggregate"
	"github.com/toktrack/usagepipe/models"
	"github.com/toktrack/usagepipe/pipeline"
)

var reportCold bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print aggregated token usage and cost per source and model",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		p := pipeline.New(appConfig, location())

		var result pipeline.Result
		var err error
		if reportCold || !p.HasFreshAll() {
			result, err = p.LoadCold(ctx)
		} else {
			result, err = p.LoadWarm(ctx)
		}
		if err != nil {
			return fmt.Errorf("report: %w", err)
		}

		_, byModel, bySource := pipeline.AggregateSummaries(result)

		printReportTable(bySource, byModel)
		for _, w := range result.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w.Error())
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportCold, "cold", false, "force a full re-scan instead of the warm incremental path")
}

func printReportTable(bySource []aggregate.SourceTotal, byModel map[string]models.ModelStat) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "SOURCE\tTOKENS\tCOST")
	for _, s := range bySource {
		fmt.Fprintf(w, "%s\t%s\t$%.2f\n", s.Source, humanize.Comma(s.Total.TotalTokens()), s.Total.TotalCostUSD)
	}
	w.Flush()

	fmt.Println()

	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tTOKENS\tCOST")
	for model, stat := range byModel {
		fmt.Fprintf(w, "%s\t%s\t$%.2f\n", model, humanize.Comma(stat.TotalTokens()), stat.CostUSD)
	}
	w.Flush()
}
