package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/toktrack/usagepipe/pricing"
)

var pricingCmd = &cobra.Command{
	Use:   "pricing",
	Short: "Inspect and refresh the cached per-model pricing table",
}

var pricingRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force a network fetch of the published pricing table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		resolver := pricing.NewResolver(appConfig.Data.UserDataRoot, appConfig.Pricing.TTLOverride)
		table, err := resolver.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("pricing refresh: %w", err)
		}

		fmt.Printf("fetched %d model prices, cached at %s\n", len(table.Models), table.FetchedAt.Format(time.RFC3339))
		return nil
	},
}

var pricingShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the currently cached pricing table without contacting the network",
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver := pricing.NewResolver(appConfig.Data.UserDataRoot, appConfig.Pricing.TTLOverride)
		table := resolver.LoadCacheOnly()

		if len(table.Models) == 0 {
			fmt.Println("no cached pricing table; run `usagepipe pricing refresh`")
			return nil
		}

		models := make([]string, 0, len(table.Models))
		for model := range table.Models {
			models = append(models, model)
		}
		sort.Strings(models)

		fmt.Printf("cached at %s, %d models\n\n", table.FetchedAt.Format(time.RFC3339), len(models))
		for _, model := range models {
			p := table.Models[model]
			fmt.Printf("%-40s in=$%s/MTok out=$%s/MTok cache_read=$%s/MTok\n",
				model,
				humanize.FormatFloat("#,###.##", p.InputPerMTok),
				humanize.FormatFloat("#,###.##", p.OutputPerMTok),
				humanize.FormatFloat("#,###.##", p.CacheReadPerMTok),
			)
		}
		return nil
	},
}

func init() {
	pricingCmd.AddCommand(pricingRefreshCmd)
	pricingCmd.AddCommand(pricingShowCmd)
}
