package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var analyticsJSON bool

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show routing statistics and learned benchmarks",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		stats := env.Router.Stats(cmd.Context())

		if analyticsJSON {
			return json.NewEncoder(os.Stdout).Encode(stats)
		}

		fmt.Printf("Selections:        %d\n", stats.TotalSelections)
		fmt.Printf("Fallbacks:         %d\n", stats.Fallbacks)
		fmt.Printf("Filter bypasses:   %d\n", stats.FilterBypasses)
		fmt.Printf("Cache hit rate:    %.1f%%\n", stats.CacheHitRate*100)
		fmt.Printf("Avg confidence:    %.2f\n", stats.AverageConfidence)

		if len(stats.UsageByBackend) > 0 {
			fmt.Println("\nUsage by backend:")
			ids := make([]string, 0, len(stats.UsageByBackend))
			for id := range stats.UsageByBackend {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Printf("  %-24s %d\n", id, stats.UsageByBackend[id])
			}
		}

		if len(stats.Benchmarks) > 0 {
			fmt.Println("\nBenchmarks:")
			for _, e := range stats.Benchmarks {
				fmt.Printf("  %-24s success %.0f%%  quality %.1f  reliability %.1f  (%d tasks)\n",
					e.BackendID, e.SuccessRate()*100, e.AvgQuality, e.Reliability(), e.TotalTasks)
			}
		}

		return nil
	},
}

func init() {
	analyticsCmd.Flags().BoolVar(&analyticsJSON, "json", false, "print analytics as JSON")
	rootCmd.AddCommand(analyticsCmd)
}
