package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sells-group/taskrouter/internal/catalog"
	"github.com/sells-group/taskrouter/internal/model"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the backend catalog",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the catalog file and report validation errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := catalog.New(cfg.Catalog.Path)
		if err := cat.Load(); err != nil {
			return err
		}
		fmt.Printf("OK: %d backend(s) in %s\n", cat.Snapshot().Size(), cfg.Catalog.Path)
		return nil
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the configured backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := catalog.New(cfg.Catalog.Path)
		if err := cat.Load(); err != nil {
			return err
		}

		backends := cat.Snapshot().Profiles()
		sort.Slice(backends, func(i, j int) bool { return backends[i].ID < backends[j].ID })

		for _, b := range backends {
			fmt.Printf("%s (%s)\n", b.ID, b.Category)
			fmt.Printf("  cost: $%.4f in / $%.4f out per 1k   latency: %dms   context: %d   privacy: %.0f\n",
				b.CostPerUnitIn, b.CostPerUnitOut, b.AvgLatencyMS, b.ContextCapacity, b.PrivacyLevel)
			fmt.Printf("  capabilities: %s\n", formatCapabilities(b.Capabilities))
			if len(b.Specialties) > 0 {
				fmt.Printf("  specialties: %v\n", b.Specialties)
			}
		}
		return nil
	},
}

func formatCapabilities(caps map[model.Capability]float64) string {
	names := make([]string, 0, len(caps))
	for c := range caps {
		names = append(names, string(c))
	}
	sort.Strings(names)

	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%.1f", n, caps[model.Capability(n)])
	}
	return out
}

func init() {
	catalogCmd.AddCommand(catalogValidateCmd)
	catalogCmd.AddCommand(catalogShowCmd)
	rootCmd.AddCommand(catalogCmd)
}
