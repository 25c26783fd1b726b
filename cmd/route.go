package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/taskrouter/internal/model"
)

var routeFlags struct {
	strategy     string
	domain       string
	taskType     string
	privacy      float64
	maxCost      float64
	maxLatencyMS int64
	quality      float64
	urgency      float64
	prefs        []string
	execute      bool
	jsonOut      bool
}

var routeCmd = &cobra.Command{
	Use:   "route [content]",
	Short: "Select the best backend for a task",
	Long:  "Analyzes the task content, filters and scores the catalog, and prints the selected backend. With --execute the task is run on the selection and the outcome is fed back to the learner.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		req := model.RouteRequest{
			Content:          strings.Join(args, " "),
			Domain:           routeFlags.domain,
			TaskType:         routeFlags.taskType,
			PrivacyLevel:     routeFlags.privacy,
			MaxCost:          routeFlags.maxCost,
			MaxLatencyMS:     routeFlags.maxLatencyMS,
			QualityThreshold: routeFlags.quality,
			Urgency:          routeFlags.urgency,
			Strategy:         routeFlags.strategy,
		}

		res := env.Router.Select(ctx, req, parsePrefs(routeFlags.prefs))

		if routeFlags.jsonOut {
			if err := json.NewEncoder(os.Stdout).Encode(res); err != nil {
				return err
			}
		} else {
			printSelection(res)
		}

		if !routeFlags.execute {
			return nil
		}
		return executeSelection(cmd, env, req, res)
	},
}

func executeSelection(cmd *cobra.Command, env *engine, req model.RouteRequest, res model.SelectionResult) error {
	exec, err := env.Executor()
	if err != nil {
		return err
	}

	start := time.Now()
	out, err := exec.Execute(cmd.Context(), res.SelectedBackend, req.Content)
	if err != nil {
		// A failed run is still an outcome worth learning from.
		env.Router.RecordOutcome(model.OutcomeRecord{
			SelectedBackend:    res.SelectedBackend,
			EstimatedCost:      res.EstimatedCost,
			EstimatedQuality:   res.Breakdown.Capability,
			EstimatedLatencyMS: res.EstimatedLatencyMS,
			ActualLatencyMS:    time.Since(start).Milliseconds(),
			TaskSuccess:        false,
			Feedback:           err.Error(),
		})
		return err
	}

	env.Router.RecordOutcome(model.OutcomeRecord{
		SelectedBackend:    res.SelectedBackend,
		TaskType:           req.TaskType,
		EstimatedCost:      res.EstimatedCost,
		ActualCost:         out.CostUSD,
		EstimatedQuality:   res.Breakdown.Capability,
		EstimatedLatencyMS: res.EstimatedLatencyMS,
		ActualLatencyMS:    out.LatencyMS,
		TaskSuccess:        true,
	})

	zap.L().Info("route: execution complete",
		zap.String("backend_id", out.BackendID),
		zap.Float64("cost_usd", out.CostUSD),
		zap.Int64("latency_ms", out.LatencyMS),
	)

	fmt.Println()
	fmt.Println(out.Output)
	return nil
}

func printSelection(res model.SelectionResult) {
	fmt.Printf("Selected: %s (score %.2f, confidence %.2f)\n",
		res.SelectedBackend, res.Breakdown.Total, res.Confidence)
	fmt.Printf("Rationale: %s\n", res.Rationale)
	fmt.Printf("Estimated: $%.4f, %dms\n", res.EstimatedCost, res.EstimatedLatencyMS)
	if res.CacheHit {
		fmt.Println("(cached decision)")
	}
	for _, alt := range res.Alternatives {
		fmt.Printf("  alternative: %s (%.2f)\n", alt.ID, alt.Score)
	}
}

// parsePrefs turns repeated key=value flags into a map.
func parsePrefs(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	prefs := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if k, v, ok := strings.Cut(p, "="); ok {
			prefs[k] = v
		}
	}
	return prefs
}

func init() {
	routeCmd.Flags().StringVar(&routeFlags.strategy, "strategy", "", "selection strategy (auto, cost_first, quality_first, speed_first, roi_focused, domain_specialized)")
	routeCmd.Flags().StringVar(&routeFlags.domain, "domain", "", "task domain hint")
	routeCmd.Flags().StringVar(&routeFlags.taskType, "task-type", "", "declared task type")
	routeCmd.Flags().Float64Var(&routeFlags.privacy, "privacy", 0, "minimum privacy level (0-10)")
	routeCmd.Flags().Float64Var(&routeFlags.maxCost, "max-cost", 0, "maximum cost per 1k units in USD")
	routeCmd.Flags().Int64Var(&routeFlags.maxLatencyMS, "max-latency-ms", 0, "maximum acceptable latency")
	routeCmd.Flags().Float64Var(&routeFlags.quality, "quality-threshold", 0, "minimum capability score per required capability")
	routeCmd.Flags().Float64Var(&routeFlags.urgency, "urgency", 0, "urgency (0-10)")
	routeCmd.Flags().StringSliceVar(&routeFlags.prefs, "pref", nil, "user preference as key=value (repeatable)")
	routeCmd.Flags().BoolVar(&routeFlags.execute, "execute", false, "run the task on the selected backend and record the outcome")
	routeCmd.Flags().BoolVar(&routeFlags.jsonOut, "json", false, "print the full selection result as JSON")
	rootCmd.AddCommand(routeCmd)
}
