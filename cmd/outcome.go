package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/taskrouter/internal/model"
)

var outcomeFlags struct {
	taskID       string
	backend      string
	taskType     string
	estCost      float64
	actualCost   float64
	estQuality   float64
	quality      float64
	estLatencyMS int64
	latencyMS    int64
	satisfaction float64
	success      bool
	feedback     string
}

var outcomeCmd = &cobra.Command{
	Use:   "outcome",
	Short: "Report the result of an executed task",
	Long:  "Feeds an execution outcome into the benchmark store and the online learner. Estimates come from the original selection; actuals from the run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if outcomeFlags.backend == "" {
			return fmt.Errorf("--backend is required")
		}

		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		// Close drains the learner queue, so the outcome is durable by exit.
		defer env.Close()

		env.Router.RecordOutcome(model.OutcomeRecord{
			TaskID:             outcomeFlags.taskID,
			SelectedBackend:    outcomeFlags.backend,
			TaskType:           outcomeFlags.taskType,
			EstimatedCost:      outcomeFlags.estCost,
			ActualCost:         outcomeFlags.actualCost,
			EstimatedQuality:   outcomeFlags.estQuality,
			ActualQuality:      outcomeFlags.quality,
			EstimatedLatencyMS: outcomeFlags.estLatencyMS,
			ActualLatencyMS:    outcomeFlags.latencyMS,
			UserSatisfaction:   outcomeFlags.satisfaction,
			TaskSuccess:        outcomeFlags.success,
			Feedback:           outcomeFlags.feedback,
		})

		fmt.Printf("Outcome recorded for %s\n", outcomeFlags.backend)
		return nil
	},
}

func init() {
	outcomeCmd.Flags().StringVar(&outcomeFlags.taskID, "task-id", "", "task id from the original selection")
	outcomeCmd.Flags().StringVar(&outcomeFlags.backend, "backend", "", "backend that ran the task (required)")
	outcomeCmd.Flags().StringVar(&outcomeFlags.taskType, "task-type", "", "task type from the original request")
	outcomeCmd.Flags().Float64Var(&outcomeFlags.estCost, "estimated-cost", 0, "estimated cost in USD")
	outcomeCmd.Flags().Float64Var(&outcomeFlags.actualCost, "actual-cost", 0, "actual cost in USD")
	outcomeCmd.Flags().Float64Var(&outcomeFlags.estQuality, "estimated-quality", 0, "estimated quality (0-10)")
	outcomeCmd.Flags().Float64Var(&outcomeFlags.quality, "quality", 0, "actual quality (0-10)")
	outcomeCmd.Flags().Int64Var(&outcomeFlags.estLatencyMS, "estimated-latency-ms", 0, "estimated latency")
	outcomeCmd.Flags().Int64Var(&outcomeFlags.latencyMS, "latency-ms", 0, "actual latency")
	outcomeCmd.Flags().Float64Var(&outcomeFlags.satisfaction, "satisfaction", 0, "user satisfaction (0-10)")
	outcomeCmd.Flags().BoolVar(&outcomeFlags.success, "success", false, "whether the task succeeded")
	outcomeCmd.Flags().StringVar(&outcomeFlags.feedback, "feedback", "", "free-form feedback")
	rootCmd.AddCommand(outcomeCmd)
}
