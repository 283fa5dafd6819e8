package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feedback-insights/backend/internal/analysis"
	"github.com/feedback-insights/backend/internal/evaluation"
	"github.com/feedback-insights/backend/internal/llm"
	"github.com/feedback-insights/backend/internal/metrics"
	"github.com/feedback-insights/backend/pkg/config"
	appLogger "github.com/feedback-insights/backend/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "evaluate <dataset.json>",
	Short: "Score insight extraction against a labelled feedback dataset",
	Long: `Run every item of a labelled dataset through the analysis engine and
report schema failures, priority accuracy and keyword recall.

The dataset is a JSON object:
  {"items": [{"id": 1, "text": "...", "source": "email",
              "expectedPriority": "high", "expectedKeywords": ["checkout"]}]}

Examples:
  evaluate testdata/feedback.json
  evaluate --model gpt-4o testdata/feedback.json`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	rootCmd.Flags().String("model", "", "override llm.model from the config")
	rootCmd.Flags().Bool("verbose", false, "print a line per item")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logCfg := config.LoggingConfig{Level: cfg.Logging.Level, Format: "console", OutputPath: "stderr"}
	if err := appLogger.Init(logCfg); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer appLogger.Sync()

	metrics.Init()

	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.LLM.Model = model
	}
	verbose, _ := cmd.Flags().GetBool("verbose")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading dataset: %w", err)
	}

	dataset, err := evaluation.LoadDatasetFromJSON(data)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := analysis.NewEngine(llm.NewClient(cfg.LLM), cfg.Analysis.MaxInputChars)
	evaluator := evaluation.NewEvaluator(engine)

	appLogger.Info("Evaluating dataset",
		zap.String("path", args[0]),
		zap.String("model", cfg.LLM.Model),
	)

	report, err := evaluator.RunDatasetEvaluation(ctx, dataset)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if verbose {
		for _, s := range report.Items {
			if s.Succeeded {
				fmt.Fprintf(out, "#%d priority=%s match=%t recall=%.2f\n", s.ID, s.Priority, s.PriorityMatch, s.KeywordRecall)
			} else {
				fmt.Fprintf(out, "#%d failed: %s\n", s.ID, s.FailureReason)
			}
		}
	}
	fmt.Fprint(out, evaluation.GenerateReport(report))

	return nil
}
