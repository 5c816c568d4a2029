// Command emigo trains an emission-level model from a CSV table and serves
// predictions from a saved model.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/emigo/dataset"
	"github.com/YuminosukeSato/emigo/pipeline"
	"github.com/YuminosukeSato/emigo/pkg/log"
)

var (
	logLevel  string
	logFormat string
)

func main() {
	root := &cobra.Command{
		Use:   "emigo",
		Short: "Gradient-boosted emission level modelling",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch logLevel {
			case "debug", "info", "warn", "error":
			default:
				return fmt.Errorf("invalid log level %q", logLevel)
			}
			if logFormat == "json" {
				log.UseSlog(logLevel)
			} else {
				log.SetLevel(levelFromString(logLevel))
			}
			log.BridgeWarnings()
			return nil
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")

	root.AddCommand(newTrainCmd(), newPredictCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func levelFromString(s string) log.Level {
	switch s {
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}

func newTrainCmd() *cobra.Command {
	var (
		configPath string
		dataPath   string
		modelPath  string
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run the full training pipeline on a CSV table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pipeline.LoadConfig(configPath)
			if err != nil {
				return err
			}

			table, err := readTable(dataPath, cfg)
			if err != nil {
				return err
			}

			p, err := pipeline.NewPipeline(cfg)
			if err != nil {
				return err
			}
			if err := p.Fit(cmd.Context(), table); err != nil {
				return err
			}

			if err := p.Save(modelPath); err != nil {
				return err
			}

			best := p.BestResult().Candidate
			fmt.Fprintf(cmd.OutOrStdout(),
				"run %s: holdout %s=%.4f, best candidate #%d (leaf=%d depth=%d lr=%.3f gate=%.3f), model saved to %s\n",
				p.RunID(), cfg.SelectionMetric, p.HoldoutScore(),
				best.Index, best.MinSamplesLeaf, best.MaxDepth, best.LearningRate, best.MinLossReduction,
				modelPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "emigo.yaml", "pipeline config file")
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "training data CSV")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "model.gob", "output model path")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newPredictCmd() *cobra.Command {
	var (
		modelPath string
		dataPath  string
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict emission levels with a saved model",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.Load(modelPath)
			if err != nil {
				return err
			}

			table, err := readTable(dataPath, p.Config())
			if err != nil {
				return err
			}

			preds, err := p.Predict(table)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			ids := make([]string, len(preds))
			values := make([]float64, len(preds))
			for i, pred := range preds {
				ids[i] = pred.ID
				values[i] = pred.Value
			}
			return dataset.WritePredictions(out, table.IDName(), ids, p.Config().TargetColumn, values)
		},
	}

	cmd.Flags().StringVarP(&modelPath, "model", "m", "model.gob", "saved model path")
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "input data CSV")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output CSV (default stdout)")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func readTable(path string, cfg pipeline.Config) (*dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dataset.ReadCSV(f, cfg.IDColumn, cfg.CategoricalColumns)
}
