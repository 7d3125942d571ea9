package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"smartscholar/internal/cfg"
	"smartscholar/internal/common"
	"smartscholar/internal/dataset"
	"smartscholar/internal/features"
	"smartscholar/internal/metrics"
	"smartscholar/internal/storage"
	"smartscholar/internal/training"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	var (
		dataPath    = flag.String("data", "student_data.csv", "Path to the training CSV")
		model       = flag.String("model", "all", "Model to train: dropout, gpa, all")
		outputPath  = flag.String("out", "", "Store directory (default ARTIFACT_DIR for file, DATA_PATH for bolt)")
		reportPath  = flag.String("report", "reports", "Output directory for training reports")
		backend     = flag.String("backend", config.StorageBackend, "Artifact backend: file, bolt")
		trees       = flag.Int("trees", 0, "Override the number of trees per forest")
		metricsFile = flag.String("metrics-file", "", "Write training metrics in Prometheus text format to this file")
		logLevel    = flag.String("log-level", config.LogLevel, "Log level: debug, info, warn, error")
		listRuns    = flag.String("runs", "", "List recorded runs for a model (bolt backend) and exit")
		since       = flag.Duration("since", 0, "With -runs, only runs finished within this long ago")
	)
	flag.Parse()

	cfg.SetupLogging(*logLevel, common.LogFormatConsole, os.Stderr)

	if *outputPath == "" {
		*outputPath = storage.Dir(*backend, config.ArtifactDir, config.DataPath)
	}

	if *listRuns != "" {
		if err := printRuns(*backend, *outputPath, features.ModelID(*listRuns), *since); err != nil {
			log.Fatal().Err(err).Msg("Failed to list runs")
		}
		return
	}

	ids, err := parseModels(*model)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -model")
	}

	fmt.Println("=== Training Configuration ===")
	fmt.Printf("Data: %s\n", *dataPath)
	fmt.Printf("Models: %v\n", ids)
	fmt.Printf("Backend: %s\n", *backend)
	fmt.Printf("Artifacts: %s\n", *outputPath)
	fmt.Printf("Reports: %s\n", *reportPath)
	fmt.Println("==============================")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ds, err := dataset.LoadCSV(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load training data")
	}
	log.Info().Int("rows", ds.Len()).Str("path", *dataPath).Msg("Loaded training data")

	store, err := storage.Open(*backend, *outputPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open artifact store")
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	mw := metrics.NewWrapper(metrics.NewWithRegistry(registry))

	for _, id := range ids {
		tc := training.DefaultConfig(id)
		if *trees > 0 {
			tc.Forest.Trees = *trees
		}

		artifact, report, err := training.Train(ctx, ds, id, tc)
		if err != nil {
			log.Fatal().Err(err).Str("model", string(id)).Msg("Training failed")
		}
		if err := store.Save(artifact); err != nil {
			log.Fatal().Err(err).Str("model", string(id)).Msg("Failed to save artifact")
		}
		if runs, ok := store.(*storage.Store); ok {
			if err := runs.RecordRun(report); err != nil {
				log.Warn().Err(err).Str("model", string(id)).Msg("Failed to record training run")
			}
		}

		if err := training.NewReporter(report, *reportPath).GenerateReport(); err != nil {
			log.Fatal().Err(err).Msg("Failed to generate report")
		}
		mw.TrainingRunObserve(string(id), report.Duration().Seconds(), report.MetricMap())

		if err := training.WriteSummary(os.Stdout, report); err != nil {
			log.Warn().Err(err).Msg("Failed to print summary")
		}
	}

	if *metricsFile != "" {
		if err := writeMetrics(registry, *metricsFile); err != nil {
			log.Fatal().Err(err).Msg("Failed to write metrics file")
		}
	}

	fmt.Printf("\nArtifacts saved to: %s\n", *outputPath)
	fmt.Printf("Reports saved to: %s\n", *reportPath)
}

// printRuns lists the run log of a bolt store, oldest first.
func printRuns(backend, dir string, id features.ModelID, since time.Duration) error {
	if _, err := features.Order(id); err != nil {
		return err
	}
	if backend != storage.BackendBolt {
		return fmt.Errorf("run log needs the %s backend, got %q", storage.BackendBolt, backend)
	}
	store, err := storage.New(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	var runs []training.Report
	if since > 0 {
		now := time.Now()
		runs, err = store.RunsBetween(id, now.Add(-since), now)
	} else {
		runs, err = store.ListRuns(id)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%-20s %-36s %8s %s\n", "FINISHED", "VERSION", "ROWS", "METRICS")
	for _, r := range runs {
		fmt.Printf("%-20s %-36s %8d %v\n", r.FinishedAt.Format("2006-01-02 15:04:05"), r.Version, r.Rows, r.MetricMap())
	}
	fmt.Printf("%d run(s)\n", len(runs))
	return nil
}

func parseModels(s string) ([]features.ModelID, error) {
	switch s {
	case "all":
		return features.Models(), nil
	case string(features.Dropout):
		return []features.ModelID{features.Dropout}, nil
	case string(features.GPA):
		return []features.ModelID{features.GPA}, nil
	default:
		return nil, fmt.Errorf("unknown model %q", s)
	}
}

// writeMetrics dumps the registry in the text exposition format, for a
// node exporter textfile collector.
func writeMetrics(g prometheus.Gatherer, path string) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(f, mf); err != nil {
			return err
		}
	}
	return nil
}
