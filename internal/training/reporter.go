package training

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"smartscholar/internal/ml"
)

// summaryTopFeatures is how many features the summary headline names.
const summaryTopFeatures = 3

// Reporter writes training reports to a directory
type Reporter struct {
	report     *Report
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(report *Report, outputPath string) *Reporter {
	return &Reporter{
		report:     report,
		outputPath: outputPath,
	}
}

// GenerateReport writes the text summary and the JSON report
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}

	if err := r.generateJSONReport(); err != nil {
		return err
	}

	return nil
}

func (r *Reporter) summaryPath() string {
	return filepath.Join(r.outputPath, fmt.Sprintf("%s_training_summary.txt", r.report.ModelID))
}

func (r *Reporter) jsonPath() string {
	return filepath.Join(r.outputPath, fmt.Sprintf("%s_training_report.json", r.report.ModelID))
}

func (r *Reporter) generateSummary() error {
	path := r.summaryPath()
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	if err := WriteSummary(file, r.report); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	log.Info().Str("file", path).Msg("Summary report generated")
	return nil
}

// WriteSummary renders a human-readable summary of a run.
func WriteSummary(w io.Writer, rep *Report) error {
	ew := &errWriter{w: w}

	ew.printf("%s MODEL TRAINING SUMMARY\n", strings.ToUpper(string(rep.ModelID)))
	ew.printf("==========================\n\n")
	ew.printf("Version: %s\n", rep.Version)
	ew.printf("Kind: %s\n", rep.Kind)
	ew.printf("Trained: %s (%s)\n\n", rep.FinishedAt.Format("2006-01-02 15:04:05"), rep.Duration().Round(time.Millisecond))

	ew.printf("DATA\n")
	ew.printf("----\n")
	ew.printf("Rows: %d (train %d, test %d)\n", rep.Rows, rep.TrainRows, rep.TestRows)
	ew.printf("Features: %d\n", len(rep.Features))
	for _, name := range ClassNames {
		if n, ok := rep.ClassDistribution[name]; ok {
			ew.printf("  %s: %d students\n", name, n)
		}
	}
	ew.printf("Forest: %d trees, max depth %d\n\n", rep.Trees, rep.MaxDepth)

	if c := rep.Classification; c != nil {
		ew.printf("CLASSIFICATION METRICS\n")
		ew.printf("----------------------\n")
		ew.printf("Accuracy: %.2f%%\n\n", c.Accuracy*100)
		ew.printf("Confusion Matrix (rows true, columns predicted):\n")
		for _, row := range c.Confusion {
			for j, n := range row {
				if j > 0 {
					ew.printf(" ")
				}
				ew.printf("%5d", n)
			}
			ew.printf("\n")
		}
		ew.printf("\n%-10s %9s %9s %9s %9s\n", "", "precision", "recall", "f1", "support")
		for _, cm := range c.Classes {
			ew.printf("%-10s %9.2f %9.2f %9.2f %9d\n", cm.Label, cm.Precision, cm.Recall, cm.F1, cm.Support)
		}
		ew.printf("\n")
	}

	if g := rep.Regression; g != nil {
		ew.printf("REGRESSION METRICS\n")
		ew.printf("------------------\n")
		ew.printf("Mean Absolute Error: %.3f\n", g.MAE)
		ew.printf("Root Mean Squared Error: %.3f\n", g.RMSE)
		ew.printf("R² Score: %.3f\n\n", g.R2)
	}

	ew.printf("FEATURE IMPORTANCE\n")
	ew.printf("------------------\n")
	ew.printf("Top %d: %s\n\n", summaryTopFeatures, strings.Join(ml.TopFeatures(rep.Importances, summaryTopFeatures), ", "))
	for _, fi := range rep.Importances {
		ew.printf("%-24s %.4f\n", fi.Name, fi.Importance)
	}
	return ew.err
}

func (r *Reporter) generateJSONReport() error {
	path := r.jsonPath()

	data, err := json.MarshalIndent(struct {
		*Report
		GeneratedAt time.Time `json:"generated_at"`
	}{r.report, time.Now()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", path).Msg("JSON report generated")
	return nil
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
