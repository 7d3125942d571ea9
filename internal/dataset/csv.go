package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"smartscholar/internal/features"
)

// WriteCSV writes students with a header of student_id, every feature,
// both labels and risk_score.
func WriteCSV(w io.Writer, students []Student) error {
	cw := csv.NewWriter(w)

	header := append([]string{StudentIDColumn}, TrainingColumns()...)
	header = append(header, RiskScoreColumn)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, s := range students {
		record := make([]string, 0, len(header))
		record = append(record, s.ID)
		for _, def := range features.Catalog() {
			v, _ := s.Features.Value(def.Name)
			record = append(record, formatValue(v))
		}
		record = append(record,
			strconv.Itoa(s.DropoutRisk),
			formatValue(s.PredictedGPA),
			formatValue(s.RiskScore),
		)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write %s: %w", s.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes students to a file, creating parent directories.
func SaveCSV(path string, students []Student) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	if err := WriteCSV(file, students); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadCSV reads a training dataset. Every feature column and both label
// columns must be present; other columns are ignored. The result holds the
// training columns only, in canonical order.
func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, Errorf("read", "empty input, no header")
		}
		return nil, Wrap("read", "failed to read CSV header", err)
	}

	indices := make(map[string]int, len(header))
	for i, col := range header {
		indices[col] = i
	}

	cols := TrainingColumns()
	positions := make([]int, len(cols))
	for k, name := range cols {
		i, ok := indices[name]
		if !ok {
			return nil, Errorf("read", "missing column %q", name)
		}
		positions[k] = i
	}

	var rows [][]float64
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, Wrap("read", fmt.Sprintf("line %d", line), err)
		}

		row := make([]float64, len(cols))
		for k, i := range positions {
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, Wrap("read", fmt.Sprintf("line %d column %q: not a number", line, cols[k]), err)
			}
			row[k] = v
		}
		rows = append(rows, row)
	}

	return New(cols, rows)
}

// LoadCSV reads a training dataset from a file.
func LoadCSV(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	ds, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Int("rows", ds.Len()).
		Msg("Dataset loaded")
	return ds, nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
