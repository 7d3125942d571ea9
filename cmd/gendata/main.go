package main

import (
	"flag"
	"fmt"
	"os"

	"smartscholar/internal/cfg"
	"smartscholar/internal/common"
	"smartscholar/internal/dataset"

	"github.com/rs/zerolog/log"
)

func main() {
	var (
		n        = flag.Int("n", 500, "Number of students to generate")
		seed     = flag.Int64("seed", 42, "Random seed")
		out      = flag.String("out", "student_data.csv", "Output CSV path")
		logLevel = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	cfg.SetupLogging(*logLevel, common.LogFormatConsole, os.Stderr)

	if *n <= 0 {
		log.Fatal().Int("n", *n).Msg("n must be positive")
	}

	students := dataset.Generate(*n, *seed)
	if err := dataset.SaveCSV(*out, students); err != nil {
		log.Fatal().Err(err).Str("path", *out).Msg("Failed to write dataset")
	}

	atRisk := 0
	for _, s := range students {
		atRisk += s.DropoutRisk
	}
	log.Info().
		Int("students", len(students)).
		Int("at_risk", atRisk).
		Str("path", *out).
		Msg("Generated dataset")
	fmt.Printf("Dropout rate: %.1f%%\n", 100*float64(atRisk)/float64(len(students)))
}
