package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/equilibri/equilibri-server/internal/synth"
	"github.com/equilibri/equilibri-server/internal/trainer"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	days := flag.Int("days", trainer.DefaultDays, "number of synthetic days to generate")
	seed := flag.Int64("seed", 42, "random seed for generation and training")
	out := flag.String("out", "model.json", "path for the model artifact")
	dataset := flag.String("dataset", "", "optional path to also export the labeled dataset as JSON")
	weightsFlag := flag.String("weights", "", "profile weight overrides, e.g. normal=0.5,athlete=0.5")
	flag.Parse()

	weights, err := synth.ParseWeights(*weightsFlag)
	if err != nil {
		log.Printf("Invalid -weights: %v", err)
		os.Exit(1)
	}

	summary, err := trainer.Run(trainer.Options{
		Days:        *days,
		Seed:        *seed,
		Weights:     weights,
		ModelPath:   *out,
		DatasetPath: *dataset,
	})
	if err != nil {
		log.Printf("Training failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("Trained %s on %d examples\n", summary.Family, summary.NumExamples)
	fmt.Printf("Validation MAE: %.2f\n", summary.MAE)
	fmt.Printf("Schema version: %d\n", summary.SchemaVersion)
	fmt.Printf("Duration: %s\n", summary.Duration.Round(time.Millisecond))
	fmt.Printf("Artifact: %s\n", *out)
}
