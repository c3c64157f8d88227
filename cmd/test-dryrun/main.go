package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/boyangli/landfillmap-producer/config"
	"github.com/boyangli/landfillmap-producer/emissions"
	"github.com/boyangli/landfillmap-producer/logging"
	"github.com/boyangli/landfillmap-producer/pipeline"
)

// Runs the full pipeline without Kafka and prints a sample of the estimates
func main() {
	classificationPath := flag.String("classification", "data/classification.csv", "Path to classification CSV")
	segmentationPath := flag.String("segmentation", "data/segmentation.csv", "Path to segmentation CSV")
	metadataPath := flag.String("metadata", "data/metadata.csv", "Path to site metadata CSV")
	modelPath := flag.String("model", "", "Emissions model YAML")
	limit := flag.Int("limit", 10, "Number of estimates to display")
	years := flag.Int("years", 0, "Also show cumulative CH4 for a site active this many years")
	flag.Parse()

	log.Println("╔═══════════════════════════════════════════════════════════╗")
	log.Println("║        DRY-RUN TEST (No Kafka Required)                  ║")
	log.Println("╚═══════════════════════════════════════════════════════════╝")
	log.Printf("Classification: %s", *classificationPath)
	log.Printf("Segmentation:   %s", *segmentationPath)
	log.Printf("Metadata:       %s", *metadataPath)
	log.Printf("Display Limit:  %d estimates", *limit)
	log.Println("───────────────────────────────────────────────────────────")

	cfg, err := config.NewPipelineConfig()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	if err := cfg.LoadModelFile(*modelPath); err != nil {
		log.Fatalf("❌ Failed to load emissions model: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, logging.FormatConsole)
	if err != nil {
		log.Fatalf("❌ Failed to create logger: %v", err)
	}
	defer logger.Sync()

	p, err := pipeline.New(cfg, pipeline.WithLogger(logger))
	if err != nil {
		log.Fatalf("❌ Failed to create pipeline: %v", err)
	}
	estimator, err := emissions.NewEstimator(cfg.Calibration.Emissions)
	if err != nil {
		log.Fatalf("❌ Invalid emissions model: %v", err)
	}

	startTime := time.Now()
	result, err := p.Run(context.Background(), pipeline.Sources{
		Classification: *classificationPath,
		Segmentation:   *segmentationPath,
		Metadata:       *metadataPath,
	})
	if err != nil {
		log.Fatalf("❌ Pipeline failed: %v", err)
	}
	elapsed := time.Since(startTime)

	log.Println("📋 Sample Estimates:")
	log.Println("═══════════════════════════════════════════════════════════")

	for i, e := range result.Estimates {
		if i >= *limit {
			break
		}
		out, err := json.MarshalIndent(e, "", "  ")
		if err != nil {
			log.Printf("⚠️  Failed to encode %s: %v", e.ImageID, err)
			continue
		}
		fmt.Println(string(out))
		if *years > 0 {
			cumulative := estimator.CumulativeCH4(emissions.Result{
				MassTonnes: e.TotalWasteMassTonnes,
				MCF:        e.MethaneCorrectionFactor,
				DecayRate:  e.DecayRate,
			}, *years)
			fmt.Printf("cumulative CH4 over %d years: %.2f t\n", *years, cumulative)
		}
		fmt.Println("───────────────────────────────────────────────────────────")
	}

	log.Println("📊 RUN SUMMARY:")
	log.Println("═══════════════════════════════════════════════════════════")
	log.Printf("✅ Processed: %d", result.Summary.ProcessedCount)
	log.Printf("🧩 With segmentation: %d", result.Summary.WithSegmentationCount)
	log.Printf("📍 With metadata: %d", result.Summary.WithMetadataCount)
	log.Printf("⏱️  Run Time: %v", elapsed)
	log.Println("═══════════════════════════════════════════════════════════")
	log.Println("✅ TEST PASSED - fusion and emission estimates working!")
	log.Println("💡 Next: run cmd/producer with -publish or -geojson to persist results")
}
