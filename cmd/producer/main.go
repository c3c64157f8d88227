package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/boyangli/landfillmap-producer/config"
	"github.com/boyangli/landfillmap-producer/ingestion"
	"github.com/boyangli/landfillmap-producer/logging"
	"github.com/boyangli/landfillmap-producer/metrics"
	"github.com/boyangli/landfillmap-producer/pipeline"
	"github.com/boyangli/landfillmap-producer/producer"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found, using environment variables")
	}

	fs := flag.NewFlagSet("producer", flag.ContinueOnError)
	classificationPath := fs.String("classification", "data/classification.csv", "Path to classification CSV")
	segmentationPath := fs.String("segmentation", "data/segmentation.csv", "Path to segmentation CSV")
	metadataPath := fs.String("metadata", "data/metadata.csv", "Path to site metadata CSV")
	modelPath := fs.String("model", "", "Emissions model YAML (overrides EMISSIONS_MODEL_FILE)")
	geojsonPath := fs.String("geojson", "", "Write estimates as a GeoJSON FeatureCollection to this path")
	publish := fs.Bool("publish", false, "Publish estimates to Kafka")
	workers := fs.Int("workers", 0, "Number of estimation workers (overrides WORKERS)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.NewPipelineConfig()
	if err != nil {
		log.Printf("❌ Invalid configuration: %v", err)
		return 1
	}
	if *modelPath != "" {
		if err := cfg.LoadModelFile(*modelPath); err != nil {
			log.Printf("❌ Failed to load emissions model: %v", err)
			return 1
		}
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Printf("❌ Failed to create logger: %v", err)
		return 1
	}
	defer logger.Sync()

	log.Println("╔═══════════════════════════════════════════════════════════╗")
	log.Println("║   LandfillMap - Detection Fusion & Emissions Producer     ║")
	log.Println("╚═══════════════════════════════════════════════════════════╝")
	log.Printf("Classification: %s", *classificationPath)
	log.Printf("Segmentation:   %s", *segmentationPath)
	log.Printf("Metadata:       %s", *metadataPath)
	log.Printf("Model file:     %s", modelSource(cfg.ModelFile))
	log.Printf("Raster:         %.0fx%.0f px", cfg.Calibration.Raster.WidthPx, cfg.Calibration.Raster.HeightPx)
	log.Printf("Workers:        %d", cfg.Workers)
	log.Println("───────────────────────────────────────────────────────────")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sinks producer.MultiSink
	if *geojsonPath != "" {
		sinks = append(sinks, producer.NewGeoJSONWriter(*geojsonPath, logger))
	}

	var kafkaProducer *producer.KafkaProducer
	if *publish {
		kafkaProducer, err = producer.NewKafkaProducer(config.NewKafkaConfig(), logger)
		if err != nil {
			log.Printf("❌ Failed to create Kafka producer: %v", err)
			return 1
		}
		defer kafkaProducer.Close()
		sinks = append(sinks, kafkaProducer)
	}

	collector := metrics.NewCollector()
	opts := []pipeline.Option{pipeline.WithLogger(logger), pipeline.WithMetrics(collector)}
	if len(sinks) > 0 {
		opts = append(opts, pipeline.WithSink(sinks))
	}

	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		log.Printf("❌ Failed to create pipeline: %v", err)
		return 1
	}

	startTime := time.Now()
	result, runErr := p.Run(ctx, pipeline.Sources{
		Classification: *classificationPath,
		Segmentation:   *segmentationPath,
		Metadata:       *metadataPath,
	})
	elapsed := time.Since(startTime)

	if cfg.MetricsTextfile != "" {
		if err := collector.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Warn("metrics export failed", zap.Error(err))
		}
	}

	if result == nil {
		if errors.Is(runErr, ingestion.ErrSourceNotFound) {
			log.Printf("❌ Missing input: %v", runErr)
		} else {
			log.Printf("❌ Pipeline failed: %v", runErr)
		}
		return 1
	}
	if runErr != nil {
		log.Printf("⚠️  Persistence errors: %v", runErr)
	}

	var totalCH4, totalCO2 float64
	for _, e := range result.Estimates {
		totalCH4 += e.CH4TonnesPerYear
		totalCO2 += e.CO2eqTonnesPerYear
	}

	// Final report
	log.Println("═══════════════════════════════════════════════════════════")
	log.Println("                    FINAL REPORT")
	log.Println("═══════════════════════════════════════════════════════════")
	log.Printf("🆔 Run ID: %s", result.RunID)
	log.Printf("🗑️  Processed: %d", result.Summary.ProcessedCount)
	log.Printf("💾 Persisted: %d", result.Summary.PersistedCount)
	log.Printf("🧩 With segmentation: %d", result.Summary.WithSegmentationCount)
	log.Printf("📍 With metadata: %d", result.Summary.WithMetadataCount)
	log.Printf("🔥 CH4: %.2f t/year | CO2eq: %.2f t/year", totalCH4, totalCO2)
	log.Printf("⏱️  Total Time: %v", elapsed)
	if kafkaProducer != nil {
		kafkaProducer.LogMetrics()
	}
	log.Println("═══════════════════════════════════════════════════════════")

	if runErr != nil {
		return 1
	}
	return 0
}

func modelSource(path string) string {
	if path == "" {
		return "built-in defaults"
	}
	return path
}
