package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/meditriage/platform/pkg/common/config"
	"github.com/meditriage/platform/pkg/common/database"
	"github.com/meditriage/platform/pkg/common/kafka"
	"github.com/meditriage/platform/pkg/common/logger"
	"github.com/meditriage/platform/pkg/predictions"
	"github.com/meditriage/platform/pkg/triage/deployment"
	"github.com/meditriage/platform/pkg/triage/model"
	"github.com/meditriage/platform/pkg/triage/predictor"
	"github.com/meditriage/platform/pkg/visits"
)

// Backfill computes predictions for visits that predate the service,
// or that arrived while it was down. One-shot; run it from cron or a
// job runner.
func main() {
	limit := flag.Int("limit", 500, "maximum number of visits to process")
	publish := flag.Bool("publish", false, "publish prediction events for backfilled visits")
	flag.Parse()

	logger.Init("triage-backfill")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.ClosePostgres()

	visitRepo := visits.NewRepository(db)
	predictionRepo := predictions.NewRepository(db)
	if err := predictionRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate prediction tables")
	}

	dep, err := deployment.Load(cfg.DeploymentFile)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load deployment settings")
	}
	bundle, err := model.LoadBundle(cfg.ModelDir)
	if err != nil {
		logger.Log.WithError(err).WithField("model_dir", cfg.ModelDir).Fatal("Failed to load model artifacts")
	}
	engine, err := predictor.New(bundle, dep)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to build prediction engine")
	}

	var producer *kafka.Producer
	if *publish {
		producer = kafka.NewProducer(cfg.PredictionEventTopic)
		defer producer.Close()
	}

	service := predictions.NewService(visitRepo, predictionRepo, nil, engine, producer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	processed, skipped, err := service.Backfill(ctx, *limit)
	if err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"processed": processed,
			"skipped":   skipped,
		}).Fatal("Backfill aborted")
	}

	logger.Log.WithFields(map[string]interface{}{
		"processed": processed,
		"skipped":   skipped,
	}).Info("Backfill complete")
}
