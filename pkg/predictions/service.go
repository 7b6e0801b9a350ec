package predictions

import (
	"context"
	"errors"
	"time"

	"github.com/meditriage/platform/pkg/common/kafka"
	"github.com/meditriage/platform/pkg/common/logger"
	"github.com/meditriage/platform/pkg/common/models"
	"github.com/meditriage/platform/pkg/observability/metrics"
	"github.com/meditriage/platform/pkg/triage/feature"
	"github.com/meditriage/platform/pkg/triage/model"
	"github.com/meditriage/platform/pkg/triage/predictor"
	"github.com/meditriage/platform/pkg/visits"
)

const (
	eventPredictionCompleted = "triage.prediction.completed"
	eventSource              = "triage-service"
)

// Service runs the full pipeline for a visit: load the raw record,
// run inference, persist the result, publish the completion event and
// warm the cache. The engine is the only required collaborator; the
// repositories, cache and producer are optional so the engine can be
// exercised without infrastructure.
type Service struct {
	visits      *visits.Repository
	predictions *Repository
	cache       *Cache
	engine      *predictor.Engine
	producer    *kafka.Producer
}

func NewService(visitRepo *visits.Repository, predictionRepo *Repository, cache *Cache, engine *predictor.Engine, producer *kafka.Producer) *Service {
	return &Service{
		visits:      visitRepo,
		predictions: predictionRepo,
		cache:       cache,
		engine:      engine,
		producer:    producer,
	}
}

// ProcessVisit computes (or returns the cached) prediction for one
// visit. Inference and persistence failures abort the call; event
// publishing and cache writes are best effort.
func (s *Service) ProcessVisit(ctx context.Context, visitID int64) (models.PredictionResult, error) {
	if s.cache != nil {
		if result, ok := s.cache.Get(ctx, visitID); ok {
			metrics.RecordCacheHit()
			return result, nil
		}
		metrics.RecordCacheMiss()
	}

	record, err := s.visits.GetVisitRecord(ctx, visitID)
	if err != nil {
		return models.PredictionResult{}, err
	}

	started := time.Now()
	result, err := s.engine.Run(visitID, record)
	if err != nil {
		metrics.RecordFailure()
		var encErr *feature.EncodingError
		var infErr *model.InferenceError
		switch {
		case errors.As(err, &encErr):
			metrics.RecordEncodingFailure()
		case errors.As(err, &infErr):
			metrics.RecordInferenceFailure()
		}
		return models.PredictionResult{}, err
	}
	metrics.RecordPrediction(time.Since(started))

	if s.predictions != nil {
		if _, err := s.predictions.Save(ctx, result); err != nil {
			return models.PredictionResult{}, err
		}
	}

	if s.producer != nil {
		err := s.producer.PublishEvent(ctx, eventPredictionCompleted, eventSource, map[string]interface{}{
			"visit_id":               result.VisitID,
			"risk_level":             result.RiskLevel,
			"risk_score":             result.RiskScore,
			"recommended_department": result.RecommendedDepartment,
		})
		if err != nil {
			logger.Log.WithError(err).WithField("visit_id", visitID).Warn("Failed to publish prediction event")
		}
	}

	if s.cache != nil {
		s.cache.Set(ctx, result)
	}

	return result, nil
}

// LatestPrediction returns the most recent stored prediction for a
// visit without running inference.
func (s *Service) LatestPrediction(ctx context.Context, visitID int64) (models.PredictionResult, error) {
	row, err := s.predictions.LatestByVisit(ctx, visitID)
	if err != nil {
		return models.PredictionResult{}, err
	}
	return row.Result()
}

// Backfill processes up to limit visits that have no stored
// prediction. Visits whose records cannot be encoded are logged and
// skipped so one bad row does not stall the batch. Returns how many
// visits were processed and how many were skipped.
func (s *Service) Backfill(ctx context.Context, limit int) (processed int, skipped int, err error) {
	ids, err := s.predictions.ListUnpredictedVisits(ctx, limit)
	if err != nil {
		return 0, 0, err
	}

	for _, visitID := range ids {
		if ctx.Err() != nil {
			return processed, skipped, ctx.Err()
		}
		if _, err := s.ProcessVisit(ctx, visitID); err != nil {
			var encErr *feature.EncodingError
			if errors.As(err, &encErr) {
				logger.Log.WithError(err).WithField("visit_id", visitID).Warn("Skipping visit with unencodable record")
				skipped++
				continue
			}
			return processed, skipped, err
		}
		processed++
	}
	return processed, skipped, nil
}
