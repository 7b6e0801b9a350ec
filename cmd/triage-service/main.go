package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/meditriage/platform/pkg/api/auth"
	"github.com/meditriage/platform/pkg/api/middleware"
	"github.com/meditriage/platform/pkg/common/config"
	"github.com/meditriage/platform/pkg/common/database"
	"github.com/meditriage/platform/pkg/common/kafka"
	"github.com/meditriage/platform/pkg/common/logger"
	"github.com/meditriage/platform/pkg/common/models"
	"github.com/meditriage/platform/pkg/observability/metrics"
	"github.com/meditriage/platform/pkg/predictions"
	"github.com/meditriage/platform/pkg/triage/deployment"
	"github.com/meditriage/platform/pkg/triage/feature"
	"github.com/meditriage/platform/pkg/triage/model"
	"github.com/meditriage/platform/pkg/triage/predictor"
	"github.com/meditriage/platform/pkg/visits"
)

type TriageService struct {
	service *predictions.Service
	engine  *predictor.Engine
}

func main() {
	logger.Init("triage-service")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}

	visitRepo := visits.NewRepository(db)
	if err := visitRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate visit tables")
	}
	predictionRepo := predictions.NewRepository(db)
	if err := predictionRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate prediction tables")
	}

	redisClient, err := database.GetRedis()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to Redis")
	}
	cache := predictions.NewCache(redisClient, cfg.PredictionCacheTTL)

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

	producer := kafka.NewProducer(cfg.PredictionEventTopic)
	defer producer.Close()

	service := predictions.NewService(visitRepo, predictionRepo, cache, engine, producer)

	authenticator, err := auth.NewAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, cfg.ServiceToken)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to configure authentication")
	}

	ts := &TriageService{service: service, engine: engine}

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Authenticate(authenticator))
	api.HandleFunc("/process_visit", ts.handleProcessVisit).Methods("POST")
	api.HandleFunc("/predictions/{visit_id}", ts.handleGetPrediction).Methods("GET")
	api.HandleFunc("/models", ts.handleListModels).Methods("GET")

	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumer := kafka.NewConsumer(cfg.VisitEventsTopic, cfg.KafkaGroupID)
	go func() {
		if err := consumer.Consume(consumerCtx, ts.handleVisitEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Error("Visit event consumer stopped")
		}
	}()

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Triage Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Triage Service...")

	stopConsumer()
	consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	database.CloseRedis()
	database.ClosePostgres()

	logger.Log.Info("Triage Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (s *TriageService) handleProcessVisit(w http.ResponseWriter, r *http.Request) {
	var req models.ProcessVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.VisitID <= 0 {
		http.Error(w, "visit_id is required", http.StatusBadRequest)
		return
	}

	result, err := s.service.ProcessVisit(r.Context(), req.VisitID)
	if err != nil {
		writePredictionError(w, req.VisitID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *TriageService) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	visitID, err := strconv.ParseInt(mux.Vars(r)["visit_id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid visit id", http.StatusBadRequest)
		return
	}

	result, err := s.service.LatestPrediction(r.Context(), visitID)
	if err != nil {
		if errors.Is(err, predictions.ErrPredictionNotFound) {
			http.Error(w, "No prediction for visit", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).WithField("visit_id", visitID).Error("Failed to load prediction")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *TriageService) handleListModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.engine.Models())
}

func (s *TriageService) handleVisitEvent(ctx context.Context, event models.Event) error {
	metrics.RecordEventConsumed()

	raw, ok := event.Data["visit_id"]
	if !ok {
		logger.Log.WithField("event_id", event.ID).Warn("Visit event without visit_id, dropping")
		return nil
	}
	visitID, err := toVisitID(raw)
	if err != nil {
		logger.Log.WithError(err).WithField("event_id", event.ID).Warn("Visit event with malformed visit_id, dropping")
		return nil
	}

	if _, err := s.service.ProcessVisit(ctx, visitID); err != nil {
		if dropVisitEvent(err) {
			entry := logger.Log.WithError(err).WithField("visit_id", visitID)
			var infErr *model.InferenceError
			if errors.As(err, &infErr) {
				entry.Error("Dropping visit event after model inference failure")
			} else {
				entry.Warn("Dropping unprocessable visit event")
			}
			return nil
		}
		return err
	}
	return nil
}

// dropVisitEvent reports whether a processing error can never succeed
// on redelivery, so the event must be committed and dropped instead of
// retried. Inference errors are process-level artifact problems;
// redelivering the message would hot-loop the consumer without fixing
// anything.
func dropVisitEvent(err error) bool {
	var encErr *feature.EncodingError
	var infErr *model.InferenceError
	return errors.Is(err, visits.ErrVisitNotFound) ||
		errors.As(err, &encErr) ||
		errors.As(err, &infErr)
}

func writePredictionError(w http.ResponseWriter, visitID int64, err error) {
	var encErr *feature.EncodingError
	var infErr *model.InferenceError
	switch {
	case errors.Is(err, visits.ErrVisitNotFound):
		http.Error(w, "Visit not found", http.StatusNotFound)
	case errors.As(err, &encErr):
		logger.Log.WithError(err).WithField("visit_id", visitID).Warn("Visit record could not be encoded")
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &infErr):
		logger.Log.WithError(err).WithField("visit_id", visitID).Error("Model inference failed")
		http.Error(w, "Model inference failed", http.StatusInternalServerError)
	default:
		logger.Log.WithError(err).WithField("visit_id", visitID).Error("Prediction failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func toVisitID(value interface{}) (int64, error) {
	switch v := value.(type) {
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported visit_id type %T", value)
	}
}
