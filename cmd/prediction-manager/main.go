// cmd/prediction-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	commonaws "admission-workers/internal/common/aws"
	"admission-workers/internal/common/config"
	"admission-workers/internal/common/database"
	"admission-workers/internal/common/logger"
	"admission-workers/internal/common/observability"

	"admission-workers/internal/catalog"
	"admission-workers/internal/events"
	"admission-workers/internal/listeners"
	"admission-workers/internal/notify"
	"admission-workers/internal/ocr"
	"admission-workers/internal/predictor"
	"admission-workers/internal/repository"
	"admission-workers/internal/services/ocrresult"
	"admission-workers/internal/services/predictionresult"
	"admission-workers/internal/stages/l1"
	"admission-workers/internal/stages/l2"
	"admission-workers/internal/stages/l3"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting prediction manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("prediction-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()

	// --- Init Elasticsearch (program catalog) ---
	esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		zapLog.Fatal("elasticsearch init failed", zap.Error(err))
	}

	// --- Remote service clients ---
	predictorClient := predictor.NewClient(predictor.ClientOptions{
		BaseURL: cfg.Service.BaseURL(),
		Timeout: cfg.Service.Timeout(),
	})
	extractor := ocr.NewClient(ocr.ClientOptions{
		BaseURL: cfg.Ocr.BaseURL,
		Timeout: cfg.Ocr.Timeout(),
	})

	// --- Notification channels ---
	var notifier notify.Notifier = notify.NoOpNotifier{}
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		sesClient, err := commonaws.NewSESClient(ctx, cfg.Notifications)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		snsClient, err := commonaws.NewSNSClient(ctx, cfg.Notifications)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		notifier = notify.NewAWSNotifier(sesClient, snsClient, cfg.Notifications, log)
	}

	// --- Repositories and services ---
	prRepo := repository.NewPredictionResultRepository()
	ocrRepo := repository.NewOcrResultRepository()
	studentRepo := repository.NewStudentRepository()

	cache := predictionresult.NewCache(rdb.GetClient(), cfg.Database.Redis.TTL(), log)
	resultSvc := predictionresult.NewService(prRepo, studentRepo, cache, notifier, log)

	programCatalog := catalog.NewESCatalog(esClient.Client, cfg.Database.Elasticsearch.ProgramIndex, log)

	l1Svc := l1.NewService(predictorClient, resultSvc, obs, l1.LoadConfig(cfg.Service), log)
	l2Svc := l2.NewService(predictorClient, resultSvc, obs, l2.LoadConfig(cfg.Service), log)
	l3Svc := l3.NewService(predictorClient, resultSvc, studentRepo, ocrRepo, prRepo, programCatalog, obs, l3.LoadConfig(cfg.Service), log)

	// --- Event wiring ---
	dispatcher := events.NewDispatcher(log)
	ocrSvc := ocrresult.NewService(ocrRepo, extractor, dispatcher, log)

	ocrListener := listeners.NewOcrListener(pg, pg.DB, ocrRepo, l3Svc, resultSvc, log)
	if err := ocrListener.Register(dispatcher); err != nil {
		zapLog.Fatal("ocr listener registration failed", zap.Error(err))
	}
	transcriptListener := listeners.NewTranscriptListener(pg.DB, studentRepo, resultSvc, l1Svc, l2Svc, log)
	if err := transcriptListener.Register(dispatcher); err != nil {
		zapLog.Fatal("transcript listener registration failed", zap.Error(err))
	}

	// --- Ops HTTP server ---
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ocr/batches", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			StudentID string        `json:"studentId"`
			UserID    *string       `json:"userId,omitempty"`
			Files     []ocr.FileRef `json:"files"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StudentID == "" || len(req.Files) == 0 {
			http.Error(w, "invalid batch submission", http.StatusBadRequest)
			return
		}

		// Extraction can take minutes; run it off the request.
		go func() {
			batchCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.Ocr.Timeout())
			defer cancel()
			if _, err := ocrSvc.ProcessBatch(batchCtx, pg.DB, req.StudentID, req.UserID, req.Files); err != nil {
				log.Error("ocr batch processing failed", map[string]interface{}{
					"studentId": req.StudentID,
					"error":     err.Error(),
				})
			}
		}()
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/events/transcript-updated", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var ev events.TranscriptUpdatedEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, "invalid event payload", http.StatusBadRequest)
			return
		}
		go dispatcher.Publish(context.Background(), events.EventTranscriptUpdated, ev)
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{
			"postgres":  healthStatus(pg.Ping(checkCtx)),
			"redis":     healthStatus(rdb.Ping(checkCtx)),
			"predictor": healthStatus(predictorClient.HealthCheck(checkCtx)),
			"ocr":       healthStatus(extractor.HealthCheck(checkCtx)),
		}

		status := http.StatusOK
		for _, v := range checks {
			if v != "ok" {
				status = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(checks)
	})

	opsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.OpsPort),
		Handler: mux,
	}
	go func() {
		zapLog.Info("ops server listening", zap.String("addr", opsServer.Addr))
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("ops server failed", zap.Error(err))
		}
	}()

	zapLog.Info("prediction manager started",
		zap.String("predictor", cfg.Service.BaseURL()),
		zap.Int("batchConcurrency", cfg.Service.BatchConcurrency),
		zap.Int("maxRetries", cfg.Service.MaxRetries),
	)

	// --- Graceful shutdown ---
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	zapLog.Info("shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("ops server shutdown", zap.Error(err))
	}
	zapLog.Info("prediction manager stopped")
}

func healthStatus(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}
