package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/image-insight/internal/config"
	"github.com/kirillkom/image-insight/internal/core/ports"
	"github.com/kirillkom/image-insight/internal/core/usecase"
	"github.com/kirillkom/image-insight/internal/infrastructure/queue/nats"
	"github.com/kirillkom/image-insight/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/image-insight/internal/infrastructure/resilience"
	"github.com/kirillkom/image-insight/internal/infrastructure/storage/minio"
	"github.com/kirillkom/image-insight/internal/infrastructure/vision"
	"github.com/kirillkom/image-insight/internal/observability/logging"
)

type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Repo  *postgres.RecordRepository

	IngestUC  ports.ImageIngestor
	AnalyzeUC ports.AnalysisRunner
	QueryUC   ports.ResultQueryService

	closeFn func()
}

func New(ctx context.Context, service string, cfg config.Config) (*App, error) {
	configureLogger(service, cfg.LogLevel)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewRecordRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := minio.New(ctx, minio.Config{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		Bucket:    cfg.MinIOBucket,
		UseSSL:    cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSRequestSubject, cfg.NATSCompletedSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	visionClient := vision.New(cfg.VisionBaseURL, vision.Options{
		MinConfidence:      cfg.MinConfidence,
		Timeout:            time.Duration(cfg.VisionTimeoutSeconds) * time.Second,
		ResilienceExecutor: executor,
	})

	aggregator := usecase.NewDetectorAggregator(visionClient, cfg.MaxLabels, cfg.MaxFaces)
	ingestUC := usecase.NewIngestImageUseCase(storage, queue, cfg.MinIOBucket)
	analyzeUC := usecase.NewAnalyzeImageUseCase(aggregator, repo, queue, cfg.TTLDays)
	queryUC := usecase.NewQueryResultsUseCase(repo)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		IngestUC:  ingestUC,
		AnalyzeUC: analyzeUC,
		QueryUC:   queryUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func configureLogger(service, level string) {
	slog.SetDefault(logging.NewJSONLogger(service, level))
}
