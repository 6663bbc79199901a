package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/image-insight/internal/bootstrap"
	"github.com/kirillkom/image-insight/internal/config"
	"github.com/kirillkom/image-insight/internal/core/domain"
	"github.com/kirillkom/image-insight/internal/observability/metrics"
)

const workerService = "image-insight-worker"

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, workerService, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(workerService)
	go serveMetrics(cfg.WorkerMetricsPort, workerMetrics)
	go runReclaimLoop(ctx, app, workerMetrics, cfg.ReclaimIntervalMinutes)

	log.Printf("worker subscribed to %s", cfg.NATSRequestSubject)
	err = app.Queue.SubscribeAnalyzeRequested(ctx, func(handlerCtx context.Context, descriptor domain.ImageDescriptor) error {
		analyzeCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		workerMetrics.ObserveQueueLag(workerService, time.Since(descriptor.UploadTime))
		workerMetrics.StartAnalysis()
		start := time.Now()

		record, outcome, err := app.AnalyzeUC.Analyze(analyzeCtx, descriptor)
		switch {
		case err != nil:
			workerMetrics.FinishAnalysis(workerService, "error", time.Since(start))
		default:
			workerMetrics.FinishAnalysis(workerService, outcome.String(), time.Since(start))
			workerMetrics.RecordProbeFailures(workerService, record.Analysis)
		}
		return err
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func serveMetrics(port string, workerMetrics *metrics.WorkerMetrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", workerMetrics.Handler())
	if err := http.ListenAndServe(":"+port, mux); err != nil && err != http.ErrServerClosed {
		log.Printf("worker metrics server error: %v", err)
	}
}

// runReclaimLoop is the store-side TTL sweep removing expired records.
func runReclaimLoop(ctx context.Context, app *bootstrap.App, workerMetrics *metrics.WorkerMetrics, intervalMinutes int) {
	if intervalMinutes <= 0 {
		intervalMinutes = 60
	}
	ticker := time.NewTicker(time.Duration(intervalMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := app.Repo.DeleteExpired(ctx, now.UTC())
			if err != nil {
				log.Printf("ttl reclaim error: %v", err)
				continue
			}
			workerMetrics.RecordReclaimed(workerService, removed)
		}
	}
}
