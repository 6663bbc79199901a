package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/image-insight/internal/core/domain"
	"github.com/kirillkom/image-insight/internal/core/ports"
)

// AnalyzeImageUseCase runs the whole pipeline for one descriptor: probe
// fan-out, scoring, summarization, conditional persistence and the flat
// completion event. Each invocation is a stateless unit of work.
type AnalyzeImageUseCase struct {
	aggregator *DetectorAggregator
	repo       ports.ResultRepository
	queue      ports.MessageQueue
	ttlDays    int
	now        func() time.Time
}

func NewAnalyzeImageUseCase(
	aggregator *DetectorAggregator,
	repo ports.ResultRepository,
	queue ports.MessageQueue,
	ttlDays int,
) *AnalyzeImageUseCase {
	if ttlDays <= 0 {
		ttlDays = 30
	}
	return &AnalyzeImageUseCase{
		aggregator: aggregator,
		repo:       repo,
		queue:      queue,
		ttlDays:    ttlDays,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (uc *AnalyzeImageUseCase) Analyze(
	ctx context.Context,
	descriptor domain.ImageDescriptor,
) (*domain.AnalysisRecord, domain.SaveOutcome, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, domain.SaveSkippedStale, err
	}

	result := uc.buildResult(ctx, descriptor)
	record := uc.buildRecord(descriptor, result)

	outcome, err := uc.repo.Save(ctx, record)
	if err != nil {
		return nil, outcome, fmt.Errorf("save analysis record: %w", err)
	}

	if outcome == domain.SaveSkippedStale {
		slog.Info("analysis_save_skipped",
			"image_id", record.ImageID,
			"processed_timestamp", record.ProcessedTimestamp,
		)
		return record, outcome, nil
	}

	// The completion event is advisory output for the notification
	// collaborator; a publish failure must not fail an already-saved analysis.
	if err := uc.queue.PublishAnalysisCompleted(ctx, record.Completion()); err != nil {
		slog.Warn("completion_publish_failed", "image_id", record.ImageID, "error", err)
	}

	slog.Info("analysis_saved",
		"image_id", record.ImageID,
		"confidence", record.Confidence,
		"content_type", record.ContentType,
		"is_safe", record.IsSafe,
	)
	return record, outcome, nil
}

func (uc *AnalyzeImageUseCase) buildResult(ctx context.Context, descriptor domain.ImageDescriptor) domain.AnalysisResult {
	partials := uc.aggregator.Collect(ctx, descriptor)

	result := domain.AnalysisResult{
		ImageID:    descriptor.ImageID,
		Labels:     partials.labels,
		Faces:      partials.faces,
		Text:       partials.text,
		Moderation: partials.moderation,
		Confidence: overallConfidence(partials),
		IsSafe:     evaluateSafety(partials.moderation),
		AnalyzedAt: uc.now(),
	}
	result.Summary = buildSummary(result)
	return result
}

func (uc *AnalyzeImageUseCase) buildRecord(descriptor domain.ImageDescriptor, result domain.AnalysisResult) *domain.AnalysisRecord {
	now := uc.now()
	topLabel := "none"
	if top, ok := result.TopLabel(); ok {
		topLabel = top.Name
	}

	return &domain.AnalysisRecord{
		ImageID:            descriptor.ImageID,
		ProcessedTimestamp: now.Unix(),

		Bucket:     descriptor.Bucket,
		Key:        descriptor.Key,
		Size:       descriptor.Size,
		Format:     descriptor.Format,
		UserID:     descriptor.UserID,
		UploadTime: descriptor.UploadTime,

		Confidence:  result.Confidence,
		Summary:     result.Summary,
		HasFaces:    result.HasFaces(),
		HasText:     result.HasText(),
		IsSafe:      result.IsSafe,
		LabelsCount: result.Labels.Count,
		FacesCount:  result.Faces.Count,
		TextCount:   result.Text.Count,
		TopLabel:    topLabel,
		ContentType: classifyContent(result),

		Analysis:   result,
		AnalyzedAt: result.AnalyzedAt,

		ExpirationTime: now.AddDate(0, 0, uc.ttlDays).Unix(),
		SchemaVersion:  domain.SchemaVersion,
	}
}
