package ports

import (
	"context"
	"io"

	"github.com/kirillkom/image-insight/internal/core/domain"
)

// ImageIngestor is the inbound contract for image upload orchestration.
type ImageIngestor interface {
	Upload(ctx context.Context, filename, contentType, userID string, size int64, body io.Reader) (*domain.ImageDescriptor, error)
}

// AnalysisRunner is the inbound contract for running the full analysis
// pipeline for one image descriptor.
type AnalysisRunner interface {
	Analyze(ctx context.Context, descriptor domain.ImageDescriptor) (*domain.AnalysisRecord, domain.SaveOutcome, error)
}

// ResultQueryService is the inbound read model for persisted analyses.
type ResultQueryService interface {
	GetByID(ctx context.Context, imageID string) (*domain.AnalysisRecord, error)
	List(ctx context.Context, filter domain.ListFilter) (*domain.RecordPage, error)
}
