package ports

import (
	"context"
	"io"

	"github.com/kirillkom/image-insight/internal/core/domain"
)

// VisionAnalyzer exposes the four independent detection probes of the
// external vision-analysis service. Each call is self-contained; callers own
// failure isolation between probes.
type VisionAnalyzer interface {
	DetectLabels(ctx context.Context, ref domain.ImageDescriptor, maxLabels int) ([]domain.Finding, error)
	DetectFaces(ctx context.Context, ref domain.ImageDescriptor, maxFaces int) ([]domain.FaceFinding, error)
	DetectText(ctx context.Context, ref domain.ImageDescriptor) ([]string, error)
	DetectModeration(ctx context.Context, ref domain.ImageDescriptor) ([]domain.Finding, error)
}

// ResultRepository persists and reads analysis records.
//
// Save is conditional: it stores the record only when no revision with an
// equal-or-greater processed timestamp exists for the image id, and reports
// domain.SaveSkippedStale otherwise. Any error it returns is fatal.
type ResultRepository interface {
	Save(ctx context.Context, record *domain.AnalysisRecord) (domain.SaveOutcome, error)
	GetByID(ctx context.Context, imageID string) (*domain.AnalysisRecord, error)
	List(ctx context.Context, filter domain.ListFilter) (*domain.RecordPage, error)
}

// ObjectStorage stores uploaded image objects.
type ObjectStorage interface {
	Save(ctx context.Context, key, contentType string, size int64, data io.Reader) error
}

// MessageQueue carries analyze requests from the API to the worker and
// publishes flat completion events for downstream consumers.
type MessageQueue interface {
	PublishAnalyzeRequested(ctx context.Context, descriptor domain.ImageDescriptor) error
	SubscribeAnalyzeRequested(ctx context.Context, handler func(context.Context, domain.ImageDescriptor) error) error
	PublishAnalysisCompleted(ctx context.Context, event domain.CompletionEvent) error
}
