package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/kirillkom/image-insight/internal/core/domain"
	"github.com/kirillkom/image-insight/internal/core/ports"
)

// DetectorAggregator fans out to the four detection probes and merges their
// partials. Probes are isolated from each other: a failed probe degrades to
// an empty partial with an error annotation and never aborts the rest.
type DetectorAggregator struct {
	vision    ports.VisionAnalyzer
	maxLabels int
	maxFaces  int
}

func NewDetectorAggregator(vision ports.VisionAnalyzer, maxLabels, maxFaces int) *DetectorAggregator {
	if maxLabels <= 0 {
		maxLabels = 50
	}
	if maxFaces <= 0 {
		maxFaces = 10
	}
	return &DetectorAggregator{
		vision:    vision,
		maxLabels: maxLabels,
		maxFaces:  maxFaces,
	}
}

type probePartials struct {
	labels     domain.LabelDetection
	faces      domain.FaceDetection
	text       domain.TextDetection
	moderation domain.ModerationDetection
}

// Collect dispatches the four probes concurrently. The merge is commutative,
// so completion order does not matter; each goroutine writes a distinct field.
func (a *DetectorAggregator) Collect(ctx context.Context, ref domain.ImageDescriptor) probePartials {
	var partials probePartials
	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		partials.labels = a.detectLabels(ctx, ref)
	}()
	go func() {
		defer wg.Done()
		partials.faces = a.detectFaces(ctx, ref)
	}()
	go func() {
		defer wg.Done()
		partials.text = a.detectText(ctx, ref)
	}()
	go func() {
		defer wg.Done()
		partials.moderation = a.detectModeration(ctx, ref)
	}()

	wg.Wait()
	return partials
}

func (a *DetectorAggregator) detectLabels(ctx context.Context, ref domain.ImageDescriptor) domain.LabelDetection {
	labels, err := a.vision.DetectLabels(ctx, ref, a.maxLabels)
	if err != nil {
		logProbeFailure("labels", ref.ImageID, err)
		return domain.LabelDetection{Labels: []domain.Finding{}, Error: err.Error()}
	}
	if len(labels) > a.maxLabels {
		labels = labels[:a.maxLabels]
	}
	if labels == nil {
		labels = []domain.Finding{}
	}
	return domain.LabelDetection{Count: len(labels), Labels: labels}
}

func (a *DetectorAggregator) detectFaces(ctx context.Context, ref domain.ImageDescriptor) domain.FaceDetection {
	faces, err := a.vision.DetectFaces(ctx, ref, a.maxFaces)
	if err != nil {
		logProbeFailure("faces", ref.ImageID, err)
		return domain.FaceDetection{Faces: []domain.FaceFinding{}, Error: err.Error()}
	}
	if len(faces) > a.maxFaces {
		faces = faces[:a.maxFaces]
	}
	if faces == nil {
		faces = []domain.FaceFinding{}
	}
	return domain.FaceDetection{Count: len(faces), Faces: faces}
}

func (a *DetectorAggregator) detectText(ctx context.Context, ref domain.ImageDescriptor) domain.TextDetection {
	lines, err := a.vision.DetectText(ctx, ref)
	if err != nil {
		logProbeFailure("text", ref.ImageID, err)
		return domain.TextDetection{Lines: []string{}, Error: err.Error()}
	}

	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return domain.TextDetection{Count: len(kept), Lines: kept}
}

func (a *DetectorAggregator) detectModeration(ctx context.Context, ref domain.ImageDescriptor) domain.ModerationDetection {
	labels, err := a.vision.DetectModeration(ctx, ref)
	if err != nil {
		logProbeFailure("moderation", ref.ImageID, err)
		return domain.ModerationDetection{Labels: []domain.Finding{}, Error: err.Error()}
	}
	if labels == nil {
		labels = []domain.Finding{}
	}
	return domain.ModerationDetection{Count: len(labels), Labels: labels}
}

func logProbeFailure(probe, imageID string, err error) {
	slog.Warn("probe_failed", "probe", probe, "image_id", imageID, "error", err)
}
