package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/image-insight/internal/core/domain"
)

type resultRepoFake struct {
	saved   *domain.AnalysisRecord
	outcome domain.SaveOutcome
	saveErr error

	record  *domain.AnalysisRecord
	getErr  error
	page    *domain.RecordPage
	listErr error

	gotFilter domain.ListFilter
}

func (f *resultRepoFake) Save(_ context.Context, record *domain.AnalysisRecord) (domain.SaveOutcome, error) {
	if f.saveErr != nil {
		return domain.SaveSkippedStale, f.saveErr
	}
	f.saved = record
	return f.outcome, nil
}

func (f *resultRepoFake) GetByID(context.Context, string) (*domain.AnalysisRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.record, nil
}

func (f *resultRepoFake) List(_ context.Context, filter domain.ListFilter) (*domain.RecordPage, error) {
	f.gotFilter = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.page, nil
}

type queueFake struct {
	requested  []domain.ImageDescriptor
	completed  []domain.CompletionEvent
	requestErr error
	publishErr error
}

func (f *queueFake) PublishAnalyzeRequested(_ context.Context, descriptor domain.ImageDescriptor) error {
	if f.requestErr != nil {
		return f.requestErr
	}
	f.requested = append(f.requested, descriptor)
	return nil
}

func (f *queueFake) SubscribeAnalyzeRequested(context.Context, func(context.Context, domain.ImageDescriptor) error) error {
	return nil
}

func (f *queueFake) PublishAnalysisCompleted(_ context.Context, event domain.CompletionEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.completed = append(f.completed, event)
	return nil
}

func newAnalyzeFixture(vision *visionFake, repo *resultRepoFake, queue *queueFake) *AnalyzeImageUseCase {
	uc := NewAnalyzeImageUseCase(NewDetectorAggregator(vision, 50, 10), repo, queue, 30)
	uc.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }
	return uc
}

func TestAnalyzeStoresRecordAndPublishesCompletion(t *testing.T) {
	vision := &visionFake{
		labels: []domain.Finding{{Name: "Dog", Confidence: 95.0}},
		faces:  []domain.FaceFinding{{Confidence: 99.0}},
	}
	repo := &resultRepoFake{outcome: domain.SaveStored}
	queue := &queueFake{}
	uc := newAnalyzeFixture(vision, repo, queue)

	descriptor := testDescriptor()
	descriptor.UserID = "alice"

	record, outcome, err := uc.Analyze(context.Background(), descriptor)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if outcome != domain.SaveStored {
		t.Fatalf("Analyze() outcome = %v, want SaveStored", outcome)
	}
	if repo.saved == nil {
		t.Fatal("record was not saved")
	}
	if record.ImageID != "img-1" || record.UserID != "alice" {
		t.Fatalf("record provenance mismatch: %+v", record)
	}
	// (95 + 99) / 2
	if record.Confidence != 97.0 {
		t.Fatalf("record confidence = %v, want 97.0", record.Confidence)
	}
	if record.ContentType != domain.ContentPortrait {
		t.Fatalf("record content type = %v, want PORTRAIT", record.ContentType)
	}
	if record.TopLabel != "Dog" {
		t.Fatalf("record top label = %q, want Dog", record.TopLabel)
	}
	if record.SchemaVersion != domain.SchemaVersion {
		t.Fatalf("record schema version = %q", record.SchemaVersion)
	}

	wantExpiry := uc.now().AddDate(0, 0, 30).Unix()
	if record.ExpirationTime != wantExpiry {
		t.Fatalf("record expiration = %d, want %d", record.ExpirationTime, wantExpiry)
	}

	if len(queue.completed) != 1 {
		t.Fatalf("expected 1 completion event, got %d", len(queue.completed))
	}
	event := queue.completed[0]
	if event.ImageID != "img-1" || event.ConfidenceBand != domain.BandHigh {
		t.Fatalf("unexpected completion event: %+v", event)
	}
	if event.TotalDetections != record.LabelsCount+record.FacesCount+record.TextCount {
		t.Fatalf("completion total detections = %d", event.TotalDetections)
	}
}

func TestAnalyzeSkippedStaleDoesNotPublish(t *testing.T) {
	vision := &visionFake{labels: []domain.Finding{{Name: "Cat", Confidence: 90}}}
	repo := &resultRepoFake{outcome: domain.SaveSkippedStale}
	queue := &queueFake{}
	uc := newAnalyzeFixture(vision, repo, queue)

	_, outcome, err := uc.Analyze(context.Background(), testDescriptor())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if outcome != domain.SaveSkippedStale {
		t.Fatalf("Analyze() outcome = %v, want SaveSkippedStale", outcome)
	}
	if len(queue.completed) != 0 {
		t.Fatalf("stale save must not publish a completion event, got %d", len(queue.completed))
	}
}

func TestAnalyzeSaveErrorIsFatal(t *testing.T) {
	repo := &resultRepoFake{saveErr: errors.New("connection reset")}
	uc := newAnalyzeFixture(&visionFake{}, repo, &queueFake{})

	_, _, err := uc.Analyze(context.Background(), testDescriptor())
	if err == nil {
		t.Fatal("expected error from failed save")
	}
}

func TestAnalyzePublishFailureDoesNotFailAnalysis(t *testing.T) {
	repo := &resultRepoFake{outcome: domain.SaveStored}
	queue := &queueFake{publishErr: errors.New("nats down")}
	uc := newAnalyzeFixture(&visionFake{}, repo, queue)

	_, outcome, err := uc.Analyze(context.Background(), testDescriptor())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if outcome != domain.SaveStored {
		t.Fatalf("Analyze() outcome = %v, want SaveStored", outcome)
	}
}

func TestAnalyzeRejectsInvalidDescriptor(t *testing.T) {
	repo := &resultRepoFake{outcome: domain.SaveStored}
	uc := newAnalyzeFixture(&visionFake{}, repo, &queueFake{})

	_, _, err := uc.Analyze(context.Background(), domain.ImageDescriptor{Bucket: "images"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input kind, got %v", err)
	}
	if repo.saved != nil {
		t.Fatal("invalid descriptor must not reach the repository")
	}
}

func TestAnalyzeDegradedProbesStillPersist(t *testing.T) {
	vision := &visionFake{
		labels:   []domain.Finding{{Name: "Sign", Confidence: 92}},
		facesErr: errors.New("faces down"),
		modsErr:  errors.New("moderation down"),
	}
	repo := &resultRepoFake{outcome: domain.SaveStored}
	uc := newAnalyzeFixture(vision, repo, &queueFake{})

	record, _, err := uc.Analyze(context.Background(), testDescriptor())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !record.IsSafe {
		t.Fatal("a degraded moderation probe has no findings and must stay safe")
	}
	failed := record.Analysis.FailedProbes()
	if len(failed) != 2 || failed[0] != "faces" || failed[1] != "moderation" {
		t.Fatalf("unexpected failed probes: %v", failed)
	}
	if record.TopLabel != "Sign" {
		t.Fatalf("healthy probe result lost: %+v", record)
	}
}
