package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/image-insight/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*RecordRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &RecordRepository{db: db}, mock, func() { _ = db.Close() }
}

func sampleRecord() *domain.AnalysisRecord {
	uploaded := time.Date(2026, 8, 31, 11, 0, 0, 0, time.UTC)
	analyzed := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	return &domain.AnalysisRecord{
		ImageID:            "img-1",
		ProcessedTimestamp: analyzed.Unix(),
		Bucket:             "images",
		Key:                "uploads/alice/a.jpg",
		Size:               2048,
		Format:             ".jpg",
		UserID:             "alice",
		UploadTime:         uploaded,
		Confidence:         92.5,
		Summary:            "Top label: Dog (92.5%)",
		HasFaces:           false,
		HasText:            false,
		IsSafe:             true,
		LabelsCount:        1,
		TopLabel:           "Dog",
		ContentType:        domain.ContentGeneral,
		Analysis: domain.AnalysisResult{
			ImageID:    "img-1",
			Confidence: 92.5,
			Labels: domain.LabelDetection{Count: 1, Labels: []domain.Finding{
				{Name: "Dog", Confidence: 92.5},
			}},
			IsSafe:     true,
			AnalyzedAt: analyzed,
		},
		AnalyzedAt:     analyzed,
		ExpirationTime: analyzed.AddDate(0, 0, 30).Unix(),
		SchemaVersion:  domain.SchemaVersion,
	}
}

func TestSaveStoresNewRevision(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	record := sampleRecord()
	mock.ExpectExec("INSERT INTO analysis_records").
		WithArgs(
			record.ImageID, record.ProcessedTimestamp, record.Bucket, record.Key, record.Size,
			record.Format, record.UserID, record.UploadTime,
			"92.5", record.Summary, record.HasFaces, record.HasText, record.IsSafe,
			record.LabelsCount, record.FacesCount, record.TextCount, record.TopLabel, string(record.ContentType),
			sqlmock.AnyArg(), record.AnalyzedAt, record.ExpirationTime, record.SchemaVersion,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	outcome, err := repo.Save(context.Background(), record)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if outcome != domain.SaveStored {
		t.Fatalf("Save() outcome = %v, want SaveStored", outcome)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveSkipsStaleRevision(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO analysis_records").
		WillReturnResult(sqlmock.NewResult(0, 0))

	outcome, err := repo.Save(context.Background(), sampleRecord())
	if err != nil {
		t.Fatalf("Save() error = %v, stale skip is not an error", err)
	}
	if outcome != domain.SaveSkippedStale {
		t.Fatalf("Save() outcome = %v, want SaveSkippedStale", outcome)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func recordRows(t *testing.T, record *domain.AnalysisRecord) *sqlmock.Rows {
	t.Helper()
	analysisJSON, err := encodeAnalysisJSON(record.Analysis)
	if err != nil {
		t.Fatalf("encodeAnalysisJSON() error = %v", err)
	}
	return sqlmock.NewRows([]string{
		"image_id", "processed_timestamp", "bucket", "object_key", "size_bytes", "format", "user_id", "upload_time",
		"confidence", "summary", "has_faces", "has_text", "is_safe",
		"labels_count", "faces_count", "text_count", "top_label", "content_type",
		"analysis", "analysis_timestamp", "expiration_time", "schema_version",
	}).AddRow(
		record.ImageID, record.ProcessedTimestamp, record.Bucket, record.Key, record.Size,
		record.Format, record.UserID, record.UploadTime,
		encodeDecimal(record.Confidence), record.Summary, record.HasFaces, record.HasText, record.IsSafe,
		record.LabelsCount, record.FacesCount, record.TextCount, record.TopLabel, string(record.ContentType),
		analysisJSON, record.AnalyzedAt, record.ExpirationTime, record.SchemaVersion,
	)
}

func TestGetByIDDecodesStoredRecord(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	stored := sampleRecord()
	mock.ExpectQuery("SELECT (.+) FROM analysis_records").
		WithArgs("img-1").
		WillReturnRows(recordRows(t, stored))

	record, err := repo.GetByID(context.Background(), "img-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if record.ImageID != "img-1" || record.UserID != "alice" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.Confidence != 92.5 {
		t.Fatalf("confidence = %v, want 92.5", record.Confidence)
	}
	if record.ContentType != domain.ContentGeneral {
		t.Fatalf("content type = %v, want GENERAL", record.ContentType)
	}
	if record.Analysis.Labels.Count != 1 || record.Analysis.Labels.Labels[0].Confidence != 92.5 {
		t.Fatalf("nested analysis not decoded: %+v", record.Analysis)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM analysis_records").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListDetectsAdditionalRecords(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	first := sampleRecord()
	second := sampleRecord()
	second.ProcessedTimestamp--
	third := sampleRecord()
	third.ProcessedTimestamp -= 2

	rows := recordRows(t, first)
	rows.AddRow(
		second.ImageID, second.ProcessedTimestamp, second.Bucket, second.Key, second.Size,
		second.Format, second.UserID, second.UploadTime,
		encodeDecimal(second.Confidence), second.Summary, second.HasFaces, second.HasText, second.IsSafe,
		second.LabelsCount, second.FacesCount, second.TextCount, second.TopLabel, string(second.ContentType),
		[]byte(`{}`), second.AnalyzedAt, second.ExpirationTime, second.SchemaVersion,
	)
	rows.AddRow(
		third.ImageID, third.ProcessedTimestamp, third.Bucket, third.Key, third.Size,
		third.Format, third.UserID, third.UploadTime,
		encodeDecimal(third.Confidence), third.Summary, third.HasFaces, third.HasText, third.IsSafe,
		third.LabelsCount, third.FacesCount, third.TextCount, third.TopLabel, string(third.ContentType),
		[]byte(`{}`), third.AnalyzedAt, third.ExpirationTime, third.SchemaVersion,
	)

	mock.ExpectQuery("SELECT (.+) FROM analysis_records").
		WithArgs("alice", 3).
		WillReturnRows(rows)

	page, err := repo.List(context.Background(), domain.ListFilter{UserID: "alice", Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Count != 2 || len(page.Results) != 2 {
		t.Fatalf("page count = %d, want 2", page.Count)
	}
	if !page.HasMore {
		t.Fatalf("expected HasMore with an extra row fetched")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListWithoutUserScansAll(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM analysis_records").
		WithArgs(11).
		WillReturnRows(recordRows(t, sampleRecord()))

	page, err := repo.List(context.Background(), domain.ListFilter{Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Count != 1 || page.HasMore {
		t.Fatalf("unexpected page: %+v", page)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteExpiredReportsReclaimedCount(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM analysis_records").
		WithArgs(now.Unix()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	removed, err := repo.DeleteExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if removed != 4 {
		t.Fatalf("DeleteExpired() = %d, want 4", removed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
