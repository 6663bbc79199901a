package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/image-insight/internal/core/domain"
	"github.com/kirillkom/image-insight/internal/core/usecase"
)

type ingestFake struct {
	descriptor *domain.ImageDescriptor
	err        error

	gotFilename string
	gotUserID   string
	gotSize     int64
}

func (f *ingestFake) Upload(_ context.Context, filename, _, userID string, size int64, _ io.Reader) (*domain.ImageDescriptor, error) {
	f.gotFilename = filename
	f.gotUserID = userID
	f.gotSize = size
	if f.err != nil {
		return nil, f.err
	}
	return f.descriptor, nil
}

type queryServiceFake struct {
	record *domain.AnalysisRecord
	page   *domain.RecordPage
	getErr error

	gotImageID string
	gotFilter  domain.ListFilter
}

func (f *queryServiceFake) GetByID(_ context.Context, imageID string) (*domain.AnalysisRecord, error) {
	f.gotImageID = imageID
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.record, nil
}

func (f *queryServiceFake) List(_ context.Context, filter domain.ListFilter) (*domain.RecordPage, error) {
	f.gotFilter = filter
	return f.page, nil
}

func newTestHandler(ingest *ingestFake, query *queryServiceFake) http.Handler {
	return NewRouter(ingest, query, Options{}).Handler()
}

func multipartUpload(t *testing.T, filename, userID string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if userID != "" {
		if err := writer.WriteField("user_id", userID); err != nil {
			t.Fatalf("write user_id field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestUploadImageReturnsAcceptedDescriptor(t *testing.T) {
	ingest := &ingestFake{descriptor: &domain.ImageDescriptor{ImageID: "img-1", Bucket: "images", Key: "uploads/alice/x_a.jpg"}}
	handler := newTestHandler(ingest, &queryServiceFake{})

	body, contentType := multipartUpload(t, "a.jpg", "alice", []byte("image bytes"))
	req := httptest.NewRequest(http.MethodPost, "/v1/images", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if ingest.gotFilename != "a.jpg" || ingest.gotUserID != "alice" {
		t.Fatalf("upload not forwarded: filename=%q user=%q", ingest.gotFilename, ingest.gotUserID)
	}
	if ingest.gotSize != int64(len("image bytes")) {
		t.Fatalf("upload size = %d", ingest.gotSize)
	}

	var resp domain.ImageDescriptor
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ImageID != "img-1" {
		t.Fatalf("unexpected descriptor: %+v", resp)
	}
}

func TestUploadImageWithoutFileReturns400(t *testing.T) {
	handler := newTestHandler(&ingestFake{}, &queryServiceFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/images", bytes.NewReader([]byte("not multipart")))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadImageMapsInvalidInputTo400(t *testing.T) {
	ingest := &ingestFake{err: domain.WrapError(domain.ErrInvalidInput, "validate descriptor", errors.New("bucket is required"))}
	handler := newTestHandler(ingest, &queryServiceFake{})

	body, contentType := multipartUpload(t, "a.jpg", "", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/v1/images", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetResultByID(t *testing.T) {
	query := &queryServiceFake{record: &domain.AnalysisRecord{ImageID: "img-1", Confidence: 92.5, TopLabel: "Dog"}}
	handler := newTestHandler(&ingestFake{}, query)

	req := httptest.NewRequest(http.MethodGet, "/v1/results/img-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if query.gotImageID != "img-1" {
		t.Fatalf("query saw image id %q", query.gotImageID)
	}

	var resp domain.AnalysisRecord
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Confidence != 92.5 || resp.TopLabel != "Dog" {
		t.Fatalf("unexpected record: %+v", resp)
	}
}

func TestGetResultByIDReturns404ForNotFound(t *testing.T) {
	query := &queryServiceFake{getErr: domain.WrapError(domain.ErrRecordNotFound, "get analysis record", errors.New("image missing"))}
	handler := newTestHandler(&ingestFake{}, query)

	req := httptest.NewRequest(http.MethodGet, "/v1/results/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestListResultsForwardsFilter(t *testing.T) {
	query := &queryServiceFake{page: &domain.RecordPage{
		Count:   1,
		Results: []domain.RecordSummary{{ImageID: "img-1", UserID: "alice"}},
	}}
	handler := newTestHandler(&ingestFake{}, query)

	req := httptest.NewRequest(http.MethodGet, "/v1/results?user_id=alice&limit=5", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if query.gotFilter.UserID != "alice" || query.gotFilter.Limit != 5 {
		t.Fatalf("unexpected filter: %+v", query.gotFilter)
	}
}

func TestListResultsDefaultsLimitWhenAbsent(t *testing.T) {
	query := &queryServiceFake{page: &domain.RecordPage{Results: []domain.RecordSummary{}}}
	handler := newTestHandler(&ingestFake{}, query)

	req := httptest.NewRequest(http.MethodGet, "/v1/results", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if query.gotFilter.Limit != usecase.DefaultListLimit {
		t.Fatalf("absent limit should default to %d, got %d", usecase.DefaultListLimit, query.gotFilter.Limit)
	}
}

func TestListResultsRejectsNonIntegerLimit(t *testing.T) {
	handler := newTestHandler(&ingestFake{}, &queryServiceFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/results?limit=abc", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(&ingestFake{}, &queryServiceFake{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}
