package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/image-insight/internal/core/domain"
	"github.com/kirillkom/image-insight/internal/core/ports"
	"github.com/kirillkom/image-insight/internal/core/usecase"
	"github.com/kirillkom/image-insight/internal/observability/metrics"
)

const maxUploadBytes = 10 << 20

type Router struct {
	ingest  ports.ImageIngestor
	query   ports.ResultQueryService
	metrics *metrics.HTTPServerMetrics

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
}

type Options struct {
	Metrics        *metrics.HTTPServerMetrics
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
}

func NewRouter(ingest ports.ImageIngestor, query ports.ResultQueryService, options Options) *Router {
	return &Router{
		ingest:         ingest,
		query:          query,
		metrics:        options.Metrics,
		rateLimitRPS:   options.RateLimitRPS,
		rateLimitBurst: options.RateLimitBurst,
		maxInFlight:    options.MaxInFlight,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/images", rt.uploadImage)
	mux.HandleFunc("/v1/results", rt.listResults)
	mux.HandleFunc("/v1/results/", rt.getResultByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	if rt.maxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.maxInFlight, backpressureWait)
	}
	if rt.rateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		rt.recordUpload("rejected")
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	descriptor, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		r.FormValue("user_id"),
		fileHeader.Size,
		file,
	)
	if err != nil {
		rt.recordUpload("error")
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	rt.recordUpload("accepted")
	writeJSON(w, http.StatusAccepted, descriptor)
}

func (rt *Router) getResultByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	imageID := strings.TrimPrefix(r.URL.Path, "/v1/results/")
	if imageID == "" || strings.Contains(imageID, "/") {
		writeError(w, http.StatusBadRequest, "image id is required")
		return
	}

	record, err := rt.query.GetByID(r.Context(), imageID)
	if err != nil {
		rt.recordQuery("get", "error")
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	rt.recordQuery("get", "ok")
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) listResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filter := domain.ListFilter{
		UserID: r.URL.Query().Get("user_id"),
		Limit:  usecase.DefaultListLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		filter.Limit = limit
	}

	page, err := rt.query.List(r.Context(), filter)
	if err != nil {
		rt.recordQuery("list", "error")
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	rt.recordQuery("list", "ok")
	writeJSON(w, http.StatusOK, page)
}

func (rt *Router) recordUpload(status string) {
	if rt.metrics != nil {
		rt.metrics.RecordUpload(status)
	}
}

func (rt *Router) recordQuery(endpoint, status string) {
	if rt.metrics != nil {
		rt.metrics.RecordQuery(endpoint, status)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error":       message,
		"status_code": status,
	})
}
