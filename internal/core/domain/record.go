package domain

import "time"

// SchemaVersion is stamped on every persisted record for future migrations.
const SchemaVersion = "1.0"

// SaveOutcome reports what the repository did with a write. A stale revision
// being skipped is an expected outcome, not an error.
type SaveOutcome int

const (
	SaveStored SaveOutcome = iota
	SaveSkippedStale
)

func (o SaveOutcome) String() string {
	if o == SaveSkippedStale {
		return "skipped_stale"
	}
	return "stored"
}

// AnalysisRecord is the persisted form of one analysis revision. Among all
// records sharing an image id, the one with the greatest ProcessedTimestamp
// is current. Immutable once written; removed by the store once
// ExpirationTime elapses.
type AnalysisRecord struct {
	ImageID            string `json:"image_id"`
	ProcessedTimestamp int64  `json:"processed_timestamp"`

	// Provenance.
	Bucket     string    `json:"bucket"`
	Key        string    `json:"key"`
	Size       int64     `json:"size"`
	Format     string    `json:"format"`
	UserID     string    `json:"user_id"`
	UploadTime time.Time `json:"upload_time"`

	// Flattened analysis fields for cheap filtering.
	Confidence  float64     `json:"confidence"`
	Summary     string      `json:"summary"`
	HasFaces    bool        `json:"has_faces"`
	HasText     bool        `json:"has_text"`
	IsSafe      bool        `json:"is_safe"`
	LabelsCount int         `json:"labels_count"`
	FacesCount  int         `json:"faces_count"`
	TextCount   int         `json:"text_count"`
	TopLabel    string      `json:"top_label"`
	ContentType ContentType `json:"content_type"`

	// Full nested analysis detail.
	Analysis   AnalysisResult `json:"analysis"`
	AnalyzedAt time.Time      `json:"analysis_timestamp"`

	ExpirationTime int64  `json:"expiration_time"`
	SchemaVersion  string `json:"schema_version"`
}

// RecordSummary is the listing projection of a record.
type RecordSummary struct {
	ImageID            string      `json:"image_id"`
	ProcessedTimestamp int64       `json:"processed_timestamp"`
	UserID             string      `json:"user_id"`
	Key                string      `json:"key"`
	Confidence         float64     `json:"confidence"`
	Summary            string      `json:"summary"`
	HasFaces           bool        `json:"has_faces"`
	HasText            bool        `json:"has_text"`
	IsSafe             bool        `json:"is_safe"`
	LabelsCount        int         `json:"labels_count"`
	FacesCount         int         `json:"faces_count"`
	TopLabel           string      `json:"top_label"`
	ContentType        ContentType `json:"content_type"`
	AnalyzedAt         time.Time   `json:"analysis_timestamp"`
}

// Summary projects a record into its listing form.
func (r AnalysisRecord) Summarize() RecordSummary {
	return RecordSummary{
		ImageID:            r.ImageID,
		ProcessedTimestamp: r.ProcessedTimestamp,
		UserID:             r.UserID,
		Key:                r.Key,
		Confidence:         r.Confidence,
		Summary:            r.Summary,
		HasFaces:           r.HasFaces,
		HasText:            r.HasText,
		IsSafe:             r.IsSafe,
		LabelsCount:        r.LabelsCount,
		FacesCount:         r.FacesCount,
		TopLabel:           r.TopLabel,
		ContentType:        r.ContentType,
		AnalyzedAt:         r.AnalyzedAt,
	}
}

// ListFilter narrows a listing query. A zero Limit falls back to the default.
type ListFilter struct {
	UserID string
	Limit  int
}

// RecordPage is one page of listing results. HasMore reports whether
// additional, unfetched records exist beyond this page.
type RecordPage struct {
	Count   int             `json:"count"`
	Results []RecordSummary `json:"results"`
	HasMore bool            `json:"has_more"`
}

// CompletionEvent is the flat, notify-able projection of a saved analysis,
// published for downstream workflow consumers.
type CompletionEvent struct {
	ImageID         string         `json:"image_id"`
	UserID          string         `json:"user_id"`
	Confidence      float64        `json:"confidence"`
	ConfidenceBand  ConfidenceBand `json:"confidence_band"`
	Summary         string         `json:"summary"`
	LabelsCount     int            `json:"labels_count"`
	FacesCount      int            `json:"faces_count"`
	TextCount       int            `json:"text_count"`
	TotalDetections int            `json:"total_detections"`
	IsSafe          bool           `json:"is_safe"`
	ContentType     ContentType    `json:"content_type"`
	SavedAt         int64          `json:"saved_at"`
}

// Completion builds the flat event payload for this record.
func (r AnalysisRecord) Completion() CompletionEvent {
	return CompletionEvent{
		ImageID:         r.ImageID,
		UserID:          r.UserID,
		Confidence:      r.Confidence,
		ConfidenceBand:  BandFor(r.Confidence),
		Summary:         r.Summary,
		LabelsCount:     r.LabelsCount,
		FacesCount:      r.FacesCount,
		TextCount:       r.TextCount,
		TotalDetections: r.LabelsCount + r.FacesCount + r.TextCount,
		IsSafe:          r.IsSafe,
		ContentType:     r.ContentType,
		SavedAt:         r.ProcessedTimestamp,
	}
}
