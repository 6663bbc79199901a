package domain

import "time"

// Finding is one named detection with a confidence in [0,100].
type Finding struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// FaceFinding is one detected face. Attribute fields mirror what the vision
// service reports per face instance.
type FaceFinding struct {
	Confidence float64   `json:"confidence"`
	AgeLow     int       `json:"age_low,omitempty"`
	AgeHigh    int       `json:"age_high,omitempty"`
	Gender     string    `json:"gender,omitempty"`
	Emotions   []Finding `json:"emotions,omitempty"`
}

// LabelDetection is the normalized partial of the label-recognition probe.
// An empty Error means the probe succeeded; zero findings is a valid success.
type LabelDetection struct {
	Count  int       `json:"count"`
	Labels []Finding `json:"labels"`
	Error  string    `json:"error,omitempty"`
}

// FaceDetection is the normalized partial of the face-detection probe.
type FaceDetection struct {
	Count int           `json:"count"`
	Faces []FaceFinding `json:"faces"`
	Error string        `json:"error,omitempty"`
}

// TextDetection is the normalized partial of the text-detection probe.
// Only non-empty line-level detections are retained.
type TextDetection struct {
	Count int      `json:"count"`
	Lines []string `json:"lines"`
	Error string   `json:"error,omitempty"`
}

// ModerationDetection is the normalized partial of the content-moderation probe.
type ModerationDetection struct {
	Count  int       `json:"count"`
	Labels []Finding `json:"labels"`
	Error  string    `json:"error,omitempty"`
}

// AnalysisResult merges the four probe partials for one image. Built fresh
// per invocation and never mutated after construction.
type AnalysisResult struct {
	ImageID    string              `json:"image_id"`
	Confidence float64             `json:"confidence"`
	Summary    string              `json:"summary"`
	Labels     LabelDetection      `json:"labels"`
	Faces      FaceDetection       `json:"faces"`
	Text       TextDetection       `json:"text"`
	Moderation ModerationDetection `json:"moderation"`
	IsSafe     bool                `json:"is_safe"`
	AnalyzedAt time.Time           `json:"analysis_timestamp"`
}

func (r AnalysisResult) HasFaces() bool { return r.Faces.Count > 0 }
func (r AnalysisResult) HasText() bool  { return r.Text.Count > 0 }

// FailedProbes lists the probes that degraded during this analysis.
func (r AnalysisResult) FailedProbes() []string {
	probes := make([]string, 0, 4)
	if r.Labels.Error != "" {
		probes = append(probes, "labels")
	}
	if r.Faces.Error != "" {
		probes = append(probes, "faces")
	}
	if r.Text.Error != "" {
		probes = append(probes, "text")
	}
	if r.Moderation.Error != "" {
		probes = append(probes, "moderation")
	}
	return probes
}

// TopLabel returns the highest-confidence label, if any.
func (r AnalysisResult) TopLabel() (Finding, bool) {
	if len(r.Labels.Labels) == 0 {
		return Finding{}, false
	}
	top := r.Labels.Labels[0]
	for _, l := range r.Labels.Labels[1:] {
		if l.Confidence > top.Confidence {
			top = l
		}
	}
	return top, true
}

// ContentType is the coarse classification used by listing and filtering.
type ContentType string

const (
	ContentPortrait   ContentType = "PORTRAIT"
	ContentGroupPhoto ContentType = "GROUP_PHOTO"
	ContentDocument   ContentType = "DOCUMENT"
	ContentLandscape  ContentType = "LANDSCAPE"
	ContentFood       ContentType = "FOOD"
	ContentGeneral    ContentType = "GENERAL"
	ContentUnknown    ContentType = "UNKNOWN"
)

// ConfidenceBand buckets an overall confidence for downstream consumers.
// Thresholds are calibrated against the scoring policy and must not drift.
type ConfidenceBand string

const (
	BandHigh   ConfidenceBand = "HIGH"
	BandMedium ConfidenceBand = "MEDIUM"
	BandLow    ConfidenceBand = "LOW"
)

func BandFor(confidence float64) ConfidenceBand {
	switch {
	case confidence >= 90:
		return BandHigh
	case confidence >= 70:
		return BandMedium
	default:
		return BandLow
	}
}
