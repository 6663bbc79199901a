package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/image-insight/internal/core/domain"
)

const emptySummary = "Image analyzed with no significant detections"

// buildSummary renders the human-readable summary from the merged result.
// Clause order is fixed: top label, faces, text, moderation flag.
func buildSummary(result domain.AnalysisResult) string {
	parts := make([]string, 0, 4)

	if top, ok := result.TopLabel(); ok {
		parts = append(parts, fmt.Sprintf("Top label: %s (%v%%)", top.Name, top.Confidence))
	}
	if result.HasFaces() {
		parts = append(parts, fmt.Sprintf("Faces detected: %d", result.Faces.Count))
	}
	if result.HasText() {
		parts = append(parts, "Text detected in image")
	}
	if !result.IsSafe {
		parts = append(parts, "Content flagged by moderation")
	}

	if len(parts) == 0 {
		return emptySummary
	}
	return strings.Join(parts, ". ")
}

// classifyContent assigns the coarse content type. First match wins: faces
// over text over labels.
func classifyContent(result domain.AnalysisResult) domain.ContentType {
	switch {
	case result.Faces.Count == 1:
		return domain.ContentPortrait
	case result.Faces.Count > 1:
		return domain.ContentGroupPhoto
	case result.Text.Count > 0:
		return domain.ContentDocument
	case result.Labels.Count > 0:
		top, _ := result.TopLabel()
		name := strings.ToLower(top.Name)
		switch {
		case strings.Contains(name, "landscape") || strings.Contains(name, "nature"):
			return domain.ContentLandscape
		case strings.Contains(name, "food"):
			return domain.ContentFood
		default:
			return domain.ContentGeneral
		}
	default:
		return domain.ContentUnknown
	}
}
