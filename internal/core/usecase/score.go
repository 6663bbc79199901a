package usecase

import (
	"math"

	"github.com/kirillkom/image-insight/internal/core/domain"
)

// textPresenceSignal is the fixed confidence contribution of the text probe.
// Text detection reports presence, not a per-line confidence comparable to
// the other probes.
const textPresenceSignal = 80.0

// unsafeModerationThreshold flags the image when any moderation finding
// reaches this confidence.
const unsafeModerationThreshold = 70.0

// overallConfidence derives one confidence number from the probe partials:
// max label confidence, mean face confidence and a fixed text-presence
// signal, averaged unweighted and rounded to 2 decimals. Moderation never
// contributes. No signals yields 0.0.
//
// This exact policy is load-bearing: downstream confidence bands are
// calibrated against it.
func overallConfidence(p probePartials) float64 {
	signals := make([]float64, 0, 3)

	if p.labels.Count > 0 {
		top := 0.0
		for _, l := range p.labels.Labels {
			if l.Confidence > top {
				top = l.Confidence
			}
		}
		signals = append(signals, top)
	}

	if p.faces.Count > 0 {
		sum := 0.0
		for _, f := range p.faces.Faces {
			sum += f.Confidence
		}
		signals = append(signals, sum/float64(p.faces.Count))
	}

	if p.text.Count > 0 {
		signals = append(signals, textPresenceSignal)
	}

	if len(signals) == 0 {
		return 0.0
	}

	total := 0.0
	for _, s := range signals {
		total += s
	}
	return round2(total / float64(len(signals)))
}

// evaluateSafety is computed once from the moderation partial, never
// re-derived from history.
func evaluateSafety(moderation domain.ModerationDetection) bool {
	for _, l := range moderation.Labels {
		if l.Confidence >= unsafeModerationThreshold {
			return false
		}
	}
	return true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
