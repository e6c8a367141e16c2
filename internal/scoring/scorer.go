// Package scoring fuses detector outputs into a risk score and confidence.
package scoring

import (
	"math"

	"github.com/zhaambo/NetscapeX-CLI/internal/model"
)

// Fusion weights. They sum to 100, the maximum risk score.
const (
	WeightML              = 50.0
	WeightBeaconing       = 25.0
	WeightDNSTunnel       = 15.0
	WeightProtocolAnomaly = 10.0

	// ConfidenceFloor is added to the mean detector agreement.
	ConfidenceFloor = 0.1

	maxRisk = 100.0
)

// Score returns the risk score in [0,100] and confidence in [0,1], both
// rounded to two decimal places. Inputs outside [0,1] are clamped and NaN
// counts as zero, so the outputs stay bounded for any detection result.
func Score(d model.DetectionResult) (risk, confidence float64) {
	ml := unit(d.MLProbability)
	beacon := unit(d.Beaconing.Score)
	dns := indicator(d.DNSTunnel.Flag)
	proto := indicator(d.ProtocolAnomaly.Flag)

	raw := ml*WeightML + beacon*WeightBeaconing + dns*WeightDNSTunnel + proto*WeightProtocolAnomaly
	risk = round2(clamp(raw, 0, maxRisk))

	confidence = round2(math.Min(1.0, (ml+beacon+dns+proto)/4+ConfidenceFloor))
	return risk, confidence
}

// Apply scores a flow's detections and combines them with its features.
func Apply(rec model.FeatureRecord, d model.DetectionResult) model.ScoredResult {
	risk, conf := Score(d)
	return model.ScoredResult{
		FeatureRecord:   rec,
		DetectionResult: d,
		RiskScore:       risk,
		Confidence:      conf,
	}
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func unit(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return clamp(x, 0, 1)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
