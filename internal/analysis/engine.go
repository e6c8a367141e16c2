// Package analysis holds the per-flow heuristic detectors and the
// advisories derived from their scored output.
package analysis

import (
	"github.com/zhaambo/NetscapeX-CLI/internal/model"
)

// Suite runs the heuristic detectors over one flow. Each detector is a pure
// function of the flow or its features, so a Suite is safe to share across
// goroutines.
type Suite struct {
	Beaconing       BeaconingDetector
	DNSTunnel       DNSTunnelDetector
	ProtocolAnomaly ProtocolAnomalyDetector
}

// NewSuite returns the standard detector suite.
func NewSuite() Suite {
	return Suite{}
}

// Names returns the detector names in report order.
func (s Suite) Names() []string {
	return []string{s.Beaconing.Name(), s.DNSTunnel.Name(), s.ProtocolAnomaly.Name()}
}

// Detect runs every heuristic detector. The classifier probability is not
// known yet at this stage and is left at zero for the caller to fill in.
func (s Suite) Detect(f model.Flow, rec model.FeatureRecord) model.DetectionResult {
	return model.DetectionResult{
		Beaconing:       s.Beaconing.Detect(rec),
		DNSTunnel:       s.DNSTunnel.Detect(f),
		ProtocolAnomaly: s.ProtocolAnomaly.Detect(f),
	}
}
