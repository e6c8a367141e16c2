package analysis

import (
	"math"

	"github.com/zhaambo/NetscapeX-CLI/internal/model"
)

// BeaconingDetector flags flows made of many small, regularly spaced
// packets, the shape of a periodic command-and-control check-in.
type BeaconingDetector struct{}

func (BeaconingDetector) Name() string { return "Beaconing" }

const (
	// beaconMinPackets is the minimum packet count for a beacon.
	beaconMinPackets = 4
	// beaconMaxMeanSize is the exclusive upper bound on mean packet size.
	beaconMaxMeanSize = 400.0
	// beaconMinVarCeiling is the floor of the IAT variance ceiling.
	beaconMinVarCeiling = 0.5
	// beaconVarToMean scales the IAT mean into the variance ceiling.
	beaconVarToMean = 0.5
	// beaconMaxScore is the score of a perfectly regular beacon.
	beaconMaxScore = 0.9
)

// Detect evaluates the beaconing heuristic over a feature record. Records
// with non-finite or negative statistics yield a skipped, unflagged result.
func (BeaconingDetector) Detect(rec model.FeatureRecord) model.Beaconing {
	if !validFeatures(rec) {
		return model.Beaconing{Skipped: "invalid features"}
	}

	ceiling := math.Max(beaconMinVarCeiling, rec.IATMean*beaconVarToMean)
	flag := rec.PktCount >= beaconMinPackets &&
		rec.PktSizeMean < beaconMaxMeanSize &&
		rec.IATVar < ceiling
	if !flag {
		return model.Beaconing{}
	}

	// Lower timing variance scores closer to beaconMaxScore.
	score := math.Min(1.0, beaconMaxScore/(1.0+rec.IATVar))
	return model.Beaconing{Flag: true, Score: score}
}

func validFeatures(rec model.FeatureRecord) bool {
	for _, v := range []float64{rec.IATMean, rec.IATVar, rec.PktSizeMean} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return rec.PktCount >= 0 && rec.IATVar >= 0
}
