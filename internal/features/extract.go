// Package features derives per-flow timing and size statistics.
package features

import (
	"math"
	"sort"

	"github.com/zhaambo/NetscapeX-CLI/internal/model"
)

// BurstGap is the inter-arrival gap, in seconds, above which a new burst
// begins.
const BurstGap = 1.0

// Extract computes the feature record for a flow. It is a pure function of
// the flow; non-finite timestamps are left out of the statistics, and any
// statistic that overflows is reported as 0.
func Extract(f model.Flow) model.FeatureRecord {
	rec := model.FeatureRecord{
		FlowID:     f.ID,
		Src:        f.Key.Src,
		Dst:        f.Key.Dst,
		Protocol:   f.Key.Protocol,
		PktCount:   len(f.Packets),
		BurstCount: 1,
	}

	timestamps := make([]float64, 0, len(f.Packets))
	sizes := make([]float64, 0, len(f.Packets))
	for _, p := range f.Packets {
		if finite(p.Timestamp) {
			timestamps = append(timestamps, p.Timestamp)
		}
		sizes = append(sizes, float64(p.Size))
	}

	rec.PktSizeMean, rec.PktSizeVar = meanVar(sizes)

	if len(f.Packets) <= 1 || len(timestamps) <= 1 {
		return neutralize(rec)
	}

	sort.Float64s(timestamps)
	rec.Duration = timestamps[len(timestamps)-1] - timestamps[0]

	iats := make([]float64, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i] - timestamps[i-1]
		iats[i-1] = gap
		if gap > BurstGap {
			rec.BurstCount++
		}
	}
	rec.IATMean, rec.IATVar = meanVar(iats)

	return neutralize(rec)
}

// neutralize zeroes statistics that overflowed to ±Inf or NaN, so a flow
// with extreme timestamps still yields an encodable record.
func neutralize(rec model.FeatureRecord) model.FeatureRecord {
	for _, v := range []*float64{&rec.Duration, &rec.IATMean, &rec.IATVar, &rec.PktSizeMean, &rec.PktSizeVar} {
		if !finite(*v) {
			*v = 0
		}
	}
	return rec
}

// meanVar returns the arithmetic mean and population variance of xs,
// or zeros when xs is empty.
func meanVar(xs []float64) (mean, variance float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean = sum / float64(len(xs))

	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return mean, sq / float64(len(xs))
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
