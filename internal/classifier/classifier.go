// Package classifier is the boundary to the external probability model.
// The model itself (training, persistence, fallbacks) lives outside this
// repository; implementations here only deliver feature batches to it.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/zhaambo/NetscapeX-CLI/internal/config"
	"github.com/zhaambo/NetscapeX-CLI/internal/model"
)

// ErrLengthMismatch is returned when a classifier does not return exactly
// one probability per feature record.
var ErrLengthMismatch = errors.New("classifier returned wrong number of probabilities")

// Classifier scores a whole batch of feature records at once and returns a
// parallel slice of probabilities in [0,1].
type Classifier interface {
	Score(ctx context.Context, records []model.FeatureRecord) ([]float64, error)
}

// Func adapts an ordinary function to the Classifier interface.
type Func func(ctx context.Context, records []model.FeatureRecord) ([]float64, error)

// Score calls f.
func (f Func) Score(ctx context.Context, records []model.FeatureRecord) ([]float64, error) {
	return f(ctx, records)
}

// Static assigns the same probability to every flow.
type Static struct {
	Probability float64
}

// Score returns Probability for every record.
func (s Static) Score(_ context.Context, records []model.FeatureRecord) ([]float64, error) {
	out := make([]float64, len(records))
	for i := range out {
		out[i] = s.Probability
	}
	return out, nil
}

// Normalize checks that probs is parallel to a batch of n records and
// forces every value into [0,1]; NaN becomes 0.
func Normalize(probs []float64, n int) ([]float64, error) {
	if len(probs) != n {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrLengthMismatch, len(probs), n)
	}
	out := make([]float64, n)
	for i, p := range probs {
		switch {
		case math.IsNaN(p):
			out[i] = 0
		case p < 0:
			out[i] = 0
		case p > 1:
			out[i] = 1
		default:
			out[i] = p
		}
	}
	return out, nil
}

// New builds the classifier described by cfg.
func New(cfg config.ClassifierConfig) (Classifier, error) {
	switch cfg.Type {
	case "", "static":
		return Static{Probability: cfg.Probability}, nil
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("classifier: http type requires url")
		}
		return NewHTTPClassifier(cfg.URL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("classifier: unknown type %q", cfg.Type)
	}
}
