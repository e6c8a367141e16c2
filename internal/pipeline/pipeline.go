// Package pipeline runs one batch analysis: flow assembly, per-flow feature
// extraction and detection, the classifier barrier, and risk scoring.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zhaambo/NetscapeX-CLI/internal/analysis"
	"github.com/zhaambo/NetscapeX-CLI/internal/classifier"
	"github.com/zhaambo/NetscapeX-CLI/internal/config"
	"github.com/zhaambo/NetscapeX-CLI/internal/features"
	"github.com/zhaambo/NetscapeX-CLI/internal/flow"
	"github.com/zhaambo/NetscapeX-CLI/internal/logging"
	"github.com/zhaambo/NetscapeX-CLI/internal/metrics"
	"github.com/zhaambo/NetscapeX-CLI/internal/model"
	"github.com/zhaambo/NetscapeX-CLI/internal/scoring"
)

// ErrTooManyPackets is returned when the input exceeds the packet limit.
var ErrTooManyPackets = errors.New("packet limit exceeded")

// ErrTooManyFlows is returned when the input assembles into more flows than
// the flow limit allows.
var ErrTooManyFlows = flow.ErrTooManyFlows

// Pipeline turns packet records into scored flows. It holds no per-run
// state and may be shared by concurrent callers.
type Pipeline struct {
	cfg        config.PipelineConfig
	classifier classifier.Classifier
	suite      analysis.Suite
	metrics    *metrics.Metrics
	log        *logging.Logger
	now        func() time.Time
}

// New creates a pipeline. m may be nil.
func New(cfg config.PipelineConfig, cls classifier.Classifier, m *metrics.Metrics) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		classifier: cls,
		suite:      analysis.NewSuite(),
		metrics:    m,
		log:        logging.Default().With("pipeline"),
		now:        time.Now,
	}
	p.log.Debug("Detectors: %s", strings.Join(p.suite.Names(), ", "))
	return p
}

// Run analyses packets and returns the scored flows. Any error aborts the
// whole run; no partial results are returned.
func (p *Pipeline) Run(ctx context.Context, source string, packets []model.PacketRecord) (*model.Run, error) {
	start := time.Now()
	run, err := p.run(ctx, source, packets)
	p.metrics.ObserveRun(time.Since(start), err)
	return run, err
}

func (p *Pipeline) run(ctx context.Context, source string, packets []model.PacketRecord) (*model.Run, error) {
	if p.cfg.MaxPackets > 0 && len(packets) > p.cfg.MaxPackets {
		return nil, fmt.Errorf("%w: %d records, limit %d", ErrTooManyPackets, len(packets), p.cfg.MaxPackets)
	}

	table, err := flow.Assemble(packets, p.cfg.MaxFlows)
	if err != nil {
		return nil, fmt.Errorf("assembling flows: %w", err)
	}
	flows := table.Flows()
	p.metrics.ObserveInput(len(packets), len(flows))
	p.log.Info("Reconstructed %d flows from %d packets", len(flows), len(packets))

	records, detections, err := p.detect(ctx, flows)
	if err != nil {
		return nil, err
	}

	// The classifier needs the complete feature table, so this is the one
	// point where all per-flow work must have finished.
	probs, err := p.classifier.Score(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("scoring features: %w", err)
	}
	probs, err = classifier.Normalize(probs, len(records))
	if err != nil {
		return nil, fmt.Errorf("scoring features: %w", err)
	}

	results := make([]model.ScoredResult, len(flows))
	for i := range flows {
		detections[i].MLProbability = probs[i]
		results[i] = scoring.Apply(records[i], detections[i])
		p.observe(results[i])
		p.log.Debug("Scored %s: risk %.2f, confidence %.2f", flows[i], results[i].RiskScore, results[i].Confidence)
	}

	run := &model.Run{
		ID:          uuid.NewString(),
		Source:      source,
		CreatedAt:   p.now().UTC(),
		PacketCount: len(packets),
		Results:     results,
	}
	p.logAdvisories(run)
	return run, nil
}

// detect extracts features and runs the heuristic detectors for every
// flow in parallel. Each goroutine writes only its own slice index.
func (p *Pipeline) detect(ctx context.Context, flows []model.Flow) ([]model.FeatureRecord, []model.DetectionResult, error) {
	records := make([]model.FeatureRecord, len(flows))
	detections := make([]model.DetectionResult, len(flows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i := range flows {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i] = features.Extract(flows[i])
			detections[i] = p.suite.Detect(flows[i], records[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("extracting features: %w", err)
	}
	return records, detections, nil
}

func (p *Pipeline) workers() int {
	if p.cfg.Workers > 0 {
		return p.cfg.Workers
	}
	return runtime.NumCPU()
}

func (p *Pipeline) observe(r model.ScoredResult) {
	p.metrics.ObserveRisk(r.RiskScore)
	if r.Beaconing.Flag {
		p.metrics.ObserveDetection(analysis.ThreatBeaconing)
	}
	if r.DNSTunnel.Flag {
		p.metrics.ObserveDetection(analysis.ThreatDNSTunnel)
	}
	if r.ProtocolAnomaly.Flag {
		p.metrics.ObserveDetection(analysis.ThreatProtocolAnomaly)
	}
}

func (p *Pipeline) logAdvisories(run *model.Run) {
	flagged := 0
	for _, r := range run.Results {
		a := analysis.Advise(r)
		if a.Severity < analysis.WARNING {
			continue
		}
		flagged++
		p.log.Warn("%s %s: %s (%s)", a.Severity, a.FlowID, a.Title, a.Description)
	}
	p.log.Info("Run %s: %d flows scored, %d at WARNING or above", run.ID, len(run.Results), flagged)
}
