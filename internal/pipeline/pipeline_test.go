package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/zhaambo/NetscapeX-CLI/internal/classifier"
	"github.com/zhaambo/NetscapeX-CLI/internal/config"
	"github.com/zhaambo/NetscapeX-CLI/internal/logging"
	"github.com/zhaambo/NetscapeX-CLI/internal/metrics"
	"github.com/zhaambo/NetscapeX-CLI/internal/model"
	"github.com/zhaambo/NetscapeX-CLI/internal/report"
)

func udp(src, dst string, ts float64, size int) model.PacketRecord {
	return model.PacketRecord{
		Timestamp: ts,
		SrcAddr:   src,
		DstAddr:   dst,
		Protocol:  model.UDP,
		Size:      size,
		SrcPort:   model.Port(40000),
		DstPort:   model.Port(9999),
	}
}

// mixedCapture builds a capture with a beacon, a DNS tunnel, a protocol
// anomaly and background noise.
func mixedCapture() []model.PacketRecord {
	var pkts []model.PacketRecord
	for i := 0; i < 20; i++ {
		ts := float64(i)
		pkts = append(pkts, udp("10.0.0.5", "203.0.113.9", ts*30, 90))

		q := model.PacketRecord{
			Timestamp: ts*0.3 + 0.05,
			SrcAddr:   "10.0.0.7",
			DstAddr:   "10.0.0.53",
			Protocol:  model.UDP,
			Size:      120,
			SrcPort:   model.Port(51000),
			DstPort:   model.Port(53),
			DNSQuery:  fmt.Sprintf("a9x%02dkq7zmw4vb2nhp8ty3lsd6fgjrc1eu.tunnel.example.", i),
		}
		pkts = append(pkts, q)

		pkts = append(pkts, udp(fmt.Sprintf("192.168.1.%d", i%3), "192.168.1.200", ts*0.01, 1400-i))
	}
	pkts = append(pkts, model.PacketRecord{
		Timestamp: 5,
		SrcAddr:   "10.0.0.9",
		DstAddr:   "198.51.100.1",
		Protocol:  model.UDP,
		Size:      1200,
		SrcPort:   model.Port(50000),
		DstPort:   model.Port(443),
	})
	return pkts
}

func newPipeline(cfg config.PipelineConfig, cls classifier.Classifier) *Pipeline {
	if cls == nil {
		cls = classifier.Static{}
	}
	return New(cfg, cls, nil)
}

func TestRun_TwoPacketScenario(t *testing.T) {
	pkts := []model.PacketRecord{
		udp("10.0.0.1", "10.0.0.2", 0.0, 100),
		udp("10.0.0.1", "10.0.0.2", 2.0, 100),
	}

	run, err := newPipeline(config.PipelineConfig{}, classifier.Static{Probability: 0}).Run(context.Background(), "test", pkts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(run.Results) != 1 {
		t.Fatalf("expected 1 flow, got %d", len(run.Results))
	}

	r := run.Results[0]
	if r.PktCount != 2 || r.Duration != 2.0 || r.IATMean != 2.0 || r.IATVar != 0.0 {
		t.Errorf("timing features = %+v", r.FeatureRecord)
	}
	if r.PktSizeMean != 100.0 || r.PktSizeVar != 0.0 || r.BurstCount != 2 {
		t.Errorf("size/burst features = %+v", r.FeatureRecord)
	}
	if r.Beaconing.Flag || r.DNSTunnel.Flag || r.ProtocolAnomaly.Flag {
		t.Errorf("no detector should fire: %+v", r.DetectionResult)
	}
	if r.RiskScore != 0.0 {
		t.Errorf("RiskScore = %v, want 0", r.RiskScore)
	}
	if r.Confidence != 0.10 {
		t.Errorf("Confidence = %v, want 0.10", r.Confidence)
	}
	if run.PacketCount != 2 || run.Source != "test" || run.ID == "" {
		t.Errorf("run metadata = %+v", run)
	}
}

func TestRun_MixedCapture(t *testing.T) {
	run, err := newPipeline(config.PipelineConfig{Workers: 4}, nil).Run(context.Background(), "mixed", mixedCapture())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	byPair := make(map[string]model.ScoredResult)
	for _, r := range run.Results {
		byPair[r.Src+">"+r.Dst] = r
	}

	beacon := byPair["10.0.0.5>203.0.113.9"]
	if !beacon.Beaconing.Flag || beacon.Beaconing.Score != 0.9 {
		t.Errorf("beacon flow = %+v", beacon.Beaconing)
	}
	if beacon.RiskScore != 22.5 {
		t.Errorf("beacon risk = %v, want 22.5", beacon.RiskScore)
	}

	tunnel := byPair["10.0.0.7>10.0.0.53"]
	if !tunnel.DNSTunnel.Flag || len(tunnel.DNSTunnel.Reasons) != 20 {
		t.Errorf("tunnel flow flagged=%v reasons=%d", tunnel.DNSTunnel.Flag, len(tunnel.DNSTunnel.Reasons))
	}

	anomaly := byPair["10.0.0.9>198.51.100.1"]
	if !anomaly.ProtocolAnomaly.Flag || anomaly.RiskScore != 10 {
		t.Errorf("anomaly flow = %+v risk=%v", anomaly.ProtocolAnomaly, anomaly.RiskScore)
	}
}

func TestRun_ResultsInFirstSeenOrder(t *testing.T) {
	run, err := newPipeline(config.PipelineConfig{Workers: 8}, nil).Run(context.Background(), "order", mixedCapture())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for i, r := range run.Results {
		want := fmt.Sprintf("flow-%d", i+1)
		if r.FlowID != want {
			t.Fatalf("Results[%d].FlowID = %s, want %s", i, r.FlowID, want)
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	pkts := mixedCapture()
	cls := classifier.Func(func(_ context.Context, recs []model.FeatureRecord) ([]float64, error) {
		out := make([]float64, len(recs))
		for i, r := range recs {
			out[i] = float64(r.PktCount%10) / 10
		}
		return out, nil
	})

	marshal := func(workers int) []byte {
		run, err := newPipeline(config.PipelineConfig{Workers: workers}, cls).Run(context.Background(), "idem", pkts)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		data, err := json.Marshal(run.Results)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	first := marshal(1)
	for _, workers := range []int{1, 2, 8} {
		if got := marshal(workers); !bytes.Equal(got, first) {
			t.Fatalf("workers=%d: results differ between runs", workers)
		}
	}
}

func TestRun_ExtremeTimestampsStillReport(t *testing.T) {
	pkts := []model.PacketRecord{
		udp("10.0.0.1", "10.0.0.2", 0, 100),
		udp("10.0.0.1", "10.0.0.2", 1e200, 100),
		udp("10.0.0.1", "10.0.0.2", 3e200, 100),
	}

	run, err := newPipeline(config.PipelineConfig{}, nil).Run(context.Background(), "extreme", pkts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := report.Marshal(run); err != nil {
		t.Fatalf("report should encode despite extreme timestamps: %v", err)
	}
	if run.Results[0].IATVar != 0 {
		t.Errorf("IATVar = %v, want 0", run.Results[0].IATVar)
	}
}

func TestRun_ClassifierProbabilityApplied(t *testing.T) {
	pkts := []model.PacketRecord{udp("a", "b", 0, 100), udp("c", "d", 0, 100)}
	cls := classifier.Func(func(_ context.Context, recs []model.FeatureRecord) ([]float64, error) {
		if len(recs) != 2 {
			t.Errorf("classifier should see the full batch, got %d records", len(recs))
		}
		return []float64{0.9, 2.0}, nil
	})

	run, err := newPipeline(config.PipelineConfig{}, cls).Run(context.Background(), "ml", pkts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Results[0].MLProbability != 0.9 || run.Results[0].RiskScore != 45 {
		t.Errorf("flow-1 = %v / %v, want 0.9 / 45", run.Results[0].MLProbability, run.Results[0].RiskScore)
	}
	if run.Results[1].MLProbability != 1 {
		t.Errorf("out-of-range probability should be clamped, got %v", run.Results[1].MLProbability)
	}
}

func TestRun_ClassifierErrors(t *testing.T) {
	pkts := []model.PacketRecord{udp("a", "b", 0, 100)}

	failing := classifier.Func(func(context.Context, []model.FeatureRecord) ([]float64, error) {
		return nil, errors.New("model offline")
	})
	if run, err := newPipeline(config.PipelineConfig{}, failing).Run(context.Background(), "x", pkts); err == nil || run != nil {
		t.Errorf("classifier failure should abort the run, got run=%v err=%v", run, err)
	}

	short := classifier.Func(func(context.Context, []model.FeatureRecord) ([]float64, error) {
		return []float64{}, nil
	})
	_, err := newPipeline(config.PipelineConfig{}, short).Run(context.Background(), "x", pkts)
	if !errors.Is(err, classifier.ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestRun_Limits(t *testing.T) {
	pkts := mixedCapture()

	_, err := newPipeline(config.PipelineConfig{MaxPackets: 10}, nil).Run(context.Background(), "x", pkts)
	if !errors.Is(err, ErrTooManyPackets) {
		t.Errorf("expected ErrTooManyPackets, got %v", err)
	}

	_, err = newPipeline(config.PipelineConfig{MaxFlows: 2}, nil).Run(context.Background(), "x", pkts)
	if !errors.Is(err, ErrTooManyFlows) {
		t.Errorf("expected ErrTooManyFlows, got %v", err)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPipeline(config.PipelineConfig{}, nil).Run(ctx, "x", mixedCapture())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRun_Empty(t *testing.T) {
	run, err := newPipeline(config.PipelineConfig{}, nil).Run(context.Background(), "empty", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(run.Results) != 0 {
		t.Errorf("expected no results, got %d", len(run.Results))
	}
}

func TestRun_DebugLogging(t *testing.T) {
	var buf bytes.Buffer
	log := logging.Default()
	log.SetOutput(&buf)
	log.SetLevel(logging.DEBUG)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(logging.INFO)
	})

	pkts := []model.PacketRecord{
		udp("10.0.0.1", "10.0.0.2", 0.0, 100),
		udp("10.0.0.1", "10.0.0.2", 2.0, 100),
	}
	if _, err := newPipeline(config.PipelineConfig{}, nil).Run(context.Background(), "debug", pkts); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Detectors: Beaconing, DNS Tunneling, Protocol Anomaly",
		"Scored flow-1 10.0.0.1 → 10.0.0.2 UDP 2 pkts: risk 0.00, confidence 0.10",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("debug output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_Metrics(t *testing.T) {
	m := metrics.New()
	p := New(config.PipelineConfig{}, classifier.Static{}, m)
	if _, err := p.Run(context.Background(), "m", mixedCapture()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "netscapex_detections_total" {
			found = len(mf.GetMetric()) == 3
		}
	}
	if !found {
		t.Error("expected detections for all three detectors")
	}
}
