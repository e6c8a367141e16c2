// Package publish fans scored flows out to a NATS subject so downstream
// consumers can react to a run without reading the report file.
package publish

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/zhaambo/NetscapeX-CLI/internal/analysis"
	"github.com/zhaambo/NetscapeX-CLI/internal/config"
	"github.com/zhaambo/NetscapeX-CLI/internal/logging"
	"github.com/zhaambo/NetscapeX-CLI/internal/model"
)

// Message headers set on every published flow.
const (
	HeaderRunID    = "Netscapex-Run-Id"
	HeaderSeverity = "Netscapex-Severity"
	HeaderThreat   = "Netscapex-Threat"
)

// Publisher publishes scored flows as JSON. A nil *Publisher is valid and
// publishes nothing.
type Publisher struct {
	nc      *nats.Conn
	subject string
	log     *logging.Logger
}

// New connects to the configured NATS server. It returns nil, nil when no
// server is configured.
func New(cfg config.PublishConfig) (*Publisher, error) {
	if cfg.NATSURL == "" {
		return nil, nil
	}
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("netscapex"))
	if err != nil {
		return nil, fmt.Errorf("publish: connect %s: %w", cfg.NATSURL, err)
	}
	log := logging.Default().With("publish")
	log.Info("Connected to NATS server at %s", cfg.NATSURL)
	return &Publisher{nc: nc, subject: cfg.Subject, log: log}, nil
}

// PublishRun sends one message per scored flow and flushes the connection.
func (p *Publisher) PublishRun(run *model.Run) error {
	if p == nil {
		return nil
	}
	for _, r := range run.Results {
		msg, err := Message(p.subject, run.ID, r)
		if err != nil {
			return err
		}
		if err := p.nc.PublishMsg(msg); err != nil {
			return fmt.Errorf("publish: %s: %w", r.FlowID, err)
		}
	}
	if err := p.nc.Flush(); err != nil {
		return fmt.Errorf("publish: flush: %w", err)
	}
	p.log.Info("Published %d flows of run %s to %s", len(run.Results), run.ID, p.subject)
	return nil
}

// Message builds the NATS message for one scored flow.
func Message(subject, runID string, r model.ScoredResult) (*nats.Msg, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("publish: encode %s: %w", r.FlowID, err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(HeaderRunID, runID)
	msg.Header.Set(HeaderSeverity, analysis.SeverityFor(r.RiskScore).String())
	msg.Header.Set(HeaderThreat, analysis.ThreatType(r.DetectionResult))
	return msg, nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.log.Warn("NATS drain: %v", err)
		return
	}
	p.log.Info("NATS connection drained and closed")
}
