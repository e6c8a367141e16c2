package model

import "time"

// FeatureRecord holds the statistics derived from one flow. JSON names are
// part of the report format consumed by downstream tooling.
type FeatureRecord struct {
	FlowID      string   `json:"flow_id"`
	Src         string   `json:"src"`
	Dst         string   `json:"dst"`
	Protocol    Protocol `json:"protocol"`
	PktCount    int      `json:"pkt_count"`
	Duration    float64  `json:"duration"`
	IATMean     float64  `json:"iat_mean"`
	IATVar      float64  `json:"iat_var"`
	PktSizeMean float64  `json:"pkt_size_mean"`
	PktSizeVar  float64  `json:"pkt_size_var"`
	BurstCount  int      `json:"burst_count"`
}

// Beaconing is the beaconing detector output.
type Beaconing struct {
	Flag    bool    `json:"flag"`
	Score   float64 `json:"score"`
	Skipped string  `json:"skipped,omitempty"`
}

// DNSReason describes one DNS query that looks like tunneled data.
type DNSReason struct {
	QName   string  `json:"qname"`
	Entropy float64 `json:"entropy"`
	Length  int     `json:"length"`
}

// DNSTunnel is the DNS tunneling detector output.
type DNSTunnel struct {
	Flag    bool        `json:"flag"`
	Reasons []DNSReason `json:"reasons"`
}

// Anomaly types reported by the protocol anomaly detector.
const (
	AnomalyHTTPSNonTCP = "443_on_non_tcp"
	AnomalyDNSNonUDP   = "53_on_non_udp"
)

// AnomalyPacket is the port/protocol context of an anomalous packet.
type AnomalyPacket struct {
	SrcPort  *uint16  `json:"sport"`
	DstPort  *uint16  `json:"dport"`
	Protocol Protocol `json:"proto"`
}

// Anomaly is a single port/protocol mismatch.
type Anomaly struct {
	Type   string        `json:"type"`
	Packet AnomalyPacket `json:"pkt"`
}

// ProtocolAnomaly is the protocol anomaly detector output.
type ProtocolAnomaly struct {
	Flag      bool      `json:"flag"`
	Anomalies []Anomaly `json:"anomalies"`
}

// DetectionResult aggregates the independent detector outputs for one flow.
type DetectionResult struct {
	MLProbability   float64         `json:"ml_prob_encrypted"`
	Beaconing       Beaconing       `json:"beaconing"`
	DNSTunnel       DNSTunnel       `json:"dns_tunnel"`
	ProtocolAnomaly ProtocolAnomaly `json:"protocol_anomaly"`
}

// ScoredResult is a flow's features and detections plus the fused score.
// Embedded fields are flattened into a single JSON object.
type ScoredResult struct {
	FeatureRecord
	DetectionResult
	RiskScore  float64 `json:"risk_score"`
	Confidence float64 `json:"confidence"`
}

// Run is the outcome of one pipeline invocation.
type Run struct {
	ID          string
	Source      string
	CreatedAt   time.Time
	PacketCount int
	Results     []ScoredResult // flow first-seen order
}
