package analysis

import (
	"fmt"

	"github.com/zhaambo/NetscapeX-CLI/internal/model"
)

// Severity represents the severity level of an advisory.
type Severity int

const (
	INFO     Severity = iota // Informational observation
	WARNING                  // Requires attention
	CRITICAL                 // Immediate action recommended
)

// Risk score boundaries for the severity bands.
const (
	warningRisk  = 30.0
	criticalRisk = 60.0
)

// String returns the human-readable severity name.
func (s Severity) String() string {
	switch s {
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case CRITICAL:
		return "CRITICAL"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SeverityFor maps a risk score to a severity band.
func SeverityFor(risk float64) Severity {
	switch {
	case risk >= criticalRisk:
		return CRITICAL
	case risk >= warningRisk:
		return WARNING
	default:
		return INFO
	}
}

// Threat types, in display precedence order.
const (
	ThreatDNSTunnel       = "dns_tunnel"
	ThreatBeaconing       = "beaconing"
	ThreatProtocolAnomaly = "protocol_anomaly"
	ThreatEncryptedLike   = "encrypted_like"
	ThreatNone            = "none"
)

// encryptedLikeProb is the classifier probability above which an otherwise
// unflagged flow is labelled encrypted_like.
const encryptedLikeProb = 0.8

// ThreatType reduces a detection result to its single highest-priority label.
func ThreatType(d model.DetectionResult) string {
	switch {
	case d.DNSTunnel.Flag:
		return ThreatDNSTunnel
	case d.Beaconing.Flag:
		return ThreatBeaconing
	case d.ProtocolAnomaly.Flag:
		return ThreatProtocolAnomaly
	case d.MLProbability > encryptedLikeProb:
		return ThreatEncryptedLike
	default:
		return ThreatNone
	}
}

// Advisory represents a single finding about a scored flow.
type Advisory struct {
	Severity    Severity
	FlowID      string
	Threat      string
	Title       string
	Description string
	Action      string // Suggested remediation action
}

// Advise builds the advisory for a scored flow.
func Advise(r model.ScoredResult) Advisory {
	threat := ThreatType(r.DetectionResult)
	a := Advisory{
		Severity: SeverityFor(r.RiskScore),
		FlowID:   r.FlowID,
		Threat:   threat,
	}

	switch threat {
	case ThreatDNSTunnel:
		a.Title = fmt.Sprintf("Possible DNS Tunnel: %s → %s", r.Src, r.Dst)
		a.Description = fmt.Sprintf("%d long high-entropy DNS queries.", len(r.DNSTunnel.Reasons))
		if len(r.DNSTunnel.Reasons) > 0 {
			a.Description = fmt.Sprintf(
				"%d long high-entropy DNS queries (first: %q).",
				len(r.DNSTunnel.Reasons), r.DNSTunnel.Reasons[0].QName,
			)
		}
		a.Action = "Inspect the queried domains and block the resolver path if the payload is not recognised."
	case ThreatBeaconing:
		a.Title = fmt.Sprintf("Possible Beaconing: %s → %s", r.Src, r.Dst)
		a.Description = fmt.Sprintf(
			"%d small packets (mean %.0f bytes) at a regular interval of %.2fs (variance %.3f).",
			r.PktCount, r.PktSizeMean, r.IATMean, r.IATVar,
		)
		a.Action = fmt.Sprintf("Check %s for implants checking in with %s.", r.Src, r.Dst)
	case ThreatProtocolAnomaly:
		a.Title = fmt.Sprintf("Protocol/Port Mismatch: %s → %s", r.Src, r.Dst)
		a.Description = fmt.Sprintf(
			"%d packets use a well-known port with an unexpected transport.",
			len(r.ProtocolAnomaly.Anomalies),
		)
		if len(r.ProtocolAnomaly.Anomalies) > 0 {
			a.Description = fmt.Sprintf(
				"%d packets use a well-known port with an unexpected transport (first: %s).",
				len(r.ProtocolAnomaly.Anomalies), r.ProtocolAnomaly.Anomalies[0].Type,
			)
		}
		a.Action = "Verify the service behind this port; tunnelling over well-known ports evades port-based filters."
	case ThreatEncryptedLike:
		a.Title = fmt.Sprintf("Encrypted-like Traffic: %s → %s", r.Src, r.Dst)
		a.Description = fmt.Sprintf("Classifier probability %.2f.", r.MLProbability)
		a.Action = "Confirm the flow belongs to a known encrypted service."
	default:
		a.Title = fmt.Sprintf("No Finding: %s → %s", r.Src, r.Dst)
		a.Description = "No detector fired for this flow."
	}

	return a
}
