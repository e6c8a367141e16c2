package analysis

import (
	"github.com/zhaambo/NetscapeX-CLI/internal/model"
)

// ProtocolAnomalyDetector flags well-known ports used over an unexpected
// transport: HTTPS (443) off TCP, DNS (53) off UDP.
type ProtocolAnomalyDetector struct{}

func (ProtocolAnomalyDetector) Name() string { return "Protocol Anomaly" }

// Detect checks every packet in the flow. Both rules apply independently,
// so one packet can contribute two anomalies.
func (ProtocolAnomalyDetector) Detect(f model.Flow) model.ProtocolAnomaly {
	res := model.ProtocolAnomaly{Anomalies: []model.Anomaly{}}
	for _, p := range f.Packets {
		ctx := model.AnomalyPacket{SrcPort: p.SrcPort, DstPort: p.DstPort, Protocol: p.Protocol}

		if p.HasPort(443) && p.Protocol != model.TCP {
			res.Anomalies = append(res.Anomalies, model.Anomaly{Type: model.AnomalyHTTPSNonTCP, Packet: ctx})
		}
		if p.HasPort(53) && p.Protocol != model.UDP {
			res.Anomalies = append(res.Anomalies, model.Anomaly{Type: model.AnomalyDNSNonUDP, Packet: ctx})
		}
	}
	res.Flag = len(res.Anomalies) > 0
	return res
}
