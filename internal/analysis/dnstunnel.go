package analysis

import (
	"strings"
	"unicode/utf8"

	"github.com/zhaambo/NetscapeX-CLI/internal/model"
)

// DNSTunnelDetector flags flows carrying long, high-entropy DNS query names,
// the signature of data encoded into subdomains.
type DNSTunnelDetector struct{}

func (DNSTunnelDetector) Name() string { return "DNS Tunneling" }

const (
	// dnsTunnelMinLength is the exclusive lower bound on query length.
	dnsTunnelMinLength = 30
	// dnsTunnelMinEntropy is the exclusive lower bound on entropy (bits/char).
	dnsTunnelMinEntropy = 3.5
)

// Detect inspects every DNS query in the flow and lists each one that is
// both longer than dnsTunnelMinLength and above dnsTunnelMinEntropy.
func (DNSTunnelDetector) Detect(f model.Flow) model.DNSTunnel {
	res := model.DNSTunnel{Reasons: []model.DNSReason{}}
	for _, p := range f.Packets {
		if p.DNSQuery == "" {
			continue
		}
		q := strings.TrimRight(p.DNSQuery, ".")
		length := utf8.RuneCountInString(q)
		entropy := ShannonEntropy(q)
		if length > dnsTunnelMinLength && entropy > dnsTunnelMinEntropy {
			res.Reasons = append(res.Reasons, model.DNSReason{
				QName:   q,
				Entropy: entropy,
				Length:  length,
			})
		}
	}
	res.Flag = len(res.Reasons) > 0
	return res
}
