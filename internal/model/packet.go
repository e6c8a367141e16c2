package model

import "fmt"

// Protocol is the transport protocol tag carried by a packet record.
type Protocol string

const (
	TCP   Protocol = "TCP"
	UDP   Protocol = "UDP"
	OTHER Protocol = "OTHER"
)

// PacketRecord is the metadata extracted from a single captured packet.
// Records are produced once by the capture decoder and never mutated.
//
// Optional fields: SrcPort/DstPort are nil when the packet has no TCP/UDP
// header, and DNSQuery is empty when no DNS question was decoded. A nil port
// never matches a port rule; an empty query is never inspected.
type PacketRecord struct {
	Timestamp float64 // seconds since the epoch
	SrcAddr   string
	DstAddr   string
	Protocol  Protocol
	Size      int
	SrcPort   *uint16
	DstPort   *uint16
	DNSQuery  string
}

// Port returns a pointer to p, for filling the optional port fields.
func Port(p uint16) *uint16 {
	return &p
}

// HasPort reports whether either the source or destination port equals p.
func (r PacketRecord) HasPort(p uint16) bool {
	return (r.SrcPort != nil && *r.SrcPort == p) || (r.DstPort != nil && *r.DstPort == p)
}

// Key returns the flow key this packet belongs to.
func (r PacketRecord) Key() FlowKey {
	return FlowKey{Src: r.SrcAddr, Dst: r.DstAddr, Protocol: r.Protocol}
}

// String returns a brief summary of the packet record.
func (r PacketRecord) String() string {
	return fmt.Sprintf("%.6f %s:%s → %s:%s %s %d bytes",
		r.Timestamp,
		r.SrcAddr, portString(r.SrcPort),
		r.DstAddr, portString(r.DstPort),
		r.Protocol, r.Size,
	)
}

func portString(p *uint16) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}
