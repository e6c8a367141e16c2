// Package capture decodes pcap and pcapng capture files into packet
// records. Only IP metadata is extracted; payloads are never retained.
package capture

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/zhaambo/NetscapeX-CLI/internal/logging"
	"github.com/zhaambo/NetscapeX-CLI/internal/model"
)

// ErrEmpty is returned for a zero-length capture.
var ErrEmpty = errors.New("capture: empty input")

// pcapngMagic is the block type of a pcapng section header. It reads the
// same in either byte order.
const pcapngMagic = 0x0A0D0D0A

// packetReader is satisfied by both pcapgo.Reader and pcapgo.NgReader.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Stats counts the frames seen while reading a capture.
type Stats struct {
	Frames  int
	Packets int
	Skipped int
}

// ReadFile opens and decodes the capture at path.
func ReadFile(path string) ([]model.PacketRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open: %w", err)
	}
	defer f.Close()

	pkts, stats, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("capture: %s: %w", path, err)
	}
	logging.Default().With("capture").Info("Read %s: %d frames, %d IP packets, %d skipped",
		path, stats.Frames, stats.Packets, stats.Skipped)
	return pkts, nil
}

// Read decodes a pcap or pcapng stream. Frames without an IPv4 or IPv6
// header are skipped; a truncated or malformed file is an error.
func Read(r io.Reader) ([]model.PacketRecord, Stats, error) {
	var stats Stats

	src, err := open(r)
	if err != nil {
		return nil, stats, err
	}
	link := src.LinkType()

	var out []model.PacketRecord
	for {
		data, ci, err := src.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("reading frame %d: %w", stats.Frames+1, err)
		}
		stats.Frames++

		rec, ok := Decode(data, ci, link)
		if !ok {
			stats.Skipped++
			continue
		}
		stats.Packets++
		out = append(out, rec)
	}
	return out, stats, nil
}

func open(r io.Reader) (packetReader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil {
		if errors.Is(err, io.EOF) && len(head) == 0 {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	if binary.LittleEndian.Uint32(head) == pcapngMagic {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("pcapng header: %w", err)
		}
		return ng, nil
	}

	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("pcap header: %w", err)
	}
	return pr, nil
}

// Decode extracts a packet record from one captured frame. It reports
// false when the frame carries no IP header.
func Decode(data []byte, ci gopacket.CaptureInfo, link layers.LinkType) (model.PacketRecord, bool) {
	pkt := gopacket.NewPacket(data, link, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	rec := model.PacketRecord{
		Timestamp: float64(ci.Timestamp.Unix()) + float64(ci.Timestamp.Nanosecond())/1e9,
		Protocol:  model.OTHER,
		Size:      len(data),
	}

	switch ip := pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		rec.SrcAddr, rec.DstAddr = ip.SrcIP.String(), ip.DstIP.String()
	case *layers.IPv6:
		rec.SrcAddr, rec.DstAddr = ip.SrcIP.String(), ip.DstIP.String()
	default:
		return model.PacketRecord{}, false
	}

	switch l4 := pkt.TransportLayer().(type) {
	case *layers.TCP:
		rec.Protocol = model.TCP
		rec.SrcPort, rec.DstPort = model.Port(uint16(l4.SrcPort)), model.Port(uint16(l4.DstPort))
	case *layers.UDP:
		rec.Protocol = model.UDP
		rec.SrcPort, rec.DstPort = model.Port(uint16(l4.SrcPort)), model.Port(uint16(l4.DstPort))
	}

	if l := pkt.Layer(layers.LayerTypeDNS); l != nil {
		if dns := l.(*layers.DNS); len(dns.Questions) > 0 {
			rec.DNSQuery = string(dns.Questions[0].Name)
		}
	}
	return rec, true
}
