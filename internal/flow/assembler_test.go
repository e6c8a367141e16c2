package flow

import (
	"errors"
	"strings"
	"testing"

	"github.com/zhaambo/NetscapeX-CLI/internal/model"
)

func makePacket(src, dst string, proto model.Protocol, ts float64) model.PacketRecord {
	return model.PacketRecord{
		Timestamp: ts,
		SrcAddr:   src,
		DstAddr:   dst,
		Protocol:  proto,
		Size:      100,
	}
}

func TestAssemble_GroupsByKey(t *testing.T) {
	packets := []model.PacketRecord{
		makePacket("10.0.0.1", "10.0.0.2", model.UDP, 0),
		makePacket("10.0.0.1", "10.0.0.2", model.TCP, 1),
		makePacket("10.0.0.1", "10.0.0.2", model.UDP, 2),
		makePacket("10.0.0.3", "10.0.0.2", model.UDP, 3),
	}

	table, err := Assemble(packets, 0)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("expected 3 flows, got %d", table.Len())
	}

	f, ok := table.Get("flow-1")
	if !ok {
		t.Fatal("flow-1 missing")
	}
	if f.Key.Protocol != model.UDP || len(f.Packets) != 2 {
		t.Errorf("flow-1 = %s, want UDP flow with 2 packets", f)
	}

	f, _ = table.Get("flow-2")
	if f.Key.Protocol != model.TCP {
		t.Errorf("flow-2 protocol = %s, want TCP", f.Key.Protocol)
	}
	f, _ = table.Get("flow-3")
	if f.Key.Src != "10.0.0.3" {
		t.Errorf("flow-3 src = %s, want 10.0.0.3", f.Key.Src)
	}
}

func TestAssemble_DirectionNotMerged(t *testing.T) {
	packets := []model.PacketRecord{
		makePacket("10.0.0.1", "10.0.0.2", model.TCP, 0),
		makePacket("10.0.0.2", "10.0.0.1", model.TCP, 0.1),
	}

	table, err := Assemble(packets, 0)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if table.Len() != 2 {
		t.Errorf("A→B and B→A should be distinct flows, got %d flows", table.Len())
	}
}

func TestAssemble_PreservesInputOrder(t *testing.T) {
	packets := []model.PacketRecord{
		makePacket("a", "b", model.UDP, 5),
		makePacket("a", "b", model.UDP, 1),
		makePacket("a", "b", model.UDP, 3),
	}

	table, _ := Assemble(packets, 0)
	f, _ := table.Get("flow-1")
	want := []float64{5, 1, 3}
	for i, p := range f.Packets {
		if p.Timestamp != want[i] {
			t.Errorf("packet %d timestamp = %v, want %v", i, p.Timestamp, want[i])
		}
	}
}

func TestAssemble_DeterministicIDs(t *testing.T) {
	packets := []model.PacketRecord{
		makePacket("c", "d", model.TCP, 0),
		makePacket("a", "b", model.TCP, 1),
		makePacket("c", "d", model.TCP, 2),
		makePacket("e", "f", model.OTHER, 3),
	}

	for i := 0; i < 5; i++ {
		table, _ := Assemble(packets, 0)
		ids := table.IDs()
		want := []string{"flow-1", "flow-2", "flow-3"}
		for j := range want {
			if ids[j] != want[j] {
				t.Fatalf("run %d: ids = %v, want %v", i, ids, want)
			}
		}
		f, _ := table.Get("flow-2")
		if f.Key.Src != "a" {
			t.Fatalf("run %d: flow-2 src = %s, want a", i, f.Key.Src)
		}
	}
}

func TestAssembler_SnapshotIsolated(t *testing.T) {
	a := NewAssembler(0)
	if err := a.Add(makePacket("a", "b", model.UDP, 0)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	snap := a.Snapshot()

	if err := a.Add(makePacket("a", "b", model.UDP, 1)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := a.Add(makePacket("x", "y", model.UDP, 2)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if snap.Len() != 1 {
		t.Errorf("snapshot should keep 1 flow, got %d", snap.Len())
	}
	f, _ := snap.Get("flow-1")
	if len(f.Packets) != 1 {
		t.Errorf("snapshot flow should keep 1 packet, got %d", len(f.Packets))
	}
	if a.Len() != 2 {
		t.Errorf("assembler should now hold 2 flows, got %d", a.Len())
	}
}

func TestAssembler_FlowLimit(t *testing.T) {
	a := NewAssembler(2)
	packets := []model.PacketRecord{
		makePacket("a", "b", model.UDP, 0),
		makePacket("c", "d", model.UDP, 1),
		makePacket("a", "b", model.UDP, 2), // existing key, still allowed
	}
	for _, p := range packets {
		if err := a.Add(p); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	err := a.Add(makePacket("e", "f", model.UDP, 3))
	if !errors.Is(err, ErrTooManyFlows) {
		t.Errorf("expected ErrTooManyFlows, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "e:- → f:- UDP") {
		t.Errorf("error should name the rejected packet, got %v", err)
	}
}

func TestAssemble_Empty(t *testing.T) {
	table, err := Assemble(nil, 0)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("expected no flows, got %d", table.Len())
	}
}
