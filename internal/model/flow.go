package model

import "fmt"

// FlowKey identifies a unidirectional flow. A→B and B→A are distinct keys.
type FlowKey struct {
	Src      string
	Dst      string
	Protocol Protocol
}

// String returns the key in "src → dst proto" form.
func (k FlowKey) String() string {
	return fmt.Sprintf("%s → %s %s", k.Src, k.Dst, k.Protocol)
}

// Flow is the ordered sequence of packet records sharing one key.
// Packets keep the relative order of the input stream.
type Flow struct {
	ID      string
	Key     FlowKey
	Packets []PacketRecord
}

// String returns a brief summary of the flow.
func (f Flow) String() string {
	return fmt.Sprintf("%s %s %d pkts", f.ID, f.Key, len(f.Packets))
}

// FlowTable is an immutable snapshot of assembled flows, ordered by the
// first-seen order of their keys.
type FlowTable struct {
	ids   []string
	flows map[string]Flow
}

// NewFlowTable builds a table from flows already in first-seen order.
// The slice is copied; callers may reuse it.
func NewFlowTable(flows []Flow) *FlowTable {
	t := &FlowTable{
		ids:   make([]string, 0, len(flows)),
		flows: make(map[string]Flow, len(flows)),
	}
	for _, f := range flows {
		t.ids = append(t.ids, f.ID)
		t.flows[f.ID] = f
	}
	return t
}

// Len returns the number of flows.
func (t *FlowTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ids)
}

// IDs returns a copy of the flow ids in first-seen order.
func (t *FlowTable) IDs() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.ids))
	copy(out, t.ids)
	return out
}

// Get returns a copy of the flow with the given id.
func (t *FlowTable) Get(id string) (Flow, bool) {
	if t == nil {
		return Flow{}, false
	}
	f, ok := t.flows[id]
	if !ok {
		return Flow{}, false
	}
	return f.clone(), true
}

// Flows returns copies of all flows in first-seen order. Changing a
// returned flow's packets does not affect the table.
func (t *FlowTable) Flows() []Flow {
	if t == nil {
		return nil
	}
	out := make([]Flow, 0, len(t.ids))
	for _, id := range t.ids {
		out = append(out, t.flows[id].clone())
	}
	return out
}

func (f Flow) clone() Flow {
	pkts := make([]PacketRecord, len(f.Packets))
	copy(pkts, f.Packets)
	f.Packets = pkts
	return f
}
