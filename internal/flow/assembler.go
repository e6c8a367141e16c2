// Package flow groups an ordered stream of packet records into
// unidirectional flows keyed by (source, destination, protocol).
package flow

import (
	"errors"
	"fmt"

	"github.com/zhaambo/NetscapeX-CLI/internal/model"
)

// ErrTooManyFlows is returned when a packet would create a flow beyond the
// assembler's flow limit.
var ErrTooManyFlows = errors.New("flow limit exceeded")

// Assembler owns the private key→flow mapping while packets are added.
// It is not safe for concurrent use; assembly is sequential by nature.
type Assembler struct {
	maxFlows int
	index    map[model.FlowKey]int
	flows    []model.Flow
}

// NewAssembler creates an assembler. maxFlows <= 0 means unbounded.
func NewAssembler(maxFlows int) *Assembler {
	return &Assembler{
		maxFlows: maxFlows,
		index:    make(map[model.FlowKey]int),
	}
}

// Add appends a packet to its flow, creating the flow on first sight of
// its key. Flow ids are assigned in first-seen order and never reused.
func (a *Assembler) Add(pkt model.PacketRecord) error {
	key := pkt.Key()
	i, ok := a.index[key]
	if !ok {
		if a.maxFlows > 0 && len(a.flows) >= a.maxFlows {
			return fmt.Errorf("%w: more than %d flows, rejected %s", ErrTooManyFlows, a.maxFlows, pkt)
		}
		i = len(a.flows)
		a.index[key] = i
		a.flows = append(a.flows, model.Flow{
			ID:  fmt.Sprintf("flow-%d", i+1),
			Key: key,
		})
	}
	a.flows[i].Packets = append(a.flows[i].Packets, pkt)
	return nil
}

// Len returns the number of flows seen so far.
func (a *Assembler) Len() int {
	return len(a.flows)
}

// Snapshot returns an immutable table of the flows assembled so far.
// Packet slices are copied, so later Add calls do not affect it.
func (a *Assembler) Snapshot() *model.FlowTable {
	flows := make([]model.Flow, len(a.flows))
	for i, f := range a.flows {
		pkts := make([]model.PacketRecord, len(f.Packets))
		copy(pkts, f.Packets)
		flows[i] = model.Flow{ID: f.ID, Key: f.Key, Packets: pkts}
	}
	return model.NewFlowTable(flows)
}

// Assemble groups packets into a flow table in one call.
func Assemble(packets []model.PacketRecord, maxFlows int) (*model.FlowTable, error) {
	a := NewAssembler(maxFlows)
	for _, p := range packets {
		if err := a.Add(p); err != nil {
			return nil, err
		}
	}
	return a.Snapshot(), nil
}
