// Package flowmon keeps per-flow packet statistics and stores them in the
// FlowMonitor XML layout.
package flowmon

import (
	"math"

	"github.com/syifan/manetsim"
	"gitlab.com/akita/akita/v3/sim"
)

// ProtocolUDP is the IP protocol number of every monitored flow.
const ProtocolUDP = 17

// FirstEphemeralPort is the source port the first socket of a node binds.
const FirstEphemeralPort = 49153

// FlowStats holds the statistics of one flow.
type FlowStats struct {
	FlowID int

	SourceAddress      string
	DestinationAddress string
	Protocol           int
	SourcePort         int
	DestinationPort    int

	TimeFirstTxPacket sim.VTimeInSec
	TimeFirstRxPacket sim.VTimeInSec
	TimeLastTxPacket  sim.VTimeInSec
	TimeLastRxPacket  sim.VTimeInSec

	DelaySum  sim.VTimeInSec
	JitterSum sim.VTimeInSec
	LastDelay sim.VTimeInSec

	TxBytes        uint64
	RxBytes        uint64
	TxPackets      uint64
	RxPackets      uint64
	LostPackets    uint64
	TimesForwarded uint64
}

type flowKey struct {
	src, dst int
}

// A Monitor observes every packet of the network model and accumulates
// flow statistics. Flow IDs are given in the order flows are first seen,
// starting at 1.
type Monitor struct {
	destinationPort int
	flows           map[flowKey]*FlowStats
	order           []*FlowStats
}

// NewMonitor creates a monitor for flows towards destinationPort.
func NewMonitor(destinationPort int) *Monitor {
	return &Monitor{
		destinationPort: destinationPort,
		flows:           make(map[flowKey]*FlowStats),
	}
}

func (m *Monitor) flow(pkt *manetsim.DataPacket) *FlowStats {
	key := flowKey{src: pkt.SrcNode, dst: pkt.DstNode}
	if f, found := m.flows[key]; found {
		return f
	}

	f := &FlowStats{
		FlowID:             len(m.order) + 1,
		SourceAddress:      manetsim.NodeAddress(pkt.SrcNode),
		DestinationAddress: manetsim.NodeAddress(pkt.DstNode),
		Protocol:           ProtocolUDP,
		SourcePort:         FirstEphemeralPort,
		DestinationPort:    m.destinationPort,
	}
	m.flows[key] = f
	m.order = append(m.order, f)

	return f
}

// OnSend records a packet leaving its source.
func (m *Monitor) OnSend(pkt *manetsim.DataPacket, now sim.VTimeInSec) {
	f := m.flow(pkt)

	if f.TxPackets == 0 {
		f.TimeFirstTxPacket = now
	}
	f.TimeLastTxPacket = now
	f.TxPackets++
	f.TxBytes += uint64(pkt.Bytes())
}

// OnReceive records a packet arriving at its destination.
func (m *Monitor) OnReceive(pkt *manetsim.DataPacket, now sim.VTimeInSec) {
	f := m.flow(pkt)
	delay := now - pkt.SendTime

	if f.RxPackets == 0 {
		f.TimeFirstRxPacket = now
	} else {
		f.JitterSum += sim.VTimeInSec(math.Abs(float64(delay - f.LastDelay)))
	}

	f.LastDelay = delay
	f.DelaySum += delay
	f.TimeLastRxPacket = now
	f.RxPackets++
	f.RxBytes += uint64(pkt.Bytes())

	if pkt.Hops > 1 {
		f.TimesForwarded += uint64(pkt.Hops - 1)
	}
}

// OnLost records a packet that was dropped.
func (m *Monitor) OnLost(pkt *manetsim.DataPacket, now sim.VTimeInSec) {
	m.flow(pkt).LostPackets++
}

// Flows returns a copy of the statistics of every flow, ordered by flow ID.
func (m *Monitor) Flows() []FlowStats {
	flows := make([]FlowStats, 0, len(m.order))
	for _, f := range m.order {
		flows = append(flows, *f)
	}

	return flows
}

// Summary summarizes every flow.
func (m *Monitor) Summary() Summary {
	return Summarize(m.Flows(), nil)
}

// Summary holds the figures of merit of a set of flows.
type Summary struct {
	Flows          int
	TxPackets      uint64
	RxPackets      uint64
	LostPackets    uint64
	TimesForwarded uint64

	// LossRate is the share of sent packets that never arrived.
	LossRate float64

	// AverageDelay is the mean end-to-end delay of received packets, in
	// seconds.
	AverageDelay float64
}

// Summarize summarizes the flows for which keep returns true. A nil keep
// selects every flow.
func Summarize(flows []FlowStats, keep func(FlowStats) bool) Summary {
	var (
		s        Summary
		delaySum float64
	)

	for _, f := range flows {
		if keep != nil && !keep(f) {
			continue
		}

		s.Flows++
		s.TxPackets += f.TxPackets
		s.RxPackets += f.RxPackets
		s.LostPackets += f.LostPackets
		s.TimesForwarded += f.TimesForwarded
		delaySum += float64(f.DelaySum)
	}

	if s.TxPackets > 0 {
		s.LossRate = float64(s.TxPackets-min(s.RxPackets, s.TxPackets)) /
			float64(s.TxPackets)
	}

	if s.RxPackets > 0 {
		s.AverageDelay = delaySum / float64(s.RxPackets)
	}

	return s
}
