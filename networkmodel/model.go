// Package networkmodel provides a performance model for the wireless network
// that connects the mobile nodes.
package networkmodel

import (
	"github.com/syifan/manetsim"
	"gitlab.com/akita/akita/v3/sim"
)

// A Transfer is a packet that is on its way to the destination port.
type Transfer struct {
	ID      string
	Msg     *manetsim.DataPacket
	Path    []int
	Arrival sim.VTimeInSec
}

// Hops returns the number of wireless hops the transfer crosses.
func (t *Transfer) Hops() int {
	return len(t.Path) - 1
}

// A FlowObserver is told about the fate of every packet the network model
// handles.
type FlowObserver interface {
	OnSend(pkt *manetsim.DataPacket, now sim.VTimeInSec)
	OnReceive(pkt *manetsim.DataPacket, now sim.VTimeInSec)
	OnLost(pkt *manetsim.DataPacket, now sim.VTimeInSec)
}

// A Positioner tells where the nodes are.
type Positioner interface {
	NodeCount() int
	Position(node int, now sim.VTimeInSec) manetsim.Vector
}

// A Link is a radio link between two nodes at one instant.
type Link struct {
	Left, Right int
	Distance    float64
}

type nopObserver struct{}

func (nopObserver) OnSend(*manetsim.DataPacket, sim.VTimeInSec)    {}
func (nopObserver) OnReceive(*manetsim.DataPacket, sim.VTimeInSec) {}
func (nopObserver) OnLost(*manetsim.DataPacket, sim.VTimeInSec)    {}
