// Package routing provides simplified MANET routing protocols that find
// multi-hop paths over the current radio connectivity.
package routing

import (
	"io"

	"gitlab.com/akita/akita/v3/sim"
)

// A Topology tells which nodes can hear each other.
type Topology interface {
	NodeCount() int
	Connected(a, b int, now sim.VTimeInSec) bool
}

// A Route is the node path a packet takes.
type Route struct {
	// Path lists node indices from the source to the destination.
	Path []int

	// Discovered is set when the route had to be discovered for this
	// packet.
	Discovered bool
}

// Hops returns the number of links on the route.
func (r Route) Hops() int {
	return len(r.Path) - 1
}

// A Protocol finds routes between nodes.
type Protocol interface {
	// Name returns the protocol label.
	Name() string

	// Route returns the route a packet sent from src to dst at now takes.
	// It returns false if the packet cannot be delivered.
	Route(src, dst int, now sim.VTimeInSec) (Route, bool)

	// WriteTable dumps the routing table of every node.
	WriteTable(w io.Writer, now sim.VTimeInSec) error
}

func linksUp(topo Topology, path []int, now sim.VTimeInSec) bool {
	for i := 0; i+1 < len(path); i++ {
		if !topo.Connected(path[i], path[i+1], now) {
			return false
		}
	}
	return true
}
