// Package manetsim provides an experiment harness that samples the throughput
// of a simulated mobile ad-hoc network and snapshots its state.
package manetsim

import (
	"strconv"
	"strings"

	"gitlab.com/akita/akita/v3/sim"
)

// A Vector is a position or a velocity in a three dimensional space, in
// metres or metres per second.
type Vector struct {
	X, Y, Z float64
}

// Add returns the sum of two vectors.
func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns the difference of two vectors.
func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale multiplies every component by f.
func (v Vector) Scale(f float64) Vector {
	return Vector{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

// A ThroughputSample is the reception statistic of one sampling interval.
type ThroughputSample struct {
	Time       sim.VTimeInSec
	Kbps       float64
	Packets    uint32
	Sinks      int
	Protocol   string
	TxPowerDbm float64
}

// A NodePosition is the position of a node at the time a snapshot is taken.
type NodePosition struct {
	Index    int
	Position Vector
}

// A NetworkSnapshot captures the state of the whole network at one point in
// simulated time.
type NetworkSnapshot struct {
	Time           sim.VTimeInSec
	NodeCount      int
	SinkCount      int
	ThroughputKbps float64
	Positions      []NodePosition
}

// NodeAddress returns the dotted IPv4 address assigned to the node with the
// given index. Nodes are numbered from 10.1.1.1.
func NodeAddress(index int) string {
	return "10.1.1." + strconv.Itoa(index+1)
}

// FormatFloat formats f the way a default C++ output stream does: six
// significant digits, no trailing zeros.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', 6, 64)

	mantissa, exp, found := strings.Cut(s, "e")
	if !found || !strings.Contains(mantissa, ".") {
		return s
	}

	mantissa = strings.TrimRight(strings.TrimRight(mantissa, "0"), ".")

	return mantissa + "e" + exp
}
