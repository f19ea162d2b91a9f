package networkmodel

import (
	"math"

	"github.com/syifan/manetsim"
	"gitlab.com/akita/akita/v3/sim"
)

const speedOfLight = 299792458.0

// FriisRange returns the distance at which the free space path loss brings
// a transmission of txPowerDbm down to the receive threshold.
func FriisRange(txPowerDbm, rxThresholdDbm, frequencyHz float64) float64 {
	lambda := speedOfLight / frequencyHz
	budget := txPowerDbm - rxThresholdDbm

	return lambda / (4 * math.Pi) * math.Pow(10, budget/20)
}

// FriisRxPower returns the received power in dBm at the given distance.
func FriisRxPower(txPowerDbm, frequencyHz, distance float64) float64 {
	if distance <= 0 {
		return txPowerDbm
	}

	lambda := speedOfLight / frequencyHz
	loss := 20 * math.Log10(4*math.Pi*distance/lambda)

	return txPowerDbm - loss
}

// A FriisChannel connects every pair of nodes that is within radio range.
type FriisChannel struct {
	nodes    Positioner
	rangeInM float64
}

// NewFriisChannel creates a channel for nodes transmitting at txPowerDbm.
func NewFriisChannel(
	nodes Positioner,
	txPowerDbm, rxThresholdDbm, frequencyHz float64,
) *FriisChannel {
	return &FriisChannel{
		nodes:    nodes,
		rangeInM: FriisRange(txPowerDbm, rxThresholdDbm, frequencyHz),
	}
}

// Range returns the radio range in metres.
func (c *FriisChannel) Range() float64 {
	return c.rangeInM
}

// NodeCount returns the number of nodes on the channel.
func (c *FriisChannel) NodeCount() int {
	return c.nodes.NodeCount()
}

// Distance returns the distance between two nodes at now.
func (c *FriisChannel) Distance(a, b int, now sim.VTimeInSec) float64 {
	return distance(c.nodes.Position(a, now), c.nodes.Position(b, now))
}

// Connected reports whether a and b can hear each other at now.
func (c *FriisChannel) Connected(a, b int, now sim.VTimeInSec) bool {
	if a == b {
		return false
	}

	return c.Distance(a, b, now) <= c.rangeInM
}

// Links returns every link that is up at now, ordered by node index.
func (c *FriisChannel) Links(now sim.VTimeInSec) []Link {
	var links []Link

	n := c.nodes.NodeCount()
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			d := c.Distance(a, b, now)
			if d <= c.rangeInM {
				links = append(links, Link{Left: a, Right: b, Distance: d})
			}
		}
	}

	return links
}

func distance(a, b manetsim.Vector) float64 {
	d := a.Sub(b)
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}
