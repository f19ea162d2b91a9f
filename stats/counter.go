// Package stats turns packet receptions into throughput samples and network
// state snapshots.
package stats

import "math"

// A ReceptionCounter accumulates the data delivered to the sink sockets.
//
// The interval counters are read and cleared by the throughput sampler. The
// lifetime packet count never resets.
type ReceptionCounter struct {
	bytesSinceLastSample   uint64
	packetsSinceLastSample uint32
	totalPacketsEver       uint32
}

// OnBytesReceived records the delivery of one packet of n bytes.
func (c *ReceptionCounter) OnBytesReceived(n uint32) {
	if c.totalPacketsEver == math.MaxUint32 ||
		c.bytesSinceLastSample > math.MaxUint64-uint64(n) {
		panic("reception counter overflow")
	}

	c.bytesSinceLastSample += uint64(n)
	c.packetsSinceLastSample++
	c.totalPacketsEver++
}

// DrainInterval returns the bytes and packets received since the previous
// drain and zeroes both counters.
func (c *ReceptionCounter) DrainInterval() (bytes uint64, packets uint32) {
	bytes, packets = c.bytesSinceLastSample, c.packetsSinceLastSample
	c.bytesSinceLastSample = 0
	c.packetsSinceLastSample = 0

	return bytes, packets
}

// TotalPackets returns the number of packets received since the start of the
// run.
func (c *ReceptionCounter) TotalPackets() uint32 {
	return c.totalPacketsEver
}
