package manetsim

import "gitlab.com/akita/akita/v3/sim"

// A DataPacket represents one UDP datagram sent by a traffic source to a
// sink.
type DataPacket struct {
	sim.MsgMeta
	FlowID  int
	SrcNode int
	DstNode int
	Hops    int
}

// Meta returns the meta data of the message.
func (m *DataPacket) Meta() *sim.MsgMeta {
	return &m.MsgMeta
}

// Bytes returns the payload size of the packet.
func (m *DataPacket) Bytes() uint32 {
	return uint32(m.TrafficBytes)
}
