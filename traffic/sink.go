// Package traffic provides the applications that generate and consume the
// experiment traffic.
package traffic

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/syifan/manetsim"
	"gitlab.com/akita/akita/v3/sim"
)

// A ReceiveHandler is called for every packet a sink receives.
type ReceiveHandler func(bytes uint32)

// A Sink is a UDP socket bound on one node that consumes every packet it
// receives.
type Sink struct {
	*sim.ComponentBase

	node      int
	port      sim.Port
	log       *slog.Logger
	onReceive ReceiveHandler

	packets uint64
	bytes   uint64
}

// NewSink creates a new Sink on the given node.
func NewSink(name string, node int, log *slog.Logger) *Sink {
	s := &Sink{
		node: node,
		log:  log,
	}

	s.ComponentBase = sim.NewComponentBase(name)
	s.port = sim.NewLimitNumMsgPort(s, 16, name+".Port")
	s.AddPort("Port", s.port)

	return s
}

// Port returns the port the sink receives on.
func (s *Sink) Port() sim.Port {
	return s.port
}

// Node returns the index of the node the sink is bound on.
func (s *Sink) Node() int {
	return s.node
}

// SetReceiveHandler sets the function called for every received packet.
func (s *Sink) SetReceiveHandler(h ReceiveHandler) {
	s.onReceive = h
}

// Packets returns the number of packets received.
func (s *Sink) Packets() uint64 {
	return s.packets
}

// Bytes returns the number of payload bytes received.
func (s *Sink) Bytes() uint64 {
	return s.bytes
}

// Handle function of a Sink handles events.
func (s *Sink) Handle(e sim.Event) error {
	panic("Sink cannot handle this event type " + reflect.TypeOf(e).String())
}

// NotifyRecv drains every packet waiting on the port.
func (s *Sink) NotifyRecv(now sim.VTimeInSec, port sim.Port) {
	for {
		msg := port.Retrieve(now)
		if msg == nil {
			return
		}

		pkt, ok := msg.(*manetsim.DataPacket)
		if !ok {
			panic(fmt.Sprintf("Cannot handle message %T", msg))
		}

		s.recv(now, pkt)
	}
}

func (s *Sink) recv(now sim.VTimeInSec, pkt *manetsim.DataPacket) {
	s.packets++
	s.bytes += uint64(pkt.Bytes())

	if s.log.Enabled(context.Background(), slog.LevelDebug) {
		s.log.Debug(fmt.Sprintf("%s %d received one packet from %s",
			manetsim.FormatFloat(float64(now)), s.node,
			manetsim.NodeAddress(pkt.SrcNode)))
	}

	if s.onReceive != nil {
		s.onReceive(pkt.Bytes())
	}
}

// NotifyPortFree does nothing, as a sink never sends.
func (s *Sink) NotifyPortFree(now sim.VTimeInSec, port sim.Port) {}
