package networkmodel

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/syifan/manetsim"
	"github.com/syifan/manetsim/delaymodel"
	"github.com/syifan/manetsim/routing"
	"gitlab.com/akita/akita/v3/sim"
)

// A deliveryEvent is scheduled when a packet reaches its destination node.
type deliveryEvent struct {
	time     sim.VTimeInSec
	handler  sim.Handler
	transfer *Transfer
}

func (e deliveryEvent) Time() sim.VTimeInSec {
	return e.time
}

func (e deliveryEvent) Handler() sim.Handler {
	return e.handler
}

func (e deliveryEvent) IsSecondary() bool {
	return false
}

// A portFreeEvent is scheduled when a full destination port has room again.
type portFreeEvent struct {
	time    sim.VTimeInSec
	handler sim.Handler
	port    sim.Port
}

func (e portFreeEvent) Time() sim.VTimeInSec {
	return e.time
}

func (e portFreeEvent) Handler() sim.Handler {
	return e.handler
}

func (e portFreeEvent) IsSecondary() bool {
	return false
}

// A Topology is a routing topology that also knows link lengths.
type Topology interface {
	routing.Topology
	Distance(a, b int, now sim.VTimeInSec) float64
}

// A WirelessNetworkModel carries data packets between ports over the
// multi-hop routes of a routing protocol.
type WirelessNetworkModel struct {
	sim.HookableBase
	sim.EventScheduler
	sim.TimeTeller

	topo           Topology
	protocol       routing.Protocol
	delayEstimator delaymodel.DelayEstimator
	observer       FlowObserver
	log            *slog.Logger

	nodes           map[string]int
	busyPorts       map[string]bool
	pendingDelivery map[string][]*Transfer
	inflight        map[string]*Transfer

	delivered, lost uint64
}

// NewWirelessNetworkModel creates a new WirelessNetworkModel.
func NewWirelessNetworkModel(
	es sim.EventScheduler,
	tt sim.TimeTeller,
	topo Topology,
	protocol routing.Protocol,
	delayEstimator delaymodel.DelayEstimator,
	log *slog.Logger,
) *WirelessNetworkModel {
	m := &WirelessNetworkModel{
		EventScheduler:  es,
		TimeTeller:      tt,
		topo:            topo,
		protocol:        protocol,
		delayEstimator:  delayEstimator,
		observer:        nopObserver{},
		log:             log,
		nodes:           make(map[string]int),
		busyPorts:       make(map[string]bool),
		pendingDelivery: make(map[string][]*Transfer),
		inflight:        make(map[string]*Transfer),
	}

	return m
}

// SetFlowObserver sets the observer that is told about every packet.
func (m *WirelessNetworkModel) SetFlowObserver(o FlowObserver) {
	m.observer = o
}

// Protocol returns the routing protocol the model routes with.
func (m *WirelessNetworkModel) Protocol() routing.Protocol {
	return m.protocol
}

// PlugIn plugs a port into the network.
func (m *WirelessNetworkModel) PlugIn(port sim.Port, bufSize int) {
	port.SetConnection(m)
}

// PlugInNode plugs the port of a node into the network.
func (m *WirelessNetworkModel) PlugInNode(port sim.Port, node int) {
	if node < 0 || node >= m.topo.NodeCount() {
		panic(fmt.Sprintf("node %d is not on the channel", node))
	}

	m.nodes[port.Name()] = node
	m.PlugIn(port, 1)
}

// Unplug removes a port from the network.
func (m *WirelessNetworkModel) Unplug(port sim.Port) {
	delete(m.nodes, port.Name())
	delete(m.busyPorts, port.Name())
	delete(m.pendingDelivery, port.Name())
}

// NotifyAvailable notifies the network that the port can receive messages
// again. The queued packets are delivered by a separate event, as the port
// may still be inside its own Retrieve.
func (m *WirelessNetworkModel) NotifyAvailable(
	now sim.VTimeInSec,
	port sim.Port,
) {
	m.Schedule(portFreeEvent{
		time:    now,
		handler: m,
		port:    port,
	})
}

func (m *WirelessNetworkModel) drainPending(
	now sim.VTimeInSec,
	port sim.Port,
) {
	pendingDelivery := m.pendingDelivery[port.Name()]

	for len(pendingDelivery) > 0 {
		t := pendingDelivery[0]
		t.Msg.RecvTime = now
		err := port.Recv(t.Msg)
		if err != nil {
			break
		}

		m.complete(t, now)
		pendingDelivery = pendingDelivery[1:]
	}

	m.pendingDelivery[port.Name()] = pendingDelivery

	if len(pendingDelivery) == 0 {
		delete(m.busyPorts, port.Name())
		delete(m.pendingDelivery, port.Name())
	}
}

// CanSend checks if the network can send a message. The radio never pushes
// back on the sender.
func (m *WirelessNetworkModel) CanSend(src sim.Port) bool {
	return true
}

// Send routes the packet. A packet without a route is dropped, the same way
// a datagram socket drops it.
func (m *WirelessNetworkModel) Send(msg sim.Msg) *sim.SendError {
	pkt, ok := msg.(*manetsim.DataPacket)
	if !ok {
		panic(fmt.Sprintf("cannot send message %T", msg))
	}

	now := m.CurrentTime()
	m.observer.OnSend(pkt, now)

	route, ok := m.protocol.Route(pkt.SrcNode, pkt.DstNode, now)
	if !ok {
		m.drop(pkt, now)
		return nil
	}

	delay, err := m.routeDelay(route, int(pkt.TrafficBytes), now)
	if err != nil {
		m.log.Warn("cannot estimate route delay",
			"time", float64(now), "err", err)
		m.drop(pkt, now)
		return nil
	}

	pkt.Hops = route.Hops()
	t := &Transfer{
		ID:      pkt.ID,
		Msg:     pkt,
		Path:    route.Path,
		Arrival: now + delay,
	}
	m.inflight[t.ID] = t

	m.Schedule(deliveryEvent{
		time:     t.Arrival,
		handler:  m,
		transfer: t,
	})

	return nil
}

// routeDelay sums the hop delays. A route that had to be discovered first
// also pays for the request travelling out and the reply travelling back.
func (m *WirelessNetworkModel) routeDelay(
	route routing.Route,
	bytes int,
	now sim.VTimeInSec,
) (sim.VTimeInSec, error) {
	var delay sim.VTimeInSec

	for i := 0; i < route.Hops(); i++ {
		out, err := m.delayEstimator.Estimate(delaymodel.DelayInput{
			DistanceInMetre: m.topo.Distance(route.Path[i], route.Path[i+1], now),
			Bytes:           bytes,
		})
		if err != nil {
			return 0, err
		}

		delay += out.Delay
	}

	if route.Discovered {
		delay *= 3
	}

	return delay, nil
}

// Handle delivers packets that have arrived.
func (m *WirelessNetworkModel) Handle(e sim.Event) error {
	switch e := e.(type) {
	case deliveryEvent:
		m.deliver(e.transfer, e.time)
	case portFreeEvent:
		m.drainPending(e.time, e.port)
	default:
		panic("WirelessNetworkModel cannot handle this event type " +
			reflect.TypeOf(e).String())
	}

	return nil
}

func (m *WirelessNetworkModel) deliver(t *Transfer, now sim.VTimeInSec) {
	dst := t.Msg.Dst
	if dst == nil {
		panic("packet has no destination port")
	}

	if m.busyPorts[dst.Name()] {
		m.pendingDelivery[dst.Name()] = append(m.pendingDelivery[dst.Name()], t)
		return
	}

	t.Msg.RecvTime = now
	err := dst.Recv(t.Msg)
	if err != nil {
		m.busyPorts[dst.Name()] = true
		m.pendingDelivery[dst.Name()] = append(m.pendingDelivery[dst.Name()], t)
		return
	}

	m.complete(t, now)
}

func (m *WirelessNetworkModel) complete(t *Transfer, now sim.VTimeInSec) {
	delete(m.inflight, t.ID)
	m.delivered++
	m.observer.OnReceive(t.Msg, now)
}

func (m *WirelessNetworkModel) drop(pkt *manetsim.DataPacket, now sim.VTimeInSec) {
	m.lost++
	m.log.Debug("no route to host",
		"time", float64(now),
		"src", manetsim.NodeAddress(pkt.SrcNode),
		"dst", manetsim.NodeAddress(pkt.DstNode))
	m.observer.OnLost(pkt, now)
}

// Inflight returns the number of packets that have not arrived yet.
func (m *WirelessNetworkModel) Inflight() int {
	return len(m.inflight)
}

// Delivered returns the number of packets handed to a destination port.
func (m *WirelessNetworkModel) Delivered() uint64 {
	return m.delivered
}

// Lost returns the number of packets dropped for lack of a route.
func (m *WirelessNetworkModel) Lost() uint64 {
	return m.lost
}
