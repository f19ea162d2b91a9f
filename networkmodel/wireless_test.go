package networkmodel

import (
	"fmt"

	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/syifan/manetsim"
	"github.com/syifan/manetsim/delaymodel"
	"github.com/syifan/manetsim/logging"
	"github.com/syifan/manetsim/routing"
	"gitlab.com/akita/akita/v3/sim"
)

type idleComponent struct {
	*sim.ComponentBase
}

func (c *idleComponent) Handle(e sim.Event) error {
	return nil
}

func (c *idleComponent) NotifyRecv(now sim.VTimeInSec, port sim.Port) {}

func (c *idleComponent) NotifyPortFree(now sim.VTimeInSec, port sim.Port) {}

type recordingObserver struct {
	sent, received, lost []*manetsim.DataPacket
}

func (o *recordingObserver) OnSend(pkt *manetsim.DataPacket, now sim.VTimeInSec) {
	o.sent = append(o.sent, pkt)
}

func (o *recordingObserver) OnReceive(pkt *manetsim.DataPacket, now sim.VTimeInSec) {
	o.received = append(o.received, pkt)
}

func (o *recordingObserver) OnLost(pkt *manetsim.DataPacket, now sim.VTimeInSec) {
	o.lost = append(o.lost, pkt)
}

type unknownEvent struct{}

func (unknownEvent) Time() sim.VTimeInSec { return 0 }
func (unknownEvent) Handler() sim.Handler { return nil }
func (unknownEvent) IsSecondary() bool    { return false }

var _ = Describe("WirelessNetworkModel", func() {
	var (
		mockCtrl       *gomock.Controller
		eventScheduler *MockEventScheduler
		timeTeller     *MockTimeTeller
		channel        *FriisChannel
		estimator      *delaymodel.FixedDelayEstimator
		observer       *recordingObserver
		model          *WirelessNetworkModel
		ports          []sim.Port
	)

	newModel := func(protocol routing.Protocol) *WirelessNetworkModel {
		m := NewWirelessNetworkModel(eventScheduler, timeTeller,
			channel, protocol, estimator, logging.Discard())
		m.SetFlowObserver(observer)

		comp := &idleComponent{ComponentBase: sim.NewComponentBase("Node")}
		ports = nil
		for i := 0; i < channel.NodeCount(); i++ {
			port := sim.NewLimitNumMsgPort(comp, 1, fmt.Sprintf("Node%d.Port", i))
			m.PlugInNode(port, i)
			ports = append(ports, port)
		}

		return m
	}

	newPacket := func(id string, src, dst int) *manetsim.DataPacket {
		return &manetsim.DataPacket{
			MsgMeta: sim.MsgMeta{
				ID:           id,
				Src:          ports[src],
				Dst:          ports[dst],
				TrafficBytes: 64,
			},
			SrcNode: src,
			DstNode: dst,
		}
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		eventScheduler = NewMockEventScheduler(mockCtrl)
		timeTeller = NewMockTimeTeller(mockCtrl)
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(10)).AnyTimes()

		channel = NewFriisChannel(fixedPositions{
			{X: 0},
			{X: 500},
			{X: 1000},
			{X: 3000},
		}, 15, -84, 2.412e9)
		estimator = &delaymodel.FixedDelayEstimator{Delay: 0.001}
		observer = &recordingObserver{}
		model = newModel(routing.NewOLSR(channel))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should panic when a port is plugged in for an unknown node", func() {
		comp := &idleComponent{ComponentBase: sim.NewComponentBase("Other")}
		port := sim.NewLimitNumMsgPort(comp, 1, "Other.Port")

		Expect(func() { model.PlugInNode(port, 4) }).To(Panic())
	})

	It("should schedule the delivery after the route delay", func() {
		var event sim.Event
		eventScheduler.EXPECT().
			Schedule(gomock.Any()).
			Do(func(e sim.Event) { event = e })
		pkt := newPacket("1", 0, 2)

		Expect(model.Send(pkt)).To(BeNil())

		Expect(event).NotTo(BeNil())
		Expect(float64(event.Time())).To(BeNumerically("~", 10.002, 1e-9))
		Expect(event.Handler()).To(BeIdenticalTo(model))
		Expect(pkt.Hops).To(Equal(2))
		Expect(model.Inflight()).To(Equal(1))
		Expect(observer.sent).To(ConsistOf(pkt))
	})

	It("should add the route discovery to the delay", func() {
		model = newModel(routing.NewAODV(channel))

		var times []sim.VTimeInSec
		eventScheduler.EXPECT().
			Schedule(gomock.Any()).
			Do(func(e sim.Event) { times = append(times, e.Time()) }).
			Times(2)

		model.Send(newPacket("1", 0, 2))
		model.Send(newPacket("2", 0, 2))

		Expect(times).To(HaveLen(2))
		Expect(float64(times[0])).To(BeNumerically("~", 10.006, 1e-9))
		Expect(float64(times[1])).To(BeNumerically("~", 10.002, 1e-9))
	})

	It("should drop a packet without a route", func() {
		pkt := newPacket("1", 0, 3)

		Expect(model.Send(pkt)).To(BeNil())

		Expect(model.Lost()).To(Equal(uint64(1)))
		Expect(model.Inflight()).To(Equal(0))
		Expect(observer.lost).To(ConsistOf(pkt))
	})

	It("should deliver an arrived packet", func() {
		pkt := newPacket("1", 0, 2)
		model.Handle(deliveryEvent{
			time:     10.002,
			handler:  model,
			transfer: &Transfer{ID: "1", Msg: pkt, Path: []int{0, 1, 2}},
		})

		Expect(ports[2].Retrieve(10.002)).To(BeIdenticalTo(pkt))
		Expect(pkt.RecvTime).To(Equal(sim.VTimeInSec(10.002)))
		Expect(model.Delivered()).To(Equal(uint64(1)))
		Expect(observer.received).To(ConsistOf(pkt))
	})

	It("should queue packets while the destination port is full", func() {
		first := newPacket("1", 0, 2)
		second := newPacket("2", 0, 2)

		for _, pkt := range []*manetsim.DataPacket{first, second} {
			model.Handle(deliveryEvent{
				time:     10.002,
				handler:  model,
				transfer: &Transfer{ID: pkt.ID, Msg: pkt, Path: []int{0, 1, 2}},
			})
		}
		Expect(model.Delivered()).To(Equal(uint64(1)))

		var event sim.Event
		eventScheduler.EXPECT().
			Schedule(gomock.Any()).
			Do(func(e sim.Event) { event = e }).
			MinTimes(1)

		Expect(ports[2].Retrieve(11)).To(BeIdenticalTo(first))
		model.NotifyAvailable(11, ports[2])
		Expect(model.Handle(event)).To(Succeed())

		Expect(model.Delivered()).To(Equal(uint64(2)))
		Expect(second.RecvTime).To(Equal(sim.VTimeInSec(11)))
		Expect(ports[2].Retrieve(11)).To(BeIdenticalTo(second))
	})

	It("should panic on unknown events", func() {
		Expect(func() { model.Handle(unknownEvent{}) }).To(Panic())
	})
})
