package traffic

import (
	"bytes"
	"log/slog"
	"strings"

	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/syifan/manetsim"
	"github.com/syifan/manetsim/delaymodel"
	"github.com/syifan/manetsim/logging"
	"github.com/syifan/manetsim/networkmodel"
	"github.com/syifan/manetsim/routing"
	"gitlab.com/akita/akita/v3/sim"
)

type fixedPositions []manetsim.Vector

func (p fixedPositions) NodeCount() int {
	return len(p)
}

func (p fixedPositions) Position(node int, now sim.VTimeInSec) manetsim.Vector {
	return p[node]
}

type otherEvent struct{}

func (otherEvent) Time() sim.VTimeInSec { return 0 }
func (otherEvent) Handler() sim.Handler { return nil }
func (otherEvent) IsSecondary() bool    { return false }

var _ = Describe("OnOffApplication", func() {
	var (
		mockCtrl       *gomock.Controller
		eventScheduler *MockEventScheduler
		timeTeller     *MockTimeTeller
		app            *OnOffApplication
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		eventScheduler = NewMockEventScheduler(mockCtrl)
		timeTeller = NewMockTimeTeller(mockCtrl)

		app = NewOnOffApplication("Source", eventScheduler, timeTeller,
			OnOffConfig{
				PacketSize:  64,
				DataRateBps: 2048,
				Start:       100.5,
				Stop:        200,
			}, logging.Discard())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should send at the configured rate", func() {
		Expect(app.Config().Interval()).To(Equal(sim.VTimeInSec(0.25)))
	})

	It("should schedule the first packet one interval after the start", func() {
		eventScheduler.EXPECT().Schedule(sendEvent{
			time:    100.75,
			handler: app,
		})

		app.KickStart()
	})

	It("should not schedule packets past the stop time", func() {
		app = NewOnOffApplication("Source", eventScheduler, timeTeller,
			OnOffConfig{
				PacketSize:  64,
				DataRateBps: 2048,
				Start:       199.9,
				Stop:        200,
			}, logging.Discard())

		app.KickStart()
	})

	It("should panic on unknown events", func() {
		Expect(func() { app.Handle(otherEvent{}) }).To(Panic())
	})
})

var _ = Describe("Traffic over the wireless network", func() {
	var (
		engine  *sim.SerialEngine
		network *networkmodel.WirelessNetworkModel
		sink    *Sink
		source  *OnOffApplication
		sizes   []uint32
		logBuf  *bytes.Buffer
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		channel := networkmodel.NewFriisChannel(fixedPositions{
			{X: 0}, {X: 500}, {X: 1000},
		}, 15, -84, 2.412e9)
		network = networkmodel.NewWirelessNetworkModel(engine, engine,
			channel, routing.NewAODV(channel),
			delaymodel.NewConstantSpeedDelayEstimator(), logging.Discard())

		sizes = nil
		logBuf = new(bytes.Buffer)
		sink = NewSink("Sink", 0, logging.NewWithWriter(logBuf, slog.LevelDebug))
		sink.SetReceiveHandler(func(n uint32) { sizes = append(sizes, n) })
		network.PlugInNode(sink.Port(), 0)

		source = NewOnOffApplication("Source", engine, engine, OnOffConfig{
			FlowID:      1,
			Node:        2,
			RemoteNode:  0,
			Remote:      sink.Port(),
			PacketSize:  64,
			DataRateBps: 2048,
			Start:       0,
			Stop:        1,
		}, logging.Discard())
		network.PlugInNode(source.Port(), 2)
	})

	It("should deliver every packet sent before the stop time", func() {
		source.KickStart()

		Expect(engine.Run()).To(Succeed())

		Expect(source.Sent()).To(Equal(uint64(3)))
		Expect(sink.Packets()).To(Equal(uint64(3)))
		Expect(sink.Bytes()).To(Equal(uint64(192)))
		Expect(sizes).To(Equal([]uint32{64, 64, 64}))
		Expect(network.Inflight()).To(Equal(0))
		Expect(strings.Count(logBuf.String(),
			"0 received one packet from 10.1.1.3")).To(Equal(3))
	})

	It("should drop packets when the sink is out of reach", func() {
		channel := networkmodel.NewFriisChannel(fixedPositions{
			{X: 0}, {X: 500}, {X: 5000},
		}, 15, -84, 2.412e9)
		network = networkmodel.NewWirelessNetworkModel(engine, engine,
			channel, routing.NewDSR(channel),
			delaymodel.NewConstantSpeedDelayEstimator(), logging.Discard())
		network.PlugInNode(sink.Port(), 0)
		network.PlugInNode(source.Port(), 2)
		source.KickStart()

		Expect(engine.Run()).To(Succeed())

		Expect(source.Sent()).To(Equal(uint64(3)))
		Expect(sink.Packets()).To(BeZero())
		Expect(network.Lost()).To(Equal(uint64(3)))
	})
})

var _ = Describe("Sink", func() {
	It("should not log receptions above debug level", func() {
		var logBuf bytes.Buffer
		sink := NewSink("Sink", 0, logging.NewWithWriter(&logBuf, slog.LevelInfo))

		sink.recv(1, &manetsim.DataPacket{
			MsgMeta: sim.MsgMeta{TrafficBytes: 64},
			SrcNode: 2,
		})

		Expect(sink.Packets()).To(Equal(uint64(1)))
		Expect(logBuf.String()).To(BeEmpty())
	})
})
