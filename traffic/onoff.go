package traffic

import (
	"log/slog"
	"reflect"

	"github.com/google/uuid"
	"github.com/syifan/manetsim"
	"gitlab.com/akita/akita/v3/sim"
)

// A sendEvent triggers the application to send its next packet.
type sendEvent struct {
	time    sim.VTimeInSec
	handler sim.Handler
}

func (e sendEvent) Time() sim.VTimeInSec {
	return e.time
}

func (e sendEvent) Handler() sim.Handler {
	return e.handler
}

func (e sendEvent) IsSecondary() bool {
	return false
}

// OnOffConfig describes the flow of an OnOffApplication.
type OnOffConfig struct {
	FlowID     int
	Node       int
	RemoteNode int
	Remote     sim.Port

	PacketSize  int
	DataRateBps float64

	Start, Stop sim.VTimeInSec
}

// Interval returns the time between two packets at the configured rate.
func (c OnOffConfig) Interval() sim.VTimeInSec {
	return sim.VTimeInSec(float64(c.PacketSize*8) / c.DataRateBps)
}

// An OnOffApplication sends fixed size datagrams to one remote sink at a
// constant bit rate. It is always in the on state between its start and
// stop time.
type OnOffApplication struct {
	*sim.ComponentBase
	sim.EventScheduler
	sim.TimeTeller

	cfg  OnOffConfig
	port sim.Port
	log  *slog.Logger

	sent   uint64
	failed uint64
}

// NewOnOffApplication creates a new OnOffApplication.
func NewOnOffApplication(
	name string,
	es sim.EventScheduler,
	tt sim.TimeTeller,
	cfg OnOffConfig,
	log *slog.Logger,
) *OnOffApplication {
	if cfg.PacketSize <= 0 || cfg.DataRateBps <= 0 {
		panic("on-off application needs a positive packet size and rate")
	}

	a := &OnOffApplication{
		EventScheduler: es,
		TimeTeller:     tt,
		cfg:            cfg,
		log:            log,
	}

	a.ComponentBase = sim.NewComponentBase(name)
	a.port = sim.NewLimitNumMsgPort(a, 1, name+".Port")
	a.AddPort("Port", a.port)

	return a
}

// Port returns the port the application sends from.
func (a *OnOffApplication) Port() sim.Port {
	return a.port
}

// Config returns the flow the application generates.
func (a *OnOffApplication) Config() OnOffConfig {
	return a.cfg
}

// Sent returns the number of packets handed to the network.
func (a *OnOffApplication) Sent() uint64 {
	return a.sent
}

// KickStart schedules the first packet one interval after the start time.
// The main program should still run the engine.
func (a *OnOffApplication) KickStart() {
	a.scheduleNext(1)
}

func (a *OnOffApplication) nextSendTime(k uint64) sim.VTimeInSec {
	return a.cfg.Start + sim.VTimeInSec(k)*a.cfg.Interval()
}

func (a *OnOffApplication) scheduleNext(k uint64) {
	t := a.nextSendTime(k)
	if t >= a.cfg.Stop {
		return
	}

	a.Schedule(sendEvent{
		time:    t,
		handler: a,
	})
}

// Handle function of an OnOffApplication handles events.
func (a *OnOffApplication) Handle(e sim.Event) error {
	switch e := e.(type) {
	case sendEvent:
		a.send(e.time)
	default:
		panic("OnOffApplication cannot handle this event type " +
			reflect.TypeOf(e).String())
	}

	return nil
}

func (a *OnOffApplication) send(now sim.VTimeInSec) {
	pkt := &manetsim.DataPacket{
		MsgMeta: sim.MsgMeta{
			ID:           uuid.NewString(),
			Src:          a.port,
			Dst:          a.cfg.Remote,
			SendTime:     now,
			TrafficBytes: a.cfg.PacketSize,
		},
		FlowID:  a.cfg.FlowID,
		SrcNode: a.cfg.Node,
		DstNode: a.cfg.RemoteNode,
	}

	err := a.port.Send(pkt)
	if err != nil {
		a.failed++
		a.log.Warn("cannot send packet",
			"time", float64(now), "flow", a.cfg.FlowID)
	} else {
		a.sent++
	}

	a.scheduleNext(a.sent + a.failed + 1)
}

// NotifyRecv panics, as the application never receives.
func (a *OnOffApplication) NotifyRecv(now sim.VTimeInSec, port sim.Port) {
	panic("OnOffApplication does not receive packets")
}

// NotifyPortFree does nothing, as the network never pushes back.
func (a *OnOffApplication) NotifyPortFree(now sim.VTimeInSec, port sim.Port) {}
