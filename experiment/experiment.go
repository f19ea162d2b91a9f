// Package experiment wires the simulated MANET together and runs the
// throughput experiment in its two phases.
package experiment

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/google/uuid"
	"github.com/syifan/manetsim"
	"github.com/syifan/manetsim/delaymodel"
	"github.com/syifan/manetsim/flowmon"
	"github.com/syifan/manetsim/mobility"
	"github.com/syifan/manetsim/networkmodel"
	"github.com/syifan/manetsim/periodic"
	"github.com/syifan/manetsim/routing"
	"github.com/syifan/manetsim/simulation"
	"github.com/syifan/manetsim/stats"
	"github.com/syifan/manetsim/traffic"
	"gitlab.com/akita/akita/v3/sim"
)

// Priorities of the periodic tasks that can fire at the same time. The
// snapshotter reports the rate the sampler has just computed.
const (
	samplerPriority = iota
	snapshotterPriority
	routingDumpPriority
	mobilityPollPriority
)

// ErrAlreadyRun is returned when Run is called a second time.
var ErrAlreadyRun = errors.New("experiment has already run")

// Result summarizes a finished run.
type Result struct {
	RunID    string
	Protocol manetsim.RoutingProtocol

	// TotalPackets is the number of packets received by all sinks.
	TotalPackets uint32

	Samples         int
	MissedSamples   int
	Snapshots       int
	MissedSnapshots int

	Flows     flowmon.Summary
	FinalTime sim.VTimeInSec
}

// An Experiment owns every component of one run. Several experiments can
// exist in one process.
type Experiment struct {
	cfg   manetsim.ExperimentConfig
	log   *slog.Logger
	runID string

	engine    sim.Engine
	sim       *simulation.Simulation
	scheduler *periodic.Scheduler

	nodes    *mobility.RandomWaypoint
	channel  *networkmodel.FriisChannel
	protocol routing.Protocol
	network  *networkmodel.WirelessNetworkModel
	monitor  *flowmon.Monitor
	sinks    []*traffic.Sink
	sources  []*traffic.OnOffApplication

	counter     *stats.ReceptionCounter
	sampler     *stats.ThroughputSampler
	snapshotter *stats.StateSnapshotter

	ran bool
}

// NewProtocol creates the routing protocol selected by p.
func NewProtocol(
	p manetsim.RoutingProtocol,
	topo routing.Topology,
) (routing.Protocol, error) {
	switch p {
	case manetsim.OLSR:
		return routing.NewOLSR(topo), nil
	case manetsim.AODV:
		return routing.NewAODV(topo), nil
	case manetsim.DSDV:
		return routing.NewDSDV(topo), nil
	case manetsim.DSR:
		return routing.NewDSR(topo), nil
	default:
		return nil, fmt.Errorf("%w: %d", manetsim.ErrUnknownProtocol, int(p))
	}
}

// New builds an experiment. It neither creates files nor advances time, so
// a configuration error leaves no trace behind.
func New(cfg manetsim.ExperimentConfig, log *slog.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Experiment{
		cfg:   cfg,
		runID: uuid.NewString(),
	}
	e.log = log.With("run", e.runID)

	e.engine = sim.NewSerialEngine()
	e.sim = simulation.NewSimulation(e.engine)
	e.scheduler = periodic.NewScheduler(e.sim, e.sim, e.log)

	e.nodes = mobility.NewRandomWaypoint(cfg.Nodes, mobility.RandomWaypointConfig{
		Area:  cfg.Area,
		Speed: cfg.Speed,
		Pause: cfg.Pause,
		Seed:  cfg.Seed,
	})
	e.channel = networkmodel.NewFriisChannel(e.nodes,
		cfg.TxPowerDbm, cfg.RxThresholdDbm, cfg.FrequencyHz)

	protocol, err := NewProtocol(cfg.Protocol, e.channel)
	if err != nil {
		return nil, err
	}
	e.protocol = protocol

	e.network = networkmodel.NewWirelessNetworkModel(e.sim, e.sim,
		e.channel, e.protocol,
		delaymodel.NewConstantSpeedDelayEstimator(), e.log)
	e.monitor = flowmon.NewMonitor(cfg.SinkPort)
	e.network.SetFlowObserver(e.monitor)

	e.counter = &stats.ReceptionCounter{}
	e.sampler = stats.NewThroughputSampler(e.counter, stats.SamplerConfig{
		Path:       cfg.CSVFile,
		Sinks:      cfg.Sinks,
		Protocol:   cfg.Protocol.String(),
		TxPowerDbm: cfg.TxPowerDbm,
		MaxMissed:  cfg.MaxMissedSamples,
	}, e.log)
	e.snapshotter = stats.NewStateSnapshotter(stats.SnapshotterConfig{
		Path:   cfg.StateFile,
		Warmup: cfg.WarmupTime,
		Sinks:  cfg.Sinks,
	}, e.nodes, e.sampler, e.log)

	e.buildTraffic()

	e.log.Debug("experiment built",
		"protocol", cfg.Protocol.String(),
		"nodes", cfg.Nodes,
		"sinks", cfg.Sinks,
		"range", e.channel.Range())

	return e, nil
}

// buildTraffic installs a sink on node i and its source on node i+Sinks.
func (e *Experiment) buildTraffic() {
	rng := rand.New(rand.NewSource(e.cfg.Seed))

	for i := 0; i < e.cfg.Sinks; i++ {
		sink := traffic.NewSink(fmt.Sprintf("Sink%d", i), i, e.log)
		sink.SetReceiveHandler(e.counter.OnBytesReceived)
		e.network.PlugInNode(sink.Port(), i)
		e.sinks = append(e.sinks, sink)

		start := e.cfg.AppStart.Min +
			rng.Float64()*(e.cfg.AppStart.Max-e.cfg.AppStart.Min)

		node := i + e.cfg.Sinks
		source := traffic.NewOnOffApplication(
			fmt.Sprintf("Source%d", node), e.sim, e.sim,
			traffic.OnOffConfig{
				FlowID:      i + 1,
				Node:        node,
				RemoteNode:  i,
				Remote:      sink.Port(),
				PacketSize:  e.cfg.PacketSize,
				DataRateBps: e.cfg.DataRateBps,
				Start:       sim.VTimeInSec(start),
				Stop:        e.cfg.TotalTime,
			}, e.log)
		e.network.PlugInNode(source.Port(), node)
		e.sources = append(e.sources, source)
	}
}

// RunID returns the unique ID of the run.
func (e *Experiment) RunID() string {
	return e.runID
}

// Engine returns the event engine of the run.
func (e *Experiment) Engine() sim.Engine {
	return e.engine
}

// Components returns every akita component of the run.
func (e *Experiment) Components() []sim.Component {
	comps := make([]sim.Component, 0, len(e.sinks)+len(e.sources))
	for _, s := range e.sinks {
		comps = append(comps, s)
	}
	for _, s := range e.sources {
		comps = append(comps, s)
	}

	return comps
}

// Run executes the settle phase and the measurement phase and writes every
// output file.
func (e *Experiment) Run() (Result, error) {
	if e.ran {
		return Result{}, ErrAlreadyRun
	}
	e.ran = true
	defer e.sim.Destroy()

	if err := e.sampler.WriteHeader(); err != nil {
		return Result{}, err
	}

	if err := e.snapshotter.Truncate(); err != nil {
		return Result{}, err
	}

	closeOutputs, err := e.registerTasks()
	if err != nil {
		return Result{}, err
	}
	defer closeOutputs()

	for _, s := range e.sources {
		s.KickStart()
	}

	e.log.Info("settling", "until", float64(e.cfg.SettleTime))
	if err := e.sim.RunUntil(e.cfg.SettleTime); err != nil {
		return Result{}, err
	}

	e.log.Info("measuring", "until", float64(e.cfg.TotalTime))
	if err := e.sim.RunUntil(e.cfg.TotalTime); err != nil {
		return Result{}, err
	}

	result := e.result()

	if e.cfg.FlowMonitorFile != "" {
		if err := e.monitor.WriteFile(e.cfg.FlowMonitorFile); err != nil {
			e.log.Warn("cannot write flow statistics",
				"file", e.cfg.FlowMonitorFile, "err", err)
		}
	}

	if err := e.scheduler.Err(); err != nil {
		return result, fmt.Errorf("experiment halted: %w", err)
	}

	e.log.Info("finished",
		"packets", result.TotalPackets,
		"samples", result.Samples,
		"snapshots", result.Snapshots)

	return result, nil
}

func (e *Experiment) result() Result {
	return Result{
		RunID:           e.runID,
		Protocol:        e.cfg.Protocol,
		TotalPackets:    e.counter.TotalPackets(),
		Samples:         e.sampler.Samples(),
		MissedSamples:   e.sampler.Missed(),
		Snapshots:       e.snapshotter.Snapshots(),
		MissedSnapshots: e.snapshotter.Missed(),
		Flows:           e.monitor.Summary(),
		FinalTime:       e.sim.CurrentTime(),
	}
}

// registerTasks registers the periodic tasks and opens the files they keep
// open for the whole run. The returned function flushes and closes them.
func (e *Experiment) registerTasks() (func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	e.scheduler.Every("throughput",
		e.cfg.SampleInterval, e.cfg.SampleInterval,
		samplerPriority, e.sampler)
	e.scheduler.Every("state",
		e.cfg.SnapshotInterval, e.cfg.SnapshotInterval,
		snapshotterPriority, e.snapshotter)

	if e.cfg.RoutingTableFile != "" && e.cfg.RoutingDumpInterval > 0 {
		f, err := e.create(e.cfg.RoutingTableFile)
		if err != nil {
			return nil, err
		}

		w := bufio.NewWriter(f)
		closers = append(closers, func() {
			e.close(f, w.Flush())
		})

		e.scheduler.Every("routing-table",
			0, e.cfg.RoutingDumpInterval, routingDumpPriority,
			periodic.TaskFunc(func(now sim.VTimeInSec) error {
				return e.protocol.WriteTable(w, now)
			}))
	}

	if e.cfg.TraceMobility && e.cfg.MobilityTraceFile != "" {
		f, err := e.create(e.cfg.MobilityTraceFile)
		if err != nil {
			closeAll()
			return nil, err
		}

		trace := mobility.NewTraceWriter(f)
		for i := 0; i < e.nodes.NodeCount(); i++ {
			trace.CourseChanged(mobility.CourseChange{
				Node:     i,
				Position: e.nodes.Position(i, 0),
				Velocity: e.nodes.Velocity(i, 0),
			})
		}
		e.nodes.AddListener(trace)
		closers = append(closers, func() {
			e.close(f, trace.Flush())
		})

		e.scheduler.Every("mobility",
			0, e.cfg.SampleInterval, mobilityPollPriority,
			periodic.TaskFunc(e.pollPositions))
	}

	return closeAll, nil
}

// pollPositions advances every node so that course changes are traced in
// time order.
func (e *Experiment) pollPositions(now sim.VTimeInSec) error {
	for i := 0; i < e.nodes.NodeCount(); i++ {
		e.nodes.Position(i, now)
	}

	return nil
}

func (e *Experiment) create(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("cannot create %s: %w", path, err)
	}

	return f, nil
}

func (e *Experiment) close(f *os.File, flushErr error) {
	if flushErr != nil {
		e.log.Warn("cannot write output", "file", f.Name(), "err", flushErr)
	}

	if err := f.Close(); err != nil {
		e.log.Warn("cannot close output", "file", f.Name(), "err", err)
	}
}
