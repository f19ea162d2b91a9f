package experiment

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/syifan/manetsim"
	"github.com/syifan/manetsim/flowmon"
	"github.com/syifan/manetsim/logging"
	"gitlab.com/akita/akita/v3/sim"
)

func smallConfig(dir string) manetsim.ExperimentConfig {
	cfg := manetsim.DefaultConfig()
	cfg.Nodes = 6
	cfg.Sinks = 2
	cfg.TotalTime = 20
	cfg.SettleTime = 9
	cfg.WarmupTime = 10
	cfg.AppStart = manetsim.Range{Min: 1, Max: 2}
	cfg.CSVFile = filepath.Join(dir, "out.csv")
	cfg.StateFile = filepath.Join(dir, "state.txt")
	cfg.RoutingTableFile = filepath.Join(dir, "rtable.txt")
	cfg.FlowMonitorFile = filepath.Join(dir, "run.flowmon")
	cfg.MobilityTraceFile = filepath.Join(dir, "run.mob")

	return cfg
}

var _ = Describe("Experiment", func() {
	var (
		dir string
		cfg manetsim.ExperimentConfig
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "manetsim-experiment")
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)

		cfg = smallConfig(dir)
	})

	It("should create every protocol", func() {
		for _, p := range manetsim.RoutingProtocols {
			protocol, err := NewProtocol(p, nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(protocol.Name()).To(Equal(p.String()))
		}
	})

	It("should reject an unknown protocol before creating files", func() {
		cfg.Protocol = manetsim.RoutingProtocol(5)

		e, err := New(cfg, logging.Discard())

		Expect(e).To(BeNil())
		Expect(err).To(MatchError(manetsim.ErrUnknownProtocol))
		entries, err := os.ReadDir(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("should write one sample per second and one snapshot per second after warm-up", func() {
		e, err := New(cfg, logging.Discard())
		Expect(err).ToNot(HaveOccurred())

		result, err := e.Run()
		Expect(err).ToNot(HaveOccurred())

		Expect(result.RunID).To(Equal(e.RunID()))
		Expect(result.Samples).To(Equal(19))
		Expect(result.MissedSamples).To(BeZero())
		Expect(result.Snapshots).To(Equal(10))
		Expect(result.FinalTime).To(Equal(sim.VTimeInSec(20)))

		loader := manetsim.ResultLoader{CSVFile: cfg.CSVFile, StateFile: cfg.StateFile}

		samples, err := loader.LoadSamples()
		Expect(err).ToNot(HaveOccurred())
		Expect(samples).To(HaveLen(19))
		var packets uint32
		for i, s := range samples {
			Expect(s.Time).To(Equal(sim.VTimeInSec(i + 1)))
			Expect(s.Sinks).To(Equal(2))
			Expect(s.Protocol).To(Equal("AODV"))
			Expect(s.TxPowerDbm).To(Equal(15.0))
			Expect(s.Kbps).To(Equal(float64(s.Packets) * 64 * 8 / 1000))
			packets += s.Packets
		}
		Expect(packets).To(BeNumerically("<=", result.TotalPackets))

		snapshots, err := loader.LoadSnapshots()
		Expect(err).ToNot(HaveOccurred())
		Expect(snapshots).To(HaveLen(10))
		Expect(snapshots[0].Time).To(Equal(sim.VTimeInSec(10)))
		Expect(snapshots[0].NodeCount).To(Equal(6))
		Expect(snapshots[0].Positions).To(HaveLen(6))
		for _, s := range snapshots {
			Expect(s.ThroughputKbps).To(Equal(samples[int(s.Time)-1].Kbps))
		}
	})

	It("should store flow statistics and routing tables", func() {
		e, err := New(cfg, logging.Discard())
		Expect(err).ToNot(HaveOccurred())

		result, err := e.Run()
		Expect(err).ToNot(HaveOccurred())

		flows, err := flowmon.DecodeFile(cfg.FlowMonitorFile)
		Expect(err).ToNot(HaveOccurred())
		Expect(flows).To(HaveLen(2))
		Expect(flows[0].DestinationPort).To(Equal(9))
		Expect(result.Flows.RxPackets).To(Equal(uint64(result.TotalPackets)))

		table, err := os.ReadFile(cfg.RoutingTableFile)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(table)).To(HavePrefix(
			"Node: 0, Time: +0s, Local time: +0s, AODV Routing table\n"))
		Expect(strings.Count(string(table), "Routing table")).To(Equal(6 * 20))
	})

	It("should trace course changes when asked to", func() {
		cfg.TraceMobility = true
		e, err := New(cfg, logging.Discard())
		Expect(err).ToNot(HaveOccurred())

		_, err = e.Run()
		Expect(err).ToNot(HaveOccurred())

		trace, err := os.ReadFile(cfg.MobilityTraceFile)
		Expect(err).ToNot(HaveOccurred())
		lines := strings.Split(strings.TrimSpace(string(trace)), "\n")
		Expect(len(lines)).To(BeNumerically(">=", 6))
		Expect(lines[0]).To(HavePrefix("now=+0ns node=0 pos="))
		for _, line := range lines {
			Expect(line).To(HavePrefix("now=+"))
		}
	})

	It("should not trace mobility by default", func() {
		e, err := New(cfg, logging.Discard())
		Expect(err).ToNot(HaveOccurred())

		_, err = e.Run()
		Expect(err).ToNot(HaveOccurred())

		Expect(cfg.MobilityTraceFile).ToNot(BeAnExistingFile())
	})

	It("should give the same samples for the same seed", func() {
		run := func(sub string) string {
			c := smallConfig(filepath.Join(dir, sub))
			Expect(os.Mkdir(filepath.Join(dir, sub), 0o755)).To(Succeed())
			c.Protocol = manetsim.OLSR

			e, err := New(c, logging.Discard())
			Expect(err).ToNot(HaveOccurred())
			_, err = e.Run()
			Expect(err).ToNot(HaveOccurred())

			out, err := os.ReadFile(c.CSVFile)
			Expect(err).ToNot(HaveOccurred())
			return string(out)
		}

		Expect(run("a")).To(Equal(run("b")))
	})

	It("should only run once", func() {
		e, err := New(cfg, logging.Discard())
		Expect(err).ToNot(HaveOccurred())

		_, err = e.Run()
		Expect(err).ToNot(HaveOccurred())

		_, err = e.Run()
		Expect(err).To(MatchError(ErrAlreadyRun))
	})

	It("should stop when the output directory is missing", func() {
		cfg.CSVFile = filepath.Join(dir, "missing", "out.csv")
		e, err := New(cfg, logging.Discard())
		Expect(err).ToNot(HaveOccurred())

		_, err = e.Run()

		Expect(err).To(HaveOccurred())
		Expect(strings.Count(err.Error(), "cannot create")).To(Equal(1))
		Expect(err.Error()).To(ContainSubstring(cfg.CSVFile))
		Expect(cfg.StateFile).ToNot(BeAnExistingFile())
	})
})
