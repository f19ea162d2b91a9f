package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/syifan/manetsim"
	"github.com/syifan/manetsim/experiment"
	"github.com/syifan/manetsim/logging"
	"github.com/tebeka/atexit"
	"gitlab.com/akita/akita/v3/monitoring"
	"gitlab.com/akita/akita/v3/sim"
)

var (
	runConfigPath    string
	runProtocol      string
	runSinks         int
	runNodes         int
	runCSVFile       string
	runTraceMobility bool
	runTxPower       float64
	runTotalTime     float64
	runSettleTime    float64
	runSeed          int64
	runMonitor       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one experiment",
	Long: "run simulates the network for the configured time and writes the " +
		"throughput CSV, the state snapshots, the routing tables and the " +
		"flow statistics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.FromContext(cmd.Context())

		cfg, err := loadRunConfig(cmd)
		if err != nil {
			atexit.Fatalf("%v", err)
		}

		e, err := experiment.New(cfg, log)
		if err != nil {
			atexit.Fatalf("%v", err)
		}

		if runMonitor {
			startMonitor(e.Engine(), e.Components())
		}

		result, err := e.Run()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(),
			"Total packets received %d\n", result.TotalPackets)

		return nil
	},
}

// loadRunConfig reads the configuration file, if any, and applies the flags
// given on the command line on top of it.
func loadRunConfig(cmd *cobra.Command) (manetsim.ExperimentConfig, error) {
	cfg := manetsim.DefaultConfig()

	if runConfigPath != "" {
		var err error
		cfg, err = manetsim.LoadConfig(runConfigPath)
		if err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()

	if flags.Changed("protocol") {
		p, err := manetsim.ParseRoutingProtocol(runProtocol)
		if err != nil {
			return cfg, err
		}
		cfg.Protocol = p
	}

	if flags.Changed("nSinks") {
		cfg.Sinks = runSinks
	}

	if flags.Changed("nWifi") {
		cfg.Nodes = runNodes
	}

	if flags.Changed("CSVfileName") {
		cfg.CSVFile = runCSVFile
	}

	if flags.Changed("traceMobility") {
		cfg.TraceMobility = runTraceMobility
	}

	if flags.Changed("tx-power") {
		cfg.TxPowerDbm = runTxPower
	}

	if flags.Changed("total-time") {
		cfg.TotalTime = sim.VTimeInSec(runTotalTime)
		fitPhasesToTotalTime(&cfg)
	}

	if flags.Changed("settle-time") {
		cfg.SettleTime = sim.VTimeInSec(runSettleTime)
	}

	if flags.Changed("seed") {
		cfg.Seed = runSeed
	}

	return cfg, cfg.Validate()
}

// fitPhasesToTotalTime moves a settle phase and warm-up that no longer fit
// into a shortened run to its middle.
func fitPhasesToTotalTime(cfg *manetsim.ExperimentConfig) {
	if cfg.SettleTime < cfg.TotalTime {
		return
	}

	cfg.SettleTime = cfg.TotalTime / 2

	if cfg.WarmupTime >= cfg.TotalTime {
		cfg.WarmupTime = cfg.SettleTime
	}
}

func startMonitor(engine sim.Engine, comps []sim.Component) {
	monitor := monitoring.NewMonitor()
	monitor.RegisterEngine(engine)

	for _, c := range comps {
		monitor.RegisterComponent(c)
	}

	monitor.StartServer()
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runConfigPath, "config", "", "Path to an experiment YAML file")
	f.StringVar(&runProtocol, "protocol", "AODV",
		"Routing protocol: 1=OLSR, 2=AODV, 3=DSDV, 4=DSR, or its name")
	f.IntVar(&runSinks, "nSinks", 10, "Number of sinks")
	f.IntVar(&runNodes, "nWifi", 50, "Number of nodes")
	f.StringVar(&runCSVFile, "CSVfileName", "manet-routing.output.csv",
		"The name of the CSV output file name")
	f.BoolVar(&runTraceMobility, "traceMobility", false, "Enable mobility tracing")
	f.Float64Var(&runTxPower, "tx-power", 15, "Transmission power in dBm")
	f.Float64Var(&runTotalTime, "total-time", 200, "Simulated seconds to run")
	f.Float64Var(&runSettleTime, "settle-time", 99,
		"Simulated seconds before the traffic measurement phase")
	f.Int64Var(&runSeed, "seed", 1, "Seed of the mobility and traffic generators")
	f.BoolVar(&runMonitor, "monitor", false, "Serve the akita monitoring web page")
}
