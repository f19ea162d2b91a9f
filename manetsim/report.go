package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/syifan/manetsim"
	"github.com/syifan/manetsim/flowmon"
)

var (
	reportCSVFile      string
	reportStateFile    string
	reportFlowmonFile  string
	reportMinTxPackets uint64
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the output files of a run",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := manetsim.ResultLoader{
			CSVFile:   reportCSVFile,
			StateFile: reportStateFile,
		}

		samples, err := loader.LoadSamples()
		if err != nil {
			return err
		}

		snapshots, err := loader.LoadSnapshots()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		printThroughput(w, samples)
		fmt.Fprintf(w, "Snapshots %d\n", len(snapshots))

		flows, err := flowmon.DecodeFile(reportFlowmonFile)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}

		printFlows(w, flows)

		return nil
	},
}

func printThroughput(w io.Writer, samples []manetsim.ThroughputSample) {
	var (
		sum, peak float64
		packets   uint64
	)

	for _, s := range samples {
		sum += s.Kbps
		peak = max(peak, s.Kbps)
		packets += uint64(s.Packets)
	}

	mean := 0.0
	if len(samples) > 0 {
		mean = sum / float64(len(samples))
	}

	fmt.Fprintf(w, "Samples %d\n", len(samples))
	fmt.Fprintf(w, "Mean throughput (kbps) %s\n", manetsim.FormatFloat(mean))
	fmt.Fprintf(w, "Peak throughput (kbps) %s\n", manetsim.FormatFloat(peak))
	fmt.Fprintf(w, "Packets received %d\n", packets)
}

func printFlows(w io.Writer, flows []flowmon.FlowStats) {
	keep := func(f flowmon.FlowStats) bool {
		return f.TxPackets > reportMinTxPackets
	}

	for _, f := range flows {
		if !keep(f) {
			continue
		}

		fmt.Fprintf(w, "%-4d %-9s:%05d (%3d) -> (%3d) %-9s:%05d\t %3d\n",
			f.FlowID, f.SourceAddress, f.SourcePort, f.TxPackets,
			f.RxPackets, f.DestinationAddress, f.DestinationPort,
			f.TimesForwarded)
	}

	s := flowmon.Summarize(flows, keep)
	fmt.Fprintf(w, "Loss Rate %s\n", manetsim.FormatFloat(s.LossRate))
	fmt.Fprintf(w, "Average Delay(s) %s\n", manetsim.FormatFloat(s.AverageDelay))
	fmt.Fprintf(w, "Rx Packets %d\n", s.RxPackets)
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportCSVFile, "CSVfileName", "manet-routing.output.csv",
		"The throughput CSV file")
	f.StringVar(&reportStateFile, "state-file", "manet-state.txt",
		"The state snapshot file")
	f.StringVar(&reportFlowmonFile, "flowmon", "manet-routing-compare.flowmon",
		"The flow statistics file, skipped when missing")
	f.Uint64Var(&reportMinTxPackets, "min-tx-packets", 0,
		"Only summarize flows that sent more packets than this")
}
