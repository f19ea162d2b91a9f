package manetsim

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gitlab.com/akita/akita/v3/sim"
	"gopkg.in/yaml.v3"
)

//go:embed experiment.cue
var experimentSchema string

// ErrInvalidConfig is wrapped by every configuration validation error.
var ErrInvalidConfig = errors.New("invalid experiment config")

// A Range is a closed interval a uniform random value is drawn from.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// An Area is the rectangle the nodes move in, in metres.
type Area struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// ExperimentConfig holds every parameter of one experiment run. It is not
// modified after it has been loaded.
type ExperimentConfig struct {
	Protocol   RoutingProtocol `yaml:"protocol"`
	Nodes      int             `yaml:"nodes"`
	Sinks      int             `yaml:"sinks"`
	TxPowerDbm float64         `yaml:"tx_power_dbm"`

	CSVFile           string `yaml:"csv_file"`
	StateFile         string `yaml:"state_file"`
	RoutingTableFile  string `yaml:"routing_table_file"`
	FlowMonitorFile   string `yaml:"flow_monitor_file"`
	MobilityTraceFile string `yaml:"mobility_trace_file"`
	TraceMobility     bool   `yaml:"trace_mobility"`

	TotalTime           sim.VTimeInSec `yaml:"total_time"`
	SettleTime          sim.VTimeInSec `yaml:"settle_time"`
	WarmupTime          sim.VTimeInSec `yaml:"warmup_time"`
	SampleInterval      sim.VTimeInSec `yaml:"sample_interval"`
	SnapshotInterval    sim.VTimeInSec `yaml:"snapshot_interval"`
	RoutingDumpInterval sim.VTimeInSec `yaml:"routing_dump_interval"`
	MaxMissedSamples    int            `yaml:"max_missed_samples"`

	Seed  int64 `yaml:"seed"`
	Area  Area  `yaml:"area"`
	Speed Range `yaml:"speed"`
	Pause Range `yaml:"pause"`

	PacketSize     int     `yaml:"packet_size"`
	DataRateBps    float64 `yaml:"data_rate_bps"`
	AppStart       Range   `yaml:"app_start"`
	SinkPort       int     `yaml:"sink_port"`
	RxThresholdDbm float64 `yaml:"rx_threshold_dbm"`
	FrequencyHz    float64 `yaml:"frequency_hz"`
}

// DefaultConfig returns the configuration of the reference experiment: 50
// nodes in a 1000 m square, 10 source/sink pairs at 2048 bit/s each, AODV.
func DefaultConfig() ExperimentConfig {
	return ExperimentConfig{
		Protocol:   AODV,
		Nodes:      50,
		Sinks:      10,
		TxPowerDbm: 2 * 7.5,

		CSVFile:           "manet-routing.output.csv",
		StateFile:         "manet-state.txt",
		RoutingTableFile:  "manet-rtable.txt",
		FlowMonitorFile:   "manet-routing-compare.flowmon",
		MobilityTraceFile: "manet-routing-compare.mob",

		TotalTime:           200,
		SettleTime:          99,
		WarmupTime:          100,
		SampleInterval:      1,
		SnapshotInterval:    1,
		RoutingDumpInterval: 1,

		Seed:  1,
		Area:  Area{Width: 1000, Height: 1000},
		Speed: Range{Min: 10, Max: 20},
		Pause: Range{Min: 0, Max: 20},

		PacketSize:     64,
		DataRateBps:    2048,
		AppStart:       Range{Min: 100, Max: 101},
		SinkPort:       9,
		RxThresholdDbm: -84,
		FrequencyHz:    2.412e9,
	}
}

// Validate checks the configuration for values the experiment cannot run
// with.
func (c ExperimentConfig) Validate() error {
	if !c.Protocol.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownProtocol, int(c.Protocol))
	}

	checks := []struct {
		ok  bool
		msg string
	}{
		{c.Nodes > 0, "nodes must be positive"},
		{c.Sinks > 0, "sinks must be positive"},
		{2*c.Sinks <= c.Nodes, "every sink needs its own source node"},
		{c.CSVFile != "", "csv_file must be set"},
		{c.StateFile != "", "state_file must be set"},
		{c.TotalTime > 0, "total_time must be positive"},
		{c.SettleTime >= 0 && c.SettleTime < c.TotalTime,
			"settle_time must be within total_time"},
		{c.WarmupTime >= 0, "warmup_time must not be negative"},
		{c.SampleInterval > 0, "sample_interval must be positive"},
		{c.SnapshotInterval > 0, "snapshot_interval must be positive"},
		{c.RoutingDumpInterval >= 0, "routing_dump_interval must not be negative"},
		{c.MaxMissedSamples >= 0, "max_missed_samples must not be negative"},
		{c.Area.Width > 0 && c.Area.Height > 0, "area must not be empty"},
		{c.Speed.Min > 0 && c.Speed.Min <= c.Speed.Max, "invalid speed range"},
		{c.Pause.Min >= 0 && c.Pause.Min <= c.Pause.Max, "invalid pause range"},
		{c.AppStart.Min >= 0 && c.AppStart.Min <= c.AppStart.Max,
			"invalid app_start range"},
		{c.PacketSize > 0, "packet_size must be positive"},
		{c.DataRateBps > 0, "data_rate_bps must be positive"},
		{c.SinkPort > 0 && c.SinkPort < 65536, "invalid sink_port"},
		{c.FrequencyHz > 0, "frequency_hz must be positive"},
	}

	for _, check := range checks {
		if !check.ok {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, check.msg)
		}
	}

	return nil
}

// LoadConfig reads a YAML experiment description. Keys that are absent keep
// their default value.
func LoadConfig(path string) (ExperimentConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read config: %w", err)
	}

	if err := ValidateSchema(path, data); err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// ValidateSchema checks a YAML document against the experiment CUE schema.
// Unknown keys are rejected.
func ValidateSchema(filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(experimentSchema, cue.Filename("experiment.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("cannot compile config schema: %w", err)
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	def := schema.LookupPath(cue.ParsePath("#Experiment"))
	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: schema validation failed: %v",
			ErrInvalidConfig, err)
	}

	return nil
}
