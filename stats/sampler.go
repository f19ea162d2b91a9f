package stats

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/syifan/manetsim"
	"github.com/syifan/manetsim/periodic"
	"gitlab.com/akita/akita/v3/sim"
)

// KilobitsPerSecond converts the bytes of a one second interval into a rate.
// The scaling is decimal: 1000 bytes are 8 kbit/s.
func KilobitsPerSecond(bytes uint64) float64 {
	return float64(bytes) * 8.0 / 1000.0
}

// SamplerConfig describes where and how samples are written.
type SamplerConfig struct {
	Path       string
	Sinks      int
	Protocol   string
	TxPowerDbm float64

	// MaxMissed is the number of consecutive unwritten samples after which
	// the run is halted. Zero never halts.
	MaxMissed int
}

// A ThroughputSampler converts the reception counters into one CSV row per
// tick.
type ThroughputSampler struct {
	counter *ReceptionCounter
	cfg     SamplerConfig
	log     *slog.Logger

	last              manetsim.ThroughputSample
	samples           int
	missed            int
	consecutiveMissed int
}

// NewThroughputSampler creates a new ThroughputSampler.
func NewThroughputSampler(
	counter *ReceptionCounter,
	cfg SamplerConfig,
	log *slog.Logger,
) *ThroughputSampler {
	return &ThroughputSampler{
		counter: counter,
		cfg:     cfg,
		log:     log,
	}
}

// WriteHeader truncates the output file and writes the column names.
func (s *ThroughputSampler) WriteHeader() error {
	header := strings.Join(manetsim.CSVHeader, ",") + "\n"
	if err := truncateFile(s.cfg.Path, []byte(header)); err != nil {
		return fmt.Errorf("cannot create %s: %w", s.cfg.Path, err)
	}

	return nil
}

// Tick drains the counters, computes the rate of the last interval and
// appends it to the output file.
func (s *ThroughputSampler) Tick(now sim.VTimeInSec) error {
	bytes, packets := s.counter.DrainInterval()

	s.last = manetsim.ThroughputSample{
		Time:       now,
		Kbps:       KilobitsPerSecond(bytes),
		Packets:    packets,
		Sinks:      s.cfg.Sinks,
		Protocol:   s.cfg.Protocol,
		TxPowerDbm: s.cfg.TxPowerDbm,
	}

	err := appendToFile(s.cfg.Path, []byte(FormatSampleRow(s.last)))
	if err == nil {
		s.samples++
		s.consecutiveMissed = 0
		return nil
	}

	s.missed++
	s.consecutiveMissed++
	s.log.Warn("throughput sample not written",
		"time", float64(now), "file", s.cfg.Path, "err", err)

	if s.cfg.MaxMissed > 0 && s.consecutiveMissed >= s.cfg.MaxMissed {
		return fmt.Errorf("%d consecutive samples lost writing %s: %w",
			s.consecutiveMissed, s.cfg.Path, periodic.ErrHalt)
	}

	return nil
}

// LastKbps returns the rate computed by the most recent tick.
func (s *ThroughputSampler) LastKbps() float64 {
	return s.last.Kbps
}

// LastSample returns the sample computed by the most recent tick.
func (s *ThroughputSampler) LastSample() manetsim.ThroughputSample {
	return s.last
}

// Samples returns the number of rows written.
func (s *ThroughputSampler) Samples() int {
	return s.samples
}

// Missed returns the number of ticks whose row could not be written.
func (s *ThroughputSampler) Missed() int {
	return s.missed
}

// FormatSampleRow renders one CSV row, newline included.
func FormatSampleRow(sample manetsim.ThroughputSample) string {
	fields := []string{
		manetsim.FormatFloat(float64(sample.Time)),
		manetsim.FormatFloat(sample.Kbps),
		strconv.FormatUint(uint64(sample.Packets), 10),
		strconv.Itoa(sample.Sinks),
		sample.Protocol,
		manetsim.FormatFloat(sample.TxPowerDbm),
	}

	return strings.Join(fields, ",") + "\n"
}
