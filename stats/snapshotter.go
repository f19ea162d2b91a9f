package stats

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/syifan/manetsim"
	"gitlab.com/akita/akita/v3/sim"
)

// A Positioner reports where the nodes are.
type Positioner interface {
	NodeCount() int
	Position(node int, now sim.VTimeInSec) manetsim.Vector
}

// A ThroughputSource provides the most recently computed throughput.
type ThroughputSource interface {
	LastKbps() float64
}

// SnapshotterConfig describes where and when snapshots are written.
type SnapshotterConfig struct {
	Path   string
	Warmup sim.VTimeInSec
	Sinks  int
}

// A StateSnapshotter appends a text block describing the network to the
// state file at every tick past the warm-up time.
type StateSnapshotter struct {
	cfg        SnapshotterConfig
	nodes      Positioner
	throughput ThroughputSource
	log        *slog.Logger

	snapshots int
	missed    int
}

// NewStateSnapshotter creates a new StateSnapshotter.
func NewStateSnapshotter(
	cfg SnapshotterConfig,
	nodes Positioner,
	throughput ThroughputSource,
	log *slog.Logger,
) *StateSnapshotter {
	return &StateSnapshotter{
		cfg:        cfg,
		nodes:      nodes,
		throughput: throughput,
		log:        log,
	}
}

// Truncate empties the state file.
func (s *StateSnapshotter) Truncate() error {
	if err := truncateFile(s.cfg.Path, nil); err != nil {
		return fmt.Errorf("cannot create %s: %w", s.cfg.Path, err)
	}

	return nil
}

// Snapshot captures the network state at now.
func (s *StateSnapshotter) Snapshot(now sim.VTimeInSec) manetsim.NetworkSnapshot {
	n := s.nodes.NodeCount()

	snapshot := manetsim.NetworkSnapshot{
		Time:           now,
		NodeCount:      n,
		SinkCount:      s.cfg.Sinks,
		ThroughputKbps: s.throughput.LastKbps(),
		Positions:      make([]manetsim.NodePosition, n),
	}

	for i := 0; i < n; i++ {
		snapshot.Positions[i] = manetsim.NodePosition{
			Index:    i,
			Position: s.nodes.Position(i, now),
		}
	}

	return snapshot
}

// Tick appends a snapshot block once the warm-up time has passed.
func (s *StateSnapshotter) Tick(now sim.VTimeInSec) error {
	if now < s.cfg.Warmup {
		return nil
	}

	block := FormatSnapshot(s.Snapshot(now))

	err := appendToFile(s.cfg.Path, []byte(block))
	if err != nil {
		s.missed++
		s.log.Warn("state snapshot not written",
			"time", float64(now), "file", s.cfg.Path, "err", err)
		return nil
	}

	s.snapshots++

	return nil
}

// Snapshots returns the number of blocks written.
func (s *StateSnapshotter) Snapshots() int {
	return s.snapshots
}

// Missed returns the number of blocks that could not be written.
func (s *StateSnapshotter) Missed() int {
	return s.missed
}

// FormatSnapshot renders a snapshot as a state file block.
func FormatSnapshot(snapshot manetsim.NetworkSnapshot) string {
	var b strings.Builder

	b.WriteString("TIME " + manetsim.FormatFloat(float64(snapshot.Time)) + "\n")
	b.WriteString("NUM_NODES " + strconv.Itoa(snapshot.NodeCount) + "\n")
	b.WriteString("NUM_SINKS " + strconv.Itoa(snapshot.SinkCount) + "\n")
	b.WriteString("THROUGHPUT " +
		manetsim.FormatFloat(snapshot.ThroughputKbps) + "\n")
	b.WriteString("POSITIONS\n")

	for _, p := range snapshot.Positions {
		b.WriteString(strconv.Itoa(p.Index))
		b.WriteString(" " + manetsim.FormatFloat(p.Position.X))
		b.WriteString(" " + manetsim.FormatFloat(p.Position.Y))
		b.WriteString(" " + manetsim.FormatFloat(p.Position.Z))
		b.WriteString("\n")
	}

	return b.String()
}
