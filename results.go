package manetsim

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gitlab.com/akita/akita/v3/sim"
)

// CSVHeader is the column layout of the throughput file.
var CSVHeader = []string{
	"SimulationSecond",
	"ReceiveRate",
	"PacketsReceived",
	"NumberOfSinks",
	"RoutingProtocol",
	"TransmissionPower",
}

// A ResultLoader loads the output files of a finished experiment.
type ResultLoader struct {
	// The throughput CSV file.
	CSVFile string

	// The state snapshot file.
	StateFile string
}

// LoadSamples reads every throughput sample of the CSV file.
func (l *ResultLoader) LoadSamples() ([]ThroughputSample, error) {
	f, err := os.Open(l.CSVFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ','
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = len(CSVHeader)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	samples := make([]ThroughputSample, 0, len(records))

	for i, record := range records {
		if i == 0 {
			continue
		}

		sample, err := l.parseSample(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", l.CSVFile, i+1, err)
		}
		samples = append(samples, sample)
	}

	return samples, nil
}

func (l *ResultLoader) parseSample(record []string) (ThroughputSample, error) {
	t, err := strconv.ParseFloat(record[0], 64)
	if err != nil {
		return ThroughputSample{}, err
	}

	kbps, err := strconv.ParseFloat(record[1], 64)
	if err != nil {
		return ThroughputSample{}, err
	}

	packets, err := strconv.ParseUint(record[2], 10, 32)
	if err != nil {
		return ThroughputSample{}, err
	}

	sinks, err := strconv.Atoi(record[3])
	if err != nil {
		return ThroughputSample{}, err
	}

	txp, err := strconv.ParseFloat(record[5], 64)
	if err != nil {
		return ThroughputSample{}, err
	}

	return ThroughputSample{
		Time:       sim.VTimeInSec(t),
		Kbps:       kbps,
		Packets:    uint32(packets),
		Sinks:      sinks,
		Protocol:   record[4],
		TxPowerDbm: txp,
	}, nil
}

// LoadSnapshots reads every snapshot block of the state file.
func (l *ResultLoader) LoadSnapshots() ([]NetworkSnapshot, error) {
	f, err := os.Open(l.StateFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseSnapshots(f)
}

// ParseSnapshots parses a sequence of snapshot blocks.
func ParseSnapshots(r io.Reader) ([]NetworkSnapshot, error) {
	p := &snapshotParser{scanner: bufio.NewScanner(r)}

	var snapshots []NetworkSnapshot

	for {
		snapshot, ok, err := p.next()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", p.line, err)
		}

		if !ok {
			return snapshots, nil
		}

		snapshots = append(snapshots, snapshot)
	}
}

type snapshotParser struct {
	scanner *bufio.Scanner
	line    int
}

func (p *snapshotParser) readLine() (string, bool, error) {
	for p.scanner.Scan() {
		p.line++
		text := strings.TrimSpace(p.scanner.Text())
		if text != "" {
			return text, true, nil
		}
	}

	return "", false, p.scanner.Err()
}

func (p *snapshotParser) readField(tag string) (string, error) {
	text, ok, err := p.readLine()
	if err != nil {
		return "", err
	}

	if !ok {
		return "", fmt.Errorf("unexpected end of file, want %s", tag)
	}

	fields := strings.Fields(text)
	if len(fields) != 2 || fields[0] != tag {
		return "", fmt.Errorf("want %s, got %q", tag, text)
	}

	return fields[1], nil
}

func (p *snapshotParser) readProp(tag string) (float64, error) {
	value, err := p.readField(tag)
	if err != nil {
		return 0, err
	}

	return strconv.ParseFloat(value, 64)
}

// readCount reads a property holding a non-negative integer.
func (p *snapshotParser) readCount(tag string) (int, error) {
	value, err := p.readField(tag)
	if err != nil {
		return 0, err
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", tag, err)
	}

	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", tag, n)
	}

	return n, nil
}

func (p *snapshotParser) next() (NetworkSnapshot, bool, error) {
	text, ok, err := p.readLine()
	if err != nil || !ok {
		return NetworkSnapshot{}, false, err
	}

	fields := strings.Fields(text)
	if len(fields) != 2 || fields[0] != "TIME" {
		return NetworkSnapshot{}, false, fmt.Errorf("want TIME, got %q", text)
	}

	t, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return NetworkSnapshot{}, false, err
	}

	s := NetworkSnapshot{Time: sim.VTimeInSec(t)}

	s.NodeCount, err = p.readCount("NUM_NODES")
	if err != nil {
		return s, false, err
	}

	s.SinkCount, err = p.readCount("NUM_SINKS")
	if err != nil {
		return s, false, err
	}

	s.ThroughputKbps, err = p.readProp("THROUGHPUT")
	if err != nil {
		return s, false, err
	}

	err = p.readPositions(&s)
	if err != nil {
		return s, false, err
	}

	return s, true, nil
}

func (p *snapshotParser) readPositions(s *NetworkSnapshot) error {
	text, ok, err := p.readLine()
	if err != nil {
		return err
	}

	if !ok || text != "POSITIONS" {
		return fmt.Errorf("want POSITIONS, got %q", text)
	}

	s.Positions = make([]NodePosition, 0, s.NodeCount)

	for i := 0; i < s.NodeCount; i++ {
		text, ok, err := p.readLine()
		if err != nil {
			return err
		}

		if !ok {
			return fmt.Errorf("missing position of node %d", i)
		}

		pos, err := parsePosition(text)
		if err != nil {
			return err
		}
		s.Positions = append(s.Positions, pos)
	}

	return nil
}

func parsePosition(text string) (NodePosition, error) {
	fields := strings.Fields(text)
	if len(fields) != 4 {
		return NodePosition{}, fmt.Errorf("malformed position %q", text)
	}

	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return NodePosition{}, err
	}

	var coords [3]float64
	for i := range coords {
		coords[i], err = strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return NodePosition{}, err
		}
	}

	return NodePosition{
		Index:    index,
		Position: Vector{X: coords[0], Y: coords[1], Z: coords[2]},
	}, nil
}
