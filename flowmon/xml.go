package flowmon

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/syifan/manetsim"
	"gitlab.com/akita/akita/v3/sim"
)

type xmlMonitor struct {
	XMLName    xml.Name          `xml:"FlowMonitor"`
	FlowStats  []xmlFlowStats    `xml:"FlowStats>Flow"`
	Classifier []xmlFlowClassify `xml:"Ipv4FlowClassifier>Flow"`
}

type xmlFlowStats struct {
	FlowID            int    `xml:"flowId,attr"`
	TimeFirstTxPacket string `xml:"timeFirstTxPacket,attr"`
	TimeFirstRxPacket string `xml:"timeFirstRxPacket,attr"`
	TimeLastTxPacket  string `xml:"timeLastTxPacket,attr"`
	TimeLastRxPacket  string `xml:"timeLastRxPacket,attr"`
	DelaySum          string `xml:"delaySum,attr"`
	JitterSum         string `xml:"jitterSum,attr"`
	LastDelay         string `xml:"lastDelay,attr"`
	TxBytes           uint64 `xml:"txBytes,attr"`
	RxBytes           uint64 `xml:"rxBytes,attr"`
	TxPackets         uint64 `xml:"txPackets,attr"`
	RxPackets         uint64 `xml:"rxPackets,attr"`
	LostPackets       uint64 `xml:"lostPackets,attr"`
	TimesForwarded    uint64 `xml:"timesForwarded,attr"`
}

type xmlFlowClassify struct {
	FlowID             int    `xml:"flowId,attr"`
	SourceAddress      string `xml:"sourceAddress,attr"`
	DestinationAddress string `xml:"destinationAddress,attr"`
	Protocol           int    `xml:"protocol,attr"`
	SourcePort         int    `xml:"sourcePort,attr"`
	DestinationPort    int    `xml:"destinationPort,attr"`
}

// FormatTime renders a time the way FlowMonitor does, in signed
// nanoseconds.
func FormatTime(t sim.VTimeInSec) string {
	return "+" + manetsim.FormatFloat(float64(t)*1e9) + "ns"
}

// ParseTime parses a time written by FormatTime.
func ParseTime(s string) (sim.VTimeInSec, error) {
	v, found := strings.CutSuffix(s, "ns")
	if !found {
		return 0, fmt.Errorf("time %q is not in nanoseconds", s)
	}

	ns, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}

	return sim.VTimeInSec(ns / 1e9), nil
}

// WriteXML serializes the flow statistics.
func (m *Monitor) WriteXML(w io.Writer) error {
	doc := xmlMonitor{}

	for _, f := range m.Flows() {
		doc.FlowStats = append(doc.FlowStats, xmlFlowStats{
			FlowID:            f.FlowID,
			TimeFirstTxPacket: FormatTime(f.TimeFirstTxPacket),
			TimeFirstRxPacket: FormatTime(f.TimeFirstRxPacket),
			TimeLastTxPacket:  FormatTime(f.TimeLastTxPacket),
			TimeLastRxPacket:  FormatTime(f.TimeLastRxPacket),
			DelaySum:          FormatTime(f.DelaySum),
			JitterSum:         FormatTime(f.JitterSum),
			LastDelay:         FormatTime(f.LastDelay),
			TxBytes:           f.TxBytes,
			RxBytes:           f.RxBytes,
			TxPackets:         f.TxPackets,
			RxPackets:         f.RxPackets,
			LostPackets:       f.LostPackets,
			TimesForwarded:    f.TimesForwarded,
		})

		doc.Classifier = append(doc.Classifier, xmlFlowClassify{
			FlowID:             f.FlowID,
			SourceAddress:      f.SourceAddress,
			DestinationAddress: f.DestinationAddress,
			Protocol:           f.Protocol,
			SourcePort:         f.SourcePort,
			DestinationPort:    f.DestinationPort,
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}

	_, err := io.WriteString(w, "\n")

	return err
}

// WriteFile serializes the flow statistics into a new file at path.
func (m *Monitor) WriteFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
	}()

	return m.WriteXML(f)
}

// Decode reads flow statistics written by WriteXML. Classifier entries are
// joined to their flow by flow ID.
func Decode(r io.Reader) ([]FlowStats, error) {
	var doc xmlMonitor
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}

	flows := make([]FlowStats, 0, len(doc.FlowStats))
	index := make(map[int]int)

	for _, x := range doc.FlowStats {
		f, err := decodeFlowStats(x)
		if err != nil {
			return nil, fmt.Errorf("flow %d: %w", x.FlowID, err)
		}

		index[f.FlowID] = len(flows)
		flows = append(flows, f)
	}

	for _, c := range doc.Classifier {
		i, found := index[c.FlowID]
		if !found {
			return nil, fmt.Errorf("classifier names unknown flow %d", c.FlowID)
		}

		flows[i].SourceAddress = c.SourceAddress
		flows[i].DestinationAddress = c.DestinationAddress
		flows[i].Protocol = c.Protocol
		flows[i].SourcePort = c.SourcePort
		flows[i].DestinationPort = c.DestinationPort
	}

	return flows, nil
}

// DecodeFile reads the flow statistics stored at path.
func DecodeFile(path string) ([]FlowStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f)
}

func decodeFlowStats(x xmlFlowStats) (FlowStats, error) {
	f := FlowStats{
		FlowID:         x.FlowID,
		TxBytes:        x.TxBytes,
		RxBytes:        x.RxBytes,
		TxPackets:      x.TxPackets,
		RxPackets:      x.RxPackets,
		LostPackets:    x.LostPackets,
		TimesForwarded: x.TimesForwarded,
	}

	times := []struct {
		text string
		dst  *sim.VTimeInSec
	}{
		{x.TimeFirstTxPacket, &f.TimeFirstTxPacket},
		{x.TimeFirstRxPacket, &f.TimeFirstRxPacket},
		{x.TimeLastTxPacket, &f.TimeLastTxPacket},
		{x.TimeLastRxPacket, &f.TimeLastRxPacket},
		{x.DelaySum, &f.DelaySum},
		{x.JitterSum, &f.JitterSum},
		{x.LastDelay, &f.LastDelay},
	}

	for _, t := range times {
		v, err := ParseTime(t.text)
		if err != nil {
			return f, err
		}
		*t.dst = v
	}

	return f, nil
}
