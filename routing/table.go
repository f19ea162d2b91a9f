package routing

import (
	"fmt"
	"io"

	"github.com/syifan/manetsim"
	"gitlab.com/akita/akita/v3/sim"
)

type tableRow struct {
	dst     int
	gateway int
	flag    string
	expire  sim.VTimeInSec
	hops    int
}

// tableWriter renders routing tables in the layout ns-3 protocols print:
//
//	Node: 0, Time: +100s, Local time: +100s, AODV Routing table
//	Destination	Gateway	Interface	Flag	Expire	Hops
//	10.1.1.3	10.1.1.2	10.1.1.1	UP	+2.5s	2
type tableWriter struct {
	w     io.Writer
	proto string
	now   sim.VTimeInSec
	err   error
}

func newTableWriter(w io.Writer, proto string, now sim.VTimeInSec) *tableWriter {
	return &tableWriter{w: w, proto: proto, now: now}
}

func (t *tableWriter) printf(format string, args ...interface{}) {
	if t.err != nil {
		return
	}

	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *tableWriter) writeNode(node int, rows []tableRow) {
	now := manetsim.FormatFloat(float64(t.now))

	t.printf("Node: %d, Time: +%ss, Local time: +%ss, %s Routing table\n",
		node, now, now, t.proto)
	t.printf("Destination\tGateway\tInterface\tFlag\tExpire\tHops\n")

	for _, r := range rows {
		t.printf("%s\t%s\t%s\t%s\t+%ss\t%d\n",
			manetsim.NodeAddress(r.dst),
			manetsim.NodeAddress(r.gateway),
			manetsim.NodeAddress(node),
			r.flag,
			manetsim.FormatFloat(float64(r.expire)),
			r.hops)
	}

	t.printf("\n")
}
