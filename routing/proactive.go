package routing

import (
	"io"
	"math"

	"gitlab.com/akita/akita/v3/sim"
)

// A Proactive protocol keeps a route to every destination and recomputes all
// of them once per update period. Between updates, routes may go stale
// while nodes move.
type Proactive struct {
	name   string
	topo   Topology
	period sim.VTimeInSec
	epoch  sim.VTimeInSec
	built  bool
	paths  [][][]int
}

// NewOLSR creates a link state protocol that floods topology control
// messages every 5 seconds.
func NewOLSR(topo Topology) *Proactive {
	return NewProactive("OLSR", topo, 5)
}

// NewDSDV creates a distance vector protocol with a 15 second periodic
// update.
func NewDSDV(topo Topology) *Proactive {
	return NewProactive("DSDV", topo, 15)
}

// NewProactive creates a proactive protocol with the given update period.
func NewProactive(
	name string,
	topo Topology,
	period sim.VTimeInSec,
) *Proactive {
	return &Proactive{
		name:   name,
		topo:   topo,
		period: period,
	}
}

// Name returns the protocol label.
func (p *Proactive) Name() string {
	return p.name
}

// Route looks up the table route and checks that its links still exist.
func (p *Proactive) Route(src, dst int, now sim.VTimeInSec) (Route, bool) {
	p.update(now)

	path := p.paths[src][dst]
	if path == nil || !linksUp(p.topo, path, now) {
		return Route{}, false
	}

	return Route{Path: path}, true
}

// update recomputes the tables when a new update period has started.
func (p *Proactive) update(now sim.VTimeInSec) {
	epoch := sim.VTimeInSec(math.Floor(float64(now/p.period))) * p.period
	if p.built && epoch == p.epoch {
		return
	}

	graph := BuildGraph(p.topo, now)
	n := p.topo.NodeCount()

	p.paths = make([][][]int, n)
	for src := 0; src < n; src++ {
		_, prev := graph.ShortestPaths(src)

		p.paths[src] = make([][]int, n)
		for dst := 0; dst < n; dst++ {
			if dst == src {
				continue
			}

			path, ok := reconstructPath(prev, src, dst)
			if ok {
				p.paths[src][dst] = path
			}
		}
	}

	p.epoch = epoch
	p.built = true
}

// WriteTable dumps the table of every node.
func (p *Proactive) WriteTable(w io.Writer, now sim.VTimeInSec) error {
	p.update(now)

	tw := newTableWriter(w, p.name, now)
	expire := p.epoch + p.period - now

	for src := range p.paths {
		rows := []tableRow{}
		for dst, path := range p.paths[src] {
			if path == nil {
				continue
			}

			rows = append(rows, tableRow{
				dst:     dst,
				gateway: path[1],
				flag:    "UP",
				expire:  expire,
				hops:    len(path) - 1,
			})
		}
		tw.writeNode(src, rows)
	}

	return tw.err
}
