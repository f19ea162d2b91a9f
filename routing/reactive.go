package routing

import (
	"io"
	"sort"

	"gitlab.com/akita/akita/v3/sim"
)

type routeKey struct {
	src, dst int
}

type cachedRoute struct {
	path   []int
	expire sim.VTimeInSec
}

// A Reactive protocol discovers a route when a packet needs one and caches
// it for a lifetime. A cached route whose links broke is discovered again.
type Reactive struct {
	name     string
	topo     Topology
	lifetime sim.VTimeInSec
	refresh  bool
	cache    map[routeKey]*cachedRoute
}

// NewAODV creates an on-demand distance vector protocol. Using a route
// extends its 3 second active route timeout.
func NewAODV(topo Topology) *Reactive {
	return NewReactive("AODV", topo, 3, true)
}

// NewDSR creates a source routing protocol with a 300 second route cache.
func NewDSR(topo Topology) *Reactive {
	return NewReactive("DSR", topo, 300, false)
}

// NewReactive creates a reactive protocol. When refresh is set, every use of
// a route restarts its lifetime.
func NewReactive(
	name string,
	topo Topology,
	lifetime sim.VTimeInSec,
	refresh bool,
) *Reactive {
	return &Reactive{
		name:     name,
		topo:     topo,
		lifetime: lifetime,
		refresh:  refresh,
		cache:    make(map[routeKey]*cachedRoute),
	}
}

// Name returns the protocol label.
func (p *Reactive) Name() string {
	return p.name
}

// Route returns the cached route or discovers a new one.
func (p *Reactive) Route(src, dst int, now sim.VTimeInSec) (Route, bool) {
	key := routeKey{src: src, dst: dst}

	if c, found := p.cache[key]; found && now < c.expire &&
		linksUp(p.topo, c.path, now) {
		if p.refresh {
			c.expire = now + p.lifetime
		}
		return Route{Path: c.path}, true
	}

	path, ok := BuildGraph(p.topo, now).ShortestPath(src, dst)
	if !ok {
		delete(p.cache, key)
		return Route{}, false
	}

	p.cache[key] = &cachedRoute{path: path, expire: now + p.lifetime}

	return Route{Path: path, Discovered: true}, true
}

// WriteTable dumps the cached routes of every node.
func (p *Reactive) WriteTable(w io.Writer, now sim.VTimeInSec) error {
	tw := newTableWriter(w, p.name, now)

	bySrc := make(map[int][]tableRow)
	for key, c := range p.cache {
		flag := "UP"
		if now >= c.expire {
			flag = "INVALID"
		}

		bySrc[key.src] = append(bySrc[key.src], tableRow{
			dst:     key.dst,
			gateway: c.path[1],
			flag:    flag,
			expire:  max(c.expire-now, 0),
			hops:    len(c.path) - 1,
		})
	}

	for src := 0; src < p.topo.NodeCount(); src++ {
		rows := bySrc[src]
		sort.Slice(rows, func(i, j int) bool { return rows[i].dst < rows[j].dst })
		tw.writeNode(src, rows)
	}

	return tw.err
}
