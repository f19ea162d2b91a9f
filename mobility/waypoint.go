// Package mobility moves nodes around the simulation area.
package mobility

import (
	"math"
	"math/rand"

	"github.com/syifan/manetsim"
	"gitlab.com/akita/akita/v3/sim"
)

// minLegDuration bounds how short a leg can be.
const minLegDuration sim.VTimeInSec = 1e-6

// A CourseChange is reported whenever a node starts or stops moving.
type CourseChange struct {
	Time     sim.VTimeInSec
	Node     int
	Position manetsim.Vector
	Velocity manetsim.Vector
}

// A CourseChangeListener is notified of every course change.
type CourseChangeListener interface {
	CourseChanged(c CourseChange)
}

// A leg is one walk towards a waypoint followed by a pause.
type leg struct {
	start    sim.VTimeInSec
	from, to manetsim.Vector
	velocity manetsim.Vector
	arrive   sim.VTimeInSec
	resume   sim.VTimeInSec
	arrived  bool
}

type walker struct {
	rng *rand.Rand
	leg leg
}

// RandomWaypointConfig configures a random waypoint model.
type RandomWaypointConfig struct {
	Area  manetsim.Area
	Speed manetsim.Range
	Pause manetsim.Range
	Seed  int64
}

// A RandomWaypoint model walks every node to a uniformly chosen waypoint at a
// uniformly chosen speed, pauses, and repeats. Positions are computed when
// they are asked for, and queries for one node must not go back in time.
type RandomWaypoint struct {
	cfg       RandomWaypointConfig
	walkers   []*walker
	listeners []CourseChangeListener
}

// NewRandomWaypoint creates a model for n nodes. Node i draws from its own
// source seeded from cfg.Seed, so node trajectories do not depend on the
// order positions are queried in.
func NewRandomWaypoint(n int, cfg RandomWaypointConfig) *RandomWaypoint {
	m := &RandomWaypoint{cfg: cfg}

	for i := 0; i < n; i++ {
		w := &walker{
			rng: rand.New(rand.NewSource(cfg.Seed*1_000_003 + int64(i))),
		}
		start := m.randomPoint(w.rng)
		m.beginWalk(w, 0, start)
		m.walkers = append(m.walkers, w)
	}

	return m
}

// AddListener registers a course change listener.
func (m *RandomWaypoint) AddListener(l CourseChangeListener) {
	m.listeners = append(m.listeners, l)
}

// NodeCount returns the number of nodes.
func (m *RandomWaypoint) NodeCount() int {
	return len(m.walkers)
}

// Position returns where node is at now.
func (m *RandomWaypoint) Position(node int, now sim.VTimeInSec) manetsim.Vector {
	l := m.advance(node, now)

	if now >= l.arrive {
		return l.to
	}

	return l.from.Add(l.velocity.Scale(float64(now - l.start)))
}

// Velocity returns the velocity of node at now.
func (m *RandomWaypoint) Velocity(node int, now sim.VTimeInSec) manetsim.Vector {
	l := m.advance(node, now)

	if now >= l.arrive {
		return manetsim.Vector{}
	}

	return l.velocity
}

// Distance returns the distance between two nodes at now.
func (m *RandomWaypoint) Distance(a, b int, now sim.VTimeInSec) float64 {
	d := m.Position(a, now).Sub(m.Position(b, now))
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

func (m *RandomWaypoint) advance(node int, now sim.VTimeInSec) leg {
	w := m.walkers[node]

	for {
		if !w.leg.arrived && now >= w.leg.arrive {
			w.leg.arrived = true
			m.notify(CourseChange{
				Time:     w.leg.arrive,
				Node:     node,
				Position: w.leg.to,
			})
		}

		if now < w.leg.resume {
			return w.leg
		}

		m.beginWalk(w, w.leg.resume, w.leg.to)
		m.notify(CourseChange{
			Time:     w.leg.start,
			Node:     node,
			Position: w.leg.from,
			Velocity: w.leg.velocity,
		})
	}
}

func (m *RandomWaypoint) beginWalk(
	w *walker,
	start sim.VTimeInSec,
	from manetsim.Vector,
) {
	to := m.randomPoint(w.rng)
	speed := uniform(w.rng, m.cfg.Speed)
	pause := uniform(w.rng, m.cfg.Pause)

	delta := to.Sub(from)
	dist := math.Sqrt(delta.X*delta.X + delta.Y*delta.Y + delta.Z*delta.Z)

	var velocity manetsim.Vector
	travel := 0.0
	if dist > 0 && speed > 0 {
		travel = dist / speed
		velocity = delta.Scale(speed / dist)
	}

	w.leg = leg{
		start:    start,
		from:     from,
		to:       to,
		velocity: velocity,
		arrive:   start + sim.VTimeInSec(travel),
		resume:   start + sim.VTimeInSec(travel+pause),
	}

	// A walk of zero length and no pause would never make progress.
	if w.leg.resume <= start {
		w.leg.resume = start + minLegDuration
	}
}

func (m *RandomWaypoint) randomPoint(rng *rand.Rand) manetsim.Vector {
	return manetsim.Vector{
		X: rng.Float64() * m.cfg.Area.Width,
		Y: rng.Float64() * m.cfg.Area.Height,
	}
}

func (m *RandomWaypoint) notify(c CourseChange) {
	for _, l := range m.listeners {
		l.CourseChanged(c)
	}
}

func uniform(rng *rand.Rand, r manetsim.Range) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}
