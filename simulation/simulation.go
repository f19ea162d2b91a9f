// Package simulation runs an akita engine in bounded phases.
package simulation

import (
	"fmt"
	"reflect"

	"gitlab.com/akita/akita/v3/sim"
)

// A stopEvent marks the end of a phase. It moves the engine clock to the stop
// time even when no other event is due there.
type stopEvent struct {
	time    sim.VTimeInSec
	handler *Simulation
}

func (e stopEvent) Time() sim.VTimeInSec {
	return e.time
}

func (e stopEvent) Handler() sim.Handler {
	return e.handler
}

func (e stopEvent) IsSecondary() bool {
	return false
}

// A callbackEvent invokes a function at a point in simulated time.
type callbackEvent struct {
	time    sim.VTimeInSec
	handler *Simulation
	fn      func(now sim.VTimeInSec)
}

func (e callbackEvent) Time() sim.VTimeInSec {
	return e.time
}

func (e callbackEvent) Handler() sim.Handler {
	return e.handler
}

func (e callbackEvent) IsSecondary() bool {
	return false
}

// A Simulation wraps an engine and holds back every event that is due at or
// after the current stop time. Components schedule through the Simulation
// rather than through the engine, so that a phase ends when the clock
// reaches its stop time.
type Simulation struct {
	engine sim.Engine

	stopAt    sim.VTimeInSec
	deferred  []sim.Event
	destroyed bool
}

// NewSimulation creates a Simulation. Nothing runs until RunUntil is called.
func NewSimulation(engine sim.Engine) *Simulation {
	return &Simulation{engine: engine}
}

// Engine returns the wrapped engine.
func (s *Simulation) Engine() sim.Engine {
	return s.engine
}

// CurrentTime returns the simulated time.
func (s *Simulation) CurrentTime() sim.VTimeInSec {
	return s.engine.CurrentTime()
}

// StopTime returns the end of the current phase.
func (s *Simulation) StopTime() sim.VTimeInSec {
	return s.stopAt
}

// Pending returns the number of events held back for a later phase.
func (s *Simulation) Pending() int {
	return len(s.deferred)
}

// Schedule registers an event. Events at or after the stop time wait for the
// next phase. After Destroy, events are dropped.
func (s *Simulation) Schedule(e sim.Event) {
	if s.destroyed {
		return
	}

	if e.Time() >= s.stopAt {
		s.deferred = append(s.deferred, e)
		return
	}

	s.engine.Schedule(e)
}

// ScheduleAfter invokes fn once delay seconds from now.
func (s *Simulation) ScheduleAfter(
	delay sim.VTimeInSec,
	fn func(now sim.VTimeInSec),
) {
	s.Schedule(callbackEvent{
		time:    s.CurrentTime() + delay,
		handler: s,
		fn:      fn,
	})
}

// RunUntil processes every event before t and returns with the clock at t.
func (s *Simulation) RunUntil(t sim.VTimeInSec) error {
	if s.destroyed {
		return fmt.Errorf("simulation has been destroyed")
	}

	if t <= s.engine.CurrentTime() || t < s.stopAt {
		return fmt.Errorf("stop time %v is not after current time %v",
			t, s.engine.CurrentTime())
	}

	s.stopAt = t
	s.release()
	s.engine.Schedule(stopEvent{time: t, handler: s})

	return s.engine.Run()
}

func (s *Simulation) release() {
	kept := s.deferred[:0]

	for _, e := range s.deferred {
		if e.Time() < s.stopAt {
			s.engine.Schedule(e)
			continue
		}
		kept = append(kept, e)
	}

	for i := len(kept); i < len(s.deferred); i++ {
		s.deferred[i] = nil
	}

	s.deferred = kept
}

// Destroy drops every held back event and notifies the engine's simulation
// end handlers. Periodic chains stop re-arming from here on.
func (s *Simulation) Destroy() {
	if s.destroyed {
		return
	}

	s.destroyed = true
	s.deferred = nil
	s.engine.Finished()
}

// Handle processes the events owned by the Simulation itself.
func (s *Simulation) Handle(e sim.Event) error {
	switch e := e.(type) {
	case stopEvent:
		return nil
	case callbackEvent:
		e.fn(e.time)
		return nil
	default:
		panic("Simulation cannot handle this event type " +
			reflect.TypeOf(e).String())
	}
}
