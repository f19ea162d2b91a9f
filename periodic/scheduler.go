// Package periodic provides repeating tasks on top of a discrete event
// scheduler.
package periodic

import (
	"errors"
	"log/slog"
	"reflect"
	"sort"

	"gitlab.com/akita/akita/v3/sim"
)

// ErrHalt is wrapped by task errors that must end every periodic chain.
var ErrHalt = errors.New("periodic tasks halted")

// A Task is a unit of work that runs at every tick.
type Task interface {
	Tick(now sim.VTimeInSec) error
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func(now sim.VTimeInSec) error

// Tick calls f.
func (f TaskFunc) Tick(now sim.VTimeInSec) error {
	return f(now)
}

// A tickEvent fires every task that is due at its time.
type tickEvent struct {
	time    sim.VTimeInSec
	handler *Scheduler
}

// Time returns the time of the event.
func (e tickEvent) Time() sim.VTimeInSec {
	return e.time
}

// Handler returns the handler of the event.
func (e tickEvent) Handler() sim.Handler {
	return e.handler
}

// IsSecondary always returns false.
func (e tickEvent) IsSecondary() bool {
	return false
}

type entry struct {
	name     string
	task     Task
	first    sim.VTimeInSec
	interval sim.VTimeInSec
	priority int
	order    int
	fired    uint64
	next     sim.VTimeInSec
}

// A Scheduler owns a set of periodic tasks. Tasks due at the same simulated
// time run in one engine event, ordered by ascending priority and then by
// registration order, so equal-period tasks never depend on how the engine
// breaks ties.
type Scheduler struct {
	sim.EventScheduler
	sim.TimeTeller

	log     *slog.Logger
	entries []*entry
	armed   map[sim.VTimeInSec]bool
	halted  error
}

// NewScheduler creates a new Scheduler.
func NewScheduler(
	es sim.EventScheduler,
	tt sim.TimeTeller,
	log *slog.Logger,
) *Scheduler {
	return &Scheduler{
		EventScheduler: es,
		TimeTeller:     tt,
		log:            log,
		armed:          make(map[sim.VTimeInSec]bool),
	}
}

// Every registers a task that first fires at first and then every interval
// seconds.
func (s *Scheduler) Every(
	name string,
	first, interval sim.VTimeInSec,
	priority int,
	task Task,
) {
	if interval <= 0 {
		panic("periodic task interval must be positive")
	}

	e := &entry{
		name:     name,
		task:     task,
		first:    first,
		interval: interval,
		priority: priority,
		order:    len(s.entries),
		next:     first,
	}
	s.entries = append(s.entries, e)
	s.arm(e.next)
}

// Fired returns how many times the named task has fired.
func (s *Scheduler) Fired(name string) uint64 {
	for _, e := range s.entries {
		if e.name == name {
			return e.fired
		}
	}
	return 0
}

// Err returns the error that halted the scheduler, if any.
func (s *Scheduler) Err() error {
	return s.halted
}

func (s *Scheduler) arm(t sim.VTimeInSec) {
	if s.halted != nil || s.armed[t] {
		return
	}

	s.armed[t] = true
	s.Schedule(tickEvent{time: t, handler: s})
}

// Handle fires the tasks due at the event time.
func (s *Scheduler) Handle(e sim.Event) error {
	switch e := e.(type) {
	case tickEvent:
		s.fire(e.time)
	default:
		panic("Scheduler cannot handle this event type " +
			reflect.TypeOf(e).String())
	}

	return nil
}

func (s *Scheduler) fire(now sim.VTimeInSec) {
	delete(s.armed, now)

	if s.halted != nil {
		return
	}

	due := s.dueAt(now)

	for _, e := range due {
		e.fired++
		e.next = e.first + e.interval*sim.VTimeInSec(e.fired)
		s.arm(e.next)

		err := e.task.Tick(now)
		if err == nil {
			continue
		}

		s.log.Warn("periodic task failed",
			"task", e.name, "time", float64(now), "err", err)

		if errors.Is(err, ErrHalt) {
			s.halted = err
			return
		}
	}
}

func (s *Scheduler) dueAt(now sim.VTimeInSec) []*entry {
	var due []*entry

	for _, e := range s.entries {
		if e.next == now {
			due = append(due, e)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].priority != due[j].priority {
			return due[i].priority < due[j].priority
		}
		return due[i].order < due[j].order
	})

	return due
}
