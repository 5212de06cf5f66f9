package simcore

import (
	"sync/atomic"
	"time"
)

// Simulator owns the simulation goroutine, the atomically-published
// latest DynamicData, the step period, and the caller's screen-input
// event queue. Compile/Reset build a StaticData from a Grid;
// Start/Stop/Step run or single-step the step engine; TakeSnapshot lets
// any goroutine observe the latest published state; SendCommunicatorEvent
// feeds UI-originated screen events into the next step.
//
// A Simulator is not safe for concurrent use of its caller-facing
// methods from multiple goroutines simultaneously (the same restriction
// the source places on its UI thread); Start/Stop/Compile/Reset/Step/
// Clear are expected to be serialized by the caller, typically because
// only one UI action can be in flight at a time.
type Simulator struct {
	static *StaticData

	latest atomic.Pointer[DynamicData]

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	periodNanos atomic.Int64

	screenInputQueue *EventQueue[ScreenInputEvent]
}

// NewSimulator returns a Simulator with no compiled topology.
func NewSimulator() *Simulator {
	return &Simulator{
		screenInputQueue: NewEventQueue[ScreenInputEvent](),
	}
}

// HoldsSimulation reports whether Compile has produced a StaticData,
// useful for callers deciding whether TakeSnapshot/Start would be
// meaningful without themselves tracking compile state.
func (s *Simulator) HoldsSimulation() bool {
	return s.latest.Load() != nil
}

// Running reports whether the simulation goroutine is currently active.
func (s *Simulator) Running() bool {
	return s.running.Load()
}

// Compile runs the compiler over grid and publishes
// its flood-filled initial DynamicData. Precondition: not running;
// violating it is a programmer error and panics.
func (s *Simulator) Compile(grid *Grid) {
	if s.running.Load() {
		panic("simcore: Compile called while simulator is running")
	}
	static, dyn := Compile(grid)
	s.static = static
	s.latest.Store(dyn)
}

// Reset clears every canvas element's transient display fields, compiles
// the grid fresh, and resets every communicator to its initial state.
// Precondition: not running.
func (s *Simulator) Reset(grid *Grid) {
	if s.running.Load() {
		panic("simcore: Reset called while simulator is running")
	}
	clearDisplayFields(grid)
	static, dyn := Compile(grid)
	s.static = static
	s.latest.Store(dyn)
	for i := range static.Communicators {
		static.Communicators[i].Comm.Reset()
	}
}

// clearDisplayFields zeroes every element's persisted logic-level
// display field before a Reset recompiles the grid from scratch.
func clearDisplayFields(grid *Grid) {
	for y := 0; y < grid.Height(); y++ {
		for x := 0; x < grid.Width(); x++ {
			p := Point{x, y}
			e := grid.At(p)
			switch e.Kind {
			case LogicGateEl:
				e.GateLevel = false
				grid.Set(p, e)
			case RelayEl:
				e.Conductive = false
				grid.Set(p, e)
			case CommunicatorEl:
				e.TransmitState = false
				grid.Set(p, e)
			}
		}
	}
}

// Clear discards the compiled topology and published state. Precondition:
// not running.
func (s *Simulator) Clear() {
	if s.running.Load() {
		panic("simcore: Clear called while simulator is running")
	}
	s.static = nil
	s.latest.Store(nil)
}

// SetPeriod sets the target duration between steps; 0 means "as fast as
// possible" (the run loop never waits between steps).
func (s *Simulator) SetPeriod(d time.Duration) {
	s.periodNanos.Store(int64(d))
}

// GetPeriod returns the current step period.
func (s *Simulator) GetPeriod() time.Duration {
	return time.Duration(s.periodNanos.Load())
}

// SendCommunicatorEvent queues a screen-communicator level change to be
// dispatched to communicatorIndex at the start of the next step. It may
// be called from a goroutine other than the simulation goroutine, but
// calls must not run concurrently with one another: the underlying
// EventQueue has a single producer side.
func (s *Simulator) SendCommunicatorEvent(communicatorIndex int32, turnOn bool) {
	s.screenInputQueue.Push(ScreenInputEvent{CommunicatorIndex: communicatorIndex, TurnOn: turnOn})
}

// Step computes exactly one step synchronously and publishes the result.
// Precondition: not running (Start owns stepping while active).
func (s *Simulator) Step() {
	if s.running.Load() {
		panic("simcore: Step called while simulator is running")
	}
	s.stepOnce()
}

func (s *Simulator) stepOnce() {
	old := s.latest.Load()
	if old == nil {
		panic("simcore: Step called before a successful Compile")
	}
	next := calculate(s.static, old, s.screenInputQueue)
	s.latest.Store(next)
}

// TakeSnapshot writes every element's display fields (GateLevel,
// Conductive, TransmitState) from the latest published DynamicData into
// grid. Valid whether or not the simulator is running; acquires the
// published pointer with the same acquire semantics Step's publish
// releases, so a snapshot never observes a partially-applied step.
func (s *Simulator) TakeSnapshot(grid *Grid) {
	dyn := s.latest.Load()
	if dyn == nil || s.static == nil {
		return
	}
	snapshotInto(grid, s.static, dyn)
}

// Start spawns the simulation goroutine. Precondition: Compile has
// produced a valid published state and the simulator is not already
// running.
func (s *Simulator) Start() {
	if s.latest.Load() == nil {
		panic("simcore: Start called before a successful Compile")
	}
	if s.running.Swap(true) {
		panic("simcore: Start called while simulator is already running")
	}
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	s.stopCh, s.doneCh = stopCh, doneCh
	go s.run(stopCh, doneCh)
}

// Stop signals the simulation goroutine to halt after its current step
// and blocks until it has exited. Precondition: running.
func (s *Simulator) Stop() {
	if !s.running.Load() {
		panic("simcore: Stop called while simulator is not running")
	}
	close(s.stopCh)
	<-s.doneCh
	s.running.Store(false)
	s.stopCh, s.doneCh = nil, nil
}

// run is the simulation goroutine body: compute, always publish, then
// check for a stop request, then sleep for the remainder of the period
// (never accumulating lag) before looping. The final step before a stop
// request is always published first, so communicators never skip a step.
func (s *Simulator) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	nextStepTime := time.Now()

	for {
		s.stepOnce()

		select {
		case <-stopCh:
			return
		default:
		}

		period := time.Duration(s.periodNanos.Load())
		if period == 0 {
			continue
		}

		nextStepTime = nextStepTime.Add(period)
		now := time.Now()
		if nextStepTime.Before(now) {
			nextStepTime = now
			continue
		}

		timer := time.NewTimer(nextStepTime.Sub(now))
		select {
		case <-timer.C:
		case <-stopCh:
			timer.Stop()
			return
		}
	}
}
