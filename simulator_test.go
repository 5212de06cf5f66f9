package simcore

import (
	"sync"
	"testing"
	"time"
)

func sourceWireSignalGrid() *Grid {
	g := NewGrid(3, 1)
	g.Set(Point{0, 0}, Element{Kind: SourceEl})
	g.Set(Point{1, 0}, Element{Kind: ConductiveWire})
	g.Set(Point{2, 0}, Element{Kind: SignalEl})
	return g
}

func TestSimulatorHoldsSimulationAndClear(t *testing.T) {
	sim := NewSimulator()
	if sim.HoldsSimulation() {
		t.Fatalf("a fresh Simulator should not hold a simulation")
	}
	sim.Compile(sourceWireSignalGrid())
	if !sim.HoldsSimulation() {
		t.Fatalf("Compile should make HoldsSimulation true")
	}
	sim.Clear()
	if sim.HoldsSimulation() {
		t.Fatalf("Clear should discard the published state")
	}
}

func TestSimulatorStepBeforeCompilePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic stepping before Compile")
		}
	}()
	NewSimulator().Step()
}

func TestSimulatorCompileWhileRunningPanics(t *testing.T) {
	sim := NewSimulator()
	sim.Compile(sourceWireSignalGrid())
	sim.Start()
	defer sim.Stop()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic calling Compile while running")
		}
	}()
	sim.Compile(sourceWireSignalGrid())
}

func TestSimulatorStepWhileRunningPanics(t *testing.T) {
	sim := NewSimulator()
	sim.Compile(sourceWireSignalGrid())
	sim.Start()
	defer sim.Stop()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic calling Step while running")
		}
	}()
	sim.Step()
}

func TestSimulatorStartBeforeCompilePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic starting before a successful Compile")
		}
	}()
	NewSimulator().Start()
}

func TestSimulatorStartTwicePanics(t *testing.T) {
	sim := NewSimulator()
	sim.Compile(sourceWireSignalGrid())
	sim.Start()
	defer sim.Stop()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic starting an already-running simulator")
		}
	}()
	sim.Start()
}

func TestSimulatorStopWhileNotRunningPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic stopping a simulator that is not running")
		}
	}()
	NewSimulator().Stop()
}

func TestSimulatorStepAndSnapshot(t *testing.T) {
	g := sourceWireSignalGrid()
	sim := NewSimulator()
	sim.Compile(g)
	sim.Step()
	sim.TakeSnapshot(g)
	if !LogicLevelAt(sim.static, sim.latest.Load(), Point{1, 0}) {
		t.Fatalf("wire should read on after a step")
	}
}

func TestSimulatorResetClearsDisplayFields(t *testing.T) {
	g := NewGrid(3, 1)
	g.Set(Point{0, 0}, Element{Kind: SourceEl})
	g.Set(Point{1, 0}, Element{Kind: SignalEl})
	g.Set(Point{2, 0}, Element{Kind: LogicGateEl, Gate: GateOr, GateLevel: true})

	sim := NewSimulator()
	sim.Reset(g)
	if got := g.At(Point{2, 0}).GateLevel; got {
		t.Fatalf("Reset should zero the gate's persisted display level before recompiling, got %v", got)
	}
}

func TestSimulatorRunLoopAdvancesAndStops(t *testing.T) {
	g := sourceWireSignalGrid()
	sim := NewSimulator()
	sim.Compile(g)
	sim.SetPeriod(0)
	sim.Start()

	deadline := time.After(2 * time.Second)
	for !LogicLevelAt(sim.static, sim.latest.Load(), Point{1, 0}) {
		select {
		case <-deadline:
			sim.Stop()
			t.Fatalf("timed out waiting for the run loop to settle the wire on")
		default:
		}
		time.Sleep(time.Millisecond)
	}
	sim.Stop()
	if sim.Running() {
		t.Fatalf("Running() should be false after Stop")
	}
}

func TestSimulatorSetGetPeriod(t *testing.T) {
	sim := NewSimulator()
	sim.SetPeriod(5 * time.Millisecond)
	if got := sim.GetPeriod(); got != 5*time.Millisecond {
		t.Fatalf("GetPeriod() = %v, want 5ms", got)
	}
}

// TestSimulatorSendCommunicatorEventDispatched confirms an event queued
// via SendCommunicatorEvent reaches the named screen communicator on the
// next step, matching pullCommunicatorEvents' dispatch-by-index rule.
func TestSimulatorSendCommunicatorEventDispatched(t *testing.T) {
	g := NewGrid(1, 1)
	g.Set(Point{0, 0}, Element{Kind: CommunicatorEl, CommKind: CommScreen})

	sim := NewSimulator()
	sim.Compile(g)
	if len(sim.static.Communicators) != 1 {
		t.Fatalf("expected exactly one communicator, got %d", len(sim.static.Communicators))
	}
	sim.SendCommunicatorEvent(0, true)
	sim.Step()

	comm, ok := sim.static.Communicators[0].Comm.(*ScreenCommunicator)
	if !ok {
		t.Fatalf("expected the communicator elected for this region to be a *ScreenCommunicator")
	}
	if !comm.Receive() {
		t.Fatalf("the queued screen event should have been dispatched before this step ran")
	}
}

// TestSimulatorRunLoopConcurrentSnapshot exercises TakeSnapshot being
// called from a separate goroutine while the simulation goroutine is
// actively stepping, matching the atomic publish/acquire contract of
// the source's UI-thread/simulation-thread split.
func TestSimulatorRunLoopConcurrentSnapshot(t *testing.T) {
	g := sourceWireSignalGrid()
	sim := NewSimulator()
	sim.Compile(g)
	sim.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	stop := make(chan struct{})
	go func() {
		defer wg.Done()
		snapshotGrid := sourceWireSignalGrid()
		for {
			select {
			case <-stop:
				return
			default:
			}
			sim.TakeSnapshot(snapshotGrid)
		}
	}()

	time.Sleep(10 * time.Millisecond)
	close(stop)
	wg.Wait()
	sim.Stop()
}
