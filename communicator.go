package simcore

// Communicator is the contract the step engine ticks once per step on
// the simulation goroutine (except Reset, called by the caller between
// runs, and SetIndex, called once by the compiler). Concrete variants:
// ScreenCommunicator, FileInputCommunicator, FileOutputCommunicator.
type Communicator interface {
	// Receive produces the next bit to drive this communicator's output
	// component this step.
	Receive() bool
	// Transmit accepts the next bit of this step's transmit state.
	Transmit(bool)
	// Refresh resets scratch state that depends on the compiled
	// topology; called by Compile.
	Refresh()
	// Reset resets all state to initial; called by Simulator.Reset.
	Reset()
	// SetIndex records the communicatorIndex assigned by the compiler.
	SetIndex(int32)
	// Index returns the communicatorIndex last assigned by SetIndex.
	Index() int32
}

// commBase carries the communicatorIndex field shared by every
// concrete Communicator, mirroring the source's Communicator base class.
type commBase struct {
	index int32
}

func (c *commBase) SetIndex(i int32) { c.index = i }
func (c *commBase) Index() int32     { return c.index }

// ScreenInputEvent is one entry of the simulator's screenInputQueue: a
// caller-requested level change for the ScreenCommunicator bound to
// communicatorIndex.
type ScreenInputEvent struct {
	CommunicatorIndex int32
	TurnOn            bool
}

// ScreenCommunicator is the receive-only, UI-driven communicator. It
// holds a 5-bit queue of pending on/off events (the live bit plus up to
// 4 queued); InsertEvent is called by the simulation goroutine after
// draining the caller's screenInputQueue for this step.
type ScreenCommunicator struct {
	commBase
	state uint8 // bit 0 = live value; bits 1-4 = queued values
	count uint8 // number of queued values beyond the live one, 0-4
}

// NewScreenCommunicator returns a freshly refreshed ScreenCommunicator.
func NewScreenCommunicator() *ScreenCommunicator {
	return &ScreenCommunicator{}
}

// InsertEvent appends a pending level change. Once 4 values are already
// queued, the queue does not grow: a true value is ORed into the newest
// queued slot (bit 4) and a false value is dropped, matching the
// source's fixed 5-bit shift register.
func (s *ScreenCommunicator) InsertEvent(value bool) {
	if s.count < 4 {
		s.count++
		if value {
			s.state |= 1 << s.count
		}
	} else if value {
		s.state |= 1 << 4
	}
}

func (s *ScreenCommunicator) Receive() bool {
	if s.count > 0 {
		s.state >>= 1
		s.count--
	}
	return s.state&1 != 0
}

func (s *ScreenCommunicator) Transmit(bool) {}

func (s *ScreenCommunicator) Refresh() {
	s.state = 0
	s.count = 0
}

func (s *ScreenCommunicator) Reset() {
	s.Refresh()
}
