package simcore

// SourceStatic is a compiled Source element: it drives its output
// component true on every step.
type SourceStatic struct {
	OutputComponent int32
}

// GateStatic is a compiled LogicGate: its inputs are read from
// DynamicData.ComponentLogicLevels, and its result is OR'd into
// DynamicData.ComponentLogicLevels[OutputComponent].
type GateStatic struct {
	InputComponents []int32
	OutputComponent int32
}

// RelayStatic is a compiled Relay: its conductivity is computed from its
// inputs' polarity condition and written to
// DynamicData.RelayPixelIsConductive[OutputRelayPixel].
type RelayStatic struct {
	InputComponents  []int32
	OutputRelayPixel int32
}

// CommunicatorStatic is a compiled communicator binding: a set of input
// components feeding its transmit state, an output component receiving
// its Receive() bit, and the elected Communicator implementation.
type CommunicatorStatic struct {
	InputComponents []int32 // sorted ascending, deduplicated
	OutputComponent int32
	Comm            Communicator
}

// ComponentStatic is a compiled connected component's adjacency window
// into StaticData.AdjComponentList.
type ComponentStatic struct {
	AdjRelayBegin, AdjRelayEnd int32
}

// RelayPixelStatic is a compiled relay pixel's adjacent-component list.
type RelayPixelStatic struct {
	AdjComponents    [4]int32
	NumAdjComponents uint8
}

// PixelType discriminates what a compiled pixel resolves to.
type PixelType uint8

const (
	PixelEmpty PixelType = iota
	PixelComponent
	PixelRelay
	PixelCommunicator
)

// CompiledPixel is one entry of StaticData.pixels: Index[0] and Index[1]
// hold the two direction-partitioned indices, equal except for
// InsulatedWire pixels where the two axes are independently numbered. A
// value of -1 means "does not participate in that direction's partition".
type CompiledPixel struct {
	Type  PixelType
	Index [2]int32
}

// gateBucket holds gates of one kind, partitioned by fan-in (0..maxFanIn).
type gateBucket [maxFanIn + 1][]GateStatic

// relayBucket holds relays of one polarity, partitioned by fan-in.
type relayBucket [maxFanIn + 1][]RelayStatic

// StaticData is the immutable compiled topology produced by Compile. It
// is replaced wholesale by the next Compile call; nothing mutates it in
// place.
type StaticData struct {
	Sources []SourceStatic

	// Gates[kind][fanIn] is the contiguous bucket of gates of that kind
	// and fan-in, indexed by GateKind then fan-in (0..4).
	Gates [numGateKinds]gateBucket

	// Relays[polarity][fanIn] is the contiguous bucket of relays of that
	// polarity and fan-in, indexed by RelayPolarity then fan-in (0..4).
	Relays [numRelayPolarities]relayBucket

	Communicators []CommunicatorStatic
	// ScreenCommunicatorStart/End bound the contiguous index range of
	// screen communicators within Communicators. Event dispatch indexes
	// Communicators directly and does not read them.
	ScreenCommunicatorStart, ScreenCommunicatorEnd int32

	Components       []ComponentStatic
	RelayPixels      []RelayPixelStatic
	AdjComponentList []int32

	pixels *matrix[CompiledPixel]
}

// NumComponents returns the number of compiled components.
func (s *StaticData) NumComponents() int { return len(s.Components) }

// NumRelayPixels returns the number of compiled relay pixels.
func (s *StaticData) NumRelayPixels() int { return len(s.RelayPixels) }

// NumCommunicators returns the number of compiled communicators.
func (s *StaticData) NumCommunicators() int { return len(s.Communicators) }

// DynamicData is the mutable per-step logic state sized from a
// StaticData. Every step replaces one DynamicData with a new one; none
// is ever mutated after being published.
type DynamicData struct {
	ComponentLogicLevels       []bool
	RelayPixelLogicLevels      []bool
	RelayPixelIsConductive     []bool
	CommunicatorTransmitStates []bool
}

// newDynamicData allocates an all-false DynamicData sized from static.
func newDynamicData(static *StaticData) *DynamicData {
	return &DynamicData{
		ComponentLogicLevels:       make([]bool, len(static.Components)),
		RelayPixelLogicLevels:      make([]bool, len(static.RelayPixels)),
		RelayPixelIsConductive:     make([]bool, len(static.RelayPixels)),
		CommunicatorTransmitStates: make([]bool, len(static.Communicators)),
	}
}

// clone returns a shallow copy suitable as the basis for the next step
// (the step engine only ever writes into a fresh copy, never into old).
func (d *DynamicData) clone() *DynamicData {
	return &DynamicData{
		ComponentLogicLevels:       append([]bool(nil), d.ComponentLogicLevels...),
		RelayPixelLogicLevels:      append([]bool(nil), d.RelayPixelLogicLevels...),
		RelayPixelIsConductive:     append([]bool(nil), d.RelayPixelIsConductive...),
		CommunicatorTransmitStates: append([]bool(nil), d.CommunicatorTransmitStates...),
	}
}
