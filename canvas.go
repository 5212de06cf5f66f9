// Package simcore implements the simulation core of Circuit Sandbox: a
// compiler from a painted grid of digital-logic elements into a packed
// static topology, a deterministic step engine that advances that
// topology's logic state, and a controller that runs the step engine on
// its own goroutine and publishes snapshots for a caller to render.
package simcore

// ElementKind discriminates the tagged variants a Grid cell can hold.
type ElementKind uint8

const (
	Empty ElementKind = iota
	ConductiveWire
	InsulatedWire
	SignalEl
	SourceEl
	LogicGateEl
	RelayEl
	CommunicatorEl
)

// GateKind is the logic function of a LogicGateEl.
type GateKind uint8

const (
	GateAnd GateKind = iota
	GateOr
	GateNand
	GateNor
)

// RelayPolarity selects which input level makes a relay conductive.
type RelayPolarity uint8

const (
	RelayPositive RelayPolarity = iota
	RelayNegative
)

// CommKind selects which concrete Communicator a CommunicatorEl pixel binds to.
type CommKind uint8

const (
	CommScreen CommKind = iota
	CommFileInput
	CommFileOutput
)

const numGateKinds = 4
const numRelayPolarities = 2
const numCommKinds = 3
const maxFanIn = 4

// Point is a canvas coordinate, (column, row).
type Point struct {
	X, Y int
}

// Element is the tagged-union value held by one Grid cell. Only the
// fields relevant to Kind are meaningful; this mirrors the source's
// std::variant with a discriminant field instead of Go interfaces,
// since per-cell dispatch during compile is a tight loop better served
// by a flat switch than by virtual calls.
type Element struct {
	Kind ElementKind

	Gate       GateKind
	GateLevel  bool // LogicGateEl display level, written by TakeSnapshot/Compile
	RelayKind  RelayPolarity
	Conductive bool // RelayEl display "conductive" state

	CommKind      CommKind
	Communicator  Communicator // shared handle; nil until elected by Compile
	TransmitState bool         // CommunicatorEl display transmit state
}

// Grid is a dense row-major rectangular canvas of Element values,
// standing in for an external UI-owned canvas: the core reads it
// during Compile and writes display fields during Compile/TakeSnapshot;
// the caller must not mutate it concurrently with a running simulator.
type Grid struct {
	width, height int
	cells         []Element
}

// NewGrid allocates an all-Empty grid of the given dimensions.
func NewGrid(width, height int) *Grid {
	if width <= 0 || height <= 0 {
		panic("simcore: grid dimensions must be positive")
	}
	return &Grid{width: width, height: height, cells: make([]Element, width*height)}
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

// Contains reports whether p lies within the grid bounds.
func (g *Grid) Contains(p Point) bool {
	return p.X >= 0 && p.X < g.width && p.Y >= 0 && p.Y < g.height
}

func (g *Grid) index(p Point) int { return p.Y*g.width + p.X }

// At returns the element at p. Panics if p is out of bounds.
func (g *Grid) At(p Point) Element {
	if !g.Contains(p) {
		panic("simcore: grid point out of bounds")
	}
	return g.cells[g.index(p)]
}

// Set stores an element at p. Panics if p is out of bounds.
func (g *Grid) Set(p Point, e Element) {
	if !g.Contains(p) {
		panic("simcore: grid point out of bounds")
	}
	g.cells[g.index(p)] = e
}

// orthogonalNeighbors returns the up-to-4 in-bounds orthogonal neighbors of p
// in a fixed order: +X, -X, +Y, -Y.
func (g *Grid) orthogonalNeighbors(p Point) []Point {
	candidates := [4]Point{
		{p.X + 1, p.Y},
		{p.X - 1, p.Y},
		{p.X, p.Y + 1},
		{p.X, p.Y - 1},
	}
	out := make([]Point, 0, 4)
	for _, c := range candidates {
		if g.Contains(c) {
			out = append(out, c)
		}
	}
	return out
}
