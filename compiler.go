package simcore

import "sort"

// compilerComponent is pass 2's working record for one connected
// component, before its relay adjacency list is packed into
// StaticData.AdjComponentList by Compile's packing pass.
type compilerComponent struct {
	useful         bool
	adjRelayPixels []int32
}

// Compile walks grid and produces the packed StaticData topology plus an
// initial DynamicData with every source and persisted display state
// already applied and flood-filled. It runs eight passes:
// pixel typing, direction-partitioned component
// discovery, source/gate population, relay population, communicator
// election, packing, initial evaluation, and snapshot.
//
// Compile mutates grid: newly elected communicators are written back
// into the Communicator field of every pixel in their region, and every
// pixel's display field (GateLevel/Conductive/TransmitState) is
// refreshed from the initial DynamicData.
func Compile(grid *Grid) (*StaticData, *DynamicData) {
	static := &StaticData{}
	pixels := newMatrix[CompiledPixel](grid.Width(), grid.Height())
	for i := range pixels.cells {
		pixels.cells[i] = CompiledPixel{Type: PixelEmpty, Index: [2]int32{-1, -1}}
	}

	compilePassTypePixels(grid, pixels)
	components := compilePassComponents(grid, pixels)
	compilePassSourcesAndGates(grid, pixels, static)
	components = compilePassRelays(grid, pixels, static, components)
	compilePassCommunicators(grid, pixels, static)
	compilePackComponents(static, components)

	static.pixels = pixels

	dyn := compileInitialDynamicData(grid, pixels, static)
	floodFill(static, dyn)
	snapshotInto(grid, static, dyn)

	return static, dyn
}

// compilePassTypePixels is pass 1: classify every pixel's PixelType from
// its element kind. Index fields start at [-1,-1] and are filled in by
// later passes.
func compilePassTypePixels(grid *Grid, pixels *matrix[CompiledPixel]) {
	for y := 0; y < grid.Height(); y++ {
		for x := 0; x < grid.Width(); x++ {
			p := Point{x, y}
			var t PixelType
			switch grid.At(p).Kind {
			case Empty:
				t = PixelEmpty
			case RelayEl:
				t = PixelRelay
			case CommunicatorEl:
				t = PixelCommunicator
			default:
				t = PixelComponent
			}
			pixels.set(p, CompiledPixel{Type: t, Index: [2]int32{-1, -1}})
		}
	}
}

// compilePassComponents is pass 2: direction-partitioned flood fill over
// floodfillable pixels. For each unvisited (pixel, direction) seed, it
// explores the same-pixel cross to the other direction (unless the
// pixel is InsulatedWire, which keeps its two axes independent) and
// moves to the axis-d neighbor in either sign, refusing any move that
// crosses a Signal into a signal-receiving gate/communicator pixel
// (those connections are directed, populated separately in pass 3/4/5).
// A component surviving with no useful pixel and no adjacent relay is
// discarded: its pixels keep Index == -1 and it occupies no slot.
func compilePassComponents(grid *Grid, pixels *matrix[CompiledPixel]) []*compilerComponent {
	w, h := grid.Width(), grid.Height()
	visited := newMatrix[[2]bool](w, h)

	type seed struct {
		p Point
		d uint8
	}

	var components []*compilerComponent

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for d := uint8(0); d < 2; d++ {
				p := Point{x, y}
				if visited.at(p)[d] {
					continue
				}
				if !isFloodfillable(grid.At(p)) {
					continue
				}

				comp := &compilerComponent{}
				var visitedPixels []seed

				mark := func(p Point, d uint8) {
					v := visited.at(p)
					v[d] = true
					visited.set(p, v)
				}
				mark(p, d)
				stack := []seed{{p, d}}

				for len(stack) > 0 {
					cur := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					visitedPixels = append(visitedPixels, cur)

					e := grid.At(cur.p)
					if isUseful(e) {
						comp.useful = true
					}
					for _, n := range grid.orthogonalNeighbors(cur.p) {
						if isRelay(grid.At(n)) {
							comp.useful = true
						}
					}

					if e.Kind != InsulatedWire {
						od := 1 - cur.d
						if !visited.at(cur.p)[od] {
							mark(cur.p, od)
							stack = append(stack, seed{cur.p, od})
						}
					}

					var deltas [2]Point
					if cur.d == 0 {
						deltas = [2]Point{{cur.p.X + 1, cur.p.Y}, {cur.p.X - 1, cur.p.Y}}
					} else {
						deltas = [2]Point{{cur.p.X, cur.p.Y + 1}, {cur.p.X, cur.p.Y - 1}}
					}
					for _, np := range deltas {
						if !grid.Contains(np) {
							continue
						}
						ne := grid.At(np)
						if !isFloodfillable(ne) {
							continue
						}
						if (isSignal(e) && isSignalReceiver(ne)) || (isSignalReceiver(e) && isSignal(ne)) {
							continue
						}
						if visited.at(np)[cur.d] {
							continue
						}
						mark(np, cur.d)
						stack = append(stack, seed{np, cur.d})
					}
				}

				if comp.useful {
					idx := int32(len(components))
					components = append(components, comp)
					for _, vp := range visitedPixels {
						cp := pixels.at(vp.p)
						cp.Index[vp.d] = idx
						pixels.set(vp.p, cp)
					}
				}
			}
		}
	}

	return components
}

// compilePassSourcesAndGates is pass 3: one SourceStatic per Source
// pixel, one GateStatic (bucketed by kind and fan-in) per LogicGate
// pixel, gathering inputs from orthogonally adjacent Signal pixels.
func compilePassSourcesAndGates(grid *Grid, pixels *matrix[CompiledPixel], static *StaticData) {
	for y := 0; y < grid.Height(); y++ {
		for x := 0; x < grid.Width(); x++ {
			p := Point{x, y}
			e := grid.At(p)
			switch e.Kind {
			case SourceEl:
				out := pixels.at(p).Index[0]
				if out >= 0 {
					static.Sources = append(static.Sources, SourceStatic{OutputComponent: out})
				}
			case LogicGateEl:
				var inputs []int32
				for _, n := range grid.orthogonalNeighbors(p) {
					if isSignal(grid.At(n)) {
						inputs = append(inputs, pixels.at(n).Index[0])
					}
				}
				out := pixels.at(p).Index[0]
				if out < 0 {
					continue
				}
				fanIn := len(inputs)
				static.Gates[e.Gate][fanIn] = append(static.Gates[e.Gate][fanIn], GateStatic{
					InputComponents: inputs,
					OutputComponent: out,
				})
			}
		}
	}
}

// compilePassRelays is pass 4, split into allocation and wiring. It
// first assigns every relay pixel a flat RelayPixelStatic slot in scan
// order (recording the slot in pixels[p].Index[0], used later both by
// LogicLevelAt and by this same pass), then walks relays again to
// gather inputs, adjacent components (reciprocally recording this
// relay on the component's adjRelayPixels list), and the synthesized
// component linking two orthogonally adjacent relay pixels directly —
// created once per ordered pair, gated by a visited marker set after a
// relay pixel's own wiring is complete.
func compilePassRelays(grid *Grid, pixels *matrix[CompiledPixel], static *StaticData, components []*compilerComponent) []*compilerComponent {
	w, h := grid.Width(), grid.Height()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := Point{x, y}
			if grid.At(p).Kind != RelayEl {
				continue
			}
			idx := int32(len(static.RelayPixels))
			static.RelayPixels = append(static.RelayPixels, RelayPixelStatic{})
			cp := pixels.at(p)
			cp.Index[0] = idx
			pixels.set(p, cp)
		}
	}

	visited := newMatrix[bool](w, h)

	addComponentAdj := func(relayIdx int32, compIdx int32) {
		rp := &static.RelayPixels[relayIdx]
		if rp.NumAdjComponents < 4 {
			rp.AdjComponents[rp.NumAdjComponents] = compIdx
			rp.NumAdjComponents++
		}
		if int(compIdx) < len(components) {
			components[compIdx].adjRelayPixels = append(components[compIdx].adjRelayPixels, relayIdx)
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := Point{x, y}
			e := grid.At(p)
			if e.Kind != RelayEl {
				continue
			}
			relayIdx := pixels.at(p).Index[0]

			var inputs []int32
			for _, n := range grid.orthogonalNeighbors(p) {
				if isSignal(grid.At(n)) {
					inputs = append(inputs, pixels.at(n).Index[0])
				}
			}

			for _, n := range grid.orthogonalNeighbors(p) {
				ne := grid.At(n)
				switch {
				case ne.Kind == RelayEl:
					if visited.at(n) {
						continue
					}
					rnIdx := pixels.at(n).Index[0]
					synthIdx := int32(len(components))
					components = append(components, &compilerComponent{
						useful:         true,
						adjRelayPixels: []int32{relayIdx, rnIdx},
					})
					addToRelayAdj := func(ri int32) {
						rp := &static.RelayPixels[ri]
						if rp.NumAdjComponents < 4 {
							rp.AdjComponents[rp.NumAdjComponents] = synthIdx
							rp.NumAdjComponents++
						}
					}
					addToRelayAdj(relayIdx)
					addToRelayAdj(rnIdx)
				case isFloodfillable(ne) && !isSignal(ne):
					dir := uint8(0)
					if n.X == p.X {
						dir = 1
					}
					compIdx := pixels.at(n).Index[dir]
					if compIdx >= 0 {
						addComponentAdj(relayIdx, compIdx)
					}
				}
			}

			visited.set(p, true)

			fanIn := len(inputs)
			static.Relays[e.RelayKind][fanIn] = append(static.Relays[e.RelayKind][fanIn], RelayStatic{
				InputComponents:  inputs,
				OutputRelayPixel: relayIdx,
			})
		}
	}

	return components
}

// compilePassCommunicators is pass 5: for each communicator kind in a
// fixed order (Screen, FileInput, FileOutput), flood-fills same-kind
// orthogonally-connected regions, elects each region's bound
// Communicator by majority vote among the canvas objects already
// touching it (ties go to the first object encountered in scan order),
// allocates a fresh Communicator for any region with no winner, and
// assigns each the next sequential communicatorIndex. Regions are
// processed, and communicators allocated, strictly in row-major
// discovery order so recompiling an unchanged canvas reproduces
// identical indices.
func compilePassCommunicators(grid *Grid, pixels *matrix[CompiledPixel], static *StaticData) {
	w, h := grid.Width(), grid.Height()
	kinds := [numCommKinds]CommKind{CommScreen, CommFileInput, CommFileOutput}

	var baseOffset int32

	for _, kind := range kinds {
		regionOf := newMatrix[int32](w, h)
		for i := range regionOf.cells {
			regionOf.cells[i] = -1
		}
		visited := newMatrix[bool](w, h)

		var regions [][]Point
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				p := Point{x, y}
				e := grid.At(p)
				if e.Kind != CommunicatorEl || e.CommKind != kind || visited.at(p) {
					continue
				}
				regionIdx := int32(len(regions))
				var region []Point
				stack := []Point{p}
				visited.set(p, true)
				for len(stack) > 0 {
					cur := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					region = append(region, cur)
					regionOf.set(cur, regionIdx)
					for _, n := range grid.orthogonalNeighbors(cur) {
						ne := grid.At(n)
						if ne.Kind == CommunicatorEl && ne.CommKind == kind && !visited.at(n) {
							visited.set(n, true)
							stack = append(stack, n)
						}
					}
				}
				regions = append(regions, region)
			}
		}

		var objOrder []Communicator
		objIndex := make(map[Communicator]int)
		votes := make(map[int]map[int32]int)

		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				p := Point{x, y}
				regionIdx := regionOf.at(p)
				if regionIdx < 0 {
					continue
				}
				obj := grid.At(p).Communicator
				if obj == nil {
					continue
				}
				idx, ok := objIndex[obj]
				if !ok {
					idx = len(objOrder)
					objIndex[obj] = idx
					objOrder = append(objOrder, obj)
					votes[idx] = make(map[int32]int)
				}
				votes[idx][regionIdx]++
			}
		}

		homeRegion := make([]int32, len(objOrder))
		for i := range objOrder {
			var best int32 = -1
			bestCount := -1
			for r := int32(0); r < int32(len(regions)); r++ {
				c := votes[i][r]
				if c > bestCount {
					bestCount = c
					best = r
				}
			}
			homeRegion[i] = best
		}

		type winner struct {
			obj   Communicator
			count int
		}
		regionWinner := make([]winner, len(regions))
		for i := range regionWinner {
			regionWinner[i].count = -1
		}
		for i, obj := range objOrder {
			home := homeRegion[i]
			if home < 0 {
				continue
			}
			cnt := votes[i][home]
			if cnt > regionWinner[home].count {
				regionWinner[home] = winner{obj: obj, count: cnt}
			}
		}

		if kind == CommScreen {
			static.ScreenCommunicatorStart = baseOffset
		}

		for regionIdx, region := range regions {
			obj := regionWinner[regionIdx].obj
			if obj == nil {
				obj = newCommunicatorForKind(kind)
			}
			commIndex := baseOffset + int32(regionIdx)
			obj.Refresh()
			obj.SetIndex(commIndex)

			var inputs []int32
			outputComponent := pixels.at(region[0]).Index[0]
			for _, p := range region {
				e := grid.At(p)
				e.Communicator = obj
				grid.Set(p, e)
				for _, n := range grid.orthogonalNeighbors(p) {
					if isSignal(grid.At(n)) {
						inputs = append(inputs, pixels.at(n).Index[0])
					}
				}
			}
			inputs = dedupSorted(inputs)

			static.Communicators = append(static.Communicators, CommunicatorStatic{
				InputComponents: inputs,
				OutputComponent: outputComponent,
				Comm:            obj,
			})
		}

		if kind == CommScreen {
			static.ScreenCommunicatorEnd = baseOffset + int32(len(regions))
		}

		baseOffset += int32(len(regions))
	}
}

func newCommunicatorForKind(kind CommKind) Communicator {
	switch kind {
	case CommScreen:
		return NewScreenCommunicator()
	case CommFileInput:
		return NewFileInputCommunicator()
	case CommFileOutput:
		return NewFileOutputCommunicator()
	default:
		panic("simcore: unknown communicator kind")
	}
}

func dedupSorted(in []int32) []int32 {
	if len(in) == 0 {
		return nil
	}
	sort.Slice(in, func(i, j int) bool { return in[i] < in[j] })
	out := in[:1]
	for _, v := range in[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// compilePackComponents is pass 6: flattens every component's
// adjRelayPixels list into StaticData.AdjComponentList, recording each
// component's window as a ComponentStatic.
func compilePackComponents(static *StaticData, components []*compilerComponent) {
	static.Components = make([]ComponentStatic, len(components))
	for i, c := range components {
		begin := int32(len(static.AdjComponentList))
		static.AdjComponentList = append(static.AdjComponentList, c.adjRelayPixels...)
		static.Components[i] = ComponentStatic{
			AdjRelayBegin: begin,
			AdjRelayEnd:   int32(len(static.AdjComponentList)),
		}
	}
}

// compileInitialDynamicData is pass 7: builds an all-false DynamicData
// and applies every source plus every pixel's persisted display state
// (LogicGate's GateLevel, Relay's Conductive, CommunicatorElement's
// TransmitState) before the caller flood-fills it.
func compileInitialDynamicData(grid *Grid, pixels *matrix[CompiledPixel], static *StaticData) *DynamicData {
	dyn := newDynamicData(static)

	for _, s := range static.Sources {
		dyn.ComponentLogicLevels[s.OutputComponent] = true
	}

	for y := 0; y < grid.Height(); y++ {
		for x := 0; x < grid.Width(); x++ {
			p := Point{x, y}
			e := grid.At(p)
			cp := pixels.at(p)
			switch e.Kind {
			case LogicGateEl:
				if e.GateLevel && cp.Index[0] >= 0 {
					dyn.ComponentLogicLevels[cp.Index[0]] = true
				}
			case RelayEl:
				if e.Conductive && cp.Index[0] >= 0 {
					dyn.RelayPixelIsConductive[cp.Index[0]] = true
				}
			case CommunicatorEl:
				if e.TransmitState && e.Communicator != nil {
					dyn.CommunicatorTransmitStates[e.Communicator.Index()] = true
				}
			}
		}
	}

	return dyn
}

// snapshotInto is pass 8: writes GateLevel, Conductive and
// TransmitState back onto every LogicGate/Relay/CommunicatorElement
// pixel from dyn. Bare wire, Signal and Source pixels carry no display
// field of their own; a renderer recovers their glow with LogicLevelAt.
func snapshotInto(grid *Grid, static *StaticData, dyn *DynamicData) {
	for y := 0; y < grid.Height(); y++ {
		for x := 0; x < grid.Width(); x++ {
			p := Point{x, y}
			e := grid.At(p)
			switch e.Kind {
			case LogicGateEl:
				e.GateLevel = LogicLevelAt(static, dyn, p)
				grid.Set(p, e)
			case RelayEl:
				cp := static.pixels.at(p)
				if cp.Index[0] >= 0 {
					e.Conductive = dyn.RelayPixelIsConductive[cp.Index[0]]
					grid.Set(p, e)
				}
			case CommunicatorEl:
				if e.Communicator != nil {
					e.TransmitState = dyn.CommunicatorTransmitStates[e.Communicator.Index()]
					grid.Set(p, e)
				}
			}
		}
	}
}

// LogicLevelAt reports the displayed logic level of the pixel at p,
// mirroring the source's DisplayedPixel::logicLevel dispatch: Component
// and Communicator pixels show the OR of both direction-partitioned
// component levels (the two differ only at an InsulatedWire crossing);
// Relay pixels show their own relay pixel level; Empty pixels are off.
func LogicLevelAt(static *StaticData, dyn *DynamicData, p Point) bool {
	return logicLevelFromPixel(dyn, static.pixels.at(p))
}

func logicLevelFromPixel(dyn *DynamicData, cp CompiledPixel) bool {
	switch cp.Type {
	case PixelComponent, PixelCommunicator:
		var level bool
		if cp.Index[0] >= 0 {
			level = level || dyn.ComponentLogicLevels[cp.Index[0]]
		}
		if cp.Index[1] >= 0 {
			level = level || dyn.ComponentLogicLevels[cp.Index[1]]
		}
		return level
	case PixelRelay:
		if cp.Index[0] >= 0 {
			return dyn.RelayPixelLogicLevels[cp.Index[0]]
		}
		return false
	default:
		return false
	}
}
