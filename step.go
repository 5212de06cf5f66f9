package simcore

// calculate computes the next DynamicData from old in the fixed
// evaluation order: sources, logic gates, relays, UI communicator
// events, communicators, flood fill.
func calculate(static *StaticData, old *DynamicData, events *EventQueue[ScreenInputEvent]) *DynamicData {
	next := newDynamicData(static)

	for _, s := range static.Sources {
		next.ComponentLogicLevels[s.OutputComponent] = true
	}

	evaluateGates(static, old, next)
	evaluateRelays(static, old, next)

	pullCommunicatorEvents(static, events)
	evaluateCommunicators(static, old, next)

	floodFill(static, next)

	return next
}

// evaluateGates runs every gate kind over every fan-in bucket, combining
// multiple writers to the same output component with OR-into-output so
// writes commute regardless of evaluation order within a bucket.
func evaluateGates(static *StaticData, old, next *DynamicData) {
	for kind := GateKind(0); kind < numGateKinds; kind++ {
		for fanIn, bucket := range static.Gates[kind] {
			for _, g := range bucket {
				var out bool
				switch kind {
				case GateAnd:
					out = true
					for _, in := range g.InputComponents {
						out = out && old.ComponentLogicLevels[in]
					}
				case GateOr:
					out = false
					for _, in := range g.InputComponents {
						out = out || old.ComponentLogicLevels[in]
					}
				case GateNand:
					out = false
					for _, in := range g.InputComponents {
						out = out || !old.ComponentLogicLevels[in]
					}
				case GateNor:
					out = true
					for _, in := range g.InputComponents {
						out = out && !old.ComponentLogicLevels[in]
					}
				}
				_ = fanIn
				next.ComponentLogicLevels[g.OutputComponent] = next.ComponentLogicLevels[g.OutputComponent] || out
			}
		}
	}
}

// evaluateRelays sets each relay's output relay pixel conductive iff its
// polarity condition holds over its old inputs: Positive conducts when
// any input is high, Negative conducts when any input is low.
func evaluateRelays(static *StaticData, old, next *DynamicData) {
	for polarity := RelayPolarity(0); polarity < numRelayPolarities; polarity++ {
		for _, bucket := range static.Relays[polarity] {
			for _, r := range bucket {
				var conducts bool
				switch polarity {
				case RelayPositive:
					for _, in := range r.InputComponents {
						if old.ComponentLogicLevels[in] {
							conducts = true
							break
						}
					}
				case RelayNegative:
					for _, in := range r.InputComponents {
						if !old.ComponentLogicLevels[in] {
							conducts = true
							break
						}
					}
				}
				if conducts {
					next.RelayPixelIsConductive[r.OutputRelayPixel] = true
				}
			}
		}
	}
}

// pullCommunicatorEvents drains the caller's screen-input event queue,
// dispatching each pending level change to the corresponding screen
// communicator's InsertEvent.
func pullCommunicatorEvents(static *StaticData, events *EventQueue[ScreenInputEvent]) {
	if events == nil {
		return
	}
	for {
		ev, ok := events.Pop()
		if !ok {
			return
		}
		if ev.CommunicatorIndex < 0 || int(ev.CommunicatorIndex) >= len(static.Communicators) {
			continue
		}
		if sc, ok := static.Communicators[ev.CommunicatorIndex].Comm.(*ScreenCommunicator); ok {
			sc.InsertEvent(ev.TurnOn)
		}
	}
}

// evaluateCommunicators ticks every communicator once: it computes the
// OR of its old input levels as the transmit bit, hands that to
// Transmit, records it as this step's transmit state, then ORs its
// Receive() bit into its output component.
func evaluateCommunicators(static *StaticData, old, next *DynamicData) {
	for i, c := range static.Communicators {
		var transmitOutput bool
		for _, in := range c.InputComponents {
			if old.ComponentLogicLevels[in] {
				transmitOutput = true
				break
			}
		}
		c.Comm.Transmit(transmitOutput)
		next.CommunicatorTransmitStates[i] = transmitOutput
		if c.Comm.Receive() {
			next.ComponentLogicLevels[c.OutputComponent] = true
		}
	}
}

// floodFill propagates "on" component levels through currently
// conductive relay pixels: every component already true is pushed onto
// a work stack (its bit cleared, to be re-asserted as it is visited),
// then propagation proceeds monotonically until the stack is empty. This
// produces the same result regardless of how many times it is applied
// to an already-filled DynamicData (idempotent).
func floodFill(static *StaticData, d *DynamicData) {
	type frame struct {
		isComponent bool
		index       int32
	}
	var stack []frame
	for i, on := range d.ComponentLogicLevels {
		if on {
			d.ComponentLogicLevels[i] = false
			stack = append(stack, frame{true, int32(i)})
		}
	}
	for i, on := range d.RelayPixelLogicLevels {
		if on {
			d.RelayPixelLogicLevels[i] = false
			stack = append(stack, frame{false, int32(i)})
		}
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.isComponent {
			if d.ComponentLogicLevels[top.index] {
				continue
			}
			d.ComponentLogicLevels[top.index] = true
			comp := static.Components[top.index]
			for _, ri := range static.AdjComponentList[comp.AdjRelayBegin:comp.AdjRelayEnd] {
				if d.RelayPixelIsConductive[ri] && !d.RelayPixelLogicLevels[ri] {
					stack = append(stack, frame{false, ri})
				}
			}
		} else {
			if d.RelayPixelLogicLevels[top.index] {
				continue
			}
			d.RelayPixelLogicLevels[top.index] = true
			rp := static.RelayPixels[top.index]
			for i := uint8(0); i < rp.NumAdjComponents; i++ {
				ci := rp.AdjComponents[i]
				if !d.ComponentLogicLevels[ci] {
					stack = append(stack, frame{true, ci})
				}
			}
		}
	}
}
