// Command circuitsim parses a small textual canvas description, compiles
// it with the simcore simulation core, runs it at a configurable period
// while printing a bounded number of periodic snapshots, then stops it.
// The number of steps the simulator runs in that time is not fixed. It
// exists purely to exercise the core's control surface; the core library
// remains fully usable without this command.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/circuitsandbox/simcore"
)

func usage() {
	fmt.Fprintf(os.Stderr, "circuitsim: run a Circuit Sandbox canvas through the simulation core\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n  %s -canvas path/to/canvas.txt [-steps N] [-period 10ms]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Canvas format: one row per line, one character per cell:\n")
	fmt.Fprintf(os.Stderr, "  . empty   - conductive wire   = insulated wire   s signal\n")
	fmt.Fprintf(os.Stderr, "  S source  a/o/n/r AND/OR/NAND/NOR gate (uppercase = initially on)\n")
	fmt.Fprintf(os.Stderr, "  p/P positive relay (off/on)   q/Q negative relay (off/on)\n")
	fmt.Fprintf(os.Stderr, "  c screen communicator   i file-input communicator   u file-output communicator\n\n")
	fmt.Fprintf(os.Stderr, "Examples:\n  %s -canvas examples/and-gate.txt -steps 4\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	canvasPath := flag.String("canvas", "", "path to a textual canvas description (required)")
	steps := flag.Int("steps", 1, "number of snapshots to print while the simulator runs (one per period, or one per millisecond when the period is 0); the number of steps run is not fixed")
	period := flag.Duration("period", 0, "target duration between steps (0 = as fast as possible)")
	flag.Parse()

	if *canvasPath == "" {
		usage()
		os.Exit(2)
	}

	grid, err := loadCanvas(*canvasPath)
	if err != nil {
		log.Fatalf("circuitsim: %v", err)
	}

	sim := simcore.NewSimulator()
	sim.Compile(grid)
	printSnapshot(grid, "compiled")

	if *steps <= 0 {
		return
	}

	sim.SetPeriod(*period)
	sim.Start()

	g := new(errgroup.Group)
	g.Go(func() error {
		interval := *period
		if interval <= 0 {
			interval = time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for n := 1; n <= *steps; n++ {
			<-ticker.C
			sim.TakeSnapshot(grid)
			printSnapshot(grid, fmt.Sprintf("tick %d", n))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("circuitsim: %v", err)
	}

	sim.Stop()
	sim.TakeSnapshot(grid)
	printSnapshot(grid, "final")
}

// printSnapshot renders grid's current display state to stdout,
// colorizing live (logic-high) cells when stdout is a terminal and
// falling back to plain ASCII markers otherwise.
func printSnapshot(grid *simcore.Grid, label string) {
	colored := term.IsTerminal(int(os.Stdout.Fd()))
	fmt.Printf("-- %s --\n", label)
	for y := 0; y < grid.Height(); y++ {
		for x := 0; x < grid.Width(); x++ {
			e := grid.At(simcore.Point{X: x, Y: y})
			ch := glyphFor(e)
			if colored && cellIsOn(e) {
				fmt.Printf("\x1b[32m%c\x1b[0m", ch)
			} else {
				fmt.Printf("%c", ch)
			}
		}
		fmt.Println()
	}
}

func cellIsOn(e simcore.Element) bool {
	switch e.Kind {
	case simcore.LogicGateEl:
		return e.GateLevel
	case simcore.RelayEl:
		return e.Conductive
	case simcore.CommunicatorEl:
		return e.TransmitState
	default:
		return false
	}
}

func glyphFor(e simcore.Element) byte {
	switch e.Kind {
	case simcore.Empty:
		return '.'
	case simcore.ConductiveWire:
		return '-'
	case simcore.InsulatedWire:
		return '='
	case simcore.SignalEl:
		return 's'
	case simcore.SourceEl:
		return 'S'
	case simcore.LogicGateEl:
		switch e.Gate {
		case simcore.GateAnd:
			return 'a'
		case simcore.GateOr:
			return 'o'
		case simcore.GateNand:
			return 'n'
		default:
			return 'r'
		}
	case simcore.RelayEl:
		if e.RelayKind == simcore.RelayPositive {
			return 'p'
		}
		return 'q'
	case simcore.CommunicatorEl:
		switch e.CommKind {
		case simcore.CommScreen:
			return 'c'
		case simcore.CommFileInput:
			return 'i'
		default:
			return 'u'
		}
	default:
		return '?'
	}
}

// loadCanvas reads a textual canvas description: one row per line, one
// byte per cell, matching the legend printed by usage(). Lines are
// right-padded with Empty cells so ragged input still produces a
// rectangular Grid.
func loadCanvas(path string) (*simcore.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open canvas: %w", err)
	}
	defer f.Close()

	var rows []string
	width := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		rows = append(rows, line)
		if len(line) > width {
			width = len(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read canvas: %w", err)
	}
	if len(rows) == 0 || width == 0 {
		return nil, fmt.Errorf("canvas %q is empty", path)
	}

	grid := simcore.NewGrid(width, len(rows))
	for y, row := range rows {
		for x := 0; x < width; x++ {
			ch := byte('.')
			if x < len(row) {
				ch = row[x]
			}
			grid.Set(simcore.Point{X: x, Y: y}, elementFor(ch))
		}
	}
	return grid, nil
}

func elementFor(ch byte) simcore.Element {
	switch ch {
	case '.':
		return simcore.Element{Kind: simcore.Empty}
	case '-':
		return simcore.Element{Kind: simcore.ConductiveWire}
	case '=':
		return simcore.Element{Kind: simcore.InsulatedWire}
	case 's':
		return simcore.Element{Kind: simcore.SignalEl}
	case 'S':
		return simcore.Element{Kind: simcore.SourceEl}
	case 'a':
		return simcore.Element{Kind: simcore.LogicGateEl, Gate: simcore.GateAnd}
	case 'A':
		return simcore.Element{Kind: simcore.LogicGateEl, Gate: simcore.GateAnd, GateLevel: true}
	case 'o':
		return simcore.Element{Kind: simcore.LogicGateEl, Gate: simcore.GateOr}
	case 'O':
		return simcore.Element{Kind: simcore.LogicGateEl, Gate: simcore.GateOr, GateLevel: true}
	case 'n':
		return simcore.Element{Kind: simcore.LogicGateEl, Gate: simcore.GateNand}
	case 'N':
		return simcore.Element{Kind: simcore.LogicGateEl, Gate: simcore.GateNand, GateLevel: true}
	case 'r':
		return simcore.Element{Kind: simcore.LogicGateEl, Gate: simcore.GateNor}
	case 'R':
		return simcore.Element{Kind: simcore.LogicGateEl, Gate: simcore.GateNor, GateLevel: true}
	case 'p':
		return simcore.Element{Kind: simcore.RelayEl, RelayKind: simcore.RelayPositive}
	case 'P':
		return simcore.Element{Kind: simcore.RelayEl, RelayKind: simcore.RelayPositive, Conductive: true}
	case 'q':
		return simcore.Element{Kind: simcore.RelayEl, RelayKind: simcore.RelayNegative}
	case 'Q':
		return simcore.Element{Kind: simcore.RelayEl, RelayKind: simcore.RelayNegative, Conductive: true}
	case 'c':
		return simcore.Element{Kind: simcore.CommunicatorEl, CommKind: simcore.CommScreen}
	case 'i':
		return simcore.Element{Kind: simcore.CommunicatorEl, CommKind: simcore.CommFileInput}
	case 'u':
		return simcore.Element{Kind: simcore.CommunicatorEl, CommKind: simcore.CommFileOutput}
	default:
		return simcore.Element{Kind: simcore.Empty}
	}
}
