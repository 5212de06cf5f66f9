package simcore

import "testing"

func TestGridBounds(t *testing.T) {
	g := NewGrid(3, 2)
	if g.Width() != 3 || g.Height() != 2 {
		t.Fatalf("got %dx%d, want 3x2", g.Width(), g.Height())
	}
	if !g.Contains(Point{2, 1}) {
		t.Fatalf("expected (2,1) to be in bounds")
	}
	if g.Contains(Point{3, 0}) || g.Contains(Point{0, 2}) || g.Contains(Point{-1, 0}) {
		t.Fatalf("out-of-bounds points reported as contained")
	}
}

func TestGridSetAt(t *testing.T) {
	g := NewGrid(2, 2)
	g.Set(Point{1, 1}, Element{Kind: SourceEl})
	if got := g.At(Point{1, 1}); got.Kind != SourceEl {
		t.Fatalf("got kind %v, want SourceEl", got.Kind)
	}
	if got := g.At(Point{0, 0}); got.Kind != Empty {
		t.Fatalf("untouched cell got kind %v, want Empty", got.Kind)
	}
}

func TestGridAtPanicsOutOfBounds(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on out-of-bounds At")
		}
	}()
	g := NewGrid(2, 2)
	g.At(Point{5, 5})
}

func TestOrthogonalNeighborsClampsToBounds(t *testing.T) {
	g := NewGrid(2, 2)
	n := g.orthogonalNeighbors(Point{0, 0})
	if len(n) != 2 {
		t.Fatalf("got %d neighbors for a corner, want 2", len(n))
	}
}
