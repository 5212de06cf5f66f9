package simcore

import "testing"

func TestScreenCommunicatorFIFOOrder(t *testing.T) {
	s := NewScreenCommunicator()
	s.InsertEvent(true)
	s.InsertEvent(false)
	s.InsertEvent(true)
	want := []bool{true, false, true}
	for i, w := range want {
		if got := s.Receive(); got != w {
			t.Fatalf("Receive() #%d = %v, want %v", i, got, w)
		}
	}
	if !s.Receive() {
		t.Fatalf("Receive() past the queued events should hold the last delivered level")
	}
}

func TestScreenCommunicatorCapacityFive(t *testing.T) {
	s := NewScreenCommunicator()
	// The live bit plus up to 4 queued events; pushing a 5th overwrites
	// the newest queued slot rather than growing unbounded.
	for i := 0; i < 4; i++ {
		s.InsertEvent(true)
	}
	s.InsertEvent(true) // fifth insert, should not grow the register
	for i := 0; i < 4; i++ {
		if !s.Receive() {
			t.Fatalf("expected queued true at position %d", i)
		}
	}
}

func TestScreenCommunicatorRefreshClears(t *testing.T) {
	s := NewScreenCommunicator()
	s.InsertEvent(true)
	s.Refresh()
	if s.Receive() {
		t.Fatalf("Receive() after Refresh should be false")
	}
}

func TestScreenCommunicatorIndexRoundTrip(t *testing.T) {
	s := NewScreenCommunicator()
	s.SetIndex(7)
	if s.Index() != 7 {
		t.Fatalf("Index() = %d, want 7", s.Index())
	}
}
