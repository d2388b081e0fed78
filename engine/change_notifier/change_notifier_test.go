package change_notifier

import (
	"errors"
	"testing"
)

func TestInvokeChangeOutsideAtomicFiresImmediately(t *testing.T) {
	fired := 0
	n := NewChangeNotifier("tex", func() { fired++ })

	n.InvokeChange()
	n.InvokeChange()

	if fired != 2 {
		t.Errorf("fired = %d, want 2", fired)
	}
}

func TestAtomicCoalescing(t *testing.T) {
	tests := []struct {
		name    string
		depth   int
		changes int
		want    int
	}{
		{"no changes", 1, 0, 0},
		{"single change", 1, 1, 1},
		{"many changes", 1, 5, 1},
		{"nested many changes", 3, 7, 1},
		{"nested no changes", 4, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fired := 0
			n := NewChangeNotifier("tex", func() { fired++ })

			for range tt.depth {
				n.BeginAtomic()
			}
			for range tt.changes {
				n.InvokeChange()
			}
			for i := 0; i < tt.depth; i++ {
				n.EndAtomic()
				if i < tt.depth-1 && fired != 0 {
					t.Fatalf("fired before outermost EndAtomic")
				}
			}

			if fired != tt.want {
				t.Errorf("fired = %d, want %d", fired, tt.want)
			}
			if n.Pending() {
				t.Errorf("Pending() = true after outermost EndAtomic")
			}
			if n.Depth() != 0 {
				t.Errorf("Depth() = %d, want 0", n.Depth())
			}
		})
	}
}

func TestEndAtomicUnbalancedPanics(t *testing.T) {
	n := NewChangeNotifier("palette", nil)

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrUnbalancedAtomic) {
			t.Fatalf("recover() = %v, want error wrapping ErrUnbalancedAtomic", r)
		}
	}()
	n.EndAtomic()
}

func TestSignalSubscribeUnsubscribe(t *testing.T) {
	var s Signal[int]
	var got []int

	unsubA := s.Subscribe(func(v int) { got = append(got, v) })
	s.Subscribe(func(v int) { got = append(got, v*10) })

	s.Emit(1)
	unsubA()
	unsubA()
	s.Emit(2)

	want := []int{1, 10, 20}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}
