package backend

import "testing"

type countingResource struct {
	released int
}

func (c *countingResource) Release() { c.released++ }

func TestFreeQueueCollectByGeneration(t *testing.T) {
	q := NewFreeQueue()
	a, b, c := &countingResource{}, &countingResource{}, &countingResource{}
	q.Enqueue(a, 1)
	q.Enqueue(b, 3)
	q.Enqueue(c, 2)
	q.Enqueue(nil, 0)

	if got := q.Collect(0); got != 0 {
		t.Fatalf("Collect(0) = %d, want 0", got)
	}
	if got := q.Collect(2); got != 2 {
		t.Fatalf("Collect(2) = %d, want 2", got)
	}
	if a.released != 1 || c.released != 1 || b.released != 0 {
		t.Errorf("released = %d,%d,%d, want 1,0,1", a.released, b.released, c.released)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
	if got := q.Flush(); got != 1 {
		t.Errorf("Flush() = %d, want 1", got)
	}
	if b.released != 1 {
		t.Errorf("b released %d times, want 1", b.released)
	}
}

func TestGenerationTag(t *testing.T) {
	g := Generations{Submitted: 4}
	if got := g.Tag(); got != 4 {
		t.Errorf("Tag() idle = %d, want 4", got)
	}
	g.Recording = true
	if got := g.Tag(); got != 5 {
		t.Errorf("Tag() recording = %d, want 5", got)
	}
}
