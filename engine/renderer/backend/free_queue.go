package backend

// freeEntry is a resource waiting for its generation to complete.
type freeEntry struct {
	res Resource
	gen uint64
}

// FreeQueue defers the release of GPU resources until the frame generation that last referenced them
// has completed on the device. A generation is the number of frames submitted so far.
// FreeQueue is not goroutine-safe.
type FreeQueue struct {
	entries []freeEntry
}

// NewFreeQueue creates an empty FreeQueue.
func NewFreeQueue() *FreeQueue {
	return &FreeQueue{}
}

// Enqueue schedules r for release once generation gen has completed. Nil resources are ignored.
//
// Parameters:
//   - r: the resource to release
//   - gen: the last generation that may reference r
func (q *FreeQueue) Enqueue(r Resource, gen uint64) {
	if r == nil {
		return
	}
	q.entries = append(q.entries, freeEntry{res: r, gen: gen})
}

// Collect releases every resource whose generation is at most completed, in enqueue order.
//
// Parameters:
//   - completed: the newest generation known to have finished on the device
//
// Returns:
//   - int: the number of resources released
func (q *FreeQueue) Collect(completed uint64) int {
	kept := q.entries[:0]
	released := 0
	for _, e := range q.entries {
		if e.gen <= completed {
			e.res.Release()
			released++
			continue
		}
		kept = append(kept, e)
	}
	clear(q.entries[len(kept):])
	q.entries = kept
	return released
}

// Flush releases every queued resource regardless of generation.
//
// Returns:
//   - int: the number of resources released
func (q *FreeQueue) Flush() int {
	n := len(q.entries)
	for _, e := range q.entries {
		e.res.Release()
	}
	q.entries = nil
	return n
}

// Len returns the number of resources waiting for release.
func (q *FreeQueue) Len() int {
	return len(q.entries)
}

// Generations tracks the submitted and completed frame counters of a backend.
type Generations struct {
	// Submitted is the number of frames submitted to the device.
	Submitted uint64
	// Completed is the newest generation known to have finished on the device.
	Completed uint64
	// Recording is set between BeginFrame and EndFrame.
	Recording bool
}

// Tag returns the generation a resource released now must wait for: the frame being recorded if any,
// otherwise the last submitted one.
func (g *Generations) Tag() uint64 {
	if g.Recording {
		return g.Submitted + 1
	}
	return g.Submitted
}
