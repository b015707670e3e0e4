package gfx

// RetirementQueue holds work that must wait until the GPU can no longer be
// using a resource, keyed by the frame number that last used it.
type RetirementQueue struct {
	entries []retiredEntry
}

type retiredEntry struct {
	frame uint64
	fn    func()
}

// Push schedules fn to run once frame has completed on the GPU.
func (q *RetirementQueue) Push(frame uint64, fn func()) {
	q.entries = append(q.entries, retiredEntry{frame: frame, fn: fn})
}

// Drain runs, in push order, every entry whose frame is <= completed.
// It returns the number of entries run. Entries pushed by a running entry
// are kept for a later drain.
func (q *RetirementQueue) Drain(completed uint64) int {
	entries := q.entries
	q.entries = nil

	n := 0
	for _, e := range entries {
		if e.frame <= completed {
			e.fn()
			n++
			continue
		}
		q.entries = append(q.entries, e)
	}
	return n
}

// Flush runs everything regardless of frame. Only call it after the device
// is idle.
func (q *RetirementQueue) Flush() {
	entries := q.entries
	q.entries = nil
	for _, e := range entries {
		e.fn()
	}
}

func (q *RetirementQueue) Len() int {
	return len(q.entries)
}
