package strace

import "container/heap"

// Window is the reorder window: an ordered buffer of scanned Lines, bounded
// at a fixed size. Ties within a timestamp are broken by arrival order (see
// DESIGN.md for why that's the chosen semantics).
type Window struct {
	size  int
	heap  windowHeap
	arriv int
}

// entry wraps a buffered Line with the order it was pushed in, so the
// window can tie-break same-timestamp entries by arrival.
type entry struct {
	line    Line
	arrival int
}

func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	w := &Window{size: size}
	heap.Init(&w.heap)
	return w
}

// Push adds a line to the window. If the window now holds more than size
// entries, the minimum-timestamp entry is popped and returned for release;
// otherwise ok is false and nothing is released yet.
func (w *Window) Push(line Line) (Line, bool) {
	heap.Push(&w.heap, entry{line: line, arrival: w.arriv})
	w.arriv++
	if w.heap.Len() > w.size {
		e := heap.Pop(&w.heap).(entry)
		return e.line, true
	}
	return Line{}, false
}

// Drain releases all remaining lines in ascending timestamp order; call at
// end of input.
func (w *Window) Drain() []Line {
	out := make([]Line, 0, w.heap.Len())
	for w.heap.Len() > 0 {
		out = append(out, heap.Pop(&w.heap).(entry).line)
	}
	return out
}

func (w *Window) Len() int { return w.heap.Len() }

type windowHeap []entry

func (h windowHeap) Len() int { return len(h) }
func (h windowHeap) Less(i, j int) bool {
	if h[i].line.Timestamp != h[j].line.Timestamp {
		return h[i].line.Timestamp < h[j].line.Timestamp
	}
	return h[i].arrival < h[j].arrival
}
func (h windowHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *windowHeap) Push(x interface{}) {
	*h = append(*h, x.(entry))
}
func (h *windowHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
