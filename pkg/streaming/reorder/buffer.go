package reorder

import (
	"container/heap"

	"github.com/vnykmshr/frameflow/pkg/scheduling/workerpool"
)

// InsertResult says what Insert did with a completion.
type InsertResult int

const (
	// Accepted means the completion was buffered.
	Accepted InsertResult = iota

	// Late means the sequence number was already emitted, skipped or
	// declared lost. The completion was discarded.
	Late

	// Duplicate means a completion with the same sequence number is already
	// buffered. The new one was discarded.
	Duplicate
)

// Buffer is a min-heap of completions keyed by sequence number, plus the next
// sequence number due for emission. It never holds two completions with the
// same sequence number, and every sequence number below Next has been popped
// or skipped exactly once.
//
// Buffer is not safe for concurrent use.
type Buffer struct {
	heap       completionHeap
	buffered   map[uint64]struct{}
	next       uint64
	maxPending int
}

// NewBuffer creates a buffer expecting sequence number 1 first. maxPending
// bounds Len; zero means unbounded.
func NewBuffer(maxPending int) *Buffer {
	return &Buffer{
		buffered:   make(map[uint64]struct{}),
		next:       1,
		maxPending: maxPending,
	}
}

// Next returns the sequence number due for emission.
func (b *Buffer) Next() uint64 {
	return b.next
}

// Len returns the number of buffered completions.
func (b *Buffer) Len() int {
	return len(b.heap)
}

// Min returns the smallest buffered sequence number.
func (b *Buffer) Min() (uint64, bool) {
	if len(b.heap) == 0 {
		return 0, false
	}
	return b.heap[0].Seq, true
}

// Insert buffers c unless it is late or a duplicate.
func (b *Buffer) Insert(c workerpool.Completion) InsertResult {
	if c.Seq < b.next {
		return Late
	}
	if _, ok := b.buffered[c.Seq]; ok {
		return Duplicate
	}
	b.buffered[c.Seq] = struct{}{}
	heap.Push(&b.heap, c)
	return Accepted
}

// PopReady removes and returns the completion for Next, advancing Next.
// ok is false when that completion has not arrived.
func (b *Buffer) PopReady() (workerpool.Completion, bool) {
	if len(b.heap) == 0 || b.heap[0].Seq != b.next {
		return workerpool.Completion{}, false
	}
	c := heap.Pop(&b.heap).(workerpool.Completion)
	delete(b.buffered, c.Seq)
	b.next++
	return c, true
}

// Overflowing reports whether the buffer holds more than maxPending entries.
func (b *Buffer) Overflowing() bool {
	return b.maxPending > 0 && len(b.heap) > b.maxPending
}

// SkipToMin declares every sequence number between Next and the buffer
// minimum lost, moves Next to the minimum and returns how many were skipped.
func (b *Buffer) SkipToMin() uint64 {
	lowest, ok := b.Min()
	if !ok || lowest <= b.next {
		return 0
	}
	gaps := lowest - b.next
	b.next = lowest
	return gaps
}

// completionHeap implements heap.Interface ordered by Seq.
type completionHeap []workerpool.Completion

func (h completionHeap) Len() int           { return len(h) }
func (h completionHeap) Less(i, j int) bool { return h[i].Seq < h[j].Seq }
func (h completionHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *completionHeap) Push(x any) {
	*h = append(*h, x.(workerpool.Completion))
}

func (h *completionHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = workerpool.Completion{}
	*h = old[:n-1]
	return c
}
