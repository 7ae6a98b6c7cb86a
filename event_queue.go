package conductor

import (
	"container/heap"
)

// eventQueue is the pending-event priority queue: highest priority first,
// FIFO among equal priorities (by push sequence number).
type eventQueue struct {
	items eventHeap
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	heap.Init(&q.items)
	return q
}

func (q *eventQueue) push(e *Event) {
	heap.Push(&q.items, e)
}

func (q *eventQueue) pop() *Event {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*Event)
}

func (q *eventQueue) len() int {
	return len(q.items)
}

type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
