// Package queue provides the bounded priority queue used by exact k-NN scans.
package queue

import "container/heap"

// Compile time check to ensure PriorityQueue satisfies the heap interface.
var _ heap.Interface = (*PriorityQueue)(nil)

// Item is a queued vector ID with its distance. Smaller distances are better.
type Item struct {
	ID       int64
	Distance float32
}

// PriorityQueue implements heap.Interface over value items.
type PriorityQueue struct {
	isMaxHeap bool
	items     []Item
}

// NewMin initializes a new priority queue with minimum priority.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{items: make([]Item, 0, capacity)}
}

// NewMax initializes a new priority queue with maximum priority.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{isMaxHeap: true, items: make([]Item, 0, capacity)}
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// Less reports whether the element with index i should sort before the element with index j.
// Ties are broken by ID so results are deterministic.
func (pq *PriorityQueue) Less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if a.Distance == b.Distance {
		if pq.isMaxHeap {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	}
	if pq.isMaxHeap {
		return a.Distance > b.Distance
	}
	return a.Distance < b.Distance
}

// Swap swaps the elements with indexes i and j.
func (pq *PriorityQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
}

// Push adds x to the priority queue. Use heap.Push.
func (pq *PriorityQueue) Push(x any) {
	pq.items = append(pq.items, x.(Item))
}

// Pop removes and returns the last element. Use heap.Pop.
func (pq *PriorityQueue) Pop() any {
	n := len(pq.items)
	if n == 0 {
		return Item{}
	}
	item := pq.items[n-1]
	pq.items = pq.items[:n-1]
	return item
}

// Top returns the top element without removing it.
func (pq *PriorityQueue) Top() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// Reset clears the priority queue for reuse.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}

// TopK keeps the k items with the smallest distances seen so far.
type TopK struct {
	k  int
	pq *PriorityQueue
}

// NewTopK returns a collector for the k best items. k must be positive.
func NewTopK(k int) *TopK {
	return &TopK{k: k, pq: NewMax(k)}
}

// Offer considers an item and reports whether it was kept.
func (t *TopK) Offer(item Item) bool {
	if t.pq.Len() < t.k {
		heap.Push(t.pq, item)
		return true
	}
	worst, _ := t.pq.Top()
	if item.Distance > worst.Distance || (item.Distance == worst.Distance && item.ID >= worst.ID) {
		return false
	}
	t.pq.items[0] = item
	heap.Fix(t.pq, 0)
	return true
}

// Len returns the number of kept items.
func (t *TopK) Len() int { return t.pq.Len() }

// Drain returns the kept items ordered best first and empties the collector.
func (t *TopK) Drain() []Item {
	out := make([]Item, t.pq.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(t.pq).(Item)
	}
	return out
}
