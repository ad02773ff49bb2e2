package scheduler

import (
	"container/heap"

	"github.com/xvierd/timeline-cli/internal/domain"
)

// eventHeap implements container/heap.Interface for ScheduledEvent,
// earliest first with advances ahead of refreshes at the same instant.
type eventHeap []domain.ScheduledEvent

func (h eventHeap) Len() int           { return len(h) }
func (h eventHeap) Less(i, j int) bool { return h[i].Before(h[j]) }
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(domain.ScheduledEvent))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// heapPush adds ev, replacing any event with the same key.
func heapPush(h *eventHeap, ev domain.ScheduledEvent) {
	heapRemoveByKey(h, ev.Key())
	heap.Push(h, ev)
}

// heapPop removes and returns the earliest event. Panics if the heap is empty.
func heapPop(h *eventHeap) domain.ScheduledEvent {
	return heap.Pop(h).(domain.ScheduledEvent)
}

// heapRemoveByKey removes the event with the given key.
func heapRemoveByKey(h *eventHeap, key string) bool {
	for i, e := range *h {
		if e.Key() == key {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}

// heapRemoveByOwner removes every event of ownerID and returns how many.
func heapRemoveByOwner(h *eventHeap, ownerID string) int {
	kept := (*h)[:0]
	removed := 0
	for _, e := range *h {
		if e.OwnerID == ownerID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	*h = kept
	if removed > 0 {
		heap.Init(h)
	}
	return removed
}

// heapReset replaces the contents with events.
func heapReset(h *eventHeap, events []domain.ScheduledEvent) {
	*h = append((*h)[:0], events...)
	heap.Init(h)
}
