package event

// Timed is implemented by anything with a delivery time that a Queue can
// order by.
type Timed interface {
	EventTime() float64
}

// Queue is a min-heap of events keyed by delivery time. Ordering between
// events with equal times is unspecified.
type Queue[T Timed] struct {
	items []T
}

// Len reports the number of queued events.
func (q *Queue[T]) Len() int { return len(q.items) }

// Push adds an event.
func (q *Queue[T]) Push(ev T) {
	q.items = append(q.items, ev)
	q.siftUp(len(q.items) - 1)
}

// TimeIfBefore returns the earliest queued delivery time if it is strictly
// before tUntil.
func (q *Queue[T]) TimeIfBefore(tUntil float64) (float64, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	t := q.items[0].EventTime()
	if t >= tUntil {
		return 0, false
	}
	return t, true
}

// PopIfBefore removes and returns the earliest event if its delivery time is
// strictly before tUntil.
func (q *Queue[T]) PopIfBefore(tUntil float64) (T, bool) {
	var zero T
	if len(q.items) == 0 || q.items[0].EventTime() >= tUntil {
		return zero, false
	}
	top := q.items[0]
	last := len(q.items) - 1
	q.items[0] = q.items[last]
	q.items[last] = zero
	q.items = q.items[:last]
	if last > 0 {
		q.siftDown(0)
	}
	return top, true
}

// Clear drops all queued events.
func (q *Queue[T]) Clear() {
	q.items = q.items[:0]
}

func (q *Queue[T]) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if q.items[p].EventTime() <= q.items[i].EventTime() {
			return
		}
		q.items[p], q.items[i] = q.items[i], q.items[p]
		i = p
	}
}

func (q *Queue[T]) siftDown(i int) {
	n := len(q.items)
	for {
		l, r := 2*i+1, 2*i+2
		min := i
		if l < n && q.items[l].EventTime() < q.items[min].EventTime() {
			min = l
		}
		if r < n && q.items[r].EventTime() < q.items[min].EventTime() {
			min = r
		}
		if min == i {
			return
		}
		q.items[i], q.items[min] = q.items[min], q.items[i]
		i = min
	}
}
