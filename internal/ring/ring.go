// Package ring is a fixed-capacity overwrite-oldest buffer.
package ring

// Ring keeps the last Cap() pushed values. Offset 0 is always the newest.
type Ring[T any] struct {
	slots []T
	head  int // next slot to write
	count int
}

func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{slots: make([]T, capacity)}
}

// Push stores v, overwriting the oldest entry when full.
func (r *Ring[T]) Push(v T) {
	r.slots[r.head] = v
	r.head = (r.head + 1) % len(r.slots)
	if r.count < len(r.slots) {
		r.count++
	}
}

// Get returns the entry offset steps back from the newest.
func (r *Ring[T]) Get(offset int) (T, bool) {
	var zero T
	if offset < 0 || offset >= r.count {
		return zero, false
	}
	n := len(r.slots)
	return r.slots[(r.head-1-offset+n)%n], true
}

func (r *Ring[T]) Len() int  { return r.count }
func (r *Ring[T]) Cap() int  { return len(r.slots) }
func (r *Ring[T]) Head() int { return r.head }

// Slots returns a copy of the physical storage, oldest-slot order not implied.
func (r *Ring[T]) Slots() []T {
	out := make([]T, len(r.slots))
	copy(out, r.slots)
	return out
}

// Restore replaces the ring contents with a persisted physical layout.
// Out-of-range head/count values are clamped.
func (r *Ring[T]) Restore(head, count int, slots []T) {
	n := len(r.slots)
	var zero T
	for i := range r.slots {
		if i < len(slots) {
			r.slots[i] = slots[i]
		} else {
			r.slots[i] = zero
		}
	}
	if count < 0 {
		count = 0
	}
	if count > n {
		count = n
	}
	if head < 0 || head >= n {
		head = 0
	}
	r.head, r.count = head, count
}

// Reset empties the ring.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.slots {
		r.slots[i] = zero
	}
	r.head, r.count = 0, 0
}
