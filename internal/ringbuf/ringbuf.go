// Package ringbuf provides a fixed-capacity ring of float64 values that
// overwrites its oldest entry once full. The forecaster slides its working
// buffer through one.
package ringbuf

// Ring is a sliding window of the most recent Cap values.
// It is not safe for concurrent use.
type Ring struct {
	buf   []float64
	head  int // index of the oldest value
	count int
}

// New creates a ring holding at most capacity values. Minimum capacity is 1.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]float64, capacity)}
}

// FromSlice creates a ring sized to vals and filled with them, oldest first.
func FromSlice(vals []float64) *Ring {
	r := New(len(vals))
	for _, v := range vals {
		r.Push(v)
	}
	return r
}

// Push appends v, evicting the oldest value when the ring is full.
// It reports whether a value was evicted.
func (r *Ring) Push(v float64) bool {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = v
		r.count++
		return false
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	return true
}

// Len returns the number of values held.
func (r *Ring) Len() int { return r.count }

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// At returns the i-th value, 0 being the oldest.
func (r *Ring) At(i int) float64 {
	return r.buf[(r.head+i)%len(r.buf)]
}

// Tail returns a copy of the newest n values, oldest first. n is clamped to Len.
func (r *Ring) Tail(n int) []float64 {
	n = max(0, min(n, r.count))
	out := make([]float64, n)
	for i := range out {
		out[i] = r.At(r.count - n + i)
	}
	return out
}

// TailMean returns the mean of the newest n values (n clamped to Len),
// or 0 for an empty ring.
func (r *Ring) TailMean(n int) float64 {
	n = max(0, min(n, r.count))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := r.count - n; i < r.count; i++ {
		sum += r.At(i)
	}
	return sum / float64(n)
}

// Values returns a copy of every value, oldest first.
func (r *Ring) Values() []float64 { return r.Tail(r.count) }
