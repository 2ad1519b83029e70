package ring

import (
	"fmt"

	"github.com/cwbudde/algo-vpg/dsp/core"
)

// Wrap reduces the logical index d into [0, length).
//
// Unlike the % operator, negative d wraps toward the end of the buffer
// instead of truncating toward zero. It returns 0 for length <= 0.
func Wrap(length, d int) int {
	if length <= 0 {
		return 0
	}
	return (length + d%length) % length
}

// Ring is a circular buffer of fixed length. Old samples are overwritten,
// never shifted.
type Ring struct {
	buffer []float64
	pos    int
	filled int
}

// New returns a zero-filled ring of the given length.
func New(length int) (*Ring, error) {
	if length <= 0 {
		return nil, fmt.Errorf("ring length must be > 0: %d", length)
	}
	return &Ring{buffer: make([]float64, length), pos: length - 1}, nil
}

// Len returns the fixed capacity.
func (r *Ring) Len() int {
	return len(r.buffer)
}

// Filled returns how many slots hold written data, at most Len.
func (r *Ring) Filled() int {
	return r.filled
}

// IsFull reports whether every slot has been written at least once.
func (r *Ring) IsFull() bool {
	return r.filled == len(r.buffer)
}

// Pos returns the storage index of the most recent write. Before the first
// write it is Len()-1, so the first sample lands at index 0.
func (r *Ring) Pos() int {
	return r.pos
}

// Write advances the cursor by one slot and stores v there.
func (r *Ring) Write(v float64) {
	r.pos = Wrap(len(r.buffer), r.pos+1)
	r.buffer[r.pos] = v
	if r.filled < len(r.buffer) {
		r.filled++
	}
}

// Index returns the storage index for a slot offset relative to the newest
// sample.
func (r *Ring) Index(offset int) int {
	return Wrap(len(r.buffer), r.pos+offset)
}

// At returns the sample at offset relative to the newest sample.
func (r *Ring) At(offset int) float64 {
	return r.buffer[r.Index(offset)]
}

// Last returns the newest sample.
func (r *Ring) Last() float64 {
	return r.buffer[r.pos]
}

// Set overwrites the sample at offset relative to the newest sample without
// moving the cursor.
func (r *Ring) Set(offset int, v float64) {
	r.buffer[r.Index(offset)] = v
}

// Chronological copies the filled slots into dst ordered from oldest to
// newest and returns the resulting slice. dst is reused when its capacity
// suffices.
func (r *Ring) Chronological(dst []float64) []float64 {
	dst = core.EnsureLen(dst, r.filled)
	if r.filled == 0 {
		return dst
	}

	start := r.Index(1 - r.filled)
	n := copy(dst, r.buffer[start:])
	if n < r.filled {
		copy(dst[n:], r.buffer[:r.filled-n])
	}
	return dst
}

// Sum returns the sum of the n newest samples. n is clamped to Filled.
func (r *Ring) Sum(n int) float64 {
	if n > r.filled {
		n = r.filled
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += r.At(-i)
	}
	return sum
}

// Reset zeroes the storage and rewinds the cursor.
func (r *Ring) Reset() {
	for i := range r.buffer {
		r.buffer[i] = 0
	}
	r.pos = len(r.buffer) - 1
	r.filled = 0
}
