// Package ring provides a fixed-capacity circular float64 buffer with
// wrap-safe relative indexing.
//
// Offsets passed to [Ring.At], [Ring.Set] and [Ring.Index] are measured from
// the most recently written slot: 0 is the newest sample, -1 the one before
// it, and so on. Offsets of any magnitude and sign are reduced with [Wrap], so
// callers never need to special-case the seam between the end and the start
// of the storage.
package ring
