// Package spectrum computes one-sided power spectra of short real frames and
// provides band-limited peak and energy helpers on top of them.
//
// Transforms are delegated to algo-fft plans; the squared-magnitude kernel
// comes from algo-vecmath.
package spectrum
