// Package biquad provides second-order IIR sections and the band-pass design
// used to condition raw pulse samples.
//
// A [Section] implements Direct Form II Transposed processing for one
// second-order section defined by [Coefficients].
package biquad
