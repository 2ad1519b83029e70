// Package region reduces video frames to per-channel colour means over a
// rectangular region of interest.
//
// A [Sampler] is the boundary between image capture and the pulse
// processors: it produces one [Sample] per frame with the mean R, G and B
// intensity on a 0-255 scale and the time elapsed since the previous frame.
// Alpha is ignored; frames are expected to be opaque. [Selection] tracks two
// regions drawn with a pointing device, and [MeasureFramePeriod] calibrates
// the nominal sample period of a capture source.
package region
