// Package peak detects heartbeats in a filtered plethysmogram stream and
// keeps a rolling history of inter-beat intervals.
//
// A [Detector] is fed one sample at a time. It alternates between waiting for
// the waveform to rise and waiting for it to fall; the first falling sample
// after a rise marks the previous sample as a candidate peak. Candidates that
// follow the last confirmed peak within the refractory period are discarded
// as double detections, so every recorded interval is longer than the
// refractory period.
package peak
