// Package pulse turns a stream of per-frame colour intensities into a
// normalised plethysmogram and estimates the dominant pulse frequency.
//
// A [Processor] keeps the last L samples (the analysis window) in circular
// buffers. Every [Processor.Update] centres and normalises the newest raw
// sample against a trailing centering window, smooths the result with a
// trailing uniform moving average over the filter span and stores it aligned
// index-for-index with the raw sample. The smoothing delays the waveform by
// (span-1)/2 samples. [Processor.ComputeFrequency] is the
// expensive step: it transforms the filtered window and searches the
// physiological band of the configured [ProcessType]. Call it at a cadence
// of your choosing, not on every frame.
//
// Frequency and SNR read 0 until a full window has been written; check
// [Processor.Ready] before trusting them.
//
// A Processor is not safe for concurrent use. Distinct processors share no
// state and may run in parallel.
package pulse
