// Package analysis turns fixed-duration audio blocks into level spectra and
// carries the per-block analysis records handed to result sinks.
//
// An Analyzer windows each frame of a block, runs it through a
// transform.Dispatcher and converts the bin magnitudes to dB relative to a
// reference amplitude. Identical input always produces identical frames,
// whichever backend the dispatcher uses, within the backends' agreed
// tolerance.
package analysis
