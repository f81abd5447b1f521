// Package biquad provides second-order IIR filter runtime primitives.
//
// A [Section] implements Direct Form II Transposed processing for one
// second-order section defined by [Coefficients]. Sections are cascaded by
// [Chain], and [Interleaved] runs one chain per channel over interleaved
// multichannel audio, as written to recorded segments.
//
// Coefficient design lives in dsp/filter/design.
package biquad
