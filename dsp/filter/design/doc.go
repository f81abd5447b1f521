// Package design produces bilinear-transform biquad coefficients for
// dsp/filter/biquad.
//
// Corner frequencies are prewarped with K = tan(pi*f/fs), so the digital
// response matches the analog prototype exactly at the corner. Sections
// assume 0 < f < fs/2; ButterworthHP checks its arguments.
package design
