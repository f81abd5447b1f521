// Package spectrum turns one-sided FFT bins into calibrated dB levels and
// maps frequency ranges onto bin indices.
//
// It does not transform anything itself; bins come from dsp/transform.
// Magnitude and scaling run on the algo-vecmath SIMD kernels.
package spectrum
