// Package weighting builds the IEC 61672 A and C frequency weighting curves
// as biquad cascades.
//
// Both curves are normalized to 0 dB at 1 kHz. The difference between a
// C-weighted and an A-weighted level of the same signal is a common screen
// for low-frequency noise: A-weighting discounts the infrasonic and LFN
// range heavily while C-weighting is nearly flat down to 31.5 Hz.
//
// At sample rates where the 12194 Hz high-frequency pole lies at or above
// Nyquist the low-pass sections are left out. Below about 5 kHz the
// high-frequency error this causes is under 0.5 dB, and it does not affect
// the LFN range.
package weighting
