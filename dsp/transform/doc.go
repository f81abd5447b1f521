// Package transform computes the real-input forward FFT used by the spectral
// analyzer and selects which implementation runs it.
//
// Implementations are registered as Backend factories in a Registry and ranked
// by priority and CPU capability. A Dispatcher picks the best accelerated
// backend once, keeps the reference backend ready, and falls back to it
// permanently after the first accelerated failure.
package transform
