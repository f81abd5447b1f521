// Package peaks extracts ranked spectral peaks inside configured frequency
// bands.
//
// A peak is a local maximum of the level spectrum. Within one band the
// records are ordered by level (descending, ties to the lower frequency),
// capped at MaxPeaks, and spaced at least a minimum distance apart so that
// adjacent bins of one physical tone are reported once.
package peaks
