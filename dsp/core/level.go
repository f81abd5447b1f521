// Package core holds the decibel conventions shared by spectral and
// broadband level measurement.
package core

import "math"

// SPLReference is 20 uPa, the 0 dB reference for sound pressure when
// full scale is calibrated to 1 Pa.
const SPLReference = 2e-5

// DefaultFloorDB is the lowest level reported. Silence reads as this value
// instead of -Inf.
const DefaultFloorDB = -120.0

// LinearToDB returns 20*log10(ratio): -Inf for zero, NaN for negative input.
func LinearToDB(ratio float64) float64 {
	switch {
	case ratio < 0:
		return math.NaN()
	case ratio == 0:
		return math.Inf(-1)
	}
	return 20 * math.Log10(ratio)
}

// LevelDB returns 20*log10(amplitude/reference), never below floorDB. NaN
// amplitudes read as the floor. A non-positive reference is treated as 1.
func LevelDB(amplitude, reference, floorDB float64) float64 {
	if reference <= 0 {
		reference = 1
	}
	if !(amplitude > AmplitudeFromLevel(floorDB, reference)) {
		return floorDB
	}
	return LinearToDB(amplitude / reference)
}

// AmplitudeFromLevel inverts LevelDB for levels above the floor.
func AmplitudeFromLevel(levelDB, reference float64) float64 {
	if reference <= 0 {
		reference = 1
	}
	return reference * math.Pow(10, levelDB/20)
}

// PowerLevelDB is LevelDB for a mean-square value.
func PowerLevelDB(meanSquare, reference, floorDB float64) float64 {
	if reference <= 0 {
		reference = 1
	}
	if !(meanSquare > 0) {
		return floorDB
	}
	return max(10*math.Log10(meanSquare/(reference*reference)), floorDB)
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
