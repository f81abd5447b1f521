package analysis

import (
	"testing"

	"github.com/cwbudde/lfnwatch/measure/peaks"
)

func TestResultTopAcrossChannels(t *testing.T) {
	r := Result{Bands: []BandPeaks{
		{Band: peaks.LFN, Channel: 0, Peaks: []peaks.Record{{FrequencyHz: 40, LevelDB: 50, Rank: 1}}},
		{Band: peaks.LFN, Channel: 1, Peaks: []peaks.Record{{FrequencyHz: 30, LevelDB: 50, Rank: 1}}},
		{Band: peaks.Ultrasonic, Channel: 0},
	}}

	top, ok := r.Top(peaks.LFN)
	if !ok || top.FrequencyHz != 30 {
		t.Fatalf("Top(LFN) = %+v, %v", top, ok)
	}
	if _, ok := r.Top(peaks.Ultrasonic); ok {
		t.Fatal("empty band reported a top peak")
	}
	if got := len(r.Peaks(peaks.LFN)); got != 2 {
		t.Fatalf("Peaks(LFN) returned %d lists", got)
	}
	if r.Alerted(peaks.LFN) {
		t.Fatal("no alerts were set")
	}
}

func TestBuildOrder(t *testing.T) {
	levels := make([]float64, 100)
	for i := range levels {
		levels[i] = -100
	}
	levels[50] = 0
	spectra := []SpectralFrame{
		{Levels: levels, BinHz: 1, Channel: 0},
		{Levels: levels, BinHz: 1, Channel: 1},
	}
	got := Build(spectra, peaks.NewExtractor(), peaks.DefaultRanges())
	if len(got) != 4 {
		t.Fatalf("got %d band lists", len(got))
	}
	if got[0].Band != peaks.LFN || got[1].Channel != 1 || got[2].Band != peaks.Ultrasonic {
		t.Fatalf("unexpected order: %+v", got)
	}
	if len(got[0].Peaks) != 1 || got[0].Peaks[0].FrequencyHz != 50 {
		t.Fatalf("LFN peaks: %+v", got[0].Peaks)
	}
	if got[2].Peaks != nil {
		t.Fatalf("ultrasonic above Nyquist should be empty: %+v", got[2].Peaks)
	}
}
