package clickhouse

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/lfnwatch/analysis"
	"github.com/cwbudde/lfnwatch/capture"
	"github.com/cwbudde/lfnwatch/internal/logging"
	"github.com/cwbudde/lfnwatch/measure/alert"
	"github.com/cwbudde/lfnwatch/measure/level"
	"github.com/cwbudde/lfnwatch/measure/peaks"
)

type call struct {
	query string
	args  []any
}

type fakeConn struct {
	calls  []call
	failOn string
	closed bool
}

func (c *fakeConn) Exec(_ context.Context, q string, args ...any) error {
	c.calls = append(c.calls, call{q, args})
	if c.failOn != "" && strings.Contains(q, c.failOn) {
		return errors.New("table is read-only")
	}
	return nil
}

func (c *fakeConn) Ping(context.Context) error { return nil }

func (c *fakeConn) Close() error { c.closed = true; return nil }

func TestInitSchema(t *testing.T) {
	c := &fakeConn{}
	s := newStore(c, logging.NoOpLogger{})
	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(c.calls) != 3 {
		t.Fatalf("%d statements, want 3", len(c.calls))
	}
	for i, table := range []string{"lfn_results", "lfn_alerts", "lfn_segments"} {
		if !strings.Contains(c.calls[i].query, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("statement %d: %q", i, c.calls[i].query)
		}
	}
}

func TestHandleResultWritesRowPerBand(t *testing.T) {
	c := &fakeConn{}
	s := newStore(c, logging.NoOpLogger{})
	ts := time.Date(2024, 3, 1, 2, 3, 4, 0, time.UTC)
	r := analysis.Result{
		Source:     "s1",
		BlockIndex: 7,
		Timestamp:  ts,
		SampleRate: 48000,
		BinHz:      2.93,
		Backend:    "gonum",
		Alerts:     []peaks.Band{peaks.LFN},
		Level:      level.Summary{Weighted: true, LAeqDB: 31, LCeqDB: 55},
		Bands: []analysis.BandPeaks{
			{Band: peaks.LFN, Channel: analysis.Downmixed, Peaks: []peaks.Record{
				{FrequencyHz: 50, LevelDB: 60}, {FrequencyHz: 80, LevelDB: 40},
			}},
			{Band: peaks.Ultrasonic, Channel: analysis.Downmixed},
		},
	}
	if err := s.HandleResult(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if len(c.calls) != 2 {
		t.Fatalf("%d inserts, want 2", len(c.calls))
	}
	lfn := c.calls[0].args
	if lfn[3] != "LFN" || lfn[8] != uint8(1) || lfn[2] != uint32(7) || lfn[4] != int16(-1) {
		t.Fatalf("LFN row %v", lfn)
	}
	if la := lfn[11].(*float64); la == nil || *la != 31 {
		t.Fatalf("laeq_db %v", lfn[11])
	}
	hz := lfn[13].([]float64)
	if len(hz) != 2 || hz[0] != 50 || hz[1] != 80 {
		t.Fatalf("peak_hz %v", hz)
	}
	us := c.calls[1].args
	if us[3] != "ULTRASONIC" || us[8] != uint8(0) || len(us[14].([]float64)) != 0 {
		t.Fatalf("ultrasonic row %v", us)
	}
}

func TestHandleAlertAndSegment(t *testing.T) {
	c := &fakeConn{}
	s := newStore(c, logging.NoOpLogger{})
	s.Session = "sess"
	e := alert.Event{Band: peaks.Ultrasonic, LevelDB: 55, ThresholdDB: 50, FrequencyHz: 21000, Source: "sess"}
	if err := s.HandleAlert(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	seg := capture.Segment{Index: 2, Status: capture.SegmentFailed, Err: errors.New("disk full"), Duration: 1500 * time.Millisecond}
	if err := s.HandleSegment(context.Background(), seg); err != nil {
		t.Fatal(err)
	}
	a := c.calls[0].args
	if a[3] != "ULTRASONIC" || a[6] != 55.0 || a[7] != 50.0 {
		t.Fatalf("alert row %v", a)
	}
	g := c.calls[1].args
	if g[1] != "sess" || g[2] != uint32(2) || g[4] != "FAILED" || g[6] != 1.5 || g[8] != "disk full" {
		t.Fatalf("segment row %v", g)
	}
}

func TestInsertErrorsAreWrapped(t *testing.T) {
	c := &fakeConn{failOn: "lfn_alerts"}
	s := newStore(c, logging.NoOpLogger{})
	err := s.HandleAlert(context.Background(), alert.Event{Band: peaks.LFN})
	if err == nil || !strings.HasPrefix(err.Error(), "clickhouse: insert alert") {
		t.Fatalf("err = %v", err)
	}
	if err := s.Close(); err != nil || !c.closed {
		t.Fatal("Close did not close the connection")
	}
}
