// Package clickhouse stores analysis results, alert events and segment
// metadata in ClickHouse.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/cwbudde/lfnwatch/analysis"
	"github.com/cwbudde/lfnwatch/capture"
	"github.com/cwbudde/lfnwatch/config"
	"github.com/cwbudde/lfnwatch/internal/logging"
	"github.com/cwbudde/lfnwatch/measure/alert"
)

const (
	createResults = `CREATE TABLE IF NOT EXISTS lfn_results (
	timestamp   DateTime64(3),
	source      String,
	block_index UInt32,
	band        LowCardinality(String),
	channel     Int16,
	sample_rate Float64,
	bin_hz      Float64,
	backend     LowCardinality(String),
	alerted     UInt8,
	rms_db      Float64,
	peak_db     Float64,
	laeq_db     Nullable(Float64),
	lceq_db     Nullable(Float64),
	peak_hz     Array(Float64),
	peaks_db    Array(Float64)
) ENGINE = MergeTree ORDER BY (source, timestamp, band)`

	createAlerts = `CREATE TABLE IF NOT EXISTS lfn_alerts (
	timestamp    DateTime64(3),
	source       String,
	block_index  UInt32,
	band         LowCardinality(String),
	channel      Int16,
	frequency_hz Float64,
	level_db     Float64,
	threshold_db Float64
) ENGINE = MergeTree ORDER BY (source, timestamp)`

	createSegments = `CREATE TABLE IF NOT EXISTS lfn_segments (
	start_time       DateTime64(3),
	session          String,
	segment_index    UInt32,
	path             String,
	status           LowCardinality(String),
	target_seconds   Float64,
	duration_seconds Float64,
	frames           UInt64,
	error            String
) ENGINE = MergeTree ORDER BY (session, segment_index)`

	insertResult  = `INSERT INTO lfn_results (timestamp, source, block_index, band, channel, sample_rate, bin_hz, backend, alerted, rms_db, peak_db, laeq_db, lceq_db, peak_hz, peaks_db) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertAlert   = `INSERT INTO lfn_alerts (timestamp, source, block_index, band, channel, frequency_hz, level_db, threshold_db) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	insertSegment = `INSERT INTO lfn_segments (start_time, session, segment_index, path, status, target_seconds, duration_seconds, frames, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// conn is the part of driver.Conn the store uses.
type conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Ping(ctx context.Context) error
	Close() error
}

// Store writes records to ClickHouse. It implements pipeline.ResultSink,
// pipeline.AlertSink and capture.SegmentSink.
type Store struct {
	conn conn
	// Session is stored with segment rows.
	Session string
	logger  logging.Logger
}

var _ capture.SegmentSink = (*Store)(nil)

// Open connects to the server in cfg, checks the connection and creates the
// tables.
func Open(ctx context.Context, cfg config.ClickHouse, logger logging.Logger) (*Store, error) {
	c, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse: open %s: %w", cfg.Addr, err)
	}
	s := newStore(c, logger)
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("clickhouse: ping %s: %w", cfg.Addr, err)
	}
	if err := s.InitSchema(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	s.logger.Info("connected", logging.Fields{"addr": cfg.Addr, "database": cfg.Database})
	return s, nil
}

func newStore(c conn, logger logging.Logger) *Store {
	return &Store{conn: c, logger: logging.OrGlobal(logger).WithFields(logging.Fields{"component": "clickhouse"})}
}

// InitSchema creates the tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, q := range []string{createResults, createAlerts, createSegments} {
		if err := s.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("clickhouse: create table: %w", err)
		}
	}
	return nil
}

// HandleResult stores one row per band and channel.
func (s *Store) HandleResult(ctx context.Context, r analysis.Result) error {
	var la, lc *float64
	if r.Level.Weighted {
		la, lc = &r.Level.LAeqDB, &r.Level.LCeqDB
	}
	for _, bp := range r.Bands {
		hz := make([]float64, len(bp.Peaks))
		db := make([]float64, len(bp.Peaks))
		for i, p := range bp.Peaks {
			hz[i], db[i] = p.FrequencyHz, p.LevelDB
		}
		var alerted uint8
		if r.Alerted(bp.Band) {
			alerted = 1
		}
		err := s.conn.Exec(ctx, insertResult,
			r.Timestamp, r.Source, uint32(r.BlockIndex), bp.Band.String(), int16(bp.Channel),
			r.SampleRate, r.BinHz, r.Backend, alerted, r.Level.RMSDB, r.Level.PeakDB, la, lc, hz, db,
		)
		if err != nil {
			return fmt.Errorf("clickhouse: insert result %s/%d: %w", r.Source, r.BlockIndex, err)
		}
	}
	return nil
}

// HandleAlert stores an alert event.
func (s *Store) HandleAlert(ctx context.Context, e alert.Event) error {
	err := s.conn.Exec(ctx, insertAlert,
		e.Timestamp, e.Source, uint32(e.BlockIndex), e.Band.String(), int16(e.Channel),
		e.FrequencyHz, e.LevelDB, e.ThresholdDB,
	)
	if err != nil {
		return fmt.Errorf("clickhouse: insert alert: %w", err)
	}
	return nil
}

// HandleSegment stores segment metadata.
func (s *Store) HandleSegment(ctx context.Context, seg capture.Segment) error {
	var msg string
	if seg.Err != nil {
		msg = seg.Err.Error()
	}
	err := s.conn.Exec(ctx, insertSegment,
		seg.StartTime, s.Session, uint32(seg.Index), seg.Path, seg.Status.String(),
		seg.TargetDuration.Seconds(), seg.Duration.Seconds(), uint64(seg.Frames), msg,
	)
	if err != nil {
		return fmt.Errorf("clickhouse: insert segment %d: %w", seg.Index, err)
	}
	return nil
}

// Close closes the connection.
func (s *Store) Close() error { return s.conn.Close() }
