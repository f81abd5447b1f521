// Package capture runs live and long-duration capture sessions.
//
// A Session owns one audio Device, a bounded block Queue, the analysis
// pipeline and the active recording segment. The device callback only copies
// samples into pooled block buffers through an Assembler; a single worker
// analyzes blocks in order, hands records to sinks and appends the audio to
// the open segment. Session and segment lifecycles are explicit state
// machines, see State and SegmentStatus.
package capture

import "errors"

var (
	// ErrDeviceUnavailable reports that the capture device could not be
	// opened or started. No segments are produced.
	ErrDeviceUnavailable = errors.New("capture: device unavailable")
	// ErrStreamInterrupted reports a device failure after capture started.
	ErrStreamInterrupted = errors.New("capture: stream interrupted")
	// ErrBufferOverrun reports blocks dropped because analysis fell behind.
	ErrBufferOverrun = errors.New("capture: buffer overrun")
	// ErrSegmentWrite reports a segment that could not be written after a retry.
	ErrSegmentWrite = errors.New("capture: segment write failed")
	// ErrQueueClosed is returned by Queue.Pop after Close once the queue is empty.
	ErrQueueClosed = errors.New("capture: queue closed")
)
