package capture

// StreamParams describes the stream a session asks the device for.
type StreamParams struct {
	SampleRate float64
	Channels   int
	// FramesPerBuffer is a hint for the callback size; zero lets the device
	// choose.
	FramesPerBuffer int
}

// Device is an audio input.
//
// onData is called from the device's real-time thread with interleaved
// samples that are only valid during the call. After Stop returns no further
// calls are made.
type Device interface {
	// Open prepares the stream and returns the sample rate actually in use.
	Open(params StreamParams, onData func(in []float32)) (float64, error)
	Start() error
	Stop() error
	Close() error
	// Errors delivers asynchronous stream failures. It may return nil when
	// the device never reports any.
	Errors() <-chan error
}
