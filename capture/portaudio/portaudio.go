// Package portaudio implements capture.Device on top of the PortAudio
// library.
package portaudio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/cwbudde/lfnwatch/capture"
)

// DefaultStallTimeout is how long a started stream may go without a callback
// before it is reported as interrupted.
const DefaultStallTimeout = 2 * time.Second

var errNoInput = errors.New("portaudio: no input device")

// Info describes an input device.
type Info struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	Default           bool
}

// Devices lists the devices that have input channels.
func Devices() ([]Info, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	defer portaudio.Terminate()

	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	def, _ := portaudio.DefaultInputDevice()
	var out []Info
	for i, d := range all {
		if d.MaxInputChannels < 1 {
			continue
		}
		out = append(out, Info{
			Index:             i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           def != nil && d.Name == def.Name,
		})
	}
	return out, nil
}

// Device is a PortAudio input stream.
type Device struct {
	selector     string
	stallTimeout time.Duration

	mu          sync.Mutex
	initialized bool
	stream      *portaudio.Stream
	errs        chan error
	stop        chan struct{}
	watch       sync.WaitGroup
	last        atomic.Int64
}

var _ capture.Device = (*Device)(nil)

// New returns a device for selector: empty for the default input, a numeric
// index into the device list, or a case-insensitive substring of the name.
func New(selector string) *Device {
	return &Device{selector: selector, stallTimeout: DefaultStallTimeout, errs: make(chan error, 1)}
}

// SetStallTimeout changes the stall watchdog. Zero disables it.
func (d *Device) SetStallTimeout(t time.Duration) { d.stallTimeout = t }

// Open initializes PortAudio and opens an input stream.
func (d *Device) Open(p capture.StreamParams, onData func([]float32)) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return 0, fmt.Errorf("portaudio: initialize: %w", err)
	}
	d.initialized = true

	info, err := d.lookup()
	if err != nil {
		d.terminate()
		return 0, err
	}
	if info.MaxInputChannels < p.Channels {
		d.terminate()
		return 0, fmt.Errorf("portaudio: %q has %d input channels, need %d", info.Name, info.MaxInputChannels, p.Channels)
	}

	params := portaudio.HighLatencyParameters(info, nil)
	params.Input.Channels = p.Channels
	params.SampleRate = p.SampleRate
	params.FramesPerBuffer = p.FramesPerBuffer
	if params.FramesPerBuffer == 0 {
		params.FramesPerBuffer = portaudio.FramesPerBufferUnspecified
	}

	stream, err := portaudio.OpenStream(params, func(in []float32) {
		d.last.Store(time.Now().UnixNano())
		onData(in)
	})
	if err != nil {
		d.terminate()
		return 0, fmt.Errorf("portaudio: open %q: %w", info.Name, err)
	}
	d.stream = stream
	return stream.Info().SampleRate, nil
}

func (d *Device) lookup() (*portaudio.DeviceInfo, error) {
	sel := strings.TrimSpace(d.selector)
	if sel == "" {
		info, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errNoInput, err)
		}
		return info, nil
	}
	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	if idx, err := strconv.Atoi(sel); err == nil {
		if idx < 0 || idx >= len(all) || all[idx].MaxInputChannels < 1 {
			return nil, fmt.Errorf("%w: index %d", errNoInput, idx)
		}
		return all[idx], nil
	}
	want := strings.ToLower(sel)
	for _, info := range all {
		if info.MaxInputChannels > 0 && strings.Contains(strings.ToLower(info.Name), want) {
			return info, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", errNoInput, sel)
}

// Start begins delivering data and arms the stall watchdog.
func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		return errors.New("portaudio: start before open")
	}
	d.last.Store(time.Now().UnixNano())
	if err := d.stream.Start(); err != nil {
		return fmt.Errorf("portaudio: start: %w", err)
	}
	if d.stallTimeout > 0 {
		d.stop = make(chan struct{})
		d.watch.Add(1)
		go d.watchdog(d.stop, d.stallTimeout)
	}
	return nil
}

func (d *Device) watchdog(stop <-chan struct{}, timeout time.Duration) {
	defer d.watch.Done()
	tick := time.NewTicker(timeout / 4)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-tick.C:
			if idle := now.Sub(time.Unix(0, d.last.Load())); idle > timeout {
				select {
				case d.errs <- fmt.Errorf("portaudio: no input for %v", idle.Round(time.Millisecond)):
				default:
				}
				return
			}
		}
	}
}

// Stop halts the stream. No callbacks run after it returns.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
		d.watch.Wait()
	}
	if d.stream == nil {
		return nil
	}
	if err := d.stream.Stop(); err != nil {
		return fmt.Errorf("portaudio: stop: %w", err)
	}
	return nil
}

// Close releases the stream and PortAudio itself.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var err error
	if d.stream != nil {
		err = d.stream.Close()
		d.stream = nil
	}
	return errors.Join(err, d.terminate())
}

func (d *Device) terminate() error {
	if !d.initialized {
		return nil
	}
	d.initialized = false
	return portaudio.Terminate()
}

// Errors reports stalls detected by the watchdog.
func (d *Device) Errors() <-chan error { return d.errs }
