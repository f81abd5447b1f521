package portaudio

import (
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	d := New("USB")
	if d.selector != "USB" || d.stallTimeout != DefaultStallTimeout {
		t.Fatalf("New = %+v", d)
	}
	d.SetStallTimeout(0)
	if d.stallTimeout != 0 {
		t.Fatal("stall timeout not changed")
	}
}

func TestWatchdogReportsStall(t *testing.T) {
	d := New("")
	d.last.Store(time.Now().Add(-time.Second).UnixNano())
	stop := make(chan struct{})
	d.watch.Add(1)
	go d.watchdog(stop, 40*time.Millisecond)

	select {
	case err := <-d.Errors():
		if err == nil {
			t.Fatal("nil stall error")
		}
	case <-time.After(time.Second):
		t.Fatal("watchdog did not report a stall")
	}
	d.watch.Wait()
	close(stop)
}

func TestStopWithoutOpen(t *testing.T) {
	d := New("")
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.Start(); err == nil {
		t.Fatal("Start before Open succeeded")
	}
}
