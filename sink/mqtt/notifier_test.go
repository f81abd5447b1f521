package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/cwbudde/lfnwatch/capture"
	"github.com/cwbudde/lfnwatch/internal/logging"
	"github.com/cwbudde/lfnwatch/measure/alert"
	"github.com/cwbudde/lfnwatch/measure/peaks"
)

type doneToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *doneToken {
	t := &doneToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

type message struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	msgs         []message
	err          error
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	c.msgs = append(c.msgs, message{topic, qos, payload.([]byte)})
	return newToken(c.err)
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

var _ paho.Token = (*doneToken)(nil)

func TestHandleAlertPublishesJSON(t *testing.T) {
	c := &fakeClient{}
	n := newNotifier(c, "lfnwatch/alerts/", logging.NoOpLogger{})
	ts := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
	e := alert.Event{Band: peaks.LFN, LevelDB: 52.5, ThresholdDB: 45, FrequencyHz: 48.8, Channel: -1, Timestamp: ts, Source: "s", BlockIndex: 3}

	if err := n.HandleAlert(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	if len(c.msgs) != 1 || c.msgs[0].topic != "lfnwatch/alerts/lfn" || c.msgs[0].qos != 1 {
		t.Fatalf("messages %+v", c.msgs)
	}
	var got AlertPayload
	if err := json.Unmarshal(c.msgs[0].payload, &got); err != nil {
		t.Fatal(err)
	}
	if got.Band != "LFN" || got.LevelDB != 52.5 || got.BlockIndex != 3 || !got.Timestamp.Equal(ts) {
		t.Fatalf("payload %+v", got)
	}
}

func TestHandleSegmentPublishesStatus(t *testing.T) {
	c := &fakeClient{}
	n := newNotifier(c, "site", logging.NoOpLogger{})
	seg := capture.Segment{Index: 4, Path: "a.wav", Status: capture.SegmentFailed, Err: errors.New("disk full")}
	if err := n.HandleSegment(context.Background(), seg); err != nil {
		t.Fatal(err)
	}
	var got SegmentPayload
	if err := json.Unmarshal(c.msgs[0].payload, &got); err != nil {
		t.Fatal(err)
	}
	if c.msgs[0].topic != "site/segments" || got.Status != "FAILED" || got.Error != "disk full" || got.Index != 4 {
		t.Fatalf("topic %q payload %+v", c.msgs[0].topic, got)
	}
}

func TestPublishError(t *testing.T) {
	c := &fakeClient{err: errors.New("not connected")}
	n := newNotifier(c, "x", logging.NoOpLogger{})
	if err := n.HandleAlert(context.Background(), alert.Event{Band: peaks.Ultrasonic}); err == nil {
		t.Fatal("expected publish error")
	}
	if c.msgs[0].topic != "x/ultrasonic" {
		t.Fatalf("topic %q", c.msgs[0].topic)
	}
	n.Close()
	if !c.disconnected {
		t.Fatal("Close did not disconnect")
	}
}
