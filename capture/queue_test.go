package capture

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueueDropOldest(t *testing.T) {
	q := NewQueue[int](3, DropOldest)
	for i := 1; i <= 3; i++ {
		if _, dropped := q.Push(i); dropped {
			t.Fatalf("push %d dropped on a non-full queue", i)
		}
	}
	old, dropped := q.Push(4)
	if !dropped || old != 1 {
		t.Fatalf("Push on full queue = (%d, %v), want (1, true)", old, dropped)
	}
	if q.Drops() != 1 || q.Len() != 3 {
		t.Fatalf("drops=%d len=%d, want 1 and 3", q.Drops(), q.Len())
	}
	for _, want := range []int{2, 3, 4} {
		got, ok := q.TryPop()
		if !ok || got != want {
			t.Fatalf("TryPop = (%d, %v), want (%d, true)", got, ok, want)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("TryPop on empty queue succeeded")
	}
}

func TestQueueDropNewest(t *testing.T) {
	q := NewQueue[int](2, DropNewest)
	q.Push(1)
	q.Push(2)
	rejected, dropped := q.Push(3)
	if !dropped || rejected != 3 {
		t.Fatalf("Push on full queue = (%d, %v), want (3, true)", rejected, dropped)
	}
	got, _ := q.TryPop()
	if got != 1 {
		t.Fatalf("head = %d, want 1", got)
	}
}

func TestQueuePopWaitsForPush(t *testing.T) {
	q := NewQueue[string](1, DropOldest)
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push("block")
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := q.Pop(ctx)
	if err != nil || got != "block" {
		t.Fatalf("Pop = (%q, %v)", got, err)
	}
}

func TestQueuePopCancelAndClose(t *testing.T) {
	q := NewQueue[int](1, DropOldest)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Pop(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Pop after cancel: %v", err)
	}

	q.Push(7)
	q.Close()
	// Items queued before Close are still delivered.
	if v, err := q.Pop(context.Background()); err != nil || v != 7 {
		t.Fatalf("Pop after close = (%d, %v), want (7, nil)", v, err)
	}
	if _, err := q.Pop(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Pop on closed empty queue: %v", err)
	}
}

func TestParseDropPolicy(t *testing.T) {
	for in, want := range map[string]DropPolicy{"oldest": DropOldest, "newest": DropNewest, "": DropOldest} {
		got, err := ParseDropPolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParseDropPolicy(%q) = (%v, %v)", in, got, err)
		}
	}
	if _, err := ParseDropPolicy("random"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
