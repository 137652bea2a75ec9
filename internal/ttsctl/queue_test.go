package ttsctl

import (
	"sync"
	"testing"
	"time"
)

func TestTaskQueueRunsInFIFOOrder(t *testing.T) {
	q := newTaskQueue("node-1")
	defer q.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(5)

	for i := 0; i < 5; i++ {
		i := i
		q.Enqueue(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	waitOrTimeout(t, &wg, time.Second)

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want sequential 0..4", order)
		}
	}
}

func TestTaskQueueContinuesAfterPanickingTask(t *testing.T) {
	q := newTaskQueue("node-1")
	defer q.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	ran := false

	q.Enqueue(func() {
		defer wg.Done()
		panic("boom")
	})
	q.Enqueue(func() {
		defer wg.Done()
		ran = true
	})

	waitOrTimeout(t, &wg, time.Second)

	if !ran {
		t.Fatal("second task should have run after the first panicked")
	}
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for queued tasks")
	}
}
