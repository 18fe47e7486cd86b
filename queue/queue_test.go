package queue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunsInScheduleOrder(t *testing.T) {
	q := New()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		q.Schedule(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}

	wg.Wait()
	q.Close()

	for i, v := range order {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
}

func TestSingleWriterDiscipline(t *testing.T) {
	q := New()
	defer q.Close()

	// A plain counter: data races here would be caught by -race, and
	// overlapping tasks would be caught by the running flag.
	var running int32
	var overlaps int32
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			q.Schedule(func() {
				if !atomic.CompareAndSwapInt32(&running, 0, 1) {
					atomic.AddInt32(&overlaps, 1)
				}
				counter++
				atomic.StoreInt32(&running, 0)
				wg.Done()
			})
		}()
	}

	wg.Wait()
	if overlaps != 0 {
		t.Fatalf("%d tasks observed another task running", overlaps)
	}
	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
}

func TestScheduleIn(t *testing.T) {
	q := New()
	defer q.Close()

	fired := make(chan time.Time, 1)
	start := time.Now()
	q.ScheduleIn(30*time.Millisecond, func() {
		fired <- time.Now()
	})

	select {
	case at := <-fired:
		if at.Sub(start) < 20*time.Millisecond {
			t.Errorf("task fired after %v, want >= ~30ms", at.Sub(start))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delayed task never ran")
	}
}

func TestSelfRescheduling(t *testing.T) {
	q := New()
	defer q.Close()

	var runs int32
	done := make(chan struct{})

	var tick Task
	tick = func() {
		if atomic.AddInt32(&runs, 1) == 3 {
			close(done)
			return
		}
		q.ScheduleIn(5*time.Millisecond, tick)
	}
	q.Schedule(tick)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("recurring task ran %d times, want 3", atomic.LoadInt32(&runs))
	}
}

func TestCloseDrains(t *testing.T) {
	q := New()

	var ran int32
	for i := 0; i < 10; i++ {
		q.Schedule(func() { atomic.AddInt32(&ran, 1) })
	}
	q.Close()

	if got := atomic.LoadInt32(&ran); got != 10 {
		t.Errorf("ran %d tasks before close, want 10", got)
	}

	// After close, scheduling drops silently.
	q.Schedule(func() { atomic.AddInt32(&ran, 1) })
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&ran); got != 10 {
		t.Errorf("task ran after Close; count = %d", got)
	}
}
