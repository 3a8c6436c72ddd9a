package util

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMPSCBasicOrder(t *testing.T) {
	q := NewMPSC[int]()
	defer q.Close()

	for i := 0; i < 10; i++ {
		v := i
		if !q.Push(&v) {
			t.Fatalf("Push(%d) failed", i)
		}
	}

	for i := 0; i < 10; i++ {
		select {
		case got := <-q.Recv():
			if *got.Item != i {
				t.Errorf("Recv() = %d, want %d", *got.Item, i)
			}
			if got.Wait < 0 {
				t.Errorf("Wait = %v, want >= 0", got.Wait)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout waiting for item %d", i)
		}
	}

	select {
	case got := <-q.Recv():
		t.Errorf("queue should be empty, got %v", *got.Item)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestMPSCRejectsNil(t *testing.T) {
	q := NewMPSC[int]()
	defer q.Close()
	if q.Push(nil) {
		t.Error("Push(nil) should fail")
	}
}

func TestMPSCConcurrentProducers(t *testing.T) {
	q := NewMPSC[int]()
	defer q.Close()

	const producers = 8
	const perProducer = 500
	total := producers * perProducer

	received := make(map[int]bool, total)
	lastPerProducer := make(map[int]int)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for len(received) < total {
			select {
			case got := <-q.Recv():
				v := *got.Item
				if received[v] {
					t.Errorf("duplicate item %d", v)
				}
				received[v] = true
				p := v / perProducer
				if last, ok := lastPerProducer[p]; ok && v < last {
					t.Errorf("producer %d: item %d after %d", p, v, last)
				}
				lastPerProducer[p] = v
			case <-time.After(2 * time.Second):
				t.Errorf("timeout, received %d of %d", len(received), total)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				v := p*perProducer + i
				if !q.Push(&v) {
					t.Errorf("producer %d: Push(%d) failed", p, v)
				}
				if i%50 == 0 {
					runtime.Gosched()
				}
			}
		}(p)
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for consumer")
	}
}

func TestMPSCCloseDeliversPending(t *testing.T) {
	q := NewMPSC[int]()
	for i := 0; i < 5; i++ {
		v := i
		q.Push(&v)
	}
	q.Close()

	v := 100
	if q.Push(&v) {
		t.Error("Push() after Close() should fail")
	}
	if !q.IsClosed() {
		t.Error("IsClosed() = false, want true")
	}

	for i := 0; i < 5; i++ {
		select {
		case got := <-q.Recv():
			if *got.Item != i {
				t.Errorf("Recv() = %d, want %d", *got.Item, i)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout waiting for item %d after close", i)
		}
	}

	if _, ok := <-q.Recv(); ok {
		t.Error("channel should be closed after drain")
	}
	select {
	case <-q.Done():
	case <-time.After(100 * time.Millisecond):
		t.Error("Done() not closed after drain")
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestMPSCAcceptedPushesSurviveClose(t *testing.T) {
	const producers = 8
	for round := 0; round < 200; round++ {
		q := NewMPSC[int]()

		var accepted atomic.Int64
		var wg sync.WaitGroup
		start := make(chan struct{})
		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for i := 0; i < 50; i++ {
					v := i
					if q.Push(&v) {
						accepted.Add(1)
					}
				}
			}()
		}

		close(start)
		runtime.Gosched()
		q.Close()
		wg.Wait()

		var received int64
		for range q.Recv() {
			received++
		}
		if received != accepted.Load() {
			t.Fatalf("round %d: received %d items, %d pushes were accepted", round, received, accepted.Load())
		}
	}
}

func BenchmarkMPSCMultiProducer(b *testing.B) {
	q := NewMPSC[int]()
	defer q.Close()
	go func() {
		for range q.Recv() {
		}
	}()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			v := i
			q.Push(&v)
			i++
		}
	})
}
