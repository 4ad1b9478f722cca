package singleflight

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeLease is an in-memory stand-in for KVCache used to exercise the
// leader/follower protocol without a running Redis.
type fakeLease struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
}

func newFakeLease() *fakeLease {
	return &fakeLease{data: make(map[string][]byte)}
}

func (f *fakeLease) SetNX(_ context.Context, key string, val []byte, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false, context.DeadlineExceeded
	}
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = val
	return true, nil
}

func (f *fakeLease) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeLease) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func TestGetOrFetchSingleWinner(t *testing.T) {
	lease := newFakeLease()
	g := New(lease, zerolog.Nop())

	var calls int32
	fetch := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		result := []byte("result")
		_, _ = lease.SetNX(ctx, "weather:cell", result, time.Minute)
		return result, nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([][]byte, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			val, err := g.GetOrFetch(context.Background(), "weather:cell", fetch, 2*time.Second)
			if err != nil {
				t.Errorf("GetOrFetch: %v", err)
				return
			}
			results[i] = val
		}(i)
	}
	wg.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
	for i, r := range results {
		if string(r) != "result" {
			t.Errorf("result[%d] = %q, want \"result\"", i, r)
		}
	}
}

func TestGetOrFetchDegradesWhenLeaseUnavailable(t *testing.T) {
	lease := newFakeLease()
	lease.fail = true
	g := New(lease, zerolog.Nop())

	var calls int32
	fetch := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("direct"), nil
	}

	val, err := g.GetOrFetch(context.Background(), "k", fetch, time.Second)
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	if string(val) != "direct" {
		t.Errorf("GetOrFetch() = %q, want \"direct\"", val)
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
}

func TestGetOrFetchFallsThroughOnTimeout(t *testing.T) {
	lease := newFakeLease()
	// Pre-acquire the lease as a "stuck leader" that never publishes a result.
	_, _ = lease.SetNX(context.Background(), "lock:k", []byte("1"), time.Hour)

	g := New(lease, zerolog.Nop())
	var calls int32
	fetch := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("fallback"), nil
	}

	val, err := g.GetOrFetch(context.Background(), "k", fetch, 1500*time.Millisecond)
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	if string(val) != "fallback" {
		t.Errorf("GetOrFetch() = %q, want \"fallback\"", val)
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
}
