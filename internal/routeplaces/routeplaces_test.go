package routeplaces

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

type fakeKV struct {
	data map[string][]byte
}

func newFakeKV() *fakeKV { return &fakeKV{data: make(map[string][]byte)} }

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeKV) SetEX(_ context.Context, key string, val []byte, _ time.Duration) error {
	f.data[key] = val
	return nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

type fakeDurable struct {
	entries map[string]graph.RoutePlacesEntry
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{entries: make(map[string]graph.RoutePlacesEntry)}
}

func dkey(src, dst int64) string { return key(src, dst) }

func (f *fakeDurable) RoutePlacesGet(_ context.Context, src, dst int64) (*graph.RoutePlacesEntry, error) {
	e, ok := f.entries[dkey(src, dst)]
	if !ok {
		return nil, errMiss{}
	}
	return &e, nil
}

func (f *fakeDurable) RoutePlacesUpsert(_ context.Context, entry graph.RoutePlacesEntry) error {
	f.entries[dkey(entry.SourcePlaceID, entry.TargetPlaceID)] = entry
	return nil
}

func (f *fakeDurable) RoutePlacesClear(_ context.Context, src, dst int64) error {
	if src == 0 && dst == 0 {
		f.entries = make(map[string]graph.RoutePlacesEntry)
		return nil
	}
	delete(f.entries, dkey(src, dst))
	return nil
}

type errMiss struct{}

func (errMiss) Error() string { return "relstore: route places miss" }

func TestGetMissReturnsNilWithoutError(t *testing.T) {
	c := New(newFakeKV(), newFakeDurable(), zerolog.Nop())
	places, err := c.Get(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if places != nil {
		t.Errorf("expected nil places on miss, got %+v", places)
	}
}

func TestSetThenGetHitsKVCache(t *testing.T) {
	kv := newFakeKV()
	durable := newFakeDurable()
	c := New(kv, durable, zerolog.Nop())

	places := []graph.RoutePlace{{Name: "Amsterdam", Type: graph.PlaceTypeCity, Lat: 52.37, Lon: 4.89}}
	if err := c.Set(context.Background(), 1, 2, places); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, ok := kv.data[key(1, 2)]; !ok {
		t.Fatalf("expected kv populated after Set")
	}

	got, err := c.Get(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Amsterdam" {
		t.Errorf("Get() = %+v", got)
	}
}

func TestGetWarmsKVOnDurableHit(t *testing.T) {
	kv := newFakeKV()
	durable := newFakeDurable()
	entry := graph.RoutePlacesEntry{
		SourcePlaceID: 3, TargetPlaceID: 4,
		Places:      []graph.RoutePlace{{Name: "Utrecht", Type: graph.PlaceTypeCity}},
		TotalPlaces: 1,
	}
	durable.entries[dkey(3, 4)] = entry
	c := New(kv, durable, zerolog.Nop())

	got, err := c.Get(context.Background(), 3, 4)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Get() = %+v", got)
	}
	raw, ok := kv.data[key(3, 4)]
	if !ok {
		t.Fatalf("expected kv warmed after relstore hit")
	}
	var warmed graph.RoutePlacesEntry
	if err := json.Unmarshal(raw, &warmed); err != nil {
		t.Fatalf("unmarshal warmed entry: %v", err)
	}
	if warmed.TotalPlaces != 1 {
		t.Errorf("warmed entry TotalPlaces = %d, want 1", warmed.TotalPlaces)
	}
}

func TestClearTargeted(t *testing.T) {
	kv := newFakeKV()
	durable := newFakeDurable()
	c := New(kv, durable, zerolog.Nop())

	if err := c.Set(context.Background(), 5, 6, []graph.RoutePlace{{Name: "X"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Clear(context.Background(), 5, 6); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := kv.data[key(5, 6)]; ok {
		t.Errorf("expected kv entry cleared")
	}
	if _, ok := durable.entries[dkey(5, 6)]; ok {
		t.Errorf("expected durable entry cleared")
	}
}

func TestClearGlobal(t *testing.T) {
	kv := newFakeKV()
	durable := newFakeDurable()
	c := New(kv, durable, zerolog.Nop())

	if err := c.Set(context.Background(), 1, 2, []graph.RoutePlace{{Name: "A"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set(context.Background(), 3, 4, []graph.RoutePlace{{Name: "B"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Clear(context.Background(), 0, 0); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(durable.entries) != 0 {
		t.Errorf("expected all durable entries cleared, got %d", len(durable.entries))
	}
}
