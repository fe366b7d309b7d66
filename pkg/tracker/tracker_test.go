package tracker

import (
	"sync"
	"testing"
)

func TestTracker(t *testing.T) {
	tr := New()
	provider := "dir"

	stats := tr.Snapshot()
	if len(stats) != 0 {
		t.Errorf("Expected empty stats, got %d", len(stats))
	}

	tr.TrackHit(provider)
	tr.TrackMiss(provider)
	tr.TrackSuccess(provider)
	tr.TrackFailure(provider)
	tr.TrackNotFound(provider)
	tr.TrackNotFound(provider)

	stats = tr.Snapshot()
	pStats, ok := stats[provider]
	if !ok {
		t.Fatalf("Expected stats for provider %s", provider)
	}

	want := ProviderStats{Hits: 1, Misses: 1, Success: 1, Failures: 1, NotFound: 2}
	if pStats != want {
		t.Errorf("Snapshot = %+v, want %+v", pStats, want)
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.TrackHit(ProviderCache)
		}()
	}
	wg.Wait()

	if got := tr.Snapshot()[ProviderCache].Hits; got != 50 {
		t.Errorf("Expected 50 hits, got %d", got)
	}
}

func TestTracker_NilSafe(t *testing.T) {
	var tr *Tracker
	tr.TrackHit("x")
	tr.TrackFailure("x")
}
