package filecache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFingerprintStableUnderParamOrder(t *testing.T) {
	a := Fingerprint("/leaguedashplayerstats", map[string]string{"Season": "2015-16", "TeamID": "0"})
	b := Fingerprint("/leaguedashplayerstats", map[string]string{"TeamID": "0", "Season": "2015-16"})
	if a != b {
		t.Fatalf("Fingerprint should be order-independent: %q != %q", a, b)
	}

	c := Fingerprint("/leaguedashplayerstats", map[string]string{"Season": "2016-17", "TeamID": "0"})
	if a == c {
		t.Fatalf("Fingerprint should differ for different params")
	}
}

func TestGetPutRoundTrip(t *testing.T) {
	cache := New(t.TempDir())
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "stats_api", "missing"); ok {
		t.Fatalf("Get on empty cache should report a miss")
	}

	if err := cache.Put(ctx, "stats_api", "fp1", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, ok := cache.Get(ctx, "stats_api", "fp1")
	if !ok {
		t.Fatalf("Get after Put should hit")
	}
	if string(data) != `{"ok":true}` {
		t.Fatalf("Get returned %q", data)
	}
}

func TestGetOrLoadDeduplicatesConcurrentLoads(t *testing.T) {
	cache := New(t.TempDir())
	ctx := context.Background()

	var loadCount int32
	load := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&loadCount, 1)
		time.Sleep(20 * time.Millisecond)
		return []byte("payload"), nil
	}

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, err := cache.GetOrLoad(ctx, "stats_api", "shared-key", load)
			if err != nil {
				t.Errorf("GetOrLoad: %v", err)
				return
			}
			results[i] = data
		}(i)
	}
	wg.Wait()

	if loadCount != 1 {
		t.Fatalf("load called %d times, want exactly 1 under single-flight dedup", loadCount)
	}
	for i, r := range results {
		if string(r) != "payload" {
			t.Fatalf("results[%d] = %q, want payload", i, r)
		}
	}
}

func TestGetOrLoadSecondCallHitsDiskCache(t *testing.T) {
	cache := New(t.TempDir())
	ctx := context.Background()

	var loadCount int32
	load := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&loadCount, 1)
		return []byte("payload"), nil
	}

	if _, err := cache.GetOrLoad(ctx, "stats_api", "key", load); err != nil {
		t.Fatalf("first GetOrLoad: %v", err)
	}
	if _, err := cache.GetOrLoad(ctx, "stats_api", "key", load); err != nil {
		t.Fatalf("second GetOrLoad: %v", err)
	}
	if loadCount != 1 {
		t.Fatalf("load called %d times across two sequential calls, want 1 (second should hit disk)", loadCount)
	}
}
