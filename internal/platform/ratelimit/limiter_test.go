package ratelimit

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestAcquireBulkArchiveNeverBlocks(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		if err := reg.Acquire(ctx, FamilyBulkArchive); err != nil {
			t.Fatalf("Acquire(bulk_archive) iteration %d: %v", i, err)
		}
	}
}

func TestAcquireRespectsOverride(t *testing.T) {
	reg := NewRegistry()
	reg.Override(FamilyScraper, rate.Every(10*time.Millisecond), 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := reg.Acquire(ctx, FamilyScraper); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("three acquires at 10ms spacing took %v, expected throttling to take effect", elapsed)
	}
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	reg := NewRegistry()
	reg.Override(FamilyStatsAPI, rate.Every(time.Hour), 1)
	ctx := context.Background()

	// drain the single burst token
	if err := reg.Acquire(ctx, FamilyStatsAPI); err != nil {
		t.Fatalf("Acquire (drain burst): %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := reg.Acquire(cancelCtx, FamilyStatsAPI); err == nil {
		t.Fatalf("Acquire should fail once the context deadline is exceeded waiting for a token")
	}
}

func TestUnknownFamilyDefaultsUnlimited(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()
	if err := reg.Acquire(ctx, Family("unregistered")); err != nil {
		t.Fatalf("Acquire for an unregistered family should default to unlimited: %v", err)
	}
}
