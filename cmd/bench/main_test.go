package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pmet "github.com/IvanBrykalov/paintcache/metrics/prom"
)

// A short run with a tight budget and periodic invalidation must finish with
// both caches in agreement.
func TestRun_SmallBudget(t *testing.T) {
	cfg := config{
		budget:          32 << 10,
		duration:        100 * time.Millisecond,
		keys:            2_000,
		zipfS:           1.1,
		zipfV:           1.0,
		seed:            1,
		minSize:         16,
		maxSize:         2048,
		reconcileEvery:  16,
		invalidateEvery: 5_000,
	}
	m := pmet.New(prometheus.NewRegistry(), "paintcache", "test", nil)

	res, err := run(context.Background(), cfg, m, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatal(err)
	}
	if res.draws == 0 {
		t.Fatal("no draws issued")
	}
	if res.bytesUsed > cfg.budget {
		t.Fatalf("producer over budget after final reconcile: %d", res.bytesUsed)
	}
}
