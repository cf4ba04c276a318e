package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IshaanKalra2103/newsscraper/internal/domain"
)

func TestHarvestPreservesOrderAndDropsFailures(t *testing.T) {
	t.Parallel()

	targets := make([]Target, 0, 10)
	for i := range 10 {
		targets = append(targets, Target{URL: fmt.Sprintf("https://example.com/%d", i)})
	}

	delays := map[string]time.Duration{
		"https://example.com/0": 20 * time.Millisecond,
		"https://example.com/1": 10 * time.Millisecond,
	}
	visit := func(ctx context.Context, tg Target) (domain.Article, error) {
		if tg.URL == "https://example.com/3" || tg.URL == "https://example.com/7" {
			return domain.Article{}, errors.New("boom")
		}
		time.Sleep(delays[tg.URL])
		return domain.Article{URL: tg.URL, Title: tg.URL}, nil
	}

	got := NewHarvester(4, 0, nil).Harvest(context.Background(), "test", targets, visit)
	if len(got) != 8 {
		t.Fatalf("expected 8 articles, got %d", len(got))
	}

	want := []string{"0", "1", "2", "4", "5", "6", "8", "9"}
	for i, art := range got {
		if art.URL != "https://example.com/"+want[i] {
			t.Fatalf("position %d: got %s", i, art.URL)
		}
	}
}

func TestHarvestDropsPanickingTargets(t *testing.T) {
	t.Parallel()

	visit := func(ctx context.Context, tg Target) (domain.Article, error) {
		if tg.URL == "b" {
			panic("parse failed on " + tg.URL)
		}
		return domain.Article{URL: tg.URL}, nil
	}

	got := NewHarvester(2, 0, nil).Harvest(context.Background(), "test", []Target{{URL: "a"}, {URL: "b"}, {URL: "c"}}, visit)
	if len(got) != 2 || got[0].URL != "a" || got[1].URL != "c" {
		t.Fatalf("expected a and c to survive, got %+v", got)
	}
}

func TestHarvestBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var active, peak int32
	visit := func(ctx context.Context, tg Target) (domain.Article, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return domain.Article{URL: tg.URL}, nil
	}

	targets := make([]Target, 12)
	for i := range targets {
		targets[i] = Target{URL: fmt.Sprint(i)}
	}

	got := NewHarvester(3, 0, nil).Harvest(context.Background(), "test", targets, visit)
	if len(got) != 12 {
		t.Fatalf("expected 12 articles, got %d", len(got))
	}
	if peak > 3 {
		t.Fatalf("expected at most 3 concurrent visits, saw %d", peak)
	}
}

func TestHarvestStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := int32(0)
	visit := func(ctx context.Context, tg Target) (domain.Article, error) {
		atomic.AddInt32(&calls, 1)
		return domain.Article{URL: tg.URL}, nil
	}

	got := NewHarvester(2, 0, nil).Harvest(ctx, "test", []Target{{URL: "a"}, {URL: "b"}}, visit)
	if len(got) != 0 || atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("cancelled harvest should do no work, got %d articles and %d calls", len(got), calls)
	}
}
