package worker

import (
	"context"
	"strings"
	"testing"
	"time"

	"suppliersync/internal/supplier"

	"github.com/rs/zerolog"
)

func TestFetchBatchNormalizesAndConverts(t *testing.T) {
	fetch := func(ctx context.Context, keys []string) ([]supplier.ItemDetail, error) {
		return []supplier.ItemDetail{
			{ItemCode: "W1", Name: "  Widget  ", Price: 100, UpdatedAt: time.Now(), Raw: []byte(`{"a":1}`)},
			{ItemCode: "", Name: "broken"},
			{ItemCode: "W2", Name: "Gadget", Price: 200},
		}, nil
	}

	f := NewBatchDetailFetcher(RetryPolicy{MaxAttempts: 1}, 100, strings.TrimSpace, zerolog.Nop())
	items, skipped, err := f.FetchBatch(context.Background(), fetch, "ownerclan", []string{"W1", "W2"})
	if err != nil {
		t.Fatalf("fetch batch: %v", err)
	}

	if skipped != 1 {
		t.Fatalf("expected 1 skipped record, got %d", skipped)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Name != "Widget" {
		t.Fatalf("normalizer not applied, got %q", items[0].Name)
	}
	if items[0].Payload != `{"a":1}` {
		t.Fatalf("raw payload not preserved: %q", items[0].Payload)
	}
	if items[1].Payload == "" {
		t.Fatalf("payload must be synthesized when raw is absent")
	}
	if items[0].SupplierCode != "ownerclan" {
		t.Fatalf("supplier code not set")
	}
}

func TestFetchBatchWholeBatchRetry(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, keys []string) ([]supplier.ItemDetail, error) {
		calls++
		if calls == 1 {
			return nil, &supplier.StatusError{Code: 503, Body: "down"}
		}
		if len(keys) != 2 {
			t.Fatalf("retry must replay the whole batch, got %d keys", len(keys))
		}
		return []supplier.ItemDetail{{ItemCode: "W1"}, {ItemCode: "W2"}}, nil
	}

	f := NewBatchDetailFetcher(RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond}, 100, nil, zerolog.Nop())
	items, _, err := f.FetchBatch(context.Background(), fetch, "ownerclan", []string{"W1", "W2"})
	if err != nil {
		t.Fatalf("fetch batch: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestFetcherChunk(t *testing.T) {
	f := NewBatchDetailFetcher(RetryPolicy{}, 2, nil, zerolog.Nop())

	chunks := f.Chunk([]string{"a", "b", "c", "d", "e"})
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 2 || len(chunks[2]) != 1 {
		t.Fatalf("unexpected chunk sizes: %v", chunks)
	}

	if got := f.Chunk(nil); got != nil {
		t.Fatalf("expected no chunks for empty input, got %v", got)
	}
}

func TestFetcherBatchSizeCeiling(t *testing.T) {
	f := NewBatchDetailFetcher(RetryPolicy{}, 100000, nil, zerolog.Nop())
	if f.BatchSize() != 100 {
		t.Fatalf("batch size must be capped at 100, got %d", f.BatchSize())
	}
	f = NewBatchDetailFetcher(RetryPolicy{}, 0, nil, zerolog.Nop())
	if f.BatchSize() != 100 {
		t.Fatalf("zero batch size must default to 100, got %d", f.BatchSize())
	}
}
