package worker

import (
	"context"
	"encoding/json"
	"time"

	"suppliersync/internal/models"
	"suppliersync/internal/supplier"

	"github.com/rs/zerolog"
)

// Normalizer cleans rich text before storage.
type Normalizer func(string) string

// DetailLister is the bulk detail call of the supplier API.
type DetailLister func(ctx context.Context, keys []string) ([]supplier.ItemDetail, error)

// BatchDetailFetcher resolves key batches into raw item rows. The bulk call
// has no partial-batch semantics upstream, so retries always replay the
// whole batch; upserts make the replay harmless.
type BatchDetailFetcher struct {
	retry     RetryPolicy
	batchSize int
	normalize Normalizer
	log       zerolog.Logger
}

func NewBatchDetailFetcher(retry RetryPolicy, batchSize int, normalize Normalizer, log zerolog.Logger) *BatchDetailFetcher {
	if batchSize <= 0 || batchSize > models.DefaultBatchSize {
		batchSize = models.DefaultBatchSize
	}
	if normalize == nil {
		normalize = func(s string) string { return s }
	}
	return &BatchDetailFetcher{
		retry:     retry,
		batchSize: batchSize,
		normalize: normalize,
		log:       log,
	}
}

func (f *BatchDetailFetcher) BatchSize() int { return f.batchSize }

// FetchBatch resolves one key batch (len <= BatchSize). Records missing
// their natural key are dropped and counted as skipped; the batch goes on.
func (f *BatchDetailFetcher) FetchBatch(ctx context.Context, fetch DetailLister, supplierCode string, keys []string) (items []models.RawItem, skipped int, err error) {
	var details []supplier.ItemDetail
	err = f.retry.Do(ctx, f.log, "fetch item details", func(ctx context.Context) error {
		var inner error
		details, inner = fetch(ctx, keys)
		return inner
	})
	if err != nil {
		return nil, 0, err
	}

	now := time.Now()
	for _, d := range details {
		if d.ItemCode == "" {
			skipped++
			f.log.Warn().Str("supplier", supplierCode).Msg("detail record without item code, skipped")
			continue
		}

		payload := string(d.Raw)
		if payload == "" {
			encoded, encErr := json.Marshal(d)
			if encErr != nil {
				skipped++
				f.log.Warn().Err(encErr).Str("item", d.ItemCode).Msg("detail record not encodable, skipped")
				continue
			}
			payload = string(encoded)
		}

		items = append(items, models.RawItem{
			SupplierCode: supplierCode,
			ItemCode:     d.ItemCode,
			Name:         f.normalize(d.Name),
			Price:        d.Price,
			UpdatedAt:    d.UpdatedAt,
			Payload:      payload,
			FetchedAt:    now,
		})
	}

	return items, skipped, nil
}

// Chunk splits keys into batch-sized chunks.
func (f *BatchDetailFetcher) Chunk(keys []string) [][]string {
	var chunks [][]string
	for len(keys) > 0 {
		n := f.batchSize
		if n > len(keys) {
			n = len(keys)
		}
		chunks = append(chunks, keys[:n])
		keys = keys[n:]
	}
	return chunks
}
