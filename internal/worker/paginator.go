package worker

import (
	"context"

	"suppliersync/internal/supplier"

	"github.com/rs/zerolog"
)

// KeyLister fetches one page of natural keys for a cursor. Call spacing is
// the client's job; the paginator only drives the cursor.
type KeyLister func(ctx context.Context, cursor string) (*supplier.KeyPage, error)

// PageVisit consumes one deduplicated page of keys. next is the cursor that
// covers those keys: persisting it is safe only once every key of the page
// has been stored. When the page was cut by the key ceiling, next stays at
// the cursor of the previous page so the cut tail is listed again on resume.
type PageVisit func(ctx context.Context, keys []string, next string) error

// KeyBatch is the outcome of one listing pass. LastCursor never runs ahead
// of the collected keys: on an early stop (ceilings, error) it points at a
// position from which every uncollected key is listed again.
type KeyBatch struct {
	Keys       []string
	LastCursor string
	Pages      int
	Exhausted  bool // upstream reported no further pages
}

// CursorPaginator walks a cursor-paged listing.
type CursorPaginator struct {
	retry RetryPolicy
	log   zerolog.Logger
}

func NewCursorPaginator(retry RetryPolicy, log zerolog.Logger) *CursorPaginator {
	return &CursorPaginator{retry: retry, log: log}
}

// Walk gathers up to maxKeys keys starting at startCursor, fetching at most
// maxPages pages and invoking visit for every page. Keys already seen in
// this pass are dropped so an overlap window does not inflate the batch. On
// error the partial batch is still returned so the caller can checkpoint
// what it managed to store.
func (p *CursorPaginator) Walk(ctx context.Context, list KeyLister, startCursor string, maxKeys, maxPages int, visit PageVisit) (*KeyBatch, error) {
	batch := &KeyBatch{LastCursor: startCursor}
	seen := make(map[string]struct{})
	cursor := startCursor

	for batch.Pages < maxPages {
		var page *supplier.KeyPage
		err := p.retry.Do(ctx, p.log, "list keys", func(ctx context.Context) error {
			var inner error
			page, inner = list(ctx, cursor)
			return inner
		})
		if err != nil {
			return batch, err
		}
		batch.Pages++

		var keys []string
		for _, key := range page.Keys {
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}

		// хвост страницы, не влезший в потолок, отрезаем, но курсор тогда
		// не двигаем: отрезанные ключи перечитаются при resume
		truncated := false
		if room := maxKeys - len(batch.Keys); len(keys) > room {
			keys = keys[:room]
			truncated = true
		}
		batch.Keys = append(batch.Keys, keys...)

		next := batch.LastCursor
		if !truncated && page.NextCursor != "" {
			next = page.NextCursor
		}

		if visit != nil {
			if err := visit(ctx, keys, next); err != nil {
				return batch, err
			}
		}
		batch.LastCursor = next

		if !truncated && !page.HasNextPage {
			batch.Exhausted = true
			break
		}
		if truncated || len(batch.Keys) >= maxKeys {
			p.log.Info().Int("keys", len(batch.Keys)).Int("max", maxKeys).Msg("key ceiling reached, stopping listing")
			break
		}
		cursor = page.NextCursor
	}

	return batch, nil
}
