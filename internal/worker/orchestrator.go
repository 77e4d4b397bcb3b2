package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"suppliersync/internal/database"
	"suppliersync/internal/metrics"
	"suppliersync/internal/models"
	"suppliersync/internal/supplier"

	"github.com/rs/zerolog"
)

// SupplierAPI is the slice of the supplier client the pipelines need.
type SupplierAPI interface {
	SupplierCode() string
	ListItemKeys(ctx context.Context, from, to time.Time, cursor string, pageSize int) (*supplier.KeyPage, error)
	FetchItemDetails(ctx context.Context, keys []string) ([]supplier.ItemDetail, error)
	ListOrders(ctx context.Context, from, to time.Time, cursor string, pageSize int) (*supplier.OrderPage, error)
	ListQnA(ctx context.Context, from, to time.Time, cursor string, pageSize int) (*supplier.QnAPage, error)
	ListCategories(ctx context.Context, cursor string, pageSize int) (*supplier.CategoryPage, error)
}

// TokenInvalidator drops a cached supplier token after a 401.
type TokenInvalidator interface {
	Invalidate(ctx context.Context, supplierCode string) error
}

// Features is the explicit feature selection injected at construction.
type Features struct {
	BatchSize int
	// LegacyOrderPipeline commits every order row in its own transaction
	// instead of checkpoint batches, как делал старый раскатанный вариант.
	LegacyOrderPipeline bool
}

// Orchestrator dispatches a job to its pipeline. The four record kinds share
// one paged pipeline parameterized by a small strategy; items additionally
// run the two-phase key/detail flow.
type Orchestrator struct {
	db        *database.DB
	clients   map[string]SupplierAPI
	tokens    TokenInvalidator
	retry     RetryPolicy
	features  Features
	normalize Normalizer
	log       zerolog.Logger
}

func NewOrchestrator(db *database.DB, clients map[string]SupplierAPI, tokens TokenInvalidator, retry RetryPolicy, features Features, normalize Normalizer, logger *zerolog.Logger) *Orchestrator {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "orchestrator").Logger()
	}
	if normalize == nil {
		normalize = func(s string) string { return s }
	}
	return &Orchestrator{
		db:        db,
		clients:   clients,
		tokens:    tokens,
		retry:     retry,
		features:  features,
		normalize: normalize,
		log:       log,
	}
}

// Run executes one job to completion. The returned error becomes the job's
// last_error.
func (o *Orchestrator) Run(ctx context.Context, job *models.SyncJob) error {
	client, ok := o.clients[job.SupplierCode]
	if !ok {
		return fmt.Errorf("unknown supplier: %s", job.SupplierCode)
	}

	log := o.log.With().Str("job", job.ID).Str("supplier", job.SupplierCode).Str("type", job.JobType).Logger()

	var err error
	switch job.JobType {
	case models.JobItemsRaw:
		err = o.runItems(ctx, job, client, log)
	case models.JobOrdersRaw:
		err = o.runPaged(ctx, job, o.orderStrategy(client), log)
	case models.JobQnARaw:
		err = o.runPaged(ctx, job, o.qnaStrategy(client), log)
	case models.JobCategoriesRaw:
		err = o.runPaged(ctx, job, o.categoryStrategy(client), log)
	default:
		err = fmt.Errorf("unknown job type: %s", job.JobType)
	}

	if errors.Is(err, supplier.ErrAuthExpired) && o.tokens != nil {
		if invErr := o.tokens.Invalidate(ctx, job.SupplierCode); invErr != nil {
			log.Error().Err(invErr).Msg("failed to invalidate cached token")
		}
	}

	return err
}

// resolveWindow computes the sync window and starting cursor from explicit
// params, falling back to the stored watermark minus the overlap.
func (o *Orchestrator) resolveWindow(ctx context.Context, job *models.SyncJob) (from, to time.Time, cursor string, prior *models.SyncState, err error) {
	prior, err = o.db.GetSyncState(ctx, job.SupplierCode, job.JobType)
	if err != nil {
		return from, to, "", nil, fmt.Errorf("load sync state: %w", err)
	}

	to = time.Now()
	if job.Params.To != nil {
		to = *job.Params.To
	}

	switch {
	case job.Params.From != nil:
		from = *job.Params.From
	case prior != nil && !prior.LastSyncedAt.IsZero():
		from = prior.LastSyncedAt.Add(-job.Params.Overlap())
	}

	cursor = job.Params.Cursor
	if cursor == "" && prior != nil {
		cursor = prior.LastCursor
	}

	return from, to, cursor, prior, nil
}

func (o *Orchestrator) runItems(ctx context.Context, job *models.SyncJob, client SupplierAPI, log zerolog.Logger) error {
	from, to, cursor, prior, err := o.resolveWindow(ctx, job)
	if err != nil {
		return err
	}

	st := &models.SyncState{SupplierCode: job.SupplierCode, SyncType: job.JobType, LastCursor: cursor}
	if prior != nil {
		st.LastSyncedAt = prior.LastSyncedAt
	}

	paginator := NewCursorPaginator(o.retry, log)
	fetcher := NewBatchDetailFetcher(o.retry, o.features.BatchSize, o.normalize, log)

	var writes []database.RowWrite
	skipped := 0
	flush := func() error {
		if len(writes) == 0 {
			return nil
		}
		job.Progress += len(writes)
		if err := o.db.CommitBatch(ctx, job, st, writes); err != nil {
			job.Progress -= len(writes)
			return fmt.Errorf("checkpoint: %w", err)
		}
		metrics.AddRecords("items", len(writes))
		writes = nil
		return nil
	}

	// листинг и bulk-детали идут вперемешку, постранично: st.LastCursor
	// двигается только когда все ключи страницы уже лежат в writes, так что
	// любой чекпоинт сохраняет курсор не дальше закоммиченных записей
	batch, walkErr := paginator.Walk(ctx, func(ctx context.Context, cur string) (*supplier.KeyPage, error) {
		return client.ListItemKeys(ctx, from, to, cur, job.Params.PageSize)
	}, cursor, job.Params.MaxKeys, job.Params.MaxPages, func(ctx context.Context, keys []string, next string) error {
		for _, chunk := range fetcher.Chunk(keys) {
			items, skip, err := fetcher.FetchBatch(ctx, client.FetchItemDetails, job.SupplierCode, chunk)
			if err != nil {
				return fmt.Errorf("detail fetch: %w", err)
			}
			skipped += skip
			for _, it := range items {
				writes = append(writes, database.ItemWrite(it))
			}
		}
		st.LastCursor = next
		if len(writes) >= job.Params.CheckpointEvery {
			return flush()
		}
		return nil
	})
	if walkErr != nil {
		// фиксируем уже собранное; курсор остался позади несохраненных ключей
		if ckErr := flush(); ckErr != nil {
			log.Error().Err(ckErr).Msg("failed to flush before aborting")
		} else if ckErr := o.db.CommitBatch(ctx, job, st, nil); ckErr != nil {
			log.Error().Err(ckErr).Msg("failed to checkpoint cursor after failure")
		}
		return walkErr
	}

	log.Info().Int("keys", len(batch.Keys)).Int("pages", batch.Pages).Bool("exhausted", batch.Exhausted).Msg("key listing done")

	// watermark двигаем только когда листинг дошёл до конца окна
	if batch.Exhausted {
		st.LastSyncedAt = to
		st.LastCursor = ""
	}
	if err := flush(); err != nil {
		return err
	}
	if err := o.db.CommitBatch(ctx, job, st, nil); err != nil {
		return fmt.Errorf("final checkpoint: %w", err)
	}

	log.Info().Int("upserts", job.Progress).Int("skipped", skipped).Msg("items sync finished")
	return nil
}

// pageRecords is one decoded page of a direct pipeline.
type pageRecords struct {
	writes  []database.RowWrite
	skipped int
	next    string
	hasNext bool
}

// pageStrategy is what distinguishes the direct pipelines from each other.
type pageStrategy struct {
	kind     string
	windowed bool
	perRowTx bool
	fetch    func(ctx context.Context, from, to time.Time, cursor string, pageSize int) (*pageRecords, error)
}

func (o *Orchestrator) runPaged(ctx context.Context, job *models.SyncJob, strat pageStrategy, log zerolog.Logger) error {
	from, to, cursor, prior, err := o.resolveWindow(ctx, job)
	if err != nil {
		return err
	}

	st := &models.SyncState{SupplierCode: job.SupplierCode, SyncType: job.JobType, LastCursor: cursor}
	if prior != nil {
		st.LastSyncedAt = prior.LastSyncedAt
	}

	checkpointEvery := job.Params.CheckpointEvery
	if strat.perRowTx {
		checkpointEvery = 1
	}

	var writes []database.RowWrite
	skipped := 0
	flush := func() error {
		if len(writes) == 0 {
			return nil
		}
		job.Progress += len(writes)
		if err := o.db.CommitBatch(ctx, job, st, writes); err != nil {
			job.Progress -= len(writes)
			return fmt.Errorf("checkpoint: %w", err)
		}
		metrics.AddRecords(strat.kind, len(writes))
		writes = nil
		return nil
	}

	exhausted := false
	for page := 0; page < job.Params.MaxPages; page++ {
		var recs *pageRecords
		err := o.retry.Do(ctx, log, "list "+strat.kind, func(ctx context.Context) error {
			var inner error
			recs, inner = strat.fetch(ctx, from, to, st.LastCursor, job.Params.PageSize)
			return inner
		})
		if err != nil {
			if ckErr := flush(); ckErr != nil {
				log.Error().Err(ckErr).Msg("failed to flush before aborting")
			}
			return fmt.Errorf("listing %s: %w", strat.kind, err)
		}

		skipped += recs.skipped
		for _, wr := range recs.writes {
			writes = append(writes, wr)
			if len(writes) >= checkpointEvery {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		// курсор двигаем после того, как вся страница легла в writes
		if recs.next != "" {
			st.LastCursor = recs.next
		}

		if !recs.hasNext {
			exhausted = true
			break
		}
	}

	if exhausted {
		if strat.windowed {
			st.LastSyncedAt = to
		}
		st.LastCursor = ""
	}
	if err := flush(); err != nil {
		return err
	}
	if err := o.db.CommitBatch(ctx, job, st, nil); err != nil {
		return fmt.Errorf("final checkpoint: %w", err)
	}

	log.Info().Int("upserts", job.Progress).Int("skipped", skipped).Msg("sync finished")
	return nil
}

func (o *Orchestrator) orderStrategy(client SupplierAPI) pageStrategy {
	code := client.SupplierCode()
	return pageStrategy{
		kind:     "orders",
		windowed: true,
		perRowTx: o.features.LegacyOrderPipeline,
		fetch: func(ctx context.Context, from, to time.Time, cursor string, pageSize int) (*pageRecords, error) {
			page, err := client.ListOrders(ctx, from, to, cursor, pageSize)
			if err != nil {
				return nil, err
			}
			recs := &pageRecords{next: page.NextCursor, hasNext: page.HasNextPage}
			now := time.Now()
			for _, r := range page.Records {
				if r.OrderKey == "" {
					recs.skipped++
					continue
				}
				recs.writes = append(recs.writes, database.OrderWrite(models.RawOrder{
					SupplierCode:  code,
					OrderKey:      r.OrderKey,
					MarketOrderID: r.MarketOrderID,
					Status:        r.Status,
					UpdatedAt:     r.UpdatedAt,
					Payload:       string(r.Raw),
					FetchedAt:     now,
				}))
			}
			return recs, nil
		},
	}
}

func (o *Orchestrator) qnaStrategy(client SupplierAPI) pageStrategy {
	code := client.SupplierCode()
	return pageStrategy{
		kind:     "qna",
		windowed: true,
		fetch: func(ctx context.Context, from, to time.Time, cursor string, pageSize int) (*pageRecords, error) {
			page, err := client.ListQnA(ctx, from, to, cursor, pageSize)
			if err != nil {
				return nil, err
			}
			recs := &pageRecords{next: page.NextCursor, hasNext: page.HasNextPage}
			now := time.Now()
			for _, r := range page.Records {
				if r.QnAKey == "" {
					recs.skipped++
					continue
				}
				recs.writes = append(recs.writes, database.QnAWrite(models.RawQnA{
					SupplierCode: code,
					QnAKey:       r.QnAKey,
					ItemCode:     r.ItemCode,
					UpdatedAt:    r.UpdatedAt,
					Payload:      string(r.Raw),
					FetchedAt:    now,
				}))
			}
			return recs, nil
		},
	}
}

func (o *Orchestrator) categoryStrategy(client SupplierAPI) pageStrategy {
	code := client.SupplierCode()
	return pageStrategy{
		kind: "categories",
		// дерево категорий всегда ходим целиком, окна у него нет
		windowed: false,
		fetch: func(ctx context.Context, _, _ time.Time, cursor string, pageSize int) (*pageRecords, error) {
			page, err := client.ListCategories(ctx, cursor, pageSize)
			if err != nil {
				return nil, err
			}
			recs := &pageRecords{next: page.NextCursor, hasNext: page.HasNextPage}
			now := time.Now()
			for _, r := range page.Records {
				if r.CategoryKey == "" {
					recs.skipped++
					continue
				}
				recs.writes = append(recs.writes, database.CategoryWrite(models.RawCategory{
					SupplierCode: code,
					CategoryKey:  r.CategoryKey,
					Name:         r.Name,
					ParentKey:    r.ParentKey,
					UpdatedAt:    r.UpdatedAt,
					Payload:      string(r.Raw),
					FetchedAt:    now,
				}))
			}
			return recs, nil
		},
	}
}
