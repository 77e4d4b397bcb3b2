package reconcile

import (
	"context"
	"errors"
	"time"

	"suppliersync/internal/models"
	"suppliersync/internal/supplier"
	"suppliersync/internal/worker"
)

// RetryResult aggregates a log-replay pass.
type RetryResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// replayable endpoints: invoice upload and cancellation. Order creation is
// never replayed from the log because reconciliation re-drives it from the
// order row itself.
func replayable(endpoint string) bool {
	return endpoint == models.EndpointInvoiceUpload || endpoint == models.EndpointOrderCancel
}

// RetryFetchLogs replays failed logged calls with extra attempts under the
// backoff policy. Every attempt appends a fresh fetch_logs row; the original
// row is left untouched.
func (e *Engine) RetryFetchLogs(ctx context.Context, ids []int64, extraAttempts int, policy worker.RetryPolicy) (*RetryResult, error) {
	if extraAttempts <= 0 {
		extraAttempts = 1
	}

	logs, err := e.db.GetFetchLogs(ctx, ids)
	if err != nil {
		return nil, err
	}

	res := &RetryResult{}
	for i := range logs {
		entry := &logs[i]
		res.Processed++

		if !entry.Failed() || !replayable(entry.Endpoint) {
			res.Skipped++
			continue
		}
		client, ok := e.clients[entry.SupplierCode]
		if !ok {
			e.log.Warn().Str("supplier", entry.SupplierCode).Int64("log", entry.ID).Msg("no client for logged supplier, skipping")
			res.Skipped++
			continue
		}

		ok, err := e.replayWithRetries(ctx, client, entry, extraAttempts, policy)
		if err != nil {
			return res, err
		}
		if ok {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}

	return res, nil
}

func (e *Engine) replayWithRetries(ctx context.Context, client SupplierOrders, original *models.FetchLog, attempts int, policy worker.RetryPolicy) (bool, error) {
	for i := 1; i <= attempts; i++ {
		result, callErr := client.Replay(ctx, original.Endpoint, original.Request)

		attempt := models.FetchLog{
			SupplierCode: original.SupplierCode,
			Account:      original.Account,
			Endpoint:     original.Endpoint,
			Attempt:      original.Attempt + i,
			Request:      original.Request,
		}
		if callErr != nil {
			var statusErr *supplier.StatusError
			if errors.As(callErr, &statusErr) {
				attempt.StatusCode = statusErr.Code
				attempt.Response = statusErr.Body
			}
			msg := callErr.Error()
			attempt.Error = &msg
		} else {
			attempt.StatusCode = result.StatusCode
			attempt.Response = result.Body
		}
		if err := e.db.InsertFetchLog(ctx, &attempt); err != nil {
			return false, err
		}

		if callErr == nil {
			return true, nil
		}
		if !supplier.IsRetryable(callErr) {
			e.log.Warn().Err(callErr).Int64("log", original.ID).Msg("replay failed fatally")
			return false, nil
		}
		if i == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(policy.NextDelay(i)):
		}
	}

	return false, nil
}
