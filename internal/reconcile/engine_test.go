package reconcile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"suppliersync/internal/database"
	"suppliersync/internal/events"
	"suppliersync/internal/models"
	"suppliersync/internal/supplier"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reconcile.db")
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	db, err := database.NewDB(path, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeClient struct {
	code        string
	createResp  *supplier.CreateOrderResponse
	createErr   error
	createCalls int
	createReqs  []supplier.CreateOrderRequest

	replayResults []error
	replayCalls   int
}

func (f *fakeClient) SupplierCode() string { return f.code }
func (f *fakeClient) Account() string      { return "acc1" }

func (f *fakeClient) CreateOrder(ctx context.Context, req supplier.CreateOrderRequest) (*supplier.CreateOrderResponse, error) {
	f.createCalls++
	f.createReqs = append(f.createReqs, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createResp, nil
}

func (f *fakeClient) Replay(ctx context.Context, endpoint, requestBody string) (*supplier.CallResult, error) {
	f.replayCalls++
	if f.replayCalls <= len(f.replayResults) {
		if err := f.replayResults[f.replayCalls-1]; err != nil {
			return nil, err
		}
	}
	return &supplier.CallResult{StatusCode: 200, Body: `{"ok":true}`}, nil
}

func newEngine(db *database.DB, client *fakeClient) *Engine {
	return NewEngine(db, map[string]SupplierOrders{client.code: client}, events.NewEventBus(), nil)
}

func seedOrder(t *testing.T, db *database.DB, orderKey string, payload interface{}) {
	t.Helper()
	encoded, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, db.UpsertOrder(context.Background(), models.RawOrder{
		SupplierCode:  "ownerclan",
		OrderKey:      orderKey,
		MarketOrderID: "M-" + orderKey,
		Status:        "paid",
		UpdatedAt:     time.Now(),
		Payload:       string(encoded),
		FetchedAt:     time.Now(),
	}))
}

func validPayload() orderPayload {
	return orderPayload{
		SellerProductID: "SP-1",
		Quantity:        2,
		Recipient: models.Recipient{
			Name:       "Kim",
			Phone:      "+82-10-0000-0000",
			Address:    "Seoul",
			PostalCode: "04524",
		},
	}
}

func TestReconcileSuccess(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedOrder(t, db, "O1", validPayload())
	require.NoError(t, db.UpsertProductLink(ctx, models.ProductLink{
		SellerProductID:  "SP-1",
		ProductID:        42,
		SupplierCode:     "ownerclan",
		SupplierItemCode: "W1",
	}))

	client := &fakeClient{code: "ownerclan", createResp: &supplier.CreateOrderResponse{SupplierOrderID: "SO-1", Status: "accepted"}}
	engine := newEngine(db, client)

	res, err := engine.Run(ctx, "ownerclan", 10)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Succeeded)
	assert.Empty(t, res.Failed)
	assert.Equal(t, 1, client.createCalls)

	linked, err := db.GetOrderLink(ctx, "ownerclan", "O1")
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, "SO-1", *linked)

	n, _ := db.CountRows(ctx, "fetch_logs")
	assert.Equal(t, 1, n)
	n, _ = db.CountRows(ctx, "supplier_orders")
	assert.Equal(t, 1, n)
}

func TestReconcileLineItemPayload(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// вложенная форма payload: seller_product_id лежит в items, не в корне
	seedOrder(t, db, "O-lines", map[string]interface{}{
		"items": []map[string]interface{}{
			{"seller_product_id": "SP-1", "quantity": 3},
			{"seller_product_id": "SP-other", "quantity": 1},
		},
		"recipient": models.Recipient{
			Name:       "Kim",
			Phone:      "+82-10-0000-0000",
			Address:    "Seoul",
			PostalCode: "04524",
		},
	})
	require.NoError(t, db.UpsertProductLink(ctx, models.ProductLink{
		SellerProductID:  "SP-1",
		ProductID:        42,
		SupplierCode:     "ownerclan",
		SupplierItemCode: "W1",
	}))

	client := &fakeClient{code: "ownerclan", createResp: &supplier.CreateOrderResponse{SupplierOrderID: "SO-9", Status: "accepted"}}
	engine := newEngine(db, client)

	res, err := engine.Run(ctx, "ownerclan", 10)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Succeeded)
	assert.Empty(t, res.Failed)

	// заказ ушел с кодом и количеством из первой строки
	require.Len(t, client.createReqs, 1)
	assert.Equal(t, "W1", client.createReqs[0].ItemCode)
	assert.Equal(t, 3, client.createReqs[0].Quantity)
}

func TestReconcileStageClassification(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// нет seller_product_id в payload
	seedOrder(t, db, "O-no-sp", map[string]string{"something": "else"})

	// есть seller_product_id, но листинг неизвестен
	p := validPayload()
	p.SellerProductID = "SP-unknown"
	seedOrder(t, db, "O-no-listing", p)

	// листинг без кода поставщика
	p = validPayload()
	p.SellerProductID = "SP-no-item"
	seedOrder(t, db, "O-no-item", p)
	require.NoError(t, db.UpsertProductLink(ctx, models.ProductLink{SellerProductID: "SP-no-item", ProductID: 1, SupplierCode: "ownerclan"}))

	// получатель без адреса
	p = validPayload()
	p.Recipient.Address = ""
	seedOrder(t, db, "O-bad-recipient", p)
	require.NoError(t, db.UpsertProductLink(ctx, models.ProductLink{SellerProductID: "SP-1", ProductID: 2, SupplierCode: "ownerclan", SupplierItemCode: "W1"}))

	client := &fakeClient{code: "ownerclan", createResp: &supplier.CreateOrderResponse{SupplierOrderID: "SO-X"}}
	engine := newEngine(db, client)

	res, err := engine.Run(ctx, "ownerclan", 10)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, 0, res.Succeeded)
	assert.Equal(t, 1, res.Failed[ReasonMissingSellerProduct])
	assert.Equal(t, 1, res.Failed[ReasonMissingMarketListing])
	assert.Equal(t, 1, res.Failed[ReasonMissingSupplierItem])
	assert.Equal(t, 1, res.Failed[ReasonInvalidRecipient])
	assert.Equal(t, 0, client.createCalls)

	// ни одного вызова не было, значит и лога быть не должно
	n, _ := db.CountRows(ctx, "fetch_logs")
	assert.Equal(t, 0, n)
}

func TestReconcileSupplierCallFailure(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedOrder(t, db, "O1", validPayload())
	require.NoError(t, db.UpsertProductLink(ctx, models.ProductLink{SellerProductID: "SP-1", ProductID: 42, SupplierCode: "ownerclan", SupplierItemCode: "W1"}))

	client := &fakeClient{code: "ownerclan", createErr: &supplier.StatusError{Code: 500, Body: "internal"}}
	engine := newEngine(db, client)

	res, err := engine.Run(ctx, "ownerclan", 10)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed[ReasonSupplierCall])
	assert.Equal(t, 0, res.Succeeded)

	logs, err := db.ListFailedFetchLogs(ctx, "ownerclan", time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.EndpointOrderCreate, logs[0].Endpoint)
	assert.Equal(t, 500, logs[0].StatusCode)
	require.NotNil(t, logs[0].Error)

	// заказ остался нерасцепленным и попадет в следующий проход
	linked, _ := db.GetOrderLink(ctx, "ownerclan", "O1")
	assert.Nil(t, linked)
}

func TestReconcileIdempotentSkip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedOrder(t, db, "O1", validPayload())
	require.NoError(t, db.UpsertProductLink(ctx, models.ProductLink{SellerProductID: "SP-1", ProductID: 42, SupplierCode: "ownerclan", SupplierItemCode: "W1"}))

	client := &fakeClient{code: "ownerclan", createResp: &supplier.CreateOrderResponse{SupplierOrderID: "SO-1", Status: "accepted"}}
	engine := newEngine(db, client)

	res, err := engine.Run(ctx, "ownerclan", 10)
	require.NoError(t, err)
	require.Equal(t, 1, res.Succeeded)

	// повторный проход не создает второй заказ у поставщика
	res, err = engine.Run(ctx, "ownerclan", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, 1, client.createCalls)
}

func TestReconcileUnknownSupplier(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, map[string]SupplierOrders{}, nil, nil)

	_, err := engine.Run(context.Background(), "nope", 10)
	assert.Error(t, err)
}
