package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"suppliersync/internal/database"
	"suppliersync/internal/events"
	"suppliersync/internal/models"
	"suppliersync/internal/supplier"

	"github.com/rs/zerolog"
)

// Failure reasons, one per stage of the lookup chain.
const (
	ReasonMissingSellerProduct = "missing_seller_product_id"
	ReasonMissingMarketListing = "missing_market_listing"
	ReasonMissingSupplierItem  = "missing_supplier_item_id"
	ReasonInvalidRecipient     = "invalid_recipient"
	ReasonSupplierCall         = "supplier_call_failed"
)

// SupplierOrders is the slice of the supplier client reconciliation needs.
type SupplierOrders interface {
	SupplierCode() string
	Account() string
	CreateOrder(ctx context.Context, req supplier.CreateOrderRequest) (*supplier.CreateOrderResponse, error)
	Replay(ctx context.Context, endpoint, requestBody string) (*supplier.CallResult, error)
}

// Result aggregates one reconciliation pass.
type Result struct {
	Processed int            `json:"processed"`
	Succeeded int            `json:"succeeded"`
	Skipped   int            `json:"skipped"`
	Failed    map[string]int `json:"failed"`
}

// Engine walks unreconciled market orders through the listing chain and
// places fulfillment orders with the supplier. Mapping failures are counted
// per stage and never stop the batch; only storage errors abort.
type Engine struct {
	db      *database.DB
	clients map[string]SupplierOrders
	bus     *events.EventBus
	log     zerolog.Logger
}

func NewEngine(db *database.DB, clients map[string]SupplierOrders, bus *events.EventBus, logger *zerolog.Logger) *Engine {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "reconcile").Logger()
	}
	return &Engine{db: db, clients: clients, bus: bus, log: log}
}

// orderPayload is the slice of the raw order json reconciliation reads.
type orderPayload struct {
	SellerProductID string           `json:"seller_product_id"`
	Quantity        int              `json:"quantity"`
	Recipient       models.Recipient `json:"recipient"`
	Items           []orderLine      `json:"items"`
}

type orderLine struct {
	SellerProductID string `json:"seller_product_id"`
	Quantity        int    `json:"quantity"`
}

// sellerProduct returns the product id and quantity: either from the flat
// fields or, for the nested payload shape, from the first line item.
func (p *orderPayload) sellerProduct() (string, int) {
	if p.SellerProductID != "" {
		return p.SellerProductID, p.Quantity
	}
	for _, line := range p.Items {
		if line.SellerProductID != "" {
			return line.SellerProductID, line.Quantity
		}
	}
	return "", 0
}

// Run reconciles up to limit unlinked orders for one supplier.
func (e *Engine) Run(ctx context.Context, supplierCode string, limit int) (*Result, error) {
	client, ok := e.clients[supplierCode]
	if !ok {
		return nil, fmt.Errorf("unknown supplier: %s", supplierCode)
	}

	orders, err := e.db.ListUnreconciledOrders(ctx, supplierCode, limit)
	if err != nil {
		return nil, err
	}

	res := &Result{Failed: make(map[string]int)}
	for i := range orders {
		order := &orders[i]
		res.Processed++

		// идемпотентность: уже слинкованный заказ не трогаем
		linked, err := e.db.GetOrderLink(ctx, order.SupplierCode, order.OrderKey)
		if err != nil {
			return res, err
		}
		if linked != nil {
			res.Skipped++
			continue
		}

		if err := e.reconcileOne(ctx, client, order, res); err != nil {
			return res, err
		}
	}

	e.log.Info().Str("supplier", supplierCode).
		Int("processed", res.Processed).Int("succeeded", res.Succeeded).
		Int("skipped", res.Skipped).Interface("failed", res.Failed).
		Msg("reconciliation pass finished")
	return res, nil
}

// reconcileOne runs the four-stage chain for a single order. A non-nil
// return means a storage failure; everything else is classified into res.
func (e *Engine) reconcileOne(ctx context.Context, client SupplierOrders, order *models.RawOrder, res *Result) error {
	var payload orderPayload
	if err := json.Unmarshal([]byte(order.Payload), &payload); err != nil {
		e.fail(order, res, ReasonMissingSellerProduct)
		return nil
	}
	sellerProductID, lineQuantity := payload.sellerProduct()
	if sellerProductID == "" {
		e.fail(order, res, ReasonMissingSellerProduct)
		return nil
	}

	link, err := e.db.GetProductLink(ctx, sellerProductID)
	if err != nil {
		return err
	}
	if link == nil {
		e.fail(order, res, ReasonMissingMarketListing)
		return nil
	}
	if link.SupplierItemCode == "" {
		e.fail(order, res, ReasonMissingSupplierItem)
		return nil
	}

	if err := payload.Recipient.Validate(); err != nil {
		e.log.Warn().Err(err).Str("order", order.OrderKey).Msg("recipient rejected")
		e.fail(order, res, ReasonInvalidRecipient)
		return nil
	}

	quantity := lineQuantity
	if quantity <= 0 {
		quantity = 1
	}
	req := supplier.CreateOrderRequest{
		MarketOrderKey: order.OrderKey,
		ItemCode:       link.SupplierItemCode,
		Quantity:       quantity,
		Recipient:      payload.Recipient,
	}
	reqBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode order request: %w", err)
	}

	resp, callErr := client.CreateOrder(ctx, req)

	entry := models.FetchLog{
		SupplierCode: order.SupplierCode,
		Account:      client.Account(),
		Endpoint:     models.EndpointOrderCreate,
		Request:      string(reqBody),
	}
	if callErr != nil {
		var statusErr *supplier.StatusError
		if errors.As(callErr, &statusErr) {
			entry.StatusCode = statusErr.Code
			entry.Response = statusErr.Body
		}
		msg := callErr.Error()
		entry.Error = &msg
	} else {
		entry.StatusCode = 200
		if encoded, err := json.Marshal(resp); err == nil {
			entry.Response = string(encoded)
		}
	}
	if err := e.db.InsertFetchLog(ctx, &entry); err != nil {
		return err
	}

	if callErr != nil {
		e.log.Error().Err(callErr).Str("order", order.OrderKey).Msg("supplier order creation failed")
		e.fail(order, res, ReasonSupplierCall)
		return nil
	}

	err = e.db.LinkSupplierOrder(ctx, models.SupplierOrder{
		SupplierOrderID: resp.SupplierOrderID,
		SupplierCode:    order.SupplierCode,
		Status:          resp.Status,
	}, order.OrderKey)
	if err != nil {
		return err
	}

	res.Succeeded++
	e.bus.PublishJSON(events.EventOrderReconciled, events.ReconcilePayload{
		SupplierCode:    order.SupplierCode,
		OrderKey:        order.OrderKey,
		SupplierOrderID: resp.SupplierOrderID,
	})
	return nil
}

func (e *Engine) fail(order *models.RawOrder, res *Result, reason string) {
	res.Failed[reason]++
	e.bus.PublishJSON(events.EventReconcileFailed, events.ReconcilePayload{
		SupplierCode: order.SupplierCode,
		OrderKey:     order.OrderKey,
		Reason:       reason,
	})
}
