package metrics

import (
	"testing"

	"suppliersync/internal/events"

	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncJob("items_raw", "succeeded")
		AddRecords("items", 10)
		IncSupplierCall("order_create", "ok")
		IncReconcile("missing_market_listing")
		IncHTTP("/api/v1/jobs")
	})
}

func TestSubscribeJobs(t *testing.T) {
	Register()
	bus := events.NewEventBus()
	SubscribeJobs(bus)

	assert.NotPanics(t, func() {
		bus.PublishJSON(events.EventJobSucceeded, events.JobEventPayload{JobType: "orders_raw", Status: "succeeded"})
		bus.PublishJSON(events.EventReconcileFailed, events.ReconcilePayload{Reason: "missing_seller_product_id"})
		bus.PublishJSON(events.EventOrderReconciled, events.ReconcilePayload{SupplierOrderID: "SO-1"})
	})

	// nil bus is a no-op
	SubscribeJobs(nil)
}
