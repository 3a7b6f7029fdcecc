package lowstock

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/warebase/warehouse-backend/pkg/db/models"
	"github.com/warebase/warehouse-backend/pkg/enums"
	"github.com/warebase/warehouse-backend/pkg/logger"
	"github.com/warebase/warehouse-backend/pkg/outbox"
	"github.com/warebase/warehouse-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier queues low-stock events through the outbox so the publisher can
// ship them to Pub/Sub. It runs outside the ledger transaction; a failure
// here never unwinds the deduction that triggered it.
type Notifier struct {
	runner txRunner
	emit   *outbox.Service
	logg   *logger.Logger
}

func NewNotifier(runner txRunner, emit *outbox.Service, logg *logger.Logger) (*Notifier, error) {
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emit == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &Notifier{runner: runner, emit: emit, logg: logg}, nil
}

// NotifyLowStock writes one low_stock outbox event for the unit. Repeated
// threshold crossings are collapsed onto the oldest unpublished event.
func (n *Notifier) NotifyLowStock(ctx context.Context, unit models.InventoryUnit) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventLowStock,
		AggregateType: enums.AggregateInventoryUnit,
		AggregateID:   unit.ID,
		Version:       1,
		Data: payloads.LowStockEvent{
			SKU:          unit.SKU,
			BinLocation:  unit.BinLocation,
			Quantity:     unit.Quantity,
			MinThreshold: unit.MinThreshold,
		},
	}
	return n.runner.WithTx(ctx, func(tx *gorm.DB) error {
		return n.emit.EmitIfNotExists(ctx, tx, event)
	})
}
