package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/warebase/warehouse-backend/pkg/db/models"
	"github.com/warebase/warehouse-backend/pkg/enums"
	apperrors "github.com/warebase/warehouse-backend/pkg/errors"
	"github.com/warebase/warehouse-backend/pkg/logger"
)

// txRunner abstracts the transactional boundary (satisfied by *db.Client).
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier receives low-stock events after a qualifying ledger commit.
// Implementations must tolerate concurrent calls.
type Notifier interface {
	NotifyLowStock(ctx context.Context, unit models.InventoryUnit) error
}

// Service exposes the inventory ledger operations.
type Service interface {
	Reserve(ctx context.Context, input ReserveInput) (*models.InventoryUnit, error)
	Release(ctx context.Context, input ReleaseInput) (*models.InventoryUnit, error)
	Deduct(ctx context.Context, input DeductInput) (*models.InventoryUnit, error)
	Adjust(ctx context.Context, input AdjustInput) (*models.InventoryUnit, error)
	GetUnit(ctx context.Context, sku, binLocation string) (*models.InventoryUnit, error)
	GetBySKU(ctx context.Context, sku string) ([]models.InventoryUnit, error)
	History(ctx context.Context, filter HistoryFilter) (*HistoryPage, error)
}

// ReserveInput earmarks stock for an order.
type ReserveInput struct {
	SKU         string
	BinLocation string
	Quantity    int
	OrderID     uuid.UUID
}

// ReleaseInput returns earmarked stock to the available pool.
type ReleaseInput struct {
	SKU         string
	BinLocation string
	Quantity    int
	OrderID     uuid.UUID
}

// DeductInput removes stock physically shipped out.
type DeductInput struct {
	SKU         string
	BinLocation string
	Quantity    int
	OrderID     uuid.UUID
}

// AdjustInput applies a manual signed correction.
type AdjustInput struct {
	SKU         string
	BinLocation string
	Delta       int
	UserID      uuid.UUID
	Reason      string
}

// HistoryPage is one page of the transaction log plus the total match count.
type HistoryPage struct {
	Transactions []models.InventoryTransaction
	Total        int64
	Limit        int
	Offset       int
}

type service struct {
	repo     Repository
	runner   txRunner
	notifier Notifier
	logg     *logger.Logger
}

// NewService wires the ledger engine with its repository and transaction runner.
func NewService(repo Repository, runner txRunner, notifier Notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, runner: runner, notifier: notifier, logg: logg}, nil
}

func (s *service) Reserve(ctx context.Context, input ReserveInput) (*models.InventoryUnit, error) {
	if err := validateUnitKey(input.SKU, input.BinLocation); err != nil {
		return nil, err
	}
	if input.Quantity <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "quantity must be positive")
	}
	if input.OrderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id is required")
	}

	var updated *models.InventoryUnit
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		unit, err := repo.GetForUpdate(ctx, input.SKU, input.BinLocation)
		if err != nil {
			return mapUnitLookupErr(err)
		}

		if unit.Available() < input.Quantity {
			return apperrors.New(apperrors.CodeConflict, "insufficient available stock").
				WithDetails(map[string]any{
					"available": unit.Available(),
					"requested": input.Quantity,
				})
		}

		unit.Reserved += input.Quantity
		if err := repo.Save(ctx, unit); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "updating inventory unit")
		}

		orderID := input.OrderID
		txn := models.InventoryTransaction{
			TransactionRef: newTransactionRef(enums.InventoryTransactionReservation, orderID.String(), time.Now()),
			SKU:            unit.SKU,
			BinLocation:    unit.BinLocation,
			Type:           enums.InventoryTransactionReservation,
			Quantity:       input.Quantity,
			OrderID:        &orderID,
		}
		if err := repo.CreateTransaction(ctx, &txn); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "appending reservation transaction")
		}

		updated = unit
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Release(ctx context.Context, input ReleaseInput) (*models.InventoryUnit, error) {
	if err := validateUnitKey(input.SKU, input.BinLocation); err != nil {
		return nil, err
	}
	if input.Quantity <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "quantity must be positive")
	}
	if input.OrderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id is required")
	}

	var updated *models.InventoryUnit
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		unit, err := repo.GetForUpdate(ctx, input.SKU, input.BinLocation)
		if err != nil {
			return mapUnitLookupErr(err)
		}

		// A release larger than the outstanding reservation clamps at zero.
		released := input.Quantity
		if released > unit.Reserved {
			released = unit.Reserved
		}
		unit.Reserved -= released

		if err := repo.Save(ctx, unit); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "updating inventory unit")
		}

		orderID := input.OrderID
		txn := models.InventoryTransaction{
			TransactionRef: newTransactionRef(enums.InventoryTransactionCancellation, orderID.String(), time.Now()),
			SKU:            unit.SKU,
			BinLocation:    unit.BinLocation,
			Type:           enums.InventoryTransactionCancellation,
			Quantity:       released,
			OrderID:        &orderID,
		}
		if err := repo.CreateTransaction(ctx, &txn); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "appending cancellation transaction")
		}

		updated = unit
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Deduct(ctx context.Context, input DeductInput) (*models.InventoryUnit, error) {
	if err := validateUnitKey(input.SKU, input.BinLocation); err != nil {
		return nil, err
	}
	if input.Quantity <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "quantity must be positive")
	}
	if input.OrderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id is required")
	}

	var updated *models.InventoryUnit
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		unit, err := repo.GetForUpdate(ctx, input.SKU, input.BinLocation)
		if err != nil {
			return mapUnitLookupErr(err)
		}

		// Deduction checks on-hand, not available: shipping consumes stock
		// that was previously reserved.
		if unit.Quantity < input.Quantity {
			return apperrors.New(apperrors.CodeConflict, "insufficient on-hand stock").
				WithDetails(map[string]any{
					"on_hand":   unit.Quantity,
					"requested": input.Quantity,
				})
		}

		unit.Quantity -= input.Quantity
		unit.Reserved -= input.Quantity
		if unit.Reserved < 0 {
			unit.Reserved = 0
		}

		if err := repo.Save(ctx, unit); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "updating inventory unit")
		}

		orderID := input.OrderID
		txn := models.InventoryTransaction{
			TransactionRef: newTransactionRef(enums.InventoryTransactionDeduction, orderID.String(), time.Now()),
			SKU:            unit.SKU,
			BinLocation:    unit.BinLocation,
			Type:           enums.InventoryTransactionDeduction,
			Quantity:       -input.Quantity,
			OrderID:        &orderID,
		}
		if err := repo.CreateTransaction(ctx, &txn); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "appending deduction transaction")
		}

		updated = unit
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated.Quantity <= updated.MinThreshold {
		s.notifyLowStock(ctx, *updated)
	}
	return updated, nil
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.InventoryUnit, error) {
	if err := validateUnitKey(input.SKU, input.BinLocation); err != nil {
		return nil, err
	}
	if input.Delta == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "delta must be non-zero")
	}
	if input.UserID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "user id is required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "reason is required")
	}

	var updated *models.InventoryUnit
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		unit, err := repo.GetForUpdate(ctx, input.SKU, input.BinLocation)
		switch {
		case err == nil:
			newQuantity := unit.Quantity + input.Delta
			if newQuantity < 0 {
				return apperrors.New(apperrors.CodeConflict, "adjustment would drive quantity negative").
					WithDetails(map[string]any{
						"on_hand": unit.Quantity,
						"delta":   input.Delta,
					})
			}
			unit.Quantity = newQuantity
			if unit.Reserved > unit.Quantity {
				unit.Reserved = unit.Quantity
			}
			if err := repo.Save(ctx, unit); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "updating inventory unit")
			}

		case errors.Is(err, gorm.ErrRecordNotFound):
			if input.Delta < 0 {
				return apperrors.New(apperrors.CodeConflict, "adjustment would drive quantity negative").
					WithDetails(map[string]any{
						"on_hand": 0,
						"delta":   input.Delta,
					})
			}
			unit = &models.InventoryUnit{
				SKU:         input.SKU,
				BinLocation: input.BinLocation,
				Quantity:    input.Delta,
				Reserved:    0,
			}
			if err := repo.Create(ctx, unit); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "creating inventory unit")
			}

		default:
			return apperrors.Wrap(apperrors.CodeInternal, err, "loading inventory unit")
		}

		userID := input.UserID
		reason := strings.TrimSpace(input.Reason)
		txn := models.InventoryTransaction{
			TransactionRef: newTransactionRef(enums.InventoryTransactionAdjustment, userID.String(), time.Now()),
			SKU:            unit.SKU,
			BinLocation:    unit.BinLocation,
			Type:           enums.InventoryTransactionAdjustment,
			Quantity:       input.Delta,
			UserID:         &userID,
			Reason:         &reason,
		}
		if err := repo.CreateTransaction(ctx, &txn); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "appending adjustment transaction")
		}

		updated = unit
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) GetUnit(ctx context.Context, sku, binLocation string) (*models.InventoryUnit, error) {
	if err := validateUnitKey(sku, binLocation); err != nil {
		return nil, err
	}
	unit, err := s.repo.Get(ctx, sku, binLocation)
	if err != nil {
		return nil, mapUnitLookupErr(err)
	}
	return unit, nil
}

func (s *service) GetBySKU(ctx context.Context, sku string) ([]models.InventoryUnit, error) {
	if strings.TrimSpace(sku) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "sku is required")
	}
	units, err := s.repo.ListBySKU(ctx, sku)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing inventory units")
	}
	if len(units) == 0 {
		return nil, apperrors.New(apperrors.CodeNotFound, "no inventory units for sku")
	}
	return units, nil
}

func (s *service) History(ctx context.Context, filter HistoryFilter) (*HistoryPage, error) {
	if filter.Type != nil && !filter.Type.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid transaction type filter")
	}

	page := filter.Page.Normalize()
	filter.Page = page

	rows, total, err := s.repo.ListTransactions(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing inventory transactions")
	}
	return &HistoryPage{
		Transactions: rows,
		Total:        total,
		Limit:        page.Limit,
		Offset:       page.Offset,
	}, nil
}

// notifyLowStock hands the event off without blocking the caller. Failures
// are logged and never propagated to the ledger operation.
func (s *service) notifyLowStock(ctx context.Context, unit models.InventoryUnit) {
	if s.notifier == nil {
		return
	}
	notifyCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil && s.logg != nil {
				s.logg.Warn(notifyCtx, "low stock notifier panicked")
			}
		}()
		if err := s.notifier.NotifyLowStock(notifyCtx, unit); err != nil && s.logg != nil {
			logCtx := s.logg.WithFields(notifyCtx, map[string]any{
				"sku":          unit.SKU,
				"bin_location": unit.BinLocation,
			})
			s.logg.Error(logCtx, "low stock notification failed", err)
		}
	}()
}

func validateUnitKey(sku, binLocation string) error {
	if strings.TrimSpace(sku) == "" {
		return apperrors.New(apperrors.CodeValidation, "sku is required")
	}
	if strings.TrimSpace(binLocation) == "" {
		return apperrors.New(apperrors.CodeValidation, "bin location is required")
	}
	return nil
}

func mapUnitLookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.New(apperrors.CodeNotFound, "inventory unit not found")
	}
	return apperrors.Wrap(apperrors.CodeInternal, err, "loading inventory unit")
}

// newTransactionRef builds a unique reference encoding the operation type,
// the causal id (order or user), and the write timestamp.
func newTransactionRef(t enums.InventoryTransactionType, causalID string, now time.Time) string {
	causal := strings.TrimSpace(causalID)
	if causal == "" {
		causal = "NA"
	}
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s-%s-%d-%s", t.RefPrefix(), causal, now.UnixMilli(), suffix)
}
