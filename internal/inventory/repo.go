package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/warebase/warehouse-backend/pkg/db/models"
	"github.com/warebase/warehouse-backend/pkg/enums"
	"github.com/warebase/warehouse-backend/pkg/pagination"
)

// HistoryFilter narrows the transaction log query. Zero values mean "no filter".
type HistoryFilter struct {
	SKU     string
	OrderID *uuid.UUID
	Type    *enums.InventoryTransactionType
	Page    pagination.Params
}

// Repository manages persistence for inventory units and their transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, sku, binLocation string) (*models.InventoryUnit, error)
	GetForUpdate(ctx context.Context, sku, binLocation string) (*models.InventoryUnit, error)
	ListBySKU(ctx context.Context, sku string) ([]models.InventoryUnit, error)
	ListBySKUForUpdate(ctx context.Context, sku string) ([]models.InventoryUnit, error)
	DistinctSKUs(ctx context.Context) ([]string, error)
	Create(ctx context.Context, unit *models.InventoryUnit) error
	Save(ctx context.Context, unit *models.InventoryUnit) error
	CreateTransaction(ctx context.Context, txn *models.InventoryTransaction) error
	ListTransactions(ctx context.Context, filter HistoryFilter) ([]models.InventoryTransaction, int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, sku, binLocation string) (*models.InventoryUnit, error) {
	var unit models.InventoryUnit
	err := r.db.WithContext(ctx).
		Where("sku = ? AND bin_location = ?", sku, binLocation).
		First(&unit).Error
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *repository) GetForUpdate(ctx context.Context, sku, binLocation string) (*models.InventoryUnit, error) {
	var unit models.InventoryUnit
	err := r.lockingScope(ctx).
		Where("sku = ? AND bin_location = ?", sku, binLocation).
		First(&unit).Error
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *repository) ListBySKU(ctx context.Context, sku string) ([]models.InventoryUnit, error) {
	var units []models.InventoryUnit
	err := r.db.WithContext(ctx).
		Where("sku = ?", sku).
		Order("bin_location ASC").
		Find(&units).Error
	if err != nil {
		return nil, err
	}
	return units, nil
}

func (r *repository) ListBySKUForUpdate(ctx context.Context, sku string) ([]models.InventoryUnit, error) {
	var units []models.InventoryUnit
	err := r.lockingScope(ctx).
		Where("sku = ?", sku).
		Order("bin_location ASC").
		Find(&units).Error
	if err != nil {
		return nil, err
	}
	return units, nil
}

func (r *repository) DistinctSKUs(ctx context.Context) ([]string, error) {
	var skus []string
	err := r.db.WithContext(ctx).
		Model(&models.InventoryUnit{}).
		Distinct("sku").
		Order("sku ASC").
		Pluck("sku", &skus).Error
	if err != nil {
		return nil, err
	}
	return skus, nil
}

func (r *repository) Create(ctx context.Context, unit *models.InventoryUnit) error {
	if unit.ID == uuid.Nil {
		unit.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(unit).Error
}

func (r *repository) Save(ctx context.Context, unit *models.InventoryUnit) error {
	return r.db.WithContext(ctx).Save(unit).Error
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.InventoryTransaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, filter HistoryFilter) ([]models.InventoryTransaction, int64, error) {
	page := filter.Page.Normalize()

	query := r.db.WithContext(ctx).Model(&models.InventoryTransaction{})
	if filter.SKU != "" {
		query = query.Where("sku = ?", filter.SKU)
	}
	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.InventoryTransaction
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// lockingScope adds FOR UPDATE on Postgres. SQLite (tests) serializes writers
// at the database level, so the clause is skipped there.
func (r *repository) lockingScope(ctx context.Context) *gorm.DB {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return query
}
