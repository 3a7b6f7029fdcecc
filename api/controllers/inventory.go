package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warebase/warehouse-backend/api/middleware"
	"github.com/warebase/warehouse-backend/api/responses"
	"github.com/warebase/warehouse-backend/api/validators"
	"github.com/warebase/warehouse-backend/internal/inventory"
	"github.com/warebase/warehouse-backend/internal/reconcile"
	"github.com/warebase/warehouse-backend/pkg/db/models"
	"github.com/warebase/warehouse-backend/pkg/enums"
	pkgerrors "github.com/warebase/warehouse-backend/pkg/errors"
	"github.com/warebase/warehouse-backend/pkg/logger"
	"github.com/warebase/warehouse-backend/pkg/pagination"
)

type movementRequest struct {
	SKU         string `json:"sku" validate:"required"`
	BinLocation string `json:"bin_location" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,min=1"`
	OrderID     string `json:"order_id" validate:"required,uuid"`
}

type adjustRequest struct {
	SKU         string `json:"sku" validate:"required"`
	BinLocation string `json:"bin_location" validate:"required"`
	Delta       int    `json:"delta" validate:"required"`
	Reason      string `json:"reason" validate:"required"`
}

type unitView struct {
	SKU          string    `json:"sku"`
	BinLocation  string    `json:"bin_location"`
	Quantity     int       `json:"quantity"`
	Reserved     int       `json:"reserved"`
	Available    int       `json:"available"`
	MinThreshold int       `json:"min_threshold"`
	LastUpdated  time.Time `json:"last_updated"`
}

type transactionView struct {
	TransactionRef string    `json:"transaction_ref"`
	SKU            string    `json:"sku"`
	BinLocation    string    `json:"bin_location"`
	Type           string    `json:"type"`
	Quantity       int       `json:"quantity"`
	OrderID        *string   `json:"order_id,omitempty"`
	UserID         *string   `json:"user_id,omitempty"`
	Reason         *string   `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type historyView struct {
	Transactions []transactionView `json:"transactions"`
	Total        int64             `json:"total"`
	Limit        int               `json:"limit"`
	Offset       int               `json:"offset"`
}

func toUnitView(unit models.InventoryUnit) unitView {
	return unitView{
		SKU:          unit.SKU,
		BinLocation:  unit.BinLocation,
		Quantity:     unit.Quantity,
		Reserved:     unit.Reserved,
		Available:    unit.Available(),
		MinThreshold: unit.MinThreshold,
		LastUpdated:  unit.UpdatedAt,
	}
}

func toTransactionView(txn models.InventoryTransaction) transactionView {
	view := transactionView{
		TransactionRef: txn.TransactionRef,
		SKU:            txn.SKU,
		BinLocation:    txn.BinLocation,
		Type:           string(txn.Type),
		Quantity:       txn.Quantity,
		Reason:         txn.Reason,
		CreatedAt:      txn.CreatedAt,
	}
	if txn.OrderID != nil {
		id := txn.OrderID.String()
		view.OrderID = &id
	}
	if txn.UserID != nil {
		id := txn.UserID.String()
		view.UserID = &id
	}
	return view
}

// ReserveStock earmarks stock against an order.
func ReserveStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return movementHandler(svc, logg, func(r *http.Request, input movementRequest, orderID uuid.UUID) (*models.InventoryUnit, error) {
		return svc.Reserve(r.Context(), inventory.ReserveInput{
			SKU:         input.SKU,
			BinLocation: input.BinLocation,
			Quantity:    input.Quantity,
			OrderID:     orderID,
		})
	})
}

// ReleaseStock returns a reservation to the available pool.
func ReleaseStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return movementHandler(svc, logg, func(r *http.Request, input movementRequest, orderID uuid.UUID) (*models.InventoryUnit, error) {
		return svc.Release(r.Context(), inventory.ReleaseInput{
			SKU:         input.SKU,
			BinLocation: input.BinLocation,
			Quantity:    input.Quantity,
			OrderID:     orderID,
		})
	})
}

// DeductStock removes shipped stock from the unit.
func DeductStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return movementHandler(svc, logg, func(r *http.Request, input movementRequest, orderID uuid.UUID) (*models.InventoryUnit, error) {
		return svc.Deduct(r.Context(), inventory.DeductInput{
			SKU:         input.SKU,
			BinLocation: input.BinLocation,
			Quantity:    input.Quantity,
			OrderID:     orderID,
		})
	})
}

func movementHandler(svc inventory.Service, logg *logger.Logger, apply func(*http.Request, movementRequest, uuid.UUID) (*models.InventoryUnit, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "service unavailable"))
			return
		}

		var input movementRequest
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := uuid.Parse(input.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order_id must be a uuid"))
			return
		}

		unit, err := apply(r, input, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toUnitView(*unit))
	}
}

// AdjustStock posts a manual signed correction. The acting user comes from
// the auth context, never the body.
func AdjustStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "service unavailable"))
			return
		}

		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user identity"))
			return
		}

		var input adjustRequest
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		unit, err := svc.Adjust(r.Context(), inventory.AdjustInput{
			SKU:         input.SKU,
			BinLocation: input.BinLocation,
			Delta:       input.Delta,
			UserID:      userID,
			Reason:      input.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toUnitView(*unit))
	}
}

// GetUnit returns a single sku/bin inventory unit.
func GetUnit(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "service unavailable"))
			return
		}

		unit, err := svc.GetUnit(r.Context(), chi.URLParam(r, "sku"), chi.URLParam(r, "bin"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toUnitView(*unit))
	}
}

// GetBySKU returns every bin holding the sku.
func GetBySKU(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "service unavailable"))
			return
		}

		units, err := svc.GetBySKU(r.Context(), chi.URLParam(r, "sku"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]unitView, 0, len(units))
		for _, unit := range units {
			views = append(views, toUnitView(unit))
		}
		responses.WriteSuccess(w, views)
	}
}

// ListTransactions pages through the ledger, newest first.
func ListTransactions(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseQueryUUID(r, "order_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := inventory.HistoryFilter{
			SKU:     r.URL.Query().Get("sku"),
			OrderID: orderID,
			Page:    pagination.Params{Limit: limit, Offset: offset},
		}
		if raw := r.URL.Query().Get("type"); raw != "" {
			parsed, err := enums.ParseInventoryTransactionType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction type filter"))
				return
			}
			filter.Type = &parsed
		}

		page, err := svc.History(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]transactionView, 0, len(page.Transactions))
		for _, txn := range page.Transactions {
			views = append(views, toTransactionView(txn))
		}
		responses.WriteSuccess(w, historyView{
			Transactions: views,
			Total:        page.Total,
			Limit:        page.Limit,
			Offset:       page.Offset,
		})
	}
}

// ReconcileSKU runs the read-only drift check for one sku.
func ReconcileSKU(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "service unavailable"))
			return
		}

		report, err := svc.Reconcile(r.Context(), chi.URLParam(r, "sku"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}
