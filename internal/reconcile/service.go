package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"github.com/warebase/warehouse-backend/internal/inventory"
	"github.com/warebase/warehouse-backend/internal/orders"
	"github.com/warebase/warehouse-backend/pkg/db/models"
	apperrors "github.com/warebase/warehouse-backend/pkg/errors"
	"github.com/warebase/warehouse-backend/pkg/logger"
)

// BinDiscrepancy breaks the SKU-level comparison down per bin location.
type BinDiscrepancy struct {
	BinLocation string `json:"bin_location"`
	Expected    int    `json:"expected"`
	Actual      int    `json:"actual"`
	Difference  int    `json:"difference"`
}

// Report compares open order commitments against available stock for one SKU.
type Report struct {
	SKU           string           `json:"sku"`
	Expected      int              `json:"expected"`
	Actual        int              `json:"actual"`
	Difference    int              `json:"difference"`
	Discrepancies []BinDiscrepancy `json:"discrepancies"`
}

// Service runs read-only drift detection between orders and the ledger.
type Service interface {
	Reconcile(ctx context.Context, sku string) (*Report, error)
	ReconcileAll(ctx context.Context) ([]Report, error)
}

type service struct {
	inventory inventory.Repository
	orders    orders.Repository
	logg      *logger.Logger
}

// NewService wires the reconciliation engine with its read models.
func NewService(inventoryRepo inventory.Repository, ordersRepo orders.Repository, logg *logger.Logger) (Service, error) {
	if inventoryRepo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{inventory: inventoryRepo, orders: ordersRepo, logg: logg}, nil
}

func (s *service) Reconcile(ctx context.Context, sku string) (*Report, error) {
	if strings.TrimSpace(sku) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "sku is required")
	}

	expected, err := s.orders.OpenQuantityBySKU(ctx, sku)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "summing open order quantities")
	}

	units, err := s.inventory.ListBySKU(ctx, sku)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing inventory units")
	}

	actual := 0
	for _, unit := range units {
		actual += unit.Available()
	}

	report := &Report{
		SKU:           sku,
		Expected:      expected,
		Actual:        actual,
		Difference:    actual - expected,
		Discrepancies: apportion(units, expected),
	}
	return report, nil
}

func (s *service) ReconcileAll(ctx context.Context) ([]Report, error) {
	skus, err := s.inventory.DistinctSKUs(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing skus")
	}

	// One broken SKU must not mask drift everywhere else: keep sweeping and
	// hand back the reports that succeeded alongside the combined error.
	reports := make([]Report, 0, len(skus))
	var errs []error
	for _, sku := range skus {
		report, err := s.Reconcile(ctx, sku)
		if err != nil {
			errs = append(errs, fmt.Errorf("sku %s: %w", sku, err))
			continue
		}
		reports = append(reports, *report)
	}
	return reports, multierr.Combine(errs...)
}

// apportion spreads the expected commitment across bins greedily, largest
// available first, so each bin's expected share is a quantity that bin
// could plausibly serve. Commitment exceeding total availability stays
// unassigned and shows up in the SKU-level difference.
func apportion(units []models.InventoryUnit, expected int) []BinDiscrepancy {
	sorted := make([]models.InventoryUnit, len(units))
	copy(sorted, units)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Available() > sorted[j].Available()
	})

	remaining := expected
	shares := make(map[string]int, len(sorted))
	for _, unit := range sorted {
		if remaining <= 0 {
			break
		}
		share := unit.Available()
		if share > remaining {
			share = remaining
		}
		if share < 0 {
			share = 0
		}
		shares[unit.BinLocation] = share
		remaining -= share
	}

	out := make([]BinDiscrepancy, 0, len(units))
	for _, unit := range units {
		available := unit.Available()
		expectedShare := shares[unit.BinLocation]
		out = append(out, BinDiscrepancy{
			BinLocation: unit.BinLocation,
			Expected:    expectedShare,
			Actual:      available,
			Difference:  available - expectedShare,
		})
	}
	return out
}
