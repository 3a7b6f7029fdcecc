package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/warebase/warehouse-backend/internal/inventory"
	"github.com/warebase/warehouse-backend/internal/reconcile"
	pkgAuth "github.com/warebase/warehouse-backend/pkg/auth"
	"github.com/warebase/warehouse-backend/pkg/config"
	"github.com/warebase/warehouse-backend/pkg/db/models"
	"github.com/warebase/warehouse-backend/pkg/enums"
	"github.com/warebase/warehouse-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubInventoryService struct{}

func (stubInventoryService) Reserve(ctx context.Context, input inventory.ReserveInput) (*models.InventoryUnit, error) {
	return &models.InventoryUnit{SKU: input.SKU, BinLocation: input.BinLocation}, nil
}

func (stubInventoryService) Release(ctx context.Context, input inventory.ReleaseInput) (*models.InventoryUnit, error) {
	return &models.InventoryUnit{SKU: input.SKU, BinLocation: input.BinLocation}, nil
}

func (stubInventoryService) Deduct(ctx context.Context, input inventory.DeductInput) (*models.InventoryUnit, error) {
	return &models.InventoryUnit{SKU: input.SKU, BinLocation: input.BinLocation}, nil
}

func (stubInventoryService) Adjust(ctx context.Context, input inventory.AdjustInput) (*models.InventoryUnit, error) {
	return &models.InventoryUnit{SKU: input.SKU, BinLocation: input.BinLocation, Quantity: input.Delta}, nil
}

func (stubInventoryService) GetUnit(ctx context.Context, sku, bin string) (*models.InventoryUnit, error) {
	return &models.InventoryUnit{SKU: sku, BinLocation: bin}, nil
}

func (stubInventoryService) GetBySKU(ctx context.Context, sku string) ([]models.InventoryUnit, error) {
	return []models.InventoryUnit{{SKU: sku, BinLocation: "A-01"}}, nil
}

func (stubInventoryService) History(ctx context.Context, filter inventory.HistoryFilter) (*inventory.HistoryPage, error) {
	return &inventory.HistoryPage{Limit: filter.Page.Limit, Offset: filter.Page.Offset}, nil
}

type stubReconcileService struct{}

func (stubReconcileService) Reconcile(ctx context.Context, sku string) (*reconcile.Report, error) {
	return &reconcile.Report{SKU: sku}, nil
}

func (stubReconcileService) ReconcileAll(ctx context.Context) ([]reconcile.Report, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(cfg, logg, stubPinger{}, stubPinger{}, stubInventoryService{}, stubReconcileService{})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.WarehouseRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthEndpointsArePublic(t *testing.T) {
	router := newTestRouter(testConfig())

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d", path, resp.Code)
		}
	}
}

func TestInventoryGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/transactions", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestInventoryGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.WarehouseRoleOperator))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for transactions got %d", resp.Code)
	}
}

func TestAdjustRequiresSupervisorRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	body := `{"sku":"SKU-1","bin_location":"A-01","delta":5,"reason":"cycle count"}`

	operator := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/adjust", strings.NewReader(body))
	operator.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.WarehouseRoleOperator))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, operator)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for operator adjust got %d", resp.Code)
	}

	supervisor := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/adjust", strings.NewReader(body))
	supervisor.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.WarehouseRoleSupervisor))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, supervisor)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for supervisor adjust got %d", resp.Code)
	}
}

func TestUnitRoutesResolveURLParams(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	token := buildToken(t, cfg, enums.WarehouseRoleOperator)

	for _, path := range []string{
		"/api/v1/inventory/sku/SKU-1",
		"/api/v1/inventory/SKU-1/A-01",
		"/api/v1/inventory/reconcile/SKU-1",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d", path, resp.Code)
		}
	}
}
