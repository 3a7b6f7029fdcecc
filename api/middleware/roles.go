package middleware

import (
	"net/http"

	"github.com/warebase/warehouse-backend/api/responses"
	"github.com/warebase/warehouse-backend/pkg/enums"
	pkgerrors "github.com/warebase/warehouse-backend/pkg/errors"
	"github.com/warebase/warehouse-backend/pkg/logger"
)

// RequireAdjuster gates manual adjustment routes to roles allowed to post them.
func RequireAdjuster(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, err := enums.ParseWarehouseRole(RoleFromContext(r.Context()))
			if err != nil || !role.CanAdjust() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role may not post adjustments"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
