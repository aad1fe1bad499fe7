package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/account-service/internal/core/domain"
	"github.com/99minutos/account-service/internal/pkg/permset"
)

// RequireRole admits requests whose token carries one of allowedRoles.
// Must run after Auth.
func RequireRole(allowedRoles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if _, ok := allowed[role]; !ok {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}

// RequireSystem admits requests whose token lists system among its
// permitted systems. This flat membership test is the only authorization
// rule the service evaluates. Must run after Auth.
func RequireSystem(system string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFromContext(c)
			if !ok || !permset.Contains(claims.PermittedSystems, system) {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
