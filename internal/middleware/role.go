package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Roles recognised by the storage API.  LAB_MANAGER may mutate the
// location tree and dispose samples; LAB_TECH may assign and move them.
const (
	RoleLabManager = "LAB_MANAGER"
	RoleLabTech    = "LAB_TECH"
)

// RequireRole enforces that the authenticated caller holds one of the
// given roles, as stored in the JWT "role" claim by JWTAuth.  When auth
// is disabled (no secret configured) no role is set and enforcement is
// skipped, so local development keeps full access.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			v := c.Get("role")
			if v == nil {
				return next(c)
			}
			role, ok := v.(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
