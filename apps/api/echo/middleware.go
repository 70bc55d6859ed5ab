package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core/user"
)

// roleMiddleware only lets through users having a role starting with one of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextClaims(ctx); err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// adminMiddleware requires one of the given admin roles, or any admin role when none is given.
func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	if len(roles) == 0 {
		roles = []string{user.RoleAdmin}
	}
	return roleMiddleware(roles...)
}
