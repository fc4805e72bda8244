package auth

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/civic-issues/internal/domain"
	apperrors "github.com/spec-kit/civic-issues/pkg/util"
)

// RequireRole restricts a route to callers holding one of the allowed
// roles. Must run after AuthMiddleware. The service layer re-checks the
// same conditions per operation.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		caller, ok := CallerFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[caller.Role]; !exists {
			return apperrors.NewForbidden(fmt.Sprintf("role '%s' is not authorized to access this resource", caller.Role))
		}
		return c.Next()
	}
}
