package serverutils

import (
	"context"
	"strings"

	"casebook/internal/backend"

	"github.com/gofiber/fiber/v2"
)

const (
	LocalUser        = "user"
	LocalUserID      = "user_id"
	LocalAccessToken = "access_token"
)

// TokenVerifier resolves a bearer token to its user.
type TokenVerifier interface {
	GetUser(ctx context.Context, accessToken string) (*backend.User, error)
}

// JwtMiddleware accepts requests carrying a bearer token the backend still honours.
func JwtMiddleware(verifier TokenVerifier) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get(fiber.HeaderAuthorization)
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}

		user, err := verifier.GetUser(ctx.UserContext(), tokenStr)
		if err != nil {
			if backend.IsAuth(err) {
				return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
			}
			return err
		}

		ctx.Locals(LocalUser, user)
		ctx.Locals(LocalUserID, user.Id)
		ctx.Locals(LocalAccessToken, tokenStr)
		return ctx.Next()
	}
}

// AccessToken returns the bearer token accepted by JwtMiddleware, or "".
func AccessToken(ctx *fiber.Ctx) string {
	token, _ := ctx.Locals(LocalAccessToken).(string)
	return token
}

// CurrentUser returns the user resolved by JwtMiddleware, or nil.
func CurrentUser(ctx *fiber.Ctx) *backend.User {
	user, _ := ctx.Locals(LocalUser).(*backend.User)
	return user
}
