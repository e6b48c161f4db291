package middleware

import (
	"strings"

	"github.com/dealroom/backend/internal/auth"
	"github.com/dealroom/backend/internal/config"
	"github.com/dealroom/backend/internal/http/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const CtxPartyID = "party_id"

// AuthMiddleware resolves the acting party from a bearer token. Without
// AUTH_REQUIRED a missing header is let through anonymously; a present but
// bad token is always rejected.
func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			if cfg.AuthRequired {
				return unauthorized(c, "missing authorization header")
			}
			return c.Next()
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return unauthorized(c, "invalid authorization format")
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return unauthorized(c, "invalid or expired token")
		}

		c.Locals(CtxPartyID, claims.PartyID)
		return c.Next()
	}
}

// GetPartyID returns the acting party, or nil for anonymous requests.
func GetPartyID(c *fiber.Ctx) *uuid.UUID {
	id, ok := c.Locals(CtxPartyID).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return nil
	}
	return &id
}

func unauthorized(c *fiber.Ctx, msg string) error {
	reqID, _ := c.Locals(CtxRequestID).(string)
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: msg, RequestID: reqID})
}
