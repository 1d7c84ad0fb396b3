package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"padelfit/config"
	"padelfit/models"
	"padelfit/utils"
)

// Protected requires a valid bearer token and loads the caller's profile
// into the request context.
func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		claims, err := utils.ParseJWTToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		var profile models.Profile
		if err := config.DB.First(&profile, claims.UserID).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "User not found",
			})
		}

		c.Locals("profile", &profile)
		c.Locals("userID", profile.ID)
		return c.Next()
	}
}

// OptionalAuth loads the caller's profile when a valid token is present
// and continues anonymously otherwise. Used by AI endpoints that work for
// logged-out visitors but persist results for logged-in ones.
func OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return c.Next()
		}

		claims, err := utils.ParseJWTToken(token)
		if err != nil {
			return c.Next()
		}

		var profile models.Profile
		if err := config.DB.First(&profile, claims.UserID).Error; err != nil {
			return c.Next()
		}

		c.Locals("profile", &profile)
		c.Locals("userID", profile.ID)
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			return "", fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization format")
		}
		return tokenParts[1], nil
	}

	if token := c.Cookies("access_token"); token != "" {
		return token, nil
	}
	return "", fiber.NewError(fiber.StatusUnauthorized, "Authorization required")
}

// ProfileFromContext returns the authenticated profile, or nil for
// anonymous requests under OptionalAuth.
func ProfileFromContext(c *fiber.Ctx) *models.Profile {
	profile, _ := c.Locals("profile").(*models.Profile)
	return profile
}
