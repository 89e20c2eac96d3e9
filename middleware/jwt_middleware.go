package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"ganttly/access"
	"ganttly/config"
	"ganttly/models"
	"ganttly/utils"
)

// ShareTokenHeader carries a bearer share-link token. The token may also be
// supplied as the share_token query parameter.
const ShareTokenHeader = "X-Share-Token"

// Protected requires a valid JWT and an active user. Routes behind it can
// assume c.Locals("user") is set.
func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization required",
			})
		}

		user, claims, err := authenticate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		c.Locals("user", user)
		c.Locals("userID", user.ID)
		c.Locals("sessionID", claims.SessionID)
		setPrincipal(c, &user.ID)
		return c.Next()
	}
}

// Principal resolves the request's identity without requiring one. A valid
// JWT yields a user id, a share token rides along either way, and a request
// with neither still proceeds — the access resolver denies it downstream.
// An invalid JWT is still rejected outright rather than downgraded.
func Principal() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var userID *uint
		if token := bearerToken(c); token != "" {
			user, claims, err := authenticate(token)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": err.Error(),
				})
			}
			c.Locals("user", user)
			c.Locals("userID", user.ID)
			c.Locals("sessionID", claims.SessionID)
			userID = &user.ID
		}
		setPrincipal(c, userID)
		return c.Next()
	}
}

// GetPrincipal returns the principal resolved by Principal or Protected.
func GetPrincipal(c *fiber.Ctx) access.Principal {
	if p, ok := c.Locals("principal").(access.Principal); ok {
		return p
	}
	return access.Principal{}
}

func setPrincipal(c *fiber.Ctx, userID *uint) {
	shareToken := c.Get(ShareTokenHeader)
	if shareToken == "" {
		shareToken = c.Query("share_token")
	}
	c.Locals("principal", access.Principal{UserID: userID, ShareToken: shareToken})
}

func bearerToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) == 2 && tokenParts[0] == "Bearer" {
			return tokenParts[1]
		}
		return ""
	}
	return c.Cookies("access_token")
}

func authenticate(token string) (*models.User, *utils.Claims, error) {
	claims, err := utils.ParseJWTToken(token)
	if err != nil {
		return nil, nil, errInvalidToken
	}

	var user models.User
	if err := config.DB.First(&user, claims.UserID).Error; err != nil {
		return nil, nil, errInvalidToken
	}
	if !user.IsActive {
		return nil, nil, errInactiveAccount
	}
	if claims.TokenVersion != user.TokenVersion {
		return nil, nil, errInvalidToken
	}
	return &user, claims, nil
}

var (
	errInvalidToken    = fiberError("Invalid or expired token")
	errInactiveAccount = fiberError("Account is not active")
)

type fiberError string

func (e fiberError) Error() string { return string(e) }
