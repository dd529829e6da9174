package handler

import (
	"strings"

	"go-pos-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService service.AuthService
}

func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login handles user authentication
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req service.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	response, err := h.authService.Login(c.UserContext(), &req, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(response)
}

// ValidateToken checks a bearer token without going through RequireAuth.
// POST /api/v1/auth/validate-token
func (h *AuthHandler) ValidateToken(c *fiber.Ctx) error {
	token := strings.TrimSpace(strings.TrimPrefix(c.Get("Authorization"), "Bearer "))
	if token == "" {
		var body struct {
			Token string `json:"token"`
		}
		if err := c.BodyParser(&body); err == nil {
			token = body.Token
		}
	}

	user, err := h.authService.Authenticate(c.UserContext(), token)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"valid": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"valid": true, "user": user.ToResponse()})
}

// Me returns the caller's profile.
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	me, err := h.authService.Me(c.UserContext(), getUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": me})
}

// ChangePassword updates the caller's password.
// POST /api/v1/auth/change-password
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	var req service.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if err := h.authService.ChangePassword(c.UserContext(), getUserID(c), &req); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Password updated successfully"})
}

// Logout invalidates every token issued to the caller.
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.authService.Logout(c.UserContext(), getUserID(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}
