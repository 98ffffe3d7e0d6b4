package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-admin-service/internal/api/dto"
	"github.com/spec-kit/user-admin-service/internal/service"
	apperrors "github.com/spec-kit/user-admin-service/pkg/util"
)

// AuthHandler exposes the admin login endpoint.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return malformedBody()
	}
	fields := map[string][]string{}
	if req.Email == "" {
		fields["email"] = []string{"The email field is required."}
	}
	if req.Password == "" {
		fields["password"] = []string{"The password field is required."}
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("validation failed", fields)
	}

	user, token, exp, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": fiber.Map{
				"id":    user.ID,
				"name":  user.Name,
				"email": user.Email,
				"role":  user.Role,
			},
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}
