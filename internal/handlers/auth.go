package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rescueroute/rescueroute-backend/internal/apperrors"
	"github.com/rescueroute/rescueroute-backend/internal/middleware"
	"github.com/rescueroute/rescueroute-backend/internal/models"
	"github.com/rescueroute/rescueroute-backend/internal/storage"
)

const tokenTTL = 24 * time.Hour

// AuthHandler issues tokens for registered users. Credential checking is out
// of scope for the lifecycle engine; a deployment fronts this with its real
// identity provider.
type AuthHandler struct {
	store storage.Store
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(store storage.Store) *AuthHandler {
	return &AuthHandler{store: store}
}

// Register creates a user and returns a bearer token
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req struct {
		Name         string `json:"name"`
		Email        string `json:"email"`
		Organization string `json:"organization"`
		Role         string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Name == "" || req.Email == "" {
		return fail(c, fmt.Errorf("%w: name and email are required", apperrors.ErrValidation))
	}
	if req.Role != models.RoleDonor && req.Role != models.RoleNGO {
		return fail(c, fmt.Errorf("%w: role must be %s or %s", apperrors.ErrValidation, models.RoleDonor, models.RoleNGO))
	}

	user, err := h.store.CreateUser(&models.User{
		Name:         req.Name,
		Email:        req.Email,
		Organization: req.Organization,
		Role:         req.Role,
	})
	if err != nil {
		return fail(c, err)
	}

	token, err := middleware.IssueToken(user, tokenTTL)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":  user,
		"token": token,
	})
}

// Login returns a fresh token for an existing user
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user, err := h.store.GetUserByEmail(req.Email)
	if err != nil {
		return fail(c, err)
	}

	token, err := middleware.IssueToken(user, tokenTTL)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"user":  user,
		"token": token,
	})
}
