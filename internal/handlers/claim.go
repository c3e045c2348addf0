package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rescueroute/rescueroute-backend/internal/middleware"
	"github.com/rescueroute/rescueroute-backend/internal/services"
)

// ClaimHandler handles claim lifecycle requests
type ClaimHandler struct {
	lifecycle *services.LifecycleService
}

// NewClaimHandler creates a new claim handler
func NewClaimHandler(lifecycle *services.LifecycleService) *ClaimHandler {
	return &ClaimHandler{lifecycle: lifecycle}
}

// CreateClaim handles a receiver claiming an available listing
func (h *ClaimHandler) CreateClaim(c *fiber.Ctx) error {
	var req struct {
		ListingID  string     `json:"listing_id"`
		Message    string     `json:"message"`
		PickupTime *time.Time `json:"pickup_time"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	claim, err := h.lifecycle.CreateClaim(req.ListingID, middleware.CallerID(c), req.Message, req.PickupTime)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"claim": claim,
	})
}

// GetMyClaims returns the receiver's claims
func (h *ClaimHandler) GetMyClaims(c *fiber.Ctx) error {
	claims, err := h.lifecycle.ListReceiverClaims(middleware.CallerID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"claims": claims,
		"count":  len(claims),
	})
}

// GetReceivedClaims returns claims made against the donor's listings
func (h *ClaimHandler) GetReceivedClaims(c *fiber.Ctx) error {
	claims, err := h.lifecycle.ListReceivedClaims(middleware.CallerID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"claims": claims,
		"count":  len(claims),
	})
}

// GetClaim retrieves a claim, visible to its receiver and the listing's donor
func (h *ClaimHandler) GetClaim(c *fiber.Ctx) error {
	claim, err := h.lifecycle.GetClaim(c.Params("id"), middleware.CallerID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"claim": claim,
	})
}

// AcceptClaim accepts a pending claim. The verification code rides on the
// response so the donor can hand it to the receiver at pickup; the claim's
// JSON never carries it.
func (h *ClaimHandler) AcceptClaim(c *fiber.Ctx) error {
	claim, err := h.lifecycle.AcceptClaim(c.Params("id"), middleware.CallerID(c))
	if err != nil {
		return fail(c, err)
	}

	code := ""
	if claim.VerificationCode != nil {
		code = *claim.VerificationCode
	}
	return c.JSON(fiber.Map{
		"claim":             claim,
		"verification_code": code,
	})
}

// RejectClaim rejects a pending claim
func (h *ClaimHandler) RejectClaim(c *fiber.Ctx) error {
	var req struct {
		Reason string `json:"reason"`
	}
	// Body is optional here
	_ = c.BodyParser(&req)

	claim, err := h.lifecycle.RejectClaim(c.Params("id"), middleware.CallerID(c), req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"claim": claim,
	})
}

// CompleteClaim marks an accepted claim completed without a code check
func (h *ClaimHandler) CompleteClaim(c *fiber.Ctx) error {
	claim, err := h.lifecycle.CompleteClaim(c.Params("id"), middleware.CallerID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"claim": claim,
	})
}

// VerifyPickup completes an accepted claim against the submitted code
func (h *ClaimHandler) VerifyPickup(c *fiber.Ctx) error {
	var req struct {
		VerificationCode string `json:"verification_code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	claim, err := h.lifecycle.VerifyPickup(c.Params("id"), middleware.CallerID(c), req.VerificationCode)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Pickup verified successfully",
		"claim":   claim,
	})
}
