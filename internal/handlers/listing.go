package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rescueroute/rescueroute-backend/internal/middleware"
	"github.com/rescueroute/rescueroute-backend/internal/services"
)

// ListingHandler handles listing-related requests
type ListingHandler struct {
	lifecycle *services.LifecycleService
}

// NewListingHandler creates a new listing handler
func NewListingHandler(lifecycle *services.LifecycleService) *ListingHandler {
	return &ListingHandler{lifecycle: lifecycle}
}

// CreateListing handles creating a new food listing (donor only)
func (h *ListingHandler) CreateListing(c *fiber.Ctx) error {
	var input services.CreateListingInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	listing, err := h.lifecycle.CreateListing(middleware.CallerID(c), input)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"listing": listing,
	})
}

// GetMyListings returns the donor's own listings
func (h *ListingHandler) GetMyListings(c *fiber.Ctx) error {
	listings, err := h.lifecycle.ListDonorListings(middleware.CallerID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"listings": listings,
		"count":    len(listings),
	})
}

// GetAvailableListings returns claimable listings for receivers
func (h *ListingHandler) GetAvailableListings(c *fiber.Ctx) error {
	listings, err := h.lifecycle.ListAvailableListings()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"listings": listings,
		"count":    len(listings),
	})
}

// GetListing retrieves a listing by ID
func (h *ListingHandler) GetListing(c *fiber.Ctx) error {
	listing, err := h.lifecycle.GetListing(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"listing": listing,
	})
}

// DeleteListing removes the donor's own listing while it is AVAILABLE
func (h *ListingHandler) DeleteListing(c *fiber.Ctx) error {
	if err := h.lifecycle.DeleteListing(c.Params("id"), middleware.CallerID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Listing deleted successfully",
	})
}
