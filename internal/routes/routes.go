package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rescueroute/rescueroute-backend/internal/handlers"
	"github.com/rescueroute/rescueroute-backend/internal/middleware"
	"github.com/rescueroute/rescueroute-backend/internal/models"
	"github.com/rescueroute/rescueroute-backend/internal/services"
	"github.com/rescueroute/rescueroute-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, store storage.Store, lifecycle *services.LifecycleService) {
	healthHandler := handlers.NewHealthHandler("1.0.0")
	authHandler := handlers.NewAuthHandler(store)
	listingHandler := handlers.NewListingHandler(lifecycle)
	claimHandler := handlers.NewClaimHandler(lifecycle)
	statsHandler := handlers.NewStatsHandler(store)

	app.Get("/health", healthHandler.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Public stats
	api.Get("/stats/public", statsHandler.PublicStats)

	// Listing routes
	listings := api.Group("/listings", middleware.Protect())
	listings.Post("/", middleware.RequireRole(models.RoleDonor), listingHandler.CreateListing)
	listings.Get("/mine", middleware.RequireRole(models.RoleDonor), listingHandler.GetMyListings)
	listings.Get("/available", middleware.RequireRole(models.RoleNGO), listingHandler.GetAvailableListings)
	listings.Get("/:id", listingHandler.GetListing)
	listings.Delete("/:id", middleware.RequireRole(models.RoleDonor), listingHandler.DeleteListing)

	// Claim routes
	claims := api.Group("/claims", middleware.Protect())
	claims.Post("/", middleware.RequireRole(models.RoleNGO), claimHandler.CreateClaim)
	claims.Get("/mine", middleware.RequireRole(models.RoleNGO), claimHandler.GetMyClaims)
	claims.Get("/received", middleware.RequireRole(models.RoleDonor), claimHandler.GetReceivedClaims)
	claims.Get("/:id", claimHandler.GetClaim)
	claims.Patch("/:id/accept", middleware.RequireRole(models.RoleDonor), claimHandler.AcceptClaim)
	claims.Patch("/:id/reject", middleware.RequireRole(models.RoleDonor), claimHandler.RejectClaim)
	claims.Patch("/:id/complete", middleware.RequireRole(models.RoleDonor), claimHandler.CompleteClaim)
	claims.Post("/:id/verify", middleware.RequireRole(models.RoleDonor), claimHandler.VerifyPickup)
}
