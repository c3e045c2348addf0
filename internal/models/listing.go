package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Listing statuses
const (
	ListingStatusAvailable = "AVAILABLE"
	ListingStatusClaimed   = "CLAIMED"
	ListingStatusExpired   = "EXPIRED"
	ListingStatusCompleted = "COMPLETED"
)

// Listing categories
const (
	CategoryBakery     = "Bakery"
	CategoryMainCourse = "Main Course"
	CategorySalads     = "Salads"
	CategoryDesserts   = "Desserts"
	CategoryBeverages  = "Beverages"
	CategoryOther      = "Other"
)

// Listing units
const (
	UnitServings = "servings"
	UnitPackages = "packages"
	UnitItems    = "items"
	UnitKg       = "kg"
	UnitLiters   = "liters"
)

// PickupLocation is where the receiver collects the food
type PickupLocation struct {
	Street  string   `json:"street"`
	City    string   `json:"city"`
	State   string   `json:"state"`
	ZipCode string   `json:"zip_code"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// Listing represents a donor's offer of surplus food with a pickup window
type Listing struct {
	gorm.Model

	ListingID string `json:"listing_id" gorm:"uniqueIndex"`
	DonorID   string `json:"donor_id" gorm:"index"`

	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"` // e.g., "Bakery", "Main Course"
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"` // e.g., "servings", "kg"

	PickupLocation      PickupLocation `json:"pickup_location" gorm:"embedded;embeddedPrefix:pickup_"`
	Images              []string       `json:"images,omitempty" gorm:"serializer:json"`
	SpecialInstructions string         `json:"special_instructions,omitempty"`

	// Pickup window
	AvailableFrom  time.Time `json:"available_from"`
	AvailableUntil time.Time `json:"available_until" gorm:"index"`

	Status string `json:"status" gorm:"index;default:AVAILABLE"` // "AVAILABLE", "CLAIMED", "EXPIRED", "COMPLETED"

	// Set only while status is CLAIMED or COMPLETED
	ClaimedBy *string    `json:"claimed_by"`
	ClaimedAt *time.Time `json:"claimed_at"`
}

// BeforeCreate generates ListingID
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ListingID == "" {
		l.ListingID = fmt.Sprintf("LST-%s", uuid.NewString())
	}
	return nil
}

// ValidCategory reports whether c is one of the known listing categories
func ValidCategory(c string) bool {
	switch c {
	case CategoryBakery, CategoryMainCourse, CategorySalads, CategoryDesserts, CategoryBeverages, CategoryOther:
		return true
	}
	return false
}

// ValidUnit reports whether u is one of the known listing units
func ValidUnit(u string) bool {
	switch u {
	case UnitServings, UnitPackages, UnitItems, UnitKg, UnitLiters:
		return true
	}
	return false
}
