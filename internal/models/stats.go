package models

import "time"

// PublicStats feeds the landing page counters
type PublicStats struct {
	TotalFoodSavedKg float64          `json:"total_food_saved_kg"`
	MealsProvided    int              `json:"meals_provided"`
	TotalListings    int64            `json:"total_listings"`
	TotalCompleted   int64            `json:"total_completed"`
	RecentDonations  []RecentDonation `json:"recent_donations"`
}

// RecentDonation is one line of the completed-donations ticker
type RecentDonation struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
