package models

import "gorm.io/gorm"

// Roles issued by the identity source
const (
	RoleDonor = "DONOR"
	RoleNGO   = "NGO"
)

// User is the caller identity the token layer resolves. The lifecycle engine
// trusts the role carried by the verified token and only stores the opaque ID.
type User struct {
	gorm.Model

	UserID       string `json:"user_id" gorm:"uniqueIndex"`
	Name         string `json:"name"`
	Email        string `json:"email" gorm:"uniqueIndex"`
	Organization string `json:"organization"`
	Role         string `json:"role"` // "DONOR" or "NGO"
}

// ReceiverSummary is the slice of a user that rides on notifier events
type ReceiverSummary struct {
	Name         string `json:"name"`
	Organization string `json:"organization"`
}
