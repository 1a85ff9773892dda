package models

import "gorm.io/gorm"

// User identifies the account that owns ingredient and regulatory records.
// Authentication lives outside this service; only the identity is stored here.
type User struct {
	gorm.Model
	Email string `gorm:"uniqueIndex;not null"`
	Name  string
}
