package models

import (
	"gorm.io/gorm"
)

// Synonym holds an alternative name discovered for an ingredient, with the
// source that reported it.
type Synonym struct {
	gorm.Model
	Name         string `gorm:"not null" json:"name"`
	Source       string `json:"source"`
	IngredientID uint   `gorm:"index;not null" json:"ingredient_id"`
	OwnerID      uint   `gorm:"not null" json:"owner_id"`
}
