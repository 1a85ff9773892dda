package models

import (
	"gorm.io/gorm"
)

// Ingredient is the canonical stored record for a fragrance material. Rows are
// unique per (name, owner); enrichment may only fill fields that are still
// empty unless overwrite mode is requested explicitly.
type Ingredient struct {
	gorm.Model
	Name            string `gorm:"uniqueIndex:idx_ingredients_name_owner;not null" json:"name"`
	CAS             string `gorm:"index" json:"cas"`
	EINECS          string `json:"einecs"`
	ChemicalName    string `json:"chemical_name"`
	Formula         string `json:"formula"`
	MolecularWeight string `json:"molecular_weight"`
	CompoundID      int    `json:"compound_id"`
	OdorProfile     string `gorm:"type:text" json:"odor_profile"`
	OdorFamily      string `json:"odor_family"`
	Appearance      string `json:"appearance"`
	FlashPoint      string `json:"flash_point"`
	Solubility      string `json:"solubility"`
	LogP            string `gorm:"column:logp" json:"logp"`
	ShelfLife       string `json:"shelf_life"`
	Tenacity        string `json:"tenacity"`
	Type            string `json:"type"`
	Notes           string `gorm:"type:text" json:"notes"`
	Allergen        bool   `gorm:"not null;default:false" json:"allergen"`

	// Regulatory category usage limits in percent. 100 means unrestricted,
	// 0 means prohibited.
	Cat1  float64 `gorm:"default:100" json:"cat1"`
	Cat2  float64 `gorm:"default:100" json:"cat2"`
	Cat3  float64 `gorm:"default:100" json:"cat3"`
	Cat4  float64 `gorm:"default:100" json:"cat4"`
	Cat5  float64 `gorm:"default:100" json:"cat5"`
	Cat6  float64 `gorm:"default:100" json:"cat6"`
	Cat7  float64 `gorm:"default:100" json:"cat7"`
	Cat8  float64 `gorm:"default:100" json:"cat8"`
	Cat9  float64 `gorm:"default:100" json:"cat9"`
	Cat10 float64 `gorm:"default:100" json:"cat10"`
	Cat11 float64 `gorm:"default:100" json:"cat11"`
	Cat12 float64 `gorm:"default:100" json:"cat12"`

	Synonyms []Synonym `gorm:"foreignKey:IngredientID" json:"synonyms"`
	OwnerID  uint      `gorm:"uniqueIndex:idx_ingredients_name_owner;not null" json:"owner_id"`
	Owner    *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

// CategoryLimits returns the twelve restriction limits in category order.
func (i *Ingredient) CategoryLimits() [12]float64 {
	return [12]float64{
		i.Cat1, i.Cat2, i.Cat3, i.Cat4, i.Cat5, i.Cat6,
		i.Cat7, i.Cat8, i.Cat9, i.Cat10, i.Cat11, i.Cat12,
	}
}
