package models

import (
	"gorm.io/gorm"
)

// Limit sentinels for regulatory category columns.
const (
	LimitUnrestricted = 100.0
	LimitProhibited   = 0.0
)

// RegulatoryStandard is one row of the imported restriction table, keyed by
// (CAS registry number, owner). Rows are replaced only by re-import.
type RegulatoryStandard struct {
	gorm.Model
	Name      string `gorm:"not null" json:"name"`
	CAS       string `gorm:"uniqueIndex:idx_regulatory_cas_owner;not null" json:"cas"`
	Amendment string `json:"amendment"`
	Type      string `json:"type"`
	Risk      string `json:"risk"`

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

	OwnerID uint `gorm:"uniqueIndex:idx_regulatory_cas_owner;not null" json:"owner_id"`
}

// CategoryLimits returns the twelve restriction limits in category order.
func (s *RegulatoryStandard) CategoryLimits() [12]float64 {
	return [12]float64{
		s.Cat1, s.Cat2, s.Cat3, s.Cat4, s.Cat5, s.Cat6,
		s.Cat7, s.Cat8, s.Cat9, s.Cat10, s.Cat11, s.Cat12,
	}
}

// SetCategoryLimits assigns the twelve restriction limits in category order.
func (s *RegulatoryStandard) SetCategoryLimits(limits [12]float64) {
	s.Cat1, s.Cat2, s.Cat3, s.Cat4, s.Cat5, s.Cat6 = limits[0], limits[1], limits[2], limits[3], limits[4], limits[5]
	s.Cat7, s.Cat8, s.Cat9, s.Cat10, s.Cat11, s.Cat12 = limits[6], limits[7], limits[8], limits[9], limits[10], limits[11]
}

// CategoryColumns names the limit columns in category order, matching
// CategoryLimits. Shared by the importer and the ingredient cross-sync.
var CategoryColumns = [12]string{
	"cat1", "cat2", "cat3", "cat4", "cat5", "cat6",
	"cat7", "cat8", "cat9", "cat10", "cat11", "cat12",
}
