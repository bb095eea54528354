// internal/models/vendor.go
package models

import (
	"github.com/javajoker/nearby-market/internal/geo"
)

// Vendor locations are immutable; a move is onboarded as a new vendor.
type Vendor struct {
	BaseModel
	Name        string  `json:"name" gorm:"size:255;not null"`
	Description string  `json:"description" gorm:"type:text"`
	Latitude    float64 `json:"latitude" gorm:"not null"`
	Longitude   float64 `json:"longitude" gorm:"not null"`
}

func (v *Vendor) Location() geo.Point {
	return geo.Point{Lat: v.Latitude, Long: v.Longitude}
}
