package models

import (
	"encoding/json"
	"time"
)

// FeaturedProducts is the single record holding the storefront's curated
// lists. Items are stored as opaque JSON values.
type FeaturedProducts struct {
	ID        uint              `json:"id" gorm:"primaryKey"`
	Popular   []json.RawMessage `json:"popular" gorm:"type:text;not null;serializer:json"`
	OnSale    []json.RawMessage `json:"onSale" gorm:"type:text;not null;serializer:json"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
