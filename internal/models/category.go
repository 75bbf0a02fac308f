package models

import "time"

// ProtectedCategoryName is the catch-all category that can never be deleted.
const ProtectedCategoryName = "Todos"

// Category groups products for the storefront.
type Category struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name      string    `json:"name" gorm:"uniqueIndex;type:varchar(100);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
