package models

import "time"

// Product availability values.
const (
	ProductAvailable  = "available"
	ProductOutOfStock = "outOfStock"
)

// Product represents a product in the store.
type Product struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name          string    `json:"name" gorm:"type:varchar(200);not null"`
	Description   string    `json:"description" gorm:"type:text"`
	Price         float64   `json:"price" gorm:"type:decimal(10,2);not null"`
	CategoryID    string    `json:"category_id" gorm:"type:varchar(36);not null;index"`
	Category      *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	ImageURL      string    `json:"image_url" gorm:"type:varchar(500)"`
	Status        string    `json:"status" gorm:"type:varchar(20);not null;default:available"`
	StockQuantity int       `json:"stock_quantity" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time `json:"updated_at"`
}
