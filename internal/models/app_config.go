package models

import "time"

// AppConfig is the single storefront settings record.
type AppConfig struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	AppName         string    `json:"app_name" gorm:"type:varchar(255)"`
	AppDescription  string    `json:"app_description" gorm:"type:text"`
	Theme           string    `json:"theme" gorm:"type:varchar(20)"`
	WhatsappNumber  string    `json:"whatsapp_number" gorm:"type:varchar(20)"`
	BusinessHours   string    `json:"business_hours" gorm:"type:varchar(100)"`
	BusinessAddress string    `json:"business_address" gorm:"type:text"`
	LogoURL         *string   `json:"logo_url" gorm:"type:varchar(500)"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (AppConfig) TableName() string { return "app_config" }

// Themes lists the accepted values of AppConfig.Theme.
var Themes = []string{"blue", "green", "purple", "orange", "rose"}

// DefaultAppConfig returns the settings used when none have been saved yet.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		AppName:         "Minimarket Digital",
		AppDescription:  "Tu tienda de confianza",
		Theme:           "blue",
		WhatsappNumber:  "+5491112345678",
		BusinessHours:   "Lun-Vie: 8:00 - 20:00",
		BusinessAddress: "Av. Principal 123",
	}
}
