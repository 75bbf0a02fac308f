package models

import "time"

// User is an administrator credential record.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username     string    `json:"username" gorm:"uniqueIndex;type:varchar(50);not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	Email        string    `json:"email" gorm:"index;type:varchar(100)"`
	FullName     string    `json:"full_name" gorm:"type:varchar(100)"`
	IsActive     bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DisplayName is the name embedded in issued tokens.
func (u *User) DisplayName() string {
	return u.Username
}
