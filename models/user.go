package models

// User is an admin account allowed to upload images.
// PasswordHash holds a bcrypt hash, never the raw password.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"type:varchar(80);not null;unique"`
	PasswordHash string `gorm:"type:varchar(120);not null"`

	Images []Image
}
