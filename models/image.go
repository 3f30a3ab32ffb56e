package models

import "time"

// Image is the metadata row for one uploaded picture. Filename doubles as
// the object-storage key; uploading the same filename twice overwrites the
// object while both rows remain.
//
// A row starts out pending and is confirmed once object storage has
// acknowledged the bytes; the reconciliation sweep removes pending rows
// that never got confirmed.
type Image struct {
	ID         uint      `gorm:"primaryKey"`
	Title      string    `gorm:"type:varchar(80);not null"`
	Filename   string    `gorm:"type:varchar(120);not null"`
	Likes      int       `gorm:"not null;default:0"`
	UploadedAt time.Time `gorm:"not null"`
	Pending    bool      `gorm:"not null;default:false"`
	UserID     uint      `gorm:"not null"`

	User User
}
