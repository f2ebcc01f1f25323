package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// PlayerToken is the shared secret a player name was first claimed with.
type PlayerToken struct {
	ID        uint64 `gorm:"primaryKey"`
	Name      string `gorm:"unique; not null"`
	Token     string `gorm:"not null"`
	FirstSeen time.Time
	LastSeen  time.Time
}

// FindPlayerToken returns the token record for name or nil if the name has
// never been seen.
func FindPlayerToken(db *gorm.DB, name string) (*PlayerToken, error) {
	var pt PlayerToken
	err := db.Where("name = ?", name).First(&pt).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &pt, nil
}

// CreatePlayerToken persists the PlayerToken record to the database.
func CreatePlayerToken(db *gorm.DB, pt *PlayerToken) error {
	return db.Create(pt).Error
}

// TouchPlayerToken updates the last time name successfully connected.
func TouchPlayerToken(db *gorm.DB, name string, seen time.Time) error {
	return db.Model(&PlayerToken{}).Where("name = ?", name).Update("last_seen", seen).Error
}
