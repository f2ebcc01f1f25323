package data

import (
	"gorm.io/gorm"
)

type WhitelistEntry struct {
	ID   uint64 `gorm:"primaryKey"`
	Name string `gorm:"unique; not null"`
}

// AddToWhitelist adds name, doing nothing if it is already present.
func AddToWhitelist(db *gorm.DB, name string) error {
	return db.Where(WhitelistEntry{Name: name}).FirstOrCreate(&WhitelistEntry{Name: name}).Error
}

// RemoveFromWhitelist deletes name and reports whether it was present.
func RemoveFromWhitelist(db *gorm.DB, name string) (bool, error) {
	result := db.Where("name = ?", name).Delete(&WhitelistEntry{})
	return result.RowsAffected > 0, result.Error
}

func IsWhitelisted(db *gorm.DB, name string) (bool, error) {
	var count int64
	err := db.Model(&WhitelistEntry{}).Where("name = ?", name).Count(&count).Error
	return count > 0, err
}

// FindWhitelist returns every whitelisted name in alphabetical order.
func FindWhitelist(db *gorm.DB) ([]string, error) {
	var names []string
	err := db.Model(&WhitelistEntry{}).Order("name").Pluck("name", &names).Error
	return names, err
}
