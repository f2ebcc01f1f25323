package data

import (
	"time"

	"gorm.io/gorm"
)

// BanKind is the attribute of a connection a Ban matches on.
type BanKind string

const (
	BanByName    BanKind = "name"
	BanByAddress BanKind = "address"
	BanByToken   BanKind = "token"
)

type Ban struct {
	ID        uint64  `gorm:"primaryKey"`
	Kind      BanKind `gorm:"not null; uniqueIndex:idx_ban_kind_value"`
	Value     string  `gorm:"not null; uniqueIndex:idx_ban_kind_value"`
	Reason    string
	CreatedAt time.Time
}

// CreateBan persists a ban. Banning the same value twice is a no-op.
func CreateBan(db *gorm.DB, ban *Ban) error {
	return db.Where(Ban{Kind: ban.Kind, Value: ban.Value}).FirstOrCreate(ban).Error
}

// DeleteBans removes every ban on value regardless of its kind and returns how
// many were removed.
func DeleteBans(db *gorm.DB, value string) (int64, error) {
	result := db.Where("value = ?", value).Delete(&Ban{})
	return result.RowsAffected, result.Error
}

// FindMatchingBan returns the first ban on the name, address, or token given,
// or nil if none of them are banned.
func FindMatchingBan(db *gorm.DB, name, address, token string) (*Ban, error) {
	var bans []Ban
	err := db.
		Where("kind = ? AND value = ?", BanByName, name).
		Or("kind = ? AND value = ?", BanByAddress, address).
		Or("kind = ? AND value = ?", BanByToken, token).
		Limit(1).
		Find(&bans).Error
	if err != nil {
		return nil, err
	}
	if len(bans) == 0 {
		return nil, nil
	}
	return &bans[0], nil
}

// FindBans returns every ban ordered by when it was created.
func FindBans(db *gorm.DB) ([]Ban, error) {
	var bans []Ban
	err := db.Order("created_at, id").Find(&bans).Error
	return bans, err
}
