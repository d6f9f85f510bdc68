package dao

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// UserWallet binds a platform user to their claim wallet. CachedBalance is a
// convenience mirror of the on-chain balance; the chain stays authoritative.
type UserWallet struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	UserID        int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	Address       string    `gorm:"size:64;not null;index" json:"address"`
	CachedBalance string    `gorm:"size:78;default:0" json:"cached_balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func UserWalletTableName() string {
	return "user_wallet"
}

func (UserWallet) TableName() string {
	return UserWalletTableName()
}

func (d *Dao) GetUserWallet(c context.Context, userID int64) (*UserWallet, error) {
	var wallet UserWallet
	err := d.DB.WithContext(c).
		Table(UserWalletTableName()).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// GetCachedBalance returns the last mirrored balance for address, or "" when
// the wallet is unknown.
func (d *Dao) GetCachedBalance(c context.Context, address string) (string, error) {
	var wallet UserWallet
	err := d.DB.WithContext(c).
		Table(UserWalletTableName()).Where("LOWER(address) = LOWER(?)", address).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return wallet.CachedBalance, nil
}

func (d *Dao) UpdateCachedBalance(c context.Context, address string, balance string) error {
	return d.DB.WithContext(c).
		Model(&UserWallet{}).Where("LOWER(address) = LOWER(?)", address).
		Update("cached_balance", balance).Error
}
