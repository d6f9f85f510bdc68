package dao

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const TxTypeReward = "reward"

// RewardTransaction is the append-only settlement ledger. A row is written
// only after the mint confirmed on-chain, and is never updated afterwards
// except for the monitor stamping confirmed_at.
type RewardTransaction struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	UserID        int64      `gorm:"not null;uniqueIndex:ux_reward_once,priority:1" json:"user_id"`
	TxType        string     `gorm:"size:20;not null;uniqueIndex:ux_reward_once,priority:4" json:"tx_type"`
	RewardType    int64      `gorm:"not null;uniqueIndex:ux_reward_once,priority:2" json:"reward_type"`
	RelatedID     int64      `gorm:"not null;uniqueIndex:ux_reward_once,priority:3" json:"related_id"`
	Amount        string     `gorm:"size:64;not null" json:"amount"`
	BalanceBefore string     `gorm:"size:78;not null" json:"balance_before"`
	BalanceAfter  string     `gorm:"size:78;not null" json:"balance_after"`
	ChainTxHash   string     `gorm:"size:100;uniqueIndex" json:"chain_tx_hash"`
	CreatedAt     time.Time  `json:"created_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
}

func RewardTransactionTableName() string {
	return "reward_transaction"
}

func (RewardTransaction) TableName() string {
	return RewardTransactionTableName()
}

// ErrDuplicateReward signals the ledger uniqueness backstop fired: a reward
// row for the same (user, reward type, related id) already exists.
var ErrDuplicateReward = errors.New("reward transaction already recorded")

// ExistsReward is the durable anti-double-spend lookup.
func (d *Dao) ExistsReward(c context.Context, userID, rewardType, relatedID int64) (bool, error) {
	var count int64
	err := d.DB.WithContext(c).
		Table(RewardTransactionTableName()).
		Where("user_id = ? AND tx_type = ? AND reward_type = ? AND related_id = ?",
			userID, TxTypeReward, rewardType, relatedID).
		Count(&count).Error
	return count > 0, err
}

// CreateRewardTransaction appends a ledger row. The unique index makes the
// insert race-safe: when two settlements race, exactly one row lands and the
// loser gets ErrDuplicateReward.
func (d *Dao) CreateRewardTransaction(c context.Context, record *RewardTransaction) error {
	res := d.DB.WithContext(c).Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicateReward
	}
	return nil
}

func (d *Dao) GetRewardTransactionByTxHash(c context.Context, txHash string) (*RewardTransaction, error) {
	var record RewardTransaction
	err := d.DB.WithContext(c).
		Table(RewardTransactionTableName()).Where("chain_tx_hash = ?", txHash).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListRewardTransactions pages a user's settled rewards, newest first.
func (d *Dao) ListRewardTransactions(c context.Context, userID int64, page, pageSize int) ([]RewardTransaction, error) {
	var records []RewardTransaction
	err := d.DB.WithContext(c).
		Table(RewardTransactionTableName()).Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(pageSize).Offset((page - 1) * pageSize).
		Find(&records).Error
	return records, err
}

// MarkConfirmed stamps the row for txHash once the monitor sees the mint log.
func (d *Dao) MarkConfirmed(c context.Context, txHash string, at time.Time) error {
	return d.DB.WithContext(c).
		Model(&RewardTransaction{}).Where("chain_tx_hash = ? AND confirmed_at IS NULL", txHash).
		Update("confirmed_at", at).Error
}
