package dao

import (
	"context"
	"time"

	"gorm.io/gorm/clause"
)

// RewardRule holds the live amount for one reward type. Mutated by the admin
// surface; the claim core only reads it.
type RewardRule struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	RewardType int64     `gorm:"uniqueIndex;not null" json:"reward_type"`
	Amount     string    `gorm:"size:64;not null" json:"amount"`
	Enabled    bool      `gorm:"default:true" json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func RewardRuleTableName() string {
	return "reward_rule"
}

func (RewardRule) TableName() string {
	return RewardRuleTableName()
}

func (d *Dao) GetRewardRule(c context.Context, rewardType int64) (*RewardRule, error) {
	var rule RewardRule
	err := d.DB.WithContext(c).
		Table(RewardRuleTableName()).Where("reward_type = ?", rewardType).First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (d *Dao) ListRewardRules(c context.Context) ([]RewardRule, error) {
	var rules []RewardRule
	err := d.DB.WithContext(c).Table(RewardRuleTableName()).Find(&rules).Error
	return rules, err
}

// UpsertRewardRule inserts or replaces the rule for one reward type.
func (d *Dao) UpsertRewardRule(c context.Context, rule *RewardRule) error {
	return d.DB.WithContext(c).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reward_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "enabled", "updated_at"}),
	}).Create(rule).Error
}
