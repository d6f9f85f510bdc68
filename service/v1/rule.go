package service

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/zeromicro/go-zero/core/syncx"
	"gorm.io/gorm"

	"github.com/educhain/reward-service/dao"
)

// RuleSource is the read side of the reward rule registry. *dao.Dao satisfies
// it; admin mutation stays outside the claim core.
type RuleSource interface {
	GetRewardRule(c context.Context, rewardType int64) (*dao.RewardRule, error)
}

// RuleRegistry answers "what is the current amount for this reward type".
// Lookups are deduped with a SingleFlight so a claim burst does not hammer the
// rules table.
type RuleRegistry struct {
	source RuleSource
	sf     syncx.SingleFlight
}

func NewRuleRegistry(source RuleSource) *RuleRegistry {
	return &RuleRegistry{
		source: source,
		sf:     syncx.NewSingleFlight(),
	}
}

// Lookup returns the enabled rule for rewardType, or ErrRuleUnavailable when
// it is missing or disabled. Rules are re-read per claim, never pinned, so an
// admin edit takes effect immediately.
func (r *RuleRegistry) Lookup(ctx context.Context, rewardType int64) (*dao.RewardRule, error) {
	v, err := r.sf.Do(fmt.Sprintf("reward_rule:%d", rewardType), func() (interface{}, error) {
		return r.source.GetRewardRule(ctx, rewardType)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleUnavailable
		}
		return nil, errors.Wrap(err, "failed on lookup reward rule")
	}

	rule := v.(*dao.RewardRule)
	if rule == nil || !rule.Enabled {
		return nil, ErrRuleUnavailable
	}
	return rule, nil
}
