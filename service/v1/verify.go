package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ClaimParams identifies the claim a caller is asserting.
type ClaimParams struct {
	UserID     int64
	Wallet     string
	ResourceID int64
	RewardType int64
}

func (p ClaimParams) key() ChallengeKey {
	return NewChallengeKey(p.UserID, p.Wallet, p.ResourceID, p.RewardType)
}

// ClaimVerifier validates a claim request and signature against the live
// challenge and the current reward rule.
type ClaimVerifier struct {
	store  ChallengeStore
	rules  *RuleRegistry
	domain ClaimDomain
	now    func() time.Time
}

func NewClaimVerifier(store ChallengeStore, rules *RuleRegistry, domain ClaimDomain) *ClaimVerifier {
	return &ClaimVerifier{
		store:  store,
		rules:  rules,
		domain: domain,
		now:    time.Now,
	}
}

// Verify checks the challenge, the rule amount, and the signature. It never
// consumes the challenge: only settlement success or expiry burns it, so a
// transient settlement failure leaves the signature retryable.
func (v *ClaimVerifier) Verify(ctx context.Context, params ClaimParams, sigHex string) (*ClaimChallenge, error) {
	key := params.key()

	ch := v.store.Get(key)
	if ch == nil {
		return nil, ErrChallengeNotFound
	}

	if ch.Expired(v.now()) {
		// a signature over a dead deadline is useless, drop the challenge now
		v.store.Consume(key)
		return nil, ErrChallengeExpired
	}

	rule, err := v.rules.Lookup(ctx, params.RewardType)
	if err != nil {
		return nil, err
	}
	if !amountsEqual(rule.Amount, ch.Amount) {
		return nil, ErrAmountMismatch
	}

	td, err := BuildClaimTypedData(v.domain, ch)
	if err != nil {
		return nil, err
	}
	recovered, err := RecoverClaimSigner(td, sigHex)
	if err != nil {
		if errors.Is(err, ErrBadSignature) {
			return nil, err
		}
		return nil, errors.Wrap(ErrBadSignature, err.Error())
	}
	if !strings.EqualFold(recovered.Hex(), params.Wallet) {
		return nil, ErrSignerMismatch
	}

	return ch, nil
}

// amountsEqual compares two decimal strings by value, so "5", "5.0" and
// "5.00" all agree.
func amountsEqual(a, b string) bool {
	da, err := decimal.NewFromString(a)
	if err != nil {
		return false
	}
	db, err := decimal.NewFromString(b)
	if err != nil {
		return false
	}
	return da.Equal(db)
}
