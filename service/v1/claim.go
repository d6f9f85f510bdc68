package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/educhain/reward-service/dao"
	"github.com/educhain/reward-service/logger/xzap"
)

// Wallets resolves the wallet bound to a platform user. *dao.Dao satisfies it.
type Wallets interface {
	GetUserWallet(c context.Context, userID int64) (*dao.UserWallet, error)
}

// RewardService is the end-to-end claim coordinator: issue a challenge, then
// verify → settle → consume-or-retain it.
type RewardService struct {
	store    ChallengeStore
	verifier *ClaimVerifier
	settler  *SettlementExecutor
	rules    *RuleRegistry
	wallets  Wallets
	domain   ClaimDomain
	chainID  int64
	ttl      time.Duration

	// serializes verify→settle→consume per key; the ledger uniqueness
	// constraint stays the durable backstop behind it
	lockMu sync.Mutex
	locks  map[ChallengeKey]*keyLock
}

// keyLock is refcounted so the entry can be dropped once the last holder
// releases it; the map never outgrows the set of in-flight claims.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewRewardService(
	store ChallengeStore,
	verifier *ClaimVerifier,
	settler *SettlementExecutor,
	rules *RuleRegistry,
	wallets Wallets,
	domain ClaimDomain,
	chainID int64,
	challengeTTL time.Duration,
) *RewardService {
	return &RewardService{
		store:    store,
		verifier: verifier,
		settler:  settler,
		rules:    rules,
		wallets:  wallets,
		domain:   domain,
		chainID:  chainID,
		ttl:      challengeTTL,
		locks:    make(map[ChallengeKey]*keyLock),
	}
}

// RequestClaimSign issues a fresh challenge for the claim and returns the
// typed data the wallet must sign. Re-requesting overwrites the previous
// challenge for the same key.
func (r *RewardService) RequestClaimSign(ctx context.Context, params ClaimParams) (*apitypes.TypedData, *ClaimChallenge, error) {
	if err := r.checkWalletBinding(ctx, params); err != nil {
		return nil, nil, err
	}

	rule, err := r.rules.Lookup(ctx, params.RewardType)
	if err != nil {
		return nil, nil, err
	}

	ch, err := r.store.Issue(params.key(), rule.Amount, r.chainID, r.ttl)
	if err != nil {
		return nil, nil, err
	}

	td, err := BuildClaimTypedData(r.domain, ch)
	if err != nil {
		return nil, nil, err
	}

	xzap.WithContext(ctx).Info("claim challenge issued",
		zap.Int64("user_id", params.UserID),
		zap.Int64("reward_type", params.RewardType),
		zap.Int64("resource_id", params.ResourceID),
		zap.Int64("deadline", ch.Deadline))
	return &td, ch, nil
}

// Claim verifies the signature and settles the reward. Challenge disposal:
// consumed on success and on AlreadyClaimed (retrying is pointless), retained
// on chain failure so the same signature can retry before the deadline.
func (r *RewardService) Claim(ctx context.Context, params ClaimParams, sigHex string) (*dao.RewardTransaction, error) {
	key := params.key()

	unlock := r.lockKey(key)
	defer unlock()

	ch, err := r.verifier.Verify(ctx, params, sigHex)
	if err != nil {
		// on Expired the verifier already dropped the challenge
		return nil, err
	}

	record, err := r.settler.Settle(ctx, ch)
	if err != nil {
		if errors.Is(err, ErrAlreadyClaimed) {
			r.store.Consume(key)
			return nil, err
		}
		// MintError, PersistAfterMintError, transient ledger errors: keep the
		// challenge so the client can retry with the same signature
		return nil, err
	}

	r.store.Consume(key)

	xzap.WithContext(ctx).Info("reward claim settled",
		zap.Int64("user_id", params.UserID),
		zap.Int64("reward_type", params.RewardType),
		zap.Int64("resource_id", params.ResourceID),
		zap.String("amount", record.Amount),
		zap.String("tx_hash", record.ChainTxHash))
	return record, nil
}

// checkWalletBinding refuses challenges for wallets that do not belong to the
// user, so a stolen session cannot redirect rewards.
func (r *RewardService) checkWalletBinding(ctx context.Context, params ClaimParams) error {
	wallet, err := r.wallets.GetUserWallet(ctx, params.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWalletNotBound
		}
		return errors.Wrap(err, "failed on load user wallet")
	}
	if !strings.EqualFold(wallet.Address, params.Wallet) {
		return ErrWalletNotBound
	}
	return nil
}

func (r *RewardService) lockKey(key ChallengeKey) func() {
	r.lockMu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &keyLock{}
		r.locks[key] = l
	}
	l.refs++
	r.lockMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.lockMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, key)
		}
		r.lockMu.Unlock()
	}
}
