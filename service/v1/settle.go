package service

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/educhain/reward-service/dao"
	"github.com/educhain/reward-service/logger/xzap"
)

// ChainClient is the outbound surface to the token contract.
// *contract.EduTokenContract satisfies it.
type ChainClient interface {
	Mint(ctx context.Context, to common.Address, amount *big.Int) (string, error)
	BalanceOf(ctx context.Context, addr common.Address) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error)
}

// Ledger is the durable settlement store. *dao.Dao satisfies it.
type Ledger interface {
	ExistsReward(c context.Context, userID, rewardType, relatedID int64) (bool, error)
	CreateRewardTransaction(c context.Context, record *dao.RewardTransaction) error
	GetRewardTransactionByTxHash(c context.Context, txHash string) (*dao.RewardTransaction, error)
	GetCachedBalance(c context.Context, address string) (string, error)
	UpdateCachedBalance(c context.Context, address string, balance string) error
}

// SettlementExecutor mints the reward and records it in the ledger. The
// ledger uniqueness check is the authoritative anti-double-spend gate; the
// in-memory challenge only guards the happy path.
type SettlementExecutor struct {
	chain    ChainClient
	ledger   Ledger
	decimals int32

	// broadcast mints whose ledger row has not landed yet; a retry resolves
	// the recorded hash instead of minting again
	mu      sync.Mutex
	pending map[ChallengeKey]pendingMint
}

// pendingMint survives from broadcast until the ledger row is written, so a
// retry after a confirm timeout or a persist failure reuses the same tx hash
// and the same pre-mint balance snapshot.
type pendingMint struct {
	TxHash        string
	BalanceBefore decimal.Decimal
}

func NewSettlementExecutor(chain ChainClient, ledger Ledger, tokenDecimals int32) *SettlementExecutor {
	return &SettlementExecutor{
		chain:    chain,
		ledger:   ledger,
		decimals: tokenDecimals,
		pending:  make(map[ChallengeKey]pendingMint),
	}
}

// Settle mints ch.Amount to the challenge wallet and appends the ledger row.
// Returns ErrAlreadyClaimed when a reward row already exists, *MintError on
// chain failure (no state mutated), *PersistAfterMintError when the mint
// confirmed but the ledger write could not be made to stick.
func (s *SettlementExecutor) Settle(ctx context.Context, ch *ClaimChallenge) (*dao.RewardTransaction, error) {
	key := ch.Key

	exists, err := s.ledger.ExistsReward(ctx, key.UserID, key.RewardType, key.ResourceID)
	if err != nil {
		return nil, errors.Wrap(err, "failed on ledger idempotency check")
	}
	if exists {
		return nil, ErrAlreadyClaimed
	}

	amount, err := decimal.NewFromString(ch.Amount)
	if err != nil {
		return nil, errors.Wrap(err, "invalid challenge amount")
	}

	balanceBefore, txHash, err := s.mintOnce(ctx, key, amount)
	if err != nil {
		return nil, err
	}

	record := &dao.RewardTransaction{
		ID:            uuid.NewString(),
		UserID:        key.UserID,
		TxType:        dao.TxTypeReward,
		RewardType:    key.RewardType,
		RelatedID:     key.ResourceID,
		Amount:        amount.String(),
		BalanceBefore: balanceBefore.String(),
		BalanceAfter:  balanceBefore.Add(amount).String(),
		ChainTxHash:   txHash,
	}

	if err := s.persistConfirmedMint(ctx, record); err != nil {
		if errors.Is(err, ErrAlreadyClaimed) {
			// the reward is on record under another tx; nothing left to retry
			s.clearPending(key)
		}
		return nil, err
	}

	s.clearPending(key)

	if err := s.ledger.UpdateCachedBalance(ctx, key.Wallet, record.BalanceAfter); err != nil {
		// cache only; the chain stays authoritative
		xzap.WithContext(ctx).Warn("failed to refresh cached balance",
			zap.String("wallet", key.Wallet), zap.Error(err))
	}

	return record, nil
}

// readBalance reads the on-chain balance, falling back to the last cached
// value when the RPC is down. Best-effort degraded mode: the ledger row then
// carries a stale balance_before, never a wrong amount.
func (s *SettlementExecutor) readBalance(ctx context.Context, wallet string) decimal.Decimal {
	raw, err := s.chain.BalanceOf(ctx, common.HexToAddress(wallet))
	if err == nil {
		return decimal.NewFromBigInt(raw, -s.decimals)
	}

	xzap.WithContext(ctx).Warn("balanceOf failed, using cached balance",
		zap.String("wallet", wallet), zap.Error(err))

	cached, cErr := s.ledger.GetCachedBalance(ctx, wallet)
	if cErr != nil || cached == "" {
		return decimal.Zero
	}
	bal, pErr := decimal.NewFromString(cached)
	if pErr != nil {
		return decimal.Zero
	}
	return bal
}

// mintOnce submits at most one mint for the key and returns the pre-mint
// balance alongside the tx hash. When a prior attempt is pending, the receipt
// of its hash decides the outcome: mints are not cancellable once broadcast,
// so re-submitting would double-mint.
func (s *SettlementExecutor) mintOnce(ctx context.Context, key ChallengeKey, amount decimal.Decimal) (decimal.Decimal, string, error) {
	if p, ok := s.pendingFor(key); ok {
		receipt, err := s.chain.TransactionReceipt(ctx, p.TxHash)
		if err != nil {
			// still unknown; keep waiting rather than risking a second mint
			return decimal.Zero, "", &MintError{TxHash: p.TxHash, Err: errors.Wrap(err, "pending mint unresolved")}
		}
		if receipt.Status == types.ReceiptStatusSuccessful {
			return p.BalanceBefore, p.TxHash, nil
		}
		// reverted on-chain, safe to mint fresh
		s.clearPending(key)
	}

	balanceBefore := s.readBalance(ctx, key.Wallet)

	wei := amount.Shift(s.decimals).BigInt()
	hash, err := s.chain.Mint(ctx, common.HexToAddress(key.Wallet), wei)
	if err != nil {
		if hash != "" {
			// broadcast happened; remember the hash so a retry checks it
			s.setPending(key, pendingMint{TxHash: hash, BalanceBefore: balanceBefore})
		}
		return decimal.Zero, "", &MintError{TxHash: hash, Err: err}
	}
	// stays pending until the ledger row lands; a retry after a persist
	// failure must reuse this hash, never broadcast again
	s.setPending(key, pendingMint{TxHash: hash, BalanceBefore: balanceBefore})
	return balanceBefore, hash, nil
}

// persistConfirmedMint writes the ledger row for an already-confirmed mint.
// Failure here means funds moved with no record, so it retries keyed by the
// tx hash and escalates loudly when the row still cannot be written.
func (s *SettlementExecutor) persistConfirmedMint(ctx context.Context, record *dao.RewardTransaction) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			// the tx hash is the idempotency token: a prior attempt may have
			// landed even though its response was lost
			if existing, err := s.ledger.GetRewardTransactionByTxHash(ctx, record.ChainTxHash); err == nil && existing != nil {
				*record = *existing
				return nil
			}
			time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
		}

		err := s.ledger.CreateRewardTransaction(ctx, record)
		if err == nil {
			return nil
		}
		if errors.Is(err, dao.ErrDuplicateReward) {
			existing, gErr := s.ledger.GetRewardTransactionByTxHash(ctx, record.ChainTxHash)
			if gErr == nil && existing != nil {
				*record = *existing
				return nil
			}
			// another settlement recorded this reward under a different tx:
			// this mint is an unrecorded duplicate on-chain
			xzap.WithContext(ctx).Error("duplicate reward detected after confirmed mint",
				zap.String("alert", "unrecorded_onchain_mint"),
				zap.String("tx_hash", record.ChainTxHash),
				zap.Int64("user_id", record.UserID),
				zap.Int64("reward_type", record.RewardType),
				zap.Int64("related_id", record.RelatedID))
			return ErrAlreadyClaimed
		}
		lastErr = err
	}

	xzap.WithContext(ctx).Error("ledger write failed after confirmed mint",
		zap.String("alert", "unrecorded_onchain_mint"),
		zap.String("tx_hash", record.ChainTxHash),
		zap.Int64("user_id", record.UserID),
		zap.Error(lastErr))
	return &PersistAfterMintError{TxHash: record.ChainTxHash, Err: lastErr}
}

func (s *SettlementExecutor) pendingFor(key ChallengeKey) (pendingMint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[key]
	return p, ok
}

func (s *SettlementExecutor) setPending(key ChallengeKey, p pendingMint) {
	s.mu.Lock()
	s.pending[key] = p
	s.mu.Unlock()
}

func (s *SettlementExecutor) clearPending(key ChallengeKey) {
	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()
}
