package service

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/educhain/reward-service/dao"
)

type fakeRuleSource struct {
	mu    sync.Mutex
	rules map[int64]*dao.RewardRule
}

func newFakeRuleSource() *fakeRuleSource {
	return &fakeRuleSource{rules: make(map[int64]*dao.RewardRule)}
}

func (f *fakeRuleSource) set(rewardType int64, amount string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[rewardType] = &dao.RewardRule{RewardType: rewardType, Amount: amount, Enabled: enabled}
}

func (f *fakeRuleSource) GetRewardRule(_ context.Context, rewardType int64) (*dao.RewardRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rule, ok := f.rules[rewardType]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *rule
	return &cp, nil
}

type fakeChain struct {
	mu         sync.Mutex
	balance    *big.Int
	balanceErr error

	mintCalls   int
	mintAmounts []*big.Int
	mintTo      []common.Address
	mintHash    string
	mintErr     error
	// hash returned alongside mintErr, simulating broadcast-then-timeout
	mintErrHash string

	receipts   map[string]*types.Receipt
	receiptErr error
}

func newFakeChain(balance int64) *fakeChain {
	return &fakeChain{
		balance:  big.NewInt(balance),
		mintHash: "0xfeed000000000000000000000000000000000000000000000000000000000001",
		receipts: make(map[string]*types.Receipt),
	}
}

func (f *fakeChain) Mint(_ context.Context, to common.Address, amount *big.Int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mintCalls++
	f.mintTo = append(f.mintTo, to)
	f.mintAmounts = append(f.mintAmounts, new(big.Int).Set(amount))
	if f.mintErr != nil {
		return f.mintErrHash, f.mintErr
	}
	return f.mintHash, nil
}

func (f *fakeChain) BalanceOf(_ context.Context, _ common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, txHash string) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	r, ok := f.receipts[txHash]
	if !ok {
		return nil, errors.New("not found")
	}
	return r, nil
}

func (f *fakeChain) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mintCalls
}

type rewardTuple struct {
	userID, rewardType, relatedID int64
}

type fakeLedger struct {
	mu        sync.Mutex
	byTuple   map[rewardTuple]*dao.RewardTransaction
	byHash    map[string]*dao.RewardTransaction
	cached    map[string]string
	createErr error
	// createFailures makes the first N creates fail with createErr, then succeed
	createFailures int
	existsErr      error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		byTuple: make(map[rewardTuple]*dao.RewardTransaction),
		byHash:  make(map[string]*dao.RewardTransaction),
		cached:  make(map[string]string),
	}
}

func (f *fakeLedger) ExistsReward(_ context.Context, userID, rewardType, relatedID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.byTuple[rewardTuple{userID, rewardType, relatedID}]
	return ok, nil
}

func (f *fakeLedger) CreateRewardTransaction(_ context.Context, record *dao.RewardTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createFailures > 0 {
		f.createFailures--
		if f.createErr != nil {
			return f.createErr
		}
		return errors.New("create failed")
	}
	if f.createErr != nil {
		return f.createErr
	}
	key := rewardTuple{record.UserID, record.RewardType, record.RelatedID}
	if _, ok := f.byTuple[key]; ok {
		return dao.ErrDuplicateReward
	}
	cp := *record
	f.byTuple[key] = &cp
	f.byHash[record.ChainTxHash] = &cp
	return nil
}

func (f *fakeLedger) GetRewardTransactionByTxHash(_ context.Context, txHash string) (*dao.RewardTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byHash[txHash]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeLedger) GetCachedBalance(_ context.Context, address string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cached[address], nil
}

func (f *fakeLedger) UpdateCachedBalance(_ context.Context, address string, balance string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cached[address] = balance
	return nil
}

type fakeWallets struct {
	byUser map[int64]string
}

func (f *fakeWallets) GetUserWallet(_ context.Context, userID int64) (*dao.UserWallet, error) {
	addr, ok := f.byUser[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &dao.UserWallet{UserID: userID, Address: addr}, nil
}
