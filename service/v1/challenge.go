package service

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/educhain/reward-service/logger/xzap"
)

// Reward types a user can claim for.
const (
	RewardTypeLearnComplete  int64 = 1
	RewardTypeResourceUpload int64 = 2
)

// ChallengeKey identifies the single live challenge a user can hold for one
// resource and reward type. Wallet is stored lowercased.
type ChallengeKey struct {
	UserID     int64
	Wallet     string
	ResourceID int64
	RewardType int64
}

func NewChallengeKey(userID int64, wallet string, resourceID, rewardType int64) ChallengeKey {
	return ChallengeKey{
		UserID:     userID,
		Wallet:     strings.ToLower(wallet),
		ResourceID: resourceID,
		RewardType: rewardType,
	}
}

// ClaimChallenge is the time-bound, single-use authorization the user signs.
// Lives only in process memory; a restart drops it and the client re-issues.
type ClaimChallenge struct {
	Key      ChallengeKey
	ChainID  int64
	Amount   string
	Nonce    *big.Int
	Deadline int64 // unix seconds, exclusive upper bound
	IssuedAt int64
}

// Expired reports whether the challenge is no longer claimable at now.
// deadline itself already counts as expired.
func (ch *ClaimChallenge) Expired(now time.Time) bool {
	return now.Unix() >= ch.Deadline
}

// ChallengeStore issues and burns claim challenges. Implementations must make
// Issue/Get/Consume on the same key linearizable: two concurrent Consume calls
// for one key must not both return the challenge.
type ChallengeStore interface {
	Issue(key ChallengeKey, amount string, chainID int64, ttl time.Duration) (*ClaimChallenge, error)
	Get(key ChallengeKey) *ClaimChallenge
	Consume(key ChallengeKey) *ClaimChallenge
	Len() int
}

type memoryChallengeStore struct {
	mu  sync.Mutex
	m   map[ChallengeKey]*ClaimChallenge
	now func() time.Time
}

// NewChallengeStore returns the in-process map-backed store.
func NewChallengeStore() ChallengeStore {
	return &memoryChallengeStore{
		m:   make(map[ChallengeKey]*ClaimChallenge),
		now: time.Now,
	}
}

// Issue creates a fresh challenge, overwriting any live one for the key.
func (s *memoryChallengeStore) Issue(key ChallengeKey, amount string, chainID int64, ttl time.Duration) (*ClaimChallenge, error) {
	nonce, err := randomNonce()
	if err != nil {
		return nil, errors.Wrap(err, "failed on generate challenge nonce")
	}

	now := s.now()
	ch := &ClaimChallenge{
		Key:      key,
		ChainID:  chainID,
		Amount:   amount,
		Nonce:    nonce,
		Deadline: now.Add(ttl).Unix(),
		IssuedAt: now.Unix(),
	}

	s.mu.Lock()
	s.m[key] = ch
	s.mu.Unlock()

	cp := *ch
	return &cp, nil
}

func (s *memoryChallengeStore) Get(key ChallengeKey) *ClaimChallenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.m[key]
	if !ok {
		return nil
	}
	cp := *ch
	return &cp
}

// Consume atomically removes and returns the challenge, or nil when absent.
func (s *memoryChallengeStore) Consume(key ChallengeKey) *ClaimChallenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.m[key]
	if !ok {
		return nil
	}
	delete(s.m, key)
	cp := *ch
	return &cp
}

func (s *memoryChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// sweep drops expired entries so abandoned challenges do not pile up.
func (s *memoryChallengeStore) sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for _, key := range maps.Keys(s.m) {
		if s.m[key].Expired(now) {
			delete(s.m, key)
			removed++
		}
	}
	return removed
}

// StartChallengeSweeper evicts expired challenges at interval until stop is
// closed. Call from a dedicated goroutine.
func StartChallengeSweeper(store ChallengeStore, interval time.Duration, stop <-chan struct{}) {
	ms, ok := store.(*memoryChallengeStore)
	if !ok {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n := ms.sweep(); n > 0 {
				xzap.WithContext(context.Background()).Debug("swept expired claim challenges", zap.Int("count", n))
			}
		}
	}
}

// randomNonce draws 16 random bytes, giving an unguessable 128-bit nonce.
func randomNonce() (*big.Int, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(buf), nil
}
