package service

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

type verifyFixture struct {
	store    ChallengeStore
	rules    *fakeRuleSource
	verifier *ClaimVerifier
	key      *ecdsa.PrivateKey
	params   ClaimParams
}

func newVerifyFixture(t *testing.T) *verifyFixture {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	wallet := crypto.PubkeyToAddress(key.PublicKey).Hex()

	rules := newFakeRuleSource()
	rules.set(RewardTypeLearnComplete, "5", true)

	store := NewChallengeStore()
	return &verifyFixture{
		store:    store,
		rules:    rules,
		verifier: NewClaimVerifier(store, NewRuleRegistry(rules), testDomain),
		key:      key,
		params: ClaimParams{
			UserID:     42,
			Wallet:     wallet,
			ResourceID: 7,
			RewardType: RewardTypeLearnComplete,
		},
	}
}

// issueAndSign issues a live challenge and signs its typed data.
func (f *verifyFixture) issueAndSign(t *testing.T) (*ClaimChallenge, string) {
	t.Helper()
	ch, err := f.store.Issue(f.params.key(), "5", 11155111, 300*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return ch, signChallenge(t, testDomain, ch, f.key)
}

func TestVerifySucceedsForValidClaim(t *testing.T) {
	f := newVerifyFixture(t)
	issued, sig := f.issueAndSign(t)

	ch, err := f.verifier.Verify(context.Background(), f.params, sig)
	if err != nil {
		t.Fatal(err)
	}
	if ch.Nonce.Cmp(issued.Nonce) != 0 {
		t.Fatal("verify returned a different challenge")
	}
	// verify must not consume
	if f.store.Get(f.params.key()) == nil {
		t.Fatal("challenge consumed by verify")
	}
}

func TestVerifyMissingChallenge(t *testing.T) {
	f := newVerifyFixture(t)
	_, err := f.verifier.Verify(context.Background(), f.params, "0x00")
	if !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("got %v, want ErrChallengeNotFound", err)
	}
}

func TestVerifyExpiredChallengeIsConsumed(t *testing.T) {
	f := newVerifyFixture(t)
	ch, sig := f.issueAndSign(t)

	f.verifier.now = func() time.Time { return time.Unix(ch.Deadline, 0) }

	_, err := f.verifier.Verify(context.Background(), f.params, sig)
	if !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("got %v, want ErrChallengeExpired", err)
	}
	if f.store.Get(f.params.key()) != nil {
		t.Fatal("expired challenge not invalidated")
	}
}

func TestVerifyRuleMissingOrDisabled(t *testing.T) {
	f := newVerifyFixture(t)
	_, sig := f.issueAndSign(t)

	f.rules.set(RewardTypeLearnComplete, "5", false)
	if _, err := f.verifier.Verify(context.Background(), f.params, sig); !errors.Is(err, ErrRuleUnavailable) {
		t.Fatalf("disabled rule: got %v, want ErrRuleUnavailable", err)
	}

	f.rules.mu.Lock()
	delete(f.rules.rules, RewardTypeLearnComplete)
	f.rules.mu.Unlock()
	if _, err := f.verifier.Verify(context.Background(), f.params, sig); !errors.Is(err, ErrRuleUnavailable) {
		t.Fatalf("missing rule: got %v, want ErrRuleUnavailable", err)
	}
}

func TestVerifyAmountMismatchAfterRuleEdit(t *testing.T) {
	f := newVerifyFixture(t)
	_, sig := f.issueAndSign(t)

	// admin edits the rule between issue and claim
	f.rules.set(RewardTypeLearnComplete, "8", true)

	_, err := f.verifier.Verify(context.Background(), f.params, sig)
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("got %v, want ErrAmountMismatch", err)
	}
}

func TestVerifyCanonicalAmountComparison(t *testing.T) {
	f := newVerifyFixture(t)
	_, sig := f.issueAndSign(t)

	// "5.00" still matches the challenge's "5"
	f.rules.set(RewardTypeLearnComplete, "5.00", true)

	if _, err := f.verifier.Verify(context.Background(), f.params, sig); err != nil {
		t.Fatalf("canonical amounts should match: %v", err)
	}
}

func TestVerifyBadSignature(t *testing.T) {
	f := newVerifyFixture(t)
	f.issueAndSign(t)

	_, err := f.verifier.Verify(context.Background(), f.params, "0xdeadbeef")
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("got %v, want ErrBadSignature", err)
	}
}

func TestVerifySignerMismatch(t *testing.T) {
	f := newVerifyFixture(t)
	ch, _ := f.issueAndSign(t)

	otherKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	foreignSig := signChallenge(t, testDomain, ch, otherKey)

	_, err = f.verifier.Verify(context.Background(), f.params, foreignSig)
	if !errors.Is(err, ErrSignerMismatch) {
		t.Fatalf("got %v, want ErrSignerMismatch", err)
	}
}
