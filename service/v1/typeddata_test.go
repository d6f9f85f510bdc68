package service

import (
	"crypto/ecdsa"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
)

var testDomain = ClaimDomain{
	Name:              "EduChain Reward",
	Version:           "1",
	VerifyingContract: "0x1111111111111111111111111111111111111111",
}

func testChallenge(wallet string) *ClaimChallenge {
	return &ClaimChallenge{
		Key:      NewChallengeKey(42, wallet, 7, RewardTypeLearnComplete),
		ChainID:  11155111,
		Amount:   "5",
		Nonce:    big.NewInt(123456789),
		Deadline: time.Now().Add(5 * time.Minute).Unix(),
		IssuedAt: time.Now().Unix(),
	}
}

// signChallenge produces the wallet-style (v = 27/28) signature over the
// challenge's typed data.
func signChallenge(t *testing.T, domain ClaimDomain, ch *ClaimChallenge, key *ecdsa.PrivateKey) string {
	t.Helper()
	td, err := BuildClaimTypedData(domain, ch)
	if err != nil {
		t.Fatal(err)
	}
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		t.Fatal(err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func TestKindForRewardType(t *testing.T) {
	cases := []struct {
		rewardType int64
		kind       ClaimKind
		wantErr    bool
	}{
		{RewardTypeLearnComplete, ClaimKindLearning, false},
		{RewardTypeResourceUpload, ClaimKindResource, false},
		{99, "", true},
	}
	for _, c := range cases {
		kind, err := KindForRewardType(c.rewardType)
		if c.wantErr {
			if err == nil {
				t.Fatalf("reward type %d: expected error", c.rewardType)
			}
			continue
		}
		if err != nil || kind != c.kind {
			t.Fatalf("reward type %d: got (%s, %v), want %s", c.rewardType, kind, err, c.kind)
		}
	}
}

func TestTypedDataFieldOrderIsFixed(t *testing.T) {
	ch := testChallenge("0xabc0000000000000000000000000000000000001")
	td, err := BuildClaimTypedData(testDomain, ch)
	if err != nil {
		t.Fatal(err)
	}

	if td.PrimaryType != string(ClaimKindLearning) {
		t.Fatalf("primary type = %s", td.PrimaryType)
	}

	want := []string{"subjectId", "walletAddress", "resourceId", "rewardType", "amount", "nonce", "deadline"}
	fields := td.Types[td.PrimaryType]
	if len(fields) != len(want) {
		t.Fatalf("field count = %d, want %d", len(fields), len(want))
	}
	for i, name := range want {
		if fields[i].Name != name {
			t.Fatalf("field %d = %s, want %s", i, fields[i].Name, name)
		}
	}
}

func TestResourceKindUsesOwnPrimaryType(t *testing.T) {
	ch := testChallenge("0xabc0000000000000000000000000000000000001")
	ch.Key.RewardType = RewardTypeResourceUpload
	td, err := BuildClaimTypedData(testDomain, ch)
	if err != nil {
		t.Fatal(err)
	}
	if td.PrimaryType != string(ClaimKindResource) {
		t.Fatalf("primary type = %s", td.PrimaryType)
	}
}

func TestSignRoundTripRecoversWallet(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	wallet := crypto.PubkeyToAddress(key.PublicKey)

	ch := testChallenge(wallet.Hex())
	sigHex := signChallenge(t, testDomain, ch, key)

	td, err := BuildClaimTypedData(testDomain, ch)
	if err != nil {
		t.Fatal(err)
	}
	recovered, err := RecoverClaimSigner(td, sigHex)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.EqualFold(recovered.Hex(), wallet.Hex()) {
		t.Fatalf("recovered %s, want %s", recovered.Hex(), wallet.Hex())
	}
}

func TestRecoverRejectsMalformedSignatures(t *testing.T) {
	ch := testChallenge("0xabc0000000000000000000000000000000000001")
	td, err := BuildClaimTypedData(testDomain, ch)
	if err != nil {
		t.Fatal(err)
	}

	for _, sig := range []string{"not-hex", "0x1234", "0x" + strings.Repeat("00", 64)} {
		if _, err := RecoverClaimSigner(td, sig); !errors.Is(err, ErrBadSignature) {
			t.Fatalf("sig %q: got %v, want ErrBadSignature", sig, err)
		}
	}
}

func TestDifferentNoncesChangeTheHash(t *testing.T) {
	ch1 := testChallenge("0xabc0000000000000000000000000000000000001")
	ch2 := testChallenge("0xabc0000000000000000000000000000000000001")
	ch2.Nonce = big.NewInt(987654321)

	td1, _ := BuildClaimTypedData(testDomain, ch1)
	td2, _ := BuildClaimTypedData(testDomain, ch2)
	h1, _, err := apitypes.TypedDataAndHash(td1)
	if err != nil {
		t.Fatal(err)
	}
	h2, _, err := apitypes.TypedDataAndHash(td2)
	if err != nil {
		t.Fatal(err)
	}
	if string(h1) == string(h2) {
		t.Fatal("nonce change did not alter the signing hash")
	}
}
