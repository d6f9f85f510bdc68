package service

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
)

// ClaimKind names the EIP-712 primary type of a claim. The field list of each
// kind is part of the signing contract: wallets display it and signatures bind
// to it, so a schema change requires a new kind name, never an edit in place.
type ClaimKind string

const (
	ClaimKindLearning ClaimKind = "ClaimLearningReward"
	ClaimKindResource ClaimKind = "ClaimResourceReward"
)

// claimFields is the fixed, ordered schema shared by both claim kinds.
var claimFields = []apitypes.Type{
	{Name: "subjectId", Type: "uint256"},
	{Name: "walletAddress", Type: "address"},
	{Name: "resourceId", Type: "uint256"},
	{Name: "rewardType", Type: "uint256"},
	{Name: "amount", Type: "string"},
	{Name: "nonce", Type: "uint256"},
	{Name: "deadline", Type: "uint256"},
}

// KindForRewardType maps a reward type to its claim kind.
func KindForRewardType(rewardType int64) (ClaimKind, error) {
	switch rewardType {
	case RewardTypeLearnComplete:
		return ClaimKindLearning, nil
	case RewardTypeResourceUpload:
		return ClaimKindResource, nil
	default:
		return "", errors.Errorf("unknown reward type %d", rewardType)
	}
}

// ClaimDomain is the EIP-712 domain the service signs under.
type ClaimDomain struct {
	Name              string
	Version           string
	VerifyingContract string
}

// BuildClaimTypedData assembles the domain/types/message for a challenge.
// Pure: same challenge in, same typed data out.
func BuildClaimTypedData(domain ClaimDomain, ch *ClaimChallenge) (apitypes.TypedData, error) {
	kind, err := KindForRewardType(ch.Key.RewardType)
	if err != nil {
		return apitypes.TypedData{}, err
	}

	td := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			string(kind): claimFields,
		},
		PrimaryType: string(kind),
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           math.NewHexOrDecimal256(ch.ChainID),
			VerifyingContract: domain.VerifyingContract,
		},
		Message: apitypes.TypedDataMessage{
			"subjectId":     math.NewHexOrDecimal256(ch.Key.UserID),
			"walletAddress": ch.Key.Wallet,
			"resourceId":    math.NewHexOrDecimal256(ch.Key.ResourceID),
			"rewardType":    math.NewHexOrDecimal256(ch.Key.RewardType),
			"amount":        ch.Amount,
			"nonce":         (*math.HexOrDecimal256)(ch.Nonce),
			"deadline":      math.NewHexOrDecimal256(ch.Deadline),
		},
	}
	return td, nil
}

// RecoverClaimSigner recovers the wallet that signed the typed data. sigHex is
// the 65-byte r||s||v wallet signature, hex encoded; v may be 0/1 or 27/28.
func RecoverClaimSigner(td apitypes.TypedData, sigHex string) (common.Address, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return common.Address{}, errors.Wrap(ErrBadSignature, err.Error())
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, errors.Wrapf(ErrBadSignature, "signature length %d", len(sig))
	}

	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed on hash typed data")
	}

	// wallets emit v as 27/28, go-ethereum wants 0/1
	cp := make([]byte, len(sig))
	copy(cp, sig)
	if cp[crypto.RecoveryIDOffset] >= 27 {
		cp[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(hash, cp)
	if err != nil {
		return common.Address{}, errors.Wrap(ErrBadSignature, err.Error())
	}
	return crypto.PubkeyToAddress(*pub), nil
}
