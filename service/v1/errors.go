package service

import (
	"fmt"

	"github.com/pkg/errors"
)

// Claim failure taxonomy. Handlers map these onto errcode responses; the
// orchestrator uses them to decide whether a challenge survives the attempt.
var (
	ErrChallengeNotFound = errors.New("claim challenge not found")
	ErrChallengeExpired  = errors.New("claim challenge expired")
	ErrRuleUnavailable   = errors.New("reward rule missing or disabled")
	ErrAmountMismatch    = errors.New("challenge amount no longer matches reward rule")
	ErrBadSignature      = errors.New("malformed claim signature")
	ErrSignerMismatch    = errors.New("signature does not recover to claim wallet")
	ErrWalletNotBound    = errors.New("wallet does not belong to user")
	ErrAlreadyClaimed    = errors.New("reward already claimed")
)

// MintError is a chain-side settlement failure. TxHash is set when the mint
// was already broadcast, in which case a retry must check that hash instead of
// submitting a second transaction.
type MintError struct {
	TxHash string
	Err    error
}

func (e *MintError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("mint failed (tx %s pending): %v", e.TxHash, e.Err)
	}
	return fmt.Sprintf("mint failed: %v", e.Err)
}

func (e *MintError) Unwrap() error { return e.Err }

// PersistAfterMintError means tokens moved on-chain but the ledger write
// failed. Funds are unrecorded; this must never be treated as an ordinary
// error.
type PersistAfterMintError struct {
	TxHash string
	Err    error
}

func (e *PersistAfterMintError) Error() string {
	return fmt.Sprintf("minted on-chain (tx %s) but ledger write failed: %v", e.TxHash, e.Err)
}

func (e *PersistAfterMintError) Unwrap() error { return e.Err }
