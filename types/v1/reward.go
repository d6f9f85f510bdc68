package types

import (
	"encoding/json"
	"time"
)

// ClaimSignRequest asks for a fresh signing challenge.
type ClaimSignRequest struct {
	UserID     int64  `json:"user_id" binding:"required" validate:"required,gt=0"`
	Address    string `json:"address" binding:"required" validate:"required"`
	ResourceID int64  `json:"resource_id" binding:"required" validate:"required,gt=0"`
	RewardType int64  `json:"reward_type" binding:"required" validate:"required,oneof=1 2"`
}

// ClaimSignResponse is the EIP-712 payload the wallet signs. TypedData is the
// full domain/types/message document.
type ClaimSignResponse struct {
	TypedData json.RawMessage `json:"typed_data"`
	Deadline  int64           `json:"deadline"`
}

// ClaimRequest submits a signed claim for settlement.
type ClaimRequest struct {
	UserID     int64  `json:"user_id" binding:"required" validate:"required,gt=0"`
	Address    string `json:"address" binding:"required" validate:"required"`
	ResourceID int64  `json:"resource_id" binding:"required" validate:"required,gt=0"`
	RewardType int64  `json:"reward_type" binding:"required" validate:"required,oneof=1 2"`
	Signature  string `json:"signature" binding:"required" validate:"required"`
}

// RewardRecordResp mirrors one settled ledger row.
type RewardRecordResp struct {
	ID            string     `json:"id"`
	UserID        int64      `json:"user_id"`
	TxType        string     `json:"tx_type"`
	RewardType    int64      `json:"reward_type"`
	RelatedID     int64      `json:"related_id"`
	Amount        string     `json:"amount"`
	BalanceBefore string     `json:"balance_before"`
	BalanceAfter  string     `json:"balance_after"`
	ChainTxHash   string     `json:"chain_tx_hash"`
	CreatedAt     time.Time  `json:"created_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
}

// BalanceResp returns the live balance with its source ("chain" or "cache").
type BalanceResp struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Source  string `json:"source"`
}

// UpsertRuleRequest is the admin mutation of a reward rule.
type UpsertRuleRequest struct {
	RewardType int64  `json:"reward_type" binding:"required" validate:"required,oneof=1 2"`
	Amount     string `json:"amount" binding:"required" validate:"required"`
	Enabled    *bool  `json:"enabled" binding:"required" validate:"required"`
}
