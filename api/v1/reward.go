package v1

import (
	"encoding/json"
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/educhain/reward-service/chain"
	"github.com/educhain/reward-service/dao"
	"github.com/educhain/reward-service/errcode"
	"github.com/educhain/reward-service/kit/validator"
	"github.com/educhain/reward-service/logger/xzap"
	"github.com/educhain/reward-service/service/svc"
	"github.com/educhain/reward-service/service/v1"
	"github.com/educhain/reward-service/types/v1"
	"github.com/educhain/reward-service/xhttp"
)

// claimErr maps service-layer claim failures onto wire error codes.
func claimErr(err error) *errcode.Err {
	switch {
	case errors.Is(err, service.ErrChallengeNotFound):
		return errcode.ErrNotFound
	case errors.Is(err, service.ErrChallengeExpired):
		return errcode.ErrExpired
	case errors.Is(err, service.ErrRuleUnavailable):
		return errcode.ErrRuleUnavailable
	case errors.Is(err, service.ErrAmountMismatch):
		return errcode.ErrAmountMismatch
	case errors.Is(err, service.ErrBadSignature), errors.Is(err, service.ErrSignerMismatch):
		return errcode.ErrBadSignature
	case errors.Is(err, service.ErrWalletNotBound):
		return errcode.NewCustomErr("wallet not bound to user")
	case errors.Is(err, service.ErrAlreadyClaimed):
		return errcode.ErrAlreadyClaimed
	}

	var persistErr *service.PersistAfterMintError
	if errors.As(err, &persistErr) {
		return errcode.ErrPersist
	}
	var mintErr *service.MintError
	if errors.As(err, &mintErr) {
		return errcode.ErrChain
	}
	return errcode.NewErr(errcode.CodeInternal, err.Error())
}

// RequestClaimSignHandler issues a claim challenge and returns the EIP-712
// payload for the wallet to sign.
func RequestClaimSignHandler(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := new(types.ClaimSignRequest)
		if err := c.ShouldBindBodyWithJSON(req); err != nil {
			xhttp.Error(c, errcode.ErrBadParams)
			return
		}
		if err := validator.Verify(req); err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}

		addr, err := chain.UniformAddress(req.Address)
		if err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}

		ctx := xzap.NewContext(c.Request.Context(),
			zap.Int64("user_id", req.UserID),
			zap.Int64("resource_id", req.ResourceID))
		td, ch, err := svcCtx.RewardSvc.RequestClaimSign(ctx, service.ClaimParams{
			UserID:     req.UserID,
			Wallet:     addr,
			ResourceID: req.ResourceID,
			RewardType: req.RewardType,
		})
		if err != nil {
			xhttp.Error(c, claimErr(err))
			return
		}

		raw, err := json.Marshal(td)
		if err != nil {
			xhttp.Error(c, errcode.ErrInternal)
			return
		}

		xhttp.OkJson(c, types.ClaimSignResponse{
			TypedData: raw,
			Deadline:  ch.Deadline,
		})
	}
}

// ClaimRewardHandler settles a signed claim and returns the ledger row.
func ClaimRewardHandler(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := new(types.ClaimRequest)
		if err := c.ShouldBindBodyWithJSON(req); err != nil {
			xhttp.Error(c, errcode.ErrBadParams)
			return
		}
		if err := validator.Verify(req); err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}

		addr, err := chain.UniformAddress(req.Address)
		if err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}

		ctx := xzap.NewContext(c.Request.Context(),
			zap.Int64("user_id", req.UserID),
			zap.Int64("resource_id", req.ResourceID))
		record, err := svcCtx.RewardSvc.Claim(ctx, service.ClaimParams{
			UserID:     req.UserID,
			Wallet:     addr,
			ResourceID: req.ResourceID,
			RewardType: req.RewardType,
		}, req.Signature)
		if err != nil {
			xhttp.Error(c, claimErr(err))
			return
		}

		xhttp.OkJson(c, toRecordResp(record))
	}
}

// GetRewardRulesHandler lists the current reward rules.
func GetRewardRulesHandler(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		rules, err := svcCtx.Dao.ListRewardRules(c.Request.Context())
		if err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}
		xhttp.OkJson(c, rules)
	}
}

// GetRewardRecordsHandler pages a user's settled rewards.
func GetRewardRecordsHandler(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Params.ByName("userId"), 10, 64)
		if err != nil || userID <= 0 {
			xhttp.Error(c, errcode.NewCustomErr("userId is illegal"))
			return
		}

		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
		if page <= 0 {
			page = 1
		}
		if pageSize <= 0 || pageSize > 100 {
			pageSize = 20
		}

		records, err := svcCtx.Dao.ListRewardTransactions(c.Request.Context(), userID, page, pageSize)
		if err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}

		resp := make([]types.RewardRecordResp, 0, len(records))
		for i := range records {
			resp = append(resp, toRecordResp(&records[i]))
		}
		xhttp.OkJson(c, resp)
	}
}

// GetBalanceHandler reads the on-chain token balance, falling back to the
// cached mirror when the node is unreachable.
func GetBalanceHandler(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		address := c.Params.ByName("address")
		addr, err := chain.UniformAddress(address)
		if err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}

		raw, err := svcCtx.TokenClient.BalanceOf(c.Request.Context(), ethcommon.HexToAddress(addr))
		if err == nil {
			bal := decimal.NewFromBigInt(raw, -svcCtx.C.TokenContract.TokenDecimals)
			xhttp.OkJson(c, types.BalanceResp{Address: addr, Balance: bal.String(), Source: "chain"})
			return
		}

		cached, cErr := svcCtx.Dao.GetCachedBalance(c.Request.Context(), addr)
		if cErr != nil || cached == "" {
			xhttp.Error(c, errcode.ErrChain)
			return
		}
		xhttp.OkJson(c, types.BalanceResp{Address: addr, Balance: cached, Source: "cache"})
	}
}

// UpsertRewardRuleHandler is the admin mutation of a reward rule.
func UpsertRewardRuleHandler(svcCtx *svc.ServerCtx) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := new(types.UpsertRuleRequest)
		if err := c.ShouldBindBodyWithJSON(req); err != nil {
			xhttp.Error(c, errcode.ErrBadParams)
			return
		}
		if err := validator.Verify(req); err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}
		if _, err := decimal.NewFromString(req.Amount); err != nil {
			xhttp.Error(c, errcode.NewCustomErr("amount is not a valid decimal"))
			return
		}

		rule := &dao.RewardRule{
			RewardType: req.RewardType,
			Amount:     req.Amount,
			Enabled:    *req.Enabled,
		}
		if err := svcCtx.Dao.UpsertRewardRule(c.Request.Context(), rule); err != nil {
			xhttp.Error(c, errcode.NewCustomErr(err.Error()))
			return
		}
		xhttp.OkJson(c, rule)
	}
}

func toRecordResp(r *dao.RewardTransaction) types.RewardRecordResp {
	return types.RewardRecordResp{
		ID:            r.ID,
		UserID:        r.UserID,
		TxType:        r.TxType,
		RewardType:    r.RewardType,
		RelatedID:     r.RelatedID,
		Amount:        r.Amount,
		BalanceBefore: r.BalanceBefore,
		BalanceAfter:  r.BalanceAfter,
		ChainTxHash:   r.ChainTxHash,
		CreatedAt:     r.CreatedAt,
		ConfirmedAt:   r.ConfirmedAt,
	}
}
