package svc

import (
	"context"

	"github.com/pkg/errors"
	"github.com/zeromicro/go-zero/core/threading"
	"go.uber.org/zap"

	"github.com/educhain/reward-service/chain"
	"github.com/educhain/reward-service/config"
	"github.com/educhain/reward-service/contract"
	"github.com/educhain/reward-service/dao"
	"github.com/educhain/reward-service/logger/xzap"
	"github.com/educhain/reward-service/service/v1"
)

// ServerCtx carries the wired singletons every handler needs.
type ServerCtx struct {
	C           *config.Config
	Dao         *dao.Dao
	TokenClient *contract.EduTokenContract
	RewardSvc   *service.RewardService

	stopSweeper chan struct{}
}

func NewServiceContext(c *config.Config) (*ServerCtx, error) {
	if _, err := xzap.SetUp(c.Log.Level, c.Log.Development); err != nil {
		return nil, errors.Wrap(err, "failed on logger setup")
	}

	db, err := dao.NewDB(c.DB)
	if err != nil {
		return nil, err
	}
	d := dao.New(db)
	if err := d.Migrate(); err != nil {
		return nil, errors.Wrap(err, "failed on migrate reward tables")
	}

	tokenClient, err := contract.NewEduTokenContract(c)
	if err != nil {
		return nil, err
	}
	xzap.WithContext(context.Background()).Info("token contract client ready",
		zap.String("chain", chain.Name(c.TokenContract.ChainID)),
		zap.String("contract", c.TokenContract.ContractAddress),
		zap.String("signer", tokenClient.SignerAddress().Hex()))

	domain := service.ClaimDomain{
		Name:              c.Reward.DomainName,
		Version:           c.Reward.DomainVersion,
		VerifyingContract: c.TokenContract.ContractAddress,
	}

	store := service.NewChallengeStore()
	rules := service.NewRuleRegistry(d)
	verifier := service.NewClaimVerifier(store, rules, domain)
	settler := service.NewSettlementExecutor(tokenClient, d, c.TokenContract.TokenDecimals)
	rewardSvc := service.NewRewardService(
		store, verifier, settler, rules, d,
		domain, c.TokenContract.ChainID, c.Reward.ChallengeTTL(),
	)

	ctx := &ServerCtx{
		C:           c,
		Dao:         d,
		TokenClient: tokenClient,
		RewardSvc:   rewardSvc,
		stopSweeper: make(chan struct{}),
	}

	threading.GoSafe(func() {
		service.StartChallengeSweeper(store, c.Reward.SweepInterval(), ctx.stopSweeper)
	})

	return ctx, nil
}

// Close releases external connections.
func (s *ServerCtx) Close() {
	close(s.stopSweeper)
	if s.TokenClient != nil {
		s.TokenClient.Close()
	}
}
