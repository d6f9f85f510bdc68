package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	v1 "github.com/educhain/reward-service/api/v1"
	"github.com/educhain/reward-service/service/svc"
)

// NewRouter wires the reward API.
func NewRouter(svcCtx *svc.ServerCtx) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}))

	api := r.Group("/api/v1")
	{
		reward := api.Group("/reward")
		{
			reward.POST("/sign-request", v1.RequestClaimSignHandler(svcCtx))
			reward.POST("/claim", v1.ClaimRewardHandler(svcCtx))
			reward.GET("/rules", v1.GetRewardRulesHandler(svcCtx))
			reward.GET("/records/:userId", v1.GetRewardRecordsHandler(svcCtx))
			reward.GET("/balance/:address", v1.GetBalanceHandler(svcCtx))
		}

		admin := api.Group("/admin")
		{
			admin.POST("/reward/rule", v1.UpsertRewardRuleHandler(svcCtx))
		}
	}

	return r
}
