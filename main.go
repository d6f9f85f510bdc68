package main

import (
	"flag"
	"fmt"
	_ "net/http/pprof"

	"github.com/zeromicro/go-zero/core/threading"

	"github.com/educhain/reward-service/api/router"
	"github.com/educhain/reward-service/app"
	"github.com/educhain/reward-service/chain"
	"github.com/educhain/reward-service/config"
	"github.com/educhain/reward-service/service/svc"
	"github.com/educhain/reward-service/service/v1"
)

const (
	defaultConfigPath = "./config/config.toml"
)

func main() {
	conf := flag.String("conf", defaultConfigPath, "conf file path")
	flag.Parse()
	c, err := config.UnmarshalConfig(*conf)
	if err != nil {
		panic(err)
	}

	for _, ci := range c.ChainSupported {
		if !chain.Supported(int64(ci.ChainID)) {
			panic(fmt.Sprintf("unsupported chain id %d in chain_supported", ci.ChainID))
		}
	}
	if !chain.Supported(c.TokenContract.ChainID) {
		panic(fmt.Sprintf("unsupported token contract chain id %d", c.TokenContract.ChainID))
	}

	serverCtx, err := svc.NewServiceContext(c)
	if err != nil {
		panic(err)
	}
	defer serverCtx.Close()

	r := router.NewRouter(serverCtx)

	if c.Monitor.Enabled {
		threading.GoSafe(func() {
			service.StartRewardEventListener(c, serverCtx.Dao)
		})
	}

	app, err := app.NewPlatform(c, r, serverCtx)
	if err != nil {
		panic(err)
	}
	app.Start()
}
