package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Api            ApiConf       `toml:"api" mapstructure:"api"`
	Log            LogConf       `toml:"log" mapstructure:"log"`
	DB             DBConf        `toml:"db" mapstructure:"db"`
	ChainSupported []ChainInfo   `toml:"chain_supported" mapstructure:"chain_supported"`
	TokenContract  TokenConf     `toml:"token_contract" mapstructure:"token_contract"`
	Reward         RewardConf    `toml:"reward" mapstructure:"reward"`
	Monitor        MonitorConf   `toml:"monitor" mapstructure:"monitor"`
}

type ApiConf struct {
	Port string `toml:"port" mapstructure:"port"`
}

type LogConf struct {
	Level       string `toml:"level" mapstructure:"level"`
	Development bool   `toml:"development" mapstructure:"development"`
}

type DBConf struct {
	DSN             string `toml:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int    `toml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifeSec  int    `toml:"conn_max_life_sec" mapstructure:"conn_max_life_sec"`
}

type ChainInfo struct {
	ChainID int    `toml:"chain_id" mapstructure:"chain_id"`
	Name    string `toml:"name" mapstructure:"name"`
}

type TokenConf struct {
	RPCEndpoint       string `toml:"rpc_endpoint" mapstructure:"rpc_endpoint"`
	WsEndpoint        string `toml:"ws_endpoint" mapstructure:"ws_endpoint"`
	ContractAddress   string `toml:"contract_address" mapstructure:"contract_address"`
	ChainID           int64  `toml:"chain_id" mapstructure:"chain_id"`
	PrivateKey        string `toml:"private_key" mapstructure:"private_key"`
	TokenDecimals     int32  `toml:"token_decimals" mapstructure:"token_decimals"`
	RequestTimeoutSec int    `toml:"request_timeout_sec" mapstructure:"request_timeout_sec"`
	ConfirmTimeoutSec int    `toml:"confirm_timeout_sec" mapstructure:"confirm_timeout_sec"`
}

type RewardConf struct {
	DomainName      string `toml:"domain_name" mapstructure:"domain_name"`
	DomainVersion   string `toml:"domain_version" mapstructure:"domain_version"`
	ChallengeTTLSec int    `toml:"challenge_ttl_sec" mapstructure:"challenge_ttl_sec"`
	SweepIntervalSec int   `toml:"sweep_interval_sec" mapstructure:"sweep_interval_sec"`
}

type MonitorConf struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`
}

const (
	defaultChallengeTTL  = 300 * time.Second
	defaultSweepInterval = 60 * time.Second
)

func (r RewardConf) ChallengeTTL() time.Duration {
	if r.ChallengeTTLSec <= 0 {
		return defaultChallengeTTL
	}
	return time.Duration(r.ChallengeTTLSec) * time.Second
}

func (r RewardConf) SweepInterval() time.Duration {
	if r.SweepIntervalSec <= 0 {
		return defaultSweepInterval
	}
	return time.Duration(r.SweepIntervalSec) * time.Second
}

func (t TokenConf) RequestTimeout() time.Duration {
	if t.RequestTimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(t.RequestTimeoutSec) * time.Second
}

func (t TokenConf) ConfirmTimeout() time.Duration {
	if t.ConfirmTimeoutSec <= 0 {
		return 120 * time.Second
	}
	return time.Duration(t.ConfirmTimeoutSec) * time.Second
}

// UnmarshalConfig reads a TOML config from path.
func UnmarshalConfig(configFilePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configFilePath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "failed on read config file")
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "failed on unmarshal config")
	}

	if c.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	if c.TokenContract.ContractAddress == "" {
		return nil, errors.New("token_contract.contract_address is required")
	}
	if c.TokenContract.TokenDecimals == 0 {
		c.TokenContract.TokenDecimals = 18
	}
	if c.Reward.DomainName == "" {
		c.Reward.DomainName = "EduChain Reward"
	}
	if c.Reward.DomainVersion == "" {
		c.Reward.DomainVersion = "1"
	}
	return c, nil
}
