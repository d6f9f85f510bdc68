package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
[api]
port = ":9100"

[db]
dsn = "root:root@tcp(127.0.0.1:3306)/educhain?parseTime=True"

[[chain_supported]]
chain_id = 11155111
name = "sepolia"

[token_contract]
rpc_endpoint = "https://example.invalid/rpc"
contract_address = "0x1111111111111111111111111111111111111111"
chain_id = 11155111
private_key = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

[reward]
challenge_ttl_sec = 120
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestUnmarshalConfig(t *testing.T) {
	c, err := UnmarshalConfig(writeSample(t))
	if err != nil {
		t.Fatal(err)
	}

	if c.Api.Port != ":9100" {
		t.Fatalf("port = %s", c.Api.Port)
	}
	if len(c.ChainSupported) != 1 || c.ChainSupported[0].ChainID != 11155111 {
		t.Fatalf("chain_supported = %+v", c.ChainSupported)
	}
	if c.Reward.ChallengeTTL() != 120*time.Second {
		t.Fatalf("ttl = %s", c.Reward.ChallengeTTL())
	}

	// defaults fill in what the file omits
	if c.TokenContract.TokenDecimals != 18 {
		t.Fatalf("token decimals = %d", c.TokenContract.TokenDecimals)
	}
	if c.Reward.DomainName != "EduChain Reward" || c.Reward.DomainVersion != "1" {
		t.Fatalf("domain = %s/%s", c.Reward.DomainName, c.Reward.DomainVersion)
	}
	if c.Reward.SweepInterval() != 60*time.Second {
		t.Fatalf("sweep interval = %s", c.Reward.SweepInterval())
	}
	if c.TokenContract.ConfirmTimeout() != 120*time.Second {
		t.Fatalf("confirm timeout = %s", c.TokenContract.ConfirmTimeout())
	}
}

func TestUnmarshalConfigRejectsMissingDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[api]\nport = \":9100\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := UnmarshalConfig(path); err == nil {
		t.Fatal("expected error for missing db.dsn")
	}
}
