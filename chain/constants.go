package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const (
	Eth      = "eth"
	Optimism = "optimism"
	Sepolia  = "sepolia"
)

const (
	EthChainID      = 1
	OptimismChainID = 10
	SepoliaChainID  = 11155111
)

var nameByID = map[int64]string{
	EthChainID:      Eth,
	OptimismChainID: Optimism,
	SepoliaChainID:  Sepolia,
}

// Supported reports whether the service knows how to settle on chainID.
func Supported(chainID int64) bool {
	_, ok := nameByID[chainID]
	return ok
}

func Name(chainID int64) string {
	return nameByID[chainID]
}

// UniformAddress lowercases a hex address after validating it.
func UniformAddress(address string) (string, error) {
	if len(address) <= 2 || !common.IsHexAddress(address) {
		return "", errors.New("user address is illegal")
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}
