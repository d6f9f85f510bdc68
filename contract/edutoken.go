package contract

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/educhain/reward-service/config"
	"github.com/educhain/reward-service/logger/xzap"
)

// EduTokenContract wraps the reward token contract. Minting goes through the
// custodial signer configured in token_contract.private_key.
type EduTokenContract struct {
	client      *ethclient.Client
	config      *config.Config
	contractABI abi.ABI
	address     common.Address
	signerKey   *ecdsa.PrivateKey
	signerAddr  common.Address
}

// Minimal ABI: only the methods the settlement path needs.
const contractABI = `[
    {
        "inputs": [
            {
                "internalType": "address",
                "name": "to",
                "type": "address"
            },
            {
                "internalType": "uint256",
                "name": "amount",
                "type": "uint256"
            }
        ],
        "name": "mint",
        "outputs": [],
        "stateMutability": "nonpayable",
        "type": "function"
    },
    {
        "inputs": [
            {
                "internalType": "address",
                "name": "account",
                "type": "address"
            }
        ],
        "name": "balanceOf",
        "outputs": [
            {
                "internalType": "uint256",
                "name": "",
                "type": "uint256"
            }
        ],
        "stateMutability": "view",
        "type": "function"
    },
    {
        "inputs": [],
        "name": "paused",
        "outputs": [
            {
                "internalType": "bool",
                "name": "",
                "type": "bool"
            }
        ],
        "stateMutability": "view",
        "type": "function"
    }
]`

func NewEduTokenContract(cfg *config.Config) (*EduTokenContract, error) {
	var client *ethclient.Client
	var err error

	// 最多重试3次
	for i := 0; i < 3; i++ {
		client, err = connectWithTimeout(cfg.TokenContract.RPCEndpoint, 30*time.Second)
		if err == nil {
			break
		}
		xzap.WithContext(context.Background()).Warn("connect ethereum node failed",
			zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum node after 3 attempts: %v", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %v", err)
	}

	if !common.IsHexAddress(cfg.TokenContract.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address: %s", cfg.TokenContract.ContractAddress)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.TokenContract.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid custodial private key: %v", err)
	}

	return &EduTokenContract{
		client:      client,
		config:      cfg,
		contractABI: parsedABI,
		address:     common.HexToAddress(cfg.TokenContract.ContractAddress),
		signerKey:   key,
		signerAddr:  crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func connectWithTimeout(endpoint string, timeout time.Duration) (*ethclient.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum node: %v", err)
	}
	return client, nil
}

// CheckContractStatus rejects minting while the token contract is paused.
func (c *EduTokenContract) CheckContractStatus(ctx context.Context) error {
	data, err := c.contractABI.Pack("paused")
	if err != nil {
		return fmt.Errorf("failed to pack paused call: %v", err)
	}

	callMsg := ethereum.CallMsg{To: &c.address, Data: data}

	ctx, cancel := context.WithTimeout(ctx, c.config.TokenContract.RequestTimeout())
	defer cancel()

	result, err := c.client.CallContract(ctx, callMsg, nil)
	if err != nil {
		return fmt.Errorf("failed to check contract pause status: %v", err)
	}
	if new(big.Int).SetBytes(result).Cmp(big.NewInt(0)) != 0 {
		return fmt.Errorf("contract is paused")
	}
	return nil
}

// BalanceOf reads the on-chain token balance of addr.
func (c *EduTokenContract) BalanceOf(ctx context.Context, addr common.Address) (*big.Int, error) {
	data, err := c.contractABI.Pack("balanceOf", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf call: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.TokenContract.RequestTimeout())
	defer cancel()

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %v", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// Mint submits mint(to, amount) from the custodial signer and waits for the
// receipt. The tx hash is returned even when confirmation fails, so the caller
// can later check the receipt instead of broadcasting a second mint.
func (c *EduTokenContract) Mint(ctx context.Context, to common.Address, amount *big.Int) (string, error) {
	if err := c.CheckContractStatus(ctx); err != nil {
		return "", err
	}

	reqTimeout := c.config.TokenContract.RequestTimeout()

	callCtx, cancel := context.WithTimeout(ctx, reqTimeout)
	nonce, err := c.client.PendingNonceAt(callCtx, c.signerAddr)
	cancel()
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %v", err)
	}

	callCtx, cancel = context.WithTimeout(ctx, reqTimeout)
	gasPrice, err := c.client.SuggestGasPrice(callCtx)
	cancel()
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %v", err)
	}

	data, err := c.contractABI.Pack("mint", to, amount)
	if err != nil {
		return "", fmt.Errorf("failed to pack transaction data: %v", err)
	}

	callCtx, cancel = context.WithTimeout(ctx, reqTimeout)
	gasLimit, err := c.client.EstimateGas(callCtx, ethereum.CallMsg{
		From:  c.signerAddr,
		To:    &c.address,
		Data:  data,
		Value: big.NewInt(0),
	})
	cancel()
	if err != nil {
		return "", fmt.Errorf("failed to estimate gas: %v", err)
	}

	tx := types.NewTransaction(nonce, c.address, big.NewInt(0), gasLimit, gasPrice, data)

	signedTx, err := types.SignTx(tx,
		types.NewEIP155Signer(big.NewInt(c.config.TokenContract.ChainID)), c.signerKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %v", err)
	}
	txHash := signedTx.Hash().Hex()

	callCtx, cancel = context.WithTimeout(ctx, reqTimeout)
	err = c.client.SendTransaction(callCtx, signedTx)
	cancel()
	if err != nil {
		return "", fmt.Errorf("failed to send transaction: %v", err)
	}

	// Once broadcast the tx cannot be recalled; from here on the hash travels
	// with any error so the caller never re-broadcasts blindly.
	callCtx, cancel = context.WithTimeout(ctx, c.config.TokenContract.ConfirmTimeout())
	receipt, err := bind.WaitMined(callCtx, c.client, signedTx)
	cancel()
	if err != nil {
		return txHash, fmt.Errorf("failed to wait for transaction %s: %v", txHash, err)
	}
	if receipt.Status == 0 {
		return txHash, fmt.Errorf("transaction %s reverted", txHash)
	}

	return txHash, nil
}

// TransactionReceipt looks up the receipt of a previously broadcast mint.
func (c *EduTokenContract) TransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.TokenContract.RequestTimeout())
	defer cancel()
	return c.client.TransactionReceipt(ctx, common.HexToHash(txHash))
}

func (c *EduTokenContract) SignerAddress() common.Address {
	return c.signerAddr
}

// Close closes the underlying RPC client.
func (c *EduTokenContract) Close() {
	if c.client != nil {
		c.client.Close()
	}
}
