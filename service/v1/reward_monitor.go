package service

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/educhain/reward-service/config"
	"github.com/educhain/reward-service/dao"
	"github.com/educhain/reward-service/logger/xzap"
)

// MintObservedEvent is a Transfer from the zero address, i.e. a mint.
type MintObservedEvent struct {
	To     common.Address
	Amount *big.Int
	TxHash string
}

var zeroTopic = common.Hash{}

// StartRewardEventListener tails the token contract's Transfer logs and stamps
// ledger rows whose mint it sees confirmed. Reconnects with backoff when the
// websocket drops. Blocks; run under threading.GoSafe.
func StartRewardEventListener(cfg *config.Config, d *dao.Dao) {
	for {
		if err := runRewardEventListener(cfg, d); err != nil {
			xzap.WithContext(context.Background()).Warn("reward event listener stopped, reconnecting",
				zap.Error(err))
		}
		time.Sleep(5 * time.Second)
	}
}

func runRewardEventListener(cfg *config.Config, d *dao.Dao) error {
	client, err := ethclient.Dial(cfg.TokenContract.WsEndpoint)
	if err != nil {
		return err
	}
	defer client.Close()

	contractAddress := common.HexToAddress(cfg.TokenContract.ContractAddress)

	// Transfer(address indexed from, address indexed to, uint256 value)
	transferTopicHash := crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

	query := ethereum.FilterQuery{
		Addresses: []common.Address{contractAddress},
		Topics: [][]common.Hash{
			{transferTopicHash},
			{zeroTopic}, // mints only: from == 0x0
		},
	}

	logs := make(chan types.Log)
	sub, err := client.SubscribeFilterLogs(context.Background(), query, logs)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	xzap.WithContext(context.Background()).Info("reward event listener started",
		zap.String("contract", contractAddress.Hex()))

	for {
		select {
		case err := <-sub.Err():
			return err
		case vLog := <-logs:
			event, err := parseMintEvent(vLog)
			if err != nil {
				xzap.WithContext(context.Background()).Warn("failed to parse mint log", zap.Error(err))
				continue
			}

			xzap.WithContext(context.Background()).Info("mint confirmed on-chain",
				zap.String("to", event.To.Hex()),
				zap.String("amount", event.Amount.String()),
				zap.String("tx_hash", event.TxHash),
				zap.Uint64("block", vLog.BlockNumber))

			if err := d.MarkConfirmed(context.Background(), event.TxHash, time.Now()); err != nil {
				xzap.WithContext(context.Background()).Warn("failed to stamp ledger row",
					zap.String("tx_hash", event.TxHash), zap.Error(err))
			}
		}
	}
}

func parseMintEvent(vLog types.Log) (*MintObservedEvent, error) {
	if len(vLog.Topics) < 3 {
		return nil, errMalformedTransferLog
	}
	return &MintObservedEvent{
		To:     common.BytesToAddress(vLog.Topics[2].Bytes()),
		Amount: new(big.Int).SetBytes(vLog.Data),
		TxHash: vLog.TxHash.Hex(),
	}, nil
}

var errMalformedTransferLog = errors.New("transfer log missing indexed topics")
