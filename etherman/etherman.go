package etherman

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/TEENet-io/mintburn-bridge/bridge"
	"github.com/TEENet-io/mintburn-bridge/common"
	"github.com/TEENet-io/mintburn-bridge/order"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	logger "github.com/sirupsen/logrus"
)

type Config struct {
	// URL is the URL of the Ethereum node
	URL string

	// BridgeContractAddress is the deployed bridge contract address
	BridgeContractAddress ethcommon.Address

	// hex key of the account that submits mint transactions
	MinterPrivateKey string

	// 0 lets the node estimate
	GasLimit uint64
}

type ethereumClient interface {
	ethereum.ChainReader
	ethereum.ChainIDReader
	ethereum.BlockNumberReader
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.GasPricer
	ethereum.LogFilterer
	ethereum.TransactionReader
	ethereum.TransactionSender

	bind.DeployBackend
	bind.ContractBackend
}

// Etherman is the Client of a bridge contract deployed on a real chain.
type Etherman struct {
	ethClient     ethereumClient
	bridgeAddress ethcommon.Address
	contract      *bind.BoundContract
	auth          *bind.TransactOpts
}

func NewEtherman(ctx context.Context, cfg *Config) (*Etherman, error) {
	ethClient, err := ethclient.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}

	sk, err := StringToPrivateKey(cfg.MinterPrivateKey)
	if err != nil {
		return nil, err
	}
	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	auth, err := NewAuth(sk, chainID)
	if err != nil {
		return nil, err
	}
	auth.GasLimit = cfg.GasLimit

	return NewEthermanWithBackend(ethClient, cfg.BridgeContractAddress, auth), nil
}

func NewEthermanWithBackend(ethClient ethereumClient, bridgeAddress ethcommon.Address, auth *bind.TransactOpts) *Etherman {
	return &Etherman{
		ethClient:     ethClient,
		bridgeAddress: bridgeAddress,
		contract:      bind.NewBoundContract(bridgeAddress, bridgeABI, ethClient, ethClient, ethClient),
		auth:          auth,
	}
}

func NewAuth(sk *ecdsa.PrivateKey, chainID *big.Int) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(sk, chainID)
}

func StringToPrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(common.Trim0xPrefix(hexKey))
}

func (etherman *Etherman) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := etherman.ethClient.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
	}
	return id, nil
}

func (etherman *Etherman) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := etherman.ethClient.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
	}
	return price, nil
}

func (etherman *Etherman) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := etherman.ethClient.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
	}
	return n, nil
}

func (etherman *Etherman) transactOpts(ctx context.Context) *bind.TransactOpts {
	opts := *etherman.auth
	opts.Context = ctx
	return &opts
}

// classify separates contract reverts from node failures
func classify(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "execution reverted") {
		return fmt.Errorf("%w: %v", ErrReverted, err)
	}
	return fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
}

func (etherman *Etherman) send(ctx context.Context, method string, args ...interface{}) (*Receipt, error) {
	tx, err := etherman.contract.Transact(etherman.transactOpts(ctx), method, args...)
	if err != nil {
		return nil, classify(err)
	}

	logger.WithFields(logger.Fields{
		"method": method,
		"tx":     tx.Hash().Hex(),
	}).Debug("bridge tx sent")

	receipt, err := bind.WaitMined(ctx, etherman.ethClient, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
	}

	res := &Receipt{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		Status:      receipt.Status,
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return res, fmt.Errorf("%w: tx %s", ErrReverted, receipt.TxHash.Hex())
	}
	return res, nil
}

func (etherman *Etherman) SubmitMint(ctx context.Context, signed order.SignedOrder) (*Receipt, error) {
	if err := signed.Validate(); err != nil {
		return nil, err
	}
	return etherman.send(ctx, "mint", []byte(signed))
}

// SubmitBatchMint dry-runs the batch with eth_call to learn the per order
// results, then sends it.
func (etherman *Etherman) SubmitBatchMint(ctx context.Context, signed *order.SignedOrders, indices []uint32) (*Receipt, error) {
	if err := signed.Validate(); err != nil {
		return nil, err
	}
	if indices == nil {
		indices = []uint32{}
	}

	var out []interface{}
	callOpts := &bind.CallOpts{Context: ctx, From: etherman.auth.From}
	if err := etherman.contract.Call(callOpts, &out, "batchMint", signed.Orders, signed.Signature, indices); err != nil {
		return nil, classify(err)
	}

	codes := []bridge.BatchMintErrorCode{}
	if len(out) == 1 {
		if raw, ok := out[0].([]uint8); ok {
			for _, c := range raw {
				codes = append(codes, bridge.BatchMintErrorCode(c))
			}
		}
	}

	res, err := etherman.send(ctx, "batchMint", signed.Orders, signed.Signature, indices)
	if res != nil {
		res.BatchResults = codes
	}
	return res, err
}

func (etherman *Etherman) IsNonceUsed(ctx context.Context, senderID order.Id256, nonce uint32) (bool, error) {
	var out []interface{}
	if err := etherman.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isNonceUsed", [32]byte(senderID), nonce); err != nil {
		return false, classify(err)
	}
	used, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected isNonceUsed output %T", out[0])
	}
	return used, nil
}

func (etherman *Etherman) GetWrappedToken(ctx context.Context, baseID order.Id256) (ethcommon.Address, error) {
	var out []interface{}
	if err := etherman.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getWrappedToken", [32]byte(baseID)); err != nil {
		return ethcommon.Address{}, classify(err)
	}
	addr, ok := out[0].(ethcommon.Address)
	if !ok {
		return ethcommon.Address{}, fmt.Errorf("unexpected getWrappedToken output %T", out[0])
	}
	return addr, nil
}

func (etherman *Etherman) GetEvents(ctx context.Context, filter Filter) ([]bridge.Log, error) {
	if filter.To < filter.From {
		return nil, ErrInvalidFilter
	}

	logs, err := etherman.ethClient.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(filter.From),
		ToBlock:   new(big.Int).SetUint64(filter.To),
		Addresses: []ethcommon.Address{etherman.bridgeAddress},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
	}

	events := make([]bridge.Log, 0, len(logs))
	for _, vlog := range logs {
		ev, err := DecodeLog(vlog)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}
