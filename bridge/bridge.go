package bridge

import (
	"encoding/binary"
	"math/big"
	"sync"

	"github.com/TEENet-io/mintburn-bridge/common"
	"github.com/TEENet-io/mintburn-bridge/order"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	logger "github.com/sirupsen/logrus"
)

const (
	DefaultMintGasUsed       = 120_000
	DefaultCommonBatchGasFee = 200_000
	DefaultPerOrderGasFee    = 100_000
)

type Config struct {
	Address       ethcommon.Address
	ChainID       uint32
	Minter        ethcommon.Address
	IsWrappedSide bool

	// Fees are only charged when the minter submits the call.
	FeeChargeEnabled  bool
	MintGasUsed       uint64
	AdditionalGasFee  uint64
	CommonBatchGasFee uint64
	PerOrderGasFee    uint64
}

// CallOpts describes the transaction context of a call.
type CallOpts struct {
	Sender   ethcommon.Address
	GasPrice *big.Int
}

// Bridge is the destination chain contract. Calls are serialized, and a call
// that fails leaves every map untouched.
type Bridge struct {
	mu sync.Mutex

	cfg       Config
	tokens    *TokenStore
	feeCharge *FeeCharge

	nonces      *NonceGuard
	pairs       *TokenPairRegistry
	burnHistory map[ethcommon.Address]*RingBuffer
	operationID uint32

	block   uint64
	txCount uint64
	txHash  ethcommon.Hash
	logs    []Log
}

func NewBridge(cfg Config, tokens *TokenStore, feeCharge *FeeCharge) *Bridge {
	if cfg.MintGasUsed == 0 {
		cfg.MintGasUsed = DefaultMintGasUsed
	}
	if cfg.CommonBatchGasFee == 0 {
		cfg.CommonBatchGasFee = DefaultCommonBatchGasFee
	}
	if cfg.PerOrderGasFee == 0 {
		cfg.PerOrderGasFee = DefaultPerOrderGasFee
	}
	if feeCharge != nil {
		feeCharge.AllowCharger(cfg.Address)
	}

	return &Bridge{
		cfg:         cfg,
		tokens:      tokens,
		feeCharge:   feeCharge,
		nonces:      NewNonceGuard(),
		pairs:       NewTokenPairRegistry(),
		burnHistory: make(map[ethcommon.Address]*RingBuffer),
	}
}

func (b *Bridge) Config() Config {
	return b.cfg
}

func (b *Bridge) Tokens() *TokenStore {
	return b.tokens
}

func (b *Bridge) FeeCharge() *FeeCharge {
	return b.feeCharge
}

// DeployERC20 deploys a wrapped token owned by the bridge and pairs it with baseTokenID.
func (b *Bridge) DeployERC20(opts CallOpts, name, symbol string, decimals uint8, baseTokenID order.Id256) (ethcommon.Address, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.cfg.IsWrappedSide {
		return ethcommon.Address{}, revert(ErrNotWrappedSide)
	}
	if baseTokenID.IsZero() {
		return ethcommon.Address{}, revert(ErrInvalidBaseToken)
	}
	if b.pairs.GetWrappedToken(baseTokenID) != (ethcommon.Address{}) {
		return ethcommon.Address{}, revert(ErrWrapperAlreadyExists)
	}

	b.beginTx(opts.Sender)
	tok := b.tokens.Deploy(b.cfg.Address, name, symbol, decimals, true)
	if err := b.pairs.Register(baseTokenID, tok.Address); err != nil {
		return ethcommon.Address{}, revert(err)
	}

	b.emit(&WrappedTokenDeployedEvent{
		Name:         name,
		Symbol:       symbol,
		Decimals:     decimals,
		BaseTokenID:  baseTokenID,
		WrappedERC20: tok.Address,
	})

	logger.WithFields(logger.Fields{
		"baseToken": baseTokenID.String(),
		"wrapped":   tok.Address.String(),
	}).Debug("wrapped token deployed")

	return tok.Address, nil
}

// Mint executes one signed order. Every violation reverts the call.
func (b *Bridge) Mint(opts CallOpts, encodedOrder []byte) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	signed := order.SignedOrder(encodedOrder)
	o, err := signed.Order()
	if err != nil {
		return 0, revert(ErrInvalidOrdersEncoding)
	}

	if err := b.validateOrder(o); err != nil {
		return 0, revert(err)
	}

	signer, err := signed.Recover()
	if err != nil || signer != b.cfg.Minter {
		return 0, revert(ErrInvalidSignature)
	}

	fee := new(big.Int)
	if b.chargesFee(opts) {
		fee = b.mintFee(opts.GasPrice)
		if !b.feeCharge.CanCharge(o.FeePayer, fee) {
			return 0, revert(ErrInsufficientFeeDeposit)
		}
	}

	b.beginTx(opts.Sender)
	if err := b.applyMint(o, fee); err != nil {
		return 0, revert(err)
	}

	return o.Nonce, nil
}

// validateOrder is the hard check of the single order entrypoint.
func (b *Bridge) validateOrder(o *order.MintOrder) error {
	if o.Recipient == (ethcommon.Address{}) {
		return ErrZeroRecipient
	}
	if o.Amount == nil || o.Amount.Sign() == 0 {
		return ErrZeroAmount
	}
	if b.nonces.IsUsed(o.SenderID, o.Nonce) {
		return ErrUsedNonce
	}
	if o.RecipientChainID != b.cfg.ChainID {
		return ErrUnexpectedRecipientChain
	}
	if b.pairs.IsWrapped(o.ToToken) && b.pairs.GetBaseToken(o.ToToken) != o.FromTokenID {
		return ErrSrcTokenMismatch
	}
	if !b.canDeliver(o.ToToken, o.Amount, nil) {
		return ErrTokensNotBridged
	}
	return nil
}

// canDeliver tells whether amount of token can be handed out. The wrapped
// side mints registered tokens, the base side pays from escrow.
func (b *Bridge) canDeliver(token ethcommon.Address, amount *big.Int, reserved map[ethcommon.Address]*big.Int) bool {
	tok, ok := b.tokens.Get(token)
	if !ok {
		return false
	}
	if b.cfg.IsWrappedSide {
		return b.pairs.IsWrapped(token) && tok.Owner == b.cfg.Address
	}

	need := new(big.Int).Set(amount)
	if r, ok := reserved[token]; ok {
		need.Add(need, r)
	}
	return tok.BalanceOf(b.cfg.Address).Cmp(need) >= 0
}

func (b *Bridge) chargesFee(opts CallOpts) bool {
	return b.cfg.FeeChargeEnabled && b.feeCharge != nil && opts.Sender == b.cfg.Minter
}

// mintFee is (gas used so far + additional gas fee) * gas price.
func (b *Bridge) mintFee(gasPrice *big.Int) *big.Int {
	if gasPrice == nil {
		return new(big.Int)
	}
	gas := new(big.Int).SetUint64(b.cfg.MintGasUsed + b.cfg.AdditionalGasFee)
	return gas.Mul(gas, gasPrice)
}

// applyMint performs the effects of an already validated order.
func (b *Bridge) applyMint(o *order.MintOrder, fee *big.Int) error {
	tok, ok := b.tokens.Get(o.ToToken)
	if !ok {
		return ErrUnknownToken
	}

	b.nonces.MarkUsed(o.SenderID, o.Nonce)

	if b.cfg.IsWrappedSide {
		if err := b.updateTokenMetadata(tok, o); err != nil {
			return err
		}
		if err := tok.Mint(b.cfg.Address, o.Recipient, o.Amount); err != nil {
			return err
		}
	} else {
		if err := tok.Transfer(b.cfg.Address, o.Recipient, o.Amount); err != nil {
			return err
		}
	}

	if o.ApproveSpender != (ethcommon.Address{}) && o.ApproveAmount != nil && o.ApproveAmount.Sign() > 0 && tok.Owner == b.cfg.Address {
		if err := tok.ApproveByOwner(b.cfg.Address, o.Recipient, o.ApproveSpender, o.ApproveAmount); err != nil {
			return err
		}
	}

	if fee.Sign() > 0 {
		if err := b.feeCharge.Charge(b.cfg.Address, o.FeePayer, b.cfg.Minter, fee); err != nil {
			return err
		}
	}

	b.emit(&MintTokenEvent{
		Amount:     new(big.Int).Set(o.Amount),
		FromToken:  o.FromTokenID,
		SenderID:   o.SenderID,
		ToERC20:    o.ToToken,
		Recipient:  o.Recipient,
		Nonce:      o.Nonce,
		ChargedFee: new(big.Int).Set(fee),
	})

	logger.WithFields(logger.Fields{
		"sender":    o.SenderID.String(),
		"nonce":     o.Nonce,
		"recipient": o.Recipient.String(),
		"amount":    o.Amount,
		"fee":       fee,
	}).Debug("minted")

	return nil
}

func (b *Bridge) updateTokenMetadata(tok *ERC20, o *order.MintOrder) error {
	name, symbol := o.NameString(), o.SymbolString()
	if name == "" && symbol == "" {
		return nil
	}
	if tok.Name() == name && tok.Symbol() == symbol && tok.Decimals() == o.Decimals {
		return nil
	}
	return tok.SetMetaData(b.cfg.Address, name, symbol, o.Decimals)
}

// Burn escrows amount of fromToken and returns the new operation id.
func (b *Bridge) Burn(opts CallOpts, amount *big.Int, fromToken ethcommon.Address, toTokenID [32]byte, recipientID []byte, memo [32]byte) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if fromToken == b.cfg.Address {
		return 0, revert(ErrInvalidFromToken)
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, revert(ErrZeroAmount)
	}

	tok, ok := b.tokens.Get(fromToken)
	if !ok {
		return 0, revert(ErrTokensNotBridged)
	}

	if b.cfg.IsWrappedSide {
		if b.pairs.GetBaseToken(fromToken).IsZero() {
			return 0, revert(ErrTokensNotBridged)
		}
		if tok.BalanceOf(opts.Sender).Cmp(amount) < 0 {
			return 0, revert(ErrInsufficientBalance)
		}
	} else {
		if tok.Allowance(opts.Sender, b.cfg.Address).Cmp(amount) < 0 {
			return 0, revert(ErrInsufficientAllowance)
		}
		if tok.BalanceOf(opts.Sender).Cmp(amount) < 0 {
			return 0, revert(ErrInsufficientBalance)
		}
	}

	b.beginTx(opts.Sender)

	// wrapped tokens only let their owner grant allowances on behalf of holders
	if b.cfg.IsWrappedSide {
		if err := tok.ApproveByOwner(b.cfg.Address, opts.Sender, b.cfg.Address, amount); err != nil {
			return 0, revert(err)
		}
	}
	if err := tok.TransferFrom(b.cfg.Address, opts.Sender, b.cfg.Address, amount); err != nil {
		return 0, revert(err)
	}

	opID := b.operationID
	b.operationID++

	history, ok := b.burnHistory[opts.Sender]
	if !ok {
		history = &RingBuffer{}
		b.burnHistory[opts.Sender] = history
	}
	history.Push(uint32(b.block))

	ev := &BurnTokenEvent{
		Sender:      opts.Sender,
		Amount:      new(big.Int).Set(amount),
		FromERC20:   fromToken,
		RecipientID: append([]byte(nil), recipientID...),
		ToToken:     toTokenID,
		OperationID: opID,
		Decimals:    tok.Decimals(),
		Memo:        memo,
	}
	copy(ev.Name[:], common.FitString(tok.Name(), order.NameSize))
	copy(ev.Symbol[:], common.FitString(tok.Symbol(), order.SymbolSize))
	b.emit(ev)

	logger.WithFields(logger.Fields{
		"sender":      opts.Sender.String(),
		"amount":      amount,
		"operationID": opID,
	}).Debug("burnt")

	return opID, nil
}

// NotifyMinter emits a generic signal for the off-chain minter.
func (b *Bridge) NotifyMinter(opts CallOpts, notificationType uint32, userData []byte, memo [32]byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.beginTx(opts.Sender)
	b.emit(&NotifyMinterEvent{
		NotificationType: notificationType,
		TxSender:         opts.Sender,
		UserData:         append([]byte(nil), userData...),
		Memo:             memo,
	})
}

func (b *Bridge) GetWrappedToken(baseID order.Id256) ethcommon.Address {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pairs.GetWrappedToken(baseID)
}

func (b *Bridge) GetBaseToken(wrapped ethcommon.Address) order.Id256 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pairs.GetBaseToken(wrapped)
}

func (b *Bridge) IsNonceUsed(senderID order.Id256, nonce uint32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces.IsUsed(senderID, nonce)
}

// GetUserBurnHistory returns the block numbers of the user's recent burns, oldest first.
func (b *Bridge) GetUserBurnHistory(user ethcommon.Address) []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if h, ok := b.burnHistory[user]; ok {
		return h.Values()
	}
	return nil
}

// NextOperationID is the id the next burn will get.
func (b *Bridge) NextOperationID() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.operationID
}

func (b *Bridge) BlockNumber() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.block
}

// LastTxHash is the hash of the latest successful call.
func (b *Bridge) LastTxHash() ethcommon.Hash {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.txHash
}

// Events returns the logs emitted in blocks [from, to].
func (b *Bridge) Events(from, to uint64) []Log {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := []Log{}
	for _, l := range b.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			res = append(res, l)
		}
	}
	return res
}

// beginTx puts the current call into a block of its own.
func (b *Bridge) beginTx(sender ethcommon.Address) {
	b.block++
	b.txCount++

	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], b.block)
	binary.BigEndian.PutUint64(buf[8:], b.txCount)
	b.txHash = crypto.Keccak256Hash(buf[:], sender[:])
}

func (b *Bridge) emit(ev Event) {
	b.logs = append(b.logs, Log{
		BlockNumber: b.block,
		TxHash:      b.txHash,
		Index:       uint(len(b.logs)),
		Event:       ev,
	})
}
