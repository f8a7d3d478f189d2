// Package mintorder turns mintable deposits into signed mint orders.
package mintorder

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/TEENet-io/mintburn-bridge/order"
	"github.com/TEENet-io/mintburn-bridge/signers"
	"github.com/TEENet-io/mintburn-bridge/state"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
)

// SourceDecimals is the precision of source chain amounts (satoshi).
const SourceDecimals = 8

var (
	ErrNotMintable    = errors.New("deposit is not mintable")
	ErrAmountTooSmall = errors.New("deposit amount does not cover the deposit fee")
	ErrNoToToken      = errors.New("destination token is not set")
)

type Config struct {
	SenderID         order.Id256
	FromTokenID      order.Id256
	ToToken          ethcommon.Address
	SenderChainID    uint32
	RecipientChainID uint32

	Name     string
	Symbol   string
	Decimals uint8

	// satoshi
	DepositFee uint64
	// pays the mint fee; the recipient when zero
	FeePayer ethcommon.Address
}

type Builder struct {
	cfg    Config
	st     *state.State
	signer signers.Signer
}

func NewBuilder(cfg Config, st *state.State, signer signers.Signer) *Builder {
	return &Builder{cfg: cfg, st: st, signer: signer}
}

// SetToToken points new orders at the wrapped token once it is deployed.
func (b *Builder) SetToToken(token ethcommon.Address) {
	b.cfg.ToToken = token
}

func (b *Builder) ToToken() ethcommon.Address {
	return b.cfg.ToToken
}

func (b *Builder) Minter() ethcommon.Address {
	return b.signer.Address()
}

// ScaleAmount converts satoshi into token units of the given decimals.
func ScaleAmount(satoshi uint64, decimals uint8) *big.Int {
	v := new(big.Int).SetUint64(satoshi)
	if decimals >= SourceDecimals {
		return v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-SourceDecimals)), nil))
	}
	return v.Div(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(SourceDecimals-decimals)), nil))
}

// NetAmount is what the recipient receives for a deposit, in token units.
func (b *Builder) NetAmount(d *state.Deposit) (*big.Int, error) {
	if d.Amount <= 0 || uint64(d.Amount) <= b.cfg.DepositFee {
		return nil, ErrAmountTooSmall
	}
	amount := ScaleAmount(uint64(d.Amount)-b.cfg.DepositFee, b.cfg.Decimals)
	if amount.Sign() == 0 {
		return nil, ErrAmountTooSmall
	}
	return amount, nil
}

func (b *Builder) newOrder(d *state.Deposit, nonce uint32) (*order.MintOrder, error) {
	amount, err := b.NetAmount(d)
	if err != nil {
		return nil, err
	}

	feePayer := b.cfg.FeePayer
	if feePayer == (ethcommon.Address{}) {
		feePayer = d.Recipient
	}

	o := &order.MintOrder{
		Amount:           amount,
		SenderID:         b.cfg.SenderID,
		FromTokenID:      b.cfg.FromTokenID,
		Recipient:        d.Recipient,
		ToToken:          b.cfg.ToToken,
		Nonce:            nonce,
		SenderChainID:    b.cfg.SenderChainID,
		RecipientChainID: b.cfg.RecipientChainID,
		ApproveAmount:    new(big.Int),
		FeePayer:         feePayer,
	}
	o.SetMetadata(b.cfg.Name, b.cfg.Symbol, b.cfg.Decimals)
	return o, nil
}

// Build returns the signed order of a mintable deposit. A deposit gets exactly
// one order; later calls return the stored one unchanged. Nothing is stored
// when signing fails.
func (b *Builder) Build(ctx context.Context, d *state.Deposit) (*state.OrderRecord, error) {
	if rec, ok := b.st.Order(d.SourceID); ok {
		return rec, nil
	}
	if d.Status != state.DepositStatusMintable {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotMintable, d.SourceID, d.Status)
	}
	if b.cfg.ToToken == (ethcommon.Address{}) {
		return nil, ErrNoToToken
	}

	nonce := b.st.NextNonce(b.cfg.SenderID)
	o, err := b.newOrder(d, nonce)
	if err != nil {
		return nil, err
	}

	signed, err := o.Sign(ctx, b.signer)
	if err != nil {
		return nil, fmt.Errorf("failed to sign mint order of %s: %w", d.SourceID, err)
	}

	rec := &state.OrderRecord{
		SourceID: d.SourceID,
		SenderID: b.cfg.SenderID,
		Nonce:    nonce,
		Payload:  signed,
		Status:   state.OrderStatusSigned,
	}
	if err := b.st.PutOrder(rec); err != nil {
		return nil, err
	}
	if err := b.st.SetDepositStatus(d.SourceID, state.DepositStatusOrdered, ""); err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"source":    d.SourceID,
		"nonce":     nonce,
		"amount":    o.Amount,
		"recipient": o.Recipient.Hex(),
	}).Info("mint order signed")

	return rec, nil
}

// BuildBatch builds the order of every deposit and signs them together for
// batchMint. Records are returned in the order of the deposits.
func (b *Builder) BuildBatch(ctx context.Context, deposits []*state.Deposit) (*order.SignedOrders, []*state.OrderRecord, error) {
	if len(deposits) == 0 {
		return nil, nil, order.ErrEmptyBatch
	}

	recs := make([]*state.OrderRecord, 0, len(deposits))
	orders := make([]*order.MintOrder, 0, len(deposits))
	for _, d := range deposits {
		rec, err := b.Build(ctx, d)
		if err != nil {
			return nil, nil, err
		}
		o, err := rec.Order()
		if err != nil {
			return nil, nil, err
		}
		recs = append(recs, rec)
		orders = append(orders, o)
	}

	signed, err := order.SignBatch(ctx, orders, b.signer)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign batch: %w", err)
	}
	return signed, recs, nil
}
