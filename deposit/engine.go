// Package deposit tracks source-chain outputs paid to derived deposit
// addresses until they are deep enough to be minted.
package deposit

import (
	"context"
	"errors"
	"fmt"

	"github.com/TEENet-io/mintburn-bridge/indexer"
	"github.com/TEENet-io/mintburn-bridge/state"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
)

const (
	ReasonValueTooSmall = "value too small"
	ReasonDisappeared   = "source transaction disappeared before confirmation"
)

var ErrNotMintable = errors.New("deposit is not mintable")

type Config struct {
	MinConfirmations uint32
	// satoshi subtracted from every deposit before minting
	DepositFee uint64
}

type Engine struct {
	cfg     Config
	st      *state.State
	idx     indexer.Indexer
	deriver *AddressDeriver
}

func NewEngine(cfg Config, st *state.State, idx indexer.Indexer, deriver *AddressDeriver) *Engine {
	return &Engine{cfg: cfg, st: st, idx: idx, deriver: deriver}
}

func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) DepositAddress(recipient ethcommon.Address) (string, error) {
	return e.deriver.DepositAddress(recipient)
}

// Poll refreshes every deposit of the recipient from the indexer and returns
// them in the order they were first seen.
func (e *Engine) Poll(ctx context.Context, recipient ethcommon.Address) ([]*state.Deposit, error) {
	addr, err := e.deriver.DepositAddress(recipient)
	if err != nil {
		return nil, err
	}

	tip, err := e.idx.TipHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tip height: %w", err)
	}
	utxos, err := e.idx.GetBalance(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to query deposits of %s: %w", addr, err)
	}

	seen := make(map[string]struct{}, len(utxos))
	for _, u := range utxos {
		seen[u.SourceID()] = struct{}{}
		if err := e.observe(recipient, addr, u, tip); err != nil {
			return nil, err
		}
	}

	// only deposits still below the threshold can be dropped
	for _, d := range e.st.DepositsOf(recipient) {
		if d.Status != state.DepositStatusAwaiting {
			continue
		}
		if _, ok := seen[d.SourceID]; ok {
			continue
		}
		if err := e.st.SetDepositStatus(d.SourceID, state.DepositStatusInvalidated, ReasonDisappeared); err != nil {
			return nil, err
		}
		logger.WithFields(logger.Fields{
			"source":    d.SourceID,
			"recipient": recipient.Hex(),
		}).Warn("deposit disappeared before reaching confirmation threshold")
	}

	return e.st.DepositsOf(recipient), nil
}

func (e *Engine) observe(recipient ethcommon.Address, addr string, u indexer.Utxo, tip uint32) error {
	if u.Value <= 0 {
		return nil
	}
	conf := u.Confirmations(tip)

	d, ok := e.st.Deposit(u.SourceID())
	if !ok {
		d = &state.Deposit{
			SourceID:  u.SourceID(),
			TxID:      u.TxID,
			Vout:      u.Vout,
			Amount:    u.Value,
			Recipient: recipient,
			Address:   addr,
			Status:    state.DepositStatusAwaiting,
		}
		if uint64(u.Value) <= e.cfg.DepositFee {
			d.Status = state.DepositStatusInvalidated
			d.Reason = ReasonValueTooSmall
		}
		logger.WithFields(logger.Fields{
			"source":    d.SourceID,
			"amount":    d.Amount,
			"recipient": recipient.Hex(),
			"status":    d.Status,
		}).Info("new deposit")
	}

	if ok && d.Status == state.DepositStatusInvalidated {
		// only a vanished output comes back, a value verdict is final
		if d.Reason != ReasonDisappeared {
			return nil
		}
		d.Status = state.DepositStatusAwaiting
		d.Reason = ""
		logger.WithFields(logger.Fields{
			"source":    d.SourceID,
			"recipient": recipient.Hex(),
			"height":    u.Height,
		}).Info("deposit reappeared")
	}

	if d.Status == state.DepositStatusAwaiting {
		if conf >= e.cfg.MinConfirmations {
			d.Status = state.DepositStatusMintable
			logger.WithFields(logger.Fields{
				"source":        d.SourceID,
				"confirmations": conf,
			}).Debug("deposit mintable")
		}
	}

	d.Height = u.Height
	d.Confirmations = conf
	_, err := e.st.UpsertDeposit(d)
	return err
}

// Mintable returns the recipient's deposits ready for a mint order.
func (e *Engine) Mintable(recipient ethcommon.Address) []*state.Deposit {
	out := []*state.Deposit{}
	for _, d := range e.st.DepositsOf(recipient) {
		if d.Status == state.DepositStatusMintable {
			out = append(out, d)
		}
	}
	return out
}

// MarkOrdered records that a signed order exists for the deposit.
func (e *Engine) MarkOrdered(sourceID string) error {
	d, ok := e.st.Deposit(sourceID)
	if !ok {
		return state.ErrDepositNotFound
	}
	if d.Status == state.DepositStatusOrdered {
		return nil
	}
	if d.Status != state.DepositStatusMintable {
		return fmt.Errorf("%w: %s is %s", ErrNotMintable, sourceID, d.Status)
	}
	return e.st.SetDepositStatus(sourceID, state.DepositStatusOrdered, "")
}

// MarkMinted consumes the deposit once its order was accepted on-chain.
func (e *Engine) MarkMinted(sourceID string) error {
	d, ok := e.st.Deposit(sourceID)
	if !ok {
		return state.ErrDepositNotFound
	}
	if d.Status == state.DepositStatusMinted {
		return nil
	}
	if d.Status != state.DepositStatusOrdered && d.Status != state.DepositStatusMintable {
		return fmt.Errorf("%w: %s is %s", ErrNotMintable, sourceID, d.Status)
	}
	return e.st.SetDepositStatus(sourceID, state.DepositStatusMinted, "")
}
