package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/TEENet-io/mintburn-bridge/bridge"
	"github.com/TEENet-io/mintburn-bridge/deposit"
	"github.com/TEENet-io/mintburn-bridge/etherman"
	"github.com/TEENet-io/mintburn-bridge/mintorder"
	"github.com/TEENet-io/mintburn-bridge/scheduler"
	"github.com/TEENet-io/mintburn-bridge/state"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
)

type DepositStep string

const (
	StepAwaitInputs        DepositStep = "AwaitInputs"
	StepAwaitConfirmations DepositStep = "AwaitConfirmations"
	StepSignMintOrder      DepositStep = "SignMintOrder"
	StepSendMintOrder      DepositStep = "SendMintOrder"
	StepConfirmMintOrder   DepositStep = "ConfirmMintOrder"
	StepMintOrderConfirmed DepositStep = "MintOrderConfirmed"
	// the recipient never paid within MaxInputPolls polls
	StepAbandoned DepositStep = "Abandoned"
)

// depositFlow mints the deposits of one recipient. The exported fields are
// the persisted payload.
type depositFlow struct {
	o *Orchestrator

	Recipient ethcommon.Address `json:"recipient"`
	Step      DepositStep       `json:"step"`
	SourceIDs []string          `json:"sourceIDs,omitempty"`
	Polls     int               `json:"polls"`
}

func newDepositFlow(o *Orchestrator, recipient ethcommon.Address) *depositFlow {
	return &depositFlow{o: o, Recipient: recipient, Step: StepAwaitInputs}
}

func decodeDepositFlow(o *Orchestrator, payload []byte) (*depositFlow, error) {
	f := &depositFlow{o: o}
	if err := json.Unmarshal(payload, f); err != nil {
		return nil, err
	}
	if f.Recipient == (ethcommon.Address{}) {
		return nil, deposit.ErrZeroRecipient
	}
	if f.Step == "" {
		f.Step = StepAwaitInputs
	}
	return f, nil
}

func (f *depositFlow) Kind() string { return KindDeposit }

func (f *depositFlow) Key() string { return f.Recipient.Hex() }

func (f *depositFlow) Payload() []byte {
	b, err := json.Marshal(f)
	if err != nil {
		logger.Errorf("failed to encode deposit flow: %v", err)
		return nil
	}
	return b
}

// Execute advances the flow until a step has to wait for the chains.
func (f *depositFlow) Execute(ctx context.Context) (scheduler.StepResult, error) {
	for {
		next, wait, err := f.advance(ctx)
		if err != nil {
			return scheduler.Reschedule, classify(err)
		}
		if next != f.Step {
			logger.WithFields(logger.Fields{
				"recipient": f.Recipient.Hex(),
				"from":      f.Step,
				"to":        next,
			}).Debug("deposit flow step")
			f.Step = next
		}

		switch {
		case f.Step == StepMintOrderConfirmed || f.Step == StepAbandoned:
			return scheduler.Done, nil
		case wait:
			return scheduler.Reschedule, nil
		}
	}
}

func (f *depositFlow) advance(ctx context.Context) (DepositStep, bool, error) {
	switch f.Step {
	case StepAwaitInputs, StepAwaitConfirmations:
		return f.awaitInputs(ctx)
	case StepSignMintOrder:
		return f.signMintOrder(ctx)
	case StepSendMintOrder:
		return f.sendMintOrder(ctx)
	case StepConfirmMintOrder:
		return f.confirmMintOrder(ctx)
	default:
		return f.Step, false, nil
	}
}

func (f *depositFlow) awaitInputs(ctx context.Context) (DepositStep, bool, error) {
	deposits, err := f.o.deposits.Poll(ctx, f.Recipient)
	if err != nil {
		return f.Step, false, err
	}

	ids := []string{}
	awaiting := false
	for _, d := range deposits {
		switch d.Status {
		case state.DepositStatusMintable:
			ids = append(ids, d.SourceID)
		case state.DepositStatusOrdered:
			// left behind by an earlier flow
			if rec, ok := f.o.st.Order(d.SourceID); ok && !orderSettled(rec) {
				ids = append(ids, d.SourceID)
			}
		case state.DepositStatusAwaiting:
			awaiting = true
		}
	}

	if len(ids) > 0 {
		f.SourceIDs = ids
		f.Polls = 0
		return StepSignMintOrder, false, nil
	}
	if awaiting {
		return StepAwaitConfirmations, true, nil
	}
	if f.Step == StepAwaitConfirmations {
		// the awaited deposits were invalidated
		return StepAwaitInputs, true, nil
	}

	f.Polls++
	if f.o.cfg.MaxInputPolls > 0 && f.Polls >= f.o.cfg.MaxInputPolls {
		logger.WithFields(logger.Fields{
			"recipient": f.Recipient.Hex(),
			"polls":     f.Polls,
		}).Warn("deposit flow abandoned, nothing was paid")
		return StepAbandoned, false, nil
	}
	return StepAwaitInputs, true, nil
}

func orderSettled(rec *state.OrderRecord) bool {
	return rec.Status == state.OrderStatusMinted || rec.Status == state.OrderStatusRejected
}

func (f *depositFlow) signMintOrder(ctx context.Context) (DepositStep, bool, error) {
	kept := make([]string, 0, len(f.SourceIDs))
	for _, id := range f.SourceIDs {
		if rec, ok := f.o.st.Order(id); ok {
			if !orderSettled(rec) {
				kept = append(kept, id)
			}
			continue
		}

		d, ok := f.o.st.Deposit(id)
		if !ok || d.Status != state.DepositStatusMintable {
			continue
		}
		if _, err := f.o.builder.Build(ctx, d); err != nil {
			if errors.Is(err, mintorder.ErrAmountTooSmall) {
				if err := f.o.st.SetDepositStatus(id, state.DepositStatusInvalidated, deposit.ReasonValueTooSmall); err != nil {
					return f.Step, false, err
				}
				continue
			}
			return f.Step, false, err
		}
		kept = append(kept, id)
	}

	f.SourceIDs = kept
	if len(kept) == 0 {
		return StepAwaitInputs, true, nil
	}
	return StepSendMintOrder, false, nil
}

func (f *depositFlow) sendMintOrder(ctx context.Context) (DepositStep, bool, error) {
	unsent := []*state.OrderRecord{}
	for _, id := range f.SourceIDs {
		rec, ok := f.o.st.Order(id)
		if !ok || rec.Status != state.OrderStatusSigned {
			continue
		}

		// a submission of an earlier pass may have landed
		used, err := f.o.chain.IsNonceUsed(ctx, rec.SenderID, rec.Nonce)
		if err != nil {
			return f.Step, false, err
		}
		if used {
			if err := f.o.st.SetOrderStatus(id, state.OrderStatusSent, rec.TxHash, ""); err != nil {
				return f.Step, false, err
			}
			continue
		}
		unsent = append(unsent, rec)
	}

	var err error
	if f.o.cfg.BatchMint && len(unsent) > 1 {
		err = f.sendBatch(ctx, unsent)
	} else {
		for _, rec := range unsent {
			if err = f.sendOne(ctx, rec); err != nil {
				break
			}
		}
	}
	if err != nil {
		return f.Step, false, err
	}
	return StepConfirmMintOrder, false, nil
}

func (f *depositFlow) sendOne(ctx context.Context, rec *state.OrderRecord) error {
	receipt, err := f.o.chain.SubmitMint(ctx, rec.Payload)
	switch {
	case err == nil:
		return f.markSent(rec, receipt.TxHash)
	case isUsedNonce(err):
		return f.markSent(rec, ethcommon.Hash{})
	case errors.Is(err, etherman.ErrReverted):
		var txHash ethcommon.Hash
		if receipt != nil {
			txHash = receipt.TxHash
		}
		return f.reject(rec, txHash, revertReason(err))
	default:
		return err
	}
}

func (f *depositFlow) sendBatch(ctx context.Context, recs []*state.OrderRecord) error {
	deposits := make([]*state.Deposit, 0, len(recs))
	for _, rec := range recs {
		d, ok := f.o.st.Deposit(rec.SourceID)
		if !ok {
			return state.ErrDepositNotFound
		}
		deposits = append(deposits, d)
	}

	signed, recs, err := f.o.builder.BuildBatch(ctx, deposits)
	if err != nil {
		return err
	}
	indices := make([]uint32, len(recs))
	for i := range indices {
		indices[i] = uint32(i)
	}

	receipt, err := f.o.chain.SubmitBatchMint(ctx, signed, indices)
	if err != nil {
		if !errors.Is(err, etherman.ErrReverted) {
			return err
		}
		reason := revertReason(err)
		for _, rec := range recs {
			if err := f.reject(rec, ethcommon.Hash{}, reason); err != nil {
				return err
			}
		}
		return nil
	}

	for i, rec := range recs {
		code := bridge.BatchMintOk
		if i < len(receipt.BatchResults) {
			code = receipt.BatchResults[i]
		}
		switch code {
		case bridge.BatchMintOk, bridge.BatchMintUsedNonce:
			err = f.markSent(rec, receipt.TxHash)
		default:
			err = f.reject(rec, receipt.TxHash, code.String())
		}
		if err != nil {
			return err
		}
	}

	logger.WithFields(logger.Fields{
		"recipient": f.Recipient.Hex(),
		"orders":    len(recs),
		"tx":        receipt.TxHash.Hex(),
	}).Info("mint orders submitted in batch")
	return nil
}

func (f *depositFlow) markSent(rec *state.OrderRecord, txHash ethcommon.Hash) error {
	logger.WithFields(logger.Fields{
		"source": rec.SourceID,
		"nonce":  rec.Nonce,
		"tx":     txHash.Hex(),
	}).Info("mint order sent")
	return f.o.st.SetOrderStatus(rec.SourceID, state.OrderStatusSent, txHash, "")
}

func (f *depositFlow) reject(rec *state.OrderRecord, txHash ethcommon.Hash, code string) error {
	logger.WithFields(logger.Fields{
		"source": rec.SourceID,
		"nonce":  rec.Nonce,
	}).Warnf("mint order rejected: %s", code)
	return f.o.st.SetOrderStatus(rec.SourceID, state.OrderStatusRejected, txHash, code)
}

func (f *depositFlow) confirmMintOrder(ctx context.Context) (DepositStep, bool, error) {
	waiting := false
	for _, id := range f.SourceIDs {
		rec, ok := f.o.st.Order(id)
		if !ok {
			continue
		}

		switch rec.Status {
		case state.OrderStatusSigned:
			return StepSendMintOrder, false, nil
		case state.OrderStatusSent:
			used, err := f.o.chain.IsNonceUsed(ctx, rec.SenderID, rec.Nonce)
			if err != nil {
				return f.Step, false, err
			}
			if !used {
				waiting = true
				continue
			}
			if err := f.o.st.SetOrderStatus(id, state.OrderStatusMinted, rec.TxHash, ""); err != nil {
				return f.Step, false, err
			}
			fallthrough
		case state.OrderStatusMinted:
			if err := f.o.deposits.MarkMinted(id); err != nil {
				return f.Step, false, err
			}
		}
	}

	if waiting {
		return StepConfirmMintOrder, true, nil
	}
	return StepMintOrderConfirmed, false, nil
}

func isUsedNonce(err error) bool {
	return errors.Is(err, bridge.ErrUsedNonce) || strings.Contains(err.Error(), bridge.ErrUsedNonce.Error())
}

// revertReason is the contract message of a reverted submission.
func revertReason(err error) string {
	var re *bridge.RevertError
	if errors.As(err, &re) {
		return re.Reason.Error()
	}
	return strings.TrimPrefix(err.Error(), etherman.ErrReverted.Error()+": ")
}

