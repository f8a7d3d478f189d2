package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/TEENet-io/mintburn-bridge/scheduler"
	"github.com/TEENet-io/mintburn-bridge/state"
	logger "github.com/sirupsen/logrus"
)

type WithdrawStep string

const (
	StepCreateTransferTx    WithdrawStep = "CreateTransferTx"
	StepSendTransferTx      WithdrawStep = "SendTransferTx"
	StepAwaitTransferTx     WithdrawStep = "AwaitTransferTx"
	StepTransferTxConfirmed WithdrawStep = "TransferTxConfirmed"
)

func withdrawKey(opID uint32) string {
	return fmt.Sprintf("%d", opID)
}

// withdrawFlow pays out the withdrawal of one burn.
type withdrawFlow struct {
	o *Orchestrator

	OperationID uint32       `json:"operationID"`
	Step        WithdrawStep `json:"step"`
}

func newWithdrawFlow(o *Orchestrator, opID uint32) *withdrawFlow {
	return &withdrawFlow{o: o, OperationID: opID, Step: StepCreateTransferTx}
}

func decodeWithdrawFlow(o *Orchestrator, payload []byte) (*withdrawFlow, error) {
	f := &withdrawFlow{o: o}
	if err := json.Unmarshal(payload, f); err != nil {
		return nil, err
	}
	if f.Step == "" {
		f.Step = StepCreateTransferTx
	}
	return f, nil
}

func (f *withdrawFlow) Kind() string { return KindWithdraw }

func (f *withdrawFlow) Key() string { return withdrawKey(f.OperationID) }

func (f *withdrawFlow) Payload() []byte {
	b, err := json.Marshal(f)
	if err != nil {
		logger.Errorf("failed to encode withdraw flow: %v", err)
		return nil
	}
	return b
}

func (f *withdrawFlow) Execute(ctx context.Context) (scheduler.StepResult, error) {
	for {
		next, wait, err := f.advance(ctx)
		if err != nil {
			return scheduler.Reschedule, classify(err)
		}
		if next != f.Step {
			logger.WithFields(logger.Fields{
				"operationID": f.OperationID,
				"from":        f.Step,
				"to":          next,
			}).Debug("withdraw flow step")
			f.Step = next
		}

		switch {
		case f.Step == StepTransferTxConfirmed:
			return scheduler.Done, nil
		case wait:
			return scheduler.Reschedule, nil
		}
	}
}

func (f *withdrawFlow) advance(ctx context.Context) (WithdrawStep, bool, error) {
	switch f.Step {
	case StepCreateTransferTx:
		w, ok := f.o.st.Withdrawal(f.OperationID)
		if !ok {
			return f.Step, false, fmt.Errorf("%w: %d", state.ErrWithdrawalNotFound, f.OperationID)
		}
		switch w.Status {
		case state.WithdrawalStatusBroadcast:
			return StepAwaitTransferTx, false, nil
		case state.WithdrawalStatusConfirmed:
			return StepTransferTxConfirmed, false, nil
		}
		return StepSendTransferTx, false, nil

	case StepSendTransferTx:
		if err := f.o.burns.Step(ctx, f.OperationID); err != nil {
			return f.Step, false, err
		}
		return StepAwaitTransferTx, false, nil

	case StepAwaitTransferTx:
		confirmed, err := f.o.burns.Confirm(ctx, f.OperationID)
		if err != nil {
			return f.Step, false, err
		}
		if !confirmed {
			w, ok := f.o.st.Withdrawal(f.OperationID)
			if ok && w.Status == state.WithdrawalStatusRequested {
				// rescheduled after a failure
				return StepSendTransferTx, false, nil
			}
			return f.Step, true, nil
		}
		return StepTransferTxConfirmed, false, nil

	default:
		return f.Step, false, nil
	}
}
