package orchestrator

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/TEENet-io/mintburn-bridge/bridge"
	"github.com/TEENet-io/mintburn-bridge/burnproc"
	"github.com/TEENet-io/mintburn-bridge/state"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
)

// HandleBurn records the withdrawal of a burn and schedules its flow.
func (o *Orchestrator) HandleBurn(_ context.Context, l bridge.Log, ev *bridge.BurnTokenEvent) error {
	w, isNew := o.burns.HandleBurn(l, ev)
	if !isNew || w.Status != state.WithdrawalStatusRequested {
		return nil
	}
	o.scheduleWithdraw(w.OperationID)
	return nil
}

// HandleMint settles the order a mint event was emitted for. Mints of orders
// signed elsewhere are ignored.
func (o *Orchestrator) HandleMint(_ context.Context, l bridge.Log, ev *bridge.MintTokenEvent) error {
	rec, ok := o.st.OrderByNonce(ev.SenderID, ev.Nonce)
	if !ok {
		logger.WithFields(logger.Fields{
			"sender": ev.SenderID.Hex(),
			"nonce":  ev.Nonce,
		}).Debug("mint of an unknown order")
		return nil
	}
	if rec.Status == state.OrderStatusMinted {
		return nil
	}

	if err := o.st.SetOrderStatus(rec.SourceID, state.OrderStatusMinted, l.TxHash, ""); err != nil {
		return err
	}
	if err := o.deposits.MarkMinted(rec.SourceID); err != nil {
		return err
	}

	logger.WithFields(logger.Fields{
		"source":    rec.SourceID,
		"nonce":     ev.Nonce,
		"amount":    ev.Amount,
		"recipient": ev.Recipient.Hex(),
	}).Info("mint order minted")
	return nil
}

// HandleNotify serves the requests users send through notifyMinter.
func (o *Orchestrator) HandleNotify(_ context.Context, l bridge.Log, ev *bridge.NotifyMinterEvent) error {
	fields := logger.Fields{
		"type":   ev.Type().String(),
		"sender": ev.TxSender.Hex(),
		"tx":     l.TxHash.Hex(),
	}

	switch ev.Type() {
	case bridge.NotificationDepositRequest:
		if len(ev.UserData) != ethcommon.AddressLength {
			logger.WithFields(fields).Warnf("malformed deposit request, %d bytes", len(ev.UserData))
			return nil
		}
		if _, err := o.RequestDeposit(ethcommon.BytesToAddress(ev.UserData)); err != nil {
			logger.WithFields(fields).Warnf("deposit request ignored: %v", err)
		}

	case bridge.NotificationRescheduleOperation:
		// a recipient reschedules its rejected mint orders
		if len(ev.UserData) == ethcommon.AddressLength {
			recipient := ethcommon.BytesToAddress(ev.UserData)
			n := o.reopenRejected(recipient)
			if n == 0 {
				logger.WithFields(fields).Warnf("no rejected mint order of %s", recipient.Hex())
				return nil
			}
			if _, err := o.RequestDeposit(recipient); err != nil {
				logger.WithFields(fields).Warnf("mint orders not rescheduled: %v", err)
				return nil
			}
			logger.WithFields(fields).Infof("%d mint orders of %s rescheduled", n, recipient.Hex())
			return nil
		}
		if len(ev.UserData) != 8 {
			logger.WithFields(fields).Warnf("malformed reschedule request, %d bytes", len(ev.UserData))
			return nil
		}
		id := binary.BigEndian.Uint64(ev.UserData)
		if id > uint64(^uint32(0)) {
			logger.WithFields(fields).Warnf("operation id %d out of range", id)
			return nil
		}
		opID := uint32(id)
		if err := o.burns.Retry(opID); err != nil {
			if errors.Is(err, burnproc.ErrNotRetryable) || errors.Is(err, state.ErrWithdrawalNotFound) {
				logger.WithFields(fields).Warnf("operation %d not rescheduled: %v", opID, err)
				return nil
			}
			return err
		}
		o.scheduleWithdraw(opID)
		logger.WithFields(fields).Infof("operation %d rescheduled", opID)

	default:
		logger.WithFields(fields).Debug("notification ignored")
	}
	return nil
}
