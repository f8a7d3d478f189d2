package orchestrator

import (
	"context"
	"errors"

	"github.com/TEENet-io/mintburn-bridge/burnproc"
	"github.com/TEENet-io/mintburn-bridge/scheduler"
	"github.com/TEENet-io/mintburn-bridge/state"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
)

// classify keeps terminal errors and marks the rest retryable.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, burnproc.ErrWithdrawalFailed),
		errors.Is(err, state.ErrWithdrawalNotFound),
		errors.Is(err, state.ErrOrderExists),
		errors.Is(err, state.ErrNonceUsed):
		return err
	default:
		return scheduler.Transient(err)
	}
}

// collectEvmLogs feeds the bridge logs to the event handlers. It never fails,
// a broken chain connection only delays it.
type collectEvmLogs struct {
	o *Orchestrator
}

func (t *collectEvmLogs) Kind() string    { return KindCollectEvmLogs }
func (t *collectEvmLogs) Key() string     { return "" }
func (t *collectEvmLogs) Payload() []byte { return nil }

func (t *collectEvmLogs) Execute(ctx context.Context) (scheduler.StepResult, error) {
	if _, err := t.o.sync.Collect(ctx); err != nil {
		logger.Warnf("failed to collect evm logs: %v", err)
	}
	return scheduler.Reschedule, nil
}

// refreshEvmParams keeps the chain id and the gas price of the checkpoint
// current.
type refreshEvmParams struct {
	o *Orchestrator
}

func (t *refreshEvmParams) Kind() string    { return KindRefreshEvmParams }
func (t *refreshEvmParams) Key() string     { return "" }
func (t *refreshEvmParams) Payload() []byte { return nil }

func (t *refreshEvmParams) Execute(ctx context.Context) (scheduler.StepResult, error) {
	if err := t.o.refresh(ctx); err != nil {
		logger.Warnf("failed to refresh evm params: %v", err)
	}
	return scheduler.Reschedule, nil
}

func (o *Orchestrator) refresh(ctx context.Context) error {
	chainID, err := o.chain.ChainID(ctx)
	if err != nil {
		return err
	}
	gasPrice, err := o.chain.GasPrice(ctx)
	if err != nil {
		return err
	}
	o.st.SetEvmChainID(chainID)
	o.st.SetGasPrice(gasPrice)

	if o.builder.ToToken() == (ethcommon.Address{}) {
		token, err := o.chain.GetWrappedToken(ctx, o.fromTokenID)
		if err != nil {
			return err
		}
		if token != (ethcommon.Address{}) {
			o.builder.SetToToken(token)
			logger.WithField("token", token.Hex()).Info("wrapped token found")
		}
	}

	logger.WithFields(logger.Fields{
		"chainID":  chainID,
		"gasPrice": gasPrice,
	}).Debug("evm params refreshed")
	return nil
}
