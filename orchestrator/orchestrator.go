// Package orchestrator drives deposits and withdrawals of one bridge
// instance through the scheduler.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/TEENet-io/mintburn-bridge/burnproc"
	"github.com/TEENet-io/mintburn-bridge/deposit"
	"github.com/TEENet-io/mintburn-bridge/etherman"
	"github.com/TEENet-io/mintburn-bridge/ethsync"
	"github.com/TEENet-io/mintburn-bridge/mintorder"
	"github.com/TEENet-io/mintburn-bridge/scheduler"
	"github.com/TEENet-io/mintburn-bridge/state"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
)

const (
	KindDeposit          = "deposit_flow"
	KindWithdraw         = "withdraw_flow"
	KindCollectEvmLogs   = "collect_evm_logs"
	KindRefreshEvmParams = "refresh_evm_params"
)

var ErrMissingComponent = errors.New("missing orchestrator component")

type Config struct {
	DepositPolicy  scheduler.IntervalPolicy
	WithdrawPolicy scheduler.IntervalPolicy
	CollectPolicy  scheduler.IntervalPolicy
	RefreshPolicy  scheduler.IntervalPolicy

	// a deposit flow that finds nothing this many times is abandoned, 0 never
	MaxInputPolls int

	// submit the orders of one flow with batchMint
	BatchMint bool
}

func DefaultConfig() Config {
	return Config{
		DepositPolicy:  scheduler.PerMinute,
		WithdrawPolicy: scheduler.PerMinute,
		CollectPolicy:  scheduler.PerMinute,
		RefreshPolicy:  scheduler.Period(600),
		MaxInputPolls:  24 * 60,
	}
}

// Components are the collaborators of an orchestrator. DB may be nil, then
// nothing is persisted.
type Components struct {
	State     *state.State
	DB        *state.StateDB
	Scheduler *scheduler.Scheduler
	Deposits  *deposit.Engine
	Builder   *mintorder.Builder
	Chain     etherman.Client
	Burns     *burnproc.Processor
}

type Orchestrator struct {
	cfg Config

	st       *state.State
	db       *state.StateDB
	sched    *scheduler.Scheduler
	deposits *deposit.Engine
	builder  *mintorder.Builder
	chain    etherman.Client
	burns    *burnproc.Processor
	sync     *ethsync.Synchronizer

	fromTokenID [32]byte
}

func New(cfg Config, c Components, fromTokenID [32]byte) (*Orchestrator, error) {
	if c.State == nil || c.Scheduler == nil || c.Deposits == nil || c.Builder == nil || c.Chain == nil || c.Burns == nil {
		return nil, ErrMissingComponent
	}

	o := &Orchestrator{
		cfg:         cfg,
		st:          c.State,
		db:          c.DB,
		sched:       c.Scheduler,
		deposits:    c.Deposits,
		builder:     c.Builder,
		chain:       c.Chain,
		burns:       c.Burns,
		fromTokenID: fromTokenID,
	}

	syncer, err := ethsync.New(c.Chain, c.State, o)
	if err != nil {
		return nil, err
	}
	o.sync = syncer

	// a signed withdraw tx reaches the db before the node sees it
	if o.db != nil {
		o.burns.SetPersist(func() error { return o.db.Checkpoint(o.st) })
	}

	o.sched.AfterPass(o.afterPass)
	return o, nil
}

func (o *Orchestrator) State() *state.State { return o.st }

func (o *Orchestrator) Scheduler() *scheduler.Scheduler { return o.sched }

func (o *Orchestrator) TaskStatus(id scheduler.TaskID) (scheduler.TaskStatus, bool) {
	return o.sched.Status(id)
}

func (o *Orchestrator) Tasks() []scheduler.TaskStatus {
	return o.sched.Statuses()
}

func (o *Orchestrator) DepositAddress(recipient ethcommon.Address) (string, error) {
	return o.deposits.DepositAddress(recipient)
}

// Setup restores the persisted tasks and queues the service tasks that are
// not already pending.
func (o *Orchestrator) Setup(ctx context.Context) error {
	if err := o.sched.Restore(o.st.Tasks(), o.rebuildTask); err != nil {
		return err
	}

	if _, ok := o.sched.Active(KindCollectEvmLogs, ""); !ok {
		o.sched.Append(&collectEvmLogs{o: o}, scheduler.Options{Policy: o.cfg.CollectPolicy})
	}
	if _, ok := o.sched.Active(KindRefreshEvmParams, ""); !ok {
		o.sched.Append(&refreshEvmParams{o: o}, scheduler.Options{Policy: o.cfg.RefreshPolicy})
	}

	// a failing chain is retried by the refresh task
	if err := o.refresh(ctx); err != nil {
		logger.Warnf("failed to refresh evm params at setup: %v", err)
	}
	return nil
}

// Start sets up and starts the scheduler loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.Setup(ctx); err != nil {
		return err
	}
	return o.sched.Start(ctx)
}

func (o *Orchestrator) Stop() {
	o.sched.Stop()
	o.checkpoint()
}

// RunOnce executes every due task step.
func (o *Orchestrator) RunOnce(ctx context.Context) int {
	return o.sched.RunDue(ctx)
}

// RequestDeposit starts the deposit flow of recipient. It returns the
// pending flow when there is one.
func (o *Orchestrator) RequestDeposit(recipient ethcommon.Address) (scheduler.TaskID, error) {
	if recipient == (ethcommon.Address{}) {
		return "", deposit.ErrZeroRecipient
	}

	o.reopenRejected(recipient)

	key := recipient.Hex()
	if id, ok := o.sched.Active(KindDeposit, key); ok {
		return id, nil
	}

	id := o.sched.Append(newDepositFlow(o, recipient), scheduler.Options{Policy: o.cfg.DepositPolicy})
	logger.WithFields(logger.Fields{
		"recipient": key,
		"task":      id,
	}).Info("deposit flow requested")
	return id, nil
}

// reopenRejected puts the rejected orders of recipient back to signed. They
// keep their signed payload, and the nonce check before sending settles the
// ones that landed meanwhile.
func (o *Orchestrator) reopenRejected(recipient ethcommon.Address) int {
	n := 0
	for _, d := range o.st.DepositsOf(recipient) {
		if d.Status != state.DepositStatusOrdered {
			continue
		}
		rec, ok := o.st.Order(d.SourceID)
		if !ok || rec.Status != state.OrderStatusRejected {
			continue
		}
		if err := o.st.SetOrderStatus(d.SourceID, state.OrderStatusSigned, ethcommon.Hash{}, ""); err != nil {
			logger.WithField("source", d.SourceID).Errorf("failed to reopen mint order: %v", err)
			continue
		}
		logger.WithFields(logger.Fields{
			"source": d.SourceID,
			"nonce":  rec.Nonce,
			"code":   rec.RejectCode,
		}).Info("rejected mint order reopened")
		n++
	}
	return n
}

func (o *Orchestrator) scheduleWithdraw(opID uint32) scheduler.TaskID {
	key := withdrawKey(opID)
	if id, ok := o.sched.Active(KindWithdraw, key); ok {
		return id
	}
	return o.sched.Append(newWithdrawFlow(o, opID), scheduler.Options{Policy: o.cfg.WithdrawPolicy})
}

func (o *Orchestrator) afterPass(_ context.Context, ran int) {
	if ran == 0 {
		return
	}
	o.checkpoint()
}

func (o *Orchestrator) checkpoint() {
	o.st.SetTasks(o.sched.Snapshot())
	if o.db == nil {
		return
	}
	if err := o.db.Checkpoint(o.st); err != nil {
		logger.Errorf("failed to checkpoint state: %v", err)
	}
}

func (o *Orchestrator) rebuildTask(rec *state.TaskRecord) (scheduler.Task, error) {
	switch rec.Kind {
	case KindDeposit:
		return decodeDepositFlow(o, rec.Payload)
	case KindWithdraw:
		return decodeWithdrawFlow(o, rec.Payload)
	case KindCollectEvmLogs:
		return &collectEvmLogs{o: o}, nil
	case KindRefreshEvmParams:
		return &refreshEvmParams{o: o}, nil
	default:
		return nil, fmt.Errorf("%w: %s", scheduler.ErrUnknownKind, rec.Kind)
	}
}
