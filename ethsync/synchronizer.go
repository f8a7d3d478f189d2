// Package ethsync collects bridge contract logs from the destination chain.
package ethsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/TEENet-io/mintburn-bridge/bridge"
	"github.com/TEENet-io/mintburn-bridge/etherman"
	logger "github.com/sirupsen/logrus"
)

// MaxLogRequestCount bounds the block range of one log request.
const MaxLogRequestCount = 1000

var ErrNilHandler = errors.New("nil event handler")

// EventHandler consumes the decoded bridge logs. Handlers must be idempotent,
// a range is redelivered when any of its logs failed.
type EventHandler interface {
	HandleBurn(ctx context.Context, l bridge.Log, ev *bridge.BurnTokenEvent) error
	HandleMint(ctx context.Context, l bridge.Log, ev *bridge.MintTokenEvent) error
	HandleNotify(ctx context.Context, l bridge.Log, ev *bridge.NotifyMinterEvent) error
}

// State stores the first block not collected yet.
type State interface {
	NextEvmBlock() uint64
	SetNextEvmBlock(n uint64)
}

type Synchronizer struct {
	client  etherman.Client
	st      State
	handler EventHandler
}

func New(client etherman.Client, st State, handler EventHandler) (*Synchronizer, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	return &Synchronizer{client: client, st: st, handler: handler}, nil
}

// Collect fetches and dispatches the logs of at most MaxLogRequestCount new
// blocks. It returns the number of logs handled.
func (s *Synchronizer) Collect(ctx context.Context) (int, error) {
	latest, err := s.client.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	next := s.st.NextEvmBlock()
	if next > latest {
		return 0, nil
	}

	to := latest
	if to-next >= MaxLogRequestCount {
		to = next + MaxLogRequestCount - 1
	}

	logs, err := s.client.GetEvents(ctx, etherman.Filter{From: next, To: to})
	if err != nil {
		return 0, err
	}

	logger.WithFields(logger.Fields{
		"from": next,
		"to":   to,
		"logs": len(logs),
	}).Debug("collected evm logs")

	for _, l := range logs {
		if err := s.dispatch(ctx, l); err != nil {
			return 0, fmt.Errorf("block %d: %w", l.BlockNumber, err)
		}
	}

	s.st.SetNextEvmBlock(to + 1)
	return len(logs), nil
}

func (s *Synchronizer) dispatch(ctx context.Context, l bridge.Log) error {
	switch ev := l.Event.(type) {
	case *bridge.BurnTokenEvent:
		return s.handler.HandleBurn(ctx, l, ev)
	case *bridge.MintTokenEvent:
		return s.handler.HandleMint(ctx, l, ev)
	case *bridge.NotifyMinterEvent:
		return s.handler.HandleNotify(ctx, l, ev)
	default:
		// token deployments carry nothing for the orchestrator
		return nil
	}
}
