package indexer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
)

const (
	utxoEndpoint      = "/address/{address}/utxo"
	tipHeightEndpoint = "/blocks/tip/height"

	DefaultTimeout = 10 * time.Second
)

type esploraUtxo struct {
	TxID   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Value  int64  `json:"value"`
	Status struct {
		Confirmed   bool   `json:"confirmed"`
		BlockHeight uint32 `json:"block_height"`
	} `json:"status"`
}

// EsploraIndexer talks to an Esplora compatible HTTP API.
type EsploraIndexer struct {
	client *resty.Client
}

func NewEsploraIndexer(baseURL string, timeout time.Duration) *EsploraIndexer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0)
	return &EsploraIndexer{client: client}
}

func (e *EsploraIndexer) GetBalance(ctx context.Context, address string) ([]Utxo, error) {
	var out []esploraUtxo
	resp, err := e.client.R().
		SetContext(ctx).
		SetPathParam("address", address).
		SetResult(&out).
		Get(utxoEndpoint)
	if err := checkResponse(resp, err); err != nil {
		logger.WithField("address", address).Warnf("failed to query utxos: err=%v", err)
		return nil, err
	}

	utxos := make([]Utxo, 0, len(out))
	for _, u := range out {
		var height uint32
		if u.Status.Confirmed {
			height = u.Status.BlockHeight
		}
		utxos = append(utxos, Utxo{TxID: u.TxID, Vout: u.Vout, Value: u.Value, Height: height})
	}
	return utxos, nil
}

func (e *EsploraIndexer) TipHeight(ctx context.Context) (uint32, error) {
	resp, err := e.client.R().SetContext(ctx).Get(tipHeightEndpoint)
	if err := checkResponse(resp, err); err != nil {
		return 0, err
	}
	height, err := strconv.ParseUint(strings.TrimSpace(resp.String()), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: tip height %q", ErrBadResponse, resp.String())
	}
	return uint32(height), nil
}

// checkResponse maps transport errors and 5xx to ErrIndexerUnavailable.
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexerUnavailable, err)
	}
	if resp.StatusCode() >= 500 || resp.StatusCode() == 429 {
		return fmt.Errorf("%w: status %d", ErrIndexerUnavailable, resp.StatusCode())
	}
	if resp.IsError() {
		return fmt.Errorf("%w: status %d: %s", ErrBadResponse, resp.StatusCode(), resp.String())
	}
	return nil
}
