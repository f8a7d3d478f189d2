// Reader is a client of the http reporter, used by the user commands and
// the tests.

package reporter

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

type errorBody struct {
	Error string `json:"error"`
}

type HttpReader struct {
	client *resty.Client
}

// NewHttpReader reads from baseURL, eg. http://127.0.0.1:8080
func NewHttpReader(baseURL string) *HttpReader {
	return &HttpReader{client: resty.New().SetBaseURL(strings.TrimRight(baseURL, "/"))}
}

func (hr *HttpReader) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	var eb errorBody
	resp, err := hr.client.R().
		SetContext(ctx).
		SetPathParams(params).
		SetResult(out).
		SetError(&eb).
		Get(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("http %d: %s", resp.StatusCode(), eb.Error)
	}
	return nil
}

func (hr *HttpReader) GetDepositAddress(ctx context.Context, recipient string) (string, error) {
	var out struct {
		Address string `json:"address"`
	}
	err := hr.get(ctx, "/api/v1/deposit-address/{recipient}", map[string]string{"recipient": recipient}, &out)
	return out.Address, err
}

// RequestDeposit returns the task id of the deposit flow and the address to
// pay to.
func (hr *HttpReader) RequestDeposit(ctx context.Context, recipient string) (string, string, error) {
	var out struct {
		Task    string `json:"task"`
		Address string `json:"address"`
	}
	var eb errorBody
	resp, err := hr.client.R().
		SetContext(ctx).
		SetBody(DepositRequest{Recipient: recipient}).
		SetResult(&out).
		SetError(&eb).
		Post(ROUTE_DEPOSIT)
	if err != nil {
		return "", "", err
	}
	if resp.IsError() {
		return "", "", fmt.Errorf("http %d: %s", resp.StatusCode(), eb.Error)
	}
	return out.Task, out.Address, nil
}

func (hr *HttpReader) GetDeposits(ctx context.Context, recipient string) ([]DepositView, error) {
	var out struct {
		Data []DepositView `json:"data"`
	}
	err := hr.get(ctx, "/api/v1/deposits/{recipient}", map[string]string{"recipient": recipient}, &out)
	return out.Data, err
}

func (hr *HttpReader) GetOrder(ctx context.Context, sourceID string) (*OrderView, error) {
	var out struct {
		Data *OrderView `json:"data"`
	}
	err := hr.get(ctx, "/api/v1/orders/{sourceID}", map[string]string{"sourceID": sourceID}, &out)
	return out.Data, err
}

func (hr *HttpReader) GetWithdrawal(ctx context.Context, operationID uint32) (*WithdrawalView, error) {
	var out struct {
		Data *WithdrawalView `json:"data"`
	}
	err := hr.get(ctx, "/api/v1/withdrawals/{operationID}", map[string]string{"operationID": fmt.Sprint(operationID)}, &out)
	return out.Data, err
}

func (hr *HttpReader) GetTask(ctx context.Context, id string) (*TaskView, error) {
	var out struct {
		Data *TaskView `json:"data"`
	}
	err := hr.get(ctx, "/api/v1/tasks/{id}", map[string]string{"id": id}, &out)
	return out.Data, err
}
