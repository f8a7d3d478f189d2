// This is a http type of reporter.
// It reads the orchestrator state and publishes it on the http routes.
// Deposits can be requested through it as well.

package reporter

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/mintburn-bridge/scheduler"
	"github.com/TEENet-io/mintburn-bridge/state"
)

const (
	ROUTE_DEPOSIT_ADDRESS = "/api/v1/deposit-address/:recipient"
	ROUTE_DEPOSIT         = "/api/v1/deposit"
	ROUTE_DEPOSITS        = "/api/v1/deposits/:recipient"
	ROUTE_ORDER           = "/api/v1/orders/:sourceID"
	ROUTE_WITHDRAWAL      = "/api/v1/withdrawals/:operationID"
	ROUTE_TASK            = "/api/v1/tasks/:id"
	ROUTE_HEALTH          = "/api/v1/health"

	shutdownTimeout = 5 * time.Second
)

var ErrInvalidRecipient = errors.New("recipient must be a non-zero evm address")

// Backend is what the reporter reads from. *orchestrator.Orchestrator
// implements it.
type Backend interface {
	DepositAddress(recipient ethcommon.Address) (string, error)
	RequestDeposit(recipient ethcommon.Address) (scheduler.TaskID, error)
	TaskStatus(id scheduler.TaskID) (scheduler.TaskStatus, bool)
	Tasks() []scheduler.TaskStatus
	State() *state.State
}

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	backend Backend
}

func NewHttpReporter(serverIP string, serverPort string, backend Backend) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		backend:    backend,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	router.GET(ROUTE_DEPOSIT_ADDRESS, h.DepositAddress)
	router.POST(ROUTE_DEPOSIT, h.RequestDeposit)
	router.GET(ROUTE_DEPOSITS, h.Deposits)
	router.GET(ROUTE_ORDER, h.Order)
	router.GET(ROUTE_WITHDRAWAL, h.Withdrawal)
	router.GET(ROUTE_TASK, h.Task)
	router.GET(ROUTE_HEALTH, h.Health)

	return router
}

func (h *HttpReporter) Address() string {
	return h.serverIP + ":" + h.serverPort
}

// Run serves until ctx is done.
func (h *HttpReporter) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    h.Address(),
		Handler: h.SetupRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("address", srv.Addr).Info("http reporter listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("http reporter stopped")
	return nil
}

func parseRecipient(s string) (ethcommon.Address, error) {
	if !ethcommon.IsHexAddress(s) {
		return ethcommon.Address{}, ErrInvalidRecipient
	}
	a := ethcommon.HexToAddress(s)
	if a == (ethcommon.Address{}) {
		return ethcommon.Address{}, ErrInvalidRecipient
	}
	return a, nil
}

func (h *HttpReporter) DepositAddress(c *gin.Context) {
	recipient, err := parseRecipient(c.Param("recipient"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	addr, err := h.backend.DepositAddress(recipient)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipient": recipient.Hex(), "address": addr})
}

type DepositRequest struct {
	Recipient string `json:"recipient" binding:"required"`
}

// RequestDeposit starts the deposit flow of a recipient, or returns the one
// already running.
func (h *HttpReporter) RequestDeposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recipient, err := parseRecipient(req.Recipient)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.backend.RequestDeposit(recipient)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	addr, err := h.backend.DepositAddress(recipient)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task": id, "address": addr})
}

func (h *HttpReporter) Deposits(c *gin.Context) {
	recipient, err := parseRecipient(c.Param("recipient"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st := h.backend.State()
	deposits := st.DepositsOf(recipient)
	out := make([]DepositView, 0, len(deposits))
	for _, d := range deposits {
		v := NewDepositView(d)
		if rec, ok := st.Order(d.SourceID); ok {
			v.Order = NewOrderView(rec)
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (h *HttpReporter) Order(c *gin.Context) {
	rec, ok := h.backend.State().Order(c.Param("sourceID"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No mint order found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": NewOrderView(rec)})
}

func (h *HttpReporter) Withdrawal(c *gin.Context) {
	opID, err := strconv.ParseUint(c.Param("operationID"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "operationID must be an unsigned 32 bit integer"})
		return
	}

	w, ok := h.backend.State().Withdrawal(uint32(opID))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No withdrawal found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": NewWithdrawalView(w)})
}

func (h *HttpReporter) Task(c *gin.Context) {
	st, ok := h.backend.TaskStatus(scheduler.TaskID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No task found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": NewTaskView(st)})
}

func (h *HttpReporter) Health(c *gin.Context) {
	st := h.backend.State()

	tasks := map[scheduler.TaskState]int{}
	for _, t := range h.backend.Tasks() {
		tasks[t.State]++
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"nextEvmBlock": st.NextEvmBlock(),
		"evmChainID":   st.EvmChainID().String(),
		"gasPrice":     st.GasPrice().String(),
		"tasks":        tasks,
	})
}
