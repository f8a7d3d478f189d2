package state

import (
	"errors"
	"math/big"
	"sort"
	"sync"

	"github.com/TEENet-io/mintburn-bridge/order"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	KeyNextEvmBlock = crypto.Keccak256Hash([]byte("KeyNextEvmBlock"))
	KeyGasPrice     = crypto.Keccak256Hash([]byte("KeyGasPrice"))
	KeyEvmChainID   = crypto.Keccak256Hash([]byte("KeyEvmChainID"))
)

var (
	ErrEmptySourceID      = errors.New("empty source id")
	ErrDepositNotFound    = errors.New("deposit not found")
	ErrOrderExists        = errors.New("mint order already exists for source id")
	ErrOrderNotFound      = errors.New("mint order not found")
	ErrNonceUsed          = errors.New("nonce already assigned to another order")
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
)

// State is everything the orchestrator owns. All methods are safe for
// concurrent use; values are returned as copies.
type State struct {
	mu sync.RWMutex

	deposits     map[string]*Deposit
	depositOrder []string

	orders        map[string]*OrderRecord
	ordersByNonce map[order.Id256]map[uint32]string
	nonces        map[order.Id256]uint32

	withdrawals map[uint32]*Withdrawal

	nextEvmBlock uint64
	gasPrice     *big.Int
	evmChainID   *big.Int

	tasks []*TaskRecord
}

func New() *State {
	return &State{
		deposits:      make(map[string]*Deposit),
		orders:        make(map[string]*OrderRecord),
		ordersByNonce: make(map[order.Id256]map[uint32]string),
		nonces:        make(map[order.Id256]uint32),
		withdrawals:   make(map[uint32]*Withdrawal),
		gasPrice:      new(big.Int),
		evmChainID:    new(big.Int),
	}
}

func copyDeposit(d *Deposit) *Deposit {
	c := *d
	return &c
}

func copyOrder(r *OrderRecord) *OrderRecord {
	c := *r
	c.Payload = append(order.SignedOrder(nil), r.Payload...)
	return &c
}

func copyWithdrawal(w *Withdrawal) *Withdrawal {
	c := *w
	if w.Amount != nil {
		c.Amount = new(big.Int).Set(w.Amount)
	}
	c.RecipientID = append([]byte(nil), w.RecipientID...)
	c.RawTx = append([]byte(nil), w.RawTx...)
	return &c
}

// UpsertDeposit inserts a deposit seen for the first time or overwrites the
// stored one. It returns true on insert.
func (s *State) UpsertDeposit(d *Deposit) (bool, error) {
	if d.SourceID == "" {
		return false, ErrEmptySourceID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.deposits[d.SourceID]
	s.deposits[d.SourceID] = copyDeposit(d)
	if !exists {
		s.depositOrder = append(s.depositOrder, d.SourceID)
	}
	return !exists, nil
}

func (s *State) Deposit(sourceID string) (*Deposit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deposits[sourceID]
	if !ok {
		return nil, false
	}
	return copyDeposit(d), true
}

// Deposits returns all deposits in the order they were first seen.
func (s *State) Deposits() []*Deposit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Deposit, 0, len(s.depositOrder))
	for _, id := range s.depositOrder {
		out = append(out, copyDeposit(s.deposits[id]))
	}
	return out
}

func (s *State) DepositsOf(recipient ethcommon.Address) []*Deposit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Deposit{}
	for _, id := range s.depositOrder {
		if d := s.deposits[id]; d.Recipient == recipient {
			out = append(out, copyDeposit(d))
		}
	}
	return out
}

func (s *State) SetDepositStatus(sourceID string, status DepositStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deposits[sourceID]
	if !ok {
		return ErrDepositNotFound
	}
	d.Status = status
	d.Reason = reason
	return nil
}

// NextNonce returns the next unused nonce of the sender. It does not reserve
// it; PutOrder does.
func (s *State) NextNonce(senderID order.Id256) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.nonces[senderID]
}

// PutOrder stores a newly built order and advances the sender's nonce counter
// past the order's nonce.
func (s *State) PutOrder(rec *OrderRecord) error {
	if rec.SourceID == "" {
		return ErrEmptySourceID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[rec.SourceID]; ok {
		return ErrOrderExists
	}
	byNonce, ok := s.ordersByNonce[rec.SenderID]
	if !ok {
		byNonce = make(map[uint32]string)
		s.ordersByNonce[rec.SenderID] = byNonce
	}
	if _, ok := byNonce[rec.Nonce]; ok {
		return ErrNonceUsed
	}

	s.orders[rec.SourceID] = copyOrder(rec)
	byNonce[rec.Nonce] = rec.SourceID
	if rec.Nonce >= s.nonces[rec.SenderID] {
		s.nonces[rec.SenderID] = rec.Nonce + 1
	}
	return nil
}

// SetOrderStatus updates the status of an order. A zero txHash keeps the
// stored one.
func (s *State) SetOrderStatus(sourceID string, status OrderStatus, txHash ethcommon.Hash, rejectCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.orders[sourceID]
	if !ok {
		return ErrOrderNotFound
	}
	rec.Status = status
	rec.RejectCode = rejectCode
	if txHash != (ethcommon.Hash{}) {
		rec.TxHash = txHash
	}
	return nil
}

func (s *State) Order(sourceID string) (*OrderRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.orders[sourceID]
	if !ok {
		return nil, false
	}
	return copyOrder(rec), true
}

func (s *State) OrderByNonce(senderID order.Id256, nonce uint32) (*OrderRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.ordersByNonce[senderID][nonce]
	if !ok {
		return nil, false
	}
	return copyOrder(s.orders[id]), true
}

func (s *State) Orders() []*OrderRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*OrderRecord, 0, len(s.orders))
	for _, rec := range s.orders {
		out = append(out, copyOrder(rec))
	}
	return out
}

// PutWithdrawal stores a new withdrawal. It returns false and leaves the
// stored one untouched when the operation id is already known.
func (s *State) PutWithdrawal(w *Withdrawal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.withdrawals[w.OperationID]; ok {
		return false
	}
	s.withdrawals[w.OperationID] = copyWithdrawal(w)
	return true
}

func (s *State) UpdateWithdrawal(w *Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.withdrawals[w.OperationID]; !ok {
		return ErrWithdrawalNotFound
	}
	s.withdrawals[w.OperationID] = copyWithdrawal(w)
	return nil
}

func (s *State) Withdrawal(operationID uint32) (*Withdrawal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.withdrawals[operationID]
	if !ok {
		return nil, false
	}
	return copyWithdrawal(w), true
}

func (s *State) Withdrawals() []*Withdrawal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Withdrawal, 0, len(s.withdrawals))
	for _, w := range s.withdrawals {
		out = append(out, copyWithdrawal(w))
	}
	return out
}

// WithdrawalsOf is the operation log of one burner, ordered by operation id.
func (s *State) WithdrawalsOf(sender ethcommon.Address) []*Withdrawal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Withdrawal{}
	for _, w := range s.withdrawals {
		if w.Sender == sender {
			out = append(out, copyWithdrawal(w))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OperationID < out[j].OperationID })
	return out
}

func (s *State) WithdrawalByMemo(memo [32]byte) (*Withdrawal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, w := range s.withdrawals {
		if w.Memo == memo {
			return copyWithdrawal(w), true
		}
	}
	return nil, false
}

func (s *State) NextEvmBlock() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextEvmBlock
}

func (s *State) SetNextEvmBlock(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEvmBlock = n
}

func (s *State) GasPrice() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.gasPrice)
}

func (s *State) SetGasPrice(p *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gasPrice = new(big.Int).Set(p)
}

func (s *State) EvmChainID() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.evmChainID)
}

func (s *State) SetEvmChainID(id *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evmChainID = new(big.Int).Set(id)
}

// SetTasks replaces the persisted scheduler snapshot.
func (s *State) SetTasks(records []*TaskRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make([]*TaskRecord, 0, len(records))
	for _, r := range records {
		c := *r
		c.Payload = append([]byte(nil), r.Payload...)
		s.tasks = append(s.tasks, &c)
	}
}

func (s *State) Tasks() []*TaskRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*TaskRecord, 0, len(s.tasks))
	for _, r := range s.tasks {
		c := *r
		c.Payload = append([]byte(nil), r.Payload...)
		out = append(out, &c)
	}
	return out
}
