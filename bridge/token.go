package bridge

import (
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ERC20 is a minimal token ledger. Wrapped tokens are owned by the bridge
// that deployed them: only the owner mints, updates metadata or approves
// on behalf of a holder.
type ERC20 struct {
	Address  ethcommon.Address
	Owner    ethcommon.Address
	Wrapped  bool
	name     string
	symbol   string
	decimals uint8

	totalSupply *big.Int
	balances    map[ethcommon.Address]*big.Int
	allowances  map[ethcommon.Address]map[ethcommon.Address]*big.Int
}

func (t *ERC20) Name() string { return t.name }

func (t *ERC20) Symbol() string { return t.symbol }

func (t *ERC20) Decimals() uint8 { return t.decimals }

func (t *ERC20) TotalSupply() *big.Int {
	return new(big.Int).Set(t.totalSupply)
}

func (t *ERC20) BalanceOf(addr ethcommon.Address) *big.Int {
	if v, ok := t.balances[addr]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (t *ERC20) Allowance(owner, spender ethcommon.Address) *big.Int {
	if v, ok := t.allowances[owner][spender]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (t *ERC20) Approve(owner, spender ethcommon.Address, amount *big.Int) {
	m, ok := t.allowances[owner]
	if !ok {
		m = make(map[ethcommon.Address]*big.Int)
		t.allowances[owner] = m
	}
	m[spender] = new(big.Int).Set(amount)
}

// ApproveByOwner lets the token owner set an allowance for any holder.
func (t *ERC20) ApproveByOwner(caller, holder, spender ethcommon.Address, amount *big.Int) error {
	if caller != t.Owner {
		return ErrNotOwner
	}
	t.Approve(holder, spender, amount)
	return nil
}

func (t *ERC20) Transfer(from, to ethcommon.Address, amount *big.Int) error {
	bal := t.BalanceOf(from)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	t.balances[from] = bal.Sub(bal, amount)
	dst := t.BalanceOf(to)
	t.balances[to] = dst.Add(dst, amount)
	return nil
}

func (t *ERC20) TransferFrom(spender, from, to ethcommon.Address, amount *big.Int) error {
	allowed := t.Allowance(from, spender)
	if allowed.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if t.BalanceOf(from).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	t.Approve(from, spender, allowed.Sub(allowed, amount))
	return t.Transfer(from, to, amount)
}

func (t *ERC20) Mint(caller, to ethcommon.Address, amount *big.Int) error {
	if caller != t.Owner {
		return ErrNotOwner
	}
	t.totalSupply.Add(t.totalSupply, amount)
	dst := t.BalanceOf(to)
	t.balances[to] = dst.Add(dst, amount)
	return nil
}

func (t *ERC20) SetMetaData(caller ethcommon.Address, name, symbol string, decimals uint8) error {
	if caller != t.Owner {
		return ErrNotOwner
	}
	t.name, t.symbol, t.decimals = name, symbol, decimals
	return nil
}

// TokenStore is the address book of token contracts living on the chain.
type TokenStore struct {
	mu      sync.Mutex
	tokens  map[ethcommon.Address]*ERC20
	deploys map[ethcommon.Address]uint64
}

func NewTokenStore() *TokenStore {
	return &TokenStore{
		tokens:  make(map[ethcommon.Address]*ERC20),
		deploys: make(map[ethcommon.Address]uint64),
	}
}

// Deploy creates a token at the address derived from the deployer and its
// deployment count, the way CREATE does.
func (s *TokenStore) Deploy(deployer ethcommon.Address, name, symbol string, decimals uint8, wrapped bool) *ERC20 {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := s.deploys[deployer]
	s.deploys[deployer] = nonce + 1

	t := &ERC20{
		Address:     crypto.CreateAddress(deployer, nonce),
		Owner:       deployer,
		Wrapped:     wrapped,
		name:        name,
		symbol:      symbol,
		decimals:    decimals,
		totalSupply: new(big.Int),
		balances:    make(map[ethcommon.Address]*big.Int),
		allowances:  make(map[ethcommon.Address]map[ethcommon.Address]*big.Int),
	}
	s.tokens[t.Address] = t
	return t
}

func (s *TokenStore) Get(addr ethcommon.Address) (*ERC20, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[addr]
	return t, ok
}
