package bridge

import (
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// FeeCharge holds prepaid native currency used to pay for minting.
// Only registered chargers may debit a deposit.
type FeeCharge struct {
	mu sync.Mutex

	Address  ethcommon.Address
	deposits map[ethcommon.Address]*big.Int
	native   map[ethcommon.Address]*big.Int
	chargers map[ethcommon.Address]struct{}
}

func NewFeeCharge(addr ethcommon.Address) *FeeCharge {
	return &FeeCharge{
		Address:  addr,
		deposits: make(map[ethcommon.Address]*big.Int),
		native:   make(map[ethcommon.Address]*big.Int),
		chargers: make(map[ethcommon.Address]struct{}),
	}
}

func (f *FeeCharge) AllowCharger(addr ethcommon.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chargers[addr] = struct{}{}
}

// NativeTokenDeposit credits amount to user's fee deposit and returns the new balance.
func (f *FeeCharge) NativeTokenDeposit(user ethcommon.Address, amount *big.Int) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()

	bal := f.balance(user)
	bal.Add(bal, amount)
	f.deposits[user] = bal
	return new(big.Int).Set(bal)
}

// Withdraw moves amount from the fee deposit back to the user's native balance.
func (f *FeeCharge) Withdraw(user ethcommon.Address, amount *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	bal := f.balance(user)
	if bal.Cmp(amount) < 0 {
		return revert(ErrFeeInsufficient)
	}
	f.deposits[user] = bal.Sub(bal, amount)
	f.credit(user, amount)
	return nil
}

func (f *FeeCharge) Balance(user ethcommon.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balance(user))
}

// NativeBalance is what has been paid out to an address.
func (f *FeeCharge) NativeBalance(user ethcommon.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.native[user]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (f *FeeCharge) CanCharge(payer ethcommon.Address, amount *big.Int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance(payer).Cmp(amount) >= 0
}

// Charge debits payer and pays to. Nothing changes on failure.
func (f *FeeCharge) Charge(charger, payer, to ethcommon.Address, amount *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.chargers[charger]; !ok {
		return revert(ErrNotCharger)
	}
	bal := f.balance(payer)
	if bal.Cmp(amount) < 0 {
		return revert(ErrFeeInsufficient)
	}
	f.deposits[payer] = bal.Sub(bal, amount)
	f.credit(to, amount)
	return nil
}

func (f *FeeCharge) balance(user ethcommon.Address) *big.Int {
	if v, ok := f.deposits[user]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (f *FeeCharge) credit(to ethcommon.Address, amount *big.Int) {
	v, ok := f.native[to]
	if !ok {
		v = new(big.Int)
	}
	f.native[to] = v.Add(v, amount)
}
