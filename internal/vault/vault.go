// Package vault is the asset-transfer primitive backing the pool engine: an
// in-memory balance ledger keyed by (account, asset). Transfers are
// all-or-nothing, and a multi-step operation such as a flash loan runs
// inside a transaction that can restore every balance it touched.
package vault

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrInsufficientBalance is returned when a transfer exceeds the sender's balance.
var ErrInsufficientBalance = errors.New("vault: insufficient balance")

// Vault holds balances for every account and asset known to the engine.
// It is safe for concurrent use: operations on disjoint balances, such as
// independent pools running in parallel, never observe each other's
// uncommitted state.
type Vault struct {
	mu       sync.Mutex
	balances map[common.Address]map[common.Address]*uint256.Int
}

// New returns an empty vault.
func New() *Vault {
	return &Vault{
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// BalanceOf returns a copy of the account's balance of asset.
func (v *Vault) BalanceOf(account, asset common.Address) *uint256.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(uint256.Int).Set(v.balance(account, asset))
}

// Mint credits amount of asset to account.
func (v *Vault) Mint(account, asset common.Address, amount *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	bal := v.balance(account, asset)
	next, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return fmt.Errorf("vault: mint overflows balance of %s", account)
	}
	v.setBalance(account, asset, next)
	return nil
}

// Transfer moves amount of asset from one account to another. It either
// fully succeeds or fully fails with no partial movement.
func (v *Vault) Transfer(from, to, asset common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.transfer(from, to, asset, amount)
}

// balanceKey identifies one balance slot.
type balanceKey struct {
	account common.Address
	asset   common.Address
}

// Tx scopes the balance changes of one operation. It records the value of
// every balance it touches at first touch, the same undo shape as
// go-ethereum's state journal, but owned by the operation: a Revert
// restores exactly those balances and leaves every other balance alone,
// so transactions of independent operations never unwind each other.
//
// The balances one transaction touches must not be committed to by a
// concurrent transaction; pool operations guarantee this by holding their
// pool's lock while the transaction is open.
type Tx struct {
	v    *Vault
	prev map[balanceKey]uint256.Int
}

// Begin opens a transaction against the vault.
func (v *Vault) Begin() *Tx {
	return &Tx{v: v, prev: make(map[balanceKey]uint256.Int)}
}

// Transfer moves amount of asset within the transaction's scope. The
// touched balances become restorable by Revert.
func (t *Tx) Transfer(from, to, asset common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	t.v.mu.Lock()
	defer t.v.mu.Unlock()

	t.touch(from, asset)
	t.touch(to, asset)
	return t.v.transfer(from, to, asset, amount)
}

// Commit keeps every change and ends the transaction.
func (t *Tx) Commit() {
	t.prev = nil
}

// Revert restores every balance the transaction touched to its value at
// first touch, then ends the transaction. Plain vault transfers made on
// those same balances while the transaction was open, such as a borrower's
// repayment during a flash-loan callback, are undone with it.
func (t *Tx) Revert() {
	if t.prev == nil {
		return
	}
	t.v.mu.Lock()
	defer t.v.mu.Unlock()

	for key, prev := range t.prev {
		restored := prev
		t.v.setBalance(key.account, key.asset, &restored)
	}
	t.prev = nil
}

// touch records the balance's current value the first time the transaction
// sees it. Caller holds v.mu.
func (t *Tx) touch(account, asset common.Address) {
	key := balanceKey{account: account, asset: asset}
	if _, ok := t.prev[key]; ok {
		return
	}
	var prev uint256.Int
	prev.Set(t.v.balance(account, asset))
	t.prev[key] = prev
}

// transfer applies a validated balance movement. Caller holds v.mu.
func (v *Vault) transfer(from, to, asset common.Address, amount *uint256.Int) error {
	fromBal := v.balance(from, asset)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: account %s holds %s of %s, need %s",
			ErrInsufficientBalance, from, fromBal.Dec(), asset, amount.Dec())
	}
	toBal := v.balance(to, asset)
	toNext, overflow := new(uint256.Int).AddOverflow(toBal, amount)
	if overflow {
		return fmt.Errorf("vault: transfer overflows balance of %s", to)
	}

	v.setBalance(from, asset, new(uint256.Int).Sub(fromBal, amount))
	v.setBalance(to, asset, toNext)
	return nil
}

// balance returns the stored balance or zero. Caller holds v.mu.
func (v *Vault) balance(account, asset common.Address) *uint256.Int {
	if assets, ok := v.balances[account]; ok {
		if bal, ok := assets[asset]; ok {
			return bal
		}
	}
	return uint256.NewInt(0)
}

// setBalance writes the new balance, dropping empty slots. Caller holds v.mu.
func (v *Vault) setBalance(account, asset common.Address, next *uint256.Int) {
	assets, ok := v.balances[account]
	if !ok {
		assets = make(map[common.Address]*uint256.Int)
		v.balances[account] = assets
	}
	if next.IsZero() {
		delete(assets, asset)
		if len(assets) == 0 {
			delete(v.balances, account)
		}
		return
	}
	assets[asset] = next
}
