package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolengine/internal/fixedpoint"
	"poolengine/internal/model"
)

// Borrower receives flash-loaned funds. OnFlashLoan runs with the lending
// pool's operation lock held: the callback may use the funds freely and call
// other pools, but any attempt to re-enter the lending pool fails with
// ErrReentrantCall. Before returning, the borrower must move at least
// amount + fee of the asset back to the pool's vault account.
type Borrower interface {
	Address() common.Address
	OnFlashLoan(ctx context.Context, pair PairKey, asset common.Address, amount, fee *uint256.Int, data []byte) error
}

// FlashLoan lends amount of asset to an approved borrower for the duration
// of its callback and verifies repayment with fee afterwards. The sequence
// is all-or-nothing: on any failure, including a callback error, the pool's
// and the borrower's balances of the asset are restored to their pre-loan
// values and the pre-loan reserve state is kept. Operations the borrower
// completed on other pools during the callback stand on their own.
func (p *Pool) FlashLoan(ctx context.Context, borrower Borrower, asset common.Address, amount *uint256.Int, data []byte) error {
	if err := p.acquire(); err != nil {
		return err
	}
	defer p.release()

	if !p.key.Contains(asset) {
		return fmt.Errorf("%w: %s", ErrInvalidAsset, asset)
	}
	borrowerAddr := borrower.Address()
	if !p.isApprovedBorrower(borrowerAddr) {
		return fmt.Errorf("%w: %s", ErrBorrowerNotApproved, borrowerAddr)
	}

	p.mu.RLock()
	balanceBefore := new(uint256.Int).Set(&p.reserveA)
	if asset == p.key.AssetB {
		balanceBefore.Set(&p.reserveB)
	}
	p.mu.RUnlock()

	maxLoan, err := fixedpoint.BpsMul(balanceBefore, p.params.MaxFlashLoanFractionBps)
	if err != nil {
		return fmt.Errorf("pool: flash loan cap: %w", err)
	}
	if amount.Cmp(maxLoan) > 0 {
		return fmt.Errorf("%w: %s exceeds cap %s (reserve %s)",
			ErrAmountTooLarge, amount.Dec(), maxLoan.Dec(), balanceBefore.Dec())
	}
	fee, err := fixedpoint.BpsMul(amount, p.params.FlashFeeBps)
	if err != nil {
		return fmt.Errorf("pool: flash loan fee: %w", err)
	}
	required, err := fixedpoint.CheckedAdd(balanceBefore, fee)
	if err != nil {
		return fmt.Errorf("pool: required repayment: %w", err)
	}

	tx := p.vault.Begin()
	if err := tx.Transfer(p.account, borrowerAddr, asset, amount); err != nil {
		tx.Revert()
		return fmt.Errorf("pool: flash loan payout: %w", err)
	}

	if err := borrower.OnFlashLoan(ctx, p.key, asset, amount, fee, data); err != nil {
		tx.Revert()
		return fmt.Errorf("pool: flash loan callback: %w", err)
	}

	balanceAfter := p.vault.BalanceOf(p.account, asset)
	if balanceAfter.Cmp(required) < 0 {
		tx.Revert()
		return fmt.Errorf("%w: pool holds %s, requires %s",
			ErrLoanNotRepaid, balanceAfter.Dec(), required.Dec())
	}
	tx.Commit()

	now := p.clock()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateCumulatives(now)
	// The reserve absorbs the fee and any over-repayment.
	if asset == p.key.AssetA {
		p.reserveA.Set(balanceAfter)
	} else {
		p.reserveB.Set(balanceAfter)
	}

	p.emit(model.PoolEvent{
		Kind:      model.EventFlashLoan,
		Actor:     borrowerAddr.Hex(),
		AssetIn:   asset.Hex(),
		AmountIn:  amount.Dec(),
		Fee:       fee.Dec(),
		Timestamp: now,
	})

	return nil
}
