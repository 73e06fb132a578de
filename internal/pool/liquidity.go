package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolengine/internal/fixedpoint"
	"poolengine/internal/model"
)

// LiquidityResult reports the actual amounts moved and the shares minted or
// burned by a liquidity operation, in canonical pair order.
type LiquidityResult struct {
	AmountA *uint256.Int
	AmountB *uint256.Int
	Shares  *uint256.Int
}

// AddLiquidity deposits assets in proportion to current reserves and mints
// shares to the actor. The first deposit bootstraps the pool: minted shares
// are floor(sqrt(amountA*amountB)), of which the minimum locked quantity is
// minted to the permanent sink. Subsequent deposits are ratio-matched to the
// reserves and both actual amounts must meet the caller's minimums.
func (p *Pool) AddLiquidity(actor common.Address, amountADesired, amountBDesired, amountAMin, amountBMin *uint256.Int, deadline uint64) (LiquidityResult, error) {
	now := p.clock()
	if err := checkDeadline(now, deadline); err != nil {
		return LiquidityResult{}, err
	}
	if err := p.acquire(); err != nil {
		return LiquidityResult{}, err
	}
	defer p.release()

	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		amountA, amountB *uint256.Int
		minted           *uint256.Int
		toCaller         *uint256.Int
		minLocked        = uint256.NewInt(p.params.MinimumLockedShares)
	)

	bootstrap := p.shareSupply.IsZero()
	if bootstrap {
		product, err := fixedpoint.CheckedMul(amountADesired, amountBDesired)
		if err != nil {
			return LiquidityResult{}, fmt.Errorf("pool: bootstrap shares: %w", err)
		}
		minted = fixedpoint.Sqrt(product)
		if minted.Cmp(minLocked) <= 0 {
			return LiquidityResult{}, fmt.Errorf("%w: sqrt(%s*%s) = %s must exceed %s locked shares",
				ErrInsufficientInitialLiquidity, amountADesired.Dec(), amountBDesired.Dec(), minted.Dec(), minLocked.Dec())
		}
		amountA = new(uint256.Int).Set(amountADesired)
		amountB = new(uint256.Int).Set(amountBDesired)
		toCaller = new(uint256.Int).Sub(minted, minLocked)
	} else {
		var err error
		amountA, amountB, err = p.matchDeposit(amountADesired, amountBDesired)
		if err != nil {
			return LiquidityResult{}, err
		}
		if amountA.Cmp(amountAMin) < 0 {
			return LiquidityResult{}, fmt.Errorf("%w: amountA %s below minimum %s",
				ErrSlippageExceeded, amountA.Dec(), amountAMin.Dec())
		}
		if amountB.Cmp(amountBMin) < 0 {
			return LiquidityResult{}, fmt.Errorf("%w: amountB %s below minimum %s",
				ErrSlippageExceeded, amountB.Dec(), amountBMin.Dec())
		}

		sharesA, err := fixedpoint.MulDiv(amountA, &p.shareSupply, &p.reserveA)
		if err != nil {
			return LiquidityResult{}, fmt.Errorf("pool: shares for amountA: %w", err)
		}
		sharesB, err := fixedpoint.MulDiv(amountB, &p.shareSupply, &p.reserveB)
		if err != nil {
			return LiquidityResult{}, fmt.Errorf("pool: shares for amountB: %w", err)
		}
		minted = fixedpoint.Min(sharesA, sharesB)
		if minted.IsZero() {
			return LiquidityResult{}, fmt.Errorf("%w: deposit too small to mint shares", ErrSlippageExceeded)
		}
		toCaller = minted
	}

	newReserveA, err := fixedpoint.CheckedAdd(&p.reserveA, amountA)
	if err != nil {
		return LiquidityResult{}, fmt.Errorf("pool: reserveA: %w", err)
	}
	newReserveB, err := fixedpoint.CheckedAdd(&p.reserveB, amountB)
	if err != nil {
		return LiquidityResult{}, fmt.Errorf("pool: reserveB: %w", err)
	}
	if _, err := fixedpoint.CheckedAdd(&p.shareSupply, minted); err != nil {
		return LiquidityResult{}, fmt.Errorf("pool: share supply: %w", err)
	}

	tx := p.vault.Begin()
	if err := tx.Transfer(actor, p.account, p.key.AssetA, amountA); err != nil {
		tx.Revert()
		return LiquidityResult{}, fmt.Errorf("pool: deposit %s: %w", p.key.AssetA, err)
	}
	if err := tx.Transfer(actor, p.account, p.key.AssetB, amountB); err != nil {
		tx.Revert()
		return LiquidityResult{}, fmt.Errorf("pool: deposit %s: %w", p.key.AssetB, err)
	}
	tx.Commit()

	p.updateCumulatives(now)
	p.reserveA.Set(newReserveA)
	p.reserveB.Set(newReserveB)
	if bootstrap {
		p.mintShares(shareSink, minLocked)
	}
	p.mintShares(actor, toCaller)

	p.emit(model.PoolEvent{
		Kind:      model.EventAddLiquidity,
		Actor:     actor.Hex(),
		AmountA:   amountA.Dec(),
		AmountB:   amountB.Dec(),
		Shares:    toCaller.Dec(),
		Timestamp: now,
	})

	return LiquidityResult{
		AmountA: amountA,
		AmountB: amountB,
		Shares:  new(uint256.Int).Set(toCaller),
	}, nil
}

// matchDeposit resolves the actual deposit amounts that match current
// reserves exactly: quote B for the full desired A, and if that overshoots
// the desired B, solve the symmetric case instead. Caller holds mu.
func (p *Pool) matchDeposit(amountADesired, amountBDesired *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	amountBOptimal, err := fixedpoint.MulDiv(amountADesired, &p.reserveB, &p.reserveA)
	if err != nil {
		return nil, nil, fmt.Errorf("pool: quote amountB: %w", err)
	}
	if amountBOptimal.Cmp(amountBDesired) <= 0 {
		return new(uint256.Int).Set(amountADesired), amountBOptimal, nil
	}
	amountAOptimal, err := fixedpoint.MulDiv(amountBDesired, &p.reserveA, &p.reserveB)
	if err != nil {
		return nil, nil, fmt.Errorf("pool: quote amountA: %w", err)
	}
	return amountAOptimal, new(uint256.Int).Set(amountBDesired), nil
}

// RemoveLiquidity burns the actor's shares and pays out the proportional
// slice of both reserves. Both payout amounts must meet the caller's
// minimums.
func (p *Pool) RemoveLiquidity(actor common.Address, shares, amountAMin, amountBMin *uint256.Int, deadline uint64) (LiquidityResult, error) {
	now := p.clock()
	if err := checkDeadline(now, deadline); err != nil {
		return LiquidityResult{}, err
	}
	if err := p.acquire(); err != nil {
		return LiquidityResult{}, err
	}
	defer p.release()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shareSupply.IsZero() {
		return LiquidityResult{}, fmt.Errorf("%w: no shares outstanding", ErrInsufficientShares)
	}
	balance, ok := p.shares[actor]
	if !ok || balance.Cmp(shares) < 0 {
		held := uint256.NewInt(0)
		if ok {
			held = balance
		}
		return LiquidityResult{}, fmt.Errorf("%w: hold %s, burn %s",
			ErrInsufficientShares, held.Dec(), shares.Dec())
	}

	amountA, err := fixedpoint.MulDiv(shares, &p.reserveA, &p.shareSupply)
	if err != nil {
		return LiquidityResult{}, fmt.Errorf("pool: payout amountA: %w", err)
	}
	amountB, err := fixedpoint.MulDiv(shares, &p.reserveB, &p.shareSupply)
	if err != nil {
		return LiquidityResult{}, fmt.Errorf("pool: payout amountB: %w", err)
	}
	if amountA.Cmp(amountAMin) < 0 {
		return LiquidityResult{}, fmt.Errorf("%w: amountA %s below minimum %s",
			ErrSlippageExceeded, amountA.Dec(), amountAMin.Dec())
	}
	if amountB.Cmp(amountBMin) < 0 {
		return LiquidityResult{}, fmt.Errorf("%w: amountB %s below minimum %s",
			ErrSlippageExceeded, amountB.Dec(), amountBMin.Dec())
	}

	tx := p.vault.Begin()
	if err := tx.Transfer(p.account, actor, p.key.AssetA, amountA); err != nil {
		tx.Revert()
		return LiquidityResult{}, fmt.Errorf("pool: withdraw %s: %w", p.key.AssetA, err)
	}
	if err := tx.Transfer(p.account, actor, p.key.AssetB, amountB); err != nil {
		tx.Revert()
		return LiquidityResult{}, fmt.Errorf("pool: withdraw %s: %w", p.key.AssetB, err)
	}
	tx.Commit()

	p.updateCumulatives(now)
	p.burnShares(actor, shares)
	p.reserveA.Sub(&p.reserveA, amountA)
	p.reserveB.Sub(&p.reserveB, amountB)

	p.emit(model.PoolEvent{
		Kind:      model.EventRemoveLiquidity,
		Actor:     actor.Hex(),
		AmountA:   amountA.Dec(),
		AmountB:   amountB.Dec(),
		Shares:    shares.Dec(),
		Timestamp: now,
	})

	return LiquidityResult{AmountA: amountA, AmountB: amountB, Shares: new(uint256.Int).Set(shares)}, nil
}
