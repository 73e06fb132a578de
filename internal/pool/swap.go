package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolengine/internal/fixedpoint"
	"poolengine/internal/model"
)

// Swap trades amountIn of assetIn for the pair's other asset at the
// constant-product price, after deducting the trading fee from the input.
// The post-trade reserve product is asserted to be no less than the
// pre-trade product: fees are retained by the pool, so any decrease means
// the arithmetic above it is wrong.
func (p *Pool) Swap(actor common.Address, assetIn common.Address, amountIn, minAmountOut *uint256.Int, deadline uint64) (*uint256.Int, error) {
	now := p.clock()
	if err := checkDeadline(now, deadline); err != nil {
		return nil, err
	}
	if err := p.acquire(); err != nil {
		return nil, err
	}
	defer p.release()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.key.Contains(assetIn) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAsset, assetIn)
	}
	assetOut := p.key.Other(assetIn)
	reserveIn, reserveOut := &p.reserveA, &p.reserveB
	if assetIn == p.key.AssetB {
		reserveIn, reserveOut = &p.reserveB, &p.reserveA
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, fmt.Errorf("%w: pool has no liquidity", ErrSlippageExceeded)
	}

	amountInAfterFee, err := fixedpoint.BpsMul(amountIn, fixedpoint.BpsDenom-p.params.FeeBps)
	if err != nil {
		return nil, fmt.Errorf("pool: fee: %w", err)
	}
	denom, err := fixedpoint.CheckedAdd(reserveIn, amountInAfterFee)
	if err != nil {
		return nil, fmt.Errorf("pool: reserveIn + input: %w", err)
	}
	amountOut, err := fixedpoint.MulDiv(amountInAfterFee, reserveOut, denom)
	if err != nil {
		return nil, fmt.Errorf("pool: swap output: %w", err)
	}
	if amountOut.Cmp(minAmountOut) < 0 {
		return nil, fmt.Errorf("%w: output %s below minimum %s",
			ErrSlippageExceeded, amountOut.Dec(), minAmountOut.Dec())
	}

	newReserveIn, err := fixedpoint.CheckedAdd(reserveIn, amountIn)
	if err != nil {
		return nil, fmt.Errorf("pool: new reserveIn: %w", err)
	}
	newReserveOut := new(uint256.Int).Sub(reserveOut, amountOut)

	productBefore, err := fixedpoint.CheckedMul(reserveIn, reserveOut)
	if err != nil {
		return nil, fmt.Errorf("pool: pre-trade product: %w", err)
	}
	productAfter, err := fixedpoint.CheckedMul(newReserveIn, newReserveOut)
	if err != nil {
		return nil, fmt.Errorf("pool: post-trade product: %w", err)
	}
	if productAfter.Cmp(productBefore) < 0 {
		return nil, fmt.Errorf("%w: %s < %s",
			ErrInvariantViolated, productAfter.Dec(), productBefore.Dec())
	}

	tx := p.vault.Begin()
	if err := tx.Transfer(actor, p.account, assetIn, amountIn); err != nil {
		tx.Revert()
		return nil, fmt.Errorf("pool: swap input: %w", err)
	}
	if err := tx.Transfer(p.account, actor, assetOut, amountOut); err != nil {
		tx.Revert()
		return nil, fmt.Errorf("pool: swap output: %w", err)
	}
	tx.Commit()

	p.updateCumulatives(now)
	if assetIn == p.key.AssetA {
		p.reserveA.Set(newReserveIn)
		p.reserveB.Set(newReserveOut)
	} else {
		p.reserveB.Set(newReserveIn)
		p.reserveA.Set(newReserveOut)
	}

	fee := new(uint256.Int).Sub(amountIn, amountInAfterFee)
	p.emit(model.PoolEvent{
		Kind:      model.EventSwap,
		Actor:     actor.Hex(),
		AssetIn:   assetIn.Hex(),
		AmountIn:  amountIn.Dec(),
		AmountOut: amountOut.Dec(),
		Fee:       fee.Dec(),
		Timestamp: now,
	})

	return amountOut, nil
}
