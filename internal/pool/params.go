package pool

import (
	"fmt"
	"time"

	"poolengine/internal/fixedpoint"
)

// Clock supplies the current unix timestamp for deadline checks and price
// accumulator updates.
type Clock func() uint64

// SystemClock reads the wall clock.
func SystemClock() uint64 {
	return uint64(time.Now().Unix())
}

// Params are the economic constants applied to every pool a registry creates.
type Params struct {
	// MinimumLockedShares is minted to the zero-address sink at bootstrap
	// and can never be redeemed.
	MinimumLockedShares uint64
	// FeeBps is the trading fee taken from swap input, in basis points.
	FeeBps uint64
	// FlashFeeBps is the flash-loan fee, in basis points of the principal.
	FlashFeeBps uint64
	// MaxFlashLoanFractionBps caps a flash loan at this fraction of the
	// asset's reserve, in basis points.
	MaxFlashLoanFractionBps uint64
}

// DefaultParams returns the standard constants: 1000 locked shares, a 0.30%
// swap fee, a 0.05% flash fee, and a 10% flash-loan cap.
func DefaultParams() Params {
	return Params{
		MinimumLockedShares:     1000,
		FeeBps:                  30,
		FlashFeeBps:             5,
		MaxFlashLoanFractionBps: 1000,
	}
}

// validate rejects basis-point values above the denominator. Fee math
// subtracts FeeBps from the denominator, so an oversized value would wrap.
func (p Params) validate() error {
	if p.FeeBps > fixedpoint.BpsDenom {
		return fmt.Errorf("%w: fee %d bps exceeds %d", ErrInvalidParams, p.FeeBps, uint64(fixedpoint.BpsDenom))
	}
	if p.FlashFeeBps > fixedpoint.BpsDenom {
		return fmt.Errorf("%w: flash fee %d bps exceeds %d", ErrInvalidParams, p.FlashFeeBps, uint64(fixedpoint.BpsDenom))
	}
	if p.MaxFlashLoanFractionBps > fixedpoint.BpsDenom {
		return fmt.Errorf("%w: flash loan fraction %d bps exceeds %d", ErrInvalidParams, p.MaxFlashLoanFractionBps, uint64(fixedpoint.BpsDenom))
	}
	return nil
}
