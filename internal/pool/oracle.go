package pool

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"poolengine/internal/fixedpoint"
)

// ErrWindowTooShort is returned when a TWAP window spans less than the
// consumer's minimum elapsed time.
var ErrWindowTooShort = errors.New("pool: twap window too short")

// TWAPSample is one reading of a pool's price accumulators.
type TWAPSample struct {
	PriceACumulative *uint256.Int
	PriceBCumulative *uint256.Int
	Timestamp        uint64
}

// Sample reads the current accumulators for later TWAP computation.
func (p *Pool) Sample() TWAPSample {
	priceA, priceB, last := p.Cumulatives()
	return TWAPSample{PriceACumulative: priceA, PriceBCumulative: priceB, Timestamp: last}
}

// TWAP computes the time-weighted average cross-prices between two samples.
// The window must span at least minElapsed seconds; a window covering a
// single accumulator update is trivially manipulable, so consumers set
// minElapsed to several time units. Accumulator wrap-around cancels in the
// subtraction.
func TWAP(older, newer TWAPSample, minElapsed uint64) (priceA, priceB fixedpoint.UQ112x112, err error) {
	if newer.Timestamp <= older.Timestamp {
		return fixedpoint.UQ112x112{}, fixedpoint.UQ112x112{},
			fmt.Errorf("%w: samples out of order", ErrWindowTooShort)
	}
	elapsed := newer.Timestamp - older.Timestamp
	if elapsed < minElapsed {
		return fixedpoint.UQ112x112{}, fixedpoint.UQ112x112{},
			fmt.Errorf("%w: %ds < %ds", ErrWindowTooShort, elapsed, minElapsed)
	}

	div := uint256.NewInt(elapsed)
	deltaA := new(uint256.Int).Sub(newer.PriceACumulative, older.PriceACumulative)
	deltaB := new(uint256.Int).Sub(newer.PriceBCumulative, older.PriceBCumulative)
	priceA = fixedpoint.RatioFromRaw(deltaA.Div(deltaA, div))
	priceB = fixedpoint.RatioFromRaw(deltaB.Div(deltaB, div))
	return priceA, priceB, nil
}
