package pool

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"poolengine/internal/event"
	"poolengine/internal/fixedpoint"
	"poolengine/internal/vault"
)

func TestCumulativesAdvance(t *testing.T) {
	f := newFixture(t)
	p := f.bootstrapXY(10_000, 20_000)

	// First operation after ten time units accumulates the pre-operation
	// price over the elapsed window.
	f.now = 11
	f.fund(trader, assetX, 1_000)
	if _, err := p.Swap(trader, assetX, uint256.NewInt(1_000), uint256.NewInt(0), farFuture); err != nil {
		t.Fatalf("swap: %v", err)
	}

	priceA, priceB, last := p.Cumulatives()
	if last != 11 {
		t.Fatalf("last update = %d, want 11", last)
	}
	// reserveB/reserveA = 2, over 10 units.
	wantA := new(uint256.Int).Lsh(uint256.NewInt(20), 112)
	if !priceA.Eq(wantA) {
		t.Fatalf("priceA cumulative = %s, want %s", priceA.Dec(), wantA.Dec())
	}
	// reserveA/reserveB = 1/2, over 10 units.
	wantB := new(uint256.Int).Lsh(uint256.NewInt(5), 112)
	if !priceB.Eq(wantB) {
		t.Fatalf("priceB cumulative = %s, want %s", priceB.Dec(), wantB.Dec())
	}
}

func TestCumulativesSameTimestampOnce(t *testing.T) {
	f := newFixture(t)
	p := f.bootstrapXY(10_000, 10_000)

	f.now = 5
	f.fund(trader, assetX, 2_000)
	if _, err := p.Swap(trader, assetX, uint256.NewInt(1_000), uint256.NewInt(0), farFuture); err != nil {
		t.Fatalf("swap: %v", err)
	}
	priceA1, _, _ := p.Cumulatives()

	// A second operation at the same timestamp must not accumulate again.
	if _, err := p.Swap(trader, assetX, uint256.NewInt(1_000), uint256.NewInt(0), farFuture); err != nil {
		t.Fatalf("swap: %v", err)
	}
	priceA2, _, last := p.Cumulatives()
	if !priceA2.Eq(priceA1) {
		t.Fatalf("accumulator moved within one timestamp: %s -> %s", priceA1.Dec(), priceA2.Dec())
	}
	if last != 5 {
		t.Fatalf("last update = %d, want 5", last)
	}
}

func TestTWAP(t *testing.T) {
	f := newFixture(t)
	p := f.bootstrapXY(10_000, 20_000)
	older := p.Sample()

	f.now = 11
	f.fund(trader, assetX, 1_000)
	if _, err := p.Swap(trader, assetX, uint256.NewInt(1_000), uint256.NewInt(0), farFuture); err != nil {
		t.Fatalf("swap: %v", err)
	}
	newer := p.Sample()

	priceA, priceB, err := TWAP(older, newer, 5)
	if err != nil {
		t.Fatalf("twap: %v", err)
	}
	wantA, _ := fixedpoint.EncodeRatio(uint256.NewInt(2), uint256.NewInt(1))
	if !priceA.Raw().Eq(wantA.Raw()) {
		t.Fatalf("twap priceA = %s, want %s", priceA.Raw().Dec(), wantA.Raw().Dec())
	}
	wantB, _ := fixedpoint.EncodeRatio(uint256.NewInt(1), uint256.NewInt(2))
	if !priceB.Raw().Eq(wantB.Raw()) {
		t.Fatalf("twap priceB = %s, want %s", priceB.Raw().Dec(), wantB.Raw().Dec())
	}
}

func TestCumulativesSkipIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	v := vault.New()
	now := uint64(1)
	registry, err := NewRegistry(RegistryConfig{
		Vault:  v,
		Clock:  func() uint64 { return now },
		Sink:   event.NewMemory(),
		Logger: zap.New(core),
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	p, err := registry.CreatePool(assetX, assetY)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}

	// reserveA/reserveB is too wide for the accumulator's 144-bit numerator
	// limit; reserveB/reserveA still fits.
	bigA := new(uint256.Int).Lsh(uint256.NewInt(1), 145)
	bigB := new(uint256.Int).Lsh(uint256.NewInt(1), 100)
	if err := v.Mint(lp, assetX, bigA); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := v.Mint(lp, assetY, bigB); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := p.AddLiquidity(lp, bigA, bigB, uint256.NewInt(0), uint256.NewInt(0), farFuture); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	now = 11
	if err := v.Mint(trader, assetX, uint256.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := p.Swap(trader, assetX, uint256.NewInt(1_000), uint256.NewInt(0), farFuture); err != nil {
		t.Fatalf("swap: %v", err)
	}

	priceA, priceB, last := p.Cumulatives()
	if last != 11 {
		t.Fatalf("last update = %d, want 11", last)
	}
	if priceA.IsZero() {
		t.Fatalf("priceA cumulative should have advanced")
	}
	if !priceB.IsZero() {
		t.Fatalf("priceB cumulative = %s, want frozen at 0", priceB.Dec())
	}
	if got := logs.FilterMessage("price accumulator update skipped").Len(); got != 1 {
		t.Fatalf("skip log entries = %d, want 1", got)
	}
}

func TestTWAPWindowTooShort(t *testing.T) {
	older := TWAPSample{PriceACumulative: uint256.NewInt(0), PriceBCumulative: uint256.NewInt(0), Timestamp: 10}
	newer := TWAPSample{PriceACumulative: uint256.NewInt(1), PriceBCumulative: uint256.NewInt(1), Timestamp: 13}

	if _, _, err := TWAP(older, newer, 5); !errors.Is(err, ErrWindowTooShort) {
		t.Fatalf("expected window too short, got %v", err)
	}
	if _, _, err := TWAP(newer, older, 1); !errors.Is(err, ErrWindowTooShort) {
		t.Fatalf("expected error for out-of-order samples, got %v", err)
	}
	if _, _, err := TWAP(older, older, 0); !errors.Is(err, ErrWindowTooShort) {
		t.Fatalf("expected error for identical timestamps, got %v", err)
	}
}
