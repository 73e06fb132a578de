// Package stats aggregates emitted pool events into per-pair activity
// metrics: swap volume and fees per side, operation counts, and the latest
// reserve state.
package stats

import (
	"fmt"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"poolengine/internal/model"
)

// PairStats holds aggregate values for one pair.
type PairStats struct {
	Pair string

	Swaps      uint64
	FlashLoans uint64
	Deposits   uint64
	Withdraws  uint64

	// Swap volume and fees, attributed to the input side.
	VolumeA *uint256.Int
	VolumeB *uint256.Int
	FeesA   *uint256.Int
	FeesB   *uint256.Int

	ReserveA      string
	ReserveB      string
	ShareSupply   string
	LastTimestamp uint64
}

func newPairStats(pair string) *PairStats {
	return &PairStats{
		Pair:    pair,
		VolumeA: uint256.NewInt(0),
		VolumeB: uint256.NewInt(0),
		FeesA:   uint256.NewInt(0),
		FeesB:   uint256.NewInt(0),
	}
}

// Collector accumulates pool events into per-pair stats. It satisfies
// event.Sink, so it can ride the same fan-out as the persistent sinks.
type Collector struct {
	mu    sync.Mutex
	pairs map[string]*PairStats
}

func NewCollector() *Collector {
	return &Collector{pairs: make(map[string]*PairStats)}
}

// Append folds one event into its pair's stats.
func (c *Collector) Append(ev model.PoolEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ps, ok := c.pairs[ev.Pair]
	if !ok {
		ps = newPairStats(ev.Pair)
		c.pairs[ev.Pair] = ps
	}

	ps.ReserveA = ev.ReserveA
	ps.ReserveB = ev.ReserveB
	ps.ShareSupply = ev.ShareSupply
	if ev.Timestamp > ps.LastTimestamp {
		ps.LastTimestamp = ev.Timestamp
	}

	switch ev.Kind {
	case model.EventSwap:
		ps.Swaps++
		return ps.applyFlow(ev)
	case model.EventFlashLoan:
		ps.FlashLoans++
		return ps.applyFlow(ev)
	case model.EventAddLiquidity:
		ps.Deposits++
	case model.EventRemoveLiquidity:
		ps.Withdraws++
	}
	return nil
}

// applyFlow attributes an input amount and fee to the side named by AssetIn.
func (ps *PairStats) applyFlow(ev model.PoolEvent) error {
	amountIn, err := parseAmount(ev.AmountIn)
	if err != nil {
		return fmt.Errorf("stats: %s amount_in: %w", ev.Pair, err)
	}
	fee, err := parseAmount(ev.Fee)
	if err != nil {
		return fmt.Errorf("stats: %s fee: %w", ev.Pair, err)
	}

	if ev.AssetIn == ev.AssetA {
		ps.VolumeA.Add(ps.VolumeA, amountIn)
		ps.FeesA.Add(ps.FeesA, fee)
	} else {
		ps.VolumeB.Add(ps.VolumeB, amountIn)
		ps.FeesB.Add(ps.FeesB, fee)
	}
	return nil
}

// Snapshot returns a deep copy of every pair's stats, sorted by pair.
func (c *Collector) Snapshot() []PairStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]PairStats, 0, len(c.pairs))
	for _, ps := range c.pairs {
		cp := *ps
		cp.VolumeA = new(uint256.Int).Set(ps.VolumeA)
		cp.VolumeB = new(uint256.Int).Set(ps.VolumeB)
		cp.FeesA = new(uint256.Int).Set(ps.FeesA)
		cp.FeesB = new(uint256.Int).Set(ps.FeesB)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair < out[j].Pair })
	return out
}

func parseAmount(value string) (*uint256.Int, error) {
	if value == "" {
		return uint256.NewInt(0), nil
	}
	parsed, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return parsed, nil
}
