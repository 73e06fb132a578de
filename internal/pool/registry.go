package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"poolengine/internal/event"
	"poolengine/internal/model"
	"poolengine/internal/vault"
)

// RegistryConfig carries the registry's collaborators. Vault is required;
// Clock, Sink, and Logger default to the system clock, a no-op sink, and a
// no-op logger. A zero Params is replaced by DefaultParams.
type RegistryConfig struct {
	Params Params
	Vault  *vault.Vault
	Clock  Clock
	Sink   event.Sink
	Logger *zap.Logger
}

// Registry owns the mapping from canonical asset pairs to their pool
// ledgers and is the sole creator of pools. Pools it creates are fully
// independent of one another and may operate concurrently.
type Registry struct {
	params Params
	vault  *vault.Vault
	clock  Clock
	sink   event.Sink
	log    *zap.Logger

	mu    sync.RWMutex
	pools map[PairKey]*Pool
}

// NewRegistry builds an empty registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Vault == nil {
		return nil, fmt.Errorf("pool: registry requires a vault")
	}
	if cfg.Params == (Params{}) {
		cfg.Params = DefaultParams()
	}
	if err := cfg.Params.validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Sink == nil {
		cfg.Sink = event.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Registry{
		params: cfg.Params,
		vault:  cfg.Vault,
		clock:  cfg.Clock,
		sink:   cfg.Sink,
		log:    cfg.Logger,
		pools:  make(map[PairKey]*Pool),
	}, nil
}

// CreatePool registers a new pool for the pair, which must not already
// exist. The new pool has zero reserves and zero share supply until its
// bootstrap deposit.
func (r *Registry) CreatePool(assetA, assetB common.Address) (*Pool, error) {
	key, err := NewPairKey(assetA, assetB)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, ok := r.pools[key]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPairExists, key)
	}
	p := newPool(key, r.params, r.vault, r.clock, r.sink, r.log)
	r.pools[key] = p
	r.mu.Unlock()

	r.log.Info("pool created", zap.String("pair", key.String()))
	p.emit(model.PoolEvent{
		Kind:      model.EventCreatePool,
		Timestamp: r.clock(),
	})
	return p, nil
}

// Pool resolves the pool for a pair in either asset order.
func (r *Registry) Pool(assetA, assetB common.Address) (*Pool, error) {
	key, err := NewPairKey(assetA, assetB)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	p, ok := r.pools[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPairNotFound, key)
	}
	return p, nil
}

// Pools returns every registered pool.
func (r *Registry) Pools() []*Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Pool, 0, len(r.pools))
	for _, p := range r.pools {
		out = append(out, p)
	}
	return out
}

// AddLiquidity resolves the pair's pool and deposits. Amounts are given in
// the caller's asset order and the result is returned in the same order.
func (r *Registry) AddLiquidity(actor common.Address, assetA, assetB common.Address, amountADesired, amountBDesired, amountAMin, amountBMin *uint256.Int, deadline uint64) (LiquidityResult, error) {
	p, err := r.Pool(assetA, assetB)
	if err != nil {
		return LiquidityResult{}, err
	}
	flipped := p.key.AssetA != assetA
	if flipped {
		amountADesired, amountBDesired = amountBDesired, amountADesired
		amountAMin, amountBMin = amountBMin, amountAMin
	}
	res, err := p.AddLiquidity(actor, amountADesired, amountBDesired, amountAMin, amountBMin, deadline)
	if err != nil {
		return LiquidityResult{}, err
	}
	if flipped {
		res.AmountA, res.AmountB = res.AmountB, res.AmountA
	}
	return res, nil
}

// RemoveLiquidity resolves the pair's pool and burns shares. Minimums are
// given in the caller's asset order and the result is returned in the same
// order.
func (r *Registry) RemoveLiquidity(actor common.Address, assetA, assetB common.Address, shares, amountAMin, amountBMin *uint256.Int, deadline uint64) (LiquidityResult, error) {
	p, err := r.Pool(assetA, assetB)
	if err != nil {
		return LiquidityResult{}, err
	}
	flipped := p.key.AssetA != assetA
	if flipped {
		amountAMin, amountBMin = amountBMin, amountAMin
	}
	res, err := p.RemoveLiquidity(actor, shares, amountAMin, amountBMin, deadline)
	if err != nil {
		return LiquidityResult{}, err
	}
	if flipped {
		res.AmountA, res.AmountB = res.AmountB, res.AmountA
	}
	return res, nil
}

// Swap resolves the pool holding assetIn/assetOut and trades on it.
func (r *Registry) Swap(actor common.Address, assetIn, assetOut common.Address, amountIn, minAmountOut *uint256.Int, deadline uint64) (*uint256.Int, error) {
	p, err := r.Pool(assetIn, assetOut)
	if err != nil {
		return nil, err
	}
	return p.Swap(actor, assetIn, amountIn, minAmountOut, deadline)
}

// FlashLoan resolves the pair's pool and runs the flash-loan sequence on it.
func (r *Registry) FlashLoan(ctx context.Context, assetA, assetB common.Address, borrower Borrower, asset common.Address, amount *uint256.Int, data []byte) error {
	p, err := r.Pool(assetA, assetB)
	if err != nil {
		return err
	}
	return p.FlashLoan(ctx, borrower, asset, amount, data)
}

// ApproveFlashBorrower allow-lists a borrower on the pair's pool.
func (r *Registry) ApproveFlashBorrower(assetA, assetB, borrower common.Address) error {
	p, err := r.Pool(assetA, assetB)
	if err != nil {
		return err
	}
	p.ApproveFlashBorrower(borrower)
	return nil
}
