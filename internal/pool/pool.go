// Package pool implements the pooled-liquidity accounting engine: per-pair
// ledgers of reserves and proportional-ownership shares, the registry that
// owns them, and the flash-loan coordinator. Each ledger guards its state
// with a non-blocking reentrancy lock and emits one structured record per
// successful mutating operation.
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"poolengine/internal/event"
	"poolengine/internal/fixedpoint"
	"poolengine/internal/model"
	"poolengine/internal/vault"
)

// shareSink is the unredeemable owner of the minimum locked shares.
var shareSink = common.Address{}

// Pool is the ledger for one canonical asset pair. It exclusively owns its
// reserves, share supply, and price accumulators; every mutating operation
// holds the pool's operation lock for its full duration and either commits
// all of its state changes or none of them.
//
// Two levels of synchronization: `locked` is the non-blocking reentrancy
// guard held across an entire operation, including any borrower callback.
// `mu` serializes field access so read accessors stay consistent while an
// operation is in flight. A mutating operation acquires `locked` first and
// takes `mu` only around its reads and its final commit, never across the
// callback.
type Pool struct {
	key     PairKey
	account common.Address
	params  Params

	vault *vault.Vault
	clock Clock
	sink  event.Sink
	log   *zap.Logger

	locked atomic.Bool
	mu     sync.RWMutex

	reserveA    uint256.Int
	reserveB    uint256.Int
	shareSupply uint256.Int
	shares      map[common.Address]*uint256.Int

	priceACumulative    uint256.Int
	priceBCumulative    uint256.Int
	lastUpdateTimestamp uint64

	approvedBorrowers map[common.Address]struct{}
}

// newPool is registry-only: the registry is the sole creator of pools.
func newPool(key PairKey, params Params, v *vault.Vault, clock Clock, sink event.Sink, log *zap.Logger) *Pool {
	return &Pool{
		key:               key,
		account:           key.Address(),
		params:            params,
		vault:             v,
		clock:             clock,
		sink:              sink,
		log:               log,
		shares:            make(map[common.Address]*uint256.Int),
		approvedBorrowers: make(map[common.Address]struct{}),
	}
}

// Key returns the pool's canonical pair.
func (p *Pool) Key() PairKey {
	return p.key
}

// Account returns the pool's vault account.
func (p *Pool) Account() common.Address {
	return p.account
}

// Reserves returns a copy of the current reserves in canonical order.
func (p *Pool) Reserves() (reserveA, reserveB *uint256.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(uint256.Int).Set(&p.reserveA), new(uint256.Int).Set(&p.reserveB)
}

// ShareSupply returns the total outstanding shares.
func (p *Pool) ShareSupply() *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(uint256.Int).Set(&p.shareSupply)
}

// SharesOf returns owner's share balance.
func (p *Pool) SharesOf(owner common.Address) *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if bal, ok := p.shares[owner]; ok {
		return new(uint256.Int).Set(bal)
	}
	return uint256.NewInt(0)
}

// Cumulatives returns the price accumulators and the timestamp of their last
// update. PriceA is the cumulative of reserveB/reserveA and vice versa, in
// raw UQ112x112-times-seconds units.
func (p *Pool) Cumulatives() (priceA, priceB *uint256.Int, lastUpdate uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(uint256.Int).Set(&p.priceACumulative),
		new(uint256.Int).Set(&p.priceBCumulative),
		p.lastUpdateTimestamp
}

// ApproveFlashBorrower allow-lists a borrower identity for flash loans.
func (p *Pool) ApproveFlashBorrower(borrower common.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.approvedBorrowers[borrower] = struct{}{}
}

// RevokeFlashBorrower removes a borrower from the allow-list.
func (p *Pool) RevokeFlashBorrower(borrower common.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.approvedBorrowers, borrower)
}

func (p *Pool) isApprovedBorrower(borrower common.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.approvedBorrowers[borrower]
	return ok
}

// acquire takes the pool's non-blocking operation lock. A pool that is
// already mid-operation rejects the caller instead of queueing, so a
// borrower callback can never re-enter the ledger it was loaned from.
func (p *Pool) acquire() error {
	if !p.locked.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

func (p *Pool) release() {
	p.locked.Store(false)
}

// updateCumulatives integrates the instantaneous cross-price over the time
// elapsed since the last update. Called with mu held for writing, before
// reserves change, so the accumulators always reflect pre-operation
// reserves. At most one update happens per distinct timestamp. A ratio too
// wide to encode leaves that side's accumulator unchanged and logs the skip;
// the operation itself proceeds.
func (p *Pool) updateCumulatives(now uint64) {
	if now <= p.lastUpdateTimestamp {
		return
	}
	elapsed := now - p.lastUpdateTimestamp
	if p.lastUpdateTimestamp != 0 && !p.reserveA.IsZero() && !p.reserveB.IsZero() {
		if ratioA, err := fixedpoint.EncodeRatio(&p.reserveB, &p.reserveA); err == nil {
			p.priceACumulative.Add(&p.priceACumulative, ratioA.MulElapsed(elapsed))
		} else {
			p.log.Warn("price accumulator update skipped",
				zap.String("pair", p.key.String()), zap.String("side", "a"), zap.Error(err))
		}
		if ratioB, err := fixedpoint.EncodeRatio(&p.reserveA, &p.reserveB); err == nil {
			p.priceBCumulative.Add(&p.priceBCumulative, ratioB.MulElapsed(elapsed))
		} else {
			p.log.Warn("price accumulator update skipped",
				zap.String("pair", p.key.String()), zap.String("side", "b"), zap.Error(err))
		}
	}
	p.lastUpdateTimestamp = now
}

// mintShares credits owner with amount shares and grows the supply.
// Caller holds mu for writing and has validated overflow.
func (p *Pool) mintShares(owner common.Address, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	bal, ok := p.shares[owner]
	if !ok {
		bal = uint256.NewInt(0)
		p.shares[owner] = bal
	}
	bal.Add(bal, amount)
	p.shareSupply.Add(&p.shareSupply, amount)
}

// burnShares debits owner by amount shares and shrinks the supply. The
// position disappears when its balance reaches zero. Caller holds mu for
// writing and has checked the balance.
func (p *Pool) burnShares(owner common.Address, amount *uint256.Int) {
	bal := p.shares[owner]
	bal.Sub(bal, amount)
	if bal.IsZero() {
		delete(p.shares, owner)
	}
	p.shareSupply.Sub(&p.shareSupply, amount)
}

// emit hands a completed operation record to the sink and logs it. Sink
// failures are logged and dropped: emitted records are informational and
// never gate ledger correctness. Caller holds mu or has exclusive access.
func (p *Pool) emit(ev model.PoolEvent) {
	ev.Pair = p.key.String()
	ev.AssetA = p.key.AssetA.Hex()
	ev.AssetB = p.key.AssetB.Hex()
	ev.ReserveA = p.reserveA.Dec()
	ev.ReserveB = p.reserveB.Dec()
	ev.ShareSupply = p.shareSupply.Dec()
	if err := p.sink.Append(ev); err != nil {
		p.log.Warn("event sink append failed", zap.String("pair", ev.Pair), zap.Error(err))
		return
	}
	p.log.Debug("pool event",
		zap.String("kind", ev.Kind),
		zap.String("pair", ev.Pair),
		zap.String("actor", ev.Actor),
	)
}

// checkDeadline enforces the caller-supplied cutoff once, at operation start.
func checkDeadline(now, deadline uint64) error {
	if now > deadline {
		return ErrDeadlineExpired
	}
	return nil
}
