package pool

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolengine/internal/model"
)

// callbackBorrower drives a flash-loan callback from a test-supplied func.
type callbackBorrower struct {
	addr common.Address
	fn   func(ctx context.Context, pair PairKey, asset common.Address, amount, fee *uint256.Int) error
}

func (b *callbackBorrower) Address() common.Address { return b.addr }

func (b *callbackBorrower) OnFlashLoan(ctx context.Context, pair PairKey, asset common.Address, amount, fee *uint256.Int, _ []byte) error {
	return b.fn(ctx, pair, asset, amount, fee)
}

// repayAll moves principal plus fee back to the pool.
func (f *fixture) repayAll(pair PairKey) func(context.Context, PairKey, common.Address, *uint256.Int, *uint256.Int) error {
	return func(_ context.Context, _ PairKey, asset common.Address, amount, fee *uint256.Int) error {
		repayment := new(uint256.Int).Add(amount, fee)
		return f.vault.Transfer(borrower, pair.Address(), asset, repayment)
	}
}

func TestFlashLoanRepaid(t *testing.T) {
	f := newFixture(t)
	p := f.bootstrapXY(100_000, 100_000)
	p.ApproveFlashBorrower(borrower)
	f.fund(borrower, assetX, 5) // fee for a 10_000 loan at 5 bps

	b := &callbackBorrower{addr: borrower, fn: f.repayAll(p.Key())}
	if err := p.FlashLoan(context.Background(), b, assetX, uint256.NewInt(10_000), nil); err != nil {
		t.Fatalf("flash loan: %v", err)
	}

	reserveA, reserveB := p.Reserves()
	if !reserveA.Eq(uint256.NewInt(100_005)) {
		t.Fatalf("reserveA = %s, want 100005 (fee retained)", reserveA.Dec())
	}
	if !reserveB.Eq(uint256.NewInt(100_000)) {
		t.Fatalf("reserveB = %s, want unchanged 100000", reserveB.Dec())
	}
	if got := f.vault.BalanceOf(p.Account(), assetX); !got.Eq(uint256.NewInt(100_005)) {
		t.Fatalf("pool vault balance = %s, want 100005", got.Dec())
	}
	if got := f.vault.BalanceOf(borrower, assetX); !got.IsZero() {
		t.Fatalf("borrower balance = %s, want 0", got.Dec())
	}

	events := f.sink.Events()
	last := events[len(events)-1]
	if last.Kind != model.EventFlashLoan || last.AmountIn != "10000" || last.Fee != "5" {
		t.Fatalf("flash loan event payload wrong: %+v", last)
	}
}

func TestFlashLoanNotRepaid(t *testing.T) {
	f := newFixture(t)
	p := f.bootstrapXY(100_000, 100_000)
	p.ApproveFlashBorrower(borrower)
	f.fund(borrower, assetX, 5)

	keep := &callbackBorrower{addr: borrower, fn: func(context.Context, PairKey, common.Address, *uint256.Int, *uint256.Int) error {
		return nil
	}}
	err := p.FlashLoan(context.Background(), keep, assetX, uint256.NewInt(10_000), nil)
	if !errors.Is(err, ErrLoanNotRepaid) {
		t.Fatalf("expected loan not repaid, got %v", err)
	}

	reserveA, _ := p.Reserves()
	if !reserveA.Eq(uint256.NewInt(100_000)) {
		t.Fatalf("reserveA = %s, want pre-loan 100000", reserveA.Dec())
	}
	if got := f.vault.BalanceOf(p.Account(), assetX); !got.Eq(uint256.NewInt(100_000)) {
		t.Fatalf("pool vault balance = %s, want restored 100000", got.Dec())
	}
	if got := f.vault.BalanceOf(borrower, assetX); !got.Eq(uint256.NewInt(5)) {
		t.Fatalf("borrower balance = %s, want restored 5", got.Dec())
	}

	for _, ev := range f.sink.Events() {
		if ev.Kind == model.EventFlashLoan {
			t.Fatalf("failed flash loan must not emit an event")
		}
	}
}

func TestFlashLoanPartialRepayment(t *testing.T) {
	f := newFixture(t)
	p := f.bootstrapXY(100_000, 100_000)
	p.ApproveFlashBorrower(borrower)

	// Returns the principal but not the fee.
	principalOnly := &callbackBorrower{addr: borrower, fn: func(_ context.Context, pair PairKey, asset common.Address, amount, _ *uint256.Int) error {
		return f.vault.Transfer(borrower, pair.Address(), asset, amount)
	}}
	err := p.FlashLoan(context.Background(), principalOnly, assetX, uint256.NewInt(10_000), nil)
	if !errors.Is(err, ErrLoanNotRepaid) {
		t.Fatalf("expected loan not repaid, got %v", err)
	}
	if got := f.vault.BalanceOf(p.Account(), assetX); !got.Eq(uint256.NewInt(100_000)) {
		t.Fatalf("pool vault balance = %s, want restored 100000", got.Dec())
	}
}

func TestFlashLoanCallbackError(t *testing.T) {
	f := newFixture(t)
	p := f.bootstrapXY(100_000, 100_000)
	p.ApproveFlashBorrower(borrower)

	boom := errors.New("boom")
	failing := &callbackBorrower{addr: borrower, fn: func(context.Context, PairKey, common.Address, *uint256.Int, *uint256.Int) error {
		return boom
	}}
	err := p.FlashLoan(context.Background(), failing, assetX, uint256.NewInt(10_000), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("callback error should propagate, got %v", err)
	}
	if got := f.vault.BalanceOf(p.Account(), assetX); !got.Eq(uint256.NewInt(100_000)) {
		t.Fatalf("pool vault balance = %s, want restored 100000", got.Dec())
	}
	if got := f.vault.BalanceOf(borrower, assetX); !got.IsZero() {
		t.Fatalf("borrower balance = %s, want restored 0", got.Dec())
	}
}

func TestFlashLoanTooLarge(t *testing.T) {
	f := newFixture(t)
	p := f.bootstrapXY(100_000, 100_000)
	p.ApproveFlashBorrower(borrower)

	// Cap is 10% of the 100_000 reserve.
	b := &callbackBorrower{addr: borrower, fn: f.repayAll(p.Key())}
	err := p.FlashLoan(context.Background(), b, assetX, uint256.NewInt(15_000), nil)
	if !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected amount too large, got %v", err)
	}

	if err := p.FlashLoan(context.Background(), b, assetX, uint256.NewInt(10_001), nil); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected amount too large just above cap, got %v", err)
	}
}

func TestFlashLoanNotApproved(t *testing.T) {
	f := newFixture(t)
	p := f.bootstrapXY(100_000, 100_000)

	b := &callbackBorrower{addr: borrower, fn: f.repayAll(p.Key())}
	err := p.FlashLoan(context.Background(), b, assetX, uint256.NewInt(1_000), nil)
	if !errors.Is(err, ErrBorrowerNotApproved) {
		t.Fatalf("expected borrower not approved, got %v", err)
	}
}

func TestFlashLoanInvalidAsset(t *testing.T) {
	f := newFixture(t)
	p := f.bootstrapXY(100_000, 100_000)
	p.ApproveFlashBorrower(borrower)

	b := &callbackBorrower{addr: borrower, fn: f.repayAll(p.Key())}
	err := p.FlashLoan(context.Background(), b, assetZ, uint256.NewInt(1_000), nil)
	if !errors.Is(err, ErrInvalidAsset) {
		t.Fatalf("expected invalid asset, got %v", err)
	}
}

func TestFlashLoanReentrancyBlocked(t *testing.T) {
	f := newFixture(t)
	p := f.bootstrapXY(100_000, 100_000)
	p.ApproveFlashBorrower(borrower)
	f.fund(borrower, assetX, 5)

	reenter := &callbackBorrower{addr: borrower, fn: func(_ context.Context, pair PairKey, asset common.Address, amount, fee *uint256.Int) error {
		// The lending pool is mid-operation; its lock must reject this.
		if _, err := p.Swap(borrower, asset, uint256.NewInt(100), uint256.NewInt(0), farFuture); err != nil {
			return err
		}
		return nil
	}}
	err := p.FlashLoan(context.Background(), reenter, assetX, uint256.NewInt(10_000), nil)
	if !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("expected reentrant call, got %v", err)
	}

	if got := f.vault.BalanceOf(p.Account(), assetX); !got.Eq(uint256.NewInt(100_000)) {
		t.Fatalf("pool vault balance = %s, want restored 100000", got.Dec())
	}
}

func TestFlashLoanRollbackSparesOtherPools(t *testing.T) {
	f := newFixture(t)
	p1 := f.bootstrapXY(100_000, 100_000)
	p1.ApproveFlashBorrower(borrower)

	p2 := f.createPool(assetY, assetZ)
	f.fund(lp, assetY, 50_000)
	f.fund(lp, assetZ, 50_000)
	if _, err := p2.AddLiquidity(lp, uint256.NewInt(50_000), uint256.NewInt(50_000), uint256.NewInt(0), uint256.NewInt(0), farFuture); err != nil {
		t.Fatalf("bootstrap second pool: %v", err)
	}

	f.fund(trader, assetY, 1_000)

	// A swap on the independent pool commits while the loan is in flight;
	// the loan is never repaid, so the lender rolls back. The rollback must
	// not unwind the other pool's committed trade.
	started := make(chan struct{})
	done := make(chan struct{})
	var swapErr error
	go func() {
		defer close(done)
		<-started
		_, swapErr = p2.Swap(trader, assetY, uint256.NewInt(1_000), uint256.NewInt(0), farFuture)
	}()

	keep := &callbackBorrower{addr: borrower, fn: func(context.Context, PairKey, common.Address, *uint256.Int, *uint256.Int) error {
		close(started)
		<-done
		return nil
	}}
	err := p1.FlashLoan(context.Background(), keep, assetX, uint256.NewInt(10_000), nil)
	if !errors.Is(err, ErrLoanNotRepaid) {
		t.Fatalf("expected loan not repaid, got %v", err)
	}
	if swapErr != nil {
		t.Fatalf("concurrent swap: %v", swapErr)
	}

	// Lending pool is fully restored.
	if got := f.vault.BalanceOf(p1.Account(), assetX); !got.Eq(uint256.NewInt(100_000)) {
		t.Fatalf("pool1 vault balance = %s, want restored 100000", got.Dec())
	}
	if got := f.vault.BalanceOf(borrower, assetX); !got.IsZero() {
		t.Fatalf("borrower balance = %s, want restored 0", got.Dec())
	}

	// The other pool's ledger and vault account stay in step.
	reserveY, reserveZ := p2.Reserves()
	if !reserveY.Eq(uint256.NewInt(51_000)) || !reserveZ.Eq(uint256.NewInt(49_023)) {
		t.Fatalf("pool2 reserves = %s/%s, want 51000/49023", reserveY.Dec(), reserveZ.Dec())
	}
	if got := f.vault.BalanceOf(p2.Account(), assetY); !got.Eq(reserveY) {
		t.Fatalf("pool2 vault Y = %s, reserves say %s", got.Dec(), reserveY.Dec())
	}
	if got := f.vault.BalanceOf(p2.Account(), assetZ); !got.Eq(reserveZ) {
		t.Fatalf("pool2 vault Z = %s, reserves say %s", got.Dec(), reserveZ.Dec())
	}
	if got := f.vault.BalanceOf(trader, assetZ); !got.Eq(uint256.NewInt(977)) {
		t.Fatalf("trader Z = %s, want 977", got.Dec())
	}
}

func TestFlashLoanMayUseOtherPool(t *testing.T) {
	f := newFixture(t)
	p1 := f.bootstrapXY(100_000, 100_000)
	p1.ApproveFlashBorrower(borrower)

	// A second, independent pool the borrower trades on mid-loan.
	p2 := f.createPool(assetY, assetZ)
	f.fund(lp, assetY, 50_000)
	f.fund(lp, assetZ, 50_000)
	if _, err := p2.AddLiquidity(lp, uint256.NewInt(50_000), uint256.NewInt(50_000), uint256.NewInt(0), uint256.NewInt(0), farFuture); err != nil {
		t.Fatalf("bootstrap second pool: %v", err)
	}

	f.fund(borrower, assetX, 5)
	f.fund(borrower, assetY, 1_000)

	b := &callbackBorrower{addr: borrower, fn: func(ctx context.Context, pair PairKey, asset common.Address, amount, fee *uint256.Int) error {
		if _, err := p2.Swap(borrower, assetY, uint256.NewInt(1_000), uint256.NewInt(0), farFuture); err != nil {
			return err
		}
		repayment := new(uint256.Int).Add(amount, fee)
		return f.vault.Transfer(borrower, pair.Address(), asset, repayment)
	}}
	if err := p1.FlashLoan(context.Background(), b, assetX, uint256.NewInt(10_000), nil); err != nil {
		t.Fatalf("flash loan with cross-pool trade: %v", err)
	}

	reserveY, _ := p2.Reserves()
	if !reserveY.Eq(uint256.NewInt(51_000)) {
		t.Fatalf("second pool reserveY = %s, want 51000", reserveY.Dec())
	}
}
