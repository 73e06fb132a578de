// Package sim replays a JSONL scenario script against a pool registry,
// funding accounts, advancing a deterministic clock, and applying pool
// operations in order.
package sim

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"poolengine/internal/pool"
	"poolengine/internal/vault"
)

// noDeadline substitutes for an absent deadline field.
const noDeadline = ^uint64(0)

// Summary counts the outcome of a script run. Ops that fail with a ledger
// error are recorded and the run continues: scripts may provoke failures on
// purpose.
type Summary struct {
	Applied int
	Failed  int
}

// Runner applies scenario ops to a registry.
type Runner struct {
	registry *pool.Registry
	vault    *vault.Vault
	clock    *StepClock
	log      *zap.Logger
}

func NewRunner(registry *pool.Registry, v *vault.Vault, clock *StepClock, log *zap.Logger) *Runner {
	return &Runner{registry: registry, vault: v, clock: clock, log: log}
}

// RunScript reads ops from a JSONL file and applies them in order.
func (r *Runner) RunScript(ctx context.Context, path string) (Summary, error) {
	file, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open script: %w", err)
	}
	defer file.Close()

	var summary Summary
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var op Op
		if err := json.Unmarshal(raw, &op); err != nil {
			return summary, fmt.Errorf("script line %d: %w", line, err)
		}

		if err := r.apply(ctx, op); err != nil {
			summary.Failed++
			r.log.Warn("op failed",
				zap.Int("line", line),
				zap.String("op", op.Kind),
				zap.Error(err),
			)
			continue
		}
		summary.Applied++
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("read script: %w", err)
	}

	return summary, nil
}

func (r *Runner) apply(ctx context.Context, op Op) error {
	deadline := op.Deadline
	if deadline == 0 {
		deadline = noDeadline
	}

	switch op.Kind {
	case OpFund:
		amount, err := parseAmount(op.Amount)
		if err != nil {
			return err
		}
		return r.vault.Mint(op.Account, op.Asset, amount)

	case OpAdvance:
		r.clock.Advance(op.Seconds)
		return nil

	case OpCreatePool:
		_, err := r.registry.CreatePool(op.AssetA, op.AssetB)
		return err

	case OpApproveBorrower:
		return r.registry.ApproveFlashBorrower(op.AssetA, op.AssetB, op.Borrower)

	case OpAddLiquidity:
		aDesired, err := parseAmount(op.AmountADesired)
		if err != nil {
			return err
		}
		bDesired, err := parseAmount(op.AmountBDesired)
		if err != nil {
			return err
		}
		aMin, err := parseAmount(op.AmountAMin)
		if err != nil {
			return err
		}
		bMin, err := parseAmount(op.AmountBMin)
		if err != nil {
			return err
		}
		_, err = r.registry.AddLiquidity(op.Actor, op.AssetA, op.AssetB, aDesired, bDesired, aMin, bMin, deadline)
		return err

	case OpRemoveLiquidity:
		shares, err := parseAmount(op.Shares)
		if err != nil {
			return err
		}
		aMin, err := parseAmount(op.AmountAMin)
		if err != nil {
			return err
		}
		bMin, err := parseAmount(op.AmountBMin)
		if err != nil {
			return err
		}
		_, err = r.registry.RemoveLiquidity(op.Actor, op.AssetA, op.AssetB, shares, aMin, bMin, deadline)
		return err

	case OpSwap:
		amountIn, err := parseAmount(op.AmountIn)
		if err != nil {
			return err
		}
		minOut, err := parseAmount(op.MinAmountOut)
		if err != nil {
			return err
		}
		assetOut := op.AssetB
		if op.AssetIn == op.AssetB {
			assetOut = op.AssetA
		}
		_, err = r.registry.Swap(op.Actor, op.AssetIn, assetOut, amountIn, minOut, deadline)
		return err

	case OpFlashLoan:
		amount, err := parseAmount(op.Amount)
		if err != nil {
			return err
		}
		repay := true
		if op.Repay != nil {
			repay = *op.Repay
		}
		borrower := NewScriptedBorrower(op.Borrower, r.vault, repay)
		return r.registry.FlashLoan(ctx, op.AssetA, op.AssetB, borrower, op.Asset, amount, nil)

	default:
		return fmt.Errorf("unknown op %q", op.Kind)
	}
}

func parseAmount(value string) (*uint256.Int, error) {
	if value == "" {
		return uint256.NewInt(0), nil
	}
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount, nil
}
