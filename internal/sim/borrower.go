package sim

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolengine/internal/pool"
	"poolengine/internal/vault"
)

// ScriptedBorrower is a flash-loan borrower driven by the scenario script:
// it either repays principal plus fee from its own vault balance or keeps
// the loan, to exercise both flash-loan outcomes.
type ScriptedBorrower struct {
	addr  common.Address
	vault *vault.Vault
	repay bool
}

func NewScriptedBorrower(addr common.Address, v *vault.Vault, repay bool) *ScriptedBorrower {
	return &ScriptedBorrower{addr: addr, vault: v, repay: repay}
}

func (b *ScriptedBorrower) Address() common.Address {
	return b.addr
}

// OnFlashLoan returns the borrowed amount plus fee to the pool when the
// script says to repay. The fee must already be in the borrower's balance.
func (b *ScriptedBorrower) OnFlashLoan(_ context.Context, pair pool.PairKey, asset common.Address, amount, fee *uint256.Int, _ []byte) error {
	if !b.repay {
		return nil
	}
	repayment := new(uint256.Int).Add(amount, fee)
	if err := b.vault.Transfer(b.addr, pair.Address(), asset, repayment); err != nil {
		return fmt.Errorf("repay flash loan: %w", err)
	}
	return nil
}
