package sim

import (
	"github.com/ethereum/go-ethereum/common"
)

// Op kinds accepted in a scenario script.
const (
	OpFund            = "fund"
	OpAdvance         = "advance"
	OpCreatePool      = "create_pool"
	OpApproveBorrower = "approve_borrower"
	OpAddLiquidity    = "add_liquidity"
	OpRemoveLiquidity = "remove_liquidity"
	OpSwap            = "swap"
	OpFlashLoan       = "flash_loan"
)

// Op is one line of a scenario script. Amounts are decimal strings; a zero
// deadline means "no deadline" and is replaced with the far future.
type Op struct {
	Kind    string         `json:"op"`
	Actor   common.Address `json:"actor,omitempty"`
	Account common.Address `json:"account,omitempty"`
	Asset   common.Address `json:"asset,omitempty"`
	AssetA  common.Address `json:"asset_a,omitempty"`
	AssetB  common.Address `json:"asset_b,omitempty"`
	AssetIn common.Address `json:"asset_in,omitempty"`

	Amount         string `json:"amount,omitempty"`
	AmountADesired string `json:"amount_a_desired,omitempty"`
	AmountBDesired string `json:"amount_b_desired,omitempty"`
	AmountAMin     string `json:"amount_a_min,omitempty"`
	AmountBMin     string `json:"amount_b_min,omitempty"`
	AmountIn       string `json:"amount_in,omitempty"`
	MinAmountOut   string `json:"min_amount_out,omitempty"`
	Shares         string `json:"shares,omitempty"`

	Borrower common.Address `json:"borrower,omitempty"`
	Repay    *bool          `json:"repay,omitempty"`

	Seconds  uint64 `json:"seconds,omitempty"`
	Deadline uint64 `json:"deadline,omitempty"`
}
