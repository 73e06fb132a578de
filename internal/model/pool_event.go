package model

// Event kinds emitted by the pool engine, one per successful mutating operation.
const (
	EventCreatePool      = "create_pool"
	EventAddLiquidity    = "add_liquidity"
	EventRemoveLiquidity = "remove_liquidity"
	EventSwap            = "swap"
	EventFlashLoan       = "flash_loan"
)

// PoolEvent is the structured record emitted after a successful pool
// operation. Amounts are decimal strings so arbitrary-precision values
// survive JSON round trips.
type PoolEvent struct {
	Kind        string `json:"kind"`
	Pair        string `json:"pair"`
	AssetA      string `json:"asset_a"`
	AssetB      string `json:"asset_b"`
	Actor       string `json:"actor"`
	AmountA     string `json:"amount_a,omitempty"`
	AmountB     string `json:"amount_b,omitempty"`
	AssetIn     string `json:"asset_in,omitempty"`
	AmountIn    string `json:"amount_in,omitempty"`
	AmountOut   string `json:"amount_out,omitempty"`
	Shares      string `json:"shares,omitempty"`
	Fee         string `json:"fee,omitempty"`
	ReserveA    string `json:"reserve_a"`
	ReserveB    string `json:"reserve_b"`
	ShareSupply string `json:"share_supply"`
	Timestamp   uint64 `json:"timestamp"`
}
