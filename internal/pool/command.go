package pool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Command ops dispatchable through the call forwarder.
const (
	OpCreatePool      = "create_pool"
	OpAddLiquidity    = "add_liquidity"
	OpRemoveLiquidity = "remove_liquidity"
	OpSwap            = "swap"
)

// Command is the JSON payload for a forwarded pool operation. Amounts are
// decimal strings; absent amounts are treated as zero.
type Command struct {
	Op             string         `json:"op"`
	AssetA         common.Address `json:"asset_a"`
	AssetB         common.Address `json:"asset_b"`
	AssetIn        common.Address `json:"asset_in,omitempty"`
	AmountADesired string         `json:"amount_a_desired,omitempty"`
	AmountBDesired string         `json:"amount_b_desired,omitempty"`
	AmountAMin     string         `json:"amount_a_min,omitempty"`
	AmountBMin     string         `json:"amount_b_min,omitempty"`
	AmountIn       string         `json:"amount_in,omitempty"`
	MinAmountOut   string         `json:"min_amount_out,omitempty"`
	Shares         string         `json:"shares,omitempty"`
	Deadline       uint64         `json:"deadline,omitempty"`
}

// CommandResult is the JSON reply for a forwarded pool operation.
type CommandResult struct {
	Pair      string `json:"pair,omitempty"`
	AmountA   string `json:"amount_a,omitempty"`
	AmountB   string `json:"amount_b,omitempty"`
	Shares    string `json:"shares,omitempty"`
	AmountOut string `json:"amount_out,omitempty"`
}

// CommandHandler adapts the registry to the forwarder's dispatch shape: a
// verified sender plus an opaque payload. The forwarder has already
// authenticated the sender, so the handler treats it as the direct actor.
type CommandHandler struct {
	registry *Registry
}

func NewCommandHandler(r *Registry) *CommandHandler {
	return &CommandHandler{registry: r}
}

// HandleCall decodes and executes one pool command on behalf of sender.
func (h *CommandHandler) HandleCall(ctx context.Context, sender common.Address, data []byte) ([]byte, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("pool: decode command: %w", err)
	}

	switch cmd.Op {
	case OpCreatePool:
		p, err := h.registry.CreatePool(cmd.AssetA, cmd.AssetB)
		if err != nil {
			return nil, err
		}
		return marshalResult(CommandResult{Pair: p.Key().String()})

	case OpAddLiquidity:
		amounts, err := parseAmounts(cmd.AmountADesired, cmd.AmountBDesired, cmd.AmountAMin, cmd.AmountBMin)
		if err != nil {
			return nil, err
		}
		res, err := h.registry.AddLiquidity(sender, cmd.AssetA, cmd.AssetB,
			amounts[0], amounts[1], amounts[2], amounts[3], cmd.Deadline)
		if err != nil {
			return nil, err
		}
		return marshalResult(CommandResult{
			AmountA: res.AmountA.Dec(),
			AmountB: res.AmountB.Dec(),
			Shares:  res.Shares.Dec(),
		})

	case OpRemoveLiquidity:
		amounts, err := parseAmounts(cmd.Shares, cmd.AmountAMin, cmd.AmountBMin)
		if err != nil {
			return nil, err
		}
		res, err := h.registry.RemoveLiquidity(sender, cmd.AssetA, cmd.AssetB,
			amounts[0], amounts[1], amounts[2], cmd.Deadline)
		if err != nil {
			return nil, err
		}
		return marshalResult(CommandResult{
			AmountA: res.AmountA.Dec(),
			AmountB: res.AmountB.Dec(),
			Shares:  res.Shares.Dec(),
		})

	case OpSwap:
		amounts, err := parseAmounts(cmd.AmountIn, cmd.MinAmountOut)
		if err != nil {
			return nil, err
		}
		p, err := h.registry.Pool(cmd.AssetA, cmd.AssetB)
		if err != nil {
			return nil, err
		}
		out, err := p.Swap(sender, cmd.AssetIn, amounts[0], amounts[1], cmd.Deadline)
		if err != nil {
			return nil, err
		}
		return marshalResult(CommandResult{AmountOut: out.Dec()})

	default:
		return nil, fmt.Errorf("pool: unknown command op %q", cmd.Op)
	}
}

func marshalResult(res CommandResult) ([]byte, error) {
	out, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("pool: encode result: %w", err)
	}
	return out, nil
}

// parseAmounts decodes decimal-string amounts, treating empty as zero.
func parseAmounts(values ...string) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(values))
	for i, value := range values {
		if value == "" {
			out[i] = uint256.NewInt(0)
			continue
		}
		parsed, err := uint256.FromDecimal(value)
		if err != nil {
			return nil, fmt.Errorf("pool: invalid amount %q: %w", value, err)
		}
		out[i] = parsed
	}
	return out, nil
}
