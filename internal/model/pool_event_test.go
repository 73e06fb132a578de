package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPoolEventJSON(t *testing.T) {
	ev := PoolEvent{
		Kind:        EventSwap,
		Pair:        "0x01/0x02",
		AssetA:      "0x01",
		AssetB:      "0x02",
		Actor:       "0xa2",
		AssetIn:     "0x01",
		AmountIn:    "1000",
		AmountOut:   "906",
		Fee:         "3",
		ReserveA:    "11000",
		ReserveB:    "9094",
		ShareSupply: "10000",
		Timestamp:   42,
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, field := range []string{`"kind":"swap"`, `"amount_in":"1000"`, `"amount_out":"906"`, `"reserve_a":"11000"`, `"timestamp":42` } {
		if !strings.Contains(string(raw), field) {
			t.Fatalf("marshaled event missing %s: %s", field, raw)
		}
	}
	// Liquidity-only fields stay out of swap records.
	if strings.Contains(string(raw), "amount_a") || strings.Contains(string(raw), "shares") {
		t.Fatalf("empty optional fields should be omitted: %s", raw)
	}

	var back PoolEvent
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != ev {
		t.Fatalf("round trip mismatch: %+v != %+v", back, ev)
	}
}
