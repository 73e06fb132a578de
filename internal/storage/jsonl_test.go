package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"poolengine/internal/model"
)

func TestJsonlPutEventBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	s := NewJsonlStorage(path)

	events := []model.PoolEvent{
		{Kind: model.EventCreatePool, Pair: "0x01/0x02", Timestamp: 1},
		{Kind: model.EventSwap, Pair: "0x01/0x02", AmountIn: "1000", AmountOut: "906", Timestamp: 2},
	}
	if err := s.PutEventBatch(events); err != nil {
		t.Fatalf("put batch: %v", err)
	}
	// Appending twice keeps earlier lines.
	if err := s.Append(model.PoolEvent{Kind: model.EventFlashLoan, Pair: "0x01/0x02", Timestamp: 3}); err != nil {
		t.Fatalf("append: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer file.Close()

	var got []model.PoolEvent
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var ev model.PoolEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("line %d: %v", len(got)+1, err)
		}
		got = append(got, ev)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(got))
	}
	if got[1].AmountOut != "906" || got[2].Kind != model.EventFlashLoan {
		t.Fatalf("lines out of order or corrupted: %+v", got)
	}
}

func TestJsonlEmptyBatchWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	s := NewJsonlStorage(path)

	if err := s.PutEventBatch(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty batch should not create the file")
	}
}
