package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"poolengine/internal/model"
)

// ReadEventsAfter reads pool events from a JSONL log, skipping the first
// afterLine lines, and returns the events along with the line number of the
// last one read. Blank lines count toward line numbering so checkpoints stay
// stable across reads.
func ReadEventsAfter(path string, afterLine uint64) ([]model.PoolEvent, uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open event log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var events []model.PoolEvent
	var line uint64
	for scanner.Scan() {
		line++
		if line <= afterLine {
			continue
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var ev model.PoolEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, 0, fmt.Errorf("event log line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read event log: %w", err)
	}

	return events, line, nil
}
