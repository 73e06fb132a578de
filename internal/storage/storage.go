package storage

import "poolengine/internal/model"

// Storage defines a sink for emitted pool events.
type Storage interface {
	PutEventBatch(events []model.PoolEvent) error
}
