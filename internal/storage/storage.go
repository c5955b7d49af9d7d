package storage

import "portfolioSwap/internal/model"

// Storage defines a sink for committed engine events.
type Storage interface {
	PutEventBatch(records []model.EventRecord) error
}
