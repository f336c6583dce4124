package storage

import "defiBacktest/internal/model"

// EventSink is a sink for raw pool event rows.
type EventSink interface {
	PutEventBatch(rows []model.EventRow) error
}
