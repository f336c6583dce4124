package model

import "time"

// EventRow is one raw pool log row as stored in the per-day event CSV.
// Topics hold the 32-byte hex strings from the original log, topic0 first.
type EventRow struct {
	BlockNumber uint64    `json:"block_number"`
	Timestamp   time.Time `json:"block_timestamp"`
	TxHash      string    `json:"transaction_hash"`
	TxIndex     uint64    `json:"transaction_index"`
	LogIndex    uint64    `json:"log_index"`
	Data        string    `json:"data"`
	Topics      []string  `json:"topics"`
	Removed     bool      `json:"removed"`
}
