package indexer

import (
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"defiBacktest/internal/model"
)

func buildEventRow(log types.Log, timestamp uint64) model.EventRow {
	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}

	return model.EventRow{
		BlockNumber: log.BlockNumber,
		Timestamp:   time.Unix(int64(timestamp), 0).UTC(),
		TxHash:      log.TxHash.Hex(),
		TxIndex:     uint64(log.TxIndex),
		LogIndex:    uint64(log.Index),
		Data:        hexutil.Encode(log.Data),
		Topics:      topics,
		Removed:     log.Removed,
	}
}
