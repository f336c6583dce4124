package indexer

import "fmt"

// blockSpan is the inclusive block window covered by one log filter
// call.
type blockSpan struct {
	from uint64
	to   uint64
}

// splitSpans cuts [from, to] into spans of at most batchSize blocks.
// The last span is short when the window is not a multiple of the
// batch size.
func splitSpans(from, to, batchSize uint64) ([]blockSpan, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("span end %d before start %d", to, from)
	}

	spans := make([]blockSpan, 0, (to-from)/batchSize+1)
	for start := from; start <= to; {
		end := start + batchSize - 1
		if end > to || end < start {
			// The second clause guards uint64 wrap near the top of
			// the block range.
			end = to
		}
		spans = append(spans, blockSpan{from: start, to: end})
		if end == to {
			break
		}
		start = end + 1
	}
	return spans, nil
}
