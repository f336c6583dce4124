package bars

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"defiBacktest/internal/model"
)

var eventHeader = []string{
	"block_number", "block_timestamp", "transaction_hash",
	"transaction_index", "log_index", "DATA", "topics",
}

var barHeader = []string{
	"timestamp", "netAmount0", "netAmount1", "closeTick", "openTick",
	"lowestTick", "highestTick", "inAmount0", "inAmount1", "sqrtPriceX96",
	"currentLiquidity",
}

// ReadEventRows loads one raw event CSV file.
func ReadEventRows(path string) ([]model.EventRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if err := checkHeader(records[0], eventHeader); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	rows := make([]model.EventRow, 0, len(records)-1)
	for i, record := range records[1:] {
		row, err := parseEventRow(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteEventRows writes one raw event CSV file.
func WriteEventRows(path string, rows []model.EventRow) error {
	file, err := createWithDir(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(eventHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		record, err := formatEventRow(row)
		if err != nil {
			return err
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write event row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush events: %w", err)
	}
	return nil
}

func formatEventRow(row model.EventRow) ([]string, error) {
	topics, err := json.Marshal(row.Topics)
	if err != nil {
		return nil, fmt.Errorf("marshal topics: %w", err)
	}
	return []string{
		strconv.FormatUint(row.BlockNumber, 10),
		row.Timestamp.UTC().Format(time.RFC3339),
		row.TxHash,
		strconv.FormatUint(row.TxIndex, 10),
		strconv.FormatUint(row.LogIndex, 10),
		row.Data,
		string(topics),
	}, nil
}

// AppendEventRows appends rows to an event CSV, writing the header when
// the file is new or empty.
func AppendEventRows(path string, rows []model.EventRow) error {
	if len(rows) == 0 {
		return nil
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open events: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat events: %w", err)
	}
	writer := csv.NewWriter(file)
	if stat.Size() == 0 {
		if err := writer.Write(eventHeader); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, row := range rows {
		record, err := formatEventRow(row)
		if err != nil {
			return err
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write event row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush events: %w", err)
	}
	return nil
}

// ReadMinuteBars loads a minute-bar CSV file.
func ReadMinuteBars(path string) ([]model.MinuteBar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read bars: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if err := checkHeader(records[0], barHeader); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	out := make([]model.MinuteBar, 0, len(records)-1)
	for i, record := range records[1:] {
		bar, err := parseBarRow(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), i+2, err)
		}
		out = append(out, bar)
	}
	return out, nil
}

// WriteMinuteBars writes a minute-bar CSV file.
func WriteMinuteBars(path string, barsOut []model.MinuteBar) error {
	file, err := createWithDir(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(barHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, bar := range barsOut {
		record := []string{
			bar.Timestamp.UTC().Format(time.RFC3339),
			bar.NetAmount0.String(),
			bar.NetAmount1.String(),
			strconv.FormatInt(int64(bar.CloseTick), 10),
			strconv.FormatInt(int64(bar.OpenTick), 10),
			strconv.FormatInt(int64(bar.LowestTick), 10),
			strconv.FormatInt(int64(bar.HighestTick), 10),
			bar.InAmount0.String(),
			bar.InAmount1.String(),
			bar.SqrtPriceX96.String(),
			bar.CurrentLiquidity.String(),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write bar row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush bars: %w", err)
	}
	return nil
}

func parseEventRow(record []string) (model.EventRow, error) {
	if len(record) != len(eventHeader) {
		return model.EventRow{}, fmt.Errorf("expected %d columns, got %d", len(eventHeader), len(record))
	}
	blockNumber, err := strconv.ParseUint(record[0], 10, 64)
	if err != nil {
		return model.EventRow{}, fmt.Errorf("block_number: %w", err)
	}
	ts, err := parseTimestamp(record[1])
	if err != nil {
		return model.EventRow{}, fmt.Errorf("block_timestamp: %w", err)
	}
	txIndex, err := strconv.ParseUint(record[3], 10, 64)
	if err != nil {
		return model.EventRow{}, fmt.Errorf("transaction_index: %w", err)
	}
	logIndex, err := strconv.ParseUint(record[4], 10, 64)
	if err != nil {
		return model.EventRow{}, fmt.Errorf("log_index: %w", err)
	}
	var topics []string
	if err := json.Unmarshal([]byte(record[6]), &topics); err != nil {
		return model.EventRow{}, fmt.Errorf("topics: %w", err)
	}
	return model.EventRow{
		BlockNumber: blockNumber,
		Timestamp:   ts,
		TxHash:      record[2],
		TxIndex:     txIndex,
		LogIndex:    logIndex,
		Data:        record[5],
		Topics:      topics,
	}, nil
}

func parseBarRow(record []string) (model.MinuteBar, error) {
	if len(record) != len(barHeader) {
		return model.MinuteBar{}, fmt.Errorf("expected %d columns, got %d", len(barHeader), len(record))
	}
	ts, err := parseTimestamp(record[0])
	if err != nil {
		return model.MinuteBar{}, fmt.Errorf("timestamp: %w", err)
	}

	ints := make([]*big.Int, 0, 6)
	for _, idx := range []int{1, 2, 7, 8, 9, 10} {
		value, ok := new(big.Int).SetString(record[idx], 10)
		if !ok {
			return model.MinuteBar{}, fmt.Errorf("invalid integer %q in column %s", record[idx], barHeader[idx])
		}
		ints = append(ints, value)
	}

	ticks := make([]int32, 0, 4)
	for _, idx := range []int{3, 4, 5, 6} {
		value, err := strconv.ParseInt(record[idx], 10, 32)
		if err != nil {
			return model.MinuteBar{}, fmt.Errorf("%s: %w", barHeader[idx], err)
		}
		ticks = append(ticks, int32(value))
	}

	return model.MinuteBar{
		Timestamp:        ts,
		NetAmount0:       ints[0],
		NetAmount1:       ints[1],
		CloseTick:        ticks[0],
		OpenTick:         ticks[1],
		LowestTick:       ticks[2],
		HighestTick:      ticks[3],
		InAmount0:        ints[2],
		InAmount1:        ints[3],
		SqrtPriceX96:     ints[4],
		CurrentLiquidity: ints[5],
	}, nil
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp: %q", value)
}

func checkHeader(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("expected %d columns, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("column %d is %q, want %q", i, got[i], want[i])
		}
	}
	return nil
}

func createWithDir(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	return file, nil
}
