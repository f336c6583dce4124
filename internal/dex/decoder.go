package dex

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"defiBacktest/internal/model"
)

// Decoder converts raw pool event rows into typed pool events keyed by
// topic0 signature.
type Decoder struct {
	poolABI     abi.ABI
	topicToKind map[string]model.EventKind
}

// NewDecoder builds a pool event decoder for swap/mint/burn/collect.
func NewDecoder() (*Decoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}

	topicToKind := map[string]model.EventKind{
		strings.ToLower(poolABI.Events["Swap"].ID.Hex()):    model.EventSwap,
		strings.ToLower(poolABI.Events["Mint"].ID.Hex()):    model.EventMint,
		strings.ToLower(poolABI.Events["Burn"].ID.Hex()):    model.EventBurn,
		strings.ToLower(poolABI.Events["Collect"].ID.Hex()): model.EventCollect,
	}

	return &Decoder{
		poolABI:     poolABI,
		topicToKind: topicToKind,
	}, nil
}

// CanDecode checks if the topic0 is a supported event signature.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToKind[strings.ToLower(topic0)]
	return ok
}

// Topics returns the supported topic0 signatures in sorted order.
func (d *Decoder) Topics() []string {
	out := make([]string, 0, len(d.topicToKind))
	for topic := range d.topicToKind {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// Decode converts an EventRow into a PoolEvent. Rows flagged as removed
// are a caller concern and are rejected here.
func (d *Decoder) Decode(row model.EventRow) (*model.PoolEvent, error) {
	if row.Removed {
		return nil, fmt.Errorf("removed log")
	}
	if len(row.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	kind, ok := d.topicToKind[strings.ToLower(row.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", row.Topics[0])
	}

	var decoded interface{}
	var err error
	switch kind {
	case model.EventSwap:
		decoded, err = d.decodeSwap(row)
	case model.EventMint:
		decoded, err = d.decodeMint(row)
	case model.EventBurn:
		decoded, err = d.decodeBurn(row)
	case model.EventCollect:
		decoded, err = d.decodeCollect(row)
	}
	if err != nil {
		return nil, err
	}

	return &model.PoolEvent{
		Kind:        kind,
		BlockNumber: row.BlockNumber,
		TxHash:      row.TxHash,
		LogIndex:    row.LogIndex,
		Timestamp:   row.Timestamp,
		Decoded:     decoded,
	}, nil
}

func (d *Decoder) decodeSwap(row model.EventRow) (model.SwapEventData, error) {
	event := d.poolABI.Events["Swap"]
	indexedTopics, err := parseIndexedTopics(event, row.Topics)
	if err != nil {
		return model.SwapEventData{}, err
	}

	var indexed struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.SwapEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, row.Data)
	if err != nil {
		return model.SwapEventData{}, err
	}
	if len(values) != 5 {
		return model.SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.SwapEventData{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.SwapEventData{}, err
	}
	sqrtPrice, err := asBigInt(values[2])
	if err != nil {
		return model.SwapEventData{}, err
	}
	liquidity, err := asBigInt(values[3])
	if err != nil {
		return model.SwapEventData{}, err
	}
	tickInt, err := asBigInt(values[4])
	if err != nil {
		return model.SwapEventData{}, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.SwapEventData{}, err
	}

	return model.SwapEventData{
		Sender:       indexed.Sender.Hex(),
		Recipient:    indexed.Recipient.Hex(),
		Amount0:      amount0,
		Amount1:      amount1,
		SqrtPriceX96: sqrtPrice,
		Liquidity:    liquidity,
		Tick:         tick,
	}, nil
}

func (d *Decoder) decodeMint(row model.EventRow) (model.MintEventData, error) {
	event := d.poolABI.Events["Mint"]
	indexedTopics, err := parseIndexedTopics(event, row.Topics)
	if err != nil {
		return model.MintEventData{}, err
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.MintEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, row.Data)
	if err != nil {
		return model.MintEventData{}, err
	}
	if len(values) != 4 {
		return model.MintEventData{}, fmt.Errorf("unexpected mint values: %d", len(values))
	}

	sender, err := asAddress(values[0])
	if err != nil {
		return model.MintEventData{}, err
	}
	liquidity, err := asBigInt(values[1])
	if err != nil {
		return model.MintEventData{}, err
	}
	amount0, err := asBigInt(values[2])
	if err != nil {
		return model.MintEventData{}, err
	}
	amount1, err := asBigInt(values[3])
	if err != nil {
		return model.MintEventData{}, err
	}

	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return model.MintEventData{}, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return model.MintEventData{}, err
	}

	return model.MintEventData{
		Sender:    sender.Hex(),
		Owner:     indexed.Owner.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Liquidity: liquidity,
		Amount0:   amount0,
		Amount1:   amount1,
	}, nil
}

func (d *Decoder) decodeBurn(row model.EventRow) (model.BurnEventData, error) {
	event := d.poolABI.Events["Burn"]
	indexedTopics, err := parseIndexedTopics(event, row.Topics)
	if err != nil {
		return model.BurnEventData{}, err
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.BurnEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, row.Data)
	if err != nil {
		return model.BurnEventData{}, err
	}
	if len(values) != 3 {
		return model.BurnEventData{}, fmt.Errorf("unexpected burn values: %d", len(values))
	}

	liquidity, err := asBigInt(values[0])
	if err != nil {
		return model.BurnEventData{}, err
	}
	amount0, err := asBigInt(values[1])
	if err != nil {
		return model.BurnEventData{}, err
	}
	amount1, err := asBigInt(values[2])
	if err != nil {
		return model.BurnEventData{}, err
	}

	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return model.BurnEventData{}, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return model.BurnEventData{}, err
	}

	return model.BurnEventData{
		Owner:     indexed.Owner.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Liquidity: new(big.Int).Neg(liquidity),
		Amount0:   amount0,
		Amount1:   amount1,
	}, nil
}

func (d *Decoder) decodeCollect(row model.EventRow) (model.CollectEventData, error) {
	event := d.poolABI.Events["Collect"]
	indexedTopics, err := parseIndexedTopics(event, row.Topics)
	if err != nil {
		return model.CollectEventData{}, err
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.CollectEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, row.Data)
	if err != nil {
		return model.CollectEventData{}, err
	}
	if len(values) != 3 {
		return model.CollectEventData{}, fmt.Errorf("unexpected collect values: %d", len(values))
	}

	recipient, err := asAddress(values[0])
	if err != nil {
		return model.CollectEventData{}, err
	}
	amount0, err := asBigInt(values[1])
	if err != nil {
		return model.CollectEventData{}, err
	}
	amount1, err := asBigInt(values[2])
	if err != nil {
		return model.CollectEventData{}, err
	}

	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return model.CollectEventData{}, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return model.CollectEventData{}, err
	}

	return model.CollectEventData{
		Owner:     indexed.Owner.Hex(),
		Recipient: recipient.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount0:   amount0,
		Amount1:   amount1,
	}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	if !strings.HasPrefix(dataHex, "0x") {
		dataHex = "0x" + dataHex
	}
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	parsed, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("expected big.Int, got %T", value)
	}
	return parsed, nil
}

func asAddress(value interface{}) (common.Address, error) {
	parsed, ok := value.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("expected address, got %T", value)
	}
	return parsed, nil
}

func int24FromBig(value *big.Int) (int32, error) {
	if value == nil {
		return 0, fmt.Errorf("nil tick")
	}
	if !value.IsInt64() {
		return 0, fmt.Errorf("tick overflows int24: %s", value)
	}
	tick := value.Int64()
	if tick < -8388608 || tick > 8388607 {
		return 0, fmt.Errorf("tick overflows int24: %d", tick)
	}
	return int32(tick), nil
}
