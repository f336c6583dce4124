package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParsePoolAddress validates the configured pool contract address.
func ParsePoolAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, fmt.Errorf("pool address is empty")
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid pool address: %s", input)
	}
	return common.HexToAddress(input), nil
}

// ParseTopic0 converts the decoder's topic0 signatures into hashes,
// dropping blanks and duplicates.
func ParseTopic0(inputs []string) ([]common.Hash, error) {
	topics := make([]common.Hash, 0, len(inputs))
	seen := make(map[common.Hash]struct{}, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		data, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("invalid topic0: %s", input)
		}
		if len(data) != common.HashLength {
			return nil, fmt.Errorf("invalid topic0 length: %s", input)
		}
		hash := common.BytesToHash(data)
		if _, ok := seen[hash]; ok {
			continue
		}
		seen[hash] = struct{}{}
		topics = append(topics, hash)
	}
	return topics, nil
}
