package chains

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"moff.io/wallet-bridge/pkg/errors"
)

type Blockchain struct {
	ID    int
	IDHex string
	// Name is the network identifier the host SDK understands.
	Name        string
	ExplorerURL string
	// USDC is the reference fungible token contract on this network, if any.
	USDC string
}

// TxURL returns the explorer link of a transaction hash, or "" when the network has no explorer.
func (in *Blockchain) TxURL(hash string) string {
	if in.ExplorerURL == "" || hash == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", strings.TrimRight(in.ExplorerURL, "/"), hash)
}

var (
	Array = []*Blockchain{
		{
			ID:          8453,
			IDHex:       "0x2105",
			Name:        "base",
			ExplorerURL: "https://basescan.org",
			USDC:        "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		},
		{
			ID:          84532,
			IDHex:       "0x14a34",
			Name:        "basesepolia",
			ExplorerURL: "https://sepolia.basescan.org",
			USDC:        "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		},
		{
			ID:          1,
			IDHex:       "0x1",
			Name:        "eth",
			ExplorerURL: "https://etherscan.io",
			USDC:        "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		},
		{
			ID:          11155111,
			IDHex:       "0xaa36a7",
			Name:        "sepolia",
			ExplorerURL: "https://sepolia.etherscan.io",
		},
	}

	Mapping = func() map[int]*Blockchain {
		m := make(map[int]*Blockchain, len(Array))
		for _, c := range Array {
			m[c.ID] = c
		}
		return m
	}()
)

// ByName looks a network up by its SDK identifier, case-insensitively.
func ByName(name string) (*Blockchain, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range Array {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ParseChainID accepts a decimal or 0x-prefixed hex chain id.
func ParseChainID(s string) (int, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		id, err := strconv.ParseInt(s[2:], 16, 64)
		if err != nil || id <= 0 {
			return 0, errors.Errorf("invalid hex chain id %q", s)
		}
		return int(id), nil
	}
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("invalid chain id %q", s)
	}
	return id, nil
}

// FromNetworkJSON resolves the network description returned by the host's
// current-network query. It reads "chainId" (number, decimal or hex string)
// and falls back to "name".
func FromNetworkJSON(raw string) (*Blockchain, bool) {
	if !gjson.Valid(raw) {
		return nil, false
	}
	parsed := gjson.Parse(raw)
	if cid := parsed.Get("chainId"); cid.Exists() {
		var id int
		switch cid.Type {
		case gjson.Number:
			id = int(cid.Int())
		case gjson.String:
			id, _ = ParseChainID(cid.String())
		}
		if c, ok := Mapping[id]; ok {
			return c, true
		}
	}
	if name := parsed.Get("name"); name.Exists() {
		return ByName(name.String())
	}
	return nil, false
}
