package network

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNetworkNotFound is returned when a key or chain ID is not one of the
// preconfigured networks.
var ErrNetworkNotFound = errors.New("network not found")

// ZeroAddress is the sentinel for "no contract deployed on this network".
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Native currency metadata shared by both Monad networks.
const (
	CurrencyName     = "Monad"
	CurrencySymbol   = "MON"
	CurrencyDecimals = 18
)

// Key identifies one of the preconfigured networks.
type Key string

const (
	Testnet Key = "testnet"
	Mainnet Key = "mainnet"
)

// DefaultKey is the network selected when nothing has been persisted yet.
const DefaultKey = Mainnet

// ParseKey validates a user-supplied network key.
func ParseKey(s string) (Key, error) {
	k := Key(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case Testnet, Mainnet:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q (expected testnet or mainnet)", ErrNetworkNotFound, s)
}

// Config describes one chain the voting contract lives on. Values are fixed
// once the registry is built.
type Config struct {
	Key             Key      `json:"key"`
	Label           string   `json:"label"`
	ChainID         int64    `json:"chain_id"`
	ChainHex        string   `json:"chain_hex"`
	RPCURLs         []string `json:"rpc_urls"`
	ExplorerURL     string   `json:"explorer_url"`
	ContractAddress string   `json:"contract_address"`
	ABI             string   `json:"abi"` // builtin ABI id, see contract.GetBuiltin
	HasLeaderboard  bool     `json:"has_leaderboard"`
}

// DisplayName is the chain name shown to users and sent to wallets.
func (c Config) DisplayName() string {
	return "Monad " + c.Label
}

// ContractConfigured reports whether a usable contract address is set.
func (c Config) ContractConfigured() bool {
	if c.ContractAddress == "" || !common.IsHexAddress(c.ContractAddress) {
		return false
	}
	return common.HexToAddress(c.ContractAddress) != common.Address{}
}

// Contract returns the parsed contract address. Check ContractConfigured first.
func (c Config) Contract() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

// TxURL returns the explorer link for a transaction hash.
func (c Config) TxURL(hash string) string {
	return strings.TrimSuffix(c.ExplorerURL, "/") + "/tx/" + hash
}

// AddChainParams is the EIP-3085 payload for wallet_addEthereumChain.
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	RPCURLs           []string       `json:"rpcUrls"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls"`
}

// NativeCurrency is the currency block of AddChainParams.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// AddChain builds the wallet_addEthereumChain parameters for this network.
func (c Config) AddChain() AddChainParams {
	return AddChainParams{
		ChainID:   c.ChainHex,
		ChainName: c.DisplayName(),
		RPCURLs:   append([]string(nil), c.RPCURLs...),
		NativeCurrency: NativeCurrency{
			Name:     CurrencyName,
			Symbol:   CurrencySymbol,
			Decimals: CurrencyDecimals,
		},
		BlockExplorerURLs: []string{c.ExplorerURL},
	}
}

// Overrides customises the built-in networks. Empty values keep the default.
type Overrides struct {
	Contracts map[Key]string
	RPCs      map[Key][]string
}

// Registry holds the two preconfigured networks.
type Registry struct {
	networks []Config
	byKey    map[Key]*Config
	byID     map[int64]*Config
}

// NewRegistry builds the registry, applying contract and RPC overrides.
// Custom RPCs are tried before the built-in ones.
func NewRegistry(o Overrides) *Registry {
	nets := defaults()
	for i := range nets {
		n := &nets[i]
		if addr := strings.TrimSpace(o.Contracts[n.Key]); addr != "" {
			n.ContractAddress = addr
		}
		if custom := o.RPCs[n.Key]; len(custom) > 0 {
			n.RPCURLs = append(append([]string(nil), custom...), n.RPCURLs...)
		}
	}

	r := &Registry{
		networks: nets,
		byKey:    make(map[Key]*Config, len(nets)),
		byID:     make(map[int64]*Config, len(nets)),
	}
	for i := range r.networks {
		n := &r.networks[i]
		r.byKey[n.Key] = n
		r.byID[n.ChainID] = n
	}
	return r
}

// All returns every network, testnet first.
func (r *Registry) All() []Config {
	out := make([]Config, len(r.networks))
	copy(out, r.networks)
	return out
}

// Get returns the network for key.
func (r *Registry) Get(key Key) (Config, error) {
	n, ok := r.byKey[key]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrNetworkNotFound, key)
	}
	return *n, nil
}

// ByChainID maps a wallet-reported chain ID back to a network.
func (r *Registry) ByChainID(id int64) (Config, bool) {
	n, ok := r.byID[id]
	if !ok {
		return Config{}, false
	}
	return *n, true
}

// KeyForChain returns the key for a chain ID, or "" when the chain is not one
// of ours.
func (r *Registry) KeyForChain(id int64) Key {
	if n, ok := r.byID[id]; ok {
		return n.Key
	}
	return ""
}

func defaults() []Config {
	return []Config{
		{
			Key:             Testnet,
			Label:           "Testnet",
			ChainID:         10143,
			ChainHex:        "0x279f",
			RPCURLs:         []string{"https://testnet-rpc.monad.xyz/"},
			ExplorerURL:     "https://testnet.monadexplorer.com/",
			ContractAddress: "0x7fB4F5Fc2a6f2FAa86F5F37EAEE8A0db820ad9E0",
			ABI:             "moodvote",
			HasLeaderboard:  false,
		},
		{
			Key:             Mainnet,
			Label:           "Mainnet",
			ChainID:         143,
			ChainHex:        "0x8f",
			RPCURLs:         []string{"https://mainnet-rpc.monad.xyz/", "https://rpc.monad.xyz"},
			ExplorerURL:     "https://monadexplorer.com/",
			ContractAddress: ZeroAddress,
			ABI:             "moodvote-leaderboard",
			HasLeaderboard:  true,
		},
	}
}
