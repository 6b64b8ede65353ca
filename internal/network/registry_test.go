package network_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terauss/Monad-Voting-App/internal/network"
)

func TestRegistryHasTwoNetworks(t *testing.T) {
	reg := network.NewRegistry(network.Overrides{})
	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, network.Testnet, all[0].Key)
	assert.Equal(t, network.Mainnet, all[1].Key)
}

func TestRegistryChainIDs(t *testing.T) {
	reg := network.NewRegistry(network.Overrides{})

	tn, err := reg.Get(network.Testnet)
	require.NoError(t, err)
	assert.Equal(t, int64(10143), tn.ChainID)
	assert.Equal(t, "0x279f", tn.ChainHex)
	assert.False(t, tn.HasLeaderboard)

	mn, err := reg.Get(network.Mainnet)
	require.NoError(t, err)
	assert.Equal(t, int64(143), mn.ChainID)
	assert.Equal(t, "0x8f", mn.ChainHex)
	assert.True(t, mn.HasLeaderboard)
}

func TestRegistryGetUnknown(t *testing.T) {
	reg := network.NewRegistry(network.Overrides{})
	_, err := reg.Get("devnet")
	assert.ErrorIs(t, err, network.ErrNetworkNotFound)
}

func TestRegistryByChainID(t *testing.T) {
	reg := network.NewRegistry(network.Overrides{})

	n, ok := reg.ByChainID(143)
	require.True(t, ok)
	assert.Equal(t, network.Mainnet, n.Key)

	_, ok = reg.ByChainID(1)
	assert.False(t, ok)
	assert.Equal(t, network.Key(""), reg.KeyForChain(1))
	assert.Equal(t, network.Testnet, reg.KeyForChain(10143))
}

func TestMainnetContractDefaultsToZeroAddress(t *testing.T) {
	reg := network.NewRegistry(network.Overrides{})
	mn, _ := reg.Get(network.Mainnet)
	assert.Equal(t, network.ZeroAddress, mn.ContractAddress)
	assert.False(t, mn.ContractConfigured())
}

func TestContractOverride(t *testing.T) {
	reg := network.NewRegistry(network.Overrides{
		Contracts: map[network.Key]string{network.Mainnet: "0x1111111111111111111111111111111111111111"},
	})
	mn, _ := reg.Get(network.Mainnet)
	assert.True(t, mn.ContractConfigured())
	assert.Equal(t, "0x1111111111111111111111111111111111111111", mn.Contract().Hex())

	tn, _ := reg.Get(network.Testnet)
	assert.Equal(t, "0x7fB4F5Fc2a6f2FAa86F5F37EAEE8A0db820ad9E0", tn.ContractAddress)
}

func TestContractConfiguredRejectsGarbage(t *testing.T) {
	assert.False(t, network.Config{ContractAddress: ""}.ContractConfigured())
	assert.False(t, network.Config{ContractAddress: "not-an-address"}.ContractConfigured())
}

func TestCustomRPCsComeFirst(t *testing.T) {
	reg := network.NewRegistry(network.Overrides{
		RPCs: map[network.Key][]string{network.Testnet: {"http://localhost:8545"}},
	})
	tn, _ := reg.Get(network.Testnet)
	require.Len(t, tn.RPCURLs, 2)
	assert.Equal(t, "http://localhost:8545", tn.RPCURLs[0])
}

func TestParseKey(t *testing.T) {
	k, err := network.ParseKey(" Mainnet ")
	require.NoError(t, err)
	assert.Equal(t, network.Mainnet, k)

	_, err = network.ParseKey("ropsten")
	assert.ErrorIs(t, err, network.ErrNetworkNotFound)
}

func TestAddChainParams(t *testing.T) {
	reg := network.NewRegistry(network.Overrides{})
	tn, _ := reg.Get(network.Testnet)
	p := tn.AddChain()

	assert.Equal(t, "0x279f", p.ChainID)
	assert.Equal(t, "Monad Testnet", p.ChainName)
	assert.Equal(t, "MON", p.NativeCurrency.Symbol)
	assert.Equal(t, 18, p.NativeCurrency.Decimals)
	assert.Equal(t, []string{"https://testnet.monadexplorer.com/"}, p.BlockExplorerURLs)
}

func TestTxURL(t *testing.T) {
	reg := network.NewRegistry(network.Overrides{})
	mn, _ := reg.Get(network.Mainnet)
	assert.Equal(t, "https://monadexplorer.com/tx/0xabc", mn.TxURL("0xabc"))
}
