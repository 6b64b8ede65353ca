package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terauss/Monad-Voting-App/internal/config"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/wallet"
)

// execute runs the root command against a temporary config directory.
func execute(t *testing.T, dir string, args ...string) error {
	t.Helper()
	for _, k := range []string{config.EnvConfigDir, config.EnvTestnetContract, config.EnvMainnetContract, config.EnvProjectID} {
		t.Setenv(k, "")
	}
	testnet, mainnet, assumeYes, verbose = false, false, false, false
	rootCmd.SetArgs(append([]string{"--config", dir}, args...))
	return rootCmd.Execute()
}

func reload(t *testing.T, dir string) *config.Config {
	t.Helper()
	c, err := config.Load(dir)
	require.NoError(t, err)
	return c
}

func TestNetworkUsePersistsSelection(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, execute(t, dir, "network", "use", "testnet"))
	assert.Equal(t, network.Testnet, reload(t, dir).Selected())

	require.NoError(t, execute(t, dir, "network", "use", "mainnet"))
	assert.Equal(t, network.Mainnet, reload(t, dir).Selected())
}

func TestNetworkUseRejectsUnknown(t *testing.T) {
	dir := t.TempDir()
	err := execute(t, dir, "network", "use", "devnet")
	assert.Error(t, err)
	assert.Equal(t, network.Mainnet, reload(t, dir).Selected())
}

func TestTestnetFlagIsNotPersisted(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, execute(t, dir, "--testnet", "config", "set-theme", "light"))

	c := reload(t, dir)
	assert.Equal(t, "light", c.Theme)
	assert.Equal(t, network.Mainnet, c.Selected())
}

func TestConfigSetContract(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, execute(t, dir, "config", "set-contract", "mainnet", "0x00000000000000000000000000000000000000aa"))
	assert.NotEmpty(t, reload(t, dir).Contract(network.Mainnet))

	require.NoError(t, execute(t, dir, "config", "set-contract", "mainnet"))
	assert.Empty(t, reload(t, dir).Contract(network.Mainnet))

	assert.Error(t, execute(t, dir, "config", "set-contract", "mainnet", "nope"))
}

func TestConfigSetProjectIDAndRelay(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, execute(t, dir, "config", "set-project-id", "abc123"))
	require.NoError(t, execute(t, dir, "config", "set-relay", "wss://relay.example"))

	c := reload(t, dir)
	assert.Equal(t, "abc123", c.Project())
	assert.Equal(t, "wss://relay.example", c.RelayURL)
}

func TestRPCAddRemoveAndAlgorithm(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, execute(t, dir, "rpc", "add", "testnet", "https://custom.rpc"))
	assert.Equal(t, []string{"https://custom.rpc"}, reload(t, dir).CustomRPCs["testnet"])

	assert.Error(t, execute(t, dir, "rpc", "add", "testnet", "https://custom.rpc"))

	require.NoError(t, execute(t, dir, "rpc", "remove", "testnet", "https://custom.rpc"))
	assert.Empty(t, reload(t, dir).CustomRPCs["testnet"])

	require.NoError(t, execute(t, dir, "rpc", "algorithm", "set", "failover"))
	assert.Equal(t, "failover", reload(t, dir).RPCAlgorithm)
	assert.Error(t, execute(t, dir, "rpc", "algorithm", "set", "random"))
}

func TestVoteRejectsUnknownChoice(t *testing.T) {
	err := execute(t, t.TempDir(), "vote", "meh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown vote")
}

func TestModalNeedsProjectID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, execute(t, dir, "network", "list"))

	_, err := newModalSession(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvProjectID)
}

func TestSelectedKeyHonoursFlags(t *testing.T) {
	require.NoError(t, execute(t, t.TempDir(), "network", "list"))
	assert.Equal(t, network.Mainnet, selectedKey())

	testnet = true
	defer func() { testnet = false }()
	assert.Equal(t, network.Testnet, selectedKey())

	n, err := networkArg(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10143), n.ChainID)
}

func TestWalletTypeLabel(t *testing.T) {
	assert.Equal(t, "can vote", walletTypeLabel(wallet.TypeSigning))
	assert.Equal(t, "watch-only", walletTypeLabel(wallet.TypeWatchOnly))
}
