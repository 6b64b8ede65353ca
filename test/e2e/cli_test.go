package e2e_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build the binary before all E2E tests.
	tmp, err := os.MkdirTemp("", "monadvote-e2e-test")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmp)

	binaryPath = filepath.Join(tmp, "monadvote")
	// Build from the module root (two levels up from test/e2e/).
	moduleRoot, err := filepath.Abs(filepath.Join("..", ".."))
	if err != nil {
		panic(err)
	}
	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Dir = moduleRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		panic("build failed: " + string(out))
	}

	os.Exit(m.Run())
}

func runCLI(t *testing.T, configDir string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(),
		"MONADVOTE_CONFIG_DIR="+configDir,
		"MONAD_TESTNET_CONTRACT_ADDRESS=",
		"MONAD_MAINNET_CONTRACT_ADDRESS=",
		"WALLETCONNECT_PROJECT_ID=",
		"MONADVOTE_KEYRING_PASSWORD=e2e",
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func readConfig(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	return string(data)
}

func TestVersionFlag(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "monadvote")
}

func TestHelpCommand(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "--help")
	require.NoError(t, err)
	for _, c := range []string{"vote", "donate", "switch", "status", "dashboard", "wallet", "network"} {
		assert.Contains(t, strings.ToLower(out), c)
	}
	assert.Contains(t, out, "--testnet")
	assert.Contains(t, out, "--mainnet")
}

func TestNetworkList(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "network", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Monad Testnet")
	assert.Contains(t, out, "Monad Mainnet")
	assert.Contains(t, out, "10143")
	assert.Contains(t, out, "143")
}

func TestNetworkUse(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI(t, dir, "network", "use", "testnet")
	require.NoError(t, err)
	assert.Contains(t, out, "Monad Testnet")
	assert.Contains(t, readConfig(t, dir), `"selected_network": "testnet"`)
}

func TestNetworkUseUnknown(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "network", "use", "devnet")
	assert.Error(t, err)
}

func TestNetworkUseWarnsWithoutContract(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "network", "use", "mainnet")
	require.NoError(t, err)
	assert.Contains(t, out, "Contract address is not configured for the selected network")
}

func TestTestnetMainnetMutuallyExclusive(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "--testnet", "--mainnet", "network", "list")
	assert.Error(t, err)
}

func TestTestnetFlagNotPersisted(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, dir, "--testnet", "config", "set-theme", "light")
	require.NoError(t, err)
	cfg := readConfig(t, dir)
	assert.Contains(t, cfg, `"theme": "light"`)
	assert.Contains(t, cfg, `"selected_network": "mainnet"`)
}

func TestWalletAddListRemove(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, dir, "wallet", "add", "alice", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	require.NoError(t, err)

	out, err := runCLI(t, dir, "wallet", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "watch-only")

	_, err = runCLI(t, dir, "--yes", "wallet", "remove", "alice")
	require.NoError(t, err)
	out, err = runCLI(t, dir, "wallet", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No wallets configured")
}

func TestWalletAddRejectsBadAddress(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "wallet", "add", "bob", "0x1234")
	assert.Error(t, err)
}

func TestRPCAddAndAlgorithm(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, dir, "rpc", "add", "testnet", "https://my.custom.rpc")
	require.NoError(t, err)
	_, err = runCLI(t, dir, "rpc", "algorithm", "set", "round-robin")
	require.NoError(t, err)

	cfg := readConfig(t, dir)
	assert.Contains(t, cfg, "https://my.custom.rpc")
	assert.Contains(t, cfg, `"rpc_algorithm": "round-robin"`)
}

func TestConfigList(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "selected_network")
	assert.Contains(t, out, "Monad Testnet contract")
}

func TestVoteWithoutWalletFails(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "vote", "happy")
	assert.Error(t, err)
	assert.Contains(t, out, "no wallet")
}

func TestUnknownCommandShowsError(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "nonexistent-command")
	assert.Error(t, err)
}
