package config

import "time"

// Environment variables. Set values beat the config file.
const (
	EnvConfigDir       = "MONADVOTE_CONFIG_DIR"
	EnvTestnetContract = "MONAD_TESTNET_CONTRACT_ADDRESS"
	EnvMainnetContract = "MONAD_MAINNET_CONTRACT_ADDRESS"
	EnvProjectID       = "WALLETCONNECT_PROJECT_ID"
)

// Themes.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Timeout constants used across cmd.
const (
	RPCSelectTimeout = 10 * time.Second // RPC benchmark / selection
	TxConfirmTimeout = 3 * time.Minute  // vote or donation confirmation wait
	PairingTimeout   = 5 * time.Minute  // waiting for a wallet to approve a pairing
)
