package config

import "github.com/terauss/Monad-Voting-App/internal/wallet"

// Config holds all monadvote configuration.
type Config struct {
	SelectedNetwork string              `json:"selected_network"`
	Theme           string              `json:"theme"`          // "light" | "dark"
	DefaultWallet   string              `json:"default_wallet"`
	RPCAlgorithm    string              `json:"rpc_algorithm"`  // "fastest" | "round-robin" | "failover"
	RelayURL        string              `json:"relay_url"`
	ProjectID       string              `json:"project_id"`
	Contracts       map[string]string   `json:"contracts"`      // network key -> address
	CustomRPCs      map[string][]string `json:"custom_rpcs"`    // network key -> urls

	// Chains added to the keychain wallet through wallet_addEthereumChain and
	// the chain it was last on.
	WalletChains []wallet.KnownChain `json:"wallet_chains,omitempty"`
	WalletChain  int64               `json:"wallet_chain,omitempty"`

	// internal: config dir path used for Save()
	configDir string
	// environment values; never written back
	env envOverrides
}

type envOverrides struct {
	contracts map[string]string
	projectID string
}
