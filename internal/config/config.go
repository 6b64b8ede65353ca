package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/wallet"
)

const (
	defaultTheme     = ThemeDark
	defaultAlgorithm = "fastest"

	configFile  = "config.json"
	walletsFile = "wallets.json"
	logFile     = "monadvote.log"
)

// Load reads config from dir (or creates defaults). An empty dir means
// $MONADVOTE_CONFIG_DIR, then ~/.monadvote.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = os.Getenv(EnvConfigDir)
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home dir: %w", err)
		}
		dir = filepath.Join(home, ".monadvote")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	cfg := defaults(dir)

	path := filepath.Join(dir, configFile)
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.configDir = dir
	if cfg.Contracts == nil {
		cfg.Contracts = make(map[string]string)
	}
	if cfg.CustomRPCs == nil {
		cfg.CustomRPCs = make(map[string][]string)
	}
	if _, err := network.ParseKey(cfg.SelectedNetwork); err != nil {
		cfg.SelectedNetwork = string(network.DefaultKey)
	}
	cfg.env = readEnv()

	return cfg, nil
}

// Save writes the config to disk. Environment overrides are not persisted.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.configDir, configFile), data, 0o600)
}

// Dir returns the config directory.
func (c *Config) Dir() string {
	return c.configDir
}

// WalletsPath is where wallet metadata lives.
func (c *Config) WalletsPath() string {
	return filepath.Join(c.configDir, walletsFile)
}

// LogPath is where the dashboard writes its log.
func (c *Config) LogPath() string {
	return filepath.Join(c.configDir, logFile)
}

// Selected returns the persisted network selection.
func (c *Config) Selected() network.Key {
	k, err := network.ParseKey(c.SelectedNetwork)
	if err != nil {
		return network.DefaultKey
	}
	return k
}

// SaveSelectedNetwork persists the user's network intent.
func (c *Config) SaveSelectedNetwork(key network.Key) error {
	c.SelectedNetwork = string(key)
	return c.Save()
}

// SetTheme validates and sets the theme.
func (c *Config) SetTheme(theme string) error {
	theme = strings.ToLower(strings.TrimSpace(theme))
	if theme != ThemeLight && theme != ThemeDark {
		return fmt.Errorf("unknown theme %q (expected light or dark)", theme)
	}
	c.Theme = theme
	return nil
}

// SetContract overrides the contract address for a network. An empty address
// clears the override.
func (c *Config) SetContract(key network.Key, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		delete(c.Contracts, string(key))
		return nil
	}
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid contract address %q", address)
	}
	if c.Contracts == nil {
		c.Contracts = make(map[string]string)
	}
	c.Contracts[string(key)] = common.HexToAddress(address).Hex()
	return nil
}

// Contract returns the effective contract override for key; the environment
// wins over the file. "" means use the built-in address.
func (c *Config) Contract(key network.Key) string {
	if v := c.env.contracts[string(key)]; v != "" {
		return v
	}
	return c.Contracts[string(key)]
}

// Project returns the effective relay project id.
func (c *Config) Project() string {
	if c.env.projectID != "" {
		return c.env.projectID
	}
	return c.ProjectID
}

// AddRPC adds a custom RPC URL for a network.
func (c *Config) AddRPC(key network.Key, url string) error {
	if c.CustomRPCs == nil {
		c.CustomRPCs = make(map[string][]string)
	}
	if slices.Contains(c.CustomRPCs[string(key)], url) {
		return fmt.Errorf("RPC %s already exists for network %s", url, key)
	}
	c.CustomRPCs[string(key)] = append(c.CustomRPCs[string(key)], url)
	return nil
}

// RemoveRPC removes a custom RPC URL for a network.
func (c *Config) RemoveRPC(key network.Key, url string) error {
	rpcs := c.CustomRPCs[string(key)]
	idx := slices.Index(rpcs, url)
	if idx == -1 {
		return fmt.Errorf("RPC %s not found for network %s", url, key)
	}
	c.CustomRPCs[string(key)] = slices.Delete(rpcs, idx, idx+1)
	return nil
}

// Overrides builds the network registry overrides.
func (c *Config) Overrides() network.Overrides {
	o := network.Overrides{
		Contracts: make(map[network.Key]string),
		RPCs:      make(map[network.Key][]string),
	}
	for _, k := range []network.Key{network.Testnet, network.Mainnet} {
		if addr := c.Contract(k); addr != "" {
			o.Contracts[k] = addr
		}
		if rpcs := c.CustomRPCs[string(k)]; len(rpcs) > 0 {
			o.RPCs[k] = append([]string(nil), rpcs...)
		}
	}
	return o
}

// AddWalletChain records a chain the keychain wallet learned about. Known
// chain IDs are replaced.
func (c *Config) AddWalletChain(kc wallet.KnownChain) {
	for i, existing := range c.WalletChains {
		if existing.ChainID == kc.ChainID {
			c.WalletChains[i] = kc
			return
		}
	}
	c.WalletChains = append(c.WalletChains, kc)
}

// --- helpers ---

func defaults(dir string) *Config {
	return &Config{
		SelectedNetwork: string(network.DefaultKey),
		Theme:           defaultTheme,
		RPCAlgorithm:    defaultAlgorithm,
		Contracts:       make(map[string]string),
		CustomRPCs:      make(map[string][]string),
		configDir:       dir,
	}
}

func readEnv() envOverrides {
	e := envOverrides{contracts: make(map[string]string)}
	if v := strings.TrimSpace(os.Getenv(EnvTestnetContract)); v != "" {
		e.contracts[string(network.Testnet)] = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMainnetContract)); v != "" {
		e.contracts[string(network.Mainnet)] = v
	}
	e.projectID = strings.TrimSpace(os.Getenv(EnvProjectID))
	return e
}
