package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/relay"
	"github.com/terauss/Monad-Voting-App/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("%s\n\n", ui.StyleTitle.Render("Current Configuration"))
		fmt.Println(string(data))

		pairs := make([][2]string, 0, 3)
		for _, n := range reg.All() {
			addr := "not configured"
			if n.ContractConfigured() {
				addr = n.ContractAddress
			}
			pairs = append(pairs, [2]string{n.DisplayName() + " contract", addr})
		}
		project := "not set"
		if cfg.Project() != "" {
			project = "set"
		}
		pairs = append(pairs, [2]string{"Relay project id", project})
		fmt.Println(ui.KeyValueBlock("Effective settings", pairs))
		fmt.Println(ui.Meta("Config directory: " + cfg.Dir()))
		return nil
	},
}

var configSetContractCmd = &cobra.Command{
	Use:   "set-contract <network> [address]",
	Short: "Set the vote contract address for a network",
	Long: `Override the vote contract address for testnet or mainnet.
Omit the address to go back to the built-in one.

$MONAD_TESTNET_CONTRACT_ADDRESS and $MONAD_MAINNET_CONTRACT_ADDRESS win over this
setting when set.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := network.ParseKey(args[0])
		if err != nil {
			return err
		}
		addr := ""
		if len(args) == 2 {
			addr = args[1]
		}
		if err := cfg.SetContract(key, addr); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		if addr == "" {
			fmt.Println(ui.Success(fmt.Sprintf("Contract override for %s cleared", key)))
			return nil
		}
		fmt.Println(ui.Success(fmt.Sprintf("Contract for %s set to %s", key, ui.Addr(cfg.Contracts[string(key)]))))
		return nil
	},
}

var configSetProjectIDCmd = &cobra.Command{
	Use:   "set-project-id <id>",
	Short: "Set the relay project id used for remote wallets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.ProjectID = args[0]
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success("Relay project id saved"))
		return nil
	},
}

var configSetRelayCmd = &cobra.Command{
	Use:   "set-relay [url]",
	Short: "Set the relay websocket URL",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := relay.DefaultURL
		if len(args) == 1 {
			url = args[0]
		}
		cfg.RelayURL = url
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success("Relay set to " + url))
		return nil
	},
}

var configSetThemeCmd = &cobra.Command{
	Use:       "set-theme <light|dark>",
	Short:     "Set the colour theme",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"light", "dark"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.SetTheme(args[0]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		ui.ApplyTheme(cfg.Theme)
		fmt.Println(ui.Success(fmt.Sprintf("Theme set to %q", cfg.Theme)))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configListCmd, configSetContractCmd, configSetProjectIDCmd, configSetRelayCmd, configSetThemeCmd)
}
