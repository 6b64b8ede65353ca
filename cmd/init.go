package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/ui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactive setup wizard",
	Long:  "Launch the interactive setup wizard to configure monadvote.",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(ui.Banner())

		result, err := ui.RunWizard()
		if err != nil {
			return err
		}
		if result == nil {
			fmt.Println(ui.Meta("Cancelled."))
			return nil
		}

		if result.Theme != "" {
			if err := cfg.SetTheme(result.Theme); err != nil {
				return err
			}
		}
		if result.RPCAlgorithm != "" {
			cfg.RPCAlgorithm = result.RPCAlgorithm
		}
		if result.Network != "" {
			key, err := network.ParseKey(result.Network)
			if err != nil {
				return err
			}
			// saves the rest of the config too
			if err := newController(nil).SelectNetwork(context.Background(), key); err != nil {
				return err
			}
		} else if err := cfg.Save(); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		if result.WalletAddress != "" {
			mgr := newWalletManager()
			if _, err := mgr.AddWatchOnly(result.WalletName, result.WalletAddress); err != nil {
				fmt.Println(ui.Warn(fmt.Sprintf("Could not add wallet: %v", err)))
			}
		}

		fmt.Println(ui.Success("monadvote configured! Run `monadvote --help` to explore commands."))
		return nil
	},
}
