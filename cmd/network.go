package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/ui"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Manage the selected Monad network",
}

var networkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the supported Monad networks",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := ui.NewTable([]ui.Column{
			{Title: "Key", Width: 9},
			{Title: "Name", Width: 15},
			{Title: "Chain ID", Width: 9},
			{Title: "Contract", Width: 14},
			{Title: "Leaderboard", Width: 12},
			{Title: "Selected", Width: 9},
		})

		selected := selectedKey()
		for _, n := range reg.All() {
			contract := ui.Err("not set")
			if n.ContractConfigured() {
				contract = ui.Addr(ui.TruncateAddr(n.ContractAddress))
			}
			board := ui.Meta("no")
			if n.HasLeaderboard {
				board = ui.Val("yes")
			}
			sel := ""
			if n.Key == selected {
				sel = ui.StyleSuccess.Render("●")
			}
			t.AddRow(ui.Row{
				string(n.Key),
				ui.ChainName(n.DisplayName()),
				fmt.Sprintf("%d", n.ChainID),
				contract,
				board,
				sel,
			})
		}

		fmt.Println(t.Render())
		return nil
	},
}

var networkUseCmd = &cobra.Command{
	Use:   "use [network]",
	Short: "Select the network to vote on",
	Long: `Select testnet or mainnet and persist it to config.

Without an argument an interactive picker opens on the current selection.

Examples:
  monadvote network use testnet
  monadvote network use`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key network.Key
		if len(args) == 1 {
			k, err := network.ParseKey(args[0])
			if err != nil {
				return fmt.Errorf("%w; run `monadvote network list`", err)
			}
			key = k
		} else {
			items := make([]ui.PickerItem, 0, 2)
			for _, n := range reg.All() {
				items = append(items, ui.PickerItem{
					Label:    n.DisplayName(),
					SubLabel: fmt.Sprintf("chain %d", n.ChainID),
					Value:    string(n.Key),
				})
			}
			picked, err := ui.PickItem("Select network", items, string(selectedKey()))
			if err != nil {
				return err
			}
			if picked == "" {
				fmt.Println(ui.Meta("Cancelled."))
				return nil
			}
			key = network.Key(picked)
		}

		ctrl := newController(nil)
		if err := ctrl.SelectNetwork(context.Background(), key); err != nil {
			return err
		}
		n, _ := reg.Get(key)
		fmt.Println(ui.Success("Selected network set to " + ui.ChainName(n.DisplayName())))
		if !n.ContractConfigured() {
			fmt.Println(ui.Warn("Contract address is not configured for the selected network"))
			fmt.Println(ui.Meta(fmt.Sprintf("  Set one with: monadvote config set-contract %s <address>", key)))
		}
		return nil
	},
}

func init() {
	networkCmd.AddCommand(networkListCmd, networkUseCmd)
}
