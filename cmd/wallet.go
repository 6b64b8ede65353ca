package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/terauss/Monad-Voting-App/internal/config"
	"github.com/terauss/Monad-Voting-App/internal/relay"
	"github.com/terauss/Monad-Voting-App/internal/ui"
	"github.com/terauss/Monad-Voting-App/internal/wallet"
)

var walletKeyFlag string

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage keychain wallets",
}

var walletAddCmd = &cobra.Command{
	Use:   "add <name> [address]",
	Short: "Add a wallet",
	Long: `Add a watch-only wallet by address, or a signing wallet with --key.

Signing keys are stored in the OS keychain. Set $MONADVOTE_PRIVATE_KEY to
use a key without storing it.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		mgr := newWalletManager()

		if walletKeyFlag != "" {
			w, err := mgr.AddWithKey(name, walletKeyFlag)
			if err != nil {
				return err
			}
			fmt.Println(ui.Success(fmt.Sprintf("Signing wallet %q added: %s", name, ui.Addr(w.Address))))
			fmt.Println(ui.Meta(fmt.Sprintf("Set as default with: monadvote wallet use %s", name)))
			return nil
		}

		if len(args) < 2 {
			return fmt.Errorf("address required for watch-only wallet\n  Usage: monadvote wallet add <name> <address>\n  Or for signing: monadvote wallet add <name> --key <private-key>")
		}
		w, err := mgr.AddWatchOnly(name, args[1])
		if err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Watch-only wallet %q added: %s", name, ui.Addr(w.Address))))
		fmt.Println(ui.Meta("Watch-only wallets can read votes but not vote or donate."))
		return nil
	},
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all wallets",
	RunE: func(cmd *cobra.Command, args []string) error {
		wallets, err := newWalletManager().List()
		if err != nil {
			return err
		}
		if len(wallets) == 0 {
			fmt.Println(ui.Info("No wallets configured yet."))
			fmt.Println(ui.Meta("Add one with: monadvote wallet generate <name>"))
			return nil
		}

		t := ui.NewTable([]ui.Column{
			{Title: "Name", Width: 16},
			{Title: "Address", Width: 44},
			{Title: "Type", Width: 12},
			{Title: "Default", Width: 8},
		})
		for _, w := range wallets {
			def := ""
			if w.IsDefault {
				def = ui.StyleSuccess.Render("✓")
			}
			t.AddRow(ui.Row{
				ui.Val(w.Name),
				ui.Addr(w.Address),
				ui.Meta(walletTypeLabel(w.Type)),
				def,
			})
		}
		fmt.Println(t.Render())
		fmt.Println(ui.Meta(fmt.Sprintf("%d wallet(s) configured", len(wallets))))
		return nil
	},
}

var walletRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a wallet and its stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if !assumeYes && !ui.ConfirmDanger(os.Stdin, os.Stdout, fmt.Sprintf("Remove wallet %q?", name)) {
			fmt.Println(ui.Meta("Cancelled."))
			return nil
		}
		if err := newWalletManager().Remove(name); err != nil {
			return err
		}
		if cfg.DefaultWallet == name {
			cfg.DefaultWallet = ""
			if err := cfg.Save(); err != nil {
				return err
			}
		}
		fmt.Println(ui.Success(fmt.Sprintf("Wallet %q removed.", name)))
		return nil
	},
}

var walletUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the default wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := newWalletManager().SetDefault(name); err != nil {
			return err
		}
		cfg.DefaultWallet = name
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Default wallet set to %q.", name)))
		return nil
	},
}

var walletGenerateCmd = &cobra.Command{
	Use:   "generate <name>",
	Short: "Generate a new signing wallet",
	Long: `Generate a fresh keypair and store the private key in the OS keychain.

Fund the printed address with MON before voting or donating.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := newWalletManager().Generate(args[0])
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Printf("  %s  %s\n", ui.Meta("Wallet :"), ui.Val(w.Name))
		fmt.Printf("  %s  %s\n\n", ui.Meta("Address:"), ui.Addr(w.Address))
		fmt.Println(ui.Success("Key stored in the OS keychain."))
		return nil
	},
}

var walletPairCmd = &cobra.Command{
	Use:   "pair <uri>",
	Short: "Serve a keychain wallet to a remote app over the relay",
	Long: `Answer a relay pairing URI with a keychain wallet, so an app paired
with 'monadvote status --modal' (or any relay app) can use it.

Every signature and chain change is confirmed on this terminal. Press
Ctrl+C to end the session.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Project() == "" {
			return fmt.Errorf("relay project id is not set (monadvote config set-project-id <id> or $%s)", config.EnvProjectID)
		}
		provider, err := newInjectedProvider(walletFlag, terminalApprover(os.Stdin, os.Stdout))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		resp, err := relay.NewResponder(ctx, relayConfig(), provider)
		if err != nil {
			return fmt.Errorf("connecting to relay: %w", err)
		}
		defer resp.Close()

		if err := resp.Pair(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println(ui.Info("Waiting for the app's session proposal..."))
		return servePairing(ctx, resp)
	},
}

// servePairing reports the settled session and blocks until it ends or ctx
// is cancelled.
func servePairing(ctx context.Context, resp *relay.Responder) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	announced := false
	for {
		select {
		case <-resp.Done():
			fmt.Println(ui.Info("Session ended."))
			return nil
		case <-ctx.Done():
			fmt.Println()
			if err := resp.Disconnect(context.Background()); err != nil {
				return err
			}
			fmt.Println(ui.Success("Disconnected."))
			return nil
		case <-ticker.C:
			if announced {
				continue
			}
			if info, ok := resp.Session(); ok {
				announced = true
				name := info.Peer.Name
				if name == "" {
					name = "app"
				}
				fmt.Println(ui.Success(fmt.Sprintf("Paired with %s (session expires %s)", ui.Val(name), info.Expiry.Format(time.RFC822))))
			}
		}
	}
}

// walletTypeLabel converts an internal wallet type to a user-friendly label.
func walletTypeLabel(t string) string {
	switch t {
	case wallet.TypeSigning:
		return "can vote"
	default:
		return t // "watch-only" is already user-friendly
	}
}

func init() {
	walletAddCmd.Flags().StringVar(&walletKeyFlag, "key", "", "private key for a signing wallet (stored in the OS keychain)")
	walletPairCmd.Flags().StringVarP(&walletFlag, "wallet", "w", "", "keychain wallet to serve (default: the default wallet)")
	walletCmd.AddCommand(walletAddCmd, walletListCmd, walletRemoveCmd, walletUseCmd, walletGenerateCmd, walletPairCmd)
}
