package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"github.com/terauss/Monad-Voting-App/internal/controller"
	"github.com/terauss/Monad-Voting-App/internal/state"
	"github.com/terauss/Monad-Voting-App/internal/ui"
	"github.com/terauss/Monad-Voting-App/internal/wallet"
)

var (
	walletFlag string
	modalFlag  bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Connect a wallet and show votes, eligibility and the leaderboard",
	Long: `Connect the keychain wallet (or pair a remote one with --modal), read the
vote contract on the selected network and print the result.

Without any wallet configured only the network selection is shown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		ctrl := newController(nil)
		defer ctrl.Disconnect(ctx) //nolint:errcheck

		if err := connect(ctx, ctrl, walletFlag, modalFlag); err != nil {
			if !errors.Is(err, wallet.ErrNoWallets) {
				return err
			}
			fmt.Println(ui.Info("No wallet configured. Add one with: monadvote wallet add <name> <address>"))
		}

		fmt.Println(ui.RenderStatus(ctrl.State(), reg))
		return nil
	},
}

// echoNotices prints every new notice to stderr until cancel is called.
func echoNotices(ctrl *controller.Controller) (cancel func()) {
	var mu sync.Mutex
	seen := make(map[string]bool)
	return ctrl.Subscribe(func(st state.State) {
		mu.Lock()
		defer mu.Unlock()
		for _, n := range st.Notices {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			fmt.Fprintln(os.Stderr, ui.Notice(n))
		}
	})
}

// connectForWrite connects and, when the wallet sits on the wrong chain,
// offers to switch it to the selected network.
func connectForWrite(ctx context.Context, ctrl *controller.Controller) error {
	if err := connect(ctx, ctrl, walletFlag, modalFlag); err != nil {
		return err
	}
	st := ctrl.State()
	if st.NetworkCorrect == state.Correct {
		return nil
	}
	n, err := reg.Get(st.SelectedKey)
	if err != nil {
		return err
	}
	if !assumeYes && !ui.Confirm(os.Stdin, os.Stderr, fmt.Sprintf("Switch wallet to %s?", n.DisplayName())) {
		return controller.ErrWrongNetwork
	}
	return ctrl.SwitchChain(ctx, st.SelectedKey)
}

func addSessionFlags(c *cobra.Command) {
	c.Flags().StringVarP(&walletFlag, "wallet", "w", "", "keychain wallet to connect (default: the default wallet)")
	c.Flags().BoolVar(&modalFlag, "modal", false, "pair a remote wallet over the relay instead")
}

func init() {
	addSessionFlags(statusCmd)
}
