package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/terauss/Monad-Voting-App/internal/config"
	"github.com/terauss/Monad-Voting-App/internal/controller"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/price"
	"github.com/terauss/Monad-Voting-App/internal/state"
	"github.com/terauss/Monad-Voting-App/internal/ui"
)

var voteCmd = &cobra.Command{
	Use:       "vote <happy|sad>",
	Short:     "Cast a happy or sad vote",
	Long:      "Connect a wallet, switch it to the selected network if needed and record a vote.\nOne vote per account per cooldown period.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"happy", "sad"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var happy bool
		switch strings.ToLower(args[0]) {
		case "happy", ":)":
			happy = true
		case "sad", ":(":
		default:
			return fmt.Errorf("unknown vote %q (expected happy or sad)", args[0])
		}

		return withWriteSession(func(ctx context.Context, ctrl *controller.Controller) error {
			st := ctrl.State()
			if !st.Snapshot.CanVote && st.Snapshot.Cooldown != nil && *st.Snapshot.Cooldown > 0 {
				fmt.Println(ui.Eligibility(st))
				return nil
			}
			hash, err := runSpinner("Waiting for vote confirmation...", func() (common.Hash, error) {
				return ctrl.Vote(ctx, happy)
			})
			if err != nil {
				return err
			}
			printTx(ctrl.State(), hash)
			fmt.Println(ui.Tally(ctrl.State().Snapshot))
			return nil
		})
	},
}

var donateCmd = &cobra.Command{
	Use:   "donate",
	Short: fmt.Sprintf("Donate %s MON to the project", controller.DonationAmount),
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWriteSession(func(ctx context.Context, ctrl *controller.Controller) error {
			fmt.Println(ui.Meta(fmt.Sprintf("Sending %s MON%s to %s", controller.DonationAmount, donationQuote(ctx), controller.DonationRecipient)))
			hash, err := runSpinner("Waiting for donation confirmation...", func() (common.Hash, error) {
				return ctrl.Donate(ctx)
			})
			if err != nil {
				return err
			}
			printTx(ctrl.State(), hash)
			return nil
		})
	},
}

var switchCmd = &cobra.Command{
	Use:   "switch [network]",
	Short: "Switch the connected wallet to a Monad network",
	Long: `Ask the wallet to move to the given network (default: the selected one).
The keychain wallet adds the network first when it does not know it yet.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := selectedKey()
		if len(args) == 1 {
			k, err := network.ParseKey(args[0])
			if err != nil {
				return err
			}
			key = k
		}

		ctx := context.Background()
		ctrl := newController(nil)
		defer ctrl.Disconnect(ctx) //nolint:errcheck
		if err := connect(ctx, ctrl, walletFlag, modalFlag); err != nil {
			return err
		}
		cancel := echoNotices(ctrl)
		defer cancel()

		_, err := runSpinner("Switching network...", func() (common.Hash, error) {
			return common.Hash{}, ctrl.SwitchChain(ctx, key)
		})
		return err
	},
}

// withWriteSession connects, makes sure the wallet is on the selected
// network and runs fn with notices echoed to stderr.
func withWriteSession(fn func(ctx context.Context, ctrl *controller.Controller) error) error {
	ctx, cancelTimeout := context.WithTimeout(context.Background(), config.TxConfirmTimeout+config.PairingTimeout)
	defer cancelTimeout()

	ctrl := newController(nil)
	defer ctrl.Disconnect(context.Background()) //nolint:errcheck

	cancel := echoNotices(ctrl)
	defer cancel()

	if err := connectForWrite(ctx, ctrl); err != nil {
		return err
	}
	return fn(ctx, ctrl)
}

// donationQuote prices the donation on mainnet, e.g. " (≈ 0.41 USD)". Any
// failure just drops the quote.
func donationQuote(ctx context.Context) string {
	if selectedKey() != network.Mainnet {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	f := price.NewFetcher("usd")
	v, err := f.Quote(ctx, price.MonadCoinID, decimal.RequireFromString(controller.DonationAmount))
	if err != nil {
		log.WithError(err).Debug("no donation quote")
		return ""
	}
	return fmt.Sprintf(" (≈ %s %s)", v.StringFixed(2), strings.ToUpper(f.Currency()))
}

// runSpinner shows msg while fn runs. The keychain wallet prompts on the
// same terminal, so without --yes the spinner stays off.
func runSpinner(msg string, fn func() (common.Hash, error)) (common.Hash, error) {
	if !assumeYes && !modalFlag {
		fmt.Fprintln(os.Stderr, ui.Meta(msg))
		return fn()
	}
	sp := ui.NewSpinner(os.Stderr, msg)
	sp.Start()
	hash, err := fn()
	sp.Stop()
	return hash, err
}

func printTx(st state.State, hash common.Hash) {
	fmt.Println(ui.Meta("tx: ") + ui.Addr(hash.Hex()))
	if n, err := reg.Get(state.ActionKey(st)); err == nil && n.ExplorerURL != "" {
		fmt.Println(ui.Meta("explorer: ") + n.TxURL(hash.Hex()))
	}
}

func init() {
	addSessionFlags(voteCmd)
	addSessionFlags(donateCmd)
	addSessionFlags(switchCmd)
}
