package cmd

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/terauss/Monad-Voting-App/internal/config"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/ui"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/terauss/Monad-Voting-App/cmd.Version=1.2.3" .
var Version = "0.3.0"

var (
	cfgDir    string
	cfg       *config.Config
	reg       *network.Registry
	verbose   bool
	assumeYes bool
	testnet   bool
	mainnet   bool
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "monadvote",
	Short: "Vote happy or sad on Monad",
	Long: `monadvote records a happy or sad vote on the Monad voting contract.

  Connect a wallet from the local keychain or pair a remote wallet over the
  relay, vote once per cooldown, donate to the project and follow the happy
  leaderboard on mainnet.

Global flags --testnet and --mainnet override the selected network for a
single invocation. Without either flag the persisted selection is used
(default: mainnet). Persist with: monadvote network use <network>`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config (skip for commands that don't need it).
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		setupLogging(os.Stderr)

		var err error
		cfg, err = config.Load(cfgDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		reg = network.NewRegistry(cfg.Overrides())
		ui.ApplyTheme(cfg.Theme)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Err(err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", "", "config directory (default: $"+config.EnvConfigDir+" or ~/.monadvote)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "approve keychain wallet requests without prompting")
	rootCmd.PersistentFlags().BoolVar(&testnet, "testnet", false, "use Monad Testnet for this invocation")
	rootCmd.PersistentFlags().BoolVar(&mainnet, "mainnet", false, "use Monad Mainnet for this invocation")
	rootCmd.MarkFlagsMutuallyExclusive("testnet", "mainnet")

	// Register all sub-commands.
	rootCmd.AddCommand(
		initCmd,
		networkCmd,
		walletCmd,
		statusCmd,
		voteCmd,
		donateCmd,
		switchCmd,
		dashboardCmd,
		rpcCmd,
		configCmd,
	)
}

// selectedKey is the network for this invocation: a --testnet/--mainnet
// flag, else the persisted selection.
func selectedKey() network.Key {
	switch {
	case testnet:
		return network.Testnet
	case mainnet:
		return network.Mainnet
	}
	return cfg.Selected()
}

// setupLogging sends logrus output to out. Warnings only unless --verbose.
func setupLogging(out io.Writer) {
	log.SetOutput(out)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	log.SetLevel(log.WarnLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}
