package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/terauss/Monad-Voting-App/internal/config"
	"github.com/terauss/Monad-Voting-App/internal/controller"
	"github.com/terauss/Monad-Voting-App/internal/metrics"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/relay"
	"github.com/terauss/Monad-Voting-App/internal/rpc"
	"github.com/terauss/Monad-Voting-App/internal/session"
	"github.com/terauss/Monad-Voting-App/internal/ui"
	"github.com/terauss/Monad-Voting-App/internal/wallet"
)

var appMetadata = relay.Metadata{
	Name:        "Monad Voting App",
	Description: "Vote happy or sad on Monad",
	URL:         "https://github.com/terauss/Monad-Voting-App",
	Icons:       []string{},
}

// newWalletManager creates a Manager backed by the config-dir JSON store and
// the OS keychain.
func newWalletManager() *wallet.Manager {
	return wallet.NewManager(
		wallet.WithStore(wallet.NewJSONStore(cfg.WalletsPath())),
		wallet.WithKeyStore(wallet.OpenKeystore(cfg.Dir())),
	)
}

// newController builds the controller for this invocation. rec may be nil.
func newController(rec *metrics.Recorder) *controller.Controller {
	return controller.New(reg, selectedKey(),
		controller.WithIntentStore(cfg),
		controller.WithMetrics(rec),
		controller.WithEventHook(rememberWalletChain),
	)
}

// rememberWalletChain persists the keychain wallet's active chain so the
// next run starts where the wallet was left.
func rememberWalletChain(ev session.Event) {
	if ev.Type != session.EventChainChanged || ev.ChainID == 0 || ev.ChainID == cfg.WalletChain {
		return
	}
	cfg.WalletChain = ev.ChainID
	if err := cfg.Save(); err != nil {
		log.WithError(err).Warn("could not save wallet chain")
	}
}

// rpcSelector picks an RPC per network with the configured algorithm.
func rpcSelector() func(ctx context.Context, net network.Config) (string, error) {
	algo, err := rpc.ParseAlgorithm(cfg.RPCAlgorithm)
	if err != nil {
		log.WithError(err).Warn("unknown rpc algorithm, using fastest")
		algo = rpc.AlgorithmFastest
	}
	return func(ctx context.Context, net network.Config) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, config.RPCSelectTimeout)
		defer cancel()
		return rpc.SelectBest(ctx, net, algo)
	}
}

// newInjectedProvider opens the keychain wallet called name (default wallet
// when empty). approve confirms every signature and chain change.
func newInjectedProvider(name string, approve wallet.Approver) (*wallet.InjectedProvider, error) {
	mgr := newWalletManager()
	if name == "" {
		name = cfg.DefaultWallet
	}
	w, err := mgr.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("no wallet to connect (add one with `monadvote wallet add`): %w", err)
	}

	chains := append([]wallet.KnownChain{wallet.DefaultChain}, cfg.WalletChains...)
	return wallet.NewInjectedProvider(w, mgr.KeyStore(),
		wallet.WithKnownChains(chains, cfg.WalletChain),
		wallet.WithApprover(approve),
		wallet.WithChainAdded(func(kc wallet.KnownChain) {
			cfg.AddWalletChain(kc)
			if err := cfg.Save(); err != nil {
				log.WithError(err).Warn("could not save added chain")
			}
		}),
	), nil
}

// newDirectSession connects through the local keychain wallet.
func newDirectSession(name string, approve wallet.Approver) (session.Session, error) {
	p, err := newInjectedProvider(name, approve)
	if err != nil {
		return nil, err
	}
	return session.NewDirect(p, session.WithRPCSelector(rpcSelector())), nil
}

// relayConfig is the relay connection for both app and wallet sides.
func relayConfig() relay.Config {
	return relay.Config{
		URL:       cfg.RelayURL,
		ProjectID: cfg.Project(),
		Metadata:  appMetadata,
	}
}

// newModalSession dials the relay and proposes both Monad chains, the
// selected one first.
func newModalSession(ctx context.Context) (session.Session, error) {
	if cfg.Project() == "" {
		return nil, fmt.Errorf("relay project id is not set (monadvote config set-project-id <id> or $%s)", config.EnvProjectID)
	}
	chains := []int64{}
	if sel, err := reg.Get(selectedKey()); err == nil {
		chains = append(chains, sel.ChainID)
	}
	for _, n := range reg.All() {
		if len(chains) == 0 || n.ChainID != chains[0] {
			chains = append(chains, n.ChainID)
		}
	}

	client, err := relay.Dial(ctx, relayConfig(), chains)
	if err != nil {
		return nil, fmt.Errorf("connecting to relay: %w", err)
	}
	return session.NewModal(client, session.WithRPCSelector(rpcSelector())), nil
}

// terminalApprover prompts on the terminal unless --yes was given.
func terminalApprover(in io.Reader, out io.Writer) wallet.Approver {
	if assumeYes {
		return wallet.AutoApprove
	}
	return ui.Approver(in, out)
}

// connect opens a session on ctrl: the keychain wallet by default, the
// relay when modal is set. For the relay it prints the pairing URI and
// waits for the remote wallet to approve.
func connect(ctx context.Context, ctrl *controller.Controller, walletName string, modal bool) error {
	if !modal {
		sess, err := newDirectSession(walletName, terminalApprover(os.Stdin, os.Stderr))
		if err != nil {
			return err
		}
		_, err = ctrl.Connect(ctx, sess)
		return err
	}

	sess, err := newModalSession(ctx)
	if err != nil {
		return err
	}
	conn, err := ctrl.Connect(ctx, sess)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, ui.Info("Paste this URI into your wallet to pair:"))
	fmt.Fprintln(os.Stderr, "  "+ui.Addr(conn.PairingURI))

	ctx, cancel := context.WithTimeout(ctx, config.PairingTimeout)
	defer cancel()
	sp := ui.NewSpinner(os.Stderr, "Waiting for wallet approval...")
	sp.Start()
	account, err := ctrl.WaitConnected(ctx)
	sp.Stop()
	if err != nil {
		_ = ctrl.Disconnect(context.Background())
		return fmt.Errorf("pairing: %w", err)
	}
	fmt.Fprintln(os.Stderr, ui.Success("Paired with "+ui.Addr(account.Hex())))
	return nil
}
