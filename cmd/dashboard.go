package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/terauss/Monad-Voting-App/internal/controller"
	"github.com/terauss/Monad-Voting-App/internal/metrics"
	"github.com/terauss/Monad-Voting-App/internal/ui"
	"github.com/terauss/Monad-Voting-App/internal/wallet"
)

var metricsAddr string

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"ui"},
	Short:   "Live voting dashboard",
	Long: `Open a full-screen dashboard for the selected network.

The dashboard follows the wallet: account and chain changes are picked up
as they happen and the tally refreshes once the wallet is on the selected
network. A key press in the dashboard is the approval for the keychain
wallet; no separate prompt is shown.

Keyboard controls:
  1 / 2   select testnet / mainnet
  c       connect the keychain wallet
  w       pair a remote wallet over the relay
  s       switch the wallet to the selected network
  h / n   vote happy / sad
  d       donate
  r       refresh
  x       disconnect
  t       toggle light/dark theme
  q       quit

Logs go to the config directory while the dashboard runs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logFile, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer logFile.Close()
		setupLogging(logFile)

		rec := metrics.New()
		if metricsAddr != "" {
			srv := serveMetrics(metricsAddr, rec)
			defer srv.Shutdown(context.Background()) //nolint:errcheck
		}

		ctrl := newController(rec)
		defer ctrl.Disconnect(context.Background()) //nolint:errcheck

		return ui.RunDashboard(ui.DashboardOptions{
			Controller: ctrl,
			ConnectDirect: func(ctx context.Context) error {
				sess, err := newDirectSession(walletFlag, wallet.AutoApprove)
				if err != nil {
					notifyError(ctrl, err)
					return err
				}
				_, err = ctrl.Connect(ctx, sess)
				return err
			},
			ConnectModal: func(ctx context.Context) error {
				sess, err := newModalSession(ctx)
				if err != nil {
					notifyError(ctrl, err)
					return err
				}
				_, err = ctrl.Connect(ctx, sess)
				return err
			},
			OnTheme: func(name string) {
				if err := cfg.SetTheme(name); err != nil {
					return
				}
				if err := cfg.Save(); err != nil {
					log.WithError(err).Warn("could not save theme")
				}
			},
		})
	},
}

// notifyError surfaces a setup failure that happened before the controller
// got a session.
func notifyError(ctrl *controller.Controller, err error) {
	log.WithError(err).Warn("wallet connection not started")
	ctrl.Alert(err.Error())
}

// serveMetrics exposes rec on addr under /metrics.
func serveMetrics(addr string, rec *metrics.Recorder) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).WithField("addr", addr).Error("metrics server stopped")
		}
	}()
	log.WithField("addr", addr).Info("serving metrics")
	return srv
}

func init() {
	dashboardCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464)")
	dashboardCmd.Flags().StringVarP(&walletFlag, "wallet", "w", "", "keychain wallet for [c] (default: the default wallet)")
}
