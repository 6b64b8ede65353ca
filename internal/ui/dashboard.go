package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/session"
	"github.com/terauss/Monad-Voting-App/internal/state"
)

const (
	actionTimeout = 5 * time.Minute
	barWidth      = 40
	maxNotices    = 3
)

// Controller is what the dashboard drives. *controller.Controller
// satisfies it.
type Controller interface {
	State() state.State
	Registry() *network.Registry
	Subscribe(fn func(state.State)) (cancel func())
	SelectNetwork(ctx context.Context, key network.Key) error
	SwitchChain(ctx context.Context, key network.Key) error
	Vote(ctx context.Context, isHappy bool) (common.Hash, error)
	Donate(ctx context.Context) (common.Hash, error)
	Refresh(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Tick()
}

// DashboardOptions wires the dashboard keys.
type DashboardOptions struct {
	Controller    Controller
	ConnectDirect func(ctx context.Context) error
	ConnectModal  func(ctx context.Context) error
	OnTheme       func(theme string)
}

// dashboardModel is the Bubble Tea model for the live voting dashboard.
type dashboardModel struct {
	opts     DashboardOptions
	st       state.State
	feed     stateFeed
	quitting bool
}

type tickMsg time.Time
type stateMsg state.State
type actionDoneMsg struct {
	name string
	err  error
}

// stateFeed wakes the dashboard when the controller state changes. It holds
// at most one pending wake-up and the model always reads the latest state,
// so controller listeners never wait on the event loop.
type stateFeed struct {
	wake chan struct{}
	done chan struct{}
}

func newStateFeed() stateFeed {
	return stateFeed{wake: make(chan struct{}, 1), done: make(chan struct{})}
}

func (f stateFeed) notify(state.State) {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f stateFeed) close() { close(f.done) }

// RunDashboard runs the dashboard until the user quits.
func RunDashboard(opts DashboardOptions) error {
	p, stop := newDashboardProgram(opts, tea.WithAltScreen())
	defer stop()
	_, err := p.Run()
	return err
}

func newDashboardProgram(opts DashboardOptions, popts ...tea.ProgramOption) (*tea.Program, func()) {
	feed := newStateFeed()
	cancel := opts.Controller.Subscribe(feed.notify)
	m := dashboardModel{opts: opts, st: opts.Controller.State(), feed: feed}
	return tea.NewProgram(m, popts...), func() {
		cancel()
		feed.close()
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(tick(time.Second), m.waitForState())
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.onKey(msg.String())

	case tickMsg:
		return m, tea.Batch(tickController(m.opts.Controller), tick(time.Second))

	case stateMsg:
		m.st = state.State(msg)
		return m, m.waitForState()

	case actionDoneMsg:
		if msg.err != nil {
			log.WithError(msg.err).WithField("action", msg.name).Debug("dashboard action failed")
		}
	}
	return m, nil
}

// waitForState blocks until the controller reports a change and delivers
// its current state.
func (m dashboardModel) waitForState() tea.Cmd {
	if m.feed.wake == nil {
		return nil
	}
	c, feed := m.opts.Controller, m.feed
	return func() tea.Msg {
		select {
		case <-feed.wake:
			return stateMsg(c.State())
		case <-feed.done:
			return nil
		}
	}
}

func (m dashboardModel) onKey(key string) (tea.Model, tea.Cmd) {
	c := m.opts.Controller
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "1":
		return m, run("select", func(ctx context.Context) error { return c.SelectNetwork(ctx, network.Testnet) })
	case "2":
		return m, run("select", func(ctx context.Context) error { return c.SelectNetwork(ctx, network.Mainnet) })
	case "c":
		if m.opts.ConnectDirect != nil && !m.st.Loading.Wallet {
			return m, run("connect", m.opts.ConnectDirect)
		}
	case "w":
		if m.opts.ConnectModal != nil && !m.st.Loading.Wallet {
			return m, run("connect", m.opts.ConnectModal)
		}
	case "s":
		if !m.st.Loading.Network {
			selected := m.st.SelectedKey
			return m, run("switch", func(ctx context.Context) error { return c.SwitchChain(ctx, selected) })
		}
	case "h", "n":
		if !m.st.Loading.Voting {
			happy := key == "h"
			return m, run("vote", func(ctx context.Context) error {
				_, err := c.Vote(ctx, happy)
				return err
			})
		}
	case "d":
		if !m.st.Loading.Donation {
			return m, run("donate", func(ctx context.Context) error {
				_, err := c.Donate(ctx)
				return err
			})
		}
	case "r":
		return m, run("refresh", c.Refresh)
	case "x":
		return m, run("disconnect", c.Disconnect)
	case "t":
		name := ToggleTheme()
		if m.opts.OnTheme != nil {
			m.opts.OnTheme(name)
		}
	}
	return m, nil
}

func (m dashboardModel) View() string {
	if m.quitting {
		return ""
	}
	return RenderStatus(m.st, m.opts.Controller.Registry()) + "\n" + keyHelp()
}

// RenderStatus renders the whole client state: network, wallet, tally,
// eligibility, leaderboard and live notices.
func RenderStatus(st state.State, reg *network.Registry) string {
	var sb strings.Builder
	sb.WriteString(Banner() + "\n")

	sb.WriteString(networkLine(st, reg) + "\n")
	sb.WriteString(walletLine(st) + "\n\n")

	sb.WriteString(VoteBar(st.Snapshot, barWidth) + "\n")
	sb.WriteString(Tally(st.Snapshot) + "\n")
	sb.WriteString(Eligibility(st) + "\n")

	if net, err := reg.Get(state.DisplayKey(st, reg)); err == nil && net.HasLeaderboard {
		sb.WriteString("\n" + StyleHeader.Render("Happy leaderboard") + "\n")
		sb.WriteString(Leaderboard(st.Leaderboard, st.Account.Hex()))
	}

	if st.LastTxHash != "" {
		sb.WriteString("\n" + Meta("last tx: ") + Addr(st.LastTxHash) + "\n")
	}

	notices := st.Notices
	if len(notices) > maxNotices {
		notices = notices[len(notices)-maxNotices:]
	}
	if len(notices) > 0 {
		sb.WriteString("\n")
	}
	for _, n := range notices {
		sb.WriteString(Notice(n) + "\n")
	}
	return sb.String()
}

func networkLine(st state.State, reg *network.Registry) string {
	label := func(k network.Key) string {
		if n, err := reg.Get(k); err == nil {
			return n.DisplayName()
		}
		return "unknown network"
	}

	line := Meta("network: ") + ChainName(label(st.SelectedKey))
	if !st.HasAccount() {
		return line
	}
	switch st.NetworkCorrect {
	case state.Correct:
		line += "  " + Success("wallet on network")
	case state.Wrong:
		if st.ActiveKey == "" {
			line += "  " + Err(fmt.Sprintf("wallet on unsupported chain %d", st.WalletChainID))
		} else {
			line += "  " + Err("wallet on "+label(st.ActiveKey))
		}
	}
	if st.Loading.Network {
		line += "  " + Meta("switching…")
	}
	return line
}

func walletLine(st state.State) string {
	switch st.Phase {
	case state.PhaseConnecting:
		if st.PairingURI != "" {
			return Meta("scan or paste into your wallet:\n") + Addr(st.PairingURI)
		}
		return Meta("connecting wallet…")
	case state.PhaseConnected:
		path := "keychain"
		if st.WalletType == session.KindModal {
			path = "remote"
		}
		return Meta("wallet: ") + Addr(TruncateAddr(st.Account.Hex())) + Meta(" ("+path+")")
	}
	return Meta("wallet: not connected")
}

func keyHelp() string {
	return Meta("[1/2] testnet/mainnet  [c] connect  [w] connect remote  [s] switch  " +
		"[h/n] vote happy/sad  [d] donate 10 MON  [r] refresh  [x] disconnect  [t] theme  [q] quit")
}

func run(name string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{name: name, err: fn(ctx)}
	}
}

// tickController advances the cooldown off the event loop. The resulting
// state arrives through the feed.
func tickController(c Controller) tea.Cmd {
	return func() tea.Msg {
		c.Tick()
		return nil
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
