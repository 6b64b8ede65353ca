package ui

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terauss/Monad-Voting-App/internal/controller"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/session"
	"github.com/terauss/Monad-Voting-App/internal/state"
)

type fakeController struct {
	mu    sync.Mutex
	reg   *network.Registry
	st    state.State
	calls []string
	ticks int
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeController) State() state.State { return f.st }
func (f *fakeController) Registry() *network.Registry { return f.reg }
func (f *fakeController) Subscribe(func(state.State)) (cancel func()) { return func() {} }
func (f *fakeController) Tick() { f.ticks++ }

func (f *fakeController) SelectNetwork(_ context.Context, key network.Key) error {
	f.record("select:" + string(key))
	return nil
}

func (f *fakeController) SwitchChain(_ context.Context, key network.Key) error {
	f.record("switch:" + string(key))
	return nil
}

func (f *fakeController) Vote(_ context.Context, happy bool) (common.Hash, error) {
	if happy {
		f.record("vote:happy")
	} else {
		f.record("vote:sad")
	}
	return common.Hash{}, nil
}

func (f *fakeController) Donate(context.Context) (common.Hash, error) {
	f.record("donate")
	return common.Hash{}, nil
}

func (f *fakeController) Refresh(context.Context) error {
	f.record("refresh")
	return nil
}

func (f *fakeController) Disconnect(context.Context) error {
	f.record("disconnect")
	return nil
}

func newDashboard(t *testing.T) (dashboardModel, *fakeController) {
	t.Helper()
	fc := &fakeController{
		reg: network.NewRegistry(network.Overrides{}),
		st:  state.New(network.Mainnet),
	}
	m := dashboardModel{
		opts: DashboardOptions{
			Controller:    fc,
			ConnectDirect: func(context.Context) error { fc.record("connect:direct"); return nil },
			ConnectModal:  func(context.Context) error { fc.record("connect:modal"); return nil },
		},
		st: fc.State(),
	}
	return m, fc
}

func press(t *testing.T, m dashboardModel, key string) dashboardModel {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	if cmd != nil {
		msg := cmd()
		if done, ok := msg.(actionDoneMsg); ok {
			require.NoError(t, done.err)
		}
	}
	return next.(dashboardModel)
}

func TestDashboardKeys(t *testing.T) {
	m, fc := newDashboard(t)
	for _, k := range []string{"1", "2", "c", "w", "s", "h", "n", "d", "r", "x"} {
		m = press(t, m, k)
	}
	assert.Equal(t, []string{
		"select:testnet", "select:mainnet", "connect:direct", "connect:modal",
		"switch:mainnet", "vote:happy", "vote:sad", "donate", "refresh", "disconnect",
	}, fc.calls)
}

func TestDashboardIgnoresKeysWhileBusy(t *testing.T) {
	m, fc := newDashboard(t)
	m.st.Loading = state.Loading{Wallet: true, Voting: true, Donation: true, Network: true}
	for _, k := range []string{"c", "w", "s", "h", "d"} {
		m = press(t, m, k)
	}
	assert.Empty(t, fc.calls)
}

func TestDashboardThemeToggle(t *testing.T) {
	t.Cleanup(func() { ApplyTheme(Dark.Name) })
	m, _ := newDashboard(t)
	var saved string
	m.opts.OnTheme = func(name string) { saved = name }
	press(t, m, "t")
	assert.Equal(t, "light", saved)
}

func TestDashboardTickAndState(t *testing.T) {
	m, fc := newDashboard(t)
	next, cmd := m.Update(tickMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, 0, fc.ticks, "tick runs off the event loop")

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	require.Len(t, batch, 2)
	assert.Nil(t, batch[0]())
	assert.Equal(t, 1, fc.ticks)

	st := state.New(network.Testnet)
	next, _ = next.Update(stateMsg(st))
	assert.Equal(t, network.Testnet, next.(dashboardModel).st.SelectedKey)

	next, cmd = next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.NotNil(t, cmd)
	assert.Empty(t, next.View())
}

func TestStateFeedCoalescesAndReadsLatest(t *testing.T) {
	m, fc := newDashboard(t)
	m.feed = newStateFeed()

	// Many changes while the model is busy must not block the notifier.
	for i := 0; i < 10; i++ {
		m.feed.notify(state.State{})
	}
	fc.st = state.New(network.Testnet)

	msg := m.waitForState()()
	got, ok := msg.(stateMsg)
	require.True(t, ok)
	assert.Equal(t, network.Testnet, got.SelectedKey)

	m.feed.close()
	assert.Nil(t, m.waitForState()())
}

func TestDashboardRunsAgainstLiveController(t *testing.T) {
	ctrl := controller.New(network.NewRegistry(network.Overrides{}), network.Mainnet)

	seen := make(chan struct{})
	var once sync.Once
	filter := func(m tea.Model, msg tea.Msg) tea.Msg {
		if dm, ok := m.(dashboardModel); ok {
			for _, n := range dm.st.Notices {
				if n.Text == "relay unreachable" {
					once.Do(func() { close(seen) })
				}
			}
		}
		return msg
	}
	p, stop := newDashboardProgram(DashboardOptions{Controller: ctrl},
		tea.WithInput(nil), tea.WithOutput(io.Discard), tea.WithoutRenderer(),
		tea.WithoutSignalHandler(), tea.WithFilter(filter))
	defer stop()

	result := make(chan error, 1)
	go func() {
		_, err := p.Run()
		result <- err
	}()

	ctrl.Alert("relay unreachable")
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-seen:
				p.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
				return
			case <-ticker.C:
				p.Send(tickMsg(time.Now()))
			}
		}
	}()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		p.Kill()
		t.Fatal("dashboard stopped handling messages")
	}
}

func TestRenderStatus(t *testing.T) {
	reg := network.NewRegistry(network.Overrides{})
	voter := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	st := state.New(network.Mainnet)
	out := RenderStatus(st, reg)
	assert.Contains(t, out, "Monad Mainnet")
	assert.Contains(t, out, "not connected")
	assert.Contains(t, out, "no happy voters yet")

	st = state.Connecting(st, session.KindModal, "wc:abc@2?relay-protocol=irn&symKey=00")
	assert.Contains(t, RenderStatus(st, reg), "wc:abc@2")

	st = state.AccountConnected(st, reg, session.KindDirect, voter, 10143)
	st = state.SnapshotLoaded(st, state.Snapshot{HappyVotes: 1, SadVotes: 1, CanVote: true})
	st, _ = state.Notify(st, "Please switch your wallet to Monad Mainnet", state.NoticeError, time.Now(), 5*time.Second)
	out = RenderStatus(st, reg)
	assert.Contains(t, out, "0xf39F…2266")
	assert.Contains(t, out, "wallet on Monad Testnet")
	assert.Contains(t, out, "you can vote")
	assert.Contains(t, out, "Please switch your wallet to Monad Mainnet")
	assert.NotContains(t, out, "Happy leaderboard")
}
