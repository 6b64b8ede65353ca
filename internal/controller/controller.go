// Package controller reconciles the connected wallet with the selected
// network and drives contract reads and writes. All state lives in one
// state.State guarded by a mutex; network calls run outside the lock and
// the last writer wins.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"github.com/terauss/Monad-Voting-App/internal/chain"
	"github.com/terauss/Monad-Voting-App/internal/contract"
	"github.com/terauss/Monad-Voting-App/internal/metrics"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/session"
	"github.com/terauss/Monad-Voting-App/internal/state"
)

// Precondition and classification errors. Call failures are wrapped around
// these where they apply.
var (
	ErrNoWallet              = errors.New("connect wallet first")
	ErrUserRejected          = errors.New("request rejected in wallet")
	ErrWrongNetwork          = errors.New("wallet is on the wrong network")
	ErrContractNotConfigured = errors.New("contract address not configured")
	ErrUnsupportedNetwork    = errors.New("unsupported network")
)

const (
	// NoticeTTL is how long a notice stays up.
	NoticeTTL = 5 * time.Second
	// DonationRecipient receives Donate transfers.
	DonationRecipient = "0x1f1dd9c30181e8e49D5537Bc3E81c33896e778Bd"
	// DonationAmount is the fixed donation in MON.
	DonationAmount = "10"
)

// IntentStore persists the selected network. *config.Config satisfies it.
type IntentStore interface {
	SaveSelectedNetwork(key network.Key) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithIntentStore persists SelectNetwork calls.
func WithIntentStore(s IntentStore) Option {
	return func(c *Controller) { c.store = s }
}

// WithMetrics records reads, writes and session events.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Controller) { c.rec = r }
}

// WithNoticeTTL overrides NoticeTTL.
func WithNoticeTTL(d time.Duration) Option {
	return func(c *Controller) { c.ttl = d }
}

// WithClock overrides time.Now for notice deadlines.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithEventHook is called after each wallet event has been handled.
func WithEventHook(fn func(session.Event)) Option {
	return func(c *Controller) { c.hook = fn }
}

// Controller is the wallet/network reconciliation controller.
type Controller struct {
	reg   *network.Registry
	store IntentStore
	rec   *metrics.Recorder
	ttl   time.Duration
	now   func() time.Time
	hook  func(session.Event)

	mu           sync.Mutex
	st           state.State
	sess         session.Session
	connected    chan struct{}
	listeners    map[uint64]func(state.State)
	nextListener uint64
}

// New creates a controller with selected as the initial intent.
func New(reg *network.Registry, selected network.Key, opts ...Option) *Controller {
	if _, err := reg.Get(selected); err != nil {
		selected = network.DefaultKey
	}
	c := &Controller{
		reg:       reg,
		ttl:       NoticeTTL,
		now:       time.Now,
		st:        state.New(selected),
		listeners: make(map[uint64]func(state.State)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Registry returns the network registry.
func (c *Controller) Registry() *network.Registry { return c.reg }

// State returns a copy of the current state.
func (c *Controller) State() state.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

// Session returns the active session, or nil.
func (c *Controller) Session() session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// Subscribe registers fn to receive every new state. fn runs on the
// goroutine that made the change and must not block.
func (c *Controller) Subscribe(fn func(state.State)) (cancel func()) {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Controller) update(fn func(state.State) state.State) state.State {
	c.mu.Lock()
	c.st = fn(c.st)
	st := c.st
	ls := make([]func(state.State), 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	c.mu.Unlock()
	for _, l := range ls {
		l(st)
	}
	return st
}

func (c *Controller) notify(kind state.NoticeKind, format string, args ...interface{}) {
	text := fmt.Sprintf(format, args...)
	var n state.Notice
	c.update(func(s state.State) state.State {
		s, n = state.Notify(s, text, kind, c.now(), c.ttl)
		return s
	})
	c.rec.Notice(string(kind))

	entry := log.WithField("notice", n.ID)
	switch kind {
	case state.NoticeError:
		entry.Warn(text)
	default:
		entry.Info(text)
	}

	id := n.ID
	time.AfterFunc(c.ttl, func() {
		c.update(func(s state.State) state.State { return state.Dismiss(s, id) })
	})
}

func (c *Controller) setLoading(flag state.LoadingFlag, on bool) {
	c.update(func(s state.State) state.State { return state.SetLoading(s, flag, on) })
}

func (c *Controller) current() (session.Session, state.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess, c.st
}

func (c *Controller) label(key network.Key) string {
	n, err := c.reg.Get(key)
	if err != nil {
		return string(key)
	}
	return n.Label
}

// SelectNetwork records key as the user's intent. With a connected account
// the wallet is asked to switch to it.
func (c *Controller) SelectNetwork(ctx context.Context, key network.Key) error {
	net, err := c.reg.Get(key)
	if err != nil {
		c.notify(state.NoticeError, "Unsupported network")
		return fmt.Errorf("%w: %q", ErrUnsupportedNetwork, key)
	}
	if c.store != nil {
		if err := c.store.SaveSelectedNetwork(key); err != nil {
			log.WithError(err).Warn("could not persist selected network")
		}
	}

	prev := c.State().NetworkCorrect
	st := c.update(func(s state.State) state.State { return state.SelectNetwork(s, key) })
	sess := c.Session()
	if sess == nil || !st.HasAccount() {
		return nil
	}
	// A selection that already matches the wallet chain produces no
	// chainChanged, so the read has to be forced.
	force := prev != state.Correct && st.NetworkCorrect == state.Correct
	return c.switchTo(ctx, sess, net, force)
}

// SwitchChain asks the connected wallet to move to key.
func (c *Controller) SwitchChain(ctx context.Context, key network.Key) error {
	net, err := c.reg.Get(key)
	if err != nil {
		c.notify(state.NoticeError, "Unsupported network")
		return fmt.Errorf("%w: %q", ErrUnsupportedNetwork, key)
	}
	sess, st := c.current()
	if sess == nil || !st.HasAccount() {
		c.notify(state.NoticeError, "Connect wallet first")
		return ErrNoWallet
	}
	return c.switchTo(ctx, sess, net, false)
}

func (c *Controller) switchTo(ctx context.Context, sess session.Session, net network.Config, force bool) error {
	c.setLoading(state.LoadingNetwork, true)
	defer c.setLoading(state.LoadingNetwork, false)

	err := sess.SwitchChain(ctx, net)
	if errors.Is(err, session.ErrSwitchUnsupported) {
		c.notify(state.NoticeInfo, "Please switch networks in your wallet")
		return err
	}
	if err != nil {
		c.notify(state.NoticeError, "Failed to switch network")
		return fmt.Errorf("switching to %s: %w", net.Key, classify(err))
	}
	if !c.isCurrent(sess) {
		return nil
	}

	refresh := c.observeChain(sess.ChainID())
	st := c.State()
	if force && st.NetworkCorrect == state.Correct {
		refresh = true
	}
	c.notify(state.NoticeSuccess, "Switched to Monad %s", net.Label)
	if refresh {
		_ = c.refresh(ctx, sess, state.ActionKey(st))
	}
	return nil
}

// observeChain records a wallet chain and reports whether a refresh is due:
// the wallet is now on the selected chain and either the chain or the
// verdict changed.
func (c *Controller) observeChain(chainID int64) bool {
	var prev state.State
	st := c.update(func(s state.State) state.State {
		prev = s
		return state.ChainReported(s, c.reg, chainID)
	})
	if st.NetworkCorrect != state.Correct {
		return false
	}
	return prev.WalletChainID != chainID || prev.NetworkCorrect != state.Correct
}

func (c *Controller) isCurrent(sess session.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess == sess
}

// Connect opens sess. The direct path returns once the account is known
// and one read has run. The modal path returns the pairing URI; the account
// arrives later (see WaitConnected).
func (c *Controller) Connect(ctx context.Context, sess session.Session) (session.Connection, error) {
	if old := c.Session(); old != nil {
		_ = c.teardown(ctx, old)
	}

	kind := sess.Kind()
	c.update(func(s state.State) state.State {
		s = state.Connecting(state.Reset(s), kind, "")
		return state.SetLoading(s, state.LoadingWallet, true)
	})
	defer c.setLoading(state.LoadingWallet, false)

	conn, err := sess.Connect(ctx)
	if err != nil {
		c.update(state.Reset)
		c.rec.Session(kind.String(), "connect_failed")
		c.notify(state.NoticeError, "Failed to connect wallet")
		return conn, fmt.Errorf("connecting %s wallet: %w", kind, classify(err))
	}

	connected := make(chan struct{})
	c.mu.Lock()
	c.sess = sess
	c.connected = connected
	c.mu.Unlock()
	go c.pump(sess)

	if !conn.Connected() {
		c.update(func(s state.State) state.State { return state.Connecting(s, kind, conn.PairingURI) })
		log.WithField("path", kind.String()).Info("waiting for wallet to approve pairing")
		return conn, nil
	}

	c.rec.Session(kind.String(), "connected")
	st := c.update(func(s state.State) state.State {
		return state.AccountConnected(s, c.reg, kind, conn.Account, conn.ChainID)
	})
	c.mu.Lock()
	closeOnce(connected)
	c.mu.Unlock()
	log.WithFields(log.Fields{"account": conn.Account.Hex(), "chain": conn.ChainID}).Info("wallet connected")

	if st.NetworkCorrect != state.Correct {
		c.notify(state.NoticeError, "Please switch your wallet to Monad %s", c.label(st.SelectedKey))
		return conn, nil
	}
	if err := c.refresh(ctx, sess, state.ActionKey(st)); err != nil {
		return conn, nil
	}
	c.notify(state.NoticeSuccess, "Wallet connected")
	return conn, nil
}

// WaitConnected blocks until the current session reports an account.
func (c *Controller) WaitConnected(ctx context.Context) (common.Address, error) {
	c.mu.Lock()
	ch := c.connected
	c.mu.Unlock()
	if ch == nil {
		return common.Address{}, ErrNoWallet
	}
	select {
	case <-ch:
	case <-ctx.Done():
		return common.Address{}, ctx.Err()
	}
	st := c.State()
	if !st.HasAccount() {
		return common.Address{}, fmt.Errorf("pairing ended before a wallet connected: %w", ErrNoWallet)
	}
	return st.Account, nil
}

// Disconnect ends the session, if any, and clears every piece of
// connection state.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	var err error
	if sess != nil {
		err = c.teardown(ctx, sess)
	} else {
		c.update(state.Reset)
	}
	c.notify(state.NoticeInfo, "Wallet disconnected")
	return err
}

func (c *Controller) teardown(ctx context.Context, sess session.Session) error {
	var waiting chan struct{}
	c.mu.Lock()
	if c.sess == sess {
		c.sess = nil
		waiting = c.connected
		c.connected = nil
	}
	c.mu.Unlock()

	err := sess.Disconnect(ctx)
	if err != nil {
		log.WithError(err).Warn("wallet session did not close cleanly")
	}
	c.rec.Session(sess.Kind().String(), "disconnected")
	c.update(state.Reset)

	// Release WaitConnected; it sees no account and reports the pairing as
	// ended.
	c.mu.Lock()
	closeOnce(waiting)
	c.mu.Unlock()
	return err
}

// closeOnce closes ch unless it is nil or already closed. Callers hold c.mu.
func closeOnce(ch chan struct{}) {
	if ch == nil {
		return
	}
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func (c *Controller) pump(sess session.Session) {
	for ev := range sess.Events() {
		if c.isCurrent(sess) {
			c.handle(sess, ev)
		}
		if c.hook != nil {
			c.hook(ev)
		}
	}
}

func (c *Controller) handle(sess session.Session, ev session.Event) {
	ctx := context.Background()
	log.WithFields(log.Fields{"event": ev.Type.String(), "path": sess.Kind().String(), "chain": ev.ChainID}).Debug("wallet event")

	switch ev.Type {
	case session.EventConnected:
		acc, ok := ev.Account()
		if !ok {
			return
		}
		c.rec.Session(sess.Kind().String(), "connected")
		st := c.update(func(s state.State) state.State {
			return state.AccountConnected(s, c.reg, sess.Kind(), acc, ev.ChainID)
		})
		c.mu.Lock()
		closeOnce(c.connected)
		c.mu.Unlock()

		switch {
		case st.ActiveKey == "":
			c.notify(state.NoticeError, "Unsupported network selected in wallet")
		case st.NetworkCorrect == state.Correct:
			c.notify(state.NoticeSuccess, "WalletConnect connected to Monad %s", c.label(st.ActiveKey))
			_ = c.refresh(ctx, sess, state.ActionKey(st))
		default:
			c.notify(state.NoticeError, "Please switch to Monad %s", c.label(st.SelectedKey))
		}

	case session.EventAccountsChanged:
		acc, ok := ev.Account()
		if !ok {
			_ = c.Disconnect(ctx)
			return
		}
		st := c.update(func(s state.State) state.State { return state.AccountChanged(s, acc) })
		if st.NetworkCorrect == state.Correct {
			_ = c.refresh(ctx, sess, state.ActionKey(st))
		}

	case session.EventChainChanged:
		if c.observeChain(ev.ChainID) {
			_ = c.refresh(ctx, sess, state.ActionKey(c.State()))
		}

	case session.EventDisconnected:
		_ = c.teardown(ctx, sess)
		c.notify(state.NoticeInfo, "Wallet disconnected")
	}
}

// RefreshVoteState reads tallies, eligibility, cooldown and (where
// available) the leaderboard for key into the state.
func (c *Controller) RefreshVoteState(ctx context.Context, key network.Key) error {
	sess := c.Session()
	return c.refresh(ctx, sess, key)
}

// Refresh re-reads the network votes and donations currently target.
func (c *Controller) Refresh(ctx context.Context) error {
	sess, st := c.current()
	return c.refresh(ctx, sess, state.ActionKey(st))
}

func (c *Controller) refresh(ctx context.Context, sess session.Session, key network.Key) error {
	net, err := c.reg.Get(key)
	if err != nil {
		c.notify(state.NoticeError, "Unsupported network")
		return fmt.Errorf("%w: %q", ErrUnsupportedNetwork, key)
	}
	if !net.ContractConfigured() {
		c.update(state.ContractUnconfigured)
		c.notify(state.NoticeError, "Contract address is not configured for the selected network")
		return ErrContractNotConfigured
	}
	account := c.State().Account
	if sess == nil || account == (common.Address{}) {
		return ErrNoWallet
	}

	done := c.rec.StartRead(string(key))
	snap, rows, err := c.read(ctx, sess, net, account)
	done(err)
	if err != nil {
		log.WithError(err).WithField("network", key).Warn("vote state refresh failed")
		c.notify(state.NoticeError, "Failed to refresh vote stats")
		return fmt.Errorf("refreshing %s: %w", key, err)
	}
	if !c.isCurrent(sess) {
		log.WithField("network", key).Debug("dropping refresh for a closed session")
		return nil
	}

	c.update(func(s state.State) state.State {
		s = state.SnapshotLoaded(s, snap)
		return state.LeaderboardLoaded(s, rows)
	})
	return nil
}

func (c *Controller) read(ctx context.Context, sess session.Session, net network.Config, account common.Address) (state.Snapshot, []contract.LeaderboardRow, error) {
	v, release, err := sess.Reader(ctx, net)
	if err != nil {
		return state.Snapshot{}, nil, err
	}
	defer release()

	tally, err := v.GetVotes(ctx)
	if err != nil {
		return state.Snapshot{}, nil, err
	}
	snap := state.Snapshot{HappyVotes: tally.Happy, SadVotes: tally.Sad}
	if snap.CanVote, err = v.CanVote(ctx, account); err != nil {
		return state.Snapshot{}, nil, err
	}
	if !snap.CanVote {
		secs, err := v.TimeUntilNextVote(ctx, account)
		if err != nil {
			return state.Snapshot{}, nil, err
		}
		snap.Cooldown = &secs
	}

	if !net.HasLeaderboard {
		return snap, nil, nil
	}
	rows, err := v.Leaderboard(ctx)
	if err != nil {
		if sess.Kind() == session.KindDirect {
			log.WithError(err).Warn("leaderboard read failed")
			return snap, nil, nil
		}
		return state.Snapshot{}, nil, err
	}
	return snap, rows, nil
}

// preflight checks, in order, the preconditions shared by Vote and Donate
// and reports the first that fails.
func (c *Controller) preflight(st state.State, needContract bool) (network.Config, error) {
	if !st.HasAccount() {
		c.notify(state.NoticeError, "Connect wallet first")
		return network.Config{}, ErrNoWallet
	}
	if st.NetworkCorrect != state.Correct {
		c.notify(state.NoticeError, "Connect to Monad %s", c.label(st.SelectedKey))
		return network.Config{}, ErrWrongNetwork
	}
	net, err := c.reg.Get(state.ActionKey(st))
	if err != nil {
		c.notify(state.NoticeError, "Unsupported network")
		return network.Config{}, ErrUnsupportedNetwork
	}
	if needContract && !net.ContractConfigured() {
		c.notify(state.NoticeError, "Contract address missing for this network")
		return network.Config{}, ErrContractNotConfigured
	}
	return net, nil
}

// checkWalletChain guards the modal path, where the remote wallet may have
// moved since the last event.
func (c *Controller) checkWalletChain(sess session.Session, net network.Config) error {
	if sess.Kind() == session.KindModal && sess.ChainID() != net.ChainID {
		c.notify(state.NoticeError, "Please switch to Monad %s", net.Label)
		return ErrWrongNetwork
	}
	return nil
}

// Vote casts a happy or sad vote, waits for it to be mined and refreshes.
func (c *Controller) Vote(ctx context.Context, isHappy bool) (common.Hash, error) {
	sess, st := c.current()
	net, err := c.preflight(st, true)
	if err != nil {
		return common.Hash{}, err
	}
	if sess == nil {
		c.notify(state.NoticeError, "Connect wallet first")
		return common.Hash{}, ErrNoWallet
	}
	if err := c.checkWalletChain(sess, net); err != nil {
		return common.Hash{}, err
	}

	c.setLoading(state.LoadingVoting, true)
	defer c.setLoading(state.LoadingVoting, false)

	hash, err := c.vote(ctx, sess, net, isHappy)
	c.rec.Write("vote", string(net.Key), err)
	if err != nil {
		log.WithError(err).Warn("vote failed")
		c.notify(state.NoticeError, "Voting failed")
		return hash, err
	}

	c.update(func(s state.State) state.State { return state.VoteCast(s, hash.Hex()) })
	_ = c.refresh(ctx, sess, net.Key)
	c.notify(state.NoticeSuccess, "Vote successful!")
	return hash, nil
}

func (c *Controller) vote(ctx context.Context, sess session.Session, net network.Config, isHappy bool) (common.Hash, error) {
	v, err := contract.NewVoteContract(net.Contract(), net.ABI, nil)
	if err != nil {
		return common.Hash{}, err
	}
	data, err := v.PackVote(isHappy)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := sess.SendTransaction(ctx, net, session.TxRequest{To: net.Contract(), Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("sending vote: %w", classify(err))
	}
	c.update(func(s state.State) state.State { return state.TxSent(s, hash.Hex()) })
	log.WithFields(log.Fields{"hash": hash.Hex(), "happy": isHappy}).Info("vote sent")

	rcpt, err := sess.WaitMined(ctx, net, hash)
	if err != nil {
		return hash, fmt.Errorf("waiting for vote %s: %w", hash.Hex(), err)
	}
	if rcpt != nil && rcpt.Status == 0 {
		return hash, fmt.Errorf("vote %s reverted", hash.Hex())
	}
	return hash, nil
}

// Donate sends DonationAmount MON to DonationRecipient and waits for it to
// be mined.
func (c *Controller) Donate(ctx context.Context) (common.Hash, error) {
	sess, st := c.current()
	net, err := c.preflight(st, false)
	if err != nil {
		return common.Hash{}, err
	}
	if sess == nil {
		c.notify(state.NoticeError, "Connect wallet first")
		return common.Hash{}, ErrNoWallet
	}
	if err := c.checkWalletChain(sess, net); err != nil {
		return common.Hash{}, err
	}

	c.setLoading(state.LoadingDonation, true)
	defer c.setLoading(state.LoadingDonation, false)

	hash, err := c.donate(ctx, sess, net)
	c.rec.Write("donate", string(net.Key), err)
	if err != nil {
		log.WithError(err).Warn("donation failed")
		c.notify(state.NoticeError, "Donation failed")
		return hash, err
	}
	c.notify(state.NoticeSuccess, "Thanks for donating!")
	return hash, nil
}

func (c *Controller) donate(ctx context.Context, sess session.Session, net network.Config) (common.Hash, error) {
	value, err := chain.ParseAmount(DonationAmount)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := sess.SendTransaction(ctx, net, session.TxRequest{
		To:    common.HexToAddress(DonationRecipient),
		Value: value,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("sending donation: %w", classify(err))
	}
	c.update(func(s state.State) state.State { return state.TxSent(s, hash.Hex()) })
	log.WithFields(log.Fields{"hash": hash.Hex(), "amount": DonationAmount}).Info("donation sent")

	rcpt, err := sess.WaitMined(ctx, net, hash)
	if err != nil {
		return hash, fmt.Errorf("waiting for donation %s: %w", hash.Hex(), err)
	}
	if rcpt != nil && rcpt.Status == 0 {
		return hash, fmt.Errorf("donation %s reverted", hash.Hex())
	}
	return hash, nil
}

// Tick advances the local cooldown countdown by one second.
func (c *Controller) Tick() {
	c.update(state.Tick)
}

// Alert posts an error notice for a failure outside the controller, such
// as a wallet that could not be opened.
func (c *Controller) Alert(text string) {
	c.notify(state.NoticeError, "%s", text)
}

// Dismiss removes a notice before its timer does.
func (c *Controller) Dismiss(id string) {
	c.update(func(s state.State) state.State { return state.Dismiss(s, id) })
}

func classify(err error) error {
	if session.IsUserRejection(err) {
		return fmt.Errorf("%w: %v", ErrUserRejected, err)
	}
	return err
}
