package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"
	"github.com/terauss/Monad-Voting-App/internal/chain"
	"github.com/terauss/Monad-Voting-App/internal/contract"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/relay"
	"github.com/terauss/Monad-Voting-App/internal/wallet"
)

// Relay is the app side of a relay session. *relay.Client satisfies it.
type Relay interface {
	Pair(ctx context.Context) (relay.Pairing, error)
	Events() <-chan relay.Event
	Done() <-chan struct{}
	SupportsMethod(method string) bool
	Request(ctx context.Context, chainID int64, method string, params ...interface{}) (json.RawMessage, error)
	Disconnect(ctx context.Context) error
	Close() error
}

// PublicClient is the read-only node connection used on the modal path.
// *ethclient.Client satisfies it.
type PublicClient interface {
	contract.Caller
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	Close()
}

// PublicDialer opens a PublicClient for url.
type PublicDialer func(ctx context.Context, url string) (PublicClient, error)

func dialEthclient(ctx context.Context, url string) (PublicClient, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return c, nil
}

// Modal talks to a remote wallet over the relay. It keeps no contract
// handle: every read dials a fresh public client.
type Modal struct {
	relay Relay
	opts  options

	mu      sync.Mutex
	account common.Address
	chainID int64
	started bool

	events chan Event
	stop   chan struct{}
	once   sync.Once
}

// NewModal wraps a relay client.
func NewModal(r Relay, opts ...Option) *Modal {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &Modal{
		relay:  r,
		opts:   o,
		events: make(chan Event, 16),
		stop:   make(chan struct{}),
	}
}

func (m *Modal) Kind() Kind { return KindModal }

// Connect publishes a session proposal and returns the pairing URI. The
// account is reported later through an EventConnected.
func (m *Modal) Connect(ctx context.Context) (Connection, error) {
	select {
	case <-m.stop:
		return Connection{}, ErrClosed
	default:
	}
	p, err := m.relay.Pair(ctx)
	if err != nil {
		return Connection{}, fmt.Errorf("pairing: %w", err)
	}
	m.mu.Lock()
	start := !m.started
	m.started = true
	m.mu.Unlock()
	if start {
		go m.pump()
	}
	return Connection{PairingURI: p.URI()}, nil
}

func (m *Modal) Account() common.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.account
}

func (m *Modal) ChainID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chainID
}

// SwitchChain asks the remote wallet to switch. Wallets that did not grant
// wallet_switchEthereumChain get ErrSwitchUnsupported.
func (m *Modal) SwitchChain(ctx context.Context, net network.Config) error {
	if !m.relay.SupportsMethod("wallet_switchEthereumChain") {
		return ErrSwitchUnsupported
	}
	current := m.ChainID()
	_, err := m.relay.Request(ctx, current, "wallet_switchEthereumChain", map[string]string{"chainId": net.ChainHex})
	if code, ok := ErrorCode(err); ok && code == wallet.CodeUnrecognizedChain && m.relay.SupportsMethod("wallet_addEthereumChain") {
		_, err = m.relay.Request(ctx, current, "wallet_addEthereumChain", net.AddChain())
	}
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.chainID = net.ChainID
	m.mu.Unlock()
	return nil
}

// Reader dials a public client for net; release closes it.
func (m *Modal) Reader(ctx context.Context, net network.Config) (*contract.VoteContract, func(), error) {
	pc, err := m.dial(ctx, net)
	if err != nil {
		return nil, nil, err
	}
	v, err := contract.NewVoteContract(net.Contract(), net.ABI, pc)
	if err != nil {
		pc.Close()
		return nil, nil, err
	}
	return v, pc.Close, nil
}

// SendTransaction asks the remote wallet to sign and send tx on net.
func (m *Modal) SendTransaction(ctx context.Context, net network.Config, tx TxRequest) (common.Hash, error) {
	from := m.Account()
	if from == (common.Address{}) {
		return common.Hash{}, ErrNotConnected
	}
	raw, err := m.relay.Request(ctx, net.ChainID, "eth_sendTransaction", txObject(from, tx))
	if err != nil {
		return common.Hash{}, err
	}
	var hash common.Hash
	if err := json.Unmarshal(raw, &hash); err != nil {
		return common.Hash{}, fmt.Errorf("decoding transaction hash: %w", err)
	}
	return hash, nil
}

// WaitMined polls the public RPC of net for the receipt.
func (m *Modal) WaitMined(ctx context.Context, net network.Config, hash common.Hash) (*chain.TxReceipt, error) {
	pc, err := m.dial(ctx, net)
	if err != nil {
		return nil, err
	}
	defer pc.Close()
	return chain.WaitForReceipt(ctx, publicReceipts{pc}, hash, m.opts.pollInterval)
}

func (m *Modal) Events() <-chan Event { return m.events }

// Disconnect ends the remote session and closes the relay connection.
func (m *Modal) Disconnect(ctx context.Context) error {
	err := m.relay.Disconnect(ctx)
	m.mu.Lock()
	m.account = common.Address{}
	m.chainID = 0
	started := m.started
	m.mu.Unlock()

	m.once.Do(func() {
		close(m.stop)
		if !started {
			close(m.events)
		}
	})
	if cerr := m.relay.Close(); err == nil {
		err = cerr
	}
	return err
}

func (m *Modal) pump() {
	defer close(m.events)
	for {
		select {
		case <-m.stop:
			return
		case <-m.relay.Done():
			m.send(Event{Type: EventDisconnected})
			return
		case ev := <-m.relay.Events():
			out, ok := m.translate(ev)
			if !ok {
				continue
			}
			m.send(out)
		}
	}
}

func (m *Modal) translate(ev relay.Event) (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch ev.Type {
	case relay.EventSettled:
		if len(ev.Accounts) > 0 {
			m.account = ev.Accounts[0]
		}
		m.chainID = ev.ChainID
		return Event{Type: EventConnected, Accounts: ev.Accounts, ChainID: ev.ChainID}, true
	case relay.EventAccountsChanged:
		if len(ev.Accounts) > 0 {
			m.account = ev.Accounts[0]
		} else {
			m.account = common.Address{}
		}
		return Event{Type: EventAccountsChanged, Accounts: ev.Accounts}, true
	case relay.EventChainChanged:
		m.chainID = ev.ChainID
		return Event{Type: EventChainChanged, ChainID: ev.ChainID}, true
	case relay.EventDeleted:
		m.account = common.Address{}
		return Event{Type: EventDisconnected}, true
	}
	return Event{}, false
}

func (m *Modal) send(ev Event) {
	select {
	case m.events <- ev:
	default:
		log.WithField("event", ev.Type.String()).Warn("wallet event dropped, consumer too slow")
	}
}

func (m *Modal) dial(ctx context.Context, net network.Config) (PublicClient, error) {
	url, err := m.opts.selectRPC(ctx, net)
	if err != nil {
		return nil, err
	}
	return m.opts.dialPublic(ctx, url)
}

type publicReceipts struct{ c PublicClient }

func (r publicReceipts) TransactionReceipt(ctx context.Context, hash common.Hash) (*chain.TxReceipt, error) {
	rc, err := r.c.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := &chain.TxReceipt{Hash: hash, Status: rc.Status, GasUsed: rc.GasUsed}
	if rc.BlockNumber != nil {
		out.BlockNumber = rc.BlockNumber.Uint64()
	}
	return out, nil
}
