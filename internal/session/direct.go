package session

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	log "github.com/sirupsen/logrus"
	"github.com/terauss/Monad-Voting-App/internal/chain"
	"github.com/terauss/Monad-Voting-App/internal/contract"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/wallet"
)

// Provider is an EIP-1193 wallet. *wallet.InjectedProvider satisfies it.
type Provider interface {
	Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)
	Subscribe() (<-chan wallet.ProviderEvent, func())
}

// Direct talks to an injected provider. Contract handles are built once per
// network and kept for the life of the session.
type Direct struct {
	provider Provider
	opts     options

	mu        sync.Mutex
	account   common.Address
	chainID   int64
	contracts map[network.Key]*contract.VoteContract
	unsub     func()
	started   bool
	closed    bool

	events chan Event
}

// NewDirect wraps provider.
func NewDirect(provider Provider, opts ...Option) *Direct {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &Direct{
		provider:  provider,
		opts:      o,
		contracts: make(map[network.Key]*contract.VoteContract),
		events:    make(chan Event, 16),
	}
}

func (d *Direct) Kind() Kind { return KindDirect }

// Connect asks the provider for account access and reads its chain.
func (d *Direct) Connect(ctx context.Context) (Connection, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return Connection{}, ErrClosed
	}
	raw, err := d.provider.Request(ctx, "eth_requestAccounts")
	if err != nil {
		return Connection{}, fmt.Errorf("requesting accounts: %w", err)
	}
	var accounts []common.Address
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return Connection{}, fmt.Errorf("decoding accounts: %w", err)
	}
	if len(accounts) == 0 {
		return Connection{}, ErrNotConnected
	}
	chainID, err := d.readChainID(ctx)
	if err != nil {
		return Connection{}, err
	}

	d.mu.Lock()
	d.account = accounts[0]
	d.chainID = chainID
	start := !d.started
	d.started = true
	d.mu.Unlock()

	if start {
		ch, unsub := d.provider.Subscribe()
		d.mu.Lock()
		d.unsub = unsub
		d.mu.Unlock()
		go d.pump(ch)
	}
	return Connection{Account: accounts[0], ChainID: chainID}, nil
}

func (d *Direct) Account() common.Address {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.account
}

func (d *Direct) ChainID() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chainID
}

// SwitchChain asks the wallet to switch, adding the chain first when the
// wallet does not know it.
func (d *Direct) SwitchChain(ctx context.Context, net network.Config) error {
	_, err := d.provider.Request(ctx, "wallet_switchEthereumChain", map[string]string{"chainId": net.ChainHex})
	if code, ok := ErrorCode(err); ok && code == wallet.CodeUnrecognizedChain {
		log.WithField("chain", net.ChainID).Info("wallet does not know chain, adding it")
		_, err = d.provider.Request(ctx, "wallet_addEthereumChain", net.AddChain())
	}
	if err != nil {
		return err
	}

	id, err := d.readChainID(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.chainID = id
	d.mu.Unlock()
	return nil
}

// Reader returns the cached contract handle for net.
func (d *Direct) Reader(_ context.Context, net network.Config) (*contract.VoteContract, func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.contracts[net.Key]; ok {
		return v, func() {}, nil
	}
	v, err := contract.NewVoteContract(net.Contract(), net.ABI, providerCaller{d.provider})
	if err != nil {
		return nil, nil, err
	}
	d.contracts[net.Key] = v
	return v, func() {}, nil
}

// SendTransaction submits tx through eth_sendTransaction.
func (d *Direct) SendTransaction(ctx context.Context, _ network.Config, tx TxRequest) (common.Hash, error) {
	from := d.Account()
	if from == (common.Address{}) {
		return common.Hash{}, ErrNotConnected
	}
	raw, err := d.provider.Request(ctx, "eth_sendTransaction", txObject(from, tx))
	if err != nil {
		return common.Hash{}, err
	}
	var hash common.Hash
	if err := json.Unmarshal(raw, &hash); err != nil {
		return common.Hash{}, fmt.Errorf("decoding transaction hash: %w", err)
	}
	return hash, nil
}

// WaitMined polls eth_getTransactionReceipt through the provider.
func (d *Direct) WaitMined(ctx context.Context, _ network.Config, hash common.Hash) (*chain.TxReceipt, error) {
	return chain.WaitForReceipt(ctx, providerReceipts{d.provider}, hash, d.opts.pollInterval)
}

func (d *Direct) Events() <-chan Event { return d.events }

// Disconnect forgets the account and contract handles and stops events.
// The injected wallet itself stays authorised, like a browser extension.
func (d *Direct) Disconnect(context.Context) error {
	d.mu.Lock()
	d.account = common.Address{}
	d.chainID = 0
	d.contracts = make(map[network.Key]*contract.VoteContract)
	unsub := d.unsub
	d.unsub = nil
	started := d.started
	alreadyClosed := d.closed
	d.closed = true
	d.mu.Unlock()

	if unsub != nil {
		// pump closes events once the provider channel drains
		unsub()
	} else if !started && !alreadyClosed {
		close(d.events)
	}
	return nil
}

func (d *Direct) pump(ch <-chan wallet.ProviderEvent) {
	defer close(d.events)
	for ev := range ch {
		var out Event
		switch ev.Name {
		case wallet.EventAccountsChanged:
			d.mu.Lock()
			if len(ev.Accounts) > 0 {
				d.account = ev.Accounts[0]
			} else {
				d.account = common.Address{}
			}
			d.mu.Unlock()
			out = Event{Type: EventAccountsChanged, Accounts: ev.Accounts}
		case wallet.EventChainChanged:
			d.mu.Lock()
			d.chainID = ev.ChainID
			d.mu.Unlock()
			out = Event{Type: EventChainChanged, ChainID: ev.ChainID}
		default:
			continue
		}
		select {
		case d.events <- out:
		default:
			log.WithField("event", out.Type.String()).Warn("wallet event dropped, consumer too slow")
		}
	}
}

func (d *Direct) readChainID(ctx context.Context) (int64, error) {
	raw, err := d.provider.Request(ctx, "eth_chainId")
	if err != nil {
		return 0, fmt.Errorf("reading chain id: %w", err)
	}
	var id hexutil.Uint64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, fmt.Errorf("decoding chain id: %w", err)
	}
	return int64(id), nil
}

func txObject(from common.Address, tx TxRequest) map[string]interface{} {
	obj := map[string]interface{}{
		"from": from,
		"to":   tx.To,
	}
	if tx.Value != nil {
		obj["value"] = (*hexutil.Big)(tx.Value)
	}
	if len(tx.Data) > 0 {
		obj["data"] = hexutil.Bytes(tx.Data)
	}
	return obj
}

// providerCaller routes eth_call through the wallet.
type providerCaller struct{ p Provider }

func (c providerCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	arg := map[string]interface{}{"to": msg.To, "data": hexutil.Bytes(msg.Data)}
	if msg.From != (common.Address{}) {
		arg["from"] = msg.From
	}
	tag := "latest"
	if block != nil {
		tag = hexutil.EncodeBig(block)
	}
	raw, err := c.p.Request(ctx, "eth_call", arg, tag)
	if err != nil {
		return nil, err
	}
	var out hexutil.Bytes
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding eth_call result: %w", err)
	}
	return out, nil
}

type providerReceipts struct{ p Provider }

func (r providerReceipts) TransactionReceipt(ctx context.Context, hash common.Hash) (*chain.TxReceipt, error) {
	raw, err := r.p.Request(ctx, "eth_getTransactionReceipt", hash)
	if err != nil {
		return nil, err
	}
	return chain.ParseReceipt(hash, raw)
}
