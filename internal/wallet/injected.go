package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	log "github.com/sirupsen/logrus"
	"github.com/terauss/Monad-Voting-App/internal/chain"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeUnrecognizedChain = 4902
)

// Provider event names.
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// ProviderError is an EIP-1193 error.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

func providerErr(code int, format string, args ...interface{}) *ProviderError {
	return &ProviderError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode extracts an EIP-1193 or JSON-RPC error code from err.
func ErrorCode(err error) (int, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return chain.ErrorCode(err)
}

// ProviderEvent is emitted to subscribers when the wallet's account or chain
// changes.
type ProviderEvent struct {
	Name     string
	Accounts []common.Address
	ChainID  int64
}

// KnownChain is a chain the wallet can switch to.
type KnownChain struct {
	ChainID  int64    `json:"chain_id"`
	Name     string   `json:"name"`
	RPCURLs  []string `json:"rpc_urls"`
	Explorer string   `json:"explorer,omitempty"`
}

// DefaultChain is where a fresh wallet starts before anything was added.
var DefaultChain = KnownChain{
	ChainID: 1,
	Name:    "Ethereum Mainnet",
	RPCURLs: []string{"https://cloudflare-eth.com"},
}

// ApprovalRequest describes something the wallet owner must confirm.
type ApprovalRequest struct {
	Method  string
	Summary string
}

// Approver asks the wallet owner to confirm a request.
type Approver func(ctx context.Context, req ApprovalRequest) (bool, error)

// AutoApprove confirms every request.
func AutoApprove(context.Context, ApprovalRequest) (bool, error) { return true, nil }

// Upstream is the node connection the wallet uses for a chain.
type Upstream interface {
	Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)
	PendingNonce(ctx context.Context, address common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	MaxPriorityFee(ctx context.Context) (*big.Int, error)
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
}

// DialFunc opens an Upstream for a chain.
type DialFunc func(ctx context.Context, c KnownChain) (Upstream, error)

func dialFirst(_ context.Context, c KnownChain) (Upstream, error) {
	if len(c.RPCURLs) == 0 {
		return nil, fmt.Errorf("chain %d has no RPC URL", c.ChainID)
	}
	return chain.NewEVMClient(c.RPCURLs[0]), nil
}

// Methods forwarded untouched to the upstream node.
var proxiedMethods = map[string]bool{
	"eth_call":                  true,
	"eth_blockNumber":           true,
	"eth_getBalance":            true,
	"eth_getTransactionReceipt": true,
	"eth_getTransactionCount":   true,
	"eth_estimateGas":           true,
	"eth_gasPrice":              true,
	"eth_getCode":               true,
}

// InjectedProvider is an in-process EIP-1193 wallet backed by a local
// account. It is safe for concurrent use.
type InjectedProvider struct {
	wallet  *Wallet
	signer  *Signer
	approve Approver
	dial    DialFunc
	onAdd   func(KnownChain)

	mu         sync.Mutex
	authorized bool
	current    int64
	chains     map[int64]KnownChain
	upstreams  map[int64]Upstream
	subs       map[int]chan ProviderEvent
	nextSub    int
}

// ProviderOption configures an InjectedProvider.
type ProviderOption func(*InjectedProvider)

// WithKnownChains seeds the chains the wallet knows and which one is active.
// An unknown current falls back to the first chain.
func WithKnownChains(chains []KnownChain, current int64) ProviderOption {
	return func(p *InjectedProvider) {
		for _, c := range chains {
			p.chains[c.ChainID] = c
		}
		if _, ok := p.chains[current]; ok {
			p.current = current
		} else if len(chains) > 0 {
			p.current = chains[0].ChainID
		}
	}
}

// WithApprover sets the confirmation callback. The default approves everything.
func WithApprover(a Approver) ProviderOption {
	return func(p *InjectedProvider) { p.approve = a }
}

// WithDialer overrides how upstream node connections are opened.
func WithDialer(d DialFunc) ProviderOption {
	return func(p *InjectedProvider) { p.dial = d }
}

// WithChainAdded registers a callback run after wallet_addEthereumChain.
func WithChainAdded(fn func(KnownChain)) ProviderOption {
	return func(p *InjectedProvider) { p.onAdd = fn }
}

// NewInjectedProvider creates a provider for w.
func NewInjectedProvider(w *Wallet, ks KeyStore, opts ...ProviderOption) *InjectedProvider {
	p := &InjectedProvider{
		wallet:    w,
		signer:    NewSigner(w, ks),
		approve:   AutoApprove,
		dial:      dialFirst,
		current:   DefaultChain.ChainID,
		chains:    map[int64]KnownChain{DefaultChain.ChainID: DefaultChain},
		upstreams: make(map[int64]Upstream),
		subs:      make(map[int]chan ProviderEvent),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wallet returns the account behind the provider.
func (p *InjectedProvider) Wallet() *Wallet { return p.wallet }

// CurrentChain returns the active chain ID.
func (p *InjectedProvider) CurrentChain() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Subscribe returns a channel of provider events and a function that
// unsubscribes and closes it.
func (p *InjectedProvider) Subscribe() (<-chan ProviderEvent, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++
	ch := make(chan ProviderEvent, 16)
	p.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.subs, id)
			close(ch)
		})
	}
}

// Revoke drops the site authorization, as a user disconnecting in the
// wallet would.
func (p *InjectedProvider) Revoke() {
	p.mu.Lock()
	was := p.authorized
	p.authorized = false
	p.mu.Unlock()
	if was {
		p.emit(ProviderEvent{Name: EventAccountsChanged})
	}
}

// Request handles one EIP-1193 request and returns the JSON result.
func (p *InjectedProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	log.WithFields(log.Fields{"method": method, "wallet": p.wallet.Name}).Debug("provider request")

	switch method {
	case "eth_requestAccounts":
		return p.requestAccounts(ctx)
	case "eth_accounts":
		return json.Marshal(p.accounts())
	case "eth_chainId":
		return json.Marshal(hexutil.EncodeUint64(uint64(p.CurrentChain())))
	case "net_version":
		return json.Marshal(strconv.FormatInt(p.CurrentChain(), 10))
	case "wallet_switchEthereumChain":
		return p.switchChain(ctx, params)
	case "wallet_addEthereumChain":
		return p.addChain(ctx, params)
	case "eth_sendTransaction":
		return p.sendTransaction(ctx, params)
	case "personal_sign":
		return p.personalSign(ctx, params)
	case "wallet_revokePermissions":
		p.Revoke()
		return json.Marshal(nil)
	}

	if proxiedMethods[method] {
		up, _, err := p.upstream(ctx)
		if err != nil {
			return nil, err
		}
		return up.Call(ctx, method, params...)
	}
	return nil, providerErr(CodeUnsupportedMethod, "method %s is not supported", method)
}

func (p *InjectedProvider) requestAccounts(ctx context.Context) (json.RawMessage, error) {
	p.mu.Lock()
	authorized := p.authorized
	p.mu.Unlock()

	if !authorized {
		ok, err := p.approve(ctx, ApprovalRequest{
			Method:  "eth_requestAccounts",
			Summary: fmt.Sprintf("Connect %s (%s)", p.wallet.Name, p.wallet.Address),
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, providerErr(CodeUserRejected, "user rejected the request")
		}
		p.mu.Lock()
		p.authorized = true
		p.mu.Unlock()
	}
	return json.Marshal([]common.Address{p.wallet.Account()})
}

func (p *InjectedProvider) accounts() []common.Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.authorized {
		return []common.Address{}
	}
	return []common.Address{p.wallet.Account()}
}

func (p *InjectedProvider) switchChain(ctx context.Context, params []interface{}) (json.RawMessage, error) {
	var arg struct {
		ChainID string `json:"chainId"`
	}
	if err := decodeParam(params, 0, &arg); err != nil {
		return nil, err
	}
	id, err := parseChainID(arg.ChainID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	target, known := p.chains[id]
	current := p.current
	p.mu.Unlock()

	if !known {
		return nil, providerErr(CodeUnrecognizedChain, "Unrecognized chain ID %q. Try adding the chain using wallet_addEthereumChain first.", arg.ChainID)
	}
	if id == current {
		return json.Marshal(nil)
	}

	ok, err := p.approve(ctx, ApprovalRequest{
		Method:  "wallet_switchEthereumChain",
		Summary: fmt.Sprintf("Switch to %s (%d)", target.Name, target.ChainID),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, providerErr(CodeUserRejected, "user rejected the request")
	}

	p.setChain(id)
	return json.Marshal(nil)
}

func (p *InjectedProvider) addChain(ctx context.Context, params []interface{}) (json.RawMessage, error) {
	var arg struct {
		ChainID           string   `json:"chainId"`
		ChainName         string   `json:"chainName"`
		RPCURLs           []string `json:"rpcUrls"`
		BlockExplorerURLs []string `json:"blockExplorerUrls"`
	}
	if err := decodeParam(params, 0, &arg); err != nil {
		return nil, err
	}
	id, err := parseChainID(arg.ChainID)
	if err != nil {
		return nil, err
	}
	if len(arg.RPCURLs) == 0 {
		return nil, providerErr(-32602, "rpcUrls is required")
	}

	kc := KnownChain{ChainID: id, Name: arg.ChainName, RPCURLs: arg.RPCURLs}
	if len(arg.BlockExplorerURLs) > 0 {
		kc.Explorer = arg.BlockExplorerURLs[0]
	}

	ok, err := p.approve(ctx, ApprovalRequest{
		Method:  "wallet_addEthereumChain",
		Summary: fmt.Sprintf("Add network %s (%d) via %s", kc.Name, kc.ChainID, kc.RPCURLs[0]),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, providerErr(CodeUserRejected, "user rejected the request")
	}

	p.mu.Lock()
	p.chains[id] = kc
	delete(p.upstreams, id)
	p.mu.Unlock()

	if p.onAdd != nil {
		p.onAdd(kc)
	}
	p.setChain(id)
	return json.Marshal(nil)
}

func (p *InjectedProvider) setChain(id int64) {
	p.mu.Lock()
	changed := p.current != id
	p.current = id
	p.mu.Unlock()
	if changed {
		p.emit(ProviderEvent{Name: EventChainChanged, ChainID: id})
	}
}

type txArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Value *hexutil.Big    `json:"value"`
	Data  hexutil.Bytes   `json:"data"`
	Gas   *hexutil.Uint64 `json:"gas"`
}

func (p *InjectedProvider) sendTransaction(ctx context.Context, params []interface{}) (json.RawMessage, error) {
	var args txArgs
	if err := decodeParam(params, 0, &args); err != nil {
		return nil, err
	}

	from := p.wallet.Account()
	p.mu.Lock()
	authorized := p.authorized
	p.mu.Unlock()
	if !authorized {
		return nil, providerErr(CodeUnauthorized, "account not connected")
	}
	if args.From != nil && *args.From != from {
		return nil, providerErr(CodeUnauthorized, "unknown account %s", args.From.Hex())
	}
	if !p.wallet.CanSign() {
		return nil, providerErr(CodeUnauthorized, "wallet %q is watch-only", p.wallet.Name)
	}

	up, chainID, err := p.upstream(ctx)
	if err != nil {
		return nil, err
	}

	value := new(big.Int)
	if args.Value != nil {
		value = args.Value.ToInt()
	}
	msg := ethereum.CallMsg{From: from, To: args.To, Value: value, Data: args.Data}

	ok, err := p.approve(ctx, ApprovalRequest{
		Method:  "eth_sendTransaction",
		Summary: describeTx(msg, chainID),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, providerErr(CodeUserRejected, "user denied transaction signature")
	}

	tx, err := p.buildTx(ctx, up, chainID, msg, args.Gas)
	if err != nil {
		return nil, err
	}
	raw, err := p.signer.SignTx(tx, big.NewInt(chainID))
	if err != nil {
		return nil, err
	}
	hash, err := up.SendRawTransaction(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("broadcasting transaction: %w", err)
	}

	log.WithFields(log.Fields{"hash": hash.Hex(), "chain": chainID}).Info("transaction sent")
	return json.Marshal(hash)
}

func (p *InjectedProvider) buildTx(ctx context.Context, up Upstream, chainID int64, msg ethereum.CallMsg, gas *hexutil.Uint64) (*types.Transaction, error) {
	nonce, err := up.PendingNonce(ctx, msg.From)
	if err != nil {
		return nil, fmt.Errorf("fetching nonce: %w", err)
	}

	var gasLimit uint64
	if gas != nil {
		gasLimit = uint64(*gas)
	} else if gasLimit, err = up.EstimateGas(ctx, msg); err != nil {
		return nil, fmt.Errorf("estimating gas: %w", err)
	}

	tip, err := up.MaxPriorityFee(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching priority fee: %w", err)
	}
	price, err := up.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching gas price: %w", err)
	}
	feeCap := new(big.Int).Mul(price, big.NewInt(2))
	if feeCap.Cmp(tip) < 0 {
		feeCap = new(big.Int).Set(tip)
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(chainID),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        msg.To,
		Value:     msg.Value,
		Data:      msg.Data,
	}), nil
}

func (p *InjectedProvider) personalSign(ctx context.Context, params []interface{}) (json.RawMessage, error) {
	var data hexutil.Bytes
	if err := decodeParam(params, 0, &data); err != nil {
		return nil, err
	}
	if !p.wallet.CanSign() {
		return nil, providerErr(CodeUnauthorized, "wallet %q is watch-only", p.wallet.Name)
	}
	ok, err := p.approve(ctx, ApprovalRequest{Method: "personal_sign", Summary: fmt.Sprintf("Sign message %q", string(data))})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, providerErr(CodeUserRejected, "user denied message signature")
	}
	sig, err := p.signer.SignMessage(data)
	if err != nil {
		return nil, err
	}
	// The stored key may not match the wallet metadata, e.g. when
	// $MONADVOTE_PRIVATE_KEY overrides the keychain.
	signer, err := VerifyMessage(data, sig)
	if err != nil {
		return nil, err
	}
	if signer != common.HexToAddress(p.wallet.Address) {
		return nil, providerErr(CodeUnauthorized, "signing key belongs to %s, not wallet %q (%s)", signer.Hex(), p.wallet.Name, p.wallet.Address)
	}
	return json.Marshal(hexutil.Bytes(sig))
}

func (p *InjectedProvider) upstream(ctx context.Context) (Upstream, int64, error) {
	p.mu.Lock()
	id := p.current
	if up, ok := p.upstreams[id]; ok {
		p.mu.Unlock()
		return up, id, nil
	}
	kc := p.chains[id]
	p.mu.Unlock()

	up, err := p.dial(ctx, kc)
	if err != nil {
		return nil, id, providerErr(CodeDisconnected, "no connection to chain %d: %v", id, err)
	}

	p.mu.Lock()
	p.upstreams[id] = up
	p.mu.Unlock()
	return up, id, nil
}

func (p *InjectedProvider) emit(ev ProviderEvent) {
	if ev.Name == EventAccountsChanged && ev.Accounts == nil {
		ev.Accounts = p.accounts()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
			log.WithField("event", ev.Name).Warn("provider subscriber is full, dropping event")
		}
	}
}

func describeTx(msg ethereum.CallMsg, chainID int64) string {
	to := "contract creation"
	if msg.To != nil {
		to = msg.To.Hex()
	}
	s := fmt.Sprintf("Send %s to %s on chain %d", chain.FormatAmount(msg.Value, 6, "MON"), to, chainID)
	if len(msg.Data) >= 4 {
		s += fmt.Sprintf(" calling 0x%x", msg.Data[:4])
	}
	return s
}

func decodeParam(params []interface{}, i int, out interface{}) error {
	if i >= len(params) {
		return providerErr(-32602, "missing parameter %d", i)
	}
	raw, err := json.Marshal(params[i])
	if err != nil {
		return providerErr(-32602, "invalid parameter %d: %v", i, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return providerErr(-32602, "invalid parameter %d: %v", i, err)
	}
	return nil
}

func parseChainID(s string) (int64, error) {
	if !strings.HasPrefix(s, "0x") {
		return 0, providerErr(-32602, "chainId %q must be 0x-prefixed hex", s)
	}
	id, err := hexutil.DecodeUint64(s)
	if err != nil {
		return 0, providerErr(-32602, "invalid chainId %q: %v", s, err)
	}
	return int64(id), nil
}
