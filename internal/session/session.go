// Package session hides the two ways a wallet can be connected behind one
// interface: an in-process injected provider (direct) and a relay-paired
// remote wallet (modal).
package session

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/terauss/Monad-Voting-App/internal/chain"
	"github.com/terauss/Monad-Voting-App/internal/contract"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/relay"
	"github.com/terauss/Monad-Voting-App/internal/wallet"
)

var (
	// ErrSwitchUnsupported means the wallet offers no programmatic chain
	// switch and the user has to do it by hand.
	ErrSwitchUnsupported = errors.New("wallet cannot switch networks programmatically")
	// ErrNotConnected is returned by calls that need an account.
	ErrNotConnected = errors.New("wallet not connected")
	// ErrClosed is returned by Connect on a session that was disconnected.
	ErrClosed = errors.New("session closed")
)

// Kind is the connection path of a session. KindNone is only used by
// callers describing "no session".
type Kind int

const (
	KindNone Kind = iota
	KindDirect
	KindModal
)

func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindModal:
		return "modal"
	}
	return "none"
}

// EventType classifies a wallet event.
type EventType int

const (
	EventConnected EventType = iota
	EventAccountsChanged
	EventChainChanged
	EventDisconnected
)

func (e EventType) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventAccountsChanged:
		return "accountsChanged"
	case EventChainChanged:
		return "chainChanged"
	case EventDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Event is emitted by a session when the wallet changes underneath it.
type Event struct {
	Type     EventType
	Accounts []common.Address
	ChainID  int64
}

// Account returns the first account of the event, if any.
func (e Event) Account() (common.Address, bool) {
	if len(e.Accounts) == 0 {
		return common.Address{}, false
	}
	return e.Accounts[0], true
}

// Connection is the result of Connect. On the modal path Account is zero
// and PairingURI must be shown to the user; the account arrives later as
// an EventConnected.
type Connection struct {
	Account    common.Address
	ChainID    int64
	PairingURI string
}

// Connected reports whether the connection already carries an account.
func (c Connection) Connected() bool { return c.Account != (common.Address{}) }

// TxRequest is a state-changing call sent through the wallet.
type TxRequest struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// Session is a live wallet connection.
type Session interface {
	Kind() Kind
	Connect(ctx context.Context) (Connection, error)
	Account() common.Address
	ChainID() int64
	SwitchChain(ctx context.Context, net network.Config) error
	// Reader returns a contract handle for net. Call release when done.
	Reader(ctx context.Context, net network.Config) (v *contract.VoteContract, release func(), err error)
	SendTransaction(ctx context.Context, net network.Config, tx TxRequest) (common.Hash, error)
	WaitMined(ctx context.Context, net network.Config, hash common.Hash) (*chain.TxReceipt, error)
	Events() <-chan Event
	Disconnect(ctx context.Context) error
}

// Option configures a session.
type Option func(*options)

type options struct {
	pollInterval time.Duration
	selectRPC    func(ctx context.Context, net network.Config) (string, error)
	dialPublic   PublicDialer
}

func defaultOptions() options {
	return options{
		pollInterval: chain.DefaultReceiptInterval,
		selectRPC:    firstRPC,
		dialPublic:   dialEthclient,
	}
}

// WithPollInterval sets the receipt poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// WithRPCSelector picks the public RPC endpoint the modal path reads from.
func WithRPCSelector(fn func(ctx context.Context, net network.Config) (string, error)) Option {
	return func(o *options) { o.selectRPC = fn }
}

// WithPublicDialer replaces the go-ethereum client used by the modal path.
func WithPublicDialer(d PublicDialer) Option {
	return func(o *options) { o.dialPublic = d }
}

func firstRPC(_ context.Context, net network.Config) (string, error) {
	if len(net.RPCURLs) == 0 {
		return "", errors.New("network has no RPC URL")
	}
	return net.RPCURLs[0], nil
}

// ErrorCode extracts an EIP-1193 or relay error code from err.
func ErrorCode(err error) (int, bool) {
	var re *relay.RPCError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return wallet.ErrorCode(err)
}

// IsUserRejection reports whether err is the user declining in the wallet.
func IsUserRejection(err error) bool {
	code, ok := ErrorCode(err)
	return ok && (code == wallet.CodeUserRejected || code == relay.CodeUserRejected)
}
