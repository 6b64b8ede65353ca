package relay

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Relay-level methods.
const (
	methodSubscribe    = "irn_subscribe"
	methodPublish      = "irn_publish"
	methodUnsubscribe  = "irn_unsubscribe"
	methodSubscription = "irn_subscription"
)

// Session-level methods carried inside encrypted envelopes.
const (
	MethodSessionPropose = "wc_sessionPropose"
	MethodSessionSettle  = "wc_sessionSettle"
	MethodSessionRequest = "wc_sessionRequest"
	MethodSessionEvent   = "wc_sessionEvent"
	MethodSessionDelete  = "wc_sessionDelete"
)

// Publish tags and TTLs (seconds) per message kind.
type publishOpts struct {
	tag int
	ttl int
}

var (
	optsProposeReq  = publishOpts{tag: 1100, ttl: 300}
	optsProposeRes  = publishOpts{tag: 1101, ttl: 300}
	optsSettleReq   = publishOpts{tag: 1102, ttl: 300}
	optsSettleRes   = publishOpts{tag: 1103, ttl: 300}
	optsRequestReq  = publishOpts{tag: 1108, ttl: 300}
	optsRequestRes  = publishOpts{tag: 1109, ttl: 300}
	optsEventReq    = publishOpts{tag: 1110, ttl: 300}
	optsEventRes    = publishOpts{tag: 1111, ttl: 300}
	optsDeleteReq   = publishOpts{tag: 1112, ttl: 86400}
	optsDeleteRes   = publishOpts{tag: 1113, ttl: 86400}
	optsGenericFail = publishOpts{tag: 0, ttl: 300}
)

// Error codes used in session responses.
const (
	CodeUserRejected     = 5000
	CodeUnsupportedChain = 5100
	CodeUnsupportedMeth  = 5101
	CodeUserDisconnected = 6000
)

// rpcMessage is a JSON-RPC 2.0 frame, request or response.
type rpcMessage struct {
	ID      uint64          `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func (m rpcMessage) isRequest() bool { return m.Method != "" }

// RPCError is an error returned by the relay or the peer.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("relay error %d: %s", e.Code, e.Message)
}

type publishParams struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
	TTL     int    `json:"ttl"`
	Tag     int    `json:"tag"`
	Prompt  bool   `json:"prompt,omitempty"`
}

type topicParams struct {
	Topic string `json:"topic"`
	ID    string `json:"id,omitempty"`
}

type subscriptionParams struct {
	ID   string `json:"id"`
	Data struct {
		Topic       string `json:"topic"`
		Message     string `json:"message"`
		PublishedAt int64  `json:"publishedAt"`
		Tag         int    `json:"tag"`
	} `json:"data"`
}

// Metadata identifies an app or wallet to its peer.
type Metadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
}

// Namespace is the eip155 capability set of a proposal or session.
type Namespace struct {
	Chains   []string `json:"chains,omitempty"`
	Accounts []string `json:"accounts,omitempty"`
	Methods  []string `json:"methods"`
	Events   []string `json:"events"`
}

type participant struct {
	PublicKey string   `json:"publicKey"`
	Metadata  Metadata `json:"metadata"`
}

type relayProtocol struct {
	Protocol string `json:"protocol"`
}

type proposeParams struct {
	Relays             []relayProtocol      `json:"relays"`
	RequiredNamespaces map[string]Namespace `json:"requiredNamespaces"`
	OptionalNamespaces map[string]Namespace `json:"optionalNamespaces,omitempty"`
	Proposer           participant          `json:"proposer"`
}

type proposeResult struct {
	Relay              relayProtocol `json:"relay"`
	ResponderPublicKey string        `json:"responderPublicKey"`
}

type settleParams struct {
	Relay      relayProtocol        `json:"relay"`
	Namespaces map[string]Namespace `json:"namespaces"`
	Controller participant          `json:"controller"`
	Expiry     int64                `json:"expiry"`
}

type sessionRequestParams struct {
	Request struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	} `json:"request"`
	ChainID string `json:"chainId"`
}

type sessionEventParams struct {
	Event struct {
		Name string          `json:"name"`
		Data json.RawMessage `json:"data"`
	} `json:"event"`
	ChainID string `json:"chainId"`
}

type deleteParams struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// CAIP2 formats an eip155 chain reference.
func CAIP2(chainID int64) string {
	return "eip155:" + strconv.FormatInt(chainID, 10)
}

// ParseCAIP2 parses "eip155:<id>".
func ParseCAIP2(s string) (int64, error) {
	ns, ref, ok := strings.Cut(s, ":")
	if !ok || ns != "eip155" {
		return 0, fmt.Errorf("unsupported chain %q", s)
	}
	return strconv.ParseInt(ref, 10, 64)
}

// ParseCAIP10 parses "eip155:<id>:<address>".
func ParseCAIP10(s string) (int64, common.Address, error) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return 0, common.Address{}, fmt.Errorf("invalid account %q", s)
	}
	id, err := ParseCAIP2(s[:i])
	if err != nil {
		return 0, common.Address{}, err
	}
	if !common.IsHexAddress(s[i+1:]) {
		return 0, common.Address{}, fmt.Errorf("invalid account address %q", s)
	}
	return id, common.HexToAddress(s[i+1:]), nil
}

// CAIP10 formats an eip155 account.
func CAIP10(chainID int64, addr common.Address) string {
	return CAIP2(chainID) + ":" + addr.Hex()
}

// deliver passes m to a waiter whose channel holds one message. It never
// blocks, so a duplicate response cannot stall the read loop.
func deliver(ch chan rpcMessage, m rpcMessage) {
	if ch == nil {
		return
	}
	select {
	case ch <- m:
	default:
	}
}
