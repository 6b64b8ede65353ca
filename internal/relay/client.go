package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	log "github.com/sirupsen/logrus"
)

// ErrNoSession is returned by Request before a session settles or after it
// ends.
var ErrNoSession = errors.New("no active relay session")

// EventType classifies a session event.
type EventType int

const (
	EventSettled EventType = iota
	EventAccountsChanged
	EventChainChanged
	EventDeleted
)

func (e EventType) String() string {
	switch e {
	case EventSettled:
		return "settled"
	case EventAccountsChanged:
		return "accountsChanged"
	case EventChainChanged:
		return "chainChanged"
	case EventDeleted:
		return "deleted"
	}
	return "unknown"
}

// Event is delivered on Client.Events.
type Event struct {
	Type     EventType
	Accounts []common.Address
	ChainID  int64
	Peer     Metadata
}

// SessionInfo describes a settled session.
type SessionInfo struct {
	Topic    string
	Peer     Metadata
	Accounts []common.Address
	ChainID  int64
	Methods  []string
	Expiry   time.Time
}

// RequiredMethods are asked of every wallet.
var RequiredMethods = []string{"eth_sendTransaction", "personal_sign"}

// OptionalMethods are used when the wallet grants them.
var OptionalMethods = []string{"wallet_switchEthereumChain", "wallet_addEthereumChain"}

var sessionEvents = []string{"accountsChanged", "chainChanged"}

type topicKey struct {
	key   SymKey
	subID string
}

type session struct {
	SessionInfo
	key SymKey
}

// Client is the app side of a relay session.
type Client struct {
	cfg    Config
	chains []int64
	t      *transport

	mu        sync.Mutex
	topics    map[string]topicKey
	proposeID uint64
	keyPair   *KeyPair
	sess      *session
	waiters   map[uint64]chan rpcMessage

	events chan Event
}

// Dial connects to the relay. chains lists the CAIP-2 chain IDs proposed to
// the wallet, most preferred first.
func Dial(ctx context.Context, cfg Config, chains []int64) (*Client, error) {
	c := &Client{
		cfg:     cfg,
		chains:  chains,
		topics:  make(map[string]topicKey),
		waiters: make(map[uint64]chan rpcMessage),
		events:  make(chan Event, 16),
	}
	t, err := dial(ctx, cfg, c.onMessage)
	if err != nil {
		return nil, err
	}
	c.t = t
	return c, nil
}

// Events delivers session lifecycle and wallet events.
func (c *Client) Events() <-chan Event { return c.events }

// Done is closed when the relay connection is gone.
func (c *Client) Done() <-chan struct{} { return c.t.done }

// Pair subscribes a fresh pairing topic and publishes a session proposal on
// it. Show the returned URI to the wallet.
func (c *Client) Pair(ctx context.Context) (Pairing, error) {
	p, err := NewPairing()
	if err != nil {
		return Pairing{}, err
	}
	kp, err := NewKeyPair()
	if err != nil {
		return Pairing{}, err
	}
	subID, err := c.t.subscribe(ctx, p.Topic)
	if err != nil {
		return Pairing{}, fmt.Errorf("subscribing pairing topic: %w", err)
	}

	chains := make([]string, 0, len(c.chains))
	for _, id := range c.chains {
		chains = append(chains, CAIP2(id))
	}
	params, err := json.Marshal(proposeParams{
		Relays: []relayProtocol{{Protocol: "irn"}},
		RequiredNamespaces: map[string]Namespace{
			"eip155": {Chains: chains, Methods: RequiredMethods, Events: sessionEvents},
		},
		OptionalNamespaces: map[string]Namespace{
			"eip155": {Chains: chains, Methods: OptionalMethods, Events: sessionEvents},
		},
		Proposer: participant{PublicKey: kp.PublicHex(), Metadata: c.cfg.Metadata},
	})
	if err != nil {
		return Pairing{}, err
	}

	id := c.t.id()
	c.mu.Lock()
	c.topics[p.Topic] = topicKey{key: p.SymKey, subID: subID}
	c.proposeID = id
	c.keyPair = kp
	c.mu.Unlock()

	msg := rpcMessage{ID: id, Method: MethodSessionPropose, Params: params}
	if err := c.t.publish(ctx, p.Topic, p.SymKey, msg, optsProposeReq); err != nil {
		return Pairing{}, fmt.Errorf("publishing proposal: %w", err)
	}
	c.t.logger.WithField("topic", p.Topic).Debug("session proposed")
	return p, nil
}

// Session returns the settled session, if any.
func (c *Client) Session() (SessionInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return SessionInfo{}, false
	}
	return c.sess.SessionInfo, true
}

// SupportsMethod reports whether the settled session grants method.
func (c *Client) SupportsMethod(method string) bool {
	info, ok := c.Session()
	if !ok {
		return false
	}
	for _, m := range info.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// Request sends a wallet request through the session and waits for the
// wallet's answer.
func (c *Client) Request(ctx context.Context, chainID int64, method string, params ...interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return nil, ErrNoSession
	}
	if params == nil {
		params = []interface{}{}
	}

	var p sessionRequestParams
	p.Request.Method = method
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	p.Request.Params = raw
	p.ChainID = CAIP2(chainID)
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	id := c.t.id()
	ch := make(chan rpcMessage, 1)
	c.mu.Lock()
	c.waiters[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiters, id)
		c.mu.Unlock()
	}()

	msg := rpcMessage{ID: id, Method: MethodSessionRequest, Params: body}
	if err := c.t.publish(ctx, sess.Topic, sess.key, msg, optsRequestReq); err != nil {
		return nil, fmt.Errorf("publishing %s: %w", method, err)
	}

	select {
	case res := <-ch:
		if res.Error != nil {
			return nil, res.Error
		}
		return res.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.t.done:
		return nil, c.t.closeErr()
	}
}

// Disconnect tells the wallet the session is over and forgets it.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.mu.Unlock()
	if sess == nil {
		return nil
	}

	body, _ := json.Marshal(deleteParams{Code: CodeUserDisconnected, Message: "User disconnected."})
	err := c.t.publish(ctx, sess.Topic, sess.key, rpcMessage{ID: c.t.id(), Method: MethodSessionDelete, Params: body}, optsDeleteReq)
	c.dropTopic(ctx, sess.Topic)
	return err
}

// Close disconnects from the relay.
func (c *Client) Close() error {
	return c.t.close()
}

func (c *Client) dropTopic(ctx context.Context, topic string) {
	c.mu.Lock()
	tk, ok := c.topics[topic]
	delete(c.topics, topic)
	c.mu.Unlock()
	if ok {
		if err := c.t.unsubscribe(ctx, topic, tk.subID); err != nil {
			c.t.logger.WithError(err).Debug("unsubscribe failed")
		}
	}
}

func (c *Client) onMessage(topic, message string) {
	c.mu.Lock()
	tk, ok := c.topics[topic]
	c.mu.Unlock()
	if !ok {
		return
	}
	plain, err := Open(tk.key, message)
	if err != nil {
		c.t.logger.WithError(err).Warn("dropping undecryptable message")
		return
	}
	var m rpcMessage
	if err := json.Unmarshal(plain, &m); err != nil {
		c.t.logger.WithError(err).Warn("dropping malformed message")
		return
	}

	if !m.isRequest() {
		c.onResponse(m)
		return
	}

	switch m.Method {
	case MethodSessionSettle:
		c.onSettle(topic, tk.key, m)
	case MethodSessionEvent:
		c.onEvent(topic, tk.key, m)
	case MethodSessionDelete:
		c.reply(topic, tk.key, m.ID, json.RawMessage("true"), nil, optsDeleteRes)
		c.mu.Lock()
		var peer Metadata
		if c.sess != nil && c.sess.Topic == topic {
			peer = c.sess.Peer
			c.sess = nil
		}
		c.mu.Unlock()
		c.dropTopic(context.Background(), topic)
		c.emit(Event{Type: EventDeleted, Peer: peer})
	default:
		c.reply(topic, tk.key, m.ID, nil, &RPCError{Code: CodeUnsupportedMeth, Message: "unsupported method " + m.Method}, optsGenericFail)
	}
}

func (c *Client) onResponse(m rpcMessage) {
	c.mu.Lock()
	isProposal := m.ID == c.proposeID && c.keyPair != nil
	kp := c.keyPair
	ch := c.waiters[m.ID]
	c.mu.Unlock()

	if !isProposal {
		deliver(ch, m)
		return
	}
	if m.Error != nil {
		c.t.logger.WithError(m.Error).Info("wallet rejected session proposal")
		c.emit(Event{Type: EventDeleted})
		return
	}

	var res proposeResult
	if err := json.Unmarshal(m.Result, &res); err != nil {
		c.t.logger.WithError(err).Warn("bad proposal response")
		return
	}
	key, err := kp.SessionKey(res.ResponderPublicKey)
	if err != nil {
		c.t.logger.WithError(err).Warn("session key agreement failed")
		return
	}

	topic := key.Topic()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	subID, err := c.t.subscribe(ctx, topic)
	if err != nil {
		c.t.logger.WithError(err).Warn("subscribing session topic")
		return
	}
	c.mu.Lock()
	c.topics[topic] = topicKey{key: key, subID: subID}
	c.mu.Unlock()
}

func (c *Client) onSettle(topic string, key SymKey, m rpcMessage) {
	var p settleParams
	if err := json.Unmarshal(m.Params, &p); err != nil {
		c.reply(topic, key, m.ID, nil, &RPCError{Code: -32602, Message: err.Error()}, optsSettleRes)
		return
	}
	ns, ok := p.Namespaces["eip155"]
	if !ok || len(ns.Accounts) == 0 {
		c.reply(topic, key, m.ID, nil, &RPCError{Code: CodeUnsupportedChain, Message: "no eip155 accounts"}, optsSettleRes)
		return
	}

	info := SessionInfo{Topic: topic, Peer: p.Controller.Metadata, Methods: ns.Methods, Expiry: time.Unix(p.Expiry, 0)}
	seen := map[common.Address]bool{}
	for _, acc := range ns.Accounts {
		id, addr, err := ParseCAIP10(acc)
		if err != nil {
			continue
		}
		if info.ChainID == 0 {
			info.ChainID = id
		}
		if !seen[addr] {
			seen[addr] = true
			info.Accounts = append(info.Accounts, addr)
		}
	}
	if len(info.Accounts) == 0 {
		c.reply(topic, key, m.ID, nil, &RPCError{Code: CodeUnsupportedChain, Message: "no usable eip155 accounts"}, optsSettleRes)
		return
	}

	c.mu.Lock()
	c.sess = &session{SessionInfo: info, key: key}
	c.mu.Unlock()

	c.reply(topic, key, m.ID, json.RawMessage("true"), nil, optsSettleRes)
	c.t.logger.WithFields(log.Fields{"peer": info.Peer.Name, "chain": info.ChainID}).Info("relay session settled")
	c.emit(Event{Type: EventSettled, Accounts: info.Accounts, ChainID: info.ChainID, Peer: info.Peer})
}

func (c *Client) onEvent(topic string, key SymKey, m rpcMessage) {
	c.reply(topic, key, m.ID, json.RawMessage("true"), nil, optsEventRes)

	var p sessionEventParams
	if err := json.Unmarshal(m.Params, &p); err != nil {
		return
	}
	switch p.Event.Name {
	case "accountsChanged":
		var raw []string
		if err := json.Unmarshal(p.Event.Data, &raw); err != nil {
			return
		}
		accounts := make([]common.Address, 0, len(raw))
		for _, s := range raw {
			if _, addr, err := ParseCAIP10(s); err == nil {
				accounts = append(accounts, addr)
			} else if common.IsHexAddress(s) {
				accounts = append(accounts, common.HexToAddress(s))
			}
		}
		c.mu.Lock()
		if c.sess != nil {
			c.sess.Accounts = accounts
		}
		c.mu.Unlock()
		c.emit(Event{Type: EventAccountsChanged, Accounts: accounts})
	case "chainChanged":
		id, err := parseEventChain(p.Event.Data)
		if err != nil {
			return
		}
		c.mu.Lock()
		if c.sess != nil {
			c.sess.ChainID = id
		}
		c.mu.Unlock()
		c.emit(Event{Type: EventChainChanged, ChainID: id})
	}
}

func (c *Client) reply(topic string, key SymKey, id uint64, result json.RawMessage, rpcErr *RPCError, opts publishOpts) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := c.t.publish(ctx, topic, key, rpcMessage{ID: id, Result: result, Error: rpcErr}, opts); err != nil {
		c.t.logger.WithError(err).Debug("reply failed")
	}
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.t.logger.WithField("event", ev.Type.String()).Warn("relay event dropped, consumer too slow")
	}
}

// parseEventChain accepts a chain as a JSON number, decimal string, hex
// string or CAIP-2 string.
func parseEventChain(data json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, err
	}
	switch {
	case strings.HasPrefix(s, "eip155:"):
		return ParseCAIP2(s)
	case strings.HasPrefix(s, "0x"):
		v, err := hexutil.DecodeUint64(s)
		return int64(v), err
	default:
		return strconv.ParseInt(s, 10, 64)
	}
}
