package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	log "github.com/sirupsen/logrus"
	"github.com/terauss/Monad-Voting-App/internal/wallet"
)

const sessionLifetime = 7 * 24 * time.Hour

// Provider is the wallet a Responder exposes over the relay.
type Provider interface {
	Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)
	Subscribe() (<-chan wallet.ProviderEvent, func())
}

// Responder is the wallet side of a relay session: it answers a pairing URI
// and forwards session requests to a local provider.
type Responder struct {
	cfg      Config
	provider Provider
	t        *transport

	mu     sync.Mutex
	topics map[string]SymKey
	sess   *session

	done     chan struct{}
	doneOnce sync.Once
	unsub    func()
}

// NewResponder connects to the relay on behalf of provider.
func NewResponder(ctx context.Context, cfg Config, provider Provider) (*Responder, error) {
	r := &Responder{
		cfg:      cfg,
		provider: provider,
		topics:   make(map[string]SymKey),
		done:     make(chan struct{}),
	}
	t, err := dial(ctx, cfg, r.onMessage)
	if err != nil {
		return nil, err
	}
	r.t = t
	return r, nil
}

// Pair subscribes the pairing topic from uri and waits for the proposal.
func (r *Responder) Pair(ctx context.Context, uri string) error {
	p, err := ParseURI(uri)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.topics[p.Topic] = p.SymKey
	r.mu.Unlock()
	if _, err := r.t.subscribe(ctx, p.Topic); err != nil {
		return fmt.Errorf("subscribing pairing topic: %w", err)
	}
	return nil
}

// Done is closed when the session ends from either side.
func (r *Responder) Done() <-chan struct{} { return r.done }

// Session returns the settled session, if any.
func (r *Responder) Session() (SessionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess == nil {
		return SessionInfo{}, false
	}
	return r.sess.SessionInfo, true
}

// Disconnect ends the session and tells the app.
func (r *Responder) Disconnect(ctx context.Context) error {
	r.mu.Lock()
	sess := r.sess
	r.sess = nil
	r.mu.Unlock()
	defer r.finish()
	if sess == nil {
		return nil
	}
	body, _ := json.Marshal(deleteParams{Code: CodeUserDisconnected, Message: "User disconnected."})
	return r.t.publish(ctx, sess.Topic, sess.key, rpcMessage{ID: r.t.id(), Method: MethodSessionDelete, Params: body}, optsDeleteReq)
}

// Close disconnects from the relay.
func (r *Responder) Close() error {
	r.finish()
	return r.t.close()
}

func (r *Responder) finish() {
	r.doneOnce.Do(func() {
		if r.unsub != nil {
			r.unsub()
		}
		close(r.done)
	})
}

func (r *Responder) onMessage(topic, message string) {
	r.mu.Lock()
	key, ok := r.topics[topic]
	r.mu.Unlock()
	if !ok {
		return
	}
	plain, err := Open(key, message)
	if err != nil {
		r.t.logger.WithError(err).Warn("dropping undecryptable message")
		return
	}
	var m rpcMessage
	if err := json.Unmarshal(plain, &m); err != nil {
		return
	}
	if !m.isRequest() {
		// Acks for settle, events and delete carry nothing we act on.
		return
	}

	switch m.Method {
	case MethodSessionPropose:
		r.onPropose(topic, key, m)
	case MethodSessionRequest:
		go r.onRequest(topic, key, m)
	case MethodSessionDelete:
		r.reply(topic, key, m.ID, json.RawMessage("true"), nil, optsDeleteRes)
		r.mu.Lock()
		r.sess = nil
		r.mu.Unlock()
		r.finish()
	default:
		r.reply(topic, key, m.ID, nil, &RPCError{Code: CodeUnsupportedMeth, Message: "unsupported method " + m.Method}, optsGenericFail)
	}
}

func (r *Responder) onPropose(pairingTopic string, pairingKey SymKey, m rpcMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var p proposeParams
	if err := json.Unmarshal(m.Params, &p); err != nil {
		r.reply(pairingTopic, pairingKey, m.ID, nil, &RPCError{Code: -32602, Message: err.Error()}, optsProposeRes)
		return
	}

	raw, err := r.provider.Request(ctx, "eth_requestAccounts")
	if err != nil {
		r.reply(pairingTopic, pairingKey, m.ID, nil, &RPCError{Code: CodeUserRejected, Message: "User rejected."}, optsProposeRes)
		return
	}
	var accounts []common.Address
	if err := json.Unmarshal(raw, &accounts); err != nil || len(accounts) == 0 {
		r.reply(pairingTopic, pairingKey, m.ID, nil, &RPCError{Code: CodeUserRejected, Message: "no accounts"}, optsProposeRes)
		return
	}
	chainID, err := r.chainID(ctx)
	if err != nil {
		r.reply(pairingTopic, pairingKey, m.ID, nil, &RPCError{Code: CodeUnsupportedChain, Message: err.Error()}, optsProposeRes)
		return
	}

	kp, err := NewKeyPair()
	if err != nil {
		return
	}
	key, err := kp.SessionKey(p.Proposer.PublicKey)
	if err != nil {
		r.reply(pairingTopic, pairingKey, m.ID, nil, &RPCError{Code: -32602, Message: err.Error()}, optsProposeRes)
		return
	}
	sessionTopic := key.Topic()
	r.mu.Lock()
	r.topics[sessionTopic] = key
	r.mu.Unlock()
	if _, err := r.t.subscribe(ctx, sessionTopic); err != nil {
		r.t.logger.WithError(err).Warn("subscribing session topic")
		return
	}

	res, _ := json.Marshal(proposeResult{Relay: relayProtocol{Protocol: "irn"}, ResponderPublicKey: kp.PublicHex()})
	r.reply(pairingTopic, pairingKey, m.ID, res, nil, optsProposeRes)

	methods := append([]string{}, p.RequiredNamespaces["eip155"].Methods...)
	methods = append(methods, p.OptionalNamespaces["eip155"].Methods...)
	info := SessionInfo{
		Topic:    sessionTopic,
		Peer:     p.Proposer.Metadata,
		Accounts: accounts,
		ChainID:  chainID,
		Methods:  methods,
		Expiry:   time.Now().Add(sessionLifetime),
	}
	caip := []string{CAIP10(chainID, accounts[0])}
	for _, c := range p.RequiredNamespaces["eip155"].Chains {
		if id, err := ParseCAIP2(c); err == nil && id != chainID {
			caip = append(caip, CAIP10(id, accounts[0]))
		}
	}

	settle, _ := json.Marshal(settleParams{
		Relay:      relayProtocol{Protocol: "irn"},
		Namespaces: map[string]Namespace{"eip155": {Accounts: caip, Methods: methods, Events: sessionEvents}},
		Controller: participant{PublicKey: kp.PublicHex(), Metadata: r.cfg.Metadata},
		Expiry:     info.Expiry.Unix(),
	})

	r.mu.Lock()
	r.sess = &session{SessionInfo: info, key: key}
	r.mu.Unlock()

	if err := r.t.publish(ctx, sessionTopic, key, rpcMessage{ID: r.t.id(), Method: MethodSessionSettle, Params: settle}, optsSettleReq); err != nil {
		r.t.logger.WithError(err).Warn("publishing settle")
		return
	}
	r.t.logger.WithFields(log.Fields{"peer": info.Peer.Name, "chain": chainID}).Info("relay session approved")

	events, unsub := r.provider.Subscribe()
	r.mu.Lock()
	r.unsub = unsub
	r.mu.Unlock()
	go r.forwardEvents(events)
}

func (r *Responder) onRequest(topic string, key SymKey, m rpcMessage) {
	var p sessionRequestParams
	if err := json.Unmarshal(m.Params, &p); err != nil {
		r.reply(topic, key, m.ID, nil, &RPCError{Code: -32602, Message: err.Error()}, optsRequestRes)
		return
	}
	var raw []json.RawMessage
	if len(p.Request.Params) > 0 {
		if err := json.Unmarshal(p.Request.Params, &raw); err != nil {
			r.reply(topic, key, m.ID, nil, &RPCError{Code: -32602, Message: "params must be an array"}, optsRequestRes)
			return
		}
	}
	params := make([]interface{}, len(raw))
	for i := range raw {
		params[i] = raw[i]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	res, err := r.provider.Request(ctx, p.Request.Method, params...)
	if err != nil {
		rpcErr := &RPCError{Code: -32000, Message: err.Error()}
		var pe *wallet.ProviderError
		if errors.As(err, &pe) {
			rpcErr = &RPCError{Code: pe.Code, Message: pe.Message}
		}
		r.reply(topic, key, m.ID, nil, rpcErr, optsRequestRes)
		return
	}
	if len(res) == 0 {
		res = json.RawMessage("null")
	}
	r.reply(topic, key, m.ID, res, nil, optsRequestRes)
}

func (r *Responder) forwardEvents(events <-chan wallet.ProviderEvent) {
	for ev := range events {
		r.mu.Lock()
		sess := r.sess
		r.mu.Unlock()
		if sess == nil {
			continue
		}

		var p sessionEventParams
		p.Event.Name = ev.Name
		switch ev.Name {
		case wallet.EventChainChanged:
			p.Event.Data, _ = json.Marshal(ev.ChainID)
			p.ChainID = CAIP2(ev.ChainID)
			r.mu.Lock()
			if r.sess != nil {
				r.sess.ChainID = ev.ChainID
			}
			r.mu.Unlock()
		case wallet.EventAccountsChanged:
			addrs := make([]string, 0, len(ev.Accounts))
			for _, a := range ev.Accounts {
				addrs = append(addrs, a.Hex())
			}
			p.Event.Data, _ = json.Marshal(addrs)
			p.ChainID = CAIP2(sess.ChainID)
		default:
			continue
		}

		body, _ := json.Marshal(p)
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := r.t.publish(ctx, sess.Topic, sess.key, rpcMessage{ID: r.t.id(), Method: MethodSessionEvent, Params: body}, optsEventReq)
		cancel()
		if err != nil {
			r.t.logger.WithError(err).Warn("forwarding wallet event")
		}
	}
}

func (r *Responder) chainID(ctx context.Context) (int64, error) {
	raw, err := r.provider.Request(ctx, "eth_chainId")
	if err != nil {
		return 0, err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	id, err := hexutil.DecodeUint64(s)
	return int64(id), err
}

func (r *Responder) reply(topic string, key SymKey, id uint64, result json.RawMessage, rpcErr *RPCError, opts publishOpts) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.t.publish(ctx, topic, key, rpcMessage{ID: id, Result: result, Error: rpcErr}, opts); err != nil {
		r.t.logger.WithError(err).Debug("reply failed")
	}
}
