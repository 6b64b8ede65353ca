package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// DefaultURL is the public relay.
const DefaultURL = "wss://relay.walletconnect.org"

// ErrClosed is returned once the relay connection has gone away.
var ErrClosed = errors.New("relay connection closed")

const (
	writeTimeout = 10 * time.Second
	inboxSize    = 64
)

// Config configures a relay connection.
type Config struct {
	URL       string
	ProjectID string
	Metadata  Metadata
	Dialer    *websocket.Dialer
}

type inbound struct {
	topic   string
	message string
}

// transport is the relay JSON-RPC connection shared by both session roles.
// Inbound subscription messages are handed to handle one at a time on a
// dedicated goroutine so the handler may itself call the relay.
type transport struct {
	conn   *websocket.Conn
	handle func(topic, message string)
	logger *log.Entry

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan rpcMessage
	err     error

	inbox chan inbound
	done  chan struct{}
	once  sync.Once
}

func dial(ctx context.Context, cfg Config, handle func(topic, message string)) (*transport, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("relay project id is not configured")
	}
	base := cfg.URL
	if base == "" {
		base = DefaultURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing relay url: %w", err)
	}
	auth, err := authToken(u.Scheme+"://"+u.Host, time.Now())
	if err != nil {
		return nil, fmt.Errorf("building relay auth: %w", err)
	}
	clientID := uuid.NewString()
	q := u.Query()
	q.Set("projectId", cfg.ProjectID)
	q.Set("auth", auth)
	q.Set("ua", "wc-2/go-monadvote")
	u.RawQuery = q.Encode()

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing relay %s: %w", base, err)
	}

	t := &transport{
		conn:    conn,
		handle:  handle,
		logger:  log.WithFields(log.Fields{"relay": u.Host, "client": clientID}),
		pending: make(map[uint64]chan rpcMessage),
		inbox:   make(chan inbound, inboxSize),
		done:    make(chan struct{}),
	}
	t.nextID.Store(uint64(time.Now().UnixMilli()) * 1000)

	go t.readLoop()
	go t.dispatch()
	t.logger.Debug("relay connected")
	return t, nil
}

func (t *transport) id() uint64 { return t.nextID.Add(1) }

func (t *transport) write(m rpcMessage) error {
	m.JSONRPC = "2.0"
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
	return t.conn.WriteJSON(m)
}

// call sends a relay request and waits for its response.
func (t *transport) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	id := t.id()
	ch := make(chan rpcMessage, 1)
	t.mu.Lock()
	if t.err != nil {
		t.mu.Unlock()
		return nil, t.err
	}
	t.pending[id] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if err := t.write(rpcMessage{ID: id, Method: method, Params: raw}); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	select {
	case res := <-ch:
		if res.Error != nil {
			return nil, fmt.Errorf("%s: %w", method, res.Error)
		}
		return res.Result, nil
	case <-t.done:
		return nil, fmt.Errorf("%s: %w", method, t.closeErr())
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *transport) subscribe(ctx context.Context, topic string) (string, error) {
	raw, err := t.call(ctx, methodSubscribe, topicParams{Topic: topic})
	if err != nil {
		return "", err
	}
	var subID string
	if err := json.Unmarshal(raw, &subID); err != nil {
		return "", fmt.Errorf("parsing subscription id: %w", err)
	}
	return subID, nil
}

func (t *transport) unsubscribe(ctx context.Context, topic, subID string) error {
	_, err := t.call(ctx, methodUnsubscribe, topicParams{Topic: topic, ID: subID})
	return err
}

// publish seals payload with key and publishes it on topic.
func (t *transport) publish(ctx context.Context, topic string, key SymKey, payload rpcMessage, opts publishOpts) error {
	payload.JSONRPC = "2.0"
	plain, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg, err := Seal(key, plain)
	if err != nil {
		return err
	}
	_, err = t.call(ctx, methodPublish, publishParams{
		Topic:   topic,
		Message: msg,
		TTL:     opts.ttl,
		Tag:     opts.tag,
		Prompt:  payload.Method == MethodSessionRequest,
	})
	return err
}

func (t *transport) readLoop() {
	for {
		var m rpcMessage
		if err := t.conn.ReadJSON(&m); err != nil {
			t.shutdown(err)
			return
		}
		if !m.isRequest() {
			t.resolve(m)
			continue
		}
		if m.Method != methodSubscription {
			t.logger.WithField("method", m.Method).Debug("ignoring relay request")
			continue
		}
		var p subscriptionParams
		if err := json.Unmarshal(m.Params, &p); err != nil {
			t.logger.WithError(err).Warn("bad subscription payload")
			continue
		}
		if err := t.write(rpcMessage{ID: m.ID, Result: json.RawMessage("true")}); err != nil {
			t.logger.WithError(err).Debug("ack failed")
		}
		select {
		case t.inbox <- inbound{topic: p.Data.Topic, message: p.Data.Message}:
		case <-t.done:
			return
		}
	}
}

// resolve hands a relay response to its caller. Redelivered responses are
// dropped.
func (t *transport) resolve(m rpcMessage) {
	t.mu.Lock()
	ch := t.pending[m.ID]
	t.mu.Unlock()
	deliver(ch, m)
}

func (t *transport) dispatch() {
	for {
		select {
		case in := <-t.inbox:
			t.handle(in.topic, in.message)
		case <-t.done:
			return
		}
	}
}

func (t *transport) closeErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		return ErrClosed
	}
	return t.err
}

func (t *transport) shutdown(cause error) {
	t.once.Do(func() {
		t.mu.Lock()
		t.err = fmt.Errorf("%w: %v", ErrClosed, cause)
		t.mu.Unlock()
		close(t.done)
		t.conn.Close() //nolint:errcheck
	})
}

func (t *transport) close() error {
	t.writeMu.Lock()
	t.conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()
	t.shutdown(errors.New("closed by client"))
	return nil
}
