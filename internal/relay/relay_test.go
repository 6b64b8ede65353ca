package relay

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terauss/Monad-Voting-App/internal/wallet"
)

// ---------------------------------------------------------------------------
// in-memory relay
// ---------------------------------------------------------------------------

type fakeConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *fakeConn) send(v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.WriteJSON(v) //nolint:errcheck
}

// fakeRelay routes irn_publish to every other subscriber of the topic and
// holds messages for topics nobody else has subscribed to yet.
type fakeRelay struct {
	up     websocket.Upgrader
	nextID atomic.Uint64

	mu        sync.Mutex
	subs      map[string]map[*fakeConn]string
	backlog   map[string][]publishParams
	published []publishParams
	queries   []url.Values
}

func newFakeRelay(t *testing.T) (*fakeRelay, string) {
	t.Helper()
	f := &fakeRelay{
		subs:    make(map[string]map[*fakeConn]string),
		backlog: make(map[string][]publishParams),
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (f *fakeRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := f.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.queries = append(f.queries, r.URL.Query())
	f.mu.Unlock()

	conn := &fakeConn{ws: ws}
	defer ws.Close()
	for {
		var m rpcMessage
		if err := ws.ReadJSON(&m); err != nil {
			return
		}
		if !m.isRequest() {
			continue
		}
		switch m.Method {
		case methodSubscribe:
			var p topicParams
			json.Unmarshal(m.Params, &p) //nolint:errcheck
			subID := uuid.NewString()
			f.mu.Lock()
			if f.subs[p.Topic] == nil {
				f.subs[p.Topic] = make(map[*fakeConn]string)
			}
			f.subs[p.Topic][conn] = subID
			held := f.backlog[p.Topic]
			delete(f.backlog, p.Topic)
			f.mu.Unlock()
			conn.send(map[string]interface{}{"id": m.ID, "jsonrpc": "2.0", "result": subID})
			for _, msg := range held {
				f.deliver(conn, subID, msg)
			}
		case methodPublish:
			var p publishParams
			json.Unmarshal(m.Params, &p) //nolint:errcheck
			f.mu.Lock()
			f.published = append(f.published, p)
			targets := map[*fakeConn]string{}
			for c, id := range f.subs[p.Topic] {
				if c != conn {
					targets[c] = id
				}
			}
			if len(targets) == 0 {
				f.backlog[p.Topic] = append(f.backlog[p.Topic], p)
			}
			f.mu.Unlock()
			conn.send(map[string]interface{}{"id": m.ID, "jsonrpc": "2.0", "result": true})
			for c, id := range targets {
				f.deliver(c, id, p)
			}
		case methodUnsubscribe:
			var p topicParams
			json.Unmarshal(m.Params, &p) //nolint:errcheck
			f.mu.Lock()
			delete(f.subs[p.Topic], conn)
			f.mu.Unlock()
			conn.send(map[string]interface{}{"id": m.ID, "jsonrpc": "2.0", "result": true})
		}
	}
}

func (f *fakeRelay) deliver(c *fakeConn, subID string, p publishParams) {
	c.send(map[string]interface{}{
		"id":      f.nextID.Add(1),
		"jsonrpc": "2.0",
		"method":  methodSubscription,
		"params": map[string]interface{}{
			"id": subID,
			"data": map[string]interface{}{
				"topic":       p.Topic,
				"message":     p.Message,
				"publishedAt": time.Now().UnixMilli(),
				"tag":         p.Tag,
			},
		},
	})
}

func (f *fakeRelay) tags() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, 0, len(f.published))
	for _, p := range f.published {
		out = append(out, p.Tag)
	}
	return out
}

// ---------------------------------------------------------------------------
// crypto / encoding
// ---------------------------------------------------------------------------

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := NewSymKey()
	require.NoError(t, err)

	msg, err := Seal(key, []byte(`{"id":1}`))
	require.NoError(t, err)
	plain, err := Open(key, msg)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(plain))

	other, _ := NewSymKey()
	_, err = Open(other, msg)
	assert.Error(t, err)
}

func TestOpenRejectsWrongEnvelopeType(t *testing.T) {
	key, _ := NewSymKey()
	_, err := Open(key, "AQ==")
	assert.Error(t, err)
}

func TestSessionKeyAgreement(t *testing.T) {
	a, err := NewKeyPair()
	require.NoError(t, err)
	b, err := NewKeyPair()
	require.NoError(t, err)

	ka, err := a.SessionKey(b.PublicHex())
	require.NoError(t, err)
	kb, err := b.SessionKey(a.PublicHex())
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
	assert.Len(t, ka.Topic(), 64)

	_, err = a.SessionKey("zz")
	assert.Error(t, err)
}

func TestPairingURIRoundTrip(t *testing.T) {
	p, err := NewPairing()
	require.NoError(t, err)

	uri := p.URI()
	assert.True(t, strings.HasPrefix(uri, "wc:"+p.Topic+"@2?relay-protocol=irn&symKey="))

	back, err := ParseURI(uri)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestParseURIErrors(t *testing.T) {
	p, _ := NewPairing()
	other, _ := NewSymKey()

	for _, uri := range []string{
		"http://example.com",
		"wc:" + p.Topic + "@1?relay-protocol=irn&symKey=" + p.SymKey.Hex(),
		"wc:" + p.Topic + "@2?relay-protocol=waku&symKey=" + p.SymKey.Hex(),
		"wc:" + p.Topic + "@2?relay-protocol=irn&symKey=abc",
		"wc:" + p.Topic + "@2?relay-protocol=irn&symKey=" + other.Hex(),
	} {
		_, err := ParseURI(uri)
		assert.Error(t, err, uri)
	}
}

func TestCAIP(t *testing.T) {
	assert.Equal(t, "eip155:143", CAIP2(143))

	id, err := ParseCAIP2("eip155:10143")
	require.NoError(t, err)
	assert.Equal(t, int64(10143), id)
	_, err = ParseCAIP2("solana:mainnet")
	assert.Error(t, err)

	addr := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	id, got, err := ParseCAIP10(CAIP10(143, addr))
	require.NoError(t, err)
	assert.Equal(t, int64(143), id)
	assert.Equal(t, addr, got)
	_, _, err = ParseCAIP10("eip155:143:nope")
	assert.Error(t, err)
}

func TestParseEventChain(t *testing.T) {
	for in, want := range map[string]int64{`143`: 143, `"0x8f"`: 143, `"eip155:10143"`: 10143, `"10143"`: 10143} {
		got, err := parseEventChain(json.RawMessage(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestDIDKeyIsBase58Ed25519(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	did := didKey(pub)
	require.True(t, strings.HasPrefix(did, "did:key:z6Mk"), did)
	raw, err := base58.Decode(strings.TrimPrefix(did, "did:key:z"))
	require.NoError(t, err)
	assert.Equal(t, didKeyPrefix, raw[:2])
	assert.Equal(t, []byte(pub), raw[2:])
}

func TestAuthTokenVerifiesAgainstIssuer(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tok, err := authToken("wss://relay.walletconnect.org", now)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(tok *jwt.Token) (interface{}, error) {
		iss, err := tok.Claims.GetIssuer()
		if err != nil {
			return nil, err
		}
		raw, err := base58.Decode(strings.TrimPrefix(iss, "did:key:z"))
		if err != nil {
			return nil, err
		}
		return ed25519.PublicKey(raw[len(didKeyPrefix):]), nil
	}, jwt.WithValidMethods([]string{"EdDSA"}), jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "JWT", parsed.Header["typ"])
	assert.Equal(t, "wss://relay.walletconnect.org", claims["aud"])
	assert.Equal(t, float64(now.Unix()), claims["iat"])
	assert.Equal(t, float64(now.Add(authTTL).Unix()), claims["exp"])
	assert.Len(t, claims["sub"], 64)
}

func TestAuthTokenRejectsTampering(t *testing.T) {
	tok, err := authToken("wss://relay.walletconnect.org", time.Now())
	require.NoError(t, err)
	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)

	other, err := authToken("wss://evil.example", time.Now())
	require.NoError(t, err)
	forged := parts[0] + "." + strings.Split(other, ".")[1] + "." + parts[2]

	_, err = jwt.Parse(forged, func(tok *jwt.Token) (interface{}, error) {
		iss, _ := tok.Claims.GetIssuer()
		raw, err := base58.Decode(strings.TrimPrefix(iss, "did:key:z"))
		if err != nil {
			return nil, err
		}
		return ed25519.PublicKey(raw[len(didKeyPrefix):]), nil
	})
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// full session through the in-memory relay
// ---------------------------------------------------------------------------

const (
	peerKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	peerAddr   = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func peerProvider(t *testing.T) *wallet.InjectedProvider {
	t.Helper()
	ks := wallet.NewInMemoryKeystore()
	ref, err := ks.Store("peer", peerKeyHex)
	require.NoError(t, err)
	w := &wallet.Wallet{Name: "peer", Address: peerAddr, Type: wallet.TypeSigning, KeyRef: ref}
	return wallet.NewInjectedProvider(w, ks, wallet.WithKnownChains([]wallet.KnownChain{
		{ChainID: 10143, Name: "Monad Testnet", RPCURLs: []string{"http://127.0.0.1:1"}},
	}, 10143))
}

func waitEvent(t *testing.T, c *Client, want EventType) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
			return Event{}
		}
	}
}

func TestDialRequiresProjectID(t *testing.T) {
	_, err := Dial(context.Background(), Config{URL: "ws://127.0.0.1:1"}, nil)
	assert.Error(t, err)
}

func TestSessionEndToEnd(t *testing.T) {
	relay, url := newFakeRelay(t)
	ctx := context.Background()

	app, err := Dial(ctx, Config{URL: url, ProjectID: "test-project", Metadata: Metadata{Name: "monadvote"}}, []int64{143, 10143})
	require.NoError(t, err)
	defer app.Close()

	pairing, err := app.Pair(ctx)
	require.NoError(t, err)

	peer, err := NewResponder(ctx, Config{URL: url, ProjectID: "test-project", Metadata: Metadata{Name: "peer wallet"}}, peerProvider(t))
	require.NoError(t, err)
	defer peer.Close()
	require.NoError(t, peer.Pair(ctx, pairing.URI()))

	settled := waitEvent(t, app, EventSettled)
	assert.Equal(t, []common.Address{common.HexToAddress(peerAddr)}, settled.Accounts)
	assert.Equal(t, int64(10143), settled.ChainID)
	assert.Equal(t, "peer wallet", settled.Peer.Name)
	assert.True(t, app.SupportsMethod("wallet_switchEthereumChain"))

	// personal_sign goes through the wallet and back.
	raw, err := app.Request(ctx, 10143, "personal_sign", hexutil.Bytes("gm"), peerAddr)
	require.NoError(t, err)
	var sig hexutil.Bytes
	require.NoError(t, json.Unmarshal(raw, &sig))
	signer, err := wallet.VerifyMessage([]byte("gm"), sig)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(peerAddr), signer)

	// Unknown chain surfaces the wallet's error code.
	_, err = app.Request(ctx, 10143, "wallet_switchEthereumChain", map[string]string{"chainId": "0x8f"})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, wallet.CodeUnrecognizedChain, rpcErr.Code)

	// Adding the chain switches the wallet, which emits chainChanged.
	_, err = app.Request(ctx, 10143, "wallet_addEthereumChain", map[string]interface{}{
		"chainId":   "0x8f",
		"chainName": "Monad Mainnet",
		"rpcUrls":   []string{"https://rpc.monad.xyz"},
	})
	require.NoError(t, err)
	changed := waitEvent(t, app, EventChainChanged)
	assert.Equal(t, int64(143), changed.ChainID)
	info, ok := app.Session()
	require.True(t, ok)
	assert.Equal(t, int64(143), info.ChainID)

	// App-side disconnect ends the wallet's session.
	require.NoError(t, app.Disconnect(ctx))
	select {
	case <-peer.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("responder did not observe disconnect")
	}
	_, ok = app.Session()
	assert.False(t, ok)
	_, err = app.Request(ctx, 143, "eth_chainId")
	assert.ErrorIs(t, err, ErrNoSession)

	assert.Contains(t, relay.tags(), optsProposeReq.tag)
	assert.Contains(t, relay.tags(), optsSettleReq.tag)
	assert.Contains(t, relay.tags(), optsDeleteReq.tag)

	relay.mu.Lock()
	q := relay.queries[0]
	relay.mu.Unlock()
	assert.Equal(t, "test-project", q.Get("projectId"))
	assert.NotEmpty(t, q.Get("auth"))
}

func TestWalletDisconnectEmitsDeleted(t *testing.T) {
	_, url := newFakeRelay(t)
	ctx := context.Background()
	cfg := Config{URL: url, ProjectID: "p"}

	app, err := Dial(ctx, cfg, []int64{10143})
	require.NoError(t, err)
	defer app.Close()
	pairing, err := app.Pair(ctx)
	require.NoError(t, err)

	peer, err := NewResponder(ctx, cfg, peerProvider(t))
	require.NoError(t, err)
	defer peer.Close()
	require.NoError(t, peer.Pair(ctx, pairing.URI()))
	waitEvent(t, app, EventSettled)

	require.NoError(t, peer.Disconnect(ctx))
	waitEvent(t, app, EventDeleted)
	_, ok := app.Session()
	assert.False(t, ok)
}

func TestDuplicateResponsesDoNotBlock(t *testing.T) {
	first := rpcMessage{ID: 7, Result: json.RawMessage(`"first"`)}
	dup := rpcMessage{ID: 7, Result: json.RawMessage(`"again"`)}

	tr := &transport{pending: map[uint64]chan rpcMessage{7: make(chan rpcMessage, 1)}}
	c := &Client{waiters: map[uint64]chan rpcMessage{7: make(chan rpcMessage, 1)}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		tr.resolve(first)
		tr.resolve(dup)
		tr.resolve(rpcMessage{ID: 99})
		c.onResponse(first)
		c.onResponse(dup)
		c.onResponse(rpcMessage{ID: 99})
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("a redelivered response blocked the reader")
	}

	assert.JSONEq(t, `"first"`, string((<-tr.pending[7]).Result))
	assert.JSONEq(t, `"first"`, string((<-c.waiters[7]).Result))
}
