package wallet

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileKeystore returns a file-backed Keystore isolated to a temp directory so
// tests never touch the OS keychain.
func fileKeystore(t *testing.T) *Keystore {
	t.Helper()
	ring, err := keyring.Open(keyring.Config{
		ServiceName:      "monadvote-test",
		AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
		FileDir:          t.TempDir(),
		FilePasswordFunc: keyring.FixedStringPrompt("testpass"),
	})
	require.NoError(t, err)
	return &Keystore{ring: ring}
}

func TestNormaliseHexKey(t *testing.T) {
	assert.Equal(t, "abc123", normaliseHexKey("0xabc123"))
	assert.Equal(t, "abc123", normaliseHexKey("0Xabc123"))
	assert.Equal(t, "abc", normaliseHexKey("  0xabc  "))
	assert.Equal(t, "", normaliseHexKey("0x"))
	assert.Equal(t, "", normaliseHexKey(""))
}

func TestKeystoreFileBackendRoundTrip(t *testing.T) {
	ks := fileKeystore(t)

	ref, err := ks.Store("voter", "0xABCDEF")
	require.NoError(t, err)
	assert.Equal(t, "monadvote.voter", ref)

	got, err := ks.Retrieve(ref)
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF", got)

	require.NoError(t, ks.Delete(ref))
	_, err = ks.Retrieve(ref)
	assert.Error(t, err)
	assert.NoError(t, ks.Delete(ref), "deleting twice is fine")
}

func TestKeystoreEnvOverride(t *testing.T) {
	t.Setenv(EnvPrivateKey, "0xfeed")

	got, err := (&Keystore{}).Retrieve("monadvote.anything")
	require.NoError(t, err)
	assert.Equal(t, "feed", got)
}

func TestKeystoreNilRing(t *testing.T) {
	ks := &Keystore{}
	_, err := ks.Store("x", "00")
	assert.ErrorIs(t, err, ErrKeystoreUnavailable)
	_, err = ks.Retrieve("monadvote.x")
	assert.ErrorIs(t, err, ErrKeystoreUnavailable)
	assert.NoError(t, ks.Delete("monadvote.x"))
}

func TestSignerWatchOnlyCannotSign(t *testing.T) {
	w := &Wallet{Name: "watch", Address: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", Type: TypeWatchOnly}
	_, err := NewSigner(w, NewInMemoryKeystore()).SignMessage([]byte("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch-only")
}

func TestVerifyMessageBadLength(t *testing.T) {
	_, err := VerifyMessage([]byte("hi"), []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDeleteMissingFileKey(t *testing.T) {
	ks := fileKeystore(t)
	assert.NoError(t, ks.Delete("monadvote.never-stored"))
}

func TestManagerRemovesWalletWhoseKeyIsGone(t *testing.T) {
	ks := fileKeystore(t)
	mgr := NewManager(WithInMemoryStore(), WithKeyStore(ks))
	w, err := mgr.AddWithKey("voter", "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)

	// The key file disappears underneath the wallet metadata.
	require.NoError(t, ks.ring.Remove(w.KeyRef))

	require.NoError(t, mgr.Remove("voter"))
	_, err = mgr.Get("voter")
	assert.ErrorIs(t, err, ErrWalletNotFound)
}
