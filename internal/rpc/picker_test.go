package rpc_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terauss/Monad-Voting-App/internal/rpc"
)

// checked builds an endpoint that has been health-checked.
func checked(url string, latency time.Duration, block uint64, healthy bool) rpc.Endpoint {
	return rpc.Endpoint{URL: url, Latency: latency, BlockNumber: block, Healthy: healthy, Checked: true}
}

func unchecked(url string, latency time.Duration, block uint64) rpc.Endpoint {
	return rpc.Endpoint{URL: url, Latency: latency, BlockNumber: block}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := rpc.ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, rpc.AlgorithmFastest, a)

	a, err = rpc.ParseAlgorithm("round-robin")
	require.NoError(t, err)
	assert.Equal(t, rpc.AlgorithmRoundRobin, a)

	_, err = rpc.ParseAlgorithm("random")
	assert.Error(t, err)
}

func TestPickerSelectsFastest(t *testing.T) {
	endpoints := []rpc.Endpoint{
		unchecked("https://testnet-rpc.monad.xyz/", 200*time.Millisecond, 100),
		unchecked("https://fast.example", 30*time.Millisecond, 100),
	}

	winner, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "https://fast.example", winner.URL)
}

func TestPickerDiscardsStaleNodes(t *testing.T) {
	endpoints := []rpc.Endpoint{
		checked("https://fresh", 50*time.Millisecond, 1000, true),
		checked("https://stale", 10*time.Millisecond, 990, true),
	}

	winner, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "https://fresh", winner.URL, "stale node loses even if faster")
}

func TestPickerSubMillisecondLatency(t *testing.T) {
	endpoints := []rpc.Endpoint{
		checked("https://local", 300*time.Microsecond, 10, true),
		checked("https://remote", 40*time.Millisecond, 10, true),
	}

	winner, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "https://local", winner.URL)
}

func TestPickerRoundRobinCycles(t *testing.T) {
	endpoints := []rpc.Endpoint{
		checked("https://rpc1", 0, 100, true),
		checked("https://rpc2", 0, 100, false),
		checked("https://rpc3", 0, 100, true),
	}

	p := rpc.NewPicker(rpc.AlgorithmRoundRobin)
	first, _ := p.Pick(endpoints)
	second, _ := p.Pick(endpoints)
	third, _ := p.Pick(endpoints)

	assert.Equal(t, "https://rpc1", first.URL)
	assert.Equal(t, "https://rpc3", second.URL, "unhealthy endpoint is skipped")
	assert.Equal(t, first.URL, third.URL)
}

func TestPickerFailover(t *testing.T) {
	endpoints := []rpc.Endpoint{
		checked("https://primary", 0, 100, false),
		checked("https://secondary", 0, 100, true),
	}

	winner, err := rpc.NewPicker(rpc.AlgorithmFailover).Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "https://secondary", winner.URL)
}

func TestPickerErrorsWhenAllUnhealthy(t *testing.T) {
	endpoints := []rpc.Endpoint{
		checked("https://rpc1", 100*time.Millisecond, 0, false),
		checked("https://rpc2", 200*time.Millisecond, 0, false),
	}

	for _, algo := range []rpc.Algorithm{rpc.AlgorithmFastest, rpc.AlgorithmRoundRobin, rpc.AlgorithmFailover} {
		_, err := rpc.NewPicker(algo).Pick(endpoints)
		assert.ErrorIs(t, err, rpc.ErrNoHealthyRPC, string(algo))
	}
}

func TestPickerCachesWinner(t *testing.T) {
	scores := 0
	endpoints := []rpc.Endpoint{unchecked("https://fast", 30*time.Millisecond, 100)}

	p := rpc.NewPicker(rpc.AlgorithmFastest)
	p.OnScore(func() { scores++ })

	for range 3 {
		_, err := p.Pick(endpoints)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, scores)
}

func TestPickerEmptyEndpoints(t *testing.T) {
	_, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(nil)
	assert.ErrorIs(t, err, rpc.ErrNoHealthyRPC)
}
