package rpc

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNoHealthyRPC is returned when no endpoint of a network can be used.
var ErrNoHealthyRPC = errors.New("no healthy RPC endpoint available")

// Algorithm names how an endpoint is chosen among a network's RPC URLs.
type Algorithm string

const (
	AlgorithmFastest    Algorithm = "fastest"
	AlgorithmRoundRobin Algorithm = "round-robin"
	AlgorithmFailover   Algorithm = "failover"

	// Discard nodes more than this many blocks behind the best.
	staleBlockThreshold = 3
	// Cache the fastest winner for this long before re-scoring.
	cacheTTL = 5 * time.Minute
)

// ParseAlgorithm validates a configured algorithm name. Empty means fastest.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(s); a {
	case "":
		return AlgorithmFastest, nil
	case AlgorithmFastest, AlgorithmRoundRobin, AlgorithmFailover:
		return a, nil
	default:
		return "", fmt.Errorf("unknown RPC algorithm %q (fastest|round-robin|failover)", s)
	}
}

// Endpoint is one RPC URL with what was measured about it.
type Endpoint struct {
	URL         string
	Latency     time.Duration
	BlockNumber uint64
	ChainID     int64
	Healthy     bool // meaningful only when Checked
	Checked     bool
}

// Picker chooses an endpoint per call. It is safe for concurrent use.
type Picker struct {
	algo Algorithm

	mu          sync.Mutex
	rrIndex     int
	cachedURL   string
	cacheExpiry time.Time
	onScore     func()
}

// NewPicker creates a Picker for algo.
func NewPicker(algo Algorithm) *Picker {
	return &Picker{algo: algo}
}

// Algorithm returns the configured algorithm.
func (p *Picker) Algorithm() Algorithm { return p.algo }

// OnScore registers a hook run whenever the fastest algorithm re-scores
// instead of using its cached winner.
func (p *Picker) OnScore(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onScore = fn
}

// Pick selects one of endpoints. The returned pointer aliases the slice.
func (p *Picker) Pick(endpoints []Endpoint) (*Endpoint, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoHealthyRPC
	}
	switch p.algo {
	case AlgorithmRoundRobin:
		return p.pickRoundRobin(endpoints)
	case AlgorithmFailover:
		return pickFailover(endpoints)
	default:
		return p.pickFastest(endpoints)
	}
}

func (p *Picker) pickFastest(endpoints []Endpoint) (*Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cachedURL != "" && time.Now().Before(p.cacheExpiry) {
		for i := range endpoints {
			if endpoints[i].URL == p.cachedURL {
				return &endpoints[i], nil
			}
		}
	}
	if p.onScore != nil {
		p.onScore()
	}

	candidates := candidates(endpoints)
	best := bestBlock(candidates)

	var winner *Endpoint
	var top float64
	for _, e := range candidates {
		if best > 0 && best-e.BlockNumber > staleBlockThreshold {
			continue
		}
		if s := score(e, best); winner == nil || s > top {
			winner, top = e, s
		}
	}
	if winner == nil {
		return nil, ErrNoHealthyRPC
	}

	p.cachedURL = winner.URL
	p.cacheExpiry = time.Now().Add(cacheTTL)
	return winner, nil
}

func (p *Picker) pickRoundRobin(endpoints []Endpoint) (*Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := candidates(endpoints)
	if len(c) == 0 {
		return nil, ErrNoHealthyRPC
	}
	idx := p.rrIndex % len(c)
	p.rrIndex = (idx + 1) % len(c)
	return c[idx], nil
}

// pickFailover takes endpoints in configured order, skipping known-bad ones.
func pickFailover(endpoints []Endpoint) (*Endpoint, error) {
	for i := range endpoints {
		if e := &endpoints[i]; !e.Checked || e.Healthy {
			return e, nil
		}
	}
	return nil, ErrNoHealthyRPC
}

// score favours low latency, then block recency. Each block behind the best
// costs one point.
func score(e *Endpoint, best uint64) float64 {
	var s float64
	if ms := e.Latency.Milliseconds(); ms > 0 {
		s += 1000.0 / float64(ms)
	} else if e.Latency > 0 {
		s += 1000.0
	}
	if best > 0 {
		s += 10 - float64(best-e.BlockNumber)
	}
	return s
}

func bestBlock(endpoints []*Endpoint) uint64 {
	var best uint64
	for _, e := range endpoints {
		if e.BlockNumber > best {
			best = e.BlockNumber
		}
	}
	return best
}

// candidates drops endpoints that were checked and found unhealthy.
// Unchecked endpoints always qualify.
func candidates(endpoints []Endpoint) []*Endpoint {
	out := make([]*Endpoint, 0, len(endpoints))
	for i := range endpoints {
		if e := &endpoints[i]; !e.Checked || e.Healthy {
			out = append(out, e)
		}
	}
	return out
}
