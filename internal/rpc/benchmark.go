package rpc

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/terauss/Monad-Voting-App/internal/network"
)

// BenchmarkResult is the outcome of checking one endpoint.
type BenchmarkResult struct {
	URL         string
	Latency     time.Duration
	BlockNumber uint64
	ChainID     int64
	Err         error
}

// BenchmarkNetwork health-checks every RPC URL of net in parallel. Results
// keep the configured URL order.
func BenchmarkNetwork(ctx context.Context, net network.Config) []BenchmarkResult {
	results := make([]BenchmarkResult, len(net.RPCURLs))
	var wg sync.WaitGroup

	for i, url := range net.RPCURLs {
		wg.Add(1)
		go func(idx int, u string) {
			defer wg.Done()
			ep, err := HealthCheck(ctx, u, net.ChainID, 0)
			results[idx] = BenchmarkResult{
				URL:         u,
				Latency:     ep.Latency,
				BlockNumber: ep.BlockNumber,
				ChainID:     ep.ChainID,
				Err:         err,
			}
		}(i, url)
	}

	wg.Wait()
	return results
}

// ResultsToEndpoints converts results into checked endpoints.
func ResultsToEndpoints(results []BenchmarkResult) []Endpoint {
	endpoints := make([]Endpoint, 0, len(results))
	for _, r := range results {
		endpoints = append(endpoints, Endpoint{
			URL:         r.URL,
			Latency:     r.Latency,
			BlockNumber: r.BlockNumber,
			ChainID:     r.ChainID,
			Healthy:     r.Err == nil,
			Checked:     true,
		})
	}
	return endpoints
}

// SelectBest returns the RPC URL to use for net. Networks with a single URL
// skip benchmarking.
func SelectBest(ctx context.Context, net network.Config, algo Algorithm) (string, error) {
	switch len(net.RPCURLs) {
	case 0:
		return "", ErrNoHealthyRPC
	case 1:
		return net.RPCURLs[0], nil
	}
	if algo == AlgorithmFailover {
		// Configured order already encodes preference.
		return net.RPCURLs[0], nil
	}

	results := BenchmarkNetwork(ctx, net)
	for _, r := range results {
		if r.Err != nil {
			log.WithFields(log.Fields{"network": net.Key, "url": r.URL}).WithError(r.Err).Debug("rpc endpoint unhealthy")
		}
	}
	winner, err := NewPicker(algo).Pick(ResultsToEndpoints(results))
	if err != nil {
		return "", err
	}
	return winner.URL, nil
}
