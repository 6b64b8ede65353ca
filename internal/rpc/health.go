package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/terauss/Monad-Voting-App/internal/chain"
)

const healthTimeout = 5 * time.Second

// HealthCheck pings url and verifies it serves expectedChainID (skipped when
// zero). A node more than staleBlockThreshold blocks behind bestBlock is
// unhealthy; pass bestBlock 0 to skip that check.
func HealthCheck(ctx context.Context, url string, expectedChainID int64, bestBlock uint64) (Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	c := chain.NewEVMClient(url)
	ep := Endpoint{URL: url, Checked: true}

	latency, block, err := c.Ping(ctx)
	ep.Latency, ep.BlockNumber = latency, block
	if err != nil {
		return ep, err
	}

	if expectedChainID != 0 {
		id, err := c.ChainID(ctx)
		if err != nil {
			return ep, err
		}
		ep.ChainID = id
		if id != expectedChainID {
			return ep, fmt.Errorf("%s serves chain %d, want %d", url, id, expectedChainID)
		}
	}

	ep.Healthy = bestBlock == 0 || bestBlock < block || bestBlock-block <= staleBlockThreshold
	return ep, nil
}
