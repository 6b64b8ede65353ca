package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrNoLeaderboard is returned by Leaderboard when the bound ABI has no
// getHappyLeaderboard method.
var ErrNoLeaderboard = errors.New("contract has no leaderboard")

// Caller executes eth_call. ethclient.Client satisfies it, as does the
// injected wallet provider adapter.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Tally is the aggregate vote count.
type Tally struct {
	Happy uint64
	Sad   uint64
}

// LeaderboardRow is one ranked voter as returned by the contract, before any
// client-side filtering.
type LeaderboardRow struct {
	Address    common.Address
	HappyVotes uint64
}

// VoteContract is a handle to a deployed vote contract.
type VoteContract struct {
	address common.Address
	abi     abi.ABI
	caller  Caller
}

// NewVoteContract binds address using the built-in ABI abiID.
func NewVoteContract(address common.Address, abiID string, caller Caller) (*VoteContract, error) {
	b, ok := GetBuiltin(abiID)
	if !ok {
		return nil, fmt.Errorf("unknown contract ABI %q", abiID)
	}
	return &VoteContract{address: address, abi: b.ABI, caller: caller}, nil
}

// Address returns the bound contract address.
func (v *VoteContract) Address() common.Address { return v.address }

// HasLeaderboard reports whether the ABI exposes getHappyLeaderboard.
func (v *VoteContract) HasLeaderboard() bool {
	_, ok := v.abi.Methods["getHappyLeaderboard"]
	return ok
}

// GetVotes reads the happy and sad totals.
func (v *VoteContract) GetVotes(ctx context.Context) (Tally, error) {
	out, err := v.call(ctx, "getVotes")
	if err != nil {
		return Tally{}, err
	}
	if len(out) != 2 {
		return Tally{}, fmt.Errorf("getVotes: expected 2 outputs, got %d", len(out))
	}
	happy, err := asUint64(out[0])
	if err != nil {
		return Tally{}, fmt.Errorf("getVotes happy: %w", err)
	}
	sad, err := asUint64(out[1])
	if err != nil {
		return Tally{}, fmt.Errorf("getVotes sad: %w", err)
	}
	return Tally{Happy: happy, Sad: sad}, nil
}

// CanVote reports whether account is outside its cooldown.
func (v *VoteContract) CanVote(ctx context.Context, account common.Address) (bool, error) {
	out, err := v.call(ctx, "canVote", account)
	if err != nil {
		return false, err
	}
	ok, isBool := out[0].(bool)
	if !isBool {
		return false, fmt.Errorf("canVote: unexpected output type %T", out[0])
	}
	return ok, nil
}

// TimeUntilNextVote returns the remaining cooldown in seconds.
func (v *VoteContract) TimeUntilNextVote(ctx context.Context, account common.Address) (uint64, error) {
	out, err := v.call(ctx, "timeUntilNextVote", account)
	if err != nil {
		return 0, err
	}
	secs, err := asUint64(out[0])
	if err != nil {
		return 0, fmt.Errorf("timeUntilNextVote: %w", err)
	}
	return secs, nil
}

// Leaderboard reads getHappyLeaderboard and zips the parallel arrays in
// contract order. Rows are returned unfiltered.
func (v *VoteContract) Leaderboard(ctx context.Context) ([]LeaderboardRow, error) {
	if !v.HasLeaderboard() {
		return nil, ErrNoLeaderboard
	}
	out, err := v.call(ctx, "getHappyLeaderboard")
	if err != nil {
		return nil, err
	}
	if len(out) != 2 {
		return nil, fmt.Errorf("getHappyLeaderboard: expected 2 outputs, got %d", len(out))
	}
	addrs, ok := out[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("getHappyLeaderboard: unexpected voters type %T", out[0])
	}
	counts, ok := out[1].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("getHappyLeaderboard: unexpected counts type %T", out[1])
	}

	if len(counts) != len(addrs) {
		return nil, fmt.Errorf("getHappyLeaderboard: %d voters but %d counts", len(addrs), len(counts))
	}

	rows := make([]LeaderboardRow, 0, len(addrs))
	for i, a := range addrs {
		n, err := asUint64(counts[i])
		if err != nil {
			return nil, fmt.Errorf("getHappyLeaderboard: count for %s: %w", a.Hex(), err)
		}
		rows = append(rows, LeaderboardRow{Address: a, HappyVotes: n})
	}
	return rows, nil
}

// PackVote returns calldata for vote(isHappy).
func (v *VoteContract) PackVote(isHappy bool) ([]byte, error) {
	data, err := v.abi.Pack("vote", isHappy)
	if err != nil {
		return nil, fmt.Errorf("packing vote: %w", err)
	}
	return data, nil
}

func (v *VoteContract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := v.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}

	to := v.address
	raw, err := v.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}

	out, err := v.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("decoding %s: empty result", method)
	}
	return out, nil
}

func asUint64(v interface{}) (uint64, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected type %T", v)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("value %s out of range", n)
	}
	return n.Uint64(), nil
}
