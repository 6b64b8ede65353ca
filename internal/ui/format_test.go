package ui

import (
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/terauss/Monad-Voting-App/internal/state"
)

func u64(v uint64) *uint64 { return &v }

func TestFormatCountdown(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatCountdown(0))
	assert.Equal(t, "00:01:05", FormatCountdown(65))
	assert.Equal(t, "24:00:00", FormatCountdown(86400))
}

func TestVoteBar(t *testing.T) {
	assert.Equal(t, strings.Repeat("░", 10), VoteBar(state.Snapshot{}, 10))
	bar := VoteBar(state.Snapshot{HappyVotes: 3, SadVotes: 1}, 20)
	assert.Equal(t, strings.Repeat("█", 20), bar)
	assert.Empty(t, VoteBar(state.Snapshot{HappyVotes: 1}, 0))
}

func TestTally(t *testing.T) {
	out := Tally(state.Snapshot{HappyVotes: 2, SadVotes: 1})
	assert.Contains(t, out, "☺ 2 (67%)")
	assert.Contains(t, out, "☹ 1 (33%)")
}

func TestEligibility(t *testing.T) {
	acct := common.HexToAddress("0x01")
	assert.Contains(t, Eligibility(state.State{}), "connect a wallet")
	assert.Contains(t, Eligibility(state.State{Account: acct, Snapshot: state.Snapshot{CanVote: true}}), "you can vote")
	assert.Contains(t, Eligibility(state.State{Account: acct, Snapshot: state.Snapshot{Cooldown: u64(3661)}}), "01:01:01")
	assert.Contains(t, Eligibility(state.State{Account: acct, Snapshot: state.Snapshot{Cooldown: u64(0)}}), "cooldown over")
}

func TestLeaderboardLimitsAndHighlights(t *testing.T) {
	var entries []state.LeaderboardEntry
	for i := 1; i <= 13; i++ {
		entries = append(entries, state.LeaderboardEntry{
			Address:    common.BigToAddress(big.NewInt(int64(i))),
			HappyVotes: uint64(100 - i),
		})
	}
	out := Leaderboard(entries, entries[0].Address.Hex())
	assert.Contains(t, out, "99")
	assert.Contains(t, out, "90")
	assert.NotContains(t, out, " 89 ")
	assert.Contains(t, out, "+3 more")
	assert.Contains(t, out, fmt.Sprintf("%-3d", 10))

	assert.Contains(t, Leaderboard(nil, ""), "no happy voters yet")
}

func TestNoticeRendering(t *testing.T) {
	assert.Contains(t, Notice(state.Notice{Text: "Vote successful!", Kind: state.NoticeSuccess}), "✓ Vote successful!")
	assert.Contains(t, Notice(state.Notice{Text: "Voting failed", Kind: state.NoticeError}), "✗ Voting failed")
	assert.Contains(t, Notice(state.Notice{Text: "Wallet disconnected", Kind: state.NoticeInfo}), "ℹ Wallet disconnected")
}
