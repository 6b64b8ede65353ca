package state

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terauss/Monad-Voting-App/internal/contract"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/session"
)

var voter = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func u64(v uint64) *uint64 { return &v }

func registry() *network.Registry { return network.NewRegistry(network.Overrides{}) }

func TestNewDefaultsToMainnet(t *testing.T) {
	s := New("")
	assert.Equal(t, network.Mainnet, s.SelectedKey)
	assert.Equal(t, Unknown, s.NetworkCorrect)
	assert.Equal(t, PhaseDisconnected, s.Phase)
	assert.False(t, s.HasAccount())
}

func TestSelectNetworkWithoutSessionOnlyChangesIntent(t *testing.T) {
	for _, key := range []network.Key{network.Testnet, network.Mainnet} {
		before := New(network.Mainnet)
		after := SelectNetwork(before, key)
		assert.Equal(t, key, after.SelectedKey)
		assert.Equal(t, before.Account, after.Account)
		assert.Equal(t, before.WalletType, after.WalletType)
		assert.Equal(t, Unknown, after.NetworkCorrect)
	}
}

func TestWrongChainThenSwitch(t *testing.T) {
	reg := registry()
	s := New(network.Mainnet)
	s = AccountConnected(s, reg, session.KindDirect, voter, 10143)
	assert.Equal(t, Wrong, s.NetworkCorrect)
	assert.Equal(t, network.Testnet, s.ActiveKey)

	s = ChainReported(s, reg, 143)
	assert.Equal(t, Correct, s.NetworkCorrect)
	assert.Equal(t, network.Mainnet, s.ActiveKey)
}

func TestUnknownChainIsWrong(t *testing.T) {
	s := AccountConnected(New(network.Testnet), registry(), session.KindModal, voter, 1)
	assert.Equal(t, Wrong, s.NetworkCorrect)
	assert.Equal(t, network.Key(""), s.ActiveKey)
	assert.Equal(t, network.Key(""), ActionKey(s))
}

func TestModalCorrectnessFollowsSelection(t *testing.T) {
	reg := registry()
	s := AccountConnected(New(network.Testnet), reg, session.KindModal, voter, 10143)
	assert.Equal(t, Correct, s.NetworkCorrect)

	s = SelectNetwork(s, network.Mainnet)
	assert.Equal(t, Wrong, s.NetworkCorrect)
	assert.Equal(t, network.Testnet, ActionKey(s))
	assert.Equal(t, network.Testnet, DisplayKey(s, reg))
}

func TestDirectActionUsesSelection(t *testing.T) {
	reg := registry()
	s := AccountConnected(New(network.Mainnet), reg, session.KindDirect, voter, 10143)
	assert.Equal(t, network.Mainnet, ActionKey(s))
	assert.Equal(t, network.Testnet, DisplayKey(s, reg))

	s = Reset(s)
	assert.Equal(t, network.Mainnet, DisplayKey(s, reg))
}

func TestResetClearsConnection(t *testing.T) {
	for _, kind := range []session.Kind{session.KindDirect, session.KindModal} {
		s := AccountConnected(New(network.Mainnet), registry(), kind, voter, 143)
		s = SnapshotLoaded(s, Snapshot{HappyVotes: 4, SadVotes: 1, Cooldown: u64(30)})
		s = LeaderboardLoaded(s, []contract.LeaderboardRow{{Address: voter, HappyVotes: 4}})
		s = SetLoading(s, LoadingVoting, true)

		s = Reset(s)
		assert.Equal(t, session.KindNone, s.WalletType, kind.String())
		assert.False(t, s.HasAccount())
		assert.Equal(t, Unknown, s.NetworkCorrect)
		assert.Nil(t, s.Snapshot.Cooldown)
		assert.False(t, s.Snapshot.CanVote)
		assert.Empty(t, s.Leaderboard)
		assert.Zero(t, s.WalletChainID)
		assert.Equal(t, network.Key(""), s.ActiveKey)
		assert.False(t, s.Loading.Voting)
		assert.Equal(t, uint64(4), s.Snapshot.HappyVotes)
		assert.Equal(t, network.Mainnet, s.SelectedKey)
	}
}

func TestAccountChangedEmptyResets(t *testing.T) {
	s := AccountConnected(New(network.Mainnet), registry(), session.KindDirect, voter, 143)
	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	s = AccountChanged(s, other)
	assert.Equal(t, other, s.Account)

	s = AccountChanged(s, common.Address{})
	assert.False(t, s.HasAccount())
	assert.Equal(t, PhaseDisconnected, s.Phase)
}

func TestFilterLeaderboardDropsZeroAndKeepsOrder(t *testing.T) {
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")
	c := common.HexToAddress("0x03")
	got := FilterLeaderboard([]contract.LeaderboardRow{
		{Address: a, HappyVotes: 2},
		{Address: b, HappyVotes: 0},
		{Address: c, HappyVotes: 9},
	})
	assert.Equal(t, []LeaderboardEntry{{Address: a, HappyVotes: 2}, {Address: c, HappyVotes: 9}}, got)

	for _, e := range got {
		assert.Positive(t, e.HappyVotes)
	}
}

func TestTickClampsAtZero(t *testing.T) {
	s := SnapshotLoaded(New(network.Mainnet), Snapshot{Cooldown: u64(2)})
	s = Tick(s)
	assert.Equal(t, uint64(1), *s.Snapshot.Cooldown)
	s = Tick(Tick(Tick(s)))
	assert.Equal(t, uint64(0), *s.Snapshot.Cooldown)

	noCooldown := Tick(New(network.Mainnet))
	assert.Nil(t, noCooldown.Snapshot.Cooldown)
}

func TestTickDoesNotAliasPreviousState(t *testing.T) {
	before := SnapshotLoaded(New(network.Mainnet), Snapshot{Cooldown: u64(10)})
	after := Tick(before)
	assert.Equal(t, uint64(10), *before.Snapshot.Cooldown)
	assert.Equal(t, uint64(9), *after.Snapshot.Cooldown)
}

func TestFreshReadOverwritesCountdown(t *testing.T) {
	s := SnapshotLoaded(New(network.Mainnet), Snapshot{Cooldown: u64(100)})
	s = Tick(Tick(s))
	s = SnapshotLoaded(s, Snapshot{Cooldown: u64(300)})
	assert.Equal(t, uint64(300), *s.Snapshot.Cooldown)
}

func TestVoteCast(t *testing.T) {
	s := SnapshotLoaded(New(network.Mainnet), Snapshot{CanVote: true})
	s = VoteCast(s, "0xabc")
	assert.False(t, s.Snapshot.CanVote)
	assert.Equal(t, "0xabc", s.LastTxHash)
}

func TestContractUnconfigured(t *testing.T) {
	s := SnapshotLoaded(New(network.Mainnet), Snapshot{HappyVotes: 1, CanVote: true, Cooldown: u64(3)})
	s = LeaderboardLoaded(s, []contract.LeaderboardRow{{Address: voter, HappyVotes: 1}})
	s = ContractUnconfigured(s)
	assert.Equal(t, Snapshot{}, s.Snapshot)
	assert.Empty(t, s.Leaderboard)
}

func TestNotices(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s, first := Notify(New(network.Mainnet), "one", NoticeInfo, now, 5*time.Second)
	s, second := Notify(s, "two", NoticeError, now.Add(2*time.Second), 5*time.Second)
	require.NotEqual(t, first.ID, second.ID)

	latest, ok := s.LatestNotice()
	require.True(t, ok)
	assert.Equal(t, "two", latest.Text)

	// the older timer only removes its own notice
	s = Dismiss(s, first.ID)
	require.Len(t, s.Notices, 1)
	assert.Equal(t, second.ID, s.Notices[0].ID)

	s = Expire(s, now.Add(7*time.Second))
	assert.Empty(t, s.Notices)
}

func TestPercentages(t *testing.T) {
	h, sd := Snapshot{}.Percentages()
	assert.Equal(t, 0, h)
	assert.Equal(t, 0, sd)

	h, sd = Snapshot{HappyVotes: 2, SadVotes: 1}.Percentages()
	assert.Equal(t, 67, h)
	assert.Equal(t, 33, sd)

	h, sd = Snapshot{HappyVotes: 1, SadVotes: 1}.Percentages()
	assert.Equal(t, 50, h)
	assert.Equal(t, 50, sd)
}

func TestSetLoading(t *testing.T) {
	s := New(network.Mainnet)
	s = SetLoading(s, LoadingWallet, true)
	s = SetLoading(s, LoadingDonation, true)
	assert.Equal(t, Loading{Wallet: true, Donation: true}, s.Loading)
	s = SetLoading(s, LoadingWallet, false)
	assert.Equal(t, Loading{Donation: true}, s.Loading)
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "wrong", Wrong.String())
	assert.Equal(t, "connecting", PhaseConnecting.String())
}
