// Package state holds the single client state object and the pure
// transitions applied to it. Nothing here performs I/O; every function takes
// a State by value and returns the next one.
package state

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/terauss/Monad-Voting-App/internal/contract"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/session"
)

// Correctness is the tri-state "is the wallet on the selected chain".
type Correctness int

const (
	Unknown Correctness = iota
	Correct
	Wrong
)

func (c Correctness) String() string {
	switch c {
	case Correct:
		return "correct"
	case Wrong:
		return "wrong"
	}
	return "unknown"
}

// Phase is the connection lifecycle.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	}
	return "disconnected"
}

// NoticeKind is the severity of a Notice.
type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient message shown to the user.
type Notice struct {
	ID        string
	Text      string
	Kind      NoticeKind
	ExpiresAt time.Time
}

// Snapshot is the last contract read. Cooldown is nil when the account can
// vote or nothing has been read.
type Snapshot struct {
	HappyVotes uint64
	SadVotes   uint64
	CanVote    bool
	Cooldown   *uint64
}

// Percentages splits the tally into rounded happy/sad shares summing to 100,
// or 0/0 when nobody has voted.
func (s Snapshot) Percentages() (happy, sad int) {
	total := s.HappyVotes + s.SadVotes
	if total == 0 {
		return 0, 0
	}
	happy = int((s.HappyVotes*200 + total) / (2 * total))
	return happy, 100 - happy
}

// LeaderboardEntry is a voter with at least one happy vote.
type LeaderboardEntry struct {
	Address    common.Address
	HappyVotes uint64
}

// Loading flags actions in flight.
type Loading struct {
	Wallet   bool
	Network  bool
	Voting   bool
	Donation bool
}

// LoadingFlag names one Loading field.
type LoadingFlag int

const (
	LoadingWallet LoadingFlag = iota
	LoadingNetwork
	LoadingVoting
	LoadingDonation
)

// State is everything the client shows.
type State struct {
	WalletType     session.Kind
	Phase          Phase
	Account        common.Address
	SelectedKey    network.Key
	ActiveKey      network.Key // "" when the wallet chain is not one of ours
	WalletChainID  int64       // 0 when unknown
	NetworkCorrect Correctness
	PairingURI     string

	Snapshot    Snapshot
	Leaderboard []LeaderboardEntry
	Notices     []Notice
	Loading     Loading
	LastTxHash  string
}

// HasAccount reports whether an account is connected.
func (s State) HasAccount() bool { return s.Account != (common.Address{}) }

// New returns the initial state for a persisted selection.
func New(selected network.Key) State {
	if selected == "" {
		selected = network.DefaultKey
	}
	return State{SelectedKey: selected}
}

// SelectNetwork records user intent and re-derives correctness against the
// wallet chain already known.
func SelectNetwork(s State, key network.Key) State {
	s.SelectedKey = key
	s.NetworkCorrect = correctness(s)
	return s
}

// Connecting marks a connect attempt on kind. uri is the pairing URI on the
// modal path.
func Connecting(s State, kind session.Kind, uri string) State {
	s.WalletType = kind
	s.Phase = PhaseConnecting
	s.PairingURI = uri
	return s
}

// AccountConnected records the account and the wallet's chain.
func AccountConnected(s State, reg *network.Registry, kind session.Kind, account common.Address, chainID int64) State {
	s.WalletType = kind
	s.Phase = PhaseConnected
	s.Account = account
	s.PairingURI = ""
	return ChainReported(s, reg, chainID)
}

// AccountChanged swaps the active account. An empty account disconnects.
func AccountChanged(s State, account common.Address) State {
	if account == (common.Address{}) {
		return Reset(s)
	}
	s.Account = account
	return s
}

// ChainReported records the chain the wallet says it is on.
func ChainReported(s State, reg *network.Registry, chainID int64) State {
	s.WalletChainID = chainID
	s.ActiveKey = reg.KeyForChain(chainID)
	s.NetworkCorrect = correctness(s)
	return s
}

// Reset clears everything tied to the connection. Tallies stay since they
// are public; the selection and notices stay too.
func Reset(s State) State {
	s.WalletType = session.KindNone
	s.Phase = PhaseDisconnected
	s.Account = common.Address{}
	s.ActiveKey = ""
	s.WalletChainID = 0
	s.NetworkCorrect = Unknown
	s.PairingURI = ""
	s.Snapshot.CanVote = false
	s.Snapshot.Cooldown = nil
	s.Leaderboard = nil
	s.Loading = Loading{}
	return s
}

// SnapshotLoaded replaces the snapshot with a fresh read.
func SnapshotLoaded(s State, snap Snapshot) State {
	if snap.Cooldown != nil {
		v := *snap.Cooldown
		snap.Cooldown = &v
	}
	s.Snapshot = snap
	return s
}

// LeaderboardLoaded replaces the leaderboard, dropping rows without votes
// and keeping contract order.
func LeaderboardLoaded(s State, rows []contract.LeaderboardRow) State {
	s.Leaderboard = FilterLeaderboard(rows)
	return s
}

// ClearLeaderboard empties the leaderboard.
func ClearLeaderboard(s State) State {
	s.Leaderboard = nil
	return s
}

// ContractUnconfigured zeroes the snapshot and leaderboard.
func ContractUnconfigured(s State) State {
	s.Snapshot = Snapshot{}
	s.Leaderboard = nil
	return s
}

// VoteCast marks the account as in cooldown until the next read says
// otherwise.
func VoteCast(s State, txHash string) State {
	s.Snapshot.CanVote = false
	s.LastTxHash = txHash
	return s
}

// TxSent records the hash of the last transaction.
func TxSent(s State, txHash string) State {
	s.LastTxHash = txHash
	return s
}

// Tick counts the local cooldown down by one second, stopping at zero.
func Tick(s State) State {
	if s.Snapshot.Cooldown == nil || *s.Snapshot.Cooldown == 0 {
		return s
	}
	v := *s.Snapshot.Cooldown - 1
	s.Snapshot.Cooldown = &v
	return s
}

// Notify appends a notice that expires after ttl.
func Notify(s State, text string, kind NoticeKind, now time.Time, ttl time.Duration) (State, Notice) {
	n := Notice{ID: uuid.NewString(), Text: text, Kind: kind, ExpiresAt: now.Add(ttl)}
	notices := make([]Notice, 0, len(s.Notices)+1)
	notices = append(notices, s.Notices...)
	s.Notices = append(notices, n)
	return s, n
}

// Dismiss removes the notice with id.
func Dismiss(s State, id string) State {
	notices := make([]Notice, 0, len(s.Notices))
	for _, n := range s.Notices {
		if n.ID != id {
			notices = append(notices, n)
		}
	}
	s.Notices = notices
	return s
}

// Expire drops every notice past its deadline.
func Expire(s State, now time.Time) State {
	notices := make([]Notice, 0, len(s.Notices))
	for _, n := range s.Notices {
		if now.Before(n.ExpiresAt) {
			notices = append(notices, n)
		}
	}
	s.Notices = notices
	return s
}

// LatestNotice returns the newest notice.
func (s State) LatestNotice() (Notice, bool) {
	if len(s.Notices) == 0 {
		return Notice{}, false
	}
	return s.Notices[len(s.Notices)-1], true
}

// SetLoading toggles one busy flag.
func SetLoading(s State, flag LoadingFlag, on bool) State {
	switch flag {
	case LoadingWallet:
		s.Loading.Wallet = on
	case LoadingNetwork:
		s.Loading.Network = on
	case LoadingVoting:
		s.Loading.Voting = on
	case LoadingDonation:
		s.Loading.Donation = on
	}
	return s
}

// FilterLeaderboard keeps rows with a positive count, in order.
func FilterLeaderboard(rows []contract.LeaderboardRow) []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		if r.HappyVotes > 0 {
			out = append(out, LeaderboardEntry{Address: r.Address, HappyVotes: r.HappyVotes})
		}
	}
	return out
}

// ActionKey is the network a vote or donation targets: the wallet's active
// network on the modal path, the selection otherwise. It may be "".
func ActionKey(s State) network.Key {
	if s.WalletType == session.KindModal {
		return s.ActiveKey
	}
	return s.SelectedKey
}

// DisplayKey is the network whose label the UI shows.
func DisplayKey(s State, reg *network.Registry) network.Key {
	if s.WalletType == session.KindModal && s.ActiveKey != "" {
		return s.ActiveKey
	}
	if s.WalletChainID != 0 {
		if k := reg.KeyForChain(s.WalletChainID); k != "" {
			return k
		}
	}
	return s.SelectedKey
}

func correctness(s State) Correctness {
	if !s.HasAccount() || s.WalletChainID == 0 {
		return Unknown
	}
	if s.ActiveKey != "" && s.ActiveKey == s.SelectedKey {
		return Correct
	}
	return Wrong
}
