package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/terauss/Monad-Voting-App/internal/state"
)

// LeaderboardLimit is how many rows are shown before the rest collapse
// into a count.
const LeaderboardLimit = 10

// FormatCountdown renders seconds as HH:MM:SS.
func FormatCountdown(secs uint64) string {
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

// Notice renders a notice in the colour of its kind.
func Notice(n state.Notice) string {
	switch n.Kind {
	case state.NoticeSuccess:
		return Success(n.Text)
	case state.NoticeError:
		return Err(n.Text)
	}
	return Info(n.Text)
}

// VoteBar draws the happy share in the success colour and the rest in the
// error colour. An empty tally is all dim.
func VoteBar(snap state.Snapshot, width int) string {
	if width <= 0 {
		return ""
	}
	if snap.HappyVotes+snap.SadVotes == 0 {
		return StyleDim.Render(strings.Repeat("░", width))
	}
	happy, _ := snap.Percentages()
	filled := happy * width / 100
	return lipgloss.NewStyle().Foreground(Current.Success).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(Current.Error).Render(strings.Repeat("█", width-filled))
}

// Tally renders "☺ 12 (67%)   ☹ 6 (33%)".
func Tally(snap state.Snapshot) string {
	happy, sad := snap.Percentages()
	return StyleSuccess.Render(fmt.Sprintf("☺ %d (%d%%)", snap.HappyVotes, happy)) + "   " +
		StyleError.Render(fmt.Sprintf("☹ %d (%d%%)", snap.SadVotes, sad))
}

// Eligibility describes whether the account can vote now.
func Eligibility(st state.State) string {
	switch {
	case !st.HasAccount():
		return Meta("connect a wallet to vote")
	case st.Snapshot.CanVote:
		return Success("you can vote")
	case st.Snapshot.Cooldown != nil && *st.Snapshot.Cooldown > 0:
		return Warn("next vote in " + FormatCountdown(*st.Snapshot.Cooldown))
	case st.Snapshot.Cooldown != nil:
		return Info("cooldown over, refresh to vote")
	}
	return Meta("eligibility unknown")
}

// Leaderboard renders the top LeaderboardLimit entries and a count of the
// rest. me is highlighted when present.
func Leaderboard(entries []state.LeaderboardEntry, me string) string {
	if len(entries) == 0 {
		return Meta("no happy voters yet")
	}
	t := NewTable([]Column{
		{Title: "#", Width: 3},
		{Title: "Voter", Width: 14},
		{Title: "Happy votes", Width: 11},
	})
	for i, e := range entries {
		if i == LeaderboardLimit {
			break
		}
		addr := e.Address.Hex()
		if strings.EqualFold(addr, me) {
			t.SelIdx = i
		}
		t.AddRow(Row{fmt.Sprintf("%d", i+1), TruncateAddr(addr), fmt.Sprintf("%d", e.HappyVotes)})
	}
	out := t.Render()
	if extra := len(entries) - LeaderboardLimit; extra > 0 {
		out += Meta(fmt.Sprintf("+%d more", extra)) + "\n"
	}
	return out
}
