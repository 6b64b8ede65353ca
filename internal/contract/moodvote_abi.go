package contract

func init() {
	RegisterBuiltin("moodvote", "MoodVote",
		"Happy/sad vote with per-account cooldown", moodVoteABI)
	RegisterBuiltin("moodvote-leaderboard", "MoodVote (leaderboard)",
		"MoodVote plus an on-chain ranking of happy voters", moodVoteLeaderboardABI)
}

const moodVoteABI = `[
  {"type":"function","name":"vote","stateMutability":"nonpayable",
   "inputs":[{"name":"isHappy","type":"bool"}],"outputs":[]},
  {"type":"function","name":"getVotes","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"happy","type":"uint256"},{"name":"sad","type":"uint256"}]},
  {"type":"function","name":"canVote","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"timeUntilNextVote","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"lastVoteTime","stateMutability":"view",
   "inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"Voted","anonymous":false,
   "inputs":[{"name":"voter","type":"address","indexed":true},{"name":"isHappy","type":"bool","indexed":false}]}
]`

const moodVoteLeaderboardABI = `[
  {"type":"function","name":"vote","stateMutability":"nonpayable",
   "inputs":[{"name":"isHappy","type":"bool"}],"outputs":[]},
  {"type":"function","name":"getVotes","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"happy","type":"uint256"},{"name":"sad","type":"uint256"}]},
  {"type":"function","name":"canVote","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"timeUntilNextVote","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"lastVoteTime","stateMutability":"view",
   "inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"happyVotesOf","stateMutability":"view",
   "inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getHappyLeaderboard","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"voters","type":"address[]"},{"name":"counts","type":"uint256[]"}]},
  {"type":"event","name":"Voted","anonymous":false,
   "inputs":[{"name":"voter","type":"address","indexed":true},{"name":"isHappy","type":"bool","indexed":false}]}
]`
