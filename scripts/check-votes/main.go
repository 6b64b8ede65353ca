// check-votes: reads the tally of every configured Monad network, and the
// vote eligibility of any addresses given as arguments, in parallel and
// prints a summary table. No wallet is needed.
//
// Run from the module root:
//
//	go run ./scripts/check-votes [address...]
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/terauss/Monad-Voting-App/internal/chain"
	"github.com/terauss/Monad-Voting-App/internal/config"
	"github.com/terauss/Monad-Voting-App/internal/contract"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/rpc"
)

const rpcTimeout = 12 * time.Second

// ── types ─────────────────────────────────────────────────────────────────────

type result struct {
	network string
	voter   string // short form, "" for the tally row
	happy   string
	sad     string
	canVote string
	next    string
	err     string
}

// ── main ──────────────────────────────────────────────────────────────────────

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading config:", err)
		os.Exit(1)
	}
	reg := network.NewRegistry(cfg.Overrides())

	var voters []common.Address
	for _, a := range os.Args[1:] {
		if !common.IsHexAddress(a) {
			fmt.Fprintf(os.Stderr, "not an address: %s\n", a)
			os.Exit(2)
		}
		voters = append(voters, common.HexToAddress(a))
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []result
	)
	for _, n := range reg.All() {
		wg.Add(1)
		go func(n network.Config) {
			defer wg.Done()
			rows := check(n, voters)
			mu.Lock()
			results = append(results, rows...)
			mu.Unlock()
		}(n)
	}
	wg.Wait()

	printTable(results)
}

func check(n network.Config, voters []common.Address) []result {
	name := string(n.Key)
	if !n.ContractConfigured() {
		return []result{{network: name, happy: "—", sad: "—", err: "contract not configured"}}
	}

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()

	url, err := rpc.SelectBest(ctx, n, rpc.AlgorithmFastest)
	if err != nil {
		return []result{{network: name, happy: "—", sad: "—", err: shortErr(err)}}
	}
	vc, err := contract.NewVoteContract(n.Contract(), n.ABI, chain.NewEVMClient(url))
	if err != nil {
		return []result{{network: name, err: shortErr(err)}}
	}

	tally := result{network: name, happy: "—", sad: "—"}
	if t, err := vc.GetVotes(ctx); err != nil {
		tally.err = shortErr(err)
	} else {
		tally.happy = fmt.Sprint(t.Happy)
		tally.sad = fmt.Sprint(t.Sad)
	}
	out := []result{tally}

	for _, v := range voters {
		r := result{network: name, voter: shortAddr(v.Hex()), canVote: "—", next: "—"}
		if ok, err := vc.CanVote(ctx, v); err != nil {
			r.err = shortErr(err)
		} else {
			r.canVote = fmt.Sprint(ok)
		}
		if secs, err := vc.TimeUntilNextVote(ctx, v); err == nil {
			r.next = (time.Duration(secs) * time.Second).String()
		} else if r.err == "" {
			r.err = shortErr(err)
		}
		out = append(out, r)
	}
	return out
}

// ── output ────────────────────────────────────────────────────────────────────

func printTable(results []result) {
	// network, then the tally row before voter rows
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.network != b.network {
			return a.network < b.network
		}
		return a.voter < b.voter
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NETWORK\tVOTER\tHAPPY\tSAD\tCAN VOTE\tNEXT VOTE\tNOTE")
	fmt.Fprintln(w, strings.Join([]string{
		strings.Repeat("-", 8), strings.Repeat("-", 12), strings.Repeat("-", 6), strings.Repeat("-", 6),
		strings.Repeat("-", 8), strings.Repeat("-", 10), strings.Repeat("-", 12),
	}, "\t"))

	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.network, r.voter, r.happy, r.sad, r.canVote, r.next, r.err)
	}
	w.Flush()
}

// ── helpers ───────────────────────────────────────────────────────────────────

func shortAddr(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func shortErr(err error) string {
	s := err.Error()
	if len(s) > 30 {
		return s[:30] + "…"
	}
	return s
}
