package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/terauss/Monad-Voting-App/internal/network"
	"github.com/terauss/Monad-Voting-App/internal/rpc"
	"github.com/terauss/Monad-Voting-App/internal/ui"
)

var rpcCmd = &cobra.Command{
	Use:   "rpc",
	Short: "Manage RPC endpoints",
}

var rpcAddCmd = &cobra.Command{
	Use:   "add <network> <url>",
	Short: "Add a custom RPC URL for a network",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := network.ParseKey(args[0])
		if err != nil {
			return err
		}
		if err := cfg.AddRPC(key, args[1]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Added RPC for %s: %s", ui.ChainName(string(key)), args[1])))
		return nil
	},
}

var rpcRemoveCmd = &cobra.Command{
	Use:   "remove <network> <url>",
	Short: "Remove a custom RPC URL",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := network.ParseKey(args[0])
		if err != nil {
			return err
		}
		if err := cfg.RemoveRPC(key, args[1]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Removed RPC for %s: %s", key, args[1])))
		return nil
	},
}

var rpcListCmd = &cobra.Command{
	Use:   "list [network]",
	Short: "List the RPCs for a network, custom ones first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := networkArg(args)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", ui.StyleTitle.Render(fmt.Sprintf("RPCs for %s", n.DisplayName())))
		custom := make(map[string]bool)
		for _, u := range cfg.CustomRPCs[string(n.Key)] {
			custom[u] = true
		}
		for _, u := range n.RPCURLs {
			tag := ui.Meta("(built-in)")
			if custom[u] {
				tag = ui.Meta("(custom)  ")
			}
			fmt.Printf("  %s %s\n", tag, u)
		}
		return nil
	},
}

var rpcBenchmarkCmd = &cobra.Command{
	Use:     "benchmark [network]",
	Aliases: []string{"test"},
	Short:   "Health-check every RPC of a network",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := networkArg(args)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n\n", ui.StyleTitle.Render(fmt.Sprintf("Benchmarking %s RPCs...", n.DisplayName())))

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		results := rpc.BenchmarkNetwork(ctx, n)

		t := ui.NewTable([]ui.Column{
			{Title: "RPC URL", Width: 40},
			{Title: "Latency", Width: 12},
			{Title: "Block #", Width: 12},
			{Title: "Status", Width: 10},
		})
		for _, r := range results {
			status := ui.Success("healthy")
			latency := fmt.Sprintf("%dms", r.Latency.Milliseconds())
			block := fmt.Sprintf("%d", r.BlockNumber)
			if r.Err != nil {
				status = ui.Err("down")
				latency = "—"
				block = "—"
			}
			t.AddRow(ui.Row{r.URL, latency, block, status})
		}
		fmt.Println(t.Render())

		algo, err := rpc.ParseAlgorithm(cfg.RPCAlgorithm)
		if err != nil {
			algo = rpc.AlgorithmFastest
		}
		if best, err := rpc.NewPicker(algo).Pick(rpc.ResultsToEndpoints(results)); err == nil {
			fmt.Println(ui.Meta(fmt.Sprintf("%s picks: ", algo)) + best.URL)
		}
		return nil
	},
}

var rpcAlgorithmCmd = &cobra.Command{
	Use:   "algorithm",
	Short: "Manage the RPC selection algorithm",
}

var rpcAlgorithmSetCmd = &cobra.Command{
	Use:       "set <fastest|round-robin|failover>",
	Short:     "Set the RPC selection algorithm",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"fastest", "round-robin", "failover"},
	RunE: func(cmd *cobra.Command, args []string) error {
		algo, err := rpc.ParseAlgorithm(args[0])
		if err != nil {
			return err
		}
		cfg.RPCAlgorithm = string(algo)
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("RPC algorithm set to %q", algo)))
		return nil
	},
}

// networkArg resolves an optional network argument, defaulting to the
// selected network.
func networkArg(args []string) (network.Config, error) {
	key := selectedKey()
	if len(args) == 1 {
		k, err := network.ParseKey(args[0])
		if err != nil {
			return network.Config{}, err
		}
		key = k
	}
	return reg.Get(key)
}

func init() {
	rpcAlgorithmCmd.AddCommand(rpcAlgorithmSetCmd)
	rpcCmd.AddCommand(rpcAddCmd, rpcRemoveCmd, rpcListCmd, rpcBenchmarkCmd, rpcAlgorithmCmd)
}
