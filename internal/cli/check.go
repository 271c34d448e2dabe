package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vladweat/optiquest/internal/chain"
	"github.com/vladweat/optiquest/internal/ui"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check RPC connectivity for the supported networks",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Bool("all", false, "Check every supported network, not just the selected one")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	networks := []chain.Network{cfg.ChainNetwork()}
	if all, _ := cmd.Flags().GetBool("all"); all {
		networks = []chain.Network{chain.Optimism, chain.Arbitrum}
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, n := range networks {
		ep, err := cfg.EndpointFor(n)
		if err != nil {
			return err
		}
		client, err := chain.Dial(cmd.Context(), ep, logger)
		if err != nil {
			failed++
			fmt.Fprintf(out, "  %s %s: %v\n", ui.Cross(), ep.Name, err)
			continue
		}
		block, err := client.LatestBlock(cmd.Context())
		if err != nil || !client.IsConnected(cmd.Context()) {
			failed++
			fmt.Fprintf(out, "  %s %s: not responding\n", ui.Cross(), ep.Name)
		} else {
			fmt.Fprintf(out, "  %s %s (chain %s) block %d\n", ui.Check(), ep.Name, client.ChainID(), block)
		}
		client.Close()
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d network(s) unreachable", chain.ErrConnection, failed)
	}
	return nil
}
