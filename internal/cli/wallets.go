package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vladweat/optiquest/internal/chain"
	"github.com/vladweat/optiquest/internal/ui"
)

var walletsCmd = &cobra.Command{
	Use:   "wallets",
	Short: "Show native and output token balances for every wallet",
	RunE:  runWallets,
}

func init() {
	rootCmd.AddCommand(walletsCmd)
}

func runWallets(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ks, err := loadWallets(cfg)
	if err != nil {
		return err
	}

	ep, err := cfg.Endpoint()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	client, err := chain.Dial(ctx, ep, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", ep.Name, err)
	}
	defer client.Close()

	swap, err := cfg.SwapConfig()
	if err != nil {
		return err
	}
	token := swap.OutputToken()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.Title(ep.Name))
	for _, w := range ks.Wallets() {
		native, err := client.GetNativeBalance(ctx, w.Address)
		if err != nil {
			fmt.Fprintf(out, "  %s  %s\n", w.Address.Hex(), ui.ErrorStyle.Render(err.Error()))
			continue
		}
		line := fmt.Sprintf("  %s  %s %s", w.Address.Hex(), chain.FormatBalance(native.Balance, native.Decimals), native.Symbol)

		tb, err := client.GetTokenBalance(ctx, token, w.Address)
		if err == nil && tb.Balance.Sign() > 0 {
			line += fmt.Sprintf("  %s %s", chain.FormatBalance(tb.Balance, tb.Decimals), tb.Symbol)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
