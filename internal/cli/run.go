package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vladweat/optiquest/internal/chain"
	"github.com/vladweat/optiquest/internal/explorer"
	"github.com/vladweat/optiquest/internal/metrics"
	"github.com/vladweat/optiquest/internal/quest"
	"github.com/vladweat/optiquest/internal/quote"
	"github.com/vladweat/optiquest/internal/store"
	"github.com/vladweat/optiquest/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit the quest transaction for every wallet",
	Long: `Loads every key, then builds, signs and broadcasts one quest
transaction per wallet. Wallet failures are reported but do not change the
exit status; only setup errors (bad config, unreadable keys, no RPC) do.`,
	RunE: runQuest,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("quest", quest.StargateSwapName, "Quest to run")
	runCmd.Flags().Int("concurrency", quest.DefaultOptions().Concurrency, "Wallets processed in parallel")
	runCmd.Flags().Bool("wait", false, "Wait for each transaction to be mined")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	runCmd.Flags().String("store", "", "SQLite file to journal attempts and receipts")

	_ = vp.BindPFlag("quest.name", runCmd.Flags().Lookup("quest"))
	_ = vp.BindPFlag("runner.concurrency", runCmd.Flags().Lookup("concurrency"))
	_ = vp.BindPFlag("runner.wait", runCmd.Flags().Lookup("wait"))
	_ = vp.BindPFlag("metrics.addr", runCmd.Flags().Lookup("metrics-addr"))
	_ = vp.BindPFlag("store.path", runCmd.Flags().Lookup("store"))
}

func runQuest(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ks, err := loadWallets(cfg)
	if err != nil {
		return err
	}
	for _, line := range ks.Skipped() {
		logger.Warn("skipping invalid private key", zap.Int("line", line))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ep, err := cfg.Endpoint()
	if err != nil {
		return err
	}
	client, err := chain.Dial(ctx, ep, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", ep.Name, err)
	}
	defer client.Close()

	swap, err := cfg.SwapConfig()
	if err != nil {
		return err
	}
	resolver := explorer.NewResolver(cfg.ExplorerEndpoints(), nil, logger)

	q, err := quest.NewRegistry().New(cfg.Quest.Name, quest.Deps{
		Chain:    client,
		Resolver: resolver,
		Prices:   resolver,
		Quotes:   quote.NewEngine(),
		Swap:     swap,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	runner := quest.NewRunner(q, cfg.RunnerOptions(), logger).WithWaiter(client)

	if cfg.Store.Path != "" {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		runner.WithJournal(st)
	}

	if cfg.Metrics.Addr != "" {
		srv := metrics.Serve(cfg.Metrics.Addr)
		logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("starting quest",
		zap.String("network", string(ep.Network)),
		zap.Int("wallets", ks.Count()),
		zap.Int("concurrency", cfg.Runner.Concurrency),
	)

	report := runner.Run(ctx, ks.Wallets())
	printReport(cmd.OutOrStdout(), report)
	return nil
}

func printReport(w io.Writer, report quest.Report) {
	fmt.Fprintf(w, "\n%s: %d succeeded, %d failed\n", ui.TitleStyle.Render(report.Quest), report.Succeeded(), report.Failed())
	for _, o := range report.Outcomes {
		if o.OK() {
			status := "sent"
			if o.Result.Receipt != nil {
				status = fmt.Sprintf("mined in block %d (status %d)", o.Result.Receipt.BlockNumber.Uint64(), o.Result.Receipt.Status)
			}
			fmt.Fprintf(w, "  %s %s  %s  %s\n", ui.Check(), o.Address.Hex(), o.Result.Hash.Hex(), status)
			continue
		}
		fmt.Fprintf(w, "  %s %s  %s %v\n", ui.Cross(), o.Address.Hex(), ui.Kind(string(quest.Classify(o.Err))), o.Err)
	}
}
