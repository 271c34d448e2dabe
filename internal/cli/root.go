package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vladweat/optiquest/internal/config"
	"github.com/vladweat/optiquest/internal/logging"
)

var (
	cfgFile string
	vp      = newViper()
	rootCmd = &cobra.Command{
		Use:   "optiquest",
		Short: "Run Optimism quest transactions for a batch of wallets",
		Long: `optiquest loads a list of private keys and submits one quest
transaction per wallet on Optimism or Arbitrum.

Each wallet is handled independently: a failure is logged with the stage
it happened at and never stops the other wallets.`,
		SilenceUsage: true,
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func newViper() *viper.Viper {
	v, err := config.New()
	cobra.CheckErr(err)
	return v
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./optiquest.yaml)")
	rootCmd.PersistentFlags().String("network", "arbitrum", "Network to use (optimism, arbitrum)")
	rootCmd.PersistentFlags().String("keys", "private_keys.txt", "File with one private key per line")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format (console, json)")

	_ = vp.BindPFlag("network", rootCmd.PersistentFlags().Lookup("network"))
	_ = vp.BindPFlag("keys.file", rootCmd.PersistentFlags().Lookup("keys"))
	_ = vp.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = vp.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	config.LoadDotEnv(".env")

	if cfgFile != "" {
		vp.SetConfigFile(cfgFile)
		if err := vp.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: could not read config %s: %v\n", cfgFile, err)
			os.Exit(1)
		}
		return
	}

	vp.AddConfigPath(".")
	vp.SetConfigType("yaml")
	vp.SetConfigName("optiquest")

	// Silently ignore missing config file - it's optional
	_ = vp.ReadInConfig()
}

// loadRuntime decodes the configuration and builds the logger
func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(vp)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	logger.Debug("configuration loaded", zap.Any("settings", config.Redacted(vp)))
	return cfg, logger, nil
}
