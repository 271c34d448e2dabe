package cli

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/vladweat/optiquest/internal/config"
)

// configCmd prints the effective settings with credentials masked
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.Load(vp); err != nil {
			return err
		}
		return printRedacted(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func printRedacted(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(config.Redacted(vp))
}
