package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vladweat/optiquest/internal/config"
	"github.com/vladweat/optiquest/internal/ui"
	"github.com/vladweat/optiquest/internal/wallet"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Inspect and import private keys",
}

var keysCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the key file without touching the network",
	RunE:  runKeysCheck,
}

var keysImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a private key into an encrypted keystore directory",
	RunE:  runKeysImport,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysCheckCmd)
	keysCmd.AddCommand(keysImportCmd)

	keysImportCmd.Flags().String("key", "", "Private key to import (hex, with or without 0x prefix)")
	keysImportCmd.Flags().String("dir", "", "Keystore directory (default is keys.keystore_dir)")
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println() // newline after password input
	if err != nil {
		return "", err
	}
	return string(password), nil
}

// loadWallets reads keys from the keystore directory when one is configured,
// otherwise from the plain key file.
func loadWallets(cfg *config.Config) (*wallet.KeyStore, error) {
	var (
		ks  *wallet.KeyStore
		err error
	)

	if cfg.Keys.KeystoreDir != "" {
		password := cfg.Keys.Password
		if password == "" {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return nil, fmt.Errorf("%w: keystore password not set (KEYSTORE_PASSWORD)", config.ErrConfig)
			}
			if password, err = readPassword("Keystore password: "); err != nil {
				return nil, fmt.Errorf("failed to read password: %w", err)
			}
		}
		ks, err = wallet.LoadKeystoreDir(cfg.Keys.KeystoreDir, password)
	} else {
		ks, err = wallet.LoadFile(cfg.Keys.File, cfg.KeyLoadOptions())
	}
	if err != nil {
		return nil, err
	}
	if ks.Count() == 0 {
		return nil, wallet.ErrNoKeys
	}
	return ks, nil
}

func runKeysCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(vp)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if cfg.Keys.KeystoreDir != "" {
		return checkKeystore(cmd, cfg.Keys.KeystoreDir)
	}

	// Always collect every bad line so the user can fix them in one pass.
	ks, err := wallet.LoadFile(cfg.Keys.File, wallet.LoadOptions{SkipInvalid: true})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Key file: %s\n", cfg.Keys.File)
	fmt.Fprintf(out, "Valid keys: %d\n", ks.Count())
	for _, w := range ks.Wallets() {
		fmt.Fprintf(out, "  %s\n", w.Address.Hex())
	}

	skipped := ks.Skipped()
	if len(skipped) > 0 {
		lines := make([]string, len(skipped))
		for i, n := range skipped {
			lines[i] = fmt.Sprint(n)
		}
		fmt.Fprintf(out, "%s\n", ui.WarningStyle.Render("Invalid lines: "+strings.Join(lines, ", ")))
		if !cfg.KeyLoadOptions().SkipInvalid {
			return fmt.Errorf("%w: %d invalid line(s)", wallet.ErrInvalidKeyFormat, len(skipped))
		}
	}
	if ks.Count() == 0 {
		return wallet.ErrNoKeys
	}
	return nil
}

// checkKeystore lists the accounts in an encrypted keystore directory.
// Decryption needs the password, so only the addresses are checked here.
func checkKeystore(cmd *cobra.Command, dir string) error {
	km, err := wallet.NewKeystoreManager(dir)
	if err != nil {
		return fmt.Errorf("failed to open keystore: %w", err)
	}

	out := cmd.OutOrStdout()
	accounts := km.ListAccounts()
	fmt.Fprintf(out, "Keystore: %s\n", dir)
	fmt.Fprintf(out, "Accounts: %d\n", len(accounts))
	for _, acc := range accounts {
		fmt.Fprintf(out, "  %s\n", acc.Address.Hex())
	}
	if len(accounts) == 0 {
		return wallet.ErrNoKeys
	}
	return nil
}

func runKeysImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(vp)
	if err != nil {
		return err
	}

	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.Keys.KeystoreDir
	}
	if dir == "" {
		return errors.New("no keystore directory: pass --dir or set keys.keystore_dir")
	}

	km, err := wallet.NewKeystoreManager(dir)
	if err != nil {
		return fmt.Errorf("failed to initialize keystore: %w", err)
	}

	privateKey, _ := cmd.Flags().GetString("key")
	if privateKey == "" {
		privateKey, err = readPassword("Enter private key (hex): ")
		if err != nil {
			return fmt.Errorf("failed to read private key: %w", err)
		}
	}
	if _, err := wallet.ParseKey(privateKey); err != nil {
		// never echo the key back
		return wallet.ErrInvalidKeyFormat
	}

	password := cfg.Keys.Password
	if password == "" {
		password, err = readPassword("Enter password to encrypt the key: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		confirm, err := readPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	account, err := km.ImportKey(privateKey, password)
	if err != nil {
		return fmt.Errorf("failed to import key: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s into %s\n", account.Address.Hex(), dir)
	return nil
}
