package cli

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladweat/optiquest/internal/chain"
	"github.com/vladweat/optiquest/internal/quest"
	"github.com/vladweat/optiquest/internal/testutil"
	"github.com/vladweat/optiquest/internal/wallet"
)

const (
	testKey1 = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testKey2 = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestKeysCheck_Valid(t *testing.T) {
	path := testutil.WriteFile(t, "keys.txt", testKey1+"\n\n# comment\n0x"+testKey2+"\n")

	out, err := executeCommand(t, "keys", "check", "--keys", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Valid keys: 2")
	assert.Contains(t, out, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	assert.NotContains(t, out, testKey1)
}

func TestKeysCheck_InvalidLineFails(t *testing.T) {
	path := testutil.WriteFile(t, "keys.txt", testKey1+"\nnot-a-key\n")

	out, err := executeCommand(t, "keys", "check", "--keys", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, wallet.ErrInvalidKeyFormat)
	assert.Contains(t, out, "Invalid lines: 2")
	assert.NotContains(t, out, "not-a-key")
}

func TestKeysCheck_SkipInvalid(t *testing.T) {
	testutil.SetEnv(t, "OPTIQUEST_KEYS_ON_INVALID", "skip")
	path := testutil.WriteFile(t, "keys.txt", "bad\n"+testKey1+"\n")

	out, err := executeCommand(t, "keys", "check", "--keys", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Valid keys: 1")
	assert.Contains(t, out, "Invalid lines: 1")
}

func TestKeysCheck_EmptyFile(t *testing.T) {
	path := testutil.WriteFile(t, "keys.txt", "# nothing here\n")

	_, err := executeCommand(t, "keys", "check", "--keys", path)
	assert.ErrorIs(t, err, wallet.ErrNoKeys)
}

func TestKeysImport_InvalidKeyNotEchoed(t *testing.T) {
	dir := testutil.TempDir(t)
	testutil.SetEnv(t, "KEYSTORE_PASSWORD", "correct-horse")

	_, err := executeCommand(t, "keys", "import", "--dir", dir, "--key", "0xdeadbeef")
	require.Error(t, err)
	assert.ErrorIs(t, err, wallet.ErrInvalidKeyFormat)
	assert.NotContains(t, err.Error(), "deadbeef")
}

func TestKeysImport_ThenLoad(t *testing.T) {
	dir := testutil.TempDir(t)
	testutil.SetEnv(t, "KEYSTORE_PASSWORD", "correct-horse")

	out, err := executeCommand(t, "keys", "import", "--dir", dir, "--key", testKey1)
	require.NoError(t, err)
	assert.Contains(t, out, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	ks, err := wallet.LoadKeystoreDir(dir, "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, 1, ks.Count())
}

func TestKeysCheck_KeystoreDir(t *testing.T) {
	dir := testutil.TempDir(t)
	km, err := wallet.NewKeystoreManager(dir)
	require.NoError(t, err)
	_, err = km.ImportKey(testKey2, "correct-horse")
	require.NoError(t, err)

	testutil.SetEnv(t, "OPTIQUEST_KEYS_KEYSTORE_DIR", dir)

	out, err := executeCommand(t, "keys", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Accounts: 1")
	assert.Contains(t, out, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
}

func TestKeysCheck_EmptyKeystoreDir(t *testing.T) {
	testutil.SetEnv(t, "OPTIQUEST_KEYS_KEYSTORE_DIR", testutil.TempDir(t))

	out, err := executeCommand(t, "keys", "check")
	assert.ErrorIs(t, err, wallet.ErrNoKeys)
	assert.Contains(t, out, "Accounts: 0")
}

func TestRun_MissingKeyFile(t *testing.T) {
	_, err := executeCommand(t, "run", "--keys", "/nonexistent/optiquest/keys.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open key file")
}

func TestRun_InvalidNetwork(t *testing.T) {
	path := testutil.WriteFile(t, "keys.txt", testKey1+"\n")
	t.Cleanup(func() { _ = rootCmd.PersistentFlags().Set("network", "arbitrum") })

	_, err := executeCommand(t, "run", "--keys", path, "--network", "solana")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported network")
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	testutil.SetEnv(t, "ARBISCAN_API_KEY", "SECRET123")
	testutil.SetEnv(t, "OPTIQUEST_RPC_OPTIMISM", "https://opt.example.com/v2/SECRETPATH")

	out, err := executeCommand(t, "config")
	require.NoError(t, err)
	assert.NotContains(t, out, "SECRET123")
	assert.NotContains(t, out, "SECRETPATH")
	assert.Contains(t, out, "https://opt.example.com")
	assert.Contains(t, out, "***REDACTED***")
}

func TestPrintReport(t *testing.T) {
	ok := common.HexToAddress("0x1")
	bad := common.HexToAddress("0x2")
	hash := common.HexToHash("0xabc")

	report := quest.Report{
		Quest: quest.StargateSwapName,
		Outcomes: []quest.Outcome{
			{
				Address: ok,
				Result: &quest.Result{
					Hash:    hash,
					Receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(42)},
				},
				Tries: 1,
			},
			{Address: bad, Err: fmt.Errorf("dial: %w", chain.ErrConnection), Tries: 3},
		},
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "stargate-swap")
	assert.Contains(t, out, "1 succeeded, 1 failed")
	assert.Contains(t, out, hash.Hex())
	assert.Contains(t, out, "mined in block 42 (status 1)")
	assert.Contains(t, out, "[connection]")
	assert.Equal(t, 4, strings.Count(out, "\n"))
}

func TestPrintReport_SentWithoutReceipt(t *testing.T) {
	report := quest.Report{
		Quest: "q",
		Outcomes: []quest.Outcome{
			{Address: common.HexToAddress("0x1"), Result: &quest.Result{Hash: common.HexToHash("0x1")}},
			{Address: common.HexToAddress("0x2"), Err: errors.New("boom")},
		},
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	assert.Contains(t, buf.String(), "  sent\n")
	assert.Contains(t, buf.String(), "[unknown]")
	assert.Contains(t, buf.String(), "boom")
}
