package commands

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"holders-snapshot/internal/infra/apperr"
	"holders-snapshot/internal/infra/fs"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"MAINNET", "INFURA_PID", "LEDGER_RPC_URL", "CONTRACT_ADDRESS", "CONTRACT_ARTIFACT",
	"BLOCK_NUMBER", "LEDGER_REQUEST_TIMEOUT", "LEDGER_MAX_RETRIES", "LEDGER_RATE_LIMIT",
	"OUTPUT_PATH", "SORT_OUTPUT", "SNAPSHOT_WORKERS", "SKIP_BURNED", "CHART_PATH", "CHART_TOP",
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "LOGS_DIR",
}

// fakeNode serves eth_call for totalSupply and ownerOf from a fixed owner list.
func fakeNode(t *testing.T, artifactPath string, owners []common.Address) *httptest.Server {
	t.Helper()
	artifact, err := fs.LoadContractArtifact(artifactPath)
	require.NoError(t, err)
	parsed := artifact.ABI

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		var call struct {
			Input hexutil.Bytes `json:"input"`
			Data  hexutil.Bytes `json:"data"`
		}
		require.NoError(t, json.Unmarshal(req.Params[0], &call))
		data := call.Input
		if len(data) == 0 {
			data = call.Data
		}

		method, err := parsed.MethodById(data[:4])
		require.NoError(t, err)
		var packed []byte
		switch method.Name {
		case "totalSupply":
			packed, err = method.Outputs.Pack(big.NewInt(int64(len(owners))))
		case "ownerOf":
			args, uerr := method.Inputs.Unpack(data[4:])
			require.NoError(t, uerr)
			packed, err = method.Outputs.Pack(owners[args[0].(*big.Int).Int64()])
		default:
			t.Errorf("unexpected method %s", method.Name)
		}
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  hexutil.Bytes(packed),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSnapshotCommand(t *testing.T) {
	artifactPath, err := filepath.Abs(filepath.Join("..", "..", "internal", "infra", "fs", "testdata", "RMutt.json"))
	require.NoError(t, err)

	dir := t.TempDir()
	t.Chdir(dir)
	for _, k := range envKeys {
		t.Setenv(k, "")
	}

	alice := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	srv := fakeNode(t, artifactPath, []common.Address{alice, bob, alice})

	out := filepath.Join(dir, "snapshots", "output.csv")
	rootCmd.SetArgs([]string{"snapshot",
		"--rpc-url", srv.URL,
		"--artifact", artifactPath,
		"--output", out,
		"--logs-dir", filepath.Join(dir, "logs"),
		"--rate-limit", "0",
	})
	require.NoError(t, Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, alice.Hex()+",2\n"+bob.Hex()+",1\n", string(data))

	appLog, err := os.ReadFile(filepath.Join(dir, "logs", "app.log"))
	require.NoError(t, err)
	start := strings.Index(string(appLog), "Taking snapshot of holders")
	connected := strings.Index(string(appLog), "Connected to node")
	require.GreaterOrEqual(t, start, 0)
	require.GreaterOrEqual(t, connected, 0)
	assert.Less(t, start, connected, "start line comes before the node is dialed")
	assert.Contains(t, string(appLog), "Collection RMutt at ")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"owner", "1"})
	require.NoError(t, Execute())
	assert.Equal(t, bob.Hex()+"\n", stdout.String())
}

func TestSnapshotCommand_StartLoggedBeforeArtifactLoad(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	for _, k := range envKeys {
		t.Setenv(k, "")
	}

	rootCmd.SetArgs([]string{"snapshot",
		"--rpc-url", "http://127.0.0.1:1",
		"--artifact", filepath.Join(dir, "missing.json"),
		"--output", filepath.Join(dir, "output.csv"),
		"--logs-dir", filepath.Join(dir, "logs"),
	})
	err := Execute()
	require.Error(t, err)
	assert.Equal(t, 2, apperr.ExitCode(err))

	appLog, err := os.ReadFile(filepath.Join(dir, "logs", "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(appLog), "Taking snapshot of holders")
	assert.Contains(t, string(appLog), "Snapshot aborted")
	assert.NotContains(t, string(appLog), "Connected to node")
}

func TestOwnerCommand_InvalidTokenID(t *testing.T) {
	rootCmd.SetArgs([]string{"owner", "not-a-number"})
	err := Execute()
	require.Error(t, err)
	assert.Equal(t, 2, apperr.ExitCode(err))
}
