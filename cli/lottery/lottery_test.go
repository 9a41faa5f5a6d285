package lottery

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-lottery/internal/rpctest"
	"github.com/nspcc-dev/neo-lottery/pkg/history"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

var (
	contractHash = util.Uint160{0xde, 0xad, 0xbe, 0xef}
	playerA      = util.Uint160{1, 2, 3}
	playerB      = util.Uint160{4, 5, 6}
)

// executor runs lottery commands and collects their output.
type executor struct {
	CLI *cli.App
	Out *bytes.Buffer
}

func newExecutor() *executor {
	app := cli.NewApp()
	app.Name = "lottery"
	app.Commands = NewCommands()
	out := bytes.NewBuffer(nil)
	app.Writer = out
	app.ErrWriter = out
	return &executor{CLI: app, Out: out}
}

func setExitFunc() <-chan int {
	ch := make(chan int, 1)
	cli.OsExiter = func(code int) {
		select {
		case ch <- code:
		default:
		}
	}
	return ch
}

func checkExit(t *testing.T, ch <-chan int, code int) {
	select {
	case c := <-ch:
		require.Equal(t, code, c)
	default:
		if code != 0 {
			require.Fail(t, "no exit was called")
		}
	}
}

// Run runs command and checks that there were no errors.
func (e *executor) Run(t *testing.T, args ...string) {
	ch := setExitFunc()
	e.Out.Reset()
	require.NoError(t, e.CLI.Run(append([]string{"lottery"}, args...)))
	checkExit(t, ch, 0)
}

// RunWithError runs command and checks that is exits with error containing
// the given substring.
func (e *executor) RunWithError(t *testing.T, msg string, args ...string) {
	ch := setExitFunc()
	e.Out.Reset()
	err := e.CLI.Run(append([]string{"lottery"}, args...))
	require.Error(t, err)
	require.Contains(t, err.Error(), msg)
	checkExit(t, ch, 1)
}

func byteString(b []byte) map[string]any {
	return map[string]any{"type": "ByteString", "value": base64.StdEncoding.EncodeToString(b)}
}

func integer(n int64) map[string]any {
	return map[string]any{"type": "Integer", "value": fmt.Sprint(n)}
}

// newTestRPC starts a fake node answering invokefunction requests with the
// given per-method stacks.
func newTestRPC(t *testing.T, stacks map[string]any) string {
	srv := rpctest.New(t)
	srv.Handle("invokefunction", func(params []json.RawMessage) (any, error) {
		var method string
		require.NoError(t, json.Unmarshal(params[1], &method))
		item, ok := stacks[method]
		if !ok {
			return map[string]any{"script": "", "state": "FAULT", "gasconsumed": "0", "exception": "unknown method", "stack": []any{}}, nil
		}
		return map[string]any{"script": "", "state": "HALT", "gasconsumed": "100", "stack": []any{item}}, nil
	})
	return srv.URL
}

func TestReadCommands(t *testing.T) {
	url := newTestRPC(t, map[string]any{
		"getPlayers": map[string]any{"type": "Array", "value": []any{
			byteString(playerA.BytesBE()),
			byteString(playerB.BytesBE()),
		}},
		"getManager":    byteString(playerA.BytesBE()),
		"getPot":        integer(300_000_000),
		"getRound":      integer(3),
		"getLastWinner": byteString(playerB.BytesBE()),
	})
	e := newExecutor()
	common := []string{"-r", url, "--contract", contractHash.StringLE()}

	t.Run("players", func(t *testing.T) {
		e.Run(t, append([]string{"players"}, common...)...)
		require.Equal(t, address.Uint160ToString(playerA)+"\n"+address.Uint160ToString(playerB)+"\n", e.Out.String())
	})

	t.Run("manager", func(t *testing.T) {
		e.Run(t, append([]string{"manager"}, common...)...)
		require.Equal(t, address.Uint160ToString(playerA)+"\n", e.Out.String())
	})

	t.Run("pot", func(t *testing.T) {
		e.Run(t, append([]string{"pot"}, common...)...)
		require.Equal(t, "3\n", e.Out.String())
	})

	t.Run("round", func(t *testing.T) {
		e.Run(t, append([]string{"round"}, common...)...)
		require.Equal(t, "Round: 3\nLast winner: "+address.Uint160ToString(playerB)+"\n", e.Out.String())
	})

	t.Run("contract from config", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), "lottery.yml")
		cfg := fmt.Sprintf("Lottery:\n  RPCEndpoint: %s\n  Contract: %s\n", url, address.Uint160ToString(contractHash))
		require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))
		e.Run(t, "pot", "-c", cfgPath)
		require.Equal(t, "3\n", e.Out.String())
	})

	t.Run("extra arguments", func(t *testing.T) {
		e.RunWithError(t, "additional arguments", append([]string{"pot"}, append(common, "extra")...)...)
	})
}

func TestReadCommandsNoWinner(t *testing.T) {
	url := newTestRPC(t, map[string]any{
		"getPlayers":    map[string]any{"type": "Array", "value": []any{}},
		"getRound":      integer(0),
		"getLastWinner": map[string]any{"type": "Any"},
	})
	e := newExecutor()
	common := []string{"-r", url, "--contract", contractHash.StringLE()}

	e.Run(t, append([]string{"round"}, common...)...)
	require.Equal(t, "Round: 0\n", e.Out.String())

	e.Run(t, append([]string{"players"}, common...)...)
	require.Equal(t, "", e.Out.String())

	e.RunWithError(t, "failed to get pot", append([]string{"pot"}, common...)...)
}

func TestReadCommandsErrors(t *testing.T) {
	e := newExecutor()

	e.RunWithError(t, "no contract specified", "pot", "-r", "http://localhost:1")
	e.RunWithError(t, "no RPC endpoint specified", "pot", "--contract", contractHash.StringLE())
	e.RunWithError(t, "doesn't exist", "pot", "-c", filepath.Join(t.TempDir(), "nope.yml"))
}

func TestSendCommandsErrors(t *testing.T) {
	e := newExecutor()
	common := []string{"-r", "http://localhost:1", "--contract", contractHash.StringLE()}

	t.Run("enter without amount", func(t *testing.T) {
		e.RunWithError(t, errNoAmount.Error(), append([]string{"enter"}, common...)...)
	})

	t.Run("no wallet", func(t *testing.T) {
		e.RunWithError(t, "no wallet parameter found", append([]string{"enter", "--amount", "1"}, common...)...)
		e.RunWithError(t, "no wallet parameter found", append([]string{"pick-winner"}, common...)...)
	})

	t.Run("conflicting wallets", func(t *testing.T) {
		e.RunWithError(t, "conflicts", append([]string{"pick-winner", "-w", "a.json", "--wallet-config", "b.yml"}, common...)...)
	})

	t.Run("deploy without files", func(t *testing.T) {
		e.RunWithError(t, errNoNEF.Error(), "deploy", "-r", "http://localhost:1")
		e.RunWithError(t, errNoManifest.Error(), "deploy", "-r", "http://localhost:1", "-i", "lottery.nef")
		e.RunWithError(t, "can't read NEF file", "deploy", "-r", "http://localhost:1",
			"-i", filepath.Join(t.TempDir(), "lottery.nef"), "-m", "lottery.manifest.json")
	})
}

func TestReadNEFAndManifest(t *testing.T) {
	dir := t.TempDir()
	badNEF := filepath.Join(dir, "bad.nef")
	require.NoError(t, os.WriteFile(badNEF, []byte("not a NEF"), 0644))
	badManifest := filepath.Join(dir, "bad.manifest.json")
	require.NoError(t, os.WriteFile(badManifest, []byte("{"), 0644))

	_, _, err := readNEFAndManifest(badNEF, badManifest)
	require.ErrorContains(t, err, "can't parse NEF file")

	_, _, err = readNEFAndManifest(filepath.Join(dir, "missing.nef"), badManifest)
	require.ErrorContains(t, err, "can't read NEF file")
}

func TestHistoryCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.bolt")
	store, err := history.Open(path)
	require.NoError(t, err)
	draws := []history.Draw{
		{Round: 1, Winner: playerA, Prize: big.NewInt(200_000_000), Tx: util.Uint256{1}, Block: 10, Timestamp: 1700000000000},
		{Round: 2, Winner: playerB, Prize: big.NewInt(150_000_000), Tx: util.Uint256{2}},
	}
	for _, d := range draws {
		require.NoError(t, store.Put(d))
	}
	require.NoError(t, store.Close())

	e := newExecutor()

	t.Run("all", func(t *testing.T) {
		e.Run(t, "history", "--history-path", path)
		lines := strings.Split(strings.TrimSpace(e.Out.String()), "\n")
		require.Equal(t, 3, len(lines))
		require.True(t, strings.HasPrefix(lines[0], "ROUND"))
		require.Equal(t, []string{"1", address.Uint160ToString(playerA), "2", "10", "2023-11-14T22:13:20Z", util.Uint256{1}.StringLE()}, strings.Fields(lines[1]))
		require.Equal(t, []string{"2", address.Uint160ToString(playerB), "1.5", "0", util.Uint256{2}.StringLE()}, strings.Fields(lines[2]))
	})

	t.Run("round", func(t *testing.T) {
		e.Run(t, "history", "--history-path", path, "2")
		lines := strings.Split(strings.TrimSpace(e.Out.String()), "\n")
		require.Equal(t, 2, len(lines))
		require.Equal(t, "2", strings.Fields(lines[1])[0])
	})

	t.Run("errors", func(t *testing.T) {
		e.RunWithError(t, "draw not found", "history", "--history-path", path, "5")
		e.RunWithError(t, "invalid round", "history", "--history-path", path, "first")
		e.RunWithError(t, "at most one round", "history", "--history-path", path, "1", "2")
		e.RunWithError(t, "no history database", "history")
		e.RunWithError(t, "can't open history", "history", "--history-path", filepath.Join(t.TempDir(), "missing.bolt"))
	})
}

func TestWatchErrors(t *testing.T) {
	e := newExecutor()

	e.RunWithError(t, "no contract specified", "watch", "-r", "ws://localhost:1/ws")
	e.RunWithError(t, "no RPC endpoint specified", "watch", "--contract", contractHash.StringLE())
	e.RunWithError(t, "failed to connect", "watch", "-r", "ws://127.0.0.1:1/ws", "--contract", contractHash.StringLE(), "-s", "1s")
}
