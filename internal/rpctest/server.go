/*
Package rpctest provides a fake JSON-RPC node for client-side tests.
*/
package rpctest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/native/nativenames"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/gas"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/management"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/neo"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/nef"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
	"github.com/stretchr/testify/require"
)

// Network is the magic of the fake node.
const Network = 42

// MillisecondsPerBlock is the block time announced by the fake node.
const MillisecondsPerBlock = 100

// Handler returns a result of the RPC method for the given parameters. A
// non-nil error is sent back as an RPC error.
type Handler func(params []json.RawMessage) (any, error)

// Server is an HTTP JSON-RPC server answering with registered handlers.
// getversion and getnativecontracts are always registered.
type Server struct {
	URL string

	t        testing.TB
	mtx      sync.RWMutex
	handlers map[string]Handler
}

// New starts a Server that is stopped on the test cleanup.
func New(t testing.TB) *Server {
	s := &Server{
		t:        t,
		handlers: make(map[string]Handler),
	}
	s.Handle("getversion", func([]json.RawMessage) (any, error) { return version(), nil })
	s.Handle("getnativecontracts", func([]json.RawMessage) (any, error) { return nativeContracts(t), nil })

	srv := httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(srv.Close)
	s.URL = srv.URL
	return s
}

// Handle registers (or replaces) the handler of the method.
func (s *Server) Handle(method string, h Handler) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.handlers[method] = h
}

func (s *Server) serveHTTP(w http.ResponseWriter, req *http.Request) {
	var r struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	resp := map[string]any{"jsonrpc": "2.0"}
	if err := json.NewDecoder(req.Body).Decode(&r); err != nil {
		s.t.Errorf("invalid RPC request: %s", err)
		return
	}
	resp["id"] = r.ID

	s.mtx.RLock()
	h, ok := s.handlers[r.Method]
	s.mtx.RUnlock()
	if !ok {
		s.t.Errorf("unexpected RPC method %s", r.Method)
		resp["error"] = map[string]any{"code": -32601, "message": "Method not found"}
	} else if res, err := h(r.Params); err != nil {
		resp["error"] = map[string]any{"code": -100, "message": err.Error()}
	} else {
		resp["result"] = res
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.t.Errorf("can't write RPC response: %s", err)
	}
}

func version() map[string]any {
	return map[string]any{
		"tcpport":   20332,
		"nonce":     1,
		"useragent": "/NEO-GO:0.104.0/",
		"protocol": map[string]any{
			"network":                     Network,
			"addressversion":              53,
			"msperblock":                  MillisecondsPerBlock,
			"maxvaliduntilblockincrement": 5760,
			"maxtraceableblocks":          2102400,
			"maxtransactionsperblock":     512,
			"memorypoolmaxtransactions":   50000,
			"validatorscount":             1,
			"initialgasdistribution":      5200000000000000,
		},
	}
}

// nativeContracts describes the native contracts clients look up by name.
func nativeContracts(t testing.TB) []map[string]any {
	natives := []struct {
		id   int32
		name string
		hash util.Uint160
	}{
		{-1, nativenames.Management, management.Hash},
		{-5, nativenames.Neo, neo.Hash},
		{-6, nativenames.Gas, gas.Hash},
	}
	res := make([]map[string]any, 0, len(natives))
	for _, n := range natives {
		ne, err := nef.NewFile([]byte{byte(opcode.RET)})
		require.NoError(t, err)
		res = append(res, map[string]any{
			"id":            n.id,
			"hash":          n.hash,
			"nef":           ne,
			"manifest":      manifest.DefaultManifest(n.name),
			"updatehistory": []uint32{0},
		})
	}
	return res
}
